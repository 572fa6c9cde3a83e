package kafka

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/ondegooltd/fortisel-api/internal/entity"
	"github.com/ondegooltd/fortisel-api/internal/logging"
	"github.com/ondegooltd/fortisel-api/internal/usecase"
)

// DeliveryStatusChangedHandler advances orders as the fulfillment side
// reports driver progress.
type DeliveryStatusChangedHandler struct {
	Lifecycle *usecase.OrderLifecycle
}

func NewDeliveryStatusChangedHandler(lc *usecase.OrderLifecycle) *DeliveryStatusChangedHandler {
	return &DeliveryStatusChangedHandler{Lifecycle: lc}
}

func (h *DeliveryStatusChangedHandler) Handle(ctx context.Context, ev usecase.DeliveryStatusChangedMsg) error {
	var target domain.OrderStatus
	switch ev.Status {
	case "PROCESSING":
		target = domain.OrderProcessing
	case "IN_TRANSIT":
		target = domain.OrderInTransit
	case "DELIVERED":
		target = domain.OrderDelivered
	default:
		logging.FromCtx(ctx).Warn("unknown delivery status, skipping",
			"order_id", ev.OrderID, "status", ev.Status, "type", "kafka_skip")
		return nil
	}

	err := h.Lifecycle.UpdateStatus(ctx, ev.OrderID, target)

	// Redeliveries and out-of-order events must not wedge the partition.
	var ite *domain.InvalidTransitionError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, usecase.ErrOrderNotFound),
		errors.Is(err, usecase.ErrStatusConflict),
		errors.As(err, &ite):
		logging.FromCtx(ctx).Warn("delivery event not applicable, skipping",
			"order_id", ev.OrderID, "status", ev.Status, "error", err.Error(), "type", "kafka_skip")
		return nil
	default:
		return fmt.Errorf("apply delivery status %s to %s: %w", ev.Status, ev.OrderID, err)
	}
}
