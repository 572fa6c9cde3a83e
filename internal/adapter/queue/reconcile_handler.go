package queue

import (
	"context"

	"github.com/ondegooltd/fortisel-api/internal/logging"
	"github.com/ondegooltd/fortisel-api/internal/usecase"
)

// WebhookReconcileHandler applies queued gateway deliveries to payments.
// Safe under redelivery: the reconciler treats repeats as no-ops.
type WebhookReconcileHandler struct {
	reconciler *usecase.PaymentReconciler
	audit      usecase.WebhookAudit
}

func NewWebhookReconcileHandler(rec *usecase.PaymentReconciler, audit usecase.WebhookAudit) *WebhookReconcileHandler {
	return &WebhookReconcileHandler{reconciler: rec, audit: audit}
}

// HandleWebhook is intended to be used with the JSON adapter
// (queue.JSONHandler[usecase.QueuedWebhook]).
func (h *WebhookReconcileHandler) HandleWebhook(ctx context.Context, msg usecase.QueuedWebhook) error {
	res, err := h.reconciler.Reconcile(ctx, msg.Reference, msg.Event)
	if err != nil {
		return err
	}

	if h.audit != nil {
		if aerr := h.audit.RecordDelivery(ctx, msg.Reference, msg.Event.Event, msg.Raw, res.Applied); aerr != nil {
			logging.FromCtx(ctx).Error("webhook audit write failed",
				"reference", msg.Reference, "error", aerr.Error(), "type", "webhook_audit_error")
		}
	}
	return nil
}
