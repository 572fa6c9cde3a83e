package usecase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	domain "github.com/ondegooltd/fortisel-api/internal/entity"
	"github.com/ondegooltd/fortisel-api/internal/logging"
	"github.com/ondegooltd/fortisel-api/internal/rules"
	"github.com/ondegooltd/fortisel-api/internal/txn"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrDuplicate     = errors.New("duplicate idempotency key")
	// ErrStatusConflict: the guarded update matched no row because a
	// concurrent writer changed the status first.
	ErrStatusConflict = errors.New("order status changed concurrently")
)

// RuleViolationError carries the full violation list so the HTTP layer
// can present every failed rule, not just the first.
type RuleViolationError struct {
	Action     string
	Violations []string
}

func (e *RuleViolationError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Action, strings.Join(e.Violations, "; "))
}

type CreateOrderInput struct {
	UserID         string
	IdempotencyKey string
	CylinderSize   string
	Quantity       int
	RefillAmount   float64
	DeliveryFee    float64
	TotalAmount    float64
	PickupAddress  string
	DropOffAddress string
	ReceiverName   string
	ReceiverPhone  string
	PaymentMethod  string
	Notes          string
	ScheduledDate  time.Time
	ScheduledTime  string
}

type CreateOrderOutput struct {
	Order    *domain.Order
	Warnings []string
}

// OrderLifecycle owns order creation and status transitions. All writes
// go through the transaction coordinator or the guarded update path.
type OrderLifecycle struct {
	repo      OrderRepo
	validator *rules.Validator
	coord     *txn.Coordinator
	cache     OrderCache
	idem      IdempotencyStore
}

func NewOrderLifecycle(repo OrderRepo, validator *rules.Validator, coord *txn.Coordinator,
	cache OrderCache, idem IdempotencyStore) *OrderLifecycle {
	return &OrderLifecycle{repo: repo, validator: validator, coord: coord, cache: cache, idem: idem}
}

// Create validates the request and persists the order inside a
// transaction (30s timeout, 3 retries). Rule violations come back as a
// RuleViolationError listing every failed rule.
func (uc *OrderLifecycle) Create(ctx context.Context, in CreateOrderInput) (CreateOrderOutput, error) {
	l := logging.FromCtx(ctx)

	// Fast path: idempotency recall for retried client requests.
	if in.IdempotencyKey != "" {
		if id, ok, _ := uc.idem.Recall(ctx, in.UserID, in.IdempotencyKey); ok {
			existing, err := uc.repo.GetByOrderID(ctx, id)
			if err == nil && existing != nil {
				return CreateOrderOutput{Order: existing}, nil
			}
		}
		ok, err := uc.idem.TryLock(ctx, in.UserID, in.IdempotencyKey)
		if err != nil {
			return CreateOrderOutput{}, err
		}
		if !ok {
			return CreateOrderOutput{}, ErrDuplicate
		}
	}

	res := uc.validator.ValidateOrderCreation(ctx, rules.OrderContext{
		UserID:          in.UserID,
		CylinderSize:    in.CylinderSize,
		Quantity:        in.Quantity,
		ScheduledDate:   in.ScheduledDate,
		DeliveryAddress: in.DropOffAddress,
	})
	if !res.IsValid {
		return CreateOrderOutput{}, &RuleViolationError{Action: "order creation", Violations: res.Violations}
	}

	now := time.Now()
	order := &domain.Order{
		OrderID:        "ORD-" + uuid.NewString(),
		UserID:         in.UserID,
		CylinderSize:   in.CylinderSize,
		Quantity:       in.Quantity,
		RefillAmount:   in.RefillAmount,
		DeliveryFee:    in.DeliveryFee,
		TotalAmount:    in.TotalAmount,
		PickupAddress:  in.PickupAddress,
		DropOffAddress: in.DropOffAddress,
		ReceiverName:   in.ReceiverName,
		ReceiverPhone:  in.ReceiverPhone,
		PaymentMethod:  in.PaymentMethod,
		Notes:          in.Notes,
		Status:         domain.OrderPending,
		ScheduledDate:  in.ScheduledDate,
		ScheduledTime:  in.ScheduledTime,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := order.Validate(); err != nil {
		return CreateOrderOutput{}, &RuleViolationError{
			Action:     "order creation",
			Violations: []string{"Order amounts do not add up"},
		}
	}

	out := uc.coord.ExecuteTransaction(ctx, func(ctx context.Context, tx *sql.Tx) (any, error) {
		return nil, uc.repo.CreateTx(ctx, tx, order)
	}, txn.Options{Timeout: 30 * time.Second, Retries: 3})
	if !out.Success {
		return CreateOrderOutput{}, out.Err
	}

	if in.IdempotencyKey != "" {
		_ = uc.idem.Remember(ctx, in.UserID, in.IdempotencyKey, order.OrderID)
	}
	if uc.cache != nil {
		_ = uc.cache.SetStatus(ctx, order.OrderID, string(order.Status))
	}

	l.Info("order created",
		"order_id", order.OrderID, "user_id", order.UserID,
		"total", order.TotalAmount, "type", "order_created")

	return CreateOrderOutput{Order: order, Warnings: res.Warnings}, nil
}

// UpdateStatus moves an order along its state machine. Illegal
// transitions are rejected; the guarded SQL update keeps terminal states
// sticky even against concurrent writers.
func (uc *OrderLifecycle) UpdateStatus(ctx context.Context, orderID string, to domain.OrderStatus) error {
	if !to.Valid() {
		return &domain.InvalidTransitionError{Entity: "order", From: "?", To: string(to)}
	}

	order, err := uc.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return ErrOrderNotFound
	}
	if !order.Status.CanTransition(to) {
		return &domain.InvalidTransitionError{
			Entity: "order", From: string(order.Status), To: string(to),
		}
	}

	applied, err := uc.repo.UpdateStatusIf(ctx, orderID, order.Status, to)
	if err != nil {
		return err
	}
	if !applied {
		return ErrStatusConflict
	}

	if uc.cache != nil {
		_ = uc.cache.SetStatus(ctx, orderID, string(to))
	}

	logging.FromCtx(ctx).Info("order status updated",
		"order_id", orderID, "from", order.Status, "to", to, "type", "order_status_changed")
	return nil
}

// Cancel runs the cancellation rules, then applies the transition.
func (uc *OrderLifecycle) Cancel(ctx context.Context, orderID, userID string) error {
	res := uc.validator.ValidateCancellation(ctx, orderID, userID)
	if !res.IsValid {
		return &RuleViolationError{Action: "order cancellation", Violations: res.Violations}
	}
	return uc.UpdateStatus(ctx, orderID, domain.OrderCancelled)
}

// Get reads an order, preferring the cached status for freshness checks
// done by the HTTP layer.
func (uc *OrderLifecycle) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := uc.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}
