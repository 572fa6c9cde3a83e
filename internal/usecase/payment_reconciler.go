package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	domain "github.com/ondegooltd/fortisel-api/internal/entity"
	"github.com/ondegooltd/fortisel-api/internal/logging"
	"github.com/ondegooltd/fortisel-api/internal/retry"
	"github.com/ondegooltd/fortisel-api/internal/rules"
)

var ErrPaymentNotFound = errors.New("payment not found")

type CreatePaymentInput struct {
	OrderID     string
	UserID      string
	Amount      float64
	Currency    string
	Provider    domain.PaymentProvider
	Method      domain.PaymentMethod
	Description string
}

// ReconcileResult reports what a webhook delivery did. Applied is false
// for the no-op cases: orphaned reference, duplicate status, or a
// transition the payment state machine forbids.
type ReconcileResult struct {
	Applied   bool
	PaymentID string
	From      domain.PaymentStatus
	To        domain.PaymentStatus
}

// PaymentReconciler owns payment creation, gateway charge initialization
// and webhook-driven status reconciliation. Webhook and API-driven status
// changes converge on the single updateStatus path.
type PaymentReconciler struct {
	payments  PaymentRepo
	users     UserRepo
	orders    *OrderLifecycle
	validator *rules.Validator
	gateway   GatewayClient
	notifier  Notifier
	retryCfg  retry.Config
}

func NewPaymentReconciler(payments PaymentRepo, users UserRepo, orders *OrderLifecycle,
	validator *rules.Validator, gateway GatewayClient, notifier Notifier) *PaymentReconciler {
	return &PaymentReconciler{
		payments:  payments,
		users:     users,
		orders:    orders,
		validator: validator,
		gateway:   gateway,
		notifier:  notifier,
		retryCfg:  retry.DefaultConfig(),
	}
}

// Create validates and persists a pending payment for an order.
func (r *PaymentReconciler) Create(ctx context.Context, in CreatePaymentInput) (*domain.Payment, error) {
	res := r.validator.ValidatePayment(ctx, rules.PaymentContext{
		OrderID:       in.OrderID,
		UserID:        in.UserID,
		Amount:        in.Amount,
		PaymentMethod: string(in.Method),
	})
	if !res.IsValid {
		return nil, &RuleViolationError{Action: "payment", Violations: res.Violations}
	}

	now := time.Now()
	p := &domain.Payment{
		PaymentID:   "PAY-" + uuid.NewString(),
		OrderID:     in.OrderID,
		UserID:      in.UserID,
		Amount:      in.Amount,
		Currency:    in.Currency,
		Status:      domain.PaymentPending,
		Provider:    in.Provider,
		Method:      in.Method,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.payments.Create(ctx, p); err != nil {
		return nil, err
	}

	logging.FromCtx(ctx).Info("payment created",
		"payment_id", p.PaymentID, "order_id", p.OrderID,
		"amount", p.Amount, "warnings", len(res.Warnings), "type", "payment_created")
	return p, nil
}

// InitializeCharge obtains a redirect handle from the gateway, retrying
// on transient failure, and persists the provider reference before
// returning so a webhook racing the response can still be matched.
func (r *PaymentReconciler) InitializeCharge(ctx context.Context, paymentID, email string) (*ChargeAuthorization, error) {
	p, err := r.payments.GetByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPaymentNotFound
	}

	auth, err := retry.Do(ctx, func(ctx context.Context) (*ChargeAuthorization, error) {
		return r.gateway.InitializeCharge(ctx, ChargeRequest{
			Email:     email,
			Amount:    p.Amount,
			Reference: p.PaymentID,
			Metadata:  map[string]string{"orderId": p.OrderID},
		})
	}, r.retryCfg, "gateway_initialize_charge")
	if err != nil {
		return nil, err
	}

	if err := r.payments.SetProviderReference(ctx, p.PaymentID, auth.Reference); err != nil {
		return nil, err
	}

	logging.FromCtx(ctx).Info("gateway charge initialized",
		"payment_id", p.PaymentID, "reference", auth.Reference, "type", "charge_initialized")
	return auth, nil
}

// VerifyCharge fetches the gateway's record for a reference, for manual
// verification flows.
func (r *PaymentReconciler) VerifyCharge(ctx context.Context, reference string) (*GatewayRecord, error) {
	return retry.Do(ctx, func(ctx context.Context) (*GatewayRecord, error) {
		return r.gateway.VerifyCharge(ctx, reference)
	}, r.retryCfg, "gateway_verify_charge")
}

// Reconcile applies a gateway webhook to the locally tracked payment.
// The provider reference is the only correlation key used; webhooks may
// arrive multiple times, out of order or replayed, and the whole path is
// idempotent: a transition into the status the payment already holds is a
// no-op that fires no downstream side effects.
func (r *PaymentReconciler) Reconcile(ctx context.Context, reference string, ev WebhookEvent) (ReconcileResult, error) {
	l := logging.FromCtx(ctx).With("reference", reference)

	p, err := r.payments.GetByProviderReference(ctx, reference)
	if err != nil {
		return ReconcileResult{}, err
	}
	if p == nil {
		// Never create a payment from a webhook; an unmatched reference is
		// orphaned or suspicious.
		l.Warn("webhook for unknown provider reference ignored",
			"event", ev.Event, "type", "webhook_orphaned")
		return ReconcileResult{Applied: false}, nil
	}

	target := domain.MapProviderStatus(ev.Data.Status)

	if ev.Data.Amount > 0 {
		// Gateway reports minor units.
		if diff := ev.Data.Amount/100 - p.Amount; diff > domain.AmountEpsilon || diff < -domain.AmountEpsilon {
			l.Warn("webhook amount differs from payment amount",
				"payment_id", p.PaymentID, "webhook_amount", ev.Data.Amount/100,
				"payment_amount", p.Amount, "type", "webhook_amount_mismatch")
		}
	}

	if p.Status == target {
		l.Info("duplicate webhook, status already applied",
			"payment_id", p.PaymentID, "status", p.Status, "type", "webhook_duplicate")
		return ReconcileResult{Applied: false, PaymentID: p.PaymentID, From: p.Status, To: target}, nil
	}
	if !p.Status.CanTransition(target) {
		l.Warn("webhook transition not allowed, ignoring",
			"payment_id", p.PaymentID, "from", p.Status, "to", target, "type", "webhook_ignored")
		return ReconcileResult{Applied: false, PaymentID: p.PaymentID, From: p.Status, To: target}, nil
	}

	applied, err := r.updateStatus(ctx, p, target, ev.Data.webhookAudit())
	if err != nil {
		return ReconcileResult{}, err
	}
	if !applied {
		// A concurrent delivery won the guarded update.
		l.Info("concurrent webhook already applied transition",
			"payment_id", p.PaymentID, "to", target, "type", "webhook_duplicate")
		return ReconcileResult{Applied: false, PaymentID: p.PaymentID, From: p.Status, To: target}, nil
	}

	if err := r.cascade(ctx, p, target, ev); err != nil {
		return ReconcileResult{}, err
	}

	return ReconcileResult{Applied: true, PaymentID: p.PaymentID, From: p.Status, To: target}, nil
}

// UpdateStatus is the direct API-driven entry; it shares updateStatus
// with the webhook path so behavior is identical regardless of trigger.
func (r *PaymentReconciler) UpdateStatus(ctx context.Context, paymentID string, to domain.PaymentStatus) error {
	p, err := r.payments.GetByPaymentID(ctx, paymentID)
	if err != nil {
		return err
	}
	if p == nil {
		return ErrPaymentNotFound
	}
	if p.Status == to {
		return nil
	}
	if !p.Status.CanTransition(to) {
		return &domain.InvalidTransitionError{
			Entity: "payment", From: string(p.Status), To: string(to),
		}
	}
	applied, err := r.updateStatus(ctx, p, to, nil)
	if err != nil {
		return err
	}
	if !applied {
		return ErrStatusConflict
	}
	return r.cascade(ctx, p, to, WebhookEvent{})
}

// updateStatus persists the guarded transition. processedAt is stamped
// when the payment settles successfully; webhookData is audit metadata.
func (r *PaymentReconciler) updateStatus(ctx context.Context, p *domain.Payment,
	to domain.PaymentStatus, webhookData []byte) (bool, error) {
	var processedAt *time.Time
	if to == domain.PaymentSuccessful {
		now := time.Now()
		processedAt = &now
	}
	return r.payments.UpdateStatusIf(ctx, p.PaymentID, p.Status, to, webhookData, processedAt)
}

// cascade propagates a settled payment onto its order and dispatches
// notifications. Runs only when a transition actually applied, so a
// duplicate webhook can never re-fire it.
func (r *PaymentReconciler) cascade(ctx context.Context, p *domain.Payment,
	to domain.PaymentStatus, ev WebhookEvent) error {
	l := logging.FromCtx(ctx)

	switch to {
	case domain.PaymentSuccessful:
		if err := r.orders.UpdateStatus(ctx, p.OrderID, domain.OrderConfirmed); err != nil {
			if !transientOrderError(err) {
				// e.g. the order was cancelled before the charge settled; the
				// payment stays successful for the refund flow to pick up.
				logging.FromCtx(ctx).Warn("order not confirmable after settlement",
					"payment_id", p.PaymentID, "order_id", p.OrderID,
					"error", err.Error(), "type", "cascade_skipped")
				return nil
			}
			return err
		}
		msg := OrderConfirmationMsg{
			OrderID:      p.OrderID,
			PaymentID:    p.PaymentID,
			Amount:       p.Amount,
			Email:        ev.Data.Customer.Email,
			Phone:        ev.Data.Customer.Phone,
			CustomerName: ev.Data.Customer.FirstName + " " + ev.Data.Customer.LastName,
		}
		r.fillContact(ctx, p.UserID, &msg.Email, &msg.Phone)
		if err := r.notifier.SendOrderConfirmation(ctx, msg); err != nil {
			l.Error("order confirmation dispatch failed",
				"payment_id", p.PaymentID, "error", err.Error(), "type", "notification_error")
		}

	case domain.PaymentFailed:
		if err := r.orders.UpdateStatus(ctx, p.OrderID, domain.OrderPaymentFailed); err != nil {
			if !transientOrderError(err) {
				logging.FromCtx(ctx).Warn("order not markable as payment_failed",
					"payment_id", p.PaymentID, "order_id", p.OrderID,
					"error", err.Error(), "type", "cascade_skipped")
				return nil
			}
			return err
		}
		msg := PaymentFailureMsg{
			OrderID:   p.OrderID,
			PaymentID: p.PaymentID,
			Email:     ev.Data.Customer.Email,
			Reason:    ev.Data.GatewayResponse,
		}
		r.fillContact(ctx, p.UserID, &msg.Email, &msg.Phone)
		if err := r.notifier.SendPaymentFailure(ctx, msg); err != nil {
			l.Error("payment failure dispatch failed",
				"payment_id", p.PaymentID, "error", err.Error(), "type", "notification_error")
		}
	}
	return nil
}

func (r *PaymentReconciler) fillContact(ctx context.Context, userID string, email, phone *string) {
	if r.users == nil || (*email != "" && *phone != "") {
		return
	}
	u, err := r.users.GetByUserID(ctx, userID)
	if err != nil || u == nil {
		return
	}
	if *email == "" {
		*email = u.Email
	}
	if *phone == "" {
		*phone = u.Phone
	}
}

// transientOrderError reports whether a cascade failure is worth retrying.
// Transition conflicts and missing orders will not heal on redelivery, so the
// webhook is acknowledged instead of cycling back through the queue.
func transientOrderError(err error) bool {
	var inv *domain.InvalidTransitionError
	if errors.As(err, &inv) {
		return false
	}
	return !errors.Is(err, ErrOrderNotFound) && !errors.Is(err, ErrStatusConflict)
}

func (d WebhookData) webhookAudit() []byte {
	if d.Reference == "" && d.Status == "" {
		return nil
	}
	// Store the minimal reconciliation view; the queue keeps the raw body.
	b, err := json.Marshal(map[string]string{
		"reference":        d.Reference,
		"status":           d.Status,
		"gateway_response": d.GatewayResponse,
		"paid_at":          d.PaidAt,
	})
	if err != nil {
		return nil
	}
	return b
}
