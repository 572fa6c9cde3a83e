package usecase

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/ondegooltd/fortisel-api/internal/entity"
)

type OrderRepo interface {
	// CreateTx inserts inside a coordinator-owned transaction.
	CreateTx(ctx context.Context, tx *sql.Tx, o *domain.Order) error
	GetByOrderID(ctx context.Context, orderID string) (*domain.Order, error)
	// UpdateStatusIf applies a guarded transition; false when the order is
	// missing or its current status no longer matches from.
	UpdateStatusIf(ctx context.Context, orderID string, from, to domain.OrderStatus) (bool, error)
}

type PaymentRepo interface {
	Create(ctx context.Context, p *domain.Payment) error
	GetByPaymentID(ctx context.Context, paymentID string) (*domain.Payment, error)
	GetByProviderReference(ctx context.Context, reference string) (*domain.Payment, error)
	SetProviderReference(ctx context.Context, paymentID, reference string) error
	// UpdateStatusIf applies a guarded transition and records audit
	// metadata; false when the current status no longer matches from.
	UpdateStatusIf(ctx context.Context, paymentID string, from, to domain.PaymentStatus,
		webhookData []byte, processedAt *time.Time) (bool, error)
}

type UserRepo interface {
	Create(ctx context.Context, u *domain.User) error
	GetByUserID(ctx context.Context, userID string) (*domain.User, error)
}

// ChargeAuthorization is the redirect handle returned by the gateway when
// a charge is initialized.
type ChargeAuthorization struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// GatewayRecord is the gateway's view of a charge, fetched on verify.
type GatewayRecord struct {
	Reference       string
	Status          string
	Amount          float64
	Currency        string
	GatewayResponse string
	TransactionID   string
	PaidAt          string
}

type ChargeRequest struct {
	Email     string
	Amount    float64
	Reference string
	Metadata  map[string]string
}

type GatewayClient interface {
	InitializeCharge(ctx context.Context, req ChargeRequest) (*ChargeAuthorization, error)
	VerifyCharge(ctx context.Context, reference string) (*GatewayRecord, error)
}

// Notifier dispatches customer notifications. Fire-and-forget from the
// reconciliation path: failures are logged, never block.
type Notifier interface {
	SendOrderConfirmation(ctx context.Context, msg OrderConfirmationMsg) error
	SendPaymentFailure(ctx context.Context, msg PaymentFailureMsg) error
}

type OrderCache interface {
	SetStatus(ctx context.Context, orderID string, status string) error
	GetStatus(ctx context.Context, orderID string) (string, bool, error)
}

// WebhookAudit records every gateway delivery and its reconciliation
// outcome. Best effort: callers log and continue on failure.
type WebhookAudit interface {
	RecordDelivery(ctx context.Context, reference, event string, payload []byte, applied bool) error
}

type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}
