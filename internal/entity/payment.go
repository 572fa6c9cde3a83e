package domain

import "time"

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentSuccessful PaymentStatus = "successful"
	PaymentFailed     PaymentStatus = "failed"
	PaymentCancelled  PaymentStatus = "cancelled"
	PaymentReversed   PaymentStatus = "reversed"
)

type PaymentProvider string

const (
	ProviderPaystack PaymentProvider = "paystack"
	ProviderCash     PaymentProvider = "cash"
)

type PaymentMethod string

const (
	MethodCard         PaymentMethod = "card"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodMobileMoney  PaymentMethod = "mobile_money"
	MethodCash         PaymentMethod = "cash"
)

// PaymentMethods is the allow-list checked at payment creation.
var PaymentMethods = []PaymentMethod{MethodCard, MethodBankTransfer, MethodMobileMoney, MethodCash}

// A successful payment is immutable apart from audit metadata, so it has
// no outgoing transitions. The gateway may settle a charge without an
// intermediate processing event, hence pending -> successful|failed.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:    {PaymentProcessing, PaymentSuccessful, PaymentFailed, PaymentCancelled},
	PaymentProcessing: {PaymentSuccessful, PaymentFailed, PaymentReversed, PaymentCancelled},
	PaymentSuccessful: {},
	PaymentFailed:     {},
	PaymentCancelled:  {},
	PaymentReversed:   {},
}

func (s PaymentStatus) Valid() bool {
	_, ok := paymentTransitions[s]
	return ok
}

func (s PaymentStatus) Terminal() bool {
	return s == PaymentSuccessful || s == PaymentFailed || s == PaymentCancelled || s == PaymentReversed
}

func (s PaymentStatus) CanTransition(target PaymentStatus) bool {
	for _, t := range paymentTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// MapProviderStatus translates the gateway's status vocabulary to the
// canonical payment status. Unmapped values default to pending, never to
// failed, so an unrecognized intermediate event cannot fail a live charge.
func MapProviderStatus(provider string) PaymentStatus {
	switch provider {
	case "success":
		return PaymentSuccessful
	case "failed":
		return PaymentFailed
	case "pending":
		return PaymentPending
	case "reversed":
		return PaymentReversed
	default:
		return PaymentPending
	}
}

type Payment struct {
	PaymentID             string
	OrderID               string
	UserID                string
	Amount                float64
	Currency              string
	Status                PaymentStatus
	Provider              PaymentProvider
	Method                PaymentMethod
	ProviderReference     string
	ProviderTransactionID string
	Description           string
	FailureReason         string
	ProcessedAt           *time.Time
	WebhookData           []byte
	CreatedAt             time.Time
	UpdatedAt             time.Time
}
