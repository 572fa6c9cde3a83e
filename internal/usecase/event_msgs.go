package usecase

// WebhookEvent is the gateway callback payload. Only the fields the
// reconciler depends on are decoded; the raw payload is kept alongside as
// audit metadata.
type WebhookEvent struct {
	Event string      `json:"event"`
	Data  WebhookData `json:"data"`
}

type WebhookData struct {
	ID              int64           `json:"id"`
	Reference       string          `json:"reference"`
	Status          string          `json:"status"`
	Amount          float64         `json:"amount"` // minor units (pesewas/kobo)
	GatewayResponse string          `json:"gateway_response"`
	PaidAt          string          `json:"paid_at"`
	Channel         string          `json:"channel"`
	Currency        string          `json:"currency"`
	Customer        WebhookCustomer `json:"customer"`
}

type WebhookCustomer struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// QueuedWebhook is what the HTTP endpoint enqueues to RabbitMQ after
// signature verification; the consumer performs the actual reconcile.
type QueuedWebhook struct {
	Reference string       `json:"reference"`
	Event     WebhookEvent `json:"event"`
	Raw       []byte       `json:"raw"`
}

// DeliveryStatusChangedMsg is published by the fulfillment service on
// Kafka when a driver advances an order.
type DeliveryStatusChangedMsg struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"` // PROCESSING | IN_TRANSIT | DELIVERED
	At      string `json:"at"`
}

type OrderConfirmationMsg struct {
	OrderID       string  `json:"orderId"`
	PaymentID     string  `json:"paymentId"`
	Email         string  `json:"email"`
	Phone         string  `json:"phone"`
	CustomerName  string  `json:"customerName"`
	Amount        float64 `json:"amount"`
	CylinderSize  string  `json:"cylinderSize"`
	ScheduledDate string  `json:"scheduledDate"`
}

type PaymentFailureMsg struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Reason    string `json:"reason"`
}
