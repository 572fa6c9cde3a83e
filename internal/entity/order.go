package domain

import (
	"errors"
	"fmt"
	"time"
)

type OrderStatus string

const (
	OrderPending       OrderStatus = "pending"
	OrderConfirmed     OrderStatus = "confirmed"
	OrderProcessing    OrderStatus = "processing"
	OrderInTransit     OrderStatus = "in_transit"
	OrderDelivered     OrderStatus = "delivered"
	OrderCancelled     OrderStatus = "cancelled"
	OrderPaymentFailed OrderStatus = "payment_failed"
)

// AmountEpsilon is the rounding tolerance for monetary comparisons.
const AmountEpsilon = 0.01

var ErrInvalidAmount = errors.New("invalid amount")

// orderTransitions maps each status to the statuses it may move to.
// delivered and cancelled are terminal. payment_failed may return to
// pending so the customer can retry payment, or be cancelled.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:       {OrderConfirmed, OrderCancelled, OrderPaymentFailed},
	OrderConfirmed:     {OrderProcessing, OrderCancelled},
	OrderProcessing:    {OrderInTransit},
	OrderInTransit:     {OrderDelivered},
	OrderDelivered:     {},
	OrderCancelled:     {},
	OrderPaymentFailed: {OrderPending, OrderCancelled},
}

func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

// CanTransition reports whether an order may move from s to target.
func (s OrderStatus) CanTransition(target OrderStatus) bool {
	for _, t := range orderTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: illegal status transition %s -> %s", e.Entity, e.From, e.To)
}

type Order struct {
	OrderID        string
	UserID         string
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
	Status         OrderStatus
	ScheduledDate  time.Time
	ScheduledTime  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Validate checks the monetary breakdown: total must equal refill+fee
// within the rounding tolerance, and all parts must be non-negative.
func (o *Order) Validate() error {
	if o.RefillAmount < 0 || o.DeliveryFee < 0 || o.TotalAmount <= 0 {
		return ErrInvalidAmount
	}
	if diff := o.TotalAmount - (o.RefillAmount + o.DeliveryFee); diff > AmountEpsilon || diff < -AmountEpsilon {
		return ErrInvalidAmount
	}
	return nil
}
