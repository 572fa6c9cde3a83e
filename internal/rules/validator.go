// Package rules holds the business-rule validators for orders, payments,
// registration and cancellation. Validators are pure apart from read-only
// lookups and never mutate state.
package rules

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	domain "github.com/ondegooltd/fortisel-api/internal/entity"
	"github.com/ondegooltd/fortisel-api/internal/logging"
)

const (
	maxOrdersPerWindow  = 10
	orderWindow         = 30 * 24 * time.Hour
	minAddressLen       = 10
	minNameLen          = 2
	cancelCutoff        = 2 * time.Hour
	fraudPaymentsPerHr  = 5
	fraudPaymentsWindow = time.Hour
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	// Ghana phone numbers: +233 or leading 0, then 9 digits.
	phonePattern = regexp.MustCompile(`^(\+233|0)[2-9]\d{8}$`)
)

type Result struct {
	IsValid    bool
	Violations []string
	Warnings   []string
}

type OrderContext struct {
	UserID          string
	CylinderSize    string
	Quantity        int
	ScheduledDate   time.Time
	DeliveryAddress string
}

type PaymentContext struct {
	OrderID       string
	UserID        string
	Amount        float64
	PaymentMethod string
}

type RegistrationContext struct {
	Email string
	Phone string
	Name  string
}

// Read-only lookup ports. A nil entity with a nil error means not found.

type OrderReader interface {
	GetByOrderID(ctx context.Context, orderID string) (*domain.Order, error)
	// CountActiveForUser counts the user's orders in a non-terminal status.
	CountActiveForUser(ctx context.Context, userID string) (int, error)
	// CountActiveForUserOnDay counts non-terminal orders scheduled inside
	// the local midnight-to-midnight window containing day.
	CountActiveForUserOnDay(ctx context.Context, userID string, day time.Time) (int, error)
	CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error)
}

type UserReader interface {
	GetByUserID(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
}

type CylinderReader interface {
	CountAvailable(ctx context.Context, size string) (int, error)
}

type PaymentReader interface {
	// GetSettlingForOrder returns a payment for the order in successful or
	// processing status, nil when none exists.
	GetSettlingForOrder(ctx context.Context, orderID string) (*domain.Payment, error)
	CountSuccessfulForUserSince(ctx context.Context, userID string, since time.Time) (int, error)
}

type Validator struct {
	orders    OrderReader
	users     UserReader
	cylinders CylinderReader
	payments  PaymentReader
	now       func() time.Time
}

func NewValidator(orders OrderReader, users UserReader, cylinders CylinderReader, payments PaymentReader) *Validator {
	return &Validator{
		orders:    orders,
		users:     users,
		cylinders: cylinders,
		payments:  payments,
		now:       time.Now,
	}
}

// ValidateOrderCreation applies the order-creation rules. Violations
// block; warnings are informational only.
func (v *Validator) ValidateOrderCreation(ctx context.Context, oc OrderContext) Result {
	var violations, warnings []string
	l := logging.FromCtx(ctx)

	user, err := v.users.GetByUserID(ctx, oc.UserID)
	if err != nil {
		return v.degrade(ctx, "order_creation_validation", err)
	}
	if user == nil {
		violations = append(violations, "User not found")
	} else if !user.IsActive {
		violations = append(violations, "User account is inactive")
	}

	active, err := v.orders.CountActiveForUser(ctx, oc.UserID)
	if err != nil {
		return v.degrade(ctx, "order_creation_validation", err)
	}
	if active > 0 {
		warnings = append(warnings, "User has pending orders")
	}

	available, err := v.cylinders.CountAvailable(ctx, oc.CylinderSize)
	if err != nil {
		return v.degrade(ctx, "order_creation_validation", err)
	}
	if available < oc.Quantity {
		violations = append(violations, fmt.Sprintf(
			"Insufficient cylinders available. Requested: %d, Available: %d", oc.Quantity, available))
	}

	if !oc.ScheduledDate.After(v.now()) {
		violations = append(violations, "Scheduled date must be in the future")
	}

	sameDay, err := v.orders.CountActiveForUserOnDay(ctx, oc.UserID, oc.ScheduledDate)
	if err != nil {
		return v.degrade(ctx, "order_creation_validation", err)
	}
	if sameDay > 0 {
		violations = append(violations, "User already has an order scheduled for this date")
	}

	if len(strings.TrimSpace(oc.DeliveryAddress)) < minAddressLen {
		violations = append(violations, "Delivery address must be at least 10 characters long")
	}

	recent, err := v.orders.CountCreatedSince(ctx, oc.UserID, v.now().Add(-orderWindow))
	if err != nil {
		return v.degrade(ctx, "order_creation_validation", err)
	}
	if recent >= maxOrdersPerWindow {
		violations = append(violations, "User has reached the maximum order limit (10 orders per month)")
	}

	l.Info("order creation validation completed",
		"user_id", oc.UserID, "violations", len(violations), "warnings", len(warnings),
		"type", "business_rule_validation")

	return result(violations, warnings)
}

// ValidatePayment applies the payment-creation rules.
func (v *Validator) ValidatePayment(ctx context.Context, pc PaymentContext) Result {
	var violations, warnings []string
	l := logging.FromCtx(ctx)

	order, err := v.orders.GetByOrderID(ctx, pc.OrderID)
	if err != nil {
		return v.degradeAs(ctx, "payment_validation", "Payment validation error occurred", err)
	}
	if order == nil {
		violations = append(violations, "Order not found")
	} else {
		if order.Status != domain.OrderPending {
			violations = append(violations, fmt.Sprintf(
				"Order is not in a valid state for payment. Current status: %s", order.Status))
		}
		if diff := order.TotalAmount - pc.Amount; diff > domain.AmountEpsilon || diff < -domain.AmountEpsilon {
			violations = append(violations, fmt.Sprintf(
				"Payment amount (%v) does not match order total (%v)", pc.Amount, order.TotalAmount))
		}
	}

	existing, err := v.payments.GetSettlingForOrder(ctx, pc.OrderID)
	if err != nil {
		return v.degradeAs(ctx, "payment_validation", "Payment validation error occurred", err)
	}
	if existing != nil {
		violations = append(violations, "Payment already exists for this order")
	}

	if !validMethod(pc.PaymentMethod) {
		violations = append(violations, fmt.Sprintf("Invalid payment method: %s", pc.PaymentMethod))
	}

	recent, err := v.payments.CountSuccessfulForUserSince(ctx, pc.UserID, v.now().Add(-fraudPaymentsWindow))
	if err != nil {
		return v.degradeAs(ctx, "payment_validation", "Payment validation error occurred", err)
	}
	if recent >= fraudPaymentsPerHr {
		warnings = append(warnings, "User has made multiple payments in the last hour")
	}

	l.Info("payment validation completed",
		"order_id", pc.OrderID, "user_id", pc.UserID,
		"violations", len(violations), "warnings", len(warnings),
		"type", "business_rule_validation")

	return result(violations, warnings)
}

// ValidateRegistration applies the user-registration rules.
func (v *Validator) ValidateRegistration(ctx context.Context, rc RegistrationContext) Result {
	var violations, warnings []string
	l := logging.FromCtx(ctx)

	existing, err := v.users.GetByEmail(ctx, rc.Email)
	if err != nil {
		return v.degradeAs(ctx, "user_registration_validation", "User registration validation error occurred", err)
	}
	if existing != nil {
		violations = append(violations, "Email already registered")
	}

	existing, err = v.users.GetByPhone(ctx, rc.Phone)
	if err != nil {
		return v.degradeAs(ctx, "user_registration_validation", "User registration validation error occurred", err)
	}
	if existing != nil {
		violations = append(violations, "Phone number already registered")
	}

	if !emailPattern.MatchString(rc.Email) {
		violations = append(violations, "Invalid email format")
	}
	if !phonePattern.MatchString(rc.Phone) {
		violations = append(violations, "Invalid phone number format")
	}
	if len(strings.TrimSpace(rc.Name)) < minNameLen {
		violations = append(violations, "Name must be at least 2 characters long")
	}

	lower := strings.ToLower(rc.Name)
	if strings.Contains(lower, "test") || strings.Contains(lower, "admin") {
		warnings = append(warnings, "Suspicious name pattern detected")
	}

	l.Info("user registration validation completed",
		"email", rc.Email, "violations", len(violations), "warnings", len(warnings),
		"type", "business_rule_validation")

	return result(violations, warnings)
}

// ValidateCancellation applies the order-cancellation rules.
func (v *Validator) ValidateCancellation(ctx context.Context, orderID, userID string) Result {
	var violations []string
	l := logging.FromCtx(ctx)

	order, err := v.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		return v.degradeAs(ctx, "order_cancellation_validation", "Order cancellation validation error occurred", err)
	}
	if order == nil || order.UserID != userID {
		// a non-owner gets the same answer as a missing order, with no
		// further detail about the order's state or schedule
		l.Info("order cancellation validation completed",
			"order_id", orderID, "user_id", userID, "violations", 1,
			"type", "business_rule_validation")
		return Result{IsValid: false, Violations: []string{"Order not found or access denied"}}
	}

	switch order.Status {
	case domain.OrderDelivered:
		violations = append(violations, "Cannot cancel delivered order")
	case domain.OrderCancelled:
		violations = append(violations, "Order is already cancelled")
	case domain.OrderInTransit:
		violations = append(violations, "Cannot cancel order that is in transit")
	}

	if !order.ScheduledDate.IsZero() && order.ScheduledDate.Sub(v.now()) < cancelCutoff {
		violations = append(violations, "Cannot cancel order less than 2 hours before scheduled delivery")
	}

	l.Info("order cancellation validation completed",
		"order_id", orderID, "user_id", userID, "violations", len(violations),
		"type", "business_rule_validation")

	return Result{IsValid: len(violations) == 0, Violations: violations}
}

func validMethod(m string) bool {
	for _, allowed := range domain.PaymentMethods {
		if string(allowed) == m {
			return true
		}
	}
	return false
}

func result(violations, warnings []string) Result {
	return Result{
		IsValid:    len(violations) == 0,
		Violations: violations,
		Warnings:   warnings,
	}
}

// degrade converts an unexpected lookup failure into a conservative
// blocking result instead of propagating the error: a validator failure
// must never silently permit the action.
func (v *Validator) degrade(ctx context.Context, where string, err error) Result {
	return v.degradeAs(ctx, where, "Validation error occurred", err)
}

func (v *Validator) degradeAs(ctx context.Context, where, violation string, err error) Result {
	logging.FromCtx(ctx).Error("validation lookup failed",
		"context", where, "error", err.Error(), "type", "business_rule_validation_error")
	return Result{IsValid: false, Violations: []string{violation}}
}
