package rules

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/ondegooltd/fortisel-api/internal/entity"
)

// In-memory fakes for the lookup ports.

type fakeOrders struct {
	byID        map[string]*domain.Order
	active      int
	activeOnDay int
	created     int
	err         error
}

func (f *fakeOrders) GetByOrderID(_ context.Context, id string) (*domain.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byID[id], nil
}
func (f *fakeOrders) CountActiveForUser(context.Context, string) (int, error) {
	return f.active, f.err
}
func (f *fakeOrders) CountActiveForUserOnDay(context.Context, string, time.Time) (int, error) {
	return f.activeOnDay, f.err
}
func (f *fakeOrders) CountCreatedSince(context.Context, string, time.Time) (int, error) {
	return f.created, f.err
}

type fakeUsers struct {
	byID    map[string]*domain.User
	byEmail map[string]*domain.User
	byPhone map[string]*domain.User
	err     error
}

func (f *fakeUsers) GetByUserID(_ context.Context, id string) (*domain.User, error) {
	return f.byID[id], f.err
}
func (f *fakeUsers) GetByEmail(_ context.Context, e string) (*domain.User, error) {
	return f.byEmail[e], f.err
}
func (f *fakeUsers) GetByPhone(_ context.Context, p string) (*domain.User, error) {
	return f.byPhone[p], f.err
}

type fakeCylinders struct {
	available int
	err       error
}

func (f *fakeCylinders) CountAvailable(context.Context, string) (int, error) {
	return f.available, f.err
}

type fakePayments struct {
	settling   *domain.Payment
	successful int
	err        error
}

func (f *fakePayments) GetSettlingForOrder(context.Context, string) (*domain.Payment, error) {
	return f.settling, f.err
}
func (f *fakePayments) CountSuccessfulForUserSince(context.Context, string, time.Time) (int, error) {
	return f.successful, f.err
}

func activeUser() map[string]*domain.User {
	return map[string]*domain.User{"u1": {UserID: "u1", IsActive: true}}
}

func newTestValidator(o *fakeOrders, u *fakeUsers, c *fakeCylinders, p *fakePayments) *Validator {
	v := NewValidator(o, u, c, p)
	v.now = func() time.Time { return time.Date(2025, 6, 10, 12, 0, 0, 0, time.Local) }
	return v
}

func hasViolation(r Result, substr string) bool {
	for _, v := range r.Violations {
		if strings.Contains(v, substr) {
			return true
		}
	}
	return false
}

func TestValidateOrderCreationPasses(t *testing.T) {
	v := newTestValidator(
		&fakeOrders{}, &fakeUsers{byID: activeUser()},
		&fakeCylinders{available: 5}, &fakePayments{})

	r := v.ValidateOrderCreation(context.Background(), OrderContext{
		UserID:          "u1",
		CylinderSize:    "big",
		Quantity:        1,
		ScheduledDate:   time.Date(2025, 6, 11, 9, 0, 0, 0, time.Local),
		DeliveryAddress: "12 Osu Oxford Street, Accra",
	})
	if !r.IsValid {
		t.Fatalf("expected valid, got violations %v", r.Violations)
	}
	if len(r.Warnings) != 0 {
		t.Errorf("unexpected warnings %v", r.Warnings)
	}
}

func TestValidateOrderCreationViolations(t *testing.T) {
	v := newTestValidator(
		&fakeOrders{activeOnDay: 1, created: 10},
		&fakeUsers{byID: map[string]*domain.User{"u1": {UserID: "u1", IsActive: false}}},
		&fakeCylinders{available: 0}, &fakePayments{})

	r := v.ValidateOrderCreation(context.Background(), OrderContext{
		UserID:          "u1",
		CylinderSize:    "big",
		Quantity:        2,
		ScheduledDate:   time.Date(2025, 6, 9, 9, 0, 0, 0, time.Local), // past
		DeliveryAddress: "short",
	})
	if r.IsValid {
		t.Fatal("expected invalid")
	}
	for _, want := range []string{
		"User account is inactive",
		"Insufficient cylinders available. Requested: 2, Available: 0",
		"Scheduled date must be in the future",
		"User already has an order scheduled for this date",
		"Delivery address must be at least 10 characters long",
		"User has reached the maximum order limit (10 orders per month)",
	} {
		if !hasViolation(r, want) {
			t.Errorf("missing violation %q in %v", want, r.Violations)
		}
	}
}

func TestValidateOrderCreationPendingOrdersWarnOnly(t *testing.T) {
	v := newTestValidator(
		&fakeOrders{active: 2}, &fakeUsers{byID: activeUser()},
		&fakeCylinders{available: 3}, &fakePayments{})

	r := v.ValidateOrderCreation(context.Background(), OrderContext{
		UserID:          "u1",
		CylinderSize:    "small",
		Quantity:        1,
		ScheduledDate:   time.Date(2025, 6, 12, 9, 0, 0, 0, time.Local),
		DeliveryAddress: "12 Osu Oxford Street, Accra",
	})
	if !r.IsValid {
		t.Fatalf("warning must not block: %v", r.Violations)
	}
	if len(r.Warnings) != 1 || r.Warnings[0] != "User has pending orders" {
		t.Errorf("warnings = %v", r.Warnings)
	}
}

func TestValidateOrderCreationDegradesOnLookupError(t *testing.T) {
	v := newTestValidator(
		&fakeOrders{}, &fakeUsers{err: errors.New("db down")},
		&fakeCylinders{}, &fakePayments{})

	r := v.ValidateOrderCreation(context.Background(), OrderContext{UserID: "u1"})
	if r.IsValid {
		t.Fatal("lookup failure must block conservatively")
	}
	if len(r.Violations) != 1 || r.Violations[0] != "Validation error occurred" {
		t.Errorf("violations = %v", r.Violations)
	}
}

func TestValidatePayment(t *testing.T) {
	pendingOrder := map[string]*domain.Order{
		"ORD-1": {OrderID: "ORD-1", Status: domain.OrderPending, TotalAmount: 25},
	}

	t.Run("passes for matching amount", func(t *testing.T) {
		v := newTestValidator(&fakeOrders{byID: pendingOrder},
			&fakeUsers{byID: activeUser()}, &fakeCylinders{}, &fakePayments{})
		r := v.ValidatePayment(context.Background(), PaymentContext{
			OrderID: "ORD-1", UserID: "u1", Amount: 25, PaymentMethod: "card",
		})
		if !r.IsValid {
			t.Fatalf("violations: %v", r.Violations)
		}
	})

	t.Run("rejects amount outside epsilon", func(t *testing.T) {
		v := newTestValidator(&fakeOrders{byID: pendingOrder},
			&fakeUsers{}, &fakeCylinders{}, &fakePayments{})
		r := v.ValidatePayment(context.Background(), PaymentContext{
			OrderID: "ORD-1", UserID: "u1", Amount: 25.02, PaymentMethod: "card",
		})
		if r.IsValid || !hasViolation(r, "does not match order total") {
			t.Errorf("got %+v", r)
		}
	})

	t.Run("accepts amount within epsilon", func(t *testing.T) {
		v := newTestValidator(&fakeOrders{byID: pendingOrder},
			&fakeUsers{}, &fakeCylinders{}, &fakePayments{})
		r := v.ValidatePayment(context.Background(), PaymentContext{
			OrderID: "ORD-1", UserID: "u1", Amount: 25.005, PaymentMethod: "card",
		})
		if !r.IsValid {
			t.Errorf("violations: %v", r.Violations)
		}
	})

	t.Run("rejects double charge", func(t *testing.T) {
		v := newTestValidator(&fakeOrders{byID: pendingOrder}, &fakeUsers{},
			&fakeCylinders{}, &fakePayments{settling: &domain.Payment{PaymentID: "PAY-1"}})
		r := v.ValidatePayment(context.Background(), PaymentContext{
			OrderID: "ORD-1", UserID: "u1", Amount: 25, PaymentMethod: "card",
		})
		if r.IsValid || !hasViolation(r, "Payment already exists for this order") {
			t.Errorf("got %+v", r)
		}
	})

	t.Run("rejects unknown method and non-pending order", func(t *testing.T) {
		orders := map[string]*domain.Order{
			"ORD-2": {OrderID: "ORD-2", Status: domain.OrderConfirmed, TotalAmount: 25},
		}
		v := newTestValidator(&fakeOrders{byID: orders}, &fakeUsers{},
			&fakeCylinders{}, &fakePayments{})
		r := v.ValidatePayment(context.Background(), PaymentContext{
			OrderID: "ORD-2", UserID: "u1", Amount: 25, PaymentMethod: "crypto",
		})
		if r.IsValid {
			t.Fatal("expected invalid")
		}
		if !hasViolation(r, "not in a valid state for payment") || !hasViolation(r, "Invalid payment method: crypto") {
			t.Errorf("violations: %v", r.Violations)
		}
	})

	t.Run("fraud signal warns without blocking", func(t *testing.T) {
		v := newTestValidator(&fakeOrders{byID: pendingOrder}, &fakeUsers{},
			&fakeCylinders{}, &fakePayments{successful: 5})
		r := v.ValidatePayment(context.Background(), PaymentContext{
			OrderID: "ORD-1", UserID: "u1", Amount: 25, PaymentMethod: "card",
		})
		if !r.IsValid {
			t.Fatalf("violations: %v", r.Violations)
		}
		if len(r.Warnings) != 1 {
			t.Errorf("warnings: %v", r.Warnings)
		}
	})
}

func TestValidateRegistration(t *testing.T) {
	taken := &domain.User{UserID: "u9"}

	t.Run("passes", func(t *testing.T) {
		v := newTestValidator(&fakeOrders{}, &fakeUsers{}, &fakeCylinders{}, &fakePayments{})
		r := v.ValidateRegistration(context.Background(), RegistrationContext{
			Email: "ama@example.com", Phone: "+233241234567", Name: "Ama Mensah",
		})
		if !r.IsValid {
			t.Fatalf("violations: %v", r.Violations)
		}
	})

	t.Run("rejects duplicates and bad formats", func(t *testing.T) {
		v := newTestValidator(&fakeOrders{}, &fakeUsers{
			byEmail: map[string]*domain.User{"taken@example.com": taken},
			byPhone: map[string]*domain.User{"0241234567": taken},
		}, &fakeCylinders{}, &fakePayments{})
		r := v.ValidateRegistration(context.Background(), RegistrationContext{
			Email: "taken@example.com", Phone: "0241234567", Name: "A",
		})
		for _, want := range []string{
			"Email already registered",
			"Phone number already registered",
			"Name must be at least 2 characters long",
		} {
			if !hasViolation(r, want) {
				t.Errorf("missing %q in %v", want, r.Violations)
			}
		}
	})

	t.Run("suspicious name warns", func(t *testing.T) {
		v := newTestValidator(&fakeOrders{}, &fakeUsers{}, &fakeCylinders{}, &fakePayments{})
		r := v.ValidateRegistration(context.Background(), RegistrationContext{
			Email: "t@example.com", Phone: "0241234567", Name: "Test Account",
		})
		if !r.IsValid {
			t.Fatalf("warning must not block: %v", r.Violations)
		}
		if len(r.Warnings) != 1 {
			t.Errorf("warnings: %v", r.Warnings)
		}
	})
}

func TestValidateCancellation(t *testing.T) {
	mk := func(status domain.OrderStatus, sched time.Time) *fakeOrders {
		return &fakeOrders{byID: map[string]*domain.Order{
			"ORD-1": {OrderID: "ORD-1", UserID: "u1", Status: status, ScheduledDate: sched},
		}}
	}
	farFuture := time.Date(2025, 6, 11, 12, 0, 0, 0, time.Local)

	t.Run("allows pending order well before delivery", func(t *testing.T) {
		v := newTestValidator(mk(domain.OrderPending, farFuture), &fakeUsers{}, &fakeCylinders{}, &fakePayments{})
		r := v.ValidateCancellation(context.Background(), "ORD-1", "u1")
		if !r.IsValid {
			t.Fatalf("violations: %v", r.Violations)
		}
	})

	t.Run("rejects other user's order", func(t *testing.T) {
		v := newTestValidator(mk(domain.OrderPending, farFuture), &fakeUsers{}, &fakeCylinders{}, &fakePayments{})
		r := v.ValidateCancellation(context.Background(), "ORD-1", "u2")
		if r.IsValid || !hasViolation(r, "Order not found or access denied") {
			t.Errorf("got %+v", r)
		}
	})

	t.Run("rejects terminal and in-transit orders", func(t *testing.T) {
		for status, want := range map[domain.OrderStatus]string{
			domain.OrderDelivered: "Cannot cancel delivered order",
			domain.OrderCancelled: "Order is already cancelled",
			domain.OrderInTransit: "Cannot cancel order that is in transit",
		} {
			v := newTestValidator(mk(status, farFuture), &fakeUsers{}, &fakeCylinders{}, &fakePayments{})
			r := v.ValidateCancellation(context.Background(), "ORD-1", "u1")
			if r.IsValid || !hasViolation(r, want) {
				t.Errorf("status %s: got %+v", status, r)
			}
		}
	})

	t.Run("rejects inside the two hour window", func(t *testing.T) {
		soon := time.Date(2025, 6, 10, 13, 0, 0, 0, time.Local) // 1h after fixed now
		v := newTestValidator(mk(domain.OrderConfirmed, soon), &fakeUsers{}, &fakeCylinders{}, &fakePayments{})
		r := v.ValidateCancellation(context.Background(), "ORD-1", "u1")
		if r.IsValid || !hasViolation(r, "less than 2 hours") {
			t.Errorf("got %+v", r)
		}
	})

	t.Run("denied access reveals nothing about the order", func(t *testing.T) {
		soon := time.Date(2025, 6, 10, 13, 0, 0, 0, time.Local)
		v := newTestValidator(mk(domain.OrderInTransit, soon), &fakeUsers{}, &fakeCylinders{}, &fakePayments{})
		r := v.ValidateCancellation(context.Background(), "ORD-1", "u2")
		if r.IsValid {
			t.Fatal("non-owner cancellation must fail")
		}
		if len(r.Violations) != 1 || !hasViolation(r, "Order not found or access denied") {
			t.Errorf("violations leak order details: %v", r.Violations)
		}
	})
}
