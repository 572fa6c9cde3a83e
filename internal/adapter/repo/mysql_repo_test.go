package repo

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"

	domain "github.com/ondegooltd/fortisel-api/internal/entity"
)

// Integration tests need a real MySQL; they skip when unavailable.

func getDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		t.Skipf("MYSQL_DSN not set, skipping integration test")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("mysql open: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		t.Skipf("mysql unreachable: %v", err)
	}
	return db
}

func setupTables(t *testing.T, db *sql.DB) {
	t.Helper()
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			order_id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			cylinder_size VARCHAR(16) NOT NULL,
			quantity INT NOT NULL,
			refill_amount DOUBLE NOT NULL,
			delivery_fee DOUBLE NOT NULL,
			total_amount DOUBLE NOT NULL,
			pickup_address VARCHAR(255),
			drop_off_address VARCHAR(255) NOT NULL,
			receiver_name VARCHAR(128) NOT NULL,
			receiver_phone VARCHAR(32) NOT NULL,
			payment_method VARCHAR(32) NOT NULL,
			notes TEXT,
			status VARCHAR(24) NOT NULL,
			scheduled_date DATETIME NOT NULL,
			scheduled_time VARCHAR(8),
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS payments (
			payment_id VARCHAR(64) PRIMARY KEY,
			order_id VARCHAR(64) NOT NULL,
			user_id VARCHAR(64) NOT NULL,
			amount DOUBLE NOT NULL,
			currency VARCHAR(8) NOT NULL,
			status VARCHAR(24) NOT NULL,
			provider VARCHAR(24) NOT NULL,
			method VARCHAR(32) NOT NULL,
			provider_reference VARCHAR(128) UNIQUE,
			provider_transaction_id VARCHAR(128),
			description VARCHAR(255),
			failure_reason VARCHAR(255),
			processed_at DATETIME NULL,
			webhook_data BLOB,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}
	t.Cleanup(func() {
		_, _ = db.Exec(`DELETE FROM orders WHERE user_id LIKE 'it-%'`)
		_, _ = db.Exec(`DELETE FROM payments WHERE user_id LIKE 'it-%'`)
	})
}

func insertOrder(t *testing.T, db *sql.DB, o *domain.Order) {
	t.Helper()
	tx, err := db.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if err := NewMySQLOrderRepo(db).CreateTx(context.Background(), tx, o); err != nil {
		t.Fatalf("CreateTx: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
}

func TestOrderGuardedTransition(t *testing.T) {
	db := getDB(t)
	defer db.Close()
	setupTables(t, db)
	r := NewMySQLOrderRepo(db)
	ctx := context.Background()

	o := &domain.Order{
		OrderID: "ORD-it-1", UserID: "it-user-1", CylinderSize: "14.5kg", Quantity: 1,
		RefillAmount: 230, DeliveryFee: 20, TotalAmount: 250,
		DropOffAddress: "12 Kotobabi High Street, Accra",
		ReceiverName:   "Ama Mensah", ReceiverPhone: "+233241234567",
		PaymentMethod: "card", Status: domain.OrderPending,
		ScheduledDate: time.Now().AddDate(0, 0, 2),
	}
	insertOrder(t, db, o)

	ok, err := r.UpdateStatusIf(ctx, o.OrderID, domain.OrderPending, domain.OrderConfirmed)
	if err != nil || !ok {
		t.Fatalf("UpdateStatusIf = %v, %v", ok, err)
	}

	// stale from-status loses
	ok, err = r.UpdateStatusIf(ctx, o.OrderID, domain.OrderPending, domain.OrderCancelled)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("stale guarded update must not apply")
	}

	got, err := r.GetByOrderID(ctx, o.OrderID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.OrderConfirmed {
		t.Errorf("status = %s, want confirmed", got.Status)
	}
}

func TestOrderGetMissingReturnsNil(t *testing.T) {
	db := getDB(t)
	defer db.Close()
	setupTables(t, db)

	got, err := NewMySQLOrderRepo(db).GetByOrderID(context.Background(), "ORD-it-nope")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func TestPaymentReferenceRoundTrip(t *testing.T) {
	db := getDB(t)
	defer db.Close()
	setupTables(t, db)
	r := NewMySQLPaymentRepo(db)
	ctx := context.Background()

	p := &domain.Payment{
		PaymentID: "PAY-it-1", OrderID: "ORD-it-1", UserID: "it-user-1",
		Amount: 250, Currency: "GHS", Status: domain.PaymentPending,
		Provider: domain.ProviderPaystack, Method: domain.MethodCard,
	}
	if err := r.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := r.SetProviderReference(ctx, p.PaymentID, "ps_it_ref_1"); err != nil {
		t.Fatalf("SetProviderReference: %v", err)
	}

	got, err := r.GetByProviderReference(ctx, "ps_it_ref_1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.PaymentID != p.PaymentID {
		t.Fatalf("lookup by reference = %+v", got)
	}

	now := time.Now()
	ok, err := r.UpdateStatusIf(ctx, p.PaymentID, domain.PaymentPending, domain.PaymentSuccessful,
		[]byte(`{"status":"success"}`), &now)
	if err != nil || !ok {
		t.Fatalf("UpdateStatusIf = %v, %v", ok, err)
	}

	got, err = r.GetByPaymentID(ctx, p.PaymentID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.PaymentSuccessful {
		t.Errorf("status = %s", got.Status)
	}
	if got.ProcessedAt == nil {
		t.Error("processed_at not persisted")
	}

	// settled payments resist downgrades
	ok, err = r.UpdateStatusIf(ctx, p.PaymentID, domain.PaymentPending, domain.PaymentFailed, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("guarded update with stale from-status must not apply")
	}
}

func TestPaymentSettlingLookup(t *testing.T) {
	db := getDB(t)
	defer db.Close()
	setupTables(t, db)
	r := NewMySQLPaymentRepo(db)
	ctx := context.Background()

	p := &domain.Payment{
		PaymentID: "PAY-it-2", OrderID: "ORD-it-2", UserID: "it-user-2",
		Amount: 250, Currency: "GHS", Status: domain.PaymentProcessing,
		Provider: domain.ProviderPaystack, Method: domain.MethodMobileMoney,
	}
	if err := r.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := r.GetSettlingForOrder(ctx, "ORD-it-2")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("processing payment should count as settling")
	}

	none, err := r.GetSettlingForOrder(ctx, "ORD-it-none")
	if err != nil {
		t.Fatal(err)
	}
	if none != nil {
		t.Errorf("got %+v, want nil", none)
	}
}
