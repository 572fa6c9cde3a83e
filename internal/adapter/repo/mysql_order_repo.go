package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	domain "github.com/ondegooltd/fortisel-api/internal/entity"
	"github.com/ondegooltd/fortisel-api/internal/rules"
	"github.com/ondegooltd/fortisel-api/internal/usecase"
)

var ErrNotFound = errors.New("not found")

const orderColumns = `order_id,user_id,cylinder_size,quantity,refill_amount,delivery_fee,total_amount,
pickup_address,drop_off_address,receiver_name,receiver_phone,payment_method,notes,status,
scheduled_date,scheduled_time,created_at,updated_at`

type MySQLOrderRepo struct{ db *sql.DB }

func NewMySQLOrderRepo(db *sql.DB) *MySQLOrderRepo { return &MySQLOrderRepo{db: db} }

func (r *MySQLOrderRepo) CreateTx(ctx context.Context, tx *sql.Tx, o *domain.Order) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO orders (`+orderColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,NOW(),NOW())
`, o.OrderID, o.UserID, o.CylinderSize, o.Quantity, o.RefillAmount, o.DeliveryFee, o.TotalAmount,
		o.PickupAddress, o.DropOffAddress, o.ReceiverName, o.ReceiverPhone, o.PaymentMethod,
		o.Notes, o.Status, o.ScheduledDate, o.ScheduledTime)
	return err
}

func (r *MySQLOrderRepo) GetByOrderID(ctx context.Context, orderID string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+orderColumns+` FROM orders WHERE order_id=?`, orderID)
	return scanOrder(row)
}

func (r *MySQLOrderRepo) UpdateStatusIf(ctx context.Context, orderID string, from, to domain.OrderStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
        UPDATE orders
        SET status = ?, updated_at = NOW()
        WHERE order_id = ? AND status = ?`,
		to, orderID, from,
	)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	// rows == 0 → nothing matched (either not found or status mismatch)
	return rows > 0, nil
}

// activeStatuses is every non-terminal order status; keep in sync with
// the order state machine.
const activeStatuses = `'pending','confirmed','processing','in_transit','payment_failed'`

func (r *MySQLOrderRepo) CountActiveForUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM orders WHERE user_id=? AND status IN (`+activeStatuses+`)`, userID).Scan(&n)
	return n, err
}

func (r *MySQLOrderRepo) CountActiveForUserOnDay(ctx context.Context, userID string, day time.Time) (int, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)
	var n int
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM orders
WHERE user_id=? AND scheduled_date >= ? AND scheduled_date < ? AND status IN (`+activeStatuses+`)`,
		userID, start, end).Scan(&n)
	return n, err
}

func (r *MySQLOrderRepo) CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM orders WHERE user_id=? AND created_at >= ?`, userID, since).Scan(&n)
	return n, err
}

func scanOrder(row *sql.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.OrderID, &o.UserID, &o.CylinderSize, &o.Quantity, &o.RefillAmount,
		&o.DeliveryFee, &o.TotalAmount, &o.PickupAddress, &o.DropOffAddress, &o.ReceiverName,
		&o.ReceiverPhone, &o.PaymentMethod, &o.Notes, &o.Status, &o.ScheduledDate,
		&o.ScheduledTime, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

var (
	_ usecase.OrderRepo = (*MySQLOrderRepo)(nil)
	_ rules.OrderReader = (*MySQLOrderRepo)(nil)
)
