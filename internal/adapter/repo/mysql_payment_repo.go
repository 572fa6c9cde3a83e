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

const paymentColumns = `payment_id,order_id,user_id,amount,currency,status,provider,method,
provider_reference,provider_transaction_id,description,failure_reason,processed_at,webhook_data,
created_at,updated_at`

type MySQLPaymentRepo struct{ db *sql.DB }

func NewMySQLPaymentRepo(db *sql.DB) *MySQLPaymentRepo { return &MySQLPaymentRepo{db: db} }

func (r *MySQLPaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO payments (`+paymentColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,NOW(),NOW())
`, p.PaymentID, p.OrderID, p.UserID, p.Amount, p.Currency, p.Status, p.Provider, p.Method,
		nullStr(p.ProviderReference), nullStr(p.ProviderTransactionID), p.Description,
		nullStr(p.FailureReason), p.ProcessedAt, p.WebhookData)
	return err
}

func (r *MySQLPaymentRepo) GetByPaymentID(ctx context.Context, paymentID string) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+paymentColumns+` FROM payments WHERE payment_id=?`, paymentID)
	return scanPayment(row)
}

func (r *MySQLPaymentRepo) GetByProviderReference(ctx context.Context, reference string) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+paymentColumns+` FROM payments WHERE provider_reference=?`, reference)
	return scanPayment(row)
}

func (r *MySQLPaymentRepo) SetProviderReference(ctx context.Context, paymentID, reference string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE payments SET provider_reference=?, updated_at=NOW() WHERE payment_id=?`, reference, paymentID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MySQLPaymentRepo) UpdateStatusIf(ctx context.Context, paymentID string, from, to domain.PaymentStatus,
	webhookData []byte, processedAt *time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
        UPDATE payments
        SET status = ?, webhook_data = COALESCE(?, webhook_data),
            processed_at = COALESCE(?, processed_at), updated_at = NOW()
        WHERE payment_id = ? AND status = ?`,
		to, webhookData, processedAt, paymentID, from,
	)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *MySQLPaymentRepo) GetSettlingForOrder(ctx context.Context, orderID string) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+paymentColumns+` FROM payments
WHERE order_id=? AND status IN ('successful','processing')
LIMIT 1`, orderID)
	return scanPayment(row)
}

func (r *MySQLPaymentRepo) CountSuccessfulForUserSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM payments WHERE user_id=? AND status='successful' AND created_at >= ?`,
		userID, since).Scan(&n)
	return n, err
}

func scanPayment(row *sql.Row) (*domain.Payment, error) {
	var (
		p         domain.Payment
		ref, txID sql.NullString
		desc, rsn sql.NullString
		processed sql.NullTime
	)
	err := row.Scan(&p.PaymentID, &p.OrderID, &p.UserID, &p.Amount, &p.Currency, &p.Status,
		&p.Provider, &p.Method, &ref, &txID, &desc, &rsn, &processed, &p.WebhookData,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.ProviderReference = ref.String
	p.ProviderTransactionID = txID.String
	p.Description = desc.String
	p.FailureReason = rsn.String
	if processed.Valid {
		t := processed.Time
		p.ProcessedAt = &t
	}
	return &p, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var (
	_ usecase.PaymentRepo = (*MySQLPaymentRepo)(nil)
	_ rules.PaymentReader = (*MySQLPaymentRepo)(nil)
)
