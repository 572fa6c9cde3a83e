package repo

import (
	"context"
	"database/sql"

	"github.com/ondegooltd/fortisel-api/internal/usecase"
)

// MySQLWebhookLogRepo keeps an append-only log of gateway deliveries for
// dispute handling and replay investigation.
type MySQLWebhookLogRepo struct{ db *sql.DB }

func NewMySQLWebhookLogRepo(db *sql.DB) *MySQLWebhookLogRepo { return &MySQLWebhookLogRepo{db: db} }

func (r *MySQLWebhookLogRepo) RecordDelivery(ctx context.Context, reference, event string, payload []byte, applied bool) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO webhook_deliveries (provider_reference,event,payload,applied,received_at)
VALUES (?,?,?,?,NOW())
`, reference, event, payload, applied)
	return err
}

var _ usecase.WebhookAudit = (*MySQLWebhookLogRepo)(nil)
