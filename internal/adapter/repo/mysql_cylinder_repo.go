package repo

import (
	"context"
	"database/sql"

	"github.com/ondegooltd/fortisel-api/internal/rules"
)

type MySQLCylinderRepo struct{ db *sql.DB }

func NewMySQLCylinderRepo(db *sql.DB) *MySQLCylinderRepo { return &MySQLCylinderRepo{db: db} }

func (r *MySQLCylinderRepo) CountAvailable(ctx context.Context, size string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM cylinders WHERE size=? AND status='AVAILABLE'`, size).Scan(&n)
	return n, err
}

var _ rules.CylinderReader = (*MySQLCylinderRepo)(nil)
