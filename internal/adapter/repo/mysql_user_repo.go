package repo

import (
	"context"
	"database/sql"
	"errors"

	domain "github.com/ondegooltd/fortisel-api/internal/entity"
	"github.com/ondegooltd/fortisel-api/internal/rules"
	"github.com/ondegooltd/fortisel-api/internal/usecase"
)

type MySQLUserRepo struct{ db *sql.DB }

func NewMySQLUserRepo(db *sql.DB) *MySQLUserRepo { return &MySQLUserRepo{db: db} }

func (r *MySQLUserRepo) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO users (user_id,email,phone,name,password_hash,is_active,created_at)
VALUES (?,?,?,?,?,?,NOW())
`, u.UserID, u.Email, u.Phone, u.Name, u.PasswordHash, u.IsActive)
	return err
}

func (r *MySQLUserRepo) GetByUserID(ctx context.Context, userID string) (*domain.User, error) {
	return r.getBy(ctx, "user_id", userID)
}

func (r *MySQLUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getBy(ctx, "email", email)
}

func (r *MySQLUserRepo) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return r.getBy(ctx, "phone", phone)
}

func (r *MySQLUserRepo) getBy(ctx context.Context, column, value string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT user_id,email,phone,name,password_hash,is_active,created_at
FROM users WHERE `+column+`=?`, value)
	var u domain.User
	err := row.Scan(&u.UserID, &u.Email, &u.Phone, &u.Name, &u.PasswordHash, &u.IsActive, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

var (
	_ usecase.UserRepo = (*MySQLUserRepo)(nil)
	_ rules.UserReader = (*MySQLUserRepo)(nil)
)
