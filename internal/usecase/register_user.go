package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	domain "github.com/ondegooltd/fortisel-api/internal/entity"
	"github.com/ondegooltd/fortisel-api/internal/logging"
	"github.com/ondegooltd/fortisel-api/internal/rules"
)

type RegisterUserInput struct {
	Email    string
	Phone    string
	Name     string
	Password string
}

// RegisterUser validates and creates a customer account.
type RegisterUser struct {
	users     UserRepo
	validator *rules.Validator
}

func NewRegisterUser(users UserRepo, validator *rules.Validator) *RegisterUser {
	return &RegisterUser{users: users, validator: validator}
}

func (uc *RegisterUser) Register(ctx context.Context, in RegisterUserInput) (*domain.User, error) {
	res := uc.validator.ValidateRegistration(ctx, rules.RegistrationContext{
		Email: in.Email,
		Phone: in.Phone,
		Name:  in.Name,
	})
	if !res.IsValid {
		return nil, &RuleViolationError{Action: "user_registration", Violations: res.Violations}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := &domain.User{
		UserID:       "USR-" + uuid.NewString(),
		Email:        in.Email,
		Phone:        in.Phone,
		Name:         in.Name,
		PasswordHash: string(hash),
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
	if err := uc.users.Create(ctx, u); err != nil {
		return nil, err
	}

	logging.FromCtx(ctx).Info("user registered",
		"user_id", u.UserID, "type", "user_registered")
	return u, nil
}
