package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"account_backend/internal/feature/auth/domain/entity"
)

// RegisterInput is a password-path registration request as received.
type RegisterInput struct {
	Email      string
	Phone      string
	Password   string
	FirstName  string
	LastName   string
	AuthMethod string
}

// Register creates an unverified password account and sends it a verification code.
func (u *authUsecase) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	email := NormalizeEmail(in.Email)
	phone := NormalizePhone(in.Phone)
	firstName := strings.TrimSpace(in.FirstName)
	lastName := strings.TrimSpace(in.LastName)

	method := strings.TrimSpace(in.AuthMethod)
	if method == "" {
		switch {
		case email != "":
			method = string(entity.AuthMethodEmail)
		case strings.TrimSpace(in.Phone) != "":
			method = string(entity.AuthMethodPhone)
		}
	}

	fields := registerFields{
		Email:      email,
		Phone:      phoneForValidation(in.Phone),
		Password:   in.Password,
		FirstName:  firstName,
		LastName:   lastName,
		AuthMethod: method,
	}
	if err := u.validateRegistration(fields); err != nil {
		return nil, err
	}

	existing, err := u.accounts.FindByEmailOrPhone(ctx, email, phone)
	switch {
	case err == nil:
		return nil, conflictFor(existing, email)
	case !errors.Is(err, ErrAccountNotFound):
		return nil, err
	}

	hash, err := u.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	code, issuedAt, err := u.codes.Issue()
	if err != nil {
		return nil, fmt.Errorf("failed to issue verification code: %w", err)
	}

	acc := &entity.Account{
		Email:        entity.StringPtr(email),
		Phone:        entity.StringPtr(phone),
		PasswordHash: &hash,
		FirstName:    firstName,
		LastName:     entity.StringPtr(lastName),
		AuthMethod:   entity.AuthMethod(method),
	}
	acc.SetVerificationCode(code, issuedAt)

	if err := u.accounts.Create(ctx, acc); err != nil {
		return nil, err
	}
	u.logger.Info("account registered",
		zap.String("account_id", acc.ID),
		zap.String("auth_method", method))

	u.dispatchCode(ctx, acc, verificationChannel(acc), code, PurposeVerification)

	return &RegisterResult{
		Account:     acc,
		NextStep:    NextStepVerify,
		ResendAfter: u.policy.ResendCooldown,
	}, nil
}

// validateRegistration runs the field rules and adds the rule that the
// chosen auth method's identifier is present.
func (u *authUsecase) validateRegistration(f registerFields) error {
	fieldErrs := map[string]string{}
	if err := u.validateStruct(f); err != nil {
		var verr *ValidationError
		if !errors.As(err, &verr) {
			return err
		}
		fieldErrs = verr.Fields
	}
	switch entity.AuthMethod(f.AuthMethod) {
	case entity.AuthMethodEmail:
		if f.Email == "" {
			if _, ok := fieldErrs["email"]; !ok {
				fieldErrs["email"] = "is required when authMethod is email"
			}
		}
	case entity.AuthMethodPhone:
		if f.Phone == "" {
			if _, ok := fieldErrs["phone"]; !ok {
				fieldErrs["phone"] = "is required when authMethod is phone"
			}
		}
	}
	if len(fieldErrs) > 0 {
		return &ValidationError{Fields: fieldErrs}
	}
	return nil
}

// conflictFor names the colliding field; email wins when both could match.
func conflictFor(existing *entity.Account, email string) error {
	if email != "" && entity.Deref(existing.Email) == email {
		return &ConflictError{Field: "email"}
	}
	return &ConflictError{Field: "phone"}
}
