package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"account_backend/internal/feature/auth/domain/entity"
)

// LoginInput identifies the account by email or phone.
type LoginInput struct {
	Email    string
	Phone    string
	Password string
}

// Login authenticates a password account.
// Unknown identifier yields ErrAccountNotFound, a wrong password or an
// account without a password yields ErrInvalidCredentials, and a correct
// password on an unverified account yields *UnverifiedError.
func (u *authUsecase) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	email := NormalizeEmail(in.Email)
	phone := ""
	if in.Phone != "" {
		phone = phoneForValidation(in.Phone)
	}
	if err := u.validateStruct(loginFields{Email: email, Phone: phone, Password: in.Password}); err != nil {
		return nil, err
	}

	acc, err := u.accounts.FindByEmailOrPhone(ctx, email, phone)
	if err != nil {
		return nil, err
	}

	// パスワードを持たないアカウント（外部ID連携）は常に失敗させる
	if !acc.HasPassword() || !u.hasher.Verify(in.Password, *acc.PasswordHash) {
		u.logger.Info("login rejected: password mismatch", zap.String("account_id", acc.ID))
		return nil, ErrInvalidCredentials
	}
	if !acc.IsVerified {
		return nil, &UnverifiedError{AccountID: acc.ID}
	}

	u.logger.Info("account login successful", zap.String("account_id", acc.ID))
	return u.issueToken(acc)
}

// UpdatePasswordInput is an out-of-band password reset keyed by phone.
// Code is required only under ResetWithCode.
type UpdatePasswordInput struct {
	Phone       string
	NewPassword string
	Code        string
}

// UpdatePassword overwrites the password of the account owning the phone.
// Under ResetDirect no prior proof is asked for. Under ResetWithCode the
// code must match the outstanding reset code. Either way the reset code
// is cleared.
func (u *authUsecase) UpdatePassword(ctx context.Context, in UpdatePasswordInput) error {
	phone := phoneForValidation(in.Phone)
	fieldErrs := map[string]string{}
	collect := func(err error) error {
		var verr *ValidationError
		if !errors.As(err, &verr) {
			return err
		}
		for k, v := range verr.Fields {
			fieldErrs[k] = v
		}
		return nil
	}
	if err := u.validateStruct(updatePasswordFields{Phone: phone, NewPassword: in.NewPassword}); err != nil {
		if err := collect(err); err != nil {
			return err
		}
	}
	if u.policy.ResetPolicy == ResetWithCode {
		if err := u.validateStruct(resetCodeFields{Code: in.Code}); err != nil {
			if err := collect(err); err != nil {
				return err
			}
		}
	}
	if len(fieldErrs) > 0 {
		return &ValidationError{Fields: fieldErrs}
	}

	var (
		acc  *entity.Account
		hash string
	)
	err := u.retryOnConcurrentUpdate(ctx, func() error {
		var err error
		acc, err = u.accounts.FindByEmailOrPhone(ctx, "", phone)
		if err != nil {
			return err
		}

		if u.policy.ResetPolicy == ResetWithCode {
			if err := u.matchCode(acc.ResetCode, acc.ResetCodeIssuedAt, in.Code); err != nil {
				return err
			}
			// コードの受信で電話番号の所有が確認できる
			acc.MarkVerified()
		}
		acc.ClearResetCode()

		if hash == "" {
			if hash, err = u.hasher.Hash(in.NewPassword); err != nil {
				return fmt.Errorf("failed to hash password: %w", err)
			}
		}
		acc.PasswordHash = &hash
		return u.accounts.Update(ctx, acc)
	})
	if err != nil {
		return err
	}

	u.logger.Info("password updated",
		zap.String("account_id", acc.ID),
		zap.String("reset_policy", string(u.policy.ResetPolicy)))
	return nil
}
