package usecase

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"account_backend/internal/feature/auth/domain/entity"
)

// Verify checks a code against the account's outstanding code and, on
// success, marks the account verified and returns a token.
//
// Failure order: missing id or code, malformed code, unknown account,
// already verified, wrong code, stale code.
func (u *authUsecase) Verify(ctx context.Context, accountID, code string) (*AuthResult, error) {
	accountID = strings.TrimSpace(accountID)
	if err := u.validateStruct(verifyFields{AccountID: accountID, Code: code}); err != nil {
		return nil, err
	}

	var acc *entity.Account
	err := u.retryOnConcurrentUpdate(ctx, func() error {
		var err error
		acc, err = u.accounts.FindByID(ctx, accountID)
		if err != nil {
			return err
		}
		if acc.IsVerified {
			return ErrAlreadyVerified
		}
		if err := u.matchCode(acc.VerificationCode, acc.VerificationCodeIssuedAt, code); err != nil {
			return err
		}
		acc.MarkVerified()
		return u.accounts.Update(ctx, acc)
	})
	if err != nil {
		return nil, err
	}
	u.logger.Info("account verified", zap.String("account_id", acc.ID))

	return u.issueToken(acc)
}

// ResendCode issues a new code to an unverified account once the cooldown
// since the previous issuance has elapsed. It returns the cooldown that now
// applies to the next resend.
func (u *authUsecase) ResendCode(ctx context.Context, accountID string) (time.Duration, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return 0, &ValidationError{Fields: map[string]string{"accountId": "is required"}}
	}

	var acc *entity.Account
	err := u.retryOnConcurrentUpdate(ctx, func() error {
		var err error
		acc, err = u.accounts.FindByID(ctx, accountID)
		if err != nil {
			return err
		}
		if acc.IsVerified {
			return ErrAlreadyVerified
		}
		code, issuedAt, err := u.issueCode(acc.VerificationCodeIssuedAt)
		if err != nil {
			return err
		}
		acc.SetVerificationCode(code, issuedAt)
		return u.accounts.Update(ctx, acc)
	})
	if err != nil {
		return 0, err
	}

	u.dispatchCode(ctx, acc, verificationChannel(acc), *acc.VerificationCode, PurposeVerification)
	return u.policy.ResendCooldown, nil
}

// RequestPasswordResetCode sends a fresh reset code to the phone of an
// account, verified or not, subject to the same cooldown as ResendCode.
// The reset code is stored apart from the verification code.
func (u *authUsecase) RequestPasswordResetCode(ctx context.Context, phone string) (time.Duration, error) {
	normalized := phoneForValidation(phone)
	if err := u.validateStruct(struct {
		Phone string `json:"phone" validate:"required,digits"`
	}{Phone: normalized}); err != nil {
		return 0, err
	}

	var acc *entity.Account
	err := u.retryOnConcurrentUpdate(ctx, func() error {
		var err error
		acc, err = u.accounts.FindByEmailOrPhone(ctx, "", normalized)
		if err != nil {
			return err
		}
		code, issuedAt, err := u.issueCode(acc.ResetCodeIssuedAt)
		if err != nil {
			return err
		}
		acc.SetResetCode(code, issuedAt)
		return u.accounts.Update(ctx, acc)
	})
	if err != nil {
		return 0, err
	}

	u.dispatchCode(ctx, acc, ChannelSMS, *acc.ResetCode, PurposePasswordReset)
	return u.policy.ResendCooldown, nil
}

// issueCode enforces the cooldown against the previous issuance time,
// then returns a new code and its issuance time.
func (u *authUsecase) issueCode(prevIssuedAt *time.Time) (string, time.Time, error) {
	if err := u.checkCooldown(prevIssuedAt); err != nil {
		return "", time.Time{}, err
	}
	code, issuedAt, err := u.codes.Issue()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to issue verification code: %w", err)
	}
	return code, issuedAt, nil
}

// matchCode compares the presented code exactly, then checks freshness
// against the stored issuance time.
func (u *authUsecase) matchCode(stored *string, issuedAt *time.Time, code string) error {
	if stored == nil || issuedAt == nil {
		return ErrInvalidCode
	}
	if subtle.ConstantTimeCompare([]byte(*stored), []byte(code)) != 1 {
		return ErrInvalidCode
	}
	if !u.codes.IsFresh(*issuedAt, u.now(), u.policy.CodeTTL) {
		return ErrCodeExpired
	}
	return nil
}
