package usecase

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"account_backend/internal/feature/auth/domain/entity"
)

// Federated payload keys as sent by the chat-platform login widget.
const (
	fieldExternalID = "id"
	fieldFirstName  = "first_name"
	fieldLastName   = "last_name"
	fieldUsername   = "username"
	fieldPhotoURL   = "photo_url"
	fieldHash       = "hash"

	defaultFirstName = "User"
)

// FederatedLogin signs in with a provider-signed payload, creating the
// account on first sight and refreshing its profile afterwards.
// payload holds every field as a string, including "hash".
func (u *authUsecase) FederatedLogin(ctx context.Context, payload map[string]string) (*AuthResult, error) {
	if len(payload) == 0 {
		return nil, &ValidationError{Fields: map[string]string{"telegramData": "is required"}}
	}

	hash := payload[fieldHash]
	fields := make(map[string]string, len(payload))
	for k, v := range payload {
		if k != fieldHash {
			fields[k] = v
		}
	}

	externalID := strings.TrimSpace(fields[fieldExternalID])
	switch {
	case externalID == "":
		return nil, &ValidationError{Fields: map[string]string{fieldExternalID: "is required"}}
	case !isDigits(externalID):
		return nil, &ValidationError{Fields: map[string]string{fieldExternalID: "must contain digits only"}}
	}

	if err := u.federated.Verify(fields, hash); err != nil {
		return nil, err
	}

	var acc *entity.Account
	err := u.retryOnConcurrentUpdate(ctx, func() error {
		var err error
		acc, err = u.accounts.FindByExternalID(ctx, externalID)
		switch {
		case errors.Is(err, ErrAccountNotFound):
			acc, err = u.createFederated(ctx, externalID, fields)
			return err
		case err != nil:
			return err
		}
		if !refreshProfile(acc, fields) {
			return nil
		}
		if err := u.accounts.Update(ctx, acc); err != nil {
			return err
		}
		u.logger.Info("federated profile refreshed", zap.String("account_id", acc.ID))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return u.issueToken(acc)
}

// createFederated stores a new, already verified external account with no password.
func (u *authUsecase) createFederated(ctx context.Context, externalID string, fields map[string]string) (*entity.Account, error) {
	firstName := strings.TrimSpace(fields[fieldFirstName])
	if firstName == "" {
		firstName = defaultFirstName
	}
	acc := &entity.Account{
		ExternalID:       &externalID,
		ExternalUsername: entity.StringPtr(strings.TrimSpace(fields[fieldUsername])),
		PhotoURL:         strings.TrimSpace(fields[fieldPhotoURL]),
		FirstName:        firstName,
		LastName:         entity.StringPtr(strings.TrimSpace(fields[fieldLastName])),
		AuthMethod:       entity.AuthMethodExternal,
		IsVerified:       true,
	}
	// 同時リクエストによる重複はアダプタがConflictErrorに変換する
	if err := u.accounts.Create(ctx, acc); err != nil {
		return nil, err
	}
	u.logger.Info("federated account created", zap.String("account_id", acc.ID))
	return acc, nil
}

// refreshProfile copies supplied profile fields onto acc and reports whether
// anything changed. Identity fields are never touched.
func refreshProfile(acc *entity.Account, fields map[string]string) bool {
	changed := false
	if v := strings.TrimSpace(fields[fieldFirstName]); v != "" && v != acc.FirstName {
		acc.FirstName = v
		changed = true
	}
	if v := strings.TrimSpace(fields[fieldLastName]); v != "" && v != entity.Deref(acc.LastName) {
		acc.LastName = &v
		changed = true
	}
	if v := strings.TrimSpace(fields[fieldUsername]); v != "" && v != entity.Deref(acc.ExternalUsername) {
		acc.ExternalUsername = &v
		changed = true
	}
	if v := strings.TrimSpace(fields[fieldPhotoURL]); v != "" && v != acc.PhotoURL {
		acc.PhotoURL = v
		changed = true
	}
	return changed
}
