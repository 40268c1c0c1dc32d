package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"account_backend/internal/feature/auth/domain/entity"
)

func TestAuthUsecase_Register(t *testing.T) {
	t.Run("email registration stores normalized email and sends code", func(t *testing.T) {
		env := newTestEnv(t, DefaultPolicy())

		res, err := env.uc.Register(context.Background(), RegisterInput{
			Email:     "  A@X.com ",
			Password:  "Abcd1234",
			FirstName: " Jo ",
		})

		require.NoError(t, err)
		acc := res.Account
		assert.NotEmpty(t, acc.ID)
		assert.Equal(t, "a@x.com", entity.Deref(acc.Email))
		assert.Nil(t, acc.Phone)
		assert.Equal(t, "Jo", acc.FirstName)
		assert.Nil(t, acc.LastName)
		assert.Equal(t, entity.AuthMethodEmail, acc.AuthMethod)
		assert.False(t, acc.IsVerified)
		assert.Equal(t, "hashed:Abcd1234", entity.Deref(acc.PasswordHash))
		assert.Equal(t, NextStepVerify, res.NextStep)
		assert.Equal(t, 60*time.Second, res.ResendAfter)

		n := env.notifier.last()
		assert.Equal(t, ChannelEmail, n.Channel)
		assert.Equal(t, "a@x.com", n.Recipient)
		assert.Equal(t, "123456", n.Code)
		assert.Equal(t, PurposeVerification, n.Purpose)
		assert.Equal(t, 5*time.Minute, n.ExpiresIn)

		stored, err := env.repo.FindByID(context.Background(), acc.ID)
		require.NoError(t, err)
		assert.Equal(t, "123456", entity.Deref(stored.VerificationCode))
		require.NotNil(t, stored.VerificationCodeIssuedAt)
		assert.Equal(t, env.clock.Now(), *stored.VerificationCodeIssuedAt)
	})

	t.Run("phone registration stores digits only and sends sms", func(t *testing.T) {
		env := newTestEnv(t, DefaultPolicy())

		res, err := env.uc.Register(context.Background(), RegisterInput{
			Phone:     "+998 (90) 123-45-67",
			Password:  "Abcd1234",
			FirstName: "Jo",
			LastName:  "Doe",
		})

		require.NoError(t, err)
		assert.Equal(t, "998901234567", entity.Deref(res.Account.Phone))
		assert.Nil(t, res.Account.Email)
		assert.Equal(t, entity.AuthMethodPhone, res.Account.AuthMethod)
		assert.Equal(t, "Doe", entity.Deref(res.Account.LastName))
		assert.Equal(t, ChannelSMS, env.notifier.last().Channel)
		assert.Equal(t, "998901234567", env.notifier.last().Recipient)
	})

	t.Run("email auth method with both identifiers sends email", func(t *testing.T) {
		env := newTestEnv(t, DefaultPolicy())

		_, err := env.uc.Register(context.Background(), RegisterInput{
			Email:      "b@x.com",
			Phone:      "998901234567",
			Password:   "Abcd1234",
			FirstName:  "Jo",
			AuthMethod: "email",
		})

		require.NoError(t, err)
		assert.Equal(t, ChannelEmail, env.notifier.last().Channel)
	})

	t.Run("notifier failure does not fail registration", func(t *testing.T) {
		env := newTestEnv(t, DefaultPolicy())
		env.notifier.err = errors.New("smtp down")

		_, err := env.uc.Register(context.Background(), RegisterInput{
			Email: "c@x.com", Password: "Abcd1234", FirstName: "Jo",
		})

		assert.NoError(t, err)
		assert.Equal(t, 1, env.repo.count())
	})
}

func TestAuthUsecase_Register_Validation(t *testing.T) {
	tests := []struct {
		name       string
		in         RegisterInput
		wantFields []string
	}{
		{
			name:       "collects every violation",
			in:         RegisterInput{Email: "bad", Password: "short", FirstName: "J", LastName: "X"},
			wantFields: []string{"email", "password", "firstName", "lastName"},
		},
		{
			name:       "neither email nor phone",
			in:         RegisterInput{Password: "Abcd1234", FirstName: "Jo"},
			wantFields: []string{"email", "phone", "authMethod"},
		},
		{
			name:       "password without uppercase",
			in:         RegisterInput{Email: "a@x.com", Password: "abcd1234", FirstName: "Jo"},
			wantFields: []string{"password"},
		},
		{
			name:       "password without digit",
			in:         RegisterInput{Email: "a@x.com", Password: "Abcdefgh", FirstName: "Jo"},
			wantFields: []string{"password"},
		},
		{
			name:       "phone of wrong length",
			in:         RegisterInput{Phone: "12345", Password: "Abcd1234", FirstName: "Jo"},
			wantFields: []string{"phone"},
		},
		{
			name:       "phone without digits",
			in:         RegisterInput{Phone: "abc", Password: "Abcd1234", FirstName: "Jo"},
			wantFields: []string{"phone"},
		},
		{
			name:       "external auth method is rejected",
			in:         RegisterInput{Email: "a@x.com", Password: "Abcd1234", FirstName: "Jo", AuthMethod: "external"},
			wantFields: []string{"authMethod"},
		},
		{
			name:       "phone method without phone",
			in:         RegisterInput{Email: "a@x.com", Password: "Abcd1234", FirstName: "Jo", AuthMethod: "phone"},
			wantFields: []string{"phone"},
		},
		{
			name:       "first name blank after trim",
			in:         RegisterInput{Email: "a@x.com", Password: "Abcd1234", FirstName: "  J  "},
			wantFields: []string{"firstName"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, DefaultPolicy())

			res, err := env.uc.Register(context.Background(), tt.in)

			assert.Nil(t, res)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			for _, f := range tt.wantFields {
				assert.Contains(t, verr.Fields, f)
			}
			assert.Len(t, verr.Fields, len(tt.wantFields))
			assert.Zero(t, env.repo.count(), "no account should be created")
			assert.Empty(t, env.notifier.sent)
		})
	}
}

func TestAuthUsecase_Register_Conflicts(t *testing.T) {
	t.Run("same email in different case conflicts on email", func(t *testing.T) {
		env := newTestEnv(t, DefaultPolicy())
		ctx := context.Background()

		_, err := env.uc.Register(ctx, RegisterInput{Email: "A@x.com", Password: "Abcd1234", FirstName: "Jo"})
		require.NoError(t, err)
		_, err = env.uc.Register(ctx, RegisterInput{Email: "a@X.COM", Password: "Abcd1234", FirstName: "Jo"})

		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "email", conflict.Field)
		assert.Equal(t, 1, env.repo.count())
	})

	t.Run("same phone in different formatting conflicts on phone", func(t *testing.T) {
		env := newTestEnv(t, DefaultPolicy())
		ctx := context.Background()

		_, err := env.uc.Register(ctx, RegisterInput{Phone: "+998901234567", Password: "Abcd1234", FirstName: "Jo"})
		require.NoError(t, err)
		_, err = env.uc.Register(ctx, RegisterInput{Phone: "998901234567", Password: "Abcd1234", FirstName: "Jo"})

		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "phone", conflict.Field)
	})

	t.Run("email wins when both identifiers collide", func(t *testing.T) {
		env := newTestEnv(t, DefaultPolicy())
		ctx := context.Background()

		_, err := env.uc.Register(ctx, RegisterInput{Email: "a@x.com", Phone: "998901234567", Password: "Abcd1234", FirstName: "Jo"})
		require.NoError(t, err)
		_, err = env.uc.Register(ctx, RegisterInput{Email: "a@x.com", Phone: "998901234567", Password: "Abcd1234", FirstName: "Jo"})

		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "email", conflict.Field)
	})

	t.Run("two phone-only accounts do not collide on absent email", func(t *testing.T) {
		env := newTestEnv(t, DefaultPolicy())
		ctx := context.Background()

		_, err := env.uc.Register(ctx, RegisterInput{Phone: "998901234567", Password: "Abcd1234", FirstName: "Jo"})
		require.NoError(t, err)
		_, err = env.uc.Register(ctx, RegisterInput{Phone: "998901234568", Password: "Abcd1234", FirstName: "Al"})
		require.NoError(t, err)

		assert.Equal(t, 2, env.repo.count())
	})

	t.Run("store conflict during create is returned as conflict", func(t *testing.T) {
		repo := &mockAccountRepository{
			CreateFunc: func(ctx context.Context, a *entity.Account) error {
				return &ConflictError{Field: "email"}
			},
		}
		uc := newMockUsecase(repo, DefaultPolicy())

		_, err := uc.Register(context.Background(), RegisterInput{Email: "a@x.com", Password: "Abcd1234", FirstName: "Jo"})

		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "email", conflict.Field)
	})

	t.Run("store failure during lookup is passed through", func(t *testing.T) {
		storeErr := errors.New("connection reset")
		repo := &mockAccountRepository{
			FindByEmailOrPhoneFunc: func(ctx context.Context, email, phone string) (*entity.Account, error) {
				return nil, storeErr
			},
		}
		uc := newMockUsecase(repo, DefaultPolicy())

		_, err := uc.Register(context.Background(), RegisterInput{Email: "a@x.com", Password: "Abcd1234", FirstName: "Jo"})

		assert.ErrorIs(t, err, storeErr)
	})
}
