package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"account_backend/internal/feature/auth/domain/entity"
)

// registerEmail creates an unverified account holding code "123456".
func registerEmail(t *testing.T, env *testEnv) *entity.Account {
	t.Helper()
	res, err := env.uc.Register(context.Background(), RegisterInput{
		Email: "a@x.com", Password: "Abcd1234", FirstName: "Jo",
	})
	require.NoError(t, err)
	return res.Account
}

func TestAuthUsecase_Verify(t *testing.T) {
	t.Run("correct fresh code verifies and issues token", func(t *testing.T) {
		env := newTestEnv(t, DefaultPolicy())
		acc := registerEmail(t, env)

		res, err := env.uc.Verify(context.Background(), acc.ID, "123456")

		require.NoError(t, err)
		assert.True(t, res.Account.IsVerified)
		assert.Equal(t, "token-"+acc.ID, res.Token)

		stored, err := env.repo.FindByID(context.Background(), acc.ID)
		require.NoError(t, err)
		assert.True(t, stored.IsVerified)
		assert.Nil(t, stored.VerificationCode)
		assert.Nil(t, stored.VerificationCodeIssuedAt)
	})

	t.Run("code exactly at the window boundary is accepted", func(t *testing.T) {
		env := newTestEnv(t, DefaultPolicy())
		acc := registerEmail(t, env)
		env.clock.Advance(5 * time.Minute)

		_, err := env.uc.Verify(context.Background(), acc.ID, "123456")

		assert.NoError(t, err)
	})

	t.Run("code one unit past the window is expired", func(t *testing.T) {
		env := newTestEnv(t, DefaultPolicy())
		acc := registerEmail(t, env)
		env.clock.Advance(5*time.Minute + time.Nanosecond)

		_, err := env.uc.Verify(context.Background(), acc.ID, "123456")

		assert.ErrorIs(t, err, ErrCodeExpired)
		stored, _ := env.repo.FindByID(context.Background(), acc.ID)
		assert.False(t, stored.IsVerified)
	})

	t.Run("one altered digit is a wrong code", func(t *testing.T) {
		env := newTestEnv(t, DefaultPolicy())
		acc := registerEmail(t, env)

		_, err := env.uc.Verify(context.Background(), acc.ID, "123457")

		assert.ErrorIs(t, err, ErrInvalidCode)
	})

	t.Run("wrong code is reported before staleness", func(t *testing.T) {
		env := newTestEnv(t, DefaultPolicy())
		acc := registerEmail(t, env)
		env.clock.Advance(time.Hour)

		_, err := env.uc.Verify(context.Background(), acc.ID, "999999")

		assert.ErrorIs(t, err, ErrInvalidCode)
	})

	t.Run("already verified", func(t *testing.T) {
		env := newTestEnv(t, DefaultPolicy())
		acc := registerEmail(t, env)
		_, err := env.uc.Verify(context.Background(), acc.ID, "123456")
		require.NoError(t, err)

		_, err = env.uc.Verify(context.Background(), acc.ID, "123456")

		assert.ErrorIs(t, err, ErrAlreadyVerified)
	})

	t.Run("unknown account", func(t *testing.T) {
		env := newTestEnv(t, DefaultPolicy())

		_, err := env.uc.Verify(context.Background(), "acc-404", "123456")

		assert.ErrorIs(t, err, ErrAccountNotFound)
	})

	shapeTests := []struct {
		name      string
		accountID string
		code      string
		wantField string
	}{
		{"missing account id", "", "123456", "accountId"},
		{"missing code", "acc-1", "", "code"},
		{"code too short", "acc-1", "12345", "code"},
		{"code with letters", "acc-1", "12a456", "code"},
	}
	for _, tt := range shapeTests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, DefaultPolicy())

			_, err := env.uc.Verify(context.Background(), tt.accountID, tt.code)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.wantField)
		})
	}
}

func TestAuthUsecase_ResendCode(t *testing.T) {
	t.Run("before cooldown is rate limited with remaining time", func(t *testing.T) {
		env := newTestEnv(t, DefaultPolicy())
		acc := registerEmail(t, env)
		env.clock.Advance(20 * time.Second)

		_, err := env.uc.ResendCode(context.Background(), acc.ID)

		var limited *RateLimitedError
		require.ErrorAs(t, err, &limited)
		assert.Equal(t, 40*time.Second, limited.RetryAfter)
		assert.Len(t, env.notifier.sent, 1)
	})

	t.Run("exactly at cooldown a new code is issued", func(t *testing.T) {
		env := newTestEnv(t, DefaultPolicy())
		acc := registerEmail(t, env)
		env.clock.Advance(60 * time.Second)

		cooldown, err := env.uc.ResendCode(context.Background(), acc.ID)

		require.NoError(t, err)
		assert.Equal(t, 60*time.Second, cooldown)
		assert.Equal(t, "654321", env.notifier.last().Code)

		stored, _ := env.repo.FindByID(context.Background(), acc.ID)
		assert.Equal(t, "654321", entity.Deref(stored.VerificationCode))
		assert.Equal(t, env.clock.Now(), *stored.VerificationCodeIssuedAt)
	})

	t.Run("resent code replaces the old one", func(t *testing.T) {
		env := newTestEnv(t, DefaultPolicy())
		acc := registerEmail(t, env)
		env.clock.Advance(2 * time.Minute)
		_, err := env.uc.ResendCode(context.Background(), acc.ID)
		require.NoError(t, err)

		_, err = env.uc.Verify(context.Background(), acc.ID, "123456")
		assert.ErrorIs(t, err, ErrInvalidCode)

		_, err = env.uc.Verify(context.Background(), acc.ID, "654321")
		assert.NoError(t, err)
	})

	t.Run("verified account cannot resend", func(t *testing.T) {
		env := newTestEnv(t, DefaultPolicy())
		acc := registerEmail(t, env)
		_, err := env.uc.Verify(context.Background(), acc.ID, "123456")
		require.NoError(t, err)
		env.clock.Advance(time.Hour)

		_, err = env.uc.ResendCode(context.Background(), acc.ID)

		assert.ErrorIs(t, err, ErrAlreadyVerified)
	})

	t.Run("unknown account", func(t *testing.T) {
		env := newTestEnv(t, DefaultPolicy())

		_, err := env.uc.ResendCode(context.Background(), "acc-404")

		assert.ErrorIs(t, err, ErrAccountNotFound)
	})

	t.Run("missing account id", func(t *testing.T) {
		env := newTestEnv(t, DefaultPolicy())

		_, err := env.uc.ResendCode(context.Background(), " ")

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "accountId")
	})
}

func TestAuthUsecase_ConcurrentUpdates(t *testing.T) {
	t.Run("verify between resend's read and write keeps the account verified", func(t *testing.T) {
		env := newTestEnv(t, DefaultPolicy())
		acc := registerEmail(t, env)
		env.clock.Advance(time.Minute)
		ctx := context.Background()

		racing := &interleavedAccounts{memoryAccounts: env.repo}
		racing.beforeUpdate = func() {
			_, err := env.uc.Verify(ctx, acc.ID, "123456")
			require.NoError(t, err)
		}
		uc := env.usecaseOver(racing, DefaultPolicy())

		_, err := uc.ResendCode(ctx, acc.ID)

		assert.ErrorIs(t, err, ErrAlreadyVerified)
		stored, err := env.repo.FindByID(ctx, acc.ID)
		require.NoError(t, err)
		assert.True(t, stored.IsVerified)
		assert.Nil(t, stored.VerificationCode)
		assert.Nil(t, stored.VerificationCodeIssuedAt)
		for _, n := range env.notifier.sent {
			assert.Equal(t, "123456", n.Code, "the losing resend must not send its code")
		}
	})

	t.Run("password update retries on the latest copy", func(t *testing.T) {
		env := newTestEnv(t, DefaultPolicy())
		acc := seedAccount(t, env, verifiedPhoneAccount())
		ctx := context.Background()

		racing := &interleavedAccounts{memoryAccounts: env.repo}
		racing.beforeUpdate = func() {
			other, err := env.repo.FindByID(ctx, acc.ID)
			require.NoError(t, err)
			other.FirstName = "Jane"
			require.NoError(t, env.repo.Update(ctx, other))
		}
		uc := env.usecaseOver(racing, DefaultPolicy())

		err := uc.UpdatePassword(ctx, UpdatePasswordInput{Phone: "998901234567", NewPassword: "NewPass99"})

		require.NoError(t, err)
		stored, err := env.repo.FindByID(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, "hashed:NewPass99", entity.Deref(stored.PasswordHash))
		assert.Equal(t, "Jane", stored.FirstName, "the concurrent write is not lost")
	})

	t.Run("gives up after repeated conflicts", func(t *testing.T) {
		issued := newFakeClock().Now()
		repo := &mockAccountRepository{
			FindByIDFunc: func(ctx context.Context, id string) (*entity.Account, error) {
				acc := &entity.Account{ID: id, Email: entity.StringPtr("a@x.com"), AuthMethod: entity.AuthMethodEmail}
				acc.SetVerificationCode("123456", issued)
				return acc, nil
			},
			UpdateFunc: func(ctx context.Context, a *entity.Account) error {
				return ErrConcurrentUpdate
			},
		}
		uc := newMockUsecase(repo, DefaultPolicy())

		_, err := uc.Verify(context.Background(), "acc-1", "123456")

		assert.ErrorIs(t, err, ErrConcurrentUpdate)
		assert.Equal(t, maxUpdateAttempts, repo.updateCalls)
	})
}

// TestScenario_RegisterVerify walks register, a wrong code, then the right one.
func TestScenario_RegisterVerify(t *testing.T) {
	env := newTestEnv(t, DefaultPolicy())
	ctx := context.Background()

	reg, err := env.uc.Register(ctx, RegisterInput{Email: "A@x.com", Password: "Abcd1234", FirstName: "Jo"})
	require.NoError(t, err)
	assert.False(t, reg.Account.IsVerified)

	_, err = env.uc.Verify(ctx, reg.Account.ID, "000000")
	assert.ErrorIs(t, err, ErrInvalidCode)

	env.clock.Advance(time.Minute)
	res, err := env.uc.Verify(ctx, reg.Account.ID, env.notifier.last().Code)
	require.NoError(t, err)
	assert.True(t, res.Account.IsVerified)
	assert.NotEmpty(t, res.Token)
}
