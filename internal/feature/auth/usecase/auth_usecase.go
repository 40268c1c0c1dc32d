package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"account_backend/internal/feature/auth/domain/entity"
)

// AccountRepository はアカウントエンティティの永続化層を抽象化します。
// Goの慣例に従い、インターフェースはプロバイダー（adapters）ではなくコンシューマー（usecase）が定義します。
type AccountRepository interface {
	// Create persists a new account and assigns its ID.
	// A unique-index violation is returned as *ConflictError naming the field.
	Create(ctx context.Context, account *entity.Account) error
	// FindByID returns ErrAccountNotFound when no account has the id.
	FindByID(ctx context.Context, id string) (*entity.Account, error)
	// FindByEmailOrPhone matches either identifier in a single query.
	// Empty arguments are ignored.
	FindByEmailOrPhone(ctx context.Context, email, phone string) (*entity.Account, error)
	// FindByExternalID returns ErrAccountNotFound when no account has the external id.
	FindByExternalID(ctx context.Context, externalID string) (*entity.Account, error)
	// Update writes every field of the account in one statement, provided
	// the stored Version still equals account.Version. On success Version
	// is advanced; a lost race yields ErrConcurrentUpdate.
	Update(ctx context.Context, account *entity.Account) error
}

// PasswordHasher は一方向パスワードハッシュを抽象化します。
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	// Verify compares in constant time.
	Verify(plaintext, digest string) bool
}

// CodeIssuer generates verification codes and answers freshness questions.
type CodeIssuer interface {
	Issue() (code string, issuedAt time.Time, err error)
	IsFresh(issuedAt, now time.Time, window time.Duration) bool
	CooldownRemaining(issuedAt, now time.Time, cooldown time.Duration) time.Duration
}

// TokenIssuer mints the bearer credential returned on successful authentication.
type TokenIssuer interface {
	GenerateToken(accountID, authMethod string) (string, error)
}

// FederatedVerifier checks the integrity hash of a federated login payload.
// fields holds every payload field except the hash.
type FederatedVerifier interface {
	Verify(fields map[string]string, hash string) error
}

// Channel is the delivery route for a verification code.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Purpose tells the notification sink why a code was issued.
type Purpose string

const (
	PurposeVerification  Purpose = "verification"
	PurposePasswordReset Purpose = "password_reset"
)

// Notification is a fire-and-forget request to deliver a code.
type Notification struct {
	AccountID string
	Channel   Channel
	Recipient string
	Code      string
	Purpose   Purpose
	ExpiresIn time.Duration
}

// Notifier delivers verification codes. Failures never fail the request.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// ResetPolicy decides what proof UpdatePassword requires.
type ResetPolicy string

const (
	// ResetDirect updates the password given only the phone number.
	ResetDirect ResetPolicy = "direct"
	// ResetWithCode requires a fresh code sent to the phone first.
	ResetWithCode ResetPolicy = "code"
)

// Policy holds the tunable rules of the verification lifecycle.
type Policy struct {
	CodeTTL        time.Duration
	ResendCooldown time.Duration
	PhoneDigits    int
	ResetPolicy    ResetPolicy
}

// DefaultPolicy returns the 5 minute window, 60 second cooldown and 12 digit phones.
func DefaultPolicy() Policy {
	return Policy{
		CodeTTL:        5 * time.Minute,
		ResendCooldown: 60 * time.Second,
		PhoneDigits:    12,
		ResetPolicy:    ResetDirect,
	}
}

// Deps groups the collaborators of the auth usecase.
type Deps struct {
	Accounts  AccountRepository
	Hasher    PasswordHasher
	Codes     CodeIssuer
	Notifier  Notifier
	Tokens    TokenIssuer
	Federated FederatedVerifier
	Logger    *zap.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// NextStepVerify tells the client to submit the verification code next.
const NextStepVerify = "verify"

// RegisterResult is returned by Register.
type RegisterResult struct {
	Account     *entity.Account
	NextStep    string
	ResendAfter time.Duration
}

// AuthResult is returned by every flow that authenticates the caller.
type AuthResult struct {
	Account *entity.Account
	Token   string
}

// authUsecase は認証ビジネスロジックを実装します。
type authUsecase struct {
	accounts  AccountRepository
	hasher    PasswordHasher
	codes     CodeIssuer
	notifier  Notifier
	tokens    TokenIssuer
	federated FederatedVerifier
	logger    *zap.Logger
	now       func() time.Time
	policy    Policy
	validate  *validator.Validate
}

// NewAuthUsecase はauthUsecaseの新しいインスタンスを生成します。
func NewAuthUsecase(deps Deps, policy Policy) *authUsecase {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if policy.ResetPolicy == "" {
		policy.ResetPolicy = ResetDirect
	}
	return &authUsecase{
		accounts:  deps.Accounts,
		hasher:    deps.Hasher,
		codes:     deps.Codes,
		notifier:  deps.Notifier,
		tokens:    deps.Tokens,
		federated: deps.Federated,
		logger:    deps.Logger,
		now:       deps.Clock,
		policy:    policy,
		validate:  newValidator(policy.PhoneDigits),
	}
}

// Account returns the account with the given id.
func (u *authUsecase) Account(ctx context.Context, id string) (*entity.Account, error) {
	return u.accounts.FindByID(ctx, id)
}

// issueToken mints a token for an authenticated account.
func (u *authUsecase) issueToken(acc *entity.Account) (*AuthResult, error) {
	token, err := u.tokens.GenerateToken(acc.ID, string(acc.AuthMethod))
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &AuthResult{Account: acc, Token: token}, nil
}

// dispatchCode hands the code to the notifier. Delivery errors are logged only.
func (u *authUsecase) dispatchCode(ctx context.Context, acc *entity.Account, channel Channel, code string, purpose Purpose) {
	recipient := entity.Deref(acc.Email)
	if channel == ChannelSMS {
		recipient = entity.Deref(acc.Phone)
	}
	n := Notification{
		AccountID: acc.ID,
		Channel:   channel,
		Recipient: recipient,
		Code:      code,
		Purpose:   purpose,
		ExpiresIn: u.policy.CodeTTL,
	}
	if err := u.notifier.Notify(ctx, n); err != nil {
		u.logger.Warn("failed to dispatch verification code",
			zap.String("account_id", acc.ID),
			zap.String("channel", string(channel)),
			zap.String("purpose", string(purpose)),
			zap.Error(err))
	}
}

// verificationChannel picks email for email accounts that have one, otherwise sms.
func verificationChannel(acc *entity.Account) Channel {
	if acc.AuthMethod == entity.AuthMethodEmail && acc.Email != nil {
		return ChannelEmail
	}
	if acc.Phone != nil {
		return ChannelSMS
	}
	return ChannelEmail
}

// checkCooldown returns a RateLimitedError while the previous code is too recent.
func (u *authUsecase) checkCooldown(issuedAt *time.Time) error {
	if issuedAt == nil {
		return nil
	}
	if rem := u.codes.CooldownRemaining(*issuedAt, u.now(), u.policy.ResendCooldown); rem > 0 {
		return &RateLimitedError{RetryAfter: rem}
	}
	return nil
}

// maxUpdateAttempts bounds how often an operation reloads an account that
// another request wrote between its read and its write.
const maxUpdateAttempts = 3

// retryOnConcurrentUpdate runs op again while its write lost against a
// concurrent one. op must reload the account on every call, so the retry
// re-checks state such as verification against the latest copy.
func (u *authUsecase) retryOnConcurrentUpdate(ctx context.Context, op func() error) error {
	var err error
	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		err = op()
		if !errors.Is(err, ErrConcurrentUpdate) || ctx.Err() != nil {
			return err
		}
		u.logger.Info("account changed concurrently, reloading", zap.Int("attempt", attempt))
	}
	return err
}
