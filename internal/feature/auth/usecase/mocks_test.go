package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"account_backend/internal/feature/auth/domain/entity"
)

// mockAccountRepository is a mock implementation of the AccountRepository interface.
// Unset functions fall back to "not found" or success.
type mockAccountRepository struct {
	CreateFunc             func(ctx context.Context, a *entity.Account) error
	FindByIDFunc           func(ctx context.Context, id string) (*entity.Account, error)
	FindByEmailOrPhoneFunc func(ctx context.Context, email, phone string) (*entity.Account, error)
	FindByExternalIDFunc   func(ctx context.Context, externalID string) (*entity.Account, error)
	UpdateFunc             func(ctx context.Context, a *entity.Account) error

	updateCalls int
}

func (m *mockAccountRepository) Create(ctx context.Context, a *entity.Account) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, a)
	}
	a.ID = "acc-mock"
	return nil
}

func (m *mockAccountRepository) FindByID(ctx context.Context, id string) (*entity.Account, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, ErrAccountNotFound
}

func (m *mockAccountRepository) FindByEmailOrPhone(ctx context.Context, email, phone string) (*entity.Account, error) {
	if m.FindByEmailOrPhoneFunc != nil {
		return m.FindByEmailOrPhoneFunc(ctx, email, phone)
	}
	return nil, ErrAccountNotFound
}

func (m *mockAccountRepository) FindByExternalID(ctx context.Context, externalID string) (*entity.Account, error) {
	if m.FindByExternalIDFunc != nil {
		return m.FindByExternalIDFunc(ctx, externalID)
	}
	return nil, ErrAccountNotFound
}

func (m *mockAccountRepository) Update(ctx context.Context, a *entity.Account) error {
	m.updateCalls++
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, a)
	}
	return nil
}

// memoryAccounts is an in-memory AccountRepository enforcing sparse
// uniqueness on email, phone and external id.
type memoryAccounts struct {
	mu     sync.Mutex
	seq    int
	byID   map[string]entity.Account
	writes int
}

func newMemoryAccounts() *memoryAccounts {
	return &memoryAccounts{byID: map[string]entity.Account{}}
}

func (r *memoryAccounts) conflict(a *entity.Account) error {
	for id, other := range r.byID {
		if id == a.ID {
			continue
		}
		switch {
		case a.Email != nil && other.Email != nil && *a.Email == *other.Email:
			return &ConflictError{Field: "email"}
		case a.Phone != nil && other.Phone != nil && *a.Phone == *other.Phone:
			return &ConflictError{Field: "phone"}
		case a.ExternalID != nil && other.ExternalID != nil && *a.ExternalID == *other.ExternalID:
			return &ConflictError{Field: "externalId"}
		}
	}
	return nil
}

func (r *memoryAccounts) Create(_ context.Context, a *entity.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.conflict(a); err != nil {
		return err
	}
	r.seq++
	a.ID = fmt.Sprintf("acc-%d", r.seq)
	a.Version = 1
	r.byID[a.ID] = *a
	r.writes++
	return nil
}

func (r *memoryAccounts) FindByID(_ context.Context, id string) (*entity.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &a, nil
}

func (r *memoryAccounts) FindByEmailOrPhone(_ context.Context, email, phone string) (*entity.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var phoneMatch *entity.Account
	for _, a := range r.byID {
		a := a
		if email != "" && entity.Deref(a.Email) == email {
			return &a, nil
		}
		if phone != "" && entity.Deref(a.Phone) == phone && phoneMatch == nil {
			phoneMatch = &a
		}
	}
	if phoneMatch == nil {
		return nil, ErrAccountNotFound
	}
	return phoneMatch, nil
}

func (r *memoryAccounts) FindByExternalID(_ context.Context, externalID string) (*entity.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if entity.Deref(a.ExternalID) == externalID {
			a := a
			return &a, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (r *memoryAccounts) Update(_ context.Context, a *entity.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byID[a.ID]
	if !ok {
		return ErrAccountNotFound
	}
	if cur.Version != a.Version {
		return ErrConcurrentUpdate
	}
	if err := r.conflict(a); err != nil {
		return err
	}
	a.Version++
	r.byID[a.ID] = *a
	r.writes++
	return nil
}

// interleavedAccounts runs beforeUpdate once, between an operation's read
// and its first write, to stand in for a concurrent request.
type interleavedAccounts struct {
	*memoryAccounts
	beforeUpdate func()
}

func (r *interleavedAccounts) Update(ctx context.Context, a *entity.Account) error {
	if f := r.beforeUpdate; f != nil {
		r.beforeUpdate = nil
		f()
	}
	return r.memoryAccounts.Update(ctx, a)
}

func (r *memoryAccounts) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// fakeHasher marks digests with a prefix so tests can read them.
type fakeHasher struct{}

func (fakeHasher) Hash(p string) (string, error) { return "hashed:" + p, nil }

func (fakeHasher) Verify(p, d string) bool { return d == "hashed:"+p }

// fakeClock is a settable clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeCodes hands out a fixed sequence of codes stamped with the fake clock.
type fakeCodes struct {
	codes []string
	next  int
	clock *fakeClock
}

func (f *fakeCodes) Issue() (string, time.Time, error) {
	code := f.codes[f.next%len(f.codes)]
	f.next++
	return code, f.clock.Now(), nil
}

func (f *fakeCodes) IsFresh(issuedAt, now time.Time, window time.Duration) bool {
	return now.Sub(issuedAt) <= window
}

func (f *fakeCodes) CooldownRemaining(issuedAt, now time.Time, cooldown time.Duration) time.Duration {
	if rem := cooldown - now.Sub(issuedAt); rem > 0 {
		return rem
	}
	return 0
}

// mockTokenIssuer returns "token-<id>" unless GenerateTokenFunc is set.
type mockTokenIssuer struct {
	GenerateTokenFunc func(accountID, authMethod string) (string, error)
}

func (m *mockTokenIssuer) GenerateToken(accountID, authMethod string) (string, error) {
	if m.GenerateTokenFunc != nil {
		return m.GenerateTokenFunc(accountID, authMethod)
	}
	return "token-" + accountID, nil
}

// recordingNotifier keeps every notification it receives.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, msg Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *recordingNotifier) last() Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return Notification{}
	}
	return n.sent[len(n.sent)-1]
}

// mockFederatedVerifier accepts every payload unless VerifyFunc is set.
type mockFederatedVerifier struct {
	VerifyFunc func(fields map[string]string, hash string) error
}

func (m *mockFederatedVerifier) Verify(fields map[string]string, hash string) error {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(fields, hash)
	}
	return nil
}

type testEnv struct {
	uc        *authUsecase
	repo      *memoryAccounts
	notifier  *recordingNotifier
	clock     *fakeClock
	codes     *fakeCodes
	federated *mockFederatedVerifier
}

// newTestEnv wires the usecase against the in-memory store.
func newTestEnv(t *testing.T, policy Policy) *testEnv {
	t.Helper()
	env := &testEnv{
		repo:      newMemoryAccounts(),
		notifier:  &recordingNotifier{},
		clock:     newFakeClock(),
		federated: &mockFederatedVerifier{},
	}
	env.codes = &fakeCodes{codes: []string{"123456", "654321", "000042"}, clock: env.clock}
	env.uc = NewAuthUsecase(Deps{
		Accounts:  env.repo,
		Hasher:    fakeHasher{},
		Codes:     env.codes,
		Notifier:  env.notifier,
		Tokens:    &mockTokenIssuer{},
		Federated: env.federated,
		Clock:     env.clock.Now,
	}, policy)
	return env
}

// usecaseOver wires a second usecase sharing env's clock, codes and
// notifier but reading and writing through repo.
func (env *testEnv) usecaseOver(repo AccountRepository, policy Policy) *authUsecase {
	return NewAuthUsecase(Deps{
		Accounts:  repo,
		Hasher:    fakeHasher{},
		Codes:     env.codes,
		Notifier:  env.notifier,
		Tokens:    &mockTokenIssuer{},
		Federated: env.federated,
		Clock:     env.clock.Now,
	}, policy)
}

// newMockUsecase wires the usecase against a func-field repository.
func newMockUsecase(repo AccountRepository, policy Policy) *authUsecase {
	clock := newFakeClock()
	return NewAuthUsecase(Deps{
		Accounts:  repo,
		Hasher:    fakeHasher{},
		Codes:     &fakeCodes{codes: []string{"123456"}, clock: clock},
		Notifier:  &recordingNotifier{},
		Tokens:    &mockTokenIssuer{},
		Federated: &mockFederatedVerifier{},
		Clock:     clock.Now,
	}, policy)
}
