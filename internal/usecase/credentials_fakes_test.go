package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/NT912/Finwise---final-sub002/internal/core/domain"
	"github.com/NT912/Finwise---final-sub002/internal/core/port"
	"github.com/NT912/Finwise---final-sub002/internal/repository"
)

type accountRepoMock struct {
	mu        sync.Mutex
	accounts  map[string]domain.Account
	getErr    error
	updateErr error
	updates   int
}

func newAccountRepoMock(accounts ...domain.Account) *accountRepoMock {
	m := &accountRepoMock{accounts: make(map[string]domain.Account)}
	for _, a := range accounts {
		m.accounts[a.ID] = a
	}
	return m
}

func (m *accountRepoMock) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	account, ok := m.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &account, nil
}

func (m *accountRepoMock) UpdatePassword(ctx context.Context, id, previousHash, passwordHash, passwordAlgo string, changedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	account, ok := m.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	if account.PasswordHash != previousHash {
		return repository.ErrConflict
	}
	account.PasswordHash = passwordHash
	account.PasswordAlgo = passwordAlgo
	account.LastPasswordChange = &changedAt
	m.accounts[id] = account
	m.updates++
	return nil
}

func (m *accountRepoMock) hash(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id].PasswordHash
}

// codeStoreMock mirrors the conditional semantics of the Redis and Postgres stores.
type codeStoreMock struct {
	mu         sync.Mutex
	now        func() time.Time
	slots      map[string]domain.VerificationCode
	replaceErr error
	getErr     error
	claimErr   error
	commitErr  error
	block      bool
	released   int
	committed  int
}

func newCodeStoreMock(now func() time.Time) *codeStoreMock {
	return &codeStoreMock{now: now, slots: make(map[string]domain.VerificationCode)}
}

func (m *codeStoreMock) wait(ctx context.Context) error {
	if m.block {
		<-ctx.Done()
	}
	return ctx.Err()
}

func (m *codeStoreMock) Replace(ctx context.Context, code domain.VerificationCode, _ time.Duration) error {
	if err := m.wait(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.slots[code.AccountID] = code
	return nil
}

func (m *codeStoreMock) Get(ctx context.Context, accountID string) (*domain.VerificationCode, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	code, ok := m.slots[accountID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &code, nil
}

func (m *codeStoreMock) ReserveAttempt(ctx context.Context, accountID string, limit int) (int, error) {
	if err := m.wait(ctx); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.slots[accountID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	if code.Attempts >= limit {
		return code.Attempts, repository.ErrConflict
	}
	code.Attempts++
	m.slots[accountID] = code
	return code.Attempts, nil
}

func (m *codeStoreMock) Claim(_ context.Context, accountID, codeHash, claimID string, lease time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimErr != nil {
		return m.claimErr
	}
	code, ok := m.slots[accountID]
	if !ok {
		return repository.ErrNotFound
	}
	now := m.now()
	if code.CodeHash != codeHash || code.IsConsumed() || code.IsClaimed(now) {
		return repository.ErrConflict
	}
	until := now.Add(lease)
	code.ClaimID = claimID
	code.ClaimedUntil = &until
	m.slots[accountID] = code
	return nil
}

func (m *codeStoreMock) Commit(_ context.Context, accountID, claimID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commitErr != nil {
		return m.commitErr
	}
	code, ok := m.slots[accountID]
	if !ok || code.ClaimID != claimID {
		return repository.ErrConflict
	}
	now := m.now()
	code.ConsumedAt = &now
	code.ClaimID = ""
	code.ClaimedUntil = nil
	m.slots[accountID] = code
	m.committed++
	return nil
}

func (m *codeStoreMock) Release(_ context.Context, accountID, claimID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.slots[accountID]
	if !ok || code.ClaimID != claimID {
		return repository.ErrConflict
	}
	code.ClaimID = ""
	code.ClaimedUntil = nil
	m.slots[accountID] = code
	m.released++
	return nil
}

func (m *codeStoreMock) slot(accountID string) (domain.VerificationCode, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.slots[accountID]
	return code, ok
}

type mailerMock struct {
	mu    sync.Mutex
	sent  []domain.VerificationCodeMessage
	err   error
	block bool
}

func (m *mailerMock) SendVerificationCode(ctx context.Context, msg domain.VerificationCodeMessage) error {
	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mailerMock) lastCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1].Code
}

// hasherMock stores passwords with a visible prefix.
type hasherMock struct{}

func (hasherMock) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (hasherMock) Verify(password, encoded string) (bool, error) {
	if !strings.HasPrefix(encoded, "hashed:") {
		return false, errors.New("unknown hash format")
	}
	return encoded == "hashed:"+password, nil
}

func (hasherMock) Algorithm() string { return "mock" }

type rateLimitMock struct {
	decision port.RateDecision
	err      error
	keys     []string
}

func (m *rateLimitMock) Hit(_ context.Context, identifier string, _ int, _ time.Duration, _ time.Time) (port.RateDecision, error) {
	m.keys = append(m.keys, identifier)
	return m.decision, m.err
}
