package services

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prdeepak/ms365-access/internal/core/domain"
)

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memStore is an in-memory credential store.
type memStore struct {
	mu         sync.Mutex
	rec        *domain.CredentialRecord
	version    int
	keyVersion int
	loadErr    error
	saveErr    error
	clearErr   error
	saves      int
	clears     int
}

func newMemStore() *memStore {
	return &memStore{keyVersion: 1}
}

func (s *memStore) Save(_ context.Context, rec *domain.CredentialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.rec = rec.Clone()
	s.version = s.keyVersion
	return nil
}

func (s *memStore) Load(_ context.Context) (*domain.CredentialRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.rec == nil {
		return nil, domain.ErrCredentialNotFound
	}
	rec := s.rec.Clone()
	rec.EncryptionVersion = s.version
	return rec, nil
}

func (s *memStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
	if s.clearErr != nil {
		return s.clearErr
	}
	s.rec = nil
	return nil
}

func (s *memStore) CurrentKeyVersion() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keyVersion
}

func (s *memStore) stored() *domain.CredentialRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Clone()
}

func (s *memStore) put(rec *domain.CredentialRecord, version int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = rec.Clone()
	s.version = version
}

// recordingAudit keeps every entry.
type recordingAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (a *recordingAudit) Append(_ context.Context, e domain.AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e.Redacted())
}

func (a *recordingAudit) all() []domain.AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.AuditEntry(nil), a.entries...)
}

func (a *recordingAudit) ops() []domain.AuditOperation {
	var out []domain.AuditOperation
	for _, e := range a.all() {
		out = append(out, e.Operation)
	}
	return out
}

func (a *recordingAudit) last() domain.AuditEntry {
	all := a.all()
	if len(all) == 0 {
		return domain.AuditEntry{}
	}
	return all[len(all)-1]
}

// fakeProvider scripts the token endpoint.
type fakeProvider struct {
	exchangeCalls atomic.Int32
	refreshCalls  atomic.Int32

	mu           sync.Mutex
	lastVerifier string
	lastRefresh  string

	exchange func(ctx context.Context, code string) (*domain.TokenGrant, error)
	refresh  func(ctx context.Context, refreshToken string) (*domain.TokenGrant, error)
}

func (p *fakeProvider) AuthCodeURL(state, codeVerifier string) string {
	return "https://login.test/authorize?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) ExchangeCode(ctx context.Context, code, codeVerifier string) (*domain.TokenGrant, error) {
	p.exchangeCalls.Add(1)
	p.mu.Lock()
	p.lastVerifier = codeVerifier
	p.mu.Unlock()
	return p.exchange(ctx, code)
}

func (p *fakeProvider) Refresh(ctx context.Context, refreshToken string) (*domain.TokenGrant, error) {
	p.refreshCalls.Add(1)
	p.mu.Lock()
	p.lastRefresh = refreshToken
	p.mu.Unlock()
	return p.refresh(ctx, refreshToken)
}

// fakeStates is an in-memory pending state store honouring expiry.
type fakeStates struct {
	mu      sync.Mutex
	clock   *fakeClock
	pending map[string]*domain.PendingAuthorization
}

func newFakeStates(clock *fakeClock) *fakeStates {
	return &fakeStates{clock: clock, pending: make(map[string]*domain.PendingAuthorization)}
}

func (s *fakeStates) Put(_ context.Context, p *domain.PendingAuthorization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.pending[p.State] = &cp
	return nil
}

func (s *fakeStates) Take(_ context.Context, state string) (*domain.PendingAuthorization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[state]
	if !ok {
		return nil, domain.ErrInvalidState
	}
	delete(s.pending, state)
	if p.ExpiredAt(s.clock.Now()) {
		return nil, domain.ErrInvalidState
	}
	return p, nil
}

func (s *fakeStates) Clear(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = make(map[string]*domain.PendingAuthorization)
}

func (s *fakeStates) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// fakeAccounts resolves a fixed account or fails.
type fakeAccounts struct {
	account string
	err     error
}

func (a fakeAccounts) AccountID(_ context.Context, _ string) (string, error) {
	return a.account, a.err
}
