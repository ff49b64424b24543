package oauth

import (
	"context"
	"crypto/subtle"
	"sync"

	"github.com/prdeepak/ms365-access/internal/core/domain"
	"github.com/prdeepak/ms365-access/internal/core/ports/driven"
)

// DefaultMaxPending bounds the number of outstanding login attempts.
const DefaultMaxPending = 32

// Verify interface compliance.
var _ driven.PendingStateStore = (*StateStore)(nil)

// StateStore keeps pending authorizations in memory.
// The gateway is a single local process, so nothing here needs to survive a restart.
type StateStore struct {
	mu         sync.Mutex
	pending    map[string]*domain.PendingAuthorization
	clock      driven.Clock
	maxPending int
}

// NewStateStore creates an empty store.
func NewStateStore(clock driven.Clock) *StateStore {
	if clock == nil {
		clock = driven.SystemClock{}
	}
	return &StateStore{
		pending:    make(map[string]*domain.PendingAuthorization),
		clock:      clock,
		maxPending: DefaultMaxPending,
	}
}

// Put implements driven.PendingStateStore. Expired entries are pruned first;
// when the store is full the oldest entry is evicted.
func (s *StateStore) Put(_ context.Context, p *domain.PendingAuthorization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked()
	if len(s.pending) >= s.maxPending {
		s.evictOldestLocked()
	}
	cp := *p
	s.pending[p.State] = &cp
	return nil
}

// Take implements driven.PendingStateStore.
func (s *StateStore) Take(_ context.Context, state string) (*domain.PendingAuthorization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var match *domain.PendingAuthorization
	for key, p := range s.pending {
		if subtle.ConstantTimeCompare([]byte(key), []byte(state)) == 1 {
			match = p
		}
	}
	if match == nil {
		return nil, domain.ErrInvalidState
	}
	delete(s.pending, match.State)

	if match.ExpiredAt(s.clock.Now()) {
		return nil, domain.ErrInvalidState
	}
	return match, nil
}

// Clear implements driven.PendingStateStore.
func (s *StateStore) Clear(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.pending)
}

// Len returns the number of held entries, expired or not.
func (s *StateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *StateStore) pruneLocked() {
	now := s.clock.Now()
	for key, p := range s.pending {
		if p.ExpiredAt(now) {
			delete(s.pending, key)
		}
	}
}

func (s *StateStore) evictOldestLocked() {
	var oldest *domain.PendingAuthorization
	for _, p := range s.pending {
		if oldest == nil || p.CreatedAt.Before(oldest.CreatedAt) {
			oldest = p
		}
	}
	if oldest != nil {
		delete(s.pending, oldest.State)
	}
}
