package driven

import (
	"context"

	"github.com/prdeepak/ms365-access/internal/core/domain"
)

// PendingStateStore holds in-flight authorization requests until their callback.
type PendingStateStore interface {
	// Put records a pending authorization.
	Put(ctx context.Context, pending *domain.PendingAuthorization) error

	// Take returns and removes the pending authorization for state.
	// A second Take for the same state, an unknown state and an expired
	// entry all return domain.ErrInvalidState.
	Take(ctx context.Context, state string) (*domain.PendingAuthorization, error)

	// Clear drops every pending authorization.
	Clear(ctx context.Context)
}
