package driving

import (
	"context"

	"github.com/prdeepak/ms365-access/internal/core/domain"
)

// TokenManager owns the delegated credentials of the single signed-in user.
// It is safe for concurrent use.
type TokenManager interface {
	// BeginLogin creates a pending authorization and returns the URL the
	// browser should be sent to. redirectContext is optional and is handed
	// back by CompleteLogin.
	BeginLogin(ctx context.Context, redirectContext string) (string, error)

	// CompleteLogin validates state, exchanges the code and persists the
	// resulting credentials.
	// Returns domain.ErrInvalidState, domain.ErrProviderRejected,
	// domain.ErrTransientProvider or domain.ErrStorageIO on failure.
	CompleteLogin(ctx context.Context, code, state string) (*LoginResult, error)

	// AccessToken returns a token valid for at least the safety margin,
	// refreshing it first when needed.
	// Returns domain.ErrNotAuthenticated, domain.ErrReauthenticationRequired,
	// domain.ErrTransientProvider or domain.ErrStorageIO.
	AccessToken(ctx context.Context) (string, error)

	// InvalidateAccessToken marks token as unusable so the next AccessToken
	// call refreshes. A token that is no longer current is ignored.
	InvalidateAccessToken(token string)

	// Status reports the current state without token material.
	Status(ctx context.Context) domain.AuthStatus

	// Logout clears credentials and pending authorizations. It is idempotent.
	Logout(ctx context.Context) error

	// Restore loads persisted credentials at startup.
	Restore(ctx context.Context)
}

// LoginResult is returned by a successful CompleteLogin.
type LoginResult struct {
	Status domain.AuthStatus
	// RedirectContext is the value passed to BeginLogin, if any.
	RedirectContext string
}
