package driven

import (
	"context"

	"github.com/prdeepak/ms365-access/internal/core/domain"
)

// IdentityProvider talks to the OAuth authorization server.
//
// Errors from ExchangeCode and Refresh wrap one of domain.ErrProviderRejected
// or domain.ErrTransientProvider so callers can decide whether to keep the
// stored refresh token.
type IdentityProvider interface {
	// AuthCodeURL builds the authorization URL for the given state and PKCE verifier.
	AuthCodeURL(state, codeVerifier string) string

	// ExchangeCode redeems an authorization code.
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*domain.TokenGrant, error)

	// Refresh redeems a refresh token for a new access token.
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenGrant, error)
}

// AccountResolver looks up the signed-in account identifier for an access token.
type AccountResolver interface {
	AccountID(ctx context.Context, accessToken string) (string, error)
}
