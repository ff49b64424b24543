// Package oauth talks to the Microsoft identity platform and holds pending
// authorization state.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"

	"github.com/prdeepak/ms365-access/internal/connectors/microsoft"
	"github.com/prdeepak/ms365-access/internal/core/domain"
	"github.com/prdeepak/ms365-access/internal/core/ports/driven"
	"github.com/prdeepak/ms365-access/internal/logger"
)

// defaultTokenLifetime is assumed when the token endpoint omits expires_in.
const defaultTokenLifetime = time.Hour

// Verify interface compliance.
var _ driven.IdentityProvider = (*Provider)(nil)

// ProviderConfig describes the app registration and authority.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	TenantID     string
	RedirectURI  string
	Scopes       []string
	// AuthorityBase is the identity platform root. Defaults to microsoft.DefaultAuthorityBase.
	AuthorityBase string
	// HTTPClient is used for token endpoint calls. Defaults to a client with a 30s timeout.
	HTTPClient *http.Client
	Clock      driven.Clock
	// BreakerThreshold is the number of consecutive transient failures that
	// opens the circuit. Defaults to 5.
	BreakerThreshold uint32
	// BreakerCooldown is how long the circuit stays open. Defaults to 30s.
	BreakerCooldown time.Duration
}

// Provider implements driven.IdentityProvider with golang.org/x/oauth2.
// Token endpoint calls pass through a circuit breaker so a dead provider fails fast.
type Provider struct {
	oauth   *oauth2.Config
	client  *http.Client
	clock   driven.Clock
	breaker *gobreaker.CircuitBreaker
}

// NewProvider creates a provider for the tenant in cfg.
func NewProvider(cfg ProviderConfig) *Provider {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = driven.SystemClock{}
	}
	threshold := cfg.BreakerThreshold
	if threshold == 0 {
		threshold = 5
	}
	cooldown := cfg.BreakerCooldown
	if cooldown == 0 {
		cooldown = 30 * time.Second
	}

	p := &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint:     microsoft.Endpoint(cfg.AuthorityBase, cfg.TenantID),
		},
		client: client,
		clock:  clock,
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "token-endpoint",
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Rejections are answers, not outages.
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, domain.ErrTransientProvider)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("oauth: circuit %s changed from %s to %s", name, from, to)
		},
	})
	return p
}

// AuthCodeURL implements driven.IdentityProvider. PKCE S256 is always used.
func (p *Provider) AuthCodeURL(state, codeVerifier string) string {
	return p.oauth.AuthCodeURL(state,
		oauth2.S256ChallengeOption(codeVerifier),
		oauth2.SetAuthURLParam("response_mode", "query"),
	)
}

// ExchangeCode implements driven.IdentityProvider.
func (p *Provider) ExchangeCode(ctx context.Context, code, codeVerifier string) (*domain.TokenGrant, error) {
	return p.grant(ctx, "authorization_code", func(ctx context.Context) (*oauth2.Token, error) {
		return p.oauth.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	})
}

// Refresh implements driven.IdentityProvider.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*domain.TokenGrant, error) {
	return p.grant(ctx, "refresh_token", func(ctx context.Context) (*oauth2.Token, error) {
		return p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	})
}

func (p *Provider) grant(
	ctx context.Context,
	grantType string,
	call func(context.Context) (*oauth2.Token, error),
) (*domain.TokenGrant, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	result, err := p.breaker.Execute(func() (interface{}, error) {
		tok, err := call(ctx)
		if err != nil {
			return nil, classify(grantType, err)
		}
		return tok, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open", domain.ErrTransientProvider)
		}
		return nil, err
	}

	tok, ok := result.(*oauth2.Token)
	if !ok || tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty token response", domain.ErrTransientProvider)
	}
	return p.toGrant(tok), nil
}

func (p *Provider) toGrant(tok *oauth2.Token) *domain.TokenGrant {
	now := p.clock.Now()
	var expiresAt time.Time
	switch {
	case tok.ExpiresIn > 0:
		expiresAt = now.Add(time.Duration(tok.ExpiresIn) * time.Second)
	case !tok.Expiry.IsZero():
		expiresAt = tok.Expiry.UTC()
	default:
		expiresAt = now.Add(defaultTokenLifetime)
	}

	var scopes []string
	if s, ok := tok.Extra("scope").(string); ok && s != "" {
		scopes = strings.Fields(s)
	}

	return &domain.TokenGrant{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    expiresAt,
		Scopes:       scopes,
	}
}

// classify maps a token endpoint failure onto the domain taxonomy.
// Provider bodies and descriptions are deliberately dropped; only the
// OAuth error code is kept.
func classify(grantType string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		code := re.ErrorCode
		if code == "" {
			code = "unknown"
		}
		logger.Warn("oauth: %s grant failed: status=%d error=%s", grantType, status, code)

		if status == http.StatusTooManyRequests || status >= 500 || status == 0 {
			return fmt.Errorf("%w: token endpoint status %d", domain.ErrTransientProvider, status)
		}
		return fmt.Errorf("%w: %s", domain.ErrProviderRejected, code)
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		logger.Warn("oauth: %s grant did not complete in time", grantType)
		return fmt.Errorf("%w: request did not complete", domain.ErrTransientProvider)
	case errors.As(err, &netErr):
		logger.Warn("oauth: %s grant network error", grantType)
		return fmt.Errorf("%w: network error", domain.ErrTransientProvider)
	default:
		logger.Warn("oauth: %s grant failed: unexpected response", grantType)
		return fmt.Errorf("%w: unexpected token response", domain.ErrTransientProvider)
	}
}
