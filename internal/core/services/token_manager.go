package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/prdeepak/ms365-access/internal/core/domain"
	"github.com/prdeepak/ms365-access/internal/core/ports/driven"
	"github.com/prdeepak/ms365-access/internal/core/ports/driving"
	"github.com/prdeepak/ms365-access/internal/logger"
)

// Token lifecycle defaults.
const (
	DefaultSafetyMargin    = 60 * time.Second
	DefaultProviderTimeout = 15 * time.Second
	DefaultPendingTTL      = 10 * time.Minute

	// UnknownAccount is recorded when the profile lookup after login fails.
	UnknownAccount = "unknown"

	stateBytes    = 32
	verifierBytes = 32
	refreshKey    = "refresh"
)

// TokenManagerDeps are the collaborators of a TokenManager. All are required.
type TokenManagerDeps struct {
	Store    driven.CredentialStore
	Audit    driven.AuditLog
	Provider driven.IdentityProvider
	States   driven.PendingStateStore
	Accounts driven.AccountResolver
	Clock    driven.Clock
}

// TokenManagerOption configures a TokenManager.
type TokenManagerOption func(*TokenManager)

// WithSafetyMargin sets how long before expiry a token is refreshed.
func WithSafetyMargin(d time.Duration) TokenManagerOption {
	return func(m *TokenManager) {
		m.margin = d
	}
}

// WithProviderTimeout bounds each call to the token endpoint.
func WithProviderTimeout(d time.Duration) TokenManagerOption {
	return func(m *TokenManager) {
		m.timeout = d
	}
}

// WithPendingTTL sets how long a login attempt stays valid.
func WithPendingTTL(d time.Duration) TokenManagerOption {
	return func(m *TokenManager) {
		m.pendingTTL = d
	}
}

// TokenManager is the single owner of the credential record.
//
// The record pointer is only ever replaced, never mutated, so a reader holding
// it sees a consistent access/refresh pair. Refreshes are collapsed into one
// in-flight call; every waiter gets the same outcome. The generation counter
// lets a refresh that raced a logout or a new login drop its result.
type TokenManager struct {
	store    driven.CredentialStore
	audit    driven.AuditLog
	provider driven.IdentityProvider
	states   driven.PendingStateStore
	accounts driven.AccountResolver
	clock    driven.Clock

	margin     time.Duration
	timeout    time.Duration
	pendingTTL time.Duration

	mu            sync.RWMutex
	record        *domain.CredentialRecord
	refreshFailed bool
	generation    uint64

	flights singleflight.Group
}

// Ensure TokenManager implements the interface.
var _ driving.TokenManager = (*TokenManager)(nil)

// NewTokenManager creates a manager in the UNAUTHENTICATED state.
// Call Restore to load persisted credentials.
func NewTokenManager(deps TokenManagerDeps, opts ...TokenManagerOption) *TokenManager {
	clock := deps.Clock
	if clock == nil {
		clock = driven.SystemClock{}
	}
	m := &TokenManager{
		store:      deps.Store,
		audit:      deps.Audit,
		provider:   deps.Provider,
		states:     deps.States,
		accounts:   deps.Accounts,
		clock:      clock,
		margin:     DefaultSafetyMargin,
		timeout:    DefaultProviderTimeout,
		pendingTTL: DefaultPendingTTL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Restore loads persisted credentials. An unreadable store leaves the manager
// UNAUTHENTICATED. Records sealed with an older key are re-saved with the current one.
func (m *TokenManager) Restore(ctx context.Context) {
	rec, err := m.store.Load(ctx)
	switch {
	case errors.Is(err, domain.ErrCredentialNotFound):
		logger.Info("token manager: no stored credentials, login required")
		return
	case errors.Is(err, domain.ErrDecryption):
		logger.Warn("token manager: stored credentials could not be decrypted, login required")
		return
	case err != nil:
		logger.Warn("token manager: failed to read stored credentials, login required: %v", err)
		return
	}

	m.mu.Lock()
	m.record = rec
	m.refreshFailed = false
	m.generation++
	m.mu.Unlock()

	logger.Info("token manager: restored credentials for %s (expires %s)",
		rec.Account, rec.ExpiresAt.Format(time.RFC3339))

	if kv, ok := m.store.(driven.KeyVersioner); ok && rec.EncryptionVersion < kv.CurrentKeyVersion() {
		if err := m.store.Save(ctx, rec); err != nil {
			logger.Warn("token manager: re-encrypting credentials with key version %d failed: %v",
				kv.CurrentKeyVersion(), err)
			return
		}
		logger.Info("token manager: re-encrypted credentials from key version %d to %d",
			rec.EncryptionVersion, kv.CurrentKeyVersion())
	}
}

// BeginLogin implements driving.TokenManager.
func (m *TokenManager) BeginLogin(ctx context.Context, redirectContext string) (string, error) {
	state, err := randomToken(stateBytes)
	if err != nil {
		return "", err
	}
	verifier, err := randomToken(verifierBytes)
	if err != nil {
		return "", err
	}

	now := m.clock.Now()
	pending := &domain.PendingAuthorization{
		State:           state,
		CodeVerifier:    verifier,
		RedirectContext: redirectContext,
		CreatedAt:       now,
		ExpiresAt:       now.Add(m.pendingTTL),
	}
	if err := m.states.Put(ctx, pending); err != nil {
		return "", fmt.Errorf("store pending authorization: %w", err)
	}

	m.mu.Lock()
	if m.record == nil {
		m.refreshFailed = false
	}
	m.mu.Unlock()

	m.appendAudit(ctx, domain.AuditLoginInitiated, m.actor(), true, map[string]any{
		"has_redirect": redirectContext != "",
	})
	return m.provider.AuthCodeURL(state, verifier), nil
}

// CompleteLogin implements driving.TokenManager.
func (m *TokenManager) CompleteLogin(ctx context.Context, code, state string) (*driving.LoginResult, error) {
	pending, err := m.states.Take(ctx, state)
	if err != nil {
		m.appendAudit(ctx, domain.AuditLoginCompleted, domain.AnonymousActor, false, map[string]any{
			"reason": "invalid_state",
		})
		return nil, domain.ErrInvalidState
	}

	pctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	grant, err := m.provider.ExchangeCode(pctx, code, pending.CodeVerifier)
	if err != nil {
		m.appendAudit(ctx, domain.AuditLoginCompleted, domain.AnonymousActor, false, map[string]any{
			"reason":    "exchange_failed",
			"transient": errors.Is(err, domain.ErrTransientProvider),
		})
		return nil, err
	}
	if grant.RefreshToken == "" {
		logger.Warn("token manager: provider returned no refresh token; is offline_access granted?")
	}

	account, err := m.accounts.AccountID(pctx, grant.AccessToken)
	if err != nil {
		logger.Warn("token manager: could not resolve account after login: %v", err)
		account = UnknownAccount
	}

	rec := &domain.CredentialRecord{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		ExpiresAt:    grant.ExpiresAt,
		Scopes:       grant.Scopes,
		Account:      account,
		UpdatedAt:    m.clock.Now(),
	}

	m.mu.Lock()
	if err := m.store.Save(context.WithoutCancel(ctx), rec); err != nil {
		m.mu.Unlock()
		m.appendAudit(ctx, domain.AuditLoginCompleted, account, false, map[string]any{
			"reason": "storage_failure",
		})
		return nil, storageErr(err)
	}
	m.record = rec
	m.refreshFailed = false
	m.generation++
	m.mu.Unlock()

	m.appendAudit(ctx, domain.AuditLoginCompleted, account, true, map[string]any{
		"scopes":     strings.Join(rec.Scopes, " "),
		"expires_at": rec.ExpiresAt,
	})
	logger.Info("token manager: signed in as %s", account)

	return &driving.LoginResult{
		Status:          m.statusOf(rec, false),
		RedirectContext: pending.RedirectContext,
	}, nil
}

// AccessToken implements driving.TokenManager.
func (m *TokenManager) AccessToken(ctx context.Context) (string, error) {
	m.mu.RLock()
	rec, failed := m.record, m.refreshFailed
	m.mu.RUnlock()

	if rec == nil {
		return "", missingCredentialsErr(failed)
	}
	if rec.FreshAt(m.clock.Now(), m.margin) {
		return rec.AccessToken, nil
	}

	ch := m.flights.DoChan(refreshKey, func() (interface{}, error) {
		return m.refresh(ctx)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// refresh runs inside the single flight. It is detached from the first
// caller's cancellation so later waiters are not failed by it.
func (m *TokenManager) refresh(callerCtx context.Context) (string, error) {
	base := context.WithoutCancel(callerCtx)

	m.mu.RLock()
	rec, failed, gen := m.record, m.refreshFailed, m.generation
	m.mu.RUnlock()

	// Another flight may have finished between the caller's check and ours.
	if rec == nil {
		return "", missingCredentialsErr(failed)
	}
	if rec.FreshAt(m.clock.Now(), m.margin) {
		return rec.AccessToken, nil
	}
	if rec.RefreshToken == "" {
		return "", m.failRefresh(base, gen, rec, "no_refresh_token")
	}

	ctx, cancel := context.WithTimeout(base, m.timeout)
	grant, err := m.provider.Refresh(ctx, rec.RefreshToken)
	cancel()

	if err != nil {
		if errors.Is(err, domain.ErrProviderRejected) {
			return "", m.failRefresh(base, gen, rec, err.Error())
		}
		m.appendAudit(base, domain.AuditTokenRefreshFailed, rec.Account, false, map[string]any{
			"transient": true,
			"reason":    err.Error(),
		})
		logger.Warn("token manager: refresh failed transiently, keeping credentials: %v", err)
		if !errors.Is(err, domain.ErrTransientProvider) {
			err = fmt.Errorf("%w: %v", domain.ErrTransientProvider, err)
		}
		return "", err
	}

	next := &domain.CredentialRecord{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		ExpiresAt:    grant.ExpiresAt,
		Scopes:       grant.Scopes,
		Account:      rec.Account,
		UpdatedAt:    m.clock.Now(),
	}
	if next.RefreshToken == "" {
		next.RefreshToken = rec.RefreshToken
	}
	if len(next.Scopes) == 0 {
		next.Scopes = rec.Scopes
	}

	m.mu.Lock()
	if m.generation != gen {
		// Logout or a new login won; their state stands.
		cur, curFailed := m.record, m.refreshFailed
		m.mu.Unlock()
		logger.Debug("token manager: discarding refresh result from a stale generation")
		if cur == nil {
			return "", missingCredentialsErr(curFailed)
		}
		return cur.AccessToken, nil
	}
	if err := m.store.Save(base, next); err != nil {
		m.mu.Unlock()
		logger.Error("token manager: persisting refreshed credentials failed: %v", err)
		return "", storageErr(err)
	}
	m.record = next
	m.mu.Unlock()

	m.appendAudit(base, domain.AuditTokenRefreshed, next.Account, true, map[string]any{
		"expires_at":      next.ExpiresAt,
		"rotated_refresh": next.RefreshToken != rec.RefreshToken,
	})
	logger.Debug("token manager: refreshed access token, expires %s", next.ExpiresAt.Format(time.RFC3339))
	return next.AccessToken, nil
}

// failRefresh destroys the credentials after the provider refused the refresh token.
func (m *TokenManager) failRefresh(ctx context.Context, gen uint64, rec *domain.CredentialRecord, reason string) error {
	m.mu.Lock()
	if m.generation != gen {
		cur, curFailed := m.record, m.refreshFailed
		m.mu.Unlock()
		if cur == nil {
			return missingCredentialsErr(curFailed)
		}
		// A new login superseded the rejected record.
		return domain.ErrReauthenticationRequired
	}
	if err := m.store.Clear(ctx); err != nil {
		logger.Error("token manager: clearing rejected credentials failed: %v", err)
	}
	m.record = nil
	m.refreshFailed = true
	m.generation++
	m.mu.Unlock()

	m.appendAudit(ctx, domain.AuditTokenRefreshFailed, rec.Account, false, map[string]any{
		"transient": false,
		"reason":    reason,
	})
	logger.Warn("token manager: refresh token rejected, reauthentication required")
	return domain.ErrReauthenticationRequired
}

// InvalidateAccessToken implements driving.TokenManager.
func (m *TokenManager) InvalidateAccessToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.record == nil || subtle.ConstantTimeCompare([]byte(m.record.AccessToken), []byte(token)) != 1 {
		return
	}
	next := m.record.Clone()
	if now := m.clock.Now(); now.Before(next.ExpiresAt) {
		next.ExpiresAt = now
	}
	m.record = next
	logger.Debug("token manager: access token %s invalidated by upstream 401", logger.Mask(token))
}

// Status implements driving.TokenManager.
func (m *TokenManager) Status(_ context.Context) domain.AuthStatus {
	m.mu.RLock()
	rec, failed := m.record, m.refreshFailed
	m.mu.RUnlock()
	return m.statusOf(rec, failed)
}

func (m *TokenManager) statusOf(rec *domain.CredentialRecord, failed bool) domain.AuthStatus {
	if rec == nil {
		state := domain.StateUnauthenticated
		if failed {
			state = domain.StateRefreshFailed
		}
		return domain.AuthStatus{State: state}
	}

	state := domain.StateValid
	if !rec.FreshAt(m.clock.Now(), 0) {
		state = domain.StateExpired
	}
	expiresAt := rec.ExpiresAt
	return domain.AuthStatus{
		State:         state,
		Authenticated: true,
		Account:       rec.Account,
		ExpiresAt:     &expiresAt,
		Scopes:        append([]string(nil), rec.Scopes...),
	}
}

// Logout implements driving.TokenManager. The in-memory record is dropped even
// when clearing the store fails; the storage error is still returned.
func (m *TokenManager) Logout(ctx context.Context) error {
	m.mu.Lock()
	actor := domain.AnonymousActor
	if m.record != nil {
		actor = m.record.Account
	}
	clearErr := m.store.Clear(ctx)
	m.record = nil
	m.refreshFailed = false
	m.generation++
	m.mu.Unlock()

	m.states.Clear(ctx)

	m.appendAudit(ctx, domain.AuditLogout, actor, clearErr == nil, nil)
	if clearErr != nil {
		logger.Error("token manager: clearing credentials on logout failed: %v", clearErr)
		return storageErr(clearErr)
	}
	logger.Info("token manager: logged out")
	return nil
}

func (m *TokenManager) actor() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.record == nil {
		return domain.AnonymousActor
	}
	return m.record.Account
}

func (m *TokenManager) appendAudit(
	ctx context.Context,
	op domain.AuditOperation,
	actor string,
	success bool,
	detail map[string]any,
) {
	m.audit.Append(ctx, domain.AuditEntry{
		Timestamp: m.clock.Now(),
		Operation: op,
		Actor:     actor,
		Success:   success,
		Detail:    detail,
	})
}

func missingCredentialsErr(refreshFailed bool) error {
	if refreshFailed {
		return domain.ErrReauthenticationRequired
	}
	return domain.ErrNotAuthenticated
}

func storageErr(err error) error {
	if errors.Is(err, domain.ErrStorageIO) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrStorageIO, err)
}

// randomToken returns n random bytes, base64url encoded without padding.
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
