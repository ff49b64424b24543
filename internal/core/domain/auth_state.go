package domain

import "time"

// AuthState is the state of the token lifecycle.
type AuthState string

const (
	// StateUnauthenticated means no credentials are held.
	StateUnauthenticated AuthState = "UNAUTHENTICATED"
	// StateValid means the access token is present and not expired.
	StateValid AuthState = "AUTHENTICATED_VALID"
	// StateExpired means the access token is past expiry but a refresh token is held.
	StateExpired AuthState = "AUTHENTICATED_EXPIRED"
	// StateRefreshFailed means the provider rejected the refresh token.
	// Only a fresh login leaves this state.
	StateRefreshFailed AuthState = "REFRESH_FAILED"
)

// Authenticated reports whether the state holds usable credentials.
func (s AuthState) Authenticated() bool {
	return s == StateValid || s == StateExpired
}

// AuthStatus is a point-in-time view of the token lifecycle.
// It never carries token material.
type AuthStatus struct {
	State         AuthState  `json:"state"`
	Authenticated bool       `json:"authenticated"`
	Account       string     `json:"account,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	Scopes        []string   `json:"scopes,omitempty"`
}
