package domain

import "time"

// CredentialRecord is the single set of delegated tokens held by the gateway.
// Records are treated as immutable values; transitions build a new record.
type CredentialRecord struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Scopes       []string  `json:"scopes"`
	// Account is the signed-in account identifier (mail or UPN).
	Account string `json:"account"`
	// EncryptionVersion is the key version the record was sealed with.
	// It is set by the credential store on load and save.
	EncryptionVersion int       `json:"encryption_version"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the record.
func (r *CredentialRecord) Clone() *CredentialRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.Scopes != nil {
		c.Scopes = append([]string(nil), r.Scopes...)
	}
	return &c
}

// FreshAt reports whether the access token can still be handed out at now,
// keeping margin in reserve so a request does not race expiry.
func (r *CredentialRecord) FreshAt(now time.Time, margin time.Duration) bool {
	if r == nil || r.AccessToken == "" {
		return false
	}
	return now.Before(r.ExpiresAt.Add(-margin))
}

// TokenGrant is what the identity provider returns for a code or refresh grant.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Scopes       []string
}

// PendingAuthorization correlates an outbound login redirect with its callback.
// It is single-use and short-lived.
type PendingAuthorization struct {
	State string
	// CodeVerifier is the PKCE verifier sent with the code exchange.
	CodeVerifier string
	// RedirectContext is where the browser goes after a successful callback.
	RedirectContext string
	CreatedAt       time.Time
	ExpiresAt       time.Time
}

// ExpiredAt reports whether the pending authorization is past its TTL.
func (p *PendingAuthorization) ExpiredAt(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}
