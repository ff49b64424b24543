package domain

import "errors"

// Errors surfaced by the token lifecycle. Adapters wrap these with %w so
// callers can match with errors.Is.
var (
	// ErrInvalidState indicates the callback state did not match a pending
	// authorization, or the pending authorization expired.
	ErrInvalidState = errors.New("invalid or expired authorization state")

	// ErrProviderRejected indicates the token endpoint refused the code or client credentials.
	ErrProviderRejected = errors.New("identity provider rejected the request")

	// ErrTransientProvider indicates a timeout, network failure or 5xx from the
	// identity provider. Stored credentials are left untouched; retrying is sensible.
	ErrTransientProvider = errors.New("identity provider temporarily unavailable")

	// ErrReauthenticationRequired indicates the refresh token was rejected.
	// Stored credentials have been destroyed.
	ErrReauthenticationRequired = errors.New("reauthentication required")

	// ErrNotAuthenticated indicates no credentials have been acquired yet.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrDecryption indicates the stored credential blob could not be opened
	// (wrong key, corruption or tampering).
	ErrDecryption = errors.New("credential store could not be decrypted")

	// ErrStorageIO indicates a read or write failure in the credential store.
	ErrStorageIO = errors.New("credential storage failure")

	// ErrCredentialNotFound indicates nothing has been stored.
	ErrCredentialNotFound = errors.New("no stored credentials")

	// ErrUpstreamUnauthorized indicates a resource API rejected the access token.
	ErrUpstreamUnauthorized = errors.New("upstream rejected access token")
)

// NeedsLogin reports whether err means the caller has to go through /auth/login.
func NeedsLogin(err error) bool {
	return errors.Is(err, ErrReauthenticationRequired) || errors.Is(err, ErrNotAuthenticated)
}
