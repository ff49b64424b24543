package microsoft

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/prdeepak/ms365-access/internal/core/domain"
)

// Error types for Microsoft Graph API responses.
var (
	// ErrUnauthorised indicates the access token is invalid or expired.
	ErrUnauthorised = fmt.Errorf("microsoft: unauthorised: %w", domain.ErrUpstreamUnauthorized)

	// ErrForbidden indicates the user lacks permission for the requested resource.
	ErrForbidden = errors.New("microsoft: forbidden")

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("microsoft: not found")

	// ErrConflict indicates the request conflicts with the resource's current state.
	ErrConflict = errors.New("microsoft: conflict")

	// ErrRateLimited indicates the request was throttled by Microsoft Graph.
	ErrRateLimited = errors.New("microsoft: rate limited")

	// ErrBadRequest indicates the request was malformed.
	ErrBadRequest = errors.New("microsoft: bad request")

	// ErrServerError indicates a server-side error from Microsoft Graph.
	ErrServerError = errors.New("microsoft: server error")

	// ErrInvalidRequest indicates caller input was rejected before any Graph call.
	ErrInvalidRequest = errors.New("microsoft: invalid request")
)

// GraphError is a non-2xx response from Microsoft Graph.
// It carries only Graph's error code and message, never request data.
type GraphError struct {
	Status  int
	Code    string
	Message string
	// RetryAfter is the Retry-After header in seconds, when present.
	RetryAfter int
}

func (e *GraphError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("microsoft: graph returned status %d", e.Status)
	}
	return fmt.Sprintf("microsoft: graph returned status %d: %s", e.Status, e.Code)
}

// Unwrap returns the sentinel for the status so errors.Is works.
func (e *GraphError) Unwrap() error {
	return WrapError(e.Status)
}

// graphErrorBody is Graph's error envelope.
type graphErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// WrapError converts an HTTP status code to an appropriate error.
func WrapError(statusCode int) error {
	switch statusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorised
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound, http.StatusGone:
		return ErrNotFound
	case http.StatusConflict, http.StatusPreconditionFailed:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusBadRequest:
		return ErrBadRequest
	default:
		if statusCode >= 500 {
			return ErrServerError
		}
		return nil
	}
}

// IsUnauthorised checks if the status code indicates an authentication failure.
func IsUnauthorised(statusCode int) bool {
	return statusCode == http.StatusUnauthorized
}

// IsRateLimited checks if the status code indicates rate limiting.
func IsRateLimited(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests
}

// IsRetryable checks if the error is potentially transient and can be retried.
func IsRetryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusGatewayTimeout
}
