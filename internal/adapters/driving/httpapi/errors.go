package httpapi

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/prdeepak/ms365-access/internal/connectors/microsoft"
	"github.com/prdeepak/ms365-access/internal/core/domain"
	"github.com/prdeepak/ms365-access/internal/logger"
)

// Error codes returned in the "error" field of JSON error bodies.
const (
	CodeReauthenticationRequired = "reauthentication_required"
	CodeInvalidState             = "invalid_state"
	CodeAuthenticationFailed     = "authentication_failed"
	CodeAuthorizationDenied      = "authorization_denied"
	CodeProviderUnavailable      = "provider_unavailable"
	CodeStorageFailure           = "storage_failure"
	CodeInvalidRequest           = "invalid_request"
	CodeUpstreamError            = "upstream_error"
	CodeUpstreamTimeout          = "upstream_timeout"
	CodeInternal                 = "internal_error"
)

// LoginRequiredDetail is the uniform message for every unauthenticated resource call.
const LoginRequiredDetail = "Not authenticated. Please visit /auth/login to authenticate."

// transientRetryAfter is the Retry-After sent when the identity provider is unavailable.
const transientRetryAfter = 30

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func sendError(c fiber.Ctx, status int, code, detail string) error {
	return c.Status(status).JSON(ErrorBody{Error: code, Detail: detail})
}

// writeLoginError maps errors from CompleteLogin. Provider payloads never
// reach the response.
func writeLoginError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidState):
		return sendError(c, fiber.StatusBadRequest, CodeInvalidState,
			"The login attempt is unknown or has expired. Start again at /auth/login.")
	case errors.Is(err, domain.ErrProviderRejected):
		return sendError(c, fiber.StatusBadRequest, CodeAuthenticationFailed,
			"The identity provider rejected the authorization code.")
	case errors.Is(err, domain.ErrTransientProvider):
		return sendError(c, fiber.StatusBadGateway, CodeProviderUnavailable,
			"The identity provider is temporarily unavailable. Try again.")
	case errors.Is(err, domain.ErrStorageIO):
		return sendError(c, fiber.StatusInternalServerError, CodeStorageFailure,
			"Credentials could not be stored.")
	default:
		logger.Error("http: login failed: %v", err)
		return sendError(c, fiber.StatusInternalServerError, CodeInternal, "")
	}
}

// writeResourceError maps errors from gated Graph calls.
func writeResourceError(c fiber.Ctx, err error) error {
	var gerr *microsoft.GraphError
	switch {
	case domain.NeedsLogin(err):
		return sendError(c, fiber.StatusUnauthorized, CodeReauthenticationRequired, LoginRequiredDetail)
	case errors.Is(err, domain.ErrTransientProvider):
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(transientRetryAfter))
		return sendError(c, fiber.StatusServiceUnavailable, CodeProviderUnavailable,
			"The identity provider is temporarily unavailable. Try again.")
	case errors.Is(err, domain.ErrStorageIO):
		return sendError(c, fiber.StatusInternalServerError, CodeStorageFailure, "")
	case errors.Is(err, microsoft.ErrInvalidRequest), errors.Is(err, microsoft.ErrInvalidPath):
		return sendError(c, fiber.StatusBadRequest, CodeInvalidRequest, err.Error())
	case errors.As(err, &gerr):
		if gerr.RetryAfter > 0 {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(gerr.RetryAfter))
		}
		code := gerr.Code
		if code == "" {
			code = CodeUpstreamError
		}
		return sendError(c, gerr.Status, code, gerr.Message)
	case errors.Is(err, context.DeadlineExceeded):
		return sendError(c, fiber.StatusGatewayTimeout, CodeUpstreamTimeout, "")
	default:
		logger.Warn("http: graph call failed: %v", err)
		return sendError(c, fiber.StatusBadGateway, CodeUpstreamError, "")
	}
}

// handleError renders errors returned by handlers and by fiber itself
// (unknown route, method not allowed).
func handleError(c fiber.Ctx, err error) error {
	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		return sendError(c, ferr.Code, codeForStatus(ferr.Code), ferr.Message)
	}
	logger.Error("http: unhandled error on %s %s: %v", c.Method(), c.Path(), err)
	return sendError(c, fiber.StatusInternalServerError, CodeInternal, "")
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return "not_found"
	case fiber.StatusMethodNotAllowed:
		return "method_not_allowed"
	case fiber.StatusBadRequest:
		return CodeInvalidRequest
	default:
		if status >= 500 {
			return CodeInternal
		}
		return "error"
	}
}
