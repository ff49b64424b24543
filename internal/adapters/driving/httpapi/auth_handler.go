package httpapi

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/prdeepak/ms365-access/internal/core/ports/driving"
	"github.com/prdeepak/ms365-access/internal/logger"
)

// AuthHandler serves the /auth routes.
type AuthHandler struct {
	tokens driving.TokenManager
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(tokens driving.TokenManager) *AuthHandler {
	return &AuthHandler{tokens: tokens}
}

// Register sets up auth routes.
func (h *AuthHandler) Register(app *fiber.App) {
	auth := app.Group("/auth")
	auth.Get("/login", h.Login)
	auth.Get("/callback", h.Callback)
	auth.Get("/status", h.Status)
	auth.Post("/logout", h.Logout)
}

// callbackResponse is the body of a successful callback without redirect.
type callbackResponse struct {
	Message       string     `json:"message"`
	Authenticated bool       `json:"authenticated"`
	Account       string     `json:"account,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// Login redirects to the Microsoft consent screen.
func (h *AuthHandler) Login(c fiber.Ctx) error {
	redirect := c.Query("redirect")
	if redirect != "" && !isLocalRedirect(redirect) {
		return sendError(c, fiber.StatusBadRequest, CodeInvalidRequest, "redirect must be a local path")
	}

	authURL, err := h.tokens.BeginLogin(c.Context(), redirect)
	if err != nil {
		logger.Error("http: begin login failed: %v", err)
		return sendError(c, fiber.StatusInternalServerError, CodeInternal, "")
	}
	return c.Redirect().Status(fiber.StatusFound).To(authURL)
}

// Callback completes the authorization-code flow.
func (h *AuthHandler) Callback(c fiber.Ctx) error {
	if providerErr := c.Query("error"); providerErr != "" {
		logger.Warn("http: identity provider returned error %q on callback", providerErr)
		return sendError(c, fiber.StatusBadRequest, CodeAuthorizationDenied,
			"The identity provider did not grant access.")
	}

	code, state := c.Query("code"), c.Query("state")
	if code == "" || state == "" {
		return sendError(c, fiber.StatusBadRequest, CodeInvalidRequest, "code and state are required")
	}

	result, err := h.tokens.CompleteLogin(c.Context(), code, state)
	if err != nil {
		return writeLoginError(c, err)
	}

	if result.RedirectContext != "" && isLocalRedirect(result.RedirectContext) {
		return c.Redirect().Status(fiber.StatusFound).To(result.RedirectContext)
	}
	return c.JSON(callbackResponse{
		Message:       "Authentication successful",
		Authenticated: result.Status.Authenticated,
		Account:       result.Status.Account,
		ExpiresAt:     result.Status.ExpiresAt,
	})
}

// Status reports the token lifecycle state.
func (h *AuthHandler) Status(c fiber.Ctx) error {
	return c.JSON(h.tokens.Status(c.Context()))
}

// Logout clears stored credentials. It succeeds when nothing is stored.
func (h *AuthHandler) Logout(c fiber.Ctx) error {
	if err := h.tokens.Logout(c.Context()); err != nil {
		return sendError(c, fiber.StatusInternalServerError, CodeStorageFailure,
			"Credentials could not be removed from storage.")
	}
	return c.JSON(fiber.Map{"message": "Logged out successfully"})
}

// isLocalRedirect accepts only same-origin absolute paths.
func isLocalRedirect(target string) bool {
	if !strings.HasPrefix(target, "/") {
		return false
	}
	if strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return false
	}
	return !strings.ContainsAny(target, "\r\n")
}
