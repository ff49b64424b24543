package services

import (
	"context"
	"errors"

	"github.com/prdeepak/ms365-access/internal/core/domain"
	"github.com/prdeepak/ms365-access/internal/core/ports/driven"
	"github.com/prdeepak/ms365-access/internal/core/ports/driving"
)

// GraphAction is a resource call made with a bearer token.
type GraphAction func(ctx context.Context, accessToken string) error

// Gate is the only way resource calls obtain an access token.
// When the upstream rejects a token the manager still believed valid, the
// gate invalidates it and retries the action once with a fresh token.
type Gate struct {
	tokens driving.TokenManager
	audit  driven.AuditLog
}

// NewGate creates a gate.
func NewGate(tokens driving.TokenManager, audit driven.AuditLog) *Gate {
	return &Gate{tokens: tokens, audit: audit}
}

// WithAccessToken runs action with a valid access token.
// Token errors from the manager are returned unchanged.
func (g *Gate) WithAccessToken(ctx context.Context, action GraphAction) error {
	token, err := g.tokens.AccessToken(ctx)
	if err != nil {
		return err
	}

	err = action(ctx, token)
	if !errors.Is(err, domain.ErrUpstreamUnauthorized) {
		return err
	}

	g.tokens.InvalidateAccessToken(token)
	token, err = g.tokens.AccessToken(ctx)
	if err != nil {
		return err
	}
	return action(ctx, token)
}

// Sensitive is WithAccessToken plus an audit entry for the outcome.
func (g *Gate) Sensitive(ctx context.Context, op domain.SensitiveOp, action GraphAction) error {
	err := g.WithAccessToken(ctx, action)

	detail := make(map[string]any, len(op.Detail)+4)
	for k, v := range op.Detail {
		detail[k] = v
	}
	detail["resource"] = string(op.Resource)
	detail["action"] = op.Action
	if op.Target != "" {
		detail["target"] = op.Target
	}
	if err != nil {
		detail["error"] = errorClass(err)
	}

	actor := g.tokens.Status(ctx).Account
	if actor == "" {
		actor = domain.AnonymousActor
	}
	g.audit.Append(ctx, domain.AuditEntry{
		Operation: domain.AuditSensitiveGraphCall,
		Actor:     actor,
		Success:   err == nil,
		Detail:    detail,
	})
	return err
}

// errorClass names an error for the audit log without copying upstream text.
func errorClass(err error) string {
	switch {
	case domain.NeedsLogin(err):
		return "reauthentication_required"
	case errors.Is(err, domain.ErrTransientProvider):
		return "provider_unavailable"
	case errors.Is(err, domain.ErrStorageIO):
		return "storage_failure"
	case errors.Is(err, domain.ErrUpstreamUnauthorized):
		return "upstream_unauthorized"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "upstream_error"
	}
}
