package domain

import (
	"strings"
	"time"
)

// AuditOperation names a sensitive operation recorded in the audit log.
type AuditOperation string

const (
	AuditLoginInitiated     AuditOperation = "login_initiated"
	AuditLoginCompleted     AuditOperation = "login_completed"
	AuditTokenRefreshed     AuditOperation = "token_refreshed"
	AuditTokenRefreshFailed AuditOperation = "token_refresh_failed"
	AuditLogout             AuditOperation = "logout"
	AuditSensitiveGraphCall AuditOperation = "sensitive_graph_call"
)

// AnonymousActor is recorded when no account is signed in.
const AnonymousActor = "anonymous"

// AuditEntry is one immutable line of the audit log.
type AuditEntry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Operation AuditOperation `json:"operation"`
	Actor     string         `json:"actor"`
	Success   bool           `json:"success"`
	Detail    map[string]any `json:"detail,omitempty"`
}

const redacted = "[REDACTED]"

var sensitiveKeyParts = []string{"token", "secret", "code", "password", "verifier", "authorization"}

// Redacted returns a copy of the entry whose detail cannot carry secrets.
func (e AuditEntry) Redacted() AuditEntry {
	e.Detail = redactMap(e.Detail)
	return e
}

func redactMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		if isSensitiveKey(k) {
			out[k] = redacted
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			out[k] = redactMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}

func isSensitiveKey(k string) bool {
	lk := strings.ToLower(k)
	for _, part := range sensitiveKeyParts {
		if strings.Contains(lk, part) {
			return true
		}
	}
	return false
}
