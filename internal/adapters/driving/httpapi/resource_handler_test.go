package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prdeepak/ms365-access/internal/connectors/microsoft"
	"github.com/prdeepak/ms365-access/internal/core/domain"
)

func TestResource_UnauthenticatedIsUniform401(t *testing.T) {
	routes := []struct {
		method string
		target string
		body   string
	}{
		{http.MethodGet, "/me", ""},
		{http.MethodGet, "/mail/messages", ""},
		{http.MethodPost, "/mail/send", `{"to":["a@example.com"],"subject":"s","body":"b"}`},
		{http.MethodDelete, "/mail/messages/AAMk1", ""},
		{http.MethodGet, "/calendar/events", ""},
		{http.MethodDelete, "/calendar/events/AAMk2", ""},
		{http.MethodGet, "/files/children", ""},
		{http.MethodDelete, "/files/items/01ABC", ""},
		{http.MethodGet, "/sharepoint/sites", ""},
	}

	for _, tokenErr := range []error{domain.ErrNotAuthenticated, domain.ErrReauthenticationRequired} {
		for _, r := range routes {
			t.Run(fmt.Sprintf("%v %s %s", tokenErr, r.method, r.target), func(t *testing.T) {
				env := newTestEnv(t)
				env.tokens.tokenErr = tokenErr

				resp := env.do(t, r.method, r.target, r.body)

				assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
				body := decodeError(t, resp)
				assert.Equal(t, CodeReauthenticationRequired, body.Error)
				assert.Equal(t, LoginRequiredDetail, body.Detail)
				assert.Equal(t, 0, env.graph.calls(), "no Graph call without a token")
			})
		}
	}
}

func TestResource_TransientIs503WithRetryAfter(t *testing.T) {
	env := newTestEnv(t)
	env.tokens.tokenErr = fmt.Errorf("%w: status 503", domain.ErrTransientProvider)

	resp := env.do(t, http.MethodGet, "/me", "")

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "30", resp.Header.Get("Retry-After"))
	assert.Equal(t, CodeProviderUnavailable, decodeError(t, resp).Error)
}

func TestResource_PassesGraphJSONThrough(t *testing.T) {
	env := newTestEnv(t)
	env.graph.responses = []graphResponse{{body: json.RawMessage(`{"value":[{"id":"m1","subject":"Hello"}]}`)}}

	resp := env.do(t, http.MethodGet, "/mail/messages?folder=sentitems&top=5", "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"value":[{"id":"m1","subject":"Hello"}]}`, readBody(t, resp))

	req := env.graph.lastRequest()
	assert.Equal(t, "/me/mailFolders/sentitems/messages", req.Path)
	assert.Equal(t, "5", req.Query.Get("$top"))
	assert.Equal(t, []string{"access-1"}, env.graph.tokens)
}

func TestResource_RetriesOnceAfterGraph401(t *testing.T) {
	env := newTestEnv(t)
	env.graph.responses = []graphResponse{
		{err: &microsoft.GraphError{Status: http.StatusUnauthorized, Code: "InvalidAuthenticationToken"}},
		{body: json.RawMessage(`{"id":"u1"}`)},
	}

	resp := env.do(t, http.MethodGet, "/me", "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"access-1", "access-2"}, env.graph.tokens)
	assert.Equal(t, []string{"access-1"}, env.tokens.invalidated)
}

func TestResource_GraphErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantRetry  string
	}{
		{
			name:       "not found",
			err:        &microsoft.GraphError{Status: 404, Code: "ErrorItemNotFound", Message: "The specified object was not found."},
			wantStatus: http.StatusNotFound,
			wantCode:   "ErrorItemNotFound",
		},
		{
			name:       "throttled",
			err:        &microsoft.GraphError{Status: 429, Code: "TooManyRequests", RetryAfter: 12},
			wantStatus: http.StatusTooManyRequests,
			wantCode:   "TooManyRequests",
			wantRetry:  "12",
		},
		{
			name:       "no graph code",
			err:        &microsoft.GraphError{Status: 500},
			wantStatus: http.StatusInternalServerError,
			wantCode:   CodeUpstreamError,
		},
		{
			name:       "network failure",
			err:        errors.New("graph request: connection refused"),
			wantStatus: http.StatusBadGateway,
			wantCode:   CodeUpstreamError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.graph.responses = []graphResponse{{err: tt.err}}

			resp := env.do(t, http.MethodGet, "/calendar/events", "")

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantRetry, resp.Header.Get("Retry-After"))
			assert.Equal(t, tt.wantCode, decodeError(t, resp).Error)
		})
	}
}

func TestResource_InvalidQueryIs400(t *testing.T) {
	tests := []string{
		"/mail/messages?top=abc",
		"/mail/messages?skip=-1",
		"/calendar/events?start=tomorrow",
		"/files/children?top=0",
		"/sharepoint/sites?top=x",
	}

	for _, target := range tests {
		t.Run(target, func(t *testing.T) {
			env := newTestEnv(t)

			resp := env.do(t, http.MethodGet, target, "")

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, CodeInvalidRequest, decodeError(t, resp).Error)
			assert.Equal(t, 0, env.graph.calls())
		})
	}
}

func TestResource_DeleteIsAudited(t *testing.T) {
	tests := []struct {
		target       string
		wantPath     string
		wantResource string
	}{
		{"/mail/messages/AAMk1", "/me/messages/AAMk1", "mail"},
		{"/calendar/events/AAMk2", "/me/events/AAMk2", "calendar"},
		{"/files/items/01ABC", "/me/drive/items/01ABC", "files"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			env := newTestEnv(t)
			env.graph.responses = []graphResponse{{body: nil}}

			resp := env.do(t, http.MethodDelete, tt.target, "")

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			req := env.graph.lastRequest()
			assert.Equal(t, http.MethodDelete, req.Method)
			assert.Equal(t, tt.wantPath, req.Path)

			entries := env.audit.all()
			require.Len(t, entries, 1)
			assert.Equal(t, domain.AuditSensitiveGraphCall, entries[0].Operation)
			assert.Equal(t, "user@example.com", entries[0].Actor)
			assert.True(t, entries[0].Success)
			assert.Equal(t, tt.wantResource, entries[0].Detail["resource"])
			assert.Equal(t, "delete", entries[0].Detail["action"])
		})
	}
}

func TestResource_FailedDeleteIsAudited(t *testing.T) {
	env := newTestEnv(t)
	env.graph.responses = []graphResponse{{err: &microsoft.GraphError{Status: 403, Code: "accessDenied"}}}

	resp := env.do(t, http.MethodDelete, "/files/items/01ABC", "")

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	entries := env.audit.all()
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Success)
}

func TestResource_SendMail(t *testing.T) {
	env := newTestEnv(t)
	env.graph.responses = []graphResponse{{body: nil}}

	resp := env.do(t, http.MethodPost, "/mail/send",
		`{"to":["alice@example.com"],"cc":["bob@example.com"],"subject":"Hi","body":"Hello"}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	req := env.graph.lastRequest()
	assert.Equal(t, "/me/sendMail", req.Path)
	assert.Equal(t, http.MethodPost, req.Method)

	entries := env.audit.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "send", entries[0].Detail["action"])
	assert.Equal(t, 2, entries[0].Detail["recipients"])
}

func TestResource_SendMailRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `to=alice`},
		{name: "no recipients", body: `{"subject":"Hi"}`},
		{name: "bad address", body: `{"to":["nobody"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			resp := env.do(t, http.MethodPost, "/mail/send", tt.body)

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, 0, env.graph.calls())
			assert.Empty(t, env.audit.all())
		})
	}
}

func TestResource_ListRoutes(t *testing.T) {
	tests := []struct {
		target   string
		wantPath string
	}{
		{"/me", "/me"},
		{"/calendar/events?start=2026-03-02&end=2026-03-03", "/me/calendarView"},
		{"/files/children?item_id=01XYZ", "/me/drive/items/01XYZ/children"},
		{"/sharepoint/sites?search=finance", "/sites"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			env := newTestEnv(t)

			resp := env.do(t, http.MethodGet, tt.target, "")

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.wantPath, env.graph.lastRequest().Path)
			assert.Empty(t, env.audit.all(), "reads are not audited")
		})
	}
}
