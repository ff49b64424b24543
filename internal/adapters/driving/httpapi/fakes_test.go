package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/prdeepak/ms365-access/internal/connectors/microsoft"
	"github.com/prdeepak/ms365-access/internal/core/domain"
	"github.com/prdeepak/ms365-access/internal/core/ports/driving"
	"github.com/prdeepak/ms365-access/internal/core/services"
)

// fakeTokens is a scripted driving.TokenManager.
type fakeTokens struct {
	mu sync.Mutex

	authURL  string
	beginErr error

	result      *driving.LoginResult
	completeErr error

	token    string
	tokenErr error
	// refreshed replaces token after InvalidateAccessToken.
	refreshed string

	status    domain.AuthStatus
	logoutErr error

	beginCalls    int
	completeCalls int
	logoutCalls   int
	lastRedirect  string
	lastCode      string
	invalidated   []string
}

var _ driving.TokenManager = (*fakeTokens)(nil)

func newFakeTokens() *fakeTokens {
	expires := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	return &fakeTokens{
		authURL:   "https://login.test/authorize?state=abc",
		token:     "access-1",
		refreshed: "access-2",
		status: domain.AuthStatus{
			State:         domain.StateValid,
			Authenticated: true,
			Account:       "user@example.com",
			ExpiresAt:     &expires,
		},
	}
}

func (f *fakeTokens) BeginLogin(_ context.Context, redirect string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beginCalls++
	f.lastRedirect = redirect
	return f.authURL, f.beginErr
}

func (f *fakeTokens) CompleteLogin(_ context.Context, code, _ string) (*driving.LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeCalls++
	f.lastCode = code
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	if f.result != nil {
		return f.result, nil
	}
	return &driving.LoginResult{Status: f.status}, nil
}

func (f *fakeTokens) AccessToken(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, f.tokenErr
}

func (f *fakeTokens) InvalidateAccessToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, token)
	if token == f.token {
		f.token = f.refreshed
	}
}

func (f *fakeTokens) Status(context.Context) domain.AuthStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeTokens) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
	return f.logoutErr
}

func (f *fakeTokens) Restore(context.Context) {}

// graphResponse is one scripted reply.
type graphResponse struct {
	body json.RawMessage
	err  error
}

// fakeGraph replays responses in order; the last one repeats.
type fakeGraph struct {
	mu        sync.Mutex
	responses []graphResponse
	requests  []microsoft.Request
	tokens    []string
}

func (g *fakeGraph) Do(_ context.Context, token string, req microsoft.Request) (json.RawMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	g.tokens = append(g.tokens, token)
	if len(g.responses) == 0 {
		return json.RawMessage(`{"value":[]}`), nil
	}
	r := g.responses[0]
	if len(g.responses) > 1 {
		g.responses = g.responses[1:]
	}
	return r.body, r.err
}

func (g *fakeGraph) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

func (g *fakeGraph) lastRequest() microsoft.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.requests) == 0 {
		return microsoft.Request{}
	}
	return g.requests[len(g.requests)-1]
}

// recordingAudit keeps appended entries.
type recordingAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (a *recordingAudit) Append(_ context.Context, e domain.AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e.Redacted())
}

func (a *recordingAudit) all() []domain.AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.AuditEntry(nil), a.entries...)
}

type testEnv struct {
	server *Server
	tokens *fakeTokens
	graph  *fakeGraph
	audit  *recordingAudit
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		tokens: newFakeTokens(),
		graph:  &fakeGraph{},
		audit:  &recordingAudit{},
	}
	gate := services.NewGate(env.tokens, env.audit)
	env.server = New(Config{
		Addr:         "127.0.0.1:0",
		AllowedHosts: []string{"localhost", "127.0.0.1"},
		CORSOrigins:  []string{"http://localhost:8365"},
		Version:      "test",
	}, env.tokens, gate, env.graph)
	return env
}

// do sends a request to the app with an allowed Host header.
func (e *testEnv) do(t *testing.T, method, target string, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Host = "localhost:8365"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.server.App().Test(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func decodeError(t *testing.T, resp *http.Response) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}
