package cli

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prdeepak/ms365-access/internal/core/domain"
	"github.com/prdeepak/ms365-access/internal/core/ports/driving"
)

// executeCommand runs the root command with args and returns its output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		statusJSON = false
		auditJSON = false
		auditLines = 20
		verbose = false
	})

	err := rootCmd.Execute()
	return buf.String(), err
}

// saveServices snapshots the injected services and returns a restore func.
func saveServices() func() {
	oldTokens, oldAudit, oldServer, oldErr, oldURL := tokenManager, auditReader, httpServer, serverErr, loginURL
	return func() {
		tokenManager, auditReader, httpServer, serverErr, loginURL = oldTokens, oldAudit, oldServer, oldErr, oldURL
	}
}

// fakeTokens implements driving.TokenManager for testing.
type fakeTokens struct {
	status      domain.AuthStatus
	logoutErr   error
	logoutCalls int
}

var _ driving.TokenManager = (*fakeTokens)(nil)

func newFakeTokens() *fakeTokens {
	return &fakeTokens{status: domain.AuthStatus{State: domain.StateUnauthenticated}}
}

func (f *fakeTokens) BeginLogin(context.Context, string) (string, error) {
	return "", errors.New("not supported")
}

func (f *fakeTokens) CompleteLogin(context.Context, string, string) (*driving.LoginResult, error) {
	return nil, errors.New("not supported")
}

func (f *fakeTokens) AccessToken(context.Context) (string, error) {
	return "", domain.ErrNotAuthenticated
}

func (f *fakeTokens) InvalidateAccessToken(string) {}

func (f *fakeTokens) Status(context.Context) domain.AuthStatus {
	return f.status
}

func (f *fakeTokens) Logout(context.Context) error {
	f.logoutCalls++
	return f.logoutErr
}

func (f *fakeTokens) Restore(context.Context) {}

// fakeAuditReader returns fixed entries.
type fakeAuditReader struct {
	entries []domain.AuditEntry
	err     error
	lastN   int
}

func (r *fakeAuditReader) Tail(n int) ([]domain.AuditEntry, error) {
	r.lastN = n
	if r.err != nil {
		return nil, r.err
	}
	if len(r.entries) > n {
		return r.entries[len(r.entries)-n:], nil
	}
	return r.entries, nil
}

// fakeServer blocks in Start until Shutdown.
type fakeServer struct {
	started  chan struct{}
	stop     chan struct{}
	once     sync.Once
	startErr error

	mu            sync.Mutex
	shutdownCalls int
}

func newFakeServer() *fakeServer {
	return &fakeServer{started: make(chan struct{}), stop: make(chan struct{})}
}

func (s *fakeServer) Start() error {
	close(s.started)
	if s.startErr != nil {
		return s.startErr
	}
	<-s.stop
	return nil
}

func (s *fakeServer) Shutdown(context.Context) error {
	s.mu.Lock()
	s.shutdownCalls++
	s.mu.Unlock()
	s.once.Do(func() { close(s.stop) })
	return nil
}

func (s *fakeServer) shutdowns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdownCalls
}
