// Package audit writes and reads the append-only audit log.
//
// Each entry is one JSON object per line. Writes are serialised and synced.
// A failed write is reported on the application log and never returned.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prdeepak/ms365-access/internal/core/domain"
	"github.com/prdeepak/ms365-access/internal/core/ports/driven"
	"github.com/prdeepak/ms365-access/internal/logger"
)

// Verify interface compliance.
var _ driven.AuditLog = (*Log)(nil)

// Log appends entries to a file.
type Log struct {
	mu    sync.Mutex
	path  string
	clock driven.Clock
}

// Option configures a Log.
type Option func(*Log)

// WithClock overrides the timestamp source.
func WithClock(c driven.Clock) Option {
	return func(l *Log) {
		l.clock = c
	}
}

// New creates a log writing to path. The file is created lazily.
func New(path string, opts ...Option) *Log {
	l := &Log{path: path, clock: driven.SystemClock{}}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the file the log writes to.
func (l *Log) Path() string {
	return l.path
}

// Append implements driven.AuditLog.
func (l *Log) Append(_ context.Context, entry domain.AuditEntry) {
	entry = entry.Redacted()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.clock.Now()
	}
	entry.Timestamp = entry.Timestamp.UTC()
	if entry.Actor == "" {
		entry.Actor = domain.AnonymousActor
	}

	if err := l.write(entry); err != nil {
		logger.L().Error("audit write failed",
			zap.String("operation", string(entry.Operation)),
			zap.String("actor", entry.Actor),
			zap.Bool("success", entry.Success),
			zap.Error(err),
		)
	}
}

func (l *Log) write(entry domain.AuditEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return f.Sync()
}
