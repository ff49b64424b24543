package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/prdeepak/ms365-access/internal/core/domain"
	"github.com/prdeepak/ms365-access/internal/logger"
)

const maxLineSize = 1 << 20

// Reader reads entries back from an audit log file.
type Reader struct {
	path string
}

// NewReader creates a reader for path.
func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// Tail returns the last n entries, oldest first. A missing log yields no entries.
// Lines that do not parse are skipped.
func (r *Reader) Tail(n int) ([]domain.AuditEntry, error) {
	if n <= 0 {
		return nil, nil
	}

	f, err := os.Open(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	ring := make([]domain.AuditEntry, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry domain.AuditEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			logger.Debug("audit: skipping malformed line %d: %v", lineNo, err)
			continue
		}
		if len(ring) == n {
			copy(ring, ring[1:])
			ring = ring[:n-1]
		}
		ring = append(ring, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	return ring, nil
}
