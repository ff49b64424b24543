package driven

import (
	"context"

	"github.com/prdeepak/ms365-access/internal/core/domain"
)

// AuditLog records security-relevant operations.
// Append never fails from the caller's point of view: write errors are
// reported on the application log and swallowed.
type AuditLog interface {
	Append(ctx context.Context, entry domain.AuditEntry)
}
