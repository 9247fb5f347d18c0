package history

import "context"

// Archiver mirrors terminal records into long-term storage. Implementations
// are best-effort: the file store stays the source of truth.
type Archiver interface {
	EnsureSchema(ctx context.Context) error
	ArchiveAttempt(ctx context.Context, rec Record) error
}
