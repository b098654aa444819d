package policy

import (
	"context"
	"time"
)

// Fetcher retrieves a source's policy page under rate limiting and retry.
type Fetcher interface {
	Fetch(ctx context.Context, src Source) (FetchResult, error)
}

// SnapshotStore persists raw page captures, append-only, keyed by
// (source code, timestamp). LatestHash supports change detection.
type SnapshotStore interface {
	Save(ctx context.Context, snap Snapshot) error
	LatestHash(ctx context.Context, sourceCode string) (string, bool, error)
}

// PolicyStore appends extracted records. The pipeline never updates or
// deletes prior rows; deduplication belongs to the storage layer.
type PolicyStore interface {
	Persist(ctx context.Context, rec Extracted) error
}

// Hasher computes content digests for snapshots and change detection.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
