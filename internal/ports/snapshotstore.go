package ports

import (
	"context"
	"optcache/internal/types"
	"time"
)

// SnapshotStore persists cache entries across restarts. It is a latency optimization only:
// callers treat every error as a cache miss.
type SnapshotStore interface {
	// Load returns the snapshot for key, or (nil, nil) if none is stored. The revalidation
	// handler reads it to decide whether a snapshot is already current.
	Load(ctx context.Context, key types.CacheKey) (*types.Snapshot, error)

	// LoadAll returns every stored snapshot, including parent-scoped items buckets.
	LoadAll(ctx context.Context) ([]types.Snapshot, error)

	// Save writes the snapshot. ttl is a hint for stores that can expire records themselves.
	Save(ctx context.Context, snap types.Snapshot, ttl time.Duration) error

	Delete(ctx context.Context, key types.CacheKey) error

	// ClearAll purges all snapshots. Used in tests and by the purge command.
	ClearAll(ctx context.Context) error
}
