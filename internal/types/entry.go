package types

import "time"

// CacheEntry is the state of one (entity, parent) bucket.
// IsLoading is true only while a fetch for this exact key is in flight.
// A non-empty Error never clears Data: stale options beat an empty dropdown.
type CacheEntry struct {
	Data      []Option `json:"data"`
	Timestamp int64    `json:"timestamp"` // epoch millis of the last successful fetch
	IsLoading bool     `json:"is_loading"`
	Error     string   `json:"error,omitempty"`
	// Fallback marks built-in default data substituted after repeated failures. Never persisted.
	Fallback bool `json:"fallback,omitempty"`
}

// Stale reports whether the entry needs a refresh at now (epoch millis).
// An entry without data is always stale.
func (e CacheEntry) Stale(now int64, ttl time.Duration) bool {
	if len(e.Data) == 0 {
		return true
	}
	return now-e.Timestamp > ttl.Milliseconds()
}

// Snapshot is the durable record of a cache entry.
type Snapshot struct {
	Entity    EntityType `json:"entity" dynamodbav:"entity"`
	ParentID  string     `json:"parent_id,omitempty" dynamodbav:"parent_id"`
	Data      []Option   `json:"data" dynamodbav:"-"`
	Timestamp int64      `json:"timestamp" dynamodbav:"timestamp"`
}

func (s Snapshot) Key() CacheKey { return NewKey(s.Entity, s.ParentID) }

// Expired reports whether the snapshot is older than ttl at now (epoch millis).
func (s Snapshot) Expired(now int64, ttl time.Duration) bool {
	return now-s.Timestamp > ttl.Milliseconds()
}

// Revalidation is published after a create so other replicas and the snapshot
// purger can drop what they hold for the entity.
type Revalidation struct {
	Entity   EntityType `json:"entity"`
	ParentID string     `json:"parent_id,omitempty"`
	Value    string     `json:"value,omitempty"`
	At       int64      `json:"at"`
}
