package memory

import (
	"context"
	"sync"
	"time"

	"optcache/internal/codec"
	"optcache/internal/types"
)

// SnapshotStore keeps encoded snapshots in a map. It survives Store restarts within one process,
// which is what tests of rehydration need.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[types.CacheKey][]byte
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{data: make(map[types.CacheKey][]byte)}
}

func (s *SnapshotStore) Load(ctx context.Context, key types.CacheKey) (*types.Snapshot, error) {
	s.mu.RLock()
	b, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	snap, err := codec.DecodeSnapshot(b)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *SnapshotStore) LoadAll(ctx context.Context) ([]types.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Snapshot, 0, len(s.data))
	for _, b := range s.data {
		snap, err := codec.DecodeSnapshot(b)
		if err != nil {
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

func (s *SnapshotStore) Save(ctx context.Context, snap types.Snapshot, ttl time.Duration) error {
	b, err := codec.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data[snap.Key()] = b
	s.mu.Unlock()
	return nil
}

// Put stores raw bytes under key. Tests use it to plant corrupt records.
func (s *SnapshotStore) Put(key types.CacheKey, raw []byte) {
	s.mu.Lock()
	s.data[key] = raw
	s.mu.Unlock()
}

func (s *SnapshotStore) Delete(ctx context.Context, key types.CacheKey) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

func (s *SnapshotStore) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	s.data = make(map[types.CacheKey][]byte)
	s.mu.Unlock()
	return nil
}
