package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"optcache/internal/codec"
	"optcache/internal/types"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	snapshotKeyNameTemplate = "_optcache_snap_%s"
)

// SnapshotStore keeps one compressed snapshot per cache key. Records expire with the cache TTL,
// so Redis drops what Hydrate would discard anyway.
type SnapshotStore struct {
	cli *redis.Client
}

func NewSnapshotStore(cli *redis.Client) *SnapshotStore {
	return &SnapshotStore{cli: cli}
}

func (s *SnapshotStore) Load(ctx context.Context, key types.CacheKey) (*types.Snapshot, error) {
	out := s.cli.Get(ctx, getSnapshotKey(key.String()))
	if out.Err() != nil {
		if errors.Is(out.Err(), redis.Nil) {
			return nil, nil
		}
		return nil, types.Err(types.ErrDataStoreAccess, out.Err(), "")
	}
	snap, err := codec.DecodeSnapshot([]byte(out.Val()))
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *SnapshotStore) LoadAll(ctx context.Context) ([]types.Snapshot, error) {
	out := s.cli.Keys(ctx, getSnapshotKey("*"))
	if out.Err() != nil {
		return nil, types.Err(types.ErrDataStoreAccess, out.Err(), "")
	}
	keys := out.Val()
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := s.cli.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, types.Err(types.ErrDataStoreAccess, err, "")
	}
	snaps := make([]types.Snapshot, 0, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			// expired between KEYS and MGET
			continue
		}
		snap, err := codec.DecodeSnapshot([]byte(str))
		if err != nil {
			log.WithError(err).WithField("key", keys[i]).Warn("skipping corrupt snapshot")
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func (s *SnapshotStore) Save(ctx context.Context, snap types.Snapshot, ttl time.Duration) error {
	b, err := codec.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	outS := s.cli.Set(ctx, getSnapshotKey(snap.Key().String()), b, ttl)
	return outS.Err()
}

func (s *SnapshotStore) Delete(ctx context.Context, key types.CacheKey) error {
	out := s.cli.Del(ctx, getSnapshotKey(key.String()))
	return out.Err()
}

func (s *SnapshotStore) ClearAll(ctx context.Context) error {
	out := s.cli.Keys(ctx, getSnapshotKey("*"))
	if out.Err() != nil {
		return out.Err()
	}
	keys := out.Val()
	if len(keys) == 0 {
		return nil
	}
	outN := s.cli.Del(ctx, keys...)
	return outN.Err()
}

func getSnapshotKey(id string) string {
	return fmt.Sprintf(snapshotKeyNameTemplate, id)
}
