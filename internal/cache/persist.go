package cache

import (
	"context"

	"optcache/internal/types"

	log "github.com/sirupsen/logrus"
)

// Hydrate loads durable snapshots into empty entries. Snapshots older than the cache TTL are
// discarded and deleted. Store failures and corrupt records count as misses; Hydrate never fails.
// It returns the number of entries loaded.
func (s *Store) Hydrate(ctx context.Context) int {
	if s.snaps == nil {
		return 0
	}
	snaps, err := s.snaps.LoadAll(ctx)
	if err != nil {
		snapshotOps.WithLabelValues("load", "error").Inc()
		log.WithError(err).Warn("could not load snapshots, starting cold")
		return 0
	}
	now := nowMillis()
	loaded := 0
	for _, snap := range snaps {
		key := snap.Key()
		if snap.Expired(now, s.cfg.CacheTTL) || len(snap.Data) == 0 {
			snapshotOps.WithLabelValues("expire", "ok").Inc()
			if err := s.snaps.Delete(ctx, key); err != nil {
				log.WithError(err).WithField("key", key.String()).Debug("could not delete expired snapshot")
			}
			continue
		}
		s.mu.Lock()
		st := s.state(key)
		if len(st.entry.Data) == 0 {
			st.entry.Data = types.CloneOptions(snap.Data)
			st.entry.Timestamp = snap.Timestamp
			loaded++
		}
		s.mu.Unlock()
	}
	snapshotOps.WithLabelValues("load", "ok").Inc()
	log.WithFields(log.Fields{"loaded": loaded, "stored": len(snaps)}).Info("hydrated options cache")
	return loaded
}

// persist writes a settled entry. Empty, loading and fallback entries are skipped; failures are
// logged only.
func (s *Store) persist(key types.CacheKey, e types.CacheEntry) {
	if s.snaps == nil || len(e.Data) == 0 || e.IsLoading || e.Fallback {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.FetchTimeout)
	defer cancel()
	snap := types.Snapshot{
		Entity:    key.Entity,
		ParentID:  key.ParentID,
		Data:      e.Data,
		Timestamp: e.Timestamp,
	}
	if err := s.snaps.Save(ctx, snap, s.cfg.CacheTTL); err != nil {
		snapshotOps.WithLabelValues("save", "error").Inc()
		log.WithError(err).WithField("key", key.String()).Warn("could not persist snapshot")
		return
	}
	snapshotOps.WithLabelValues("save", "ok").Inc()
}
