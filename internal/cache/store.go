// Package cache holds reference-data options for dropdowns: a shared Store with TTL staleness,
// request coalescing, timeout backoff and optional durable snapshots, and a lightweight
// per-component Hook.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"optcache/internal/gateway"
	"optcache/internal/ports"
	"optcache/internal/types"

	"github.com/jellydator/ttlcache/v3"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Source is the remote side of the Store. *gateway.Gateway implements it.
type Source interface {
	Fetcher
	Create(ctx context.Context, e types.EntityType, label, parentID string) (types.Option, error)
	// Forget drops anything the source memoized for the entity.
	Forget(e types.EntityType)
}

// Listener observes every committed change of an entry.
type Listener func(key types.CacheKey, entry types.CacheEntry)

// Store is the cache shared by every dropdown of a provider. Entries are created lazily and only
// mutated through its methods. At most one fetch per key is in flight; concurrent callers share it.
type Store struct {
	cfg   types.Config
	src   Source
	snaps ports.SnapshotStore

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	searches    *ttlcache.Cache[string, []types.Option]
	searchGroup singleflight.Group

	mu        sync.Mutex
	entries   map[types.CacheKey]*state
	lastGen   uint64
	listeners map[int]Listener
	nextSub   int
}

// state wraps an entry with its fetch bookkeeping.
type state struct {
	entry types.CacheEntry
	// gen is the generation of the newest fetch started for the key; only it may commit.
	gen      uint64
	inflight *flight
	// attempts counts consecutive failures; it shapes the next timeout window.
	attempts        int
	fallbackApplied bool
	// pending are optimistic creates, newest first, tagged with the generation counter at creation.
	pending []pendingOption
}

type flight struct {
	gen     uint64
	timeout time.Duration
	done    chan struct{}
	err     error
}

type pendingOption struct {
	opt types.Option
	gen uint64
}

// NewStore builds a Store. snaps may be nil to disable durable snapshots.
func NewStore(cfg types.Config, src Source, snaps ports.SnapshotStore) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		cfg:       cfg,
		src:       src,
		snaps:     snaps,
		ctx:       ctx,
		cancel:    cancel,
		entries:   make(map[types.CacheKey]*state),
		listeners: make(map[int]Listener),
	}
	if cfg.SearchDebounce > 0 {
		s.searches = ttlcache.New[string, []types.Option](
			ttlcache.WithTTL[string, []types.Option](cfg.SearchDebounce),
			ttlcache.WithDisableTouchOnHit[string, []types.Option](),
		)
	}
	return s
}

// Close stops background refreshes and waits for them to settle.
func (s *Store) Close() {
	s.cancel()
	s.wg.Wait()
}

// Subscribe registers l for every committed change. The returned func unsubscribes.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = l
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify(key types.CacheKey, e types.CacheEntry) {
	s.mu.Lock()
	ls := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		ls = append(ls, l)
	}
	s.mu.Unlock()
	for _, l := range ls {
		l(key, e)
	}
}

// state returns the bookkeeping for key, creating it. Callers hold s.mu.
func (s *Store) state(key types.CacheKey) *state {
	st, ok := s.entries[key]
	if !ok {
		st = &state{}
		s.entries[key] = st
	}
	return st
}

func snapshotOf(e types.CacheEntry) types.CacheEntry {
	e.Data = types.CloneOptions(e.Data)
	return e
}

// GetOptions returns what is cached for the key right now. A stale or missing entry starts one
// background refresh unless one is already running; the result lands in the entry later.
func (s *Store) GetOptions(e types.EntityType, parentID string) []types.Option {
	if !e.Valid() {
		return nil
	}
	key := types.NewKey(e, parentID)

	s.mu.Lock()
	st := s.state(key)
	stale := st.entry.Stale(nowMillis(), s.cfg.CacheTTL)
	data := types.CloneOptions(st.entry.Data)
	var f *flight
	if stale && st.inflight == nil {
		f = s.begin(st)
	}
	var loading types.CacheEntry
	if f != nil {
		loading = snapshotOf(st.entry)
	}
	s.mu.Unlock()

	if stale {
		lookups.WithLabelValues(string(e), "stale").Inc()
	} else {
		lookups.WithLabelValues(string(e), "fresh").Inc()
	}
	if f != nil {
		s.notify(key, loading)
		s.spawn(key, f)
	}
	return data
}

// Ensure returns a fresh entry, fetching if needed. Concurrent callers for the same key share one
// fetch. The returned error is the fetch failure; the entry still carries whatever data is known.
func (s *Store) Ensure(ctx context.Context, e types.EntityType, parentID string) (types.CacheEntry, error) {
	if !e.Valid() {
		return types.CacheEntry{}, types.Err(types.ErrUnknownEntity, nil, "unknown entity type %q", e)
	}
	return s.load(ctx, types.NewKey(e, parentID), false)
}

// RefreshOptions fetches the key even if its entry is fresh. A non-empty search is a filtered
// view and is served by SearchOptions without touching the entry.
func (s *Store) RefreshOptions(ctx context.Context, e types.EntityType, parentID, search string) ([]types.Option, error) {
	if !e.Valid() {
		return nil, types.Err(types.ErrUnknownEntity, nil, "unknown entity type %q", e)
	}
	if search != "" {
		return s.SearchOptions(ctx, e, search, parentID)
	}
	s.src.Forget(e)
	entry, err := s.load(ctx, types.NewKey(e, parentID), true)
	return entry.Data, err
}

func (s *Store) load(ctx context.Context, key types.CacheKey, force bool) (types.CacheEntry, error) {
	s.mu.Lock()
	st := s.state(key)
	if !force && st.inflight == nil && !st.entry.Stale(nowMillis(), s.cfg.CacheTTL) {
		out := snapshotOf(st.entry)
		s.mu.Unlock()
		lookups.WithLabelValues(string(key.Entity), "fresh").Inc()
		return out, nil
	}
	f := st.inflight
	var loading types.CacheEntry
	owner := f == nil
	if owner {
		f = s.begin(st)
		loading = snapshotOf(st.entry)
	}
	s.mu.Unlock()

	lookups.WithLabelValues(string(key.Entity), "stale").Inc()
	if owner {
		s.notify(key, loading)
		s.spawn(key, f)
	}

	select {
	case <-f.done:
	case <-ctx.Done():
		return s.current(key), ctx.Err()
	}
	return s.current(key), f.err
}

func (s *Store) current(key types.CacheKey) types.CacheEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.entries[key]; ok {
		return snapshotOf(st.entry)
	}
	return types.CacheEntry{}
}

// begin registers a new in-flight fetch for st. Callers hold s.mu.
func (s *Store) begin(st *state) *flight {
	s.lastGen++
	st.gen = s.lastGen
	f := &flight{
		gen:     st.gen,
		timeout: s.attemptTimeout(st.attempts),
		done:    make(chan struct{}),
	}
	st.inflight = f
	st.entry.IsLoading = true
	return f
}

// attemptTimeout is the fetch timeout after the given number of consecutive failures:
// the base timeout first, then min(2^attempts * BackoffBase, BackoffMax), never below the base.
func (s *Store) attemptTimeout(attempts int) time.Duration {
	if attempts <= 0 {
		return s.cfg.FetchTimeout
	}
	d := s.cfg.BackoffMax
	if attempts < 31 {
		if b := s.cfg.BackoffBase * time.Duration(1<<attempts); b > 0 && b < d {
			d = b
		}
	}
	if d < s.cfg.FetchTimeout {
		d = s.cfg.FetchTimeout
	}
	return d
}

func (s *Store) spawn(key types.CacheKey, f *flight) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(key, f)
	}()
}

func (s *Store) run(key types.CacheKey, f *flight) {
	start := timeNow()
	opts, err := s.src.Fetch(s.ctx, key.Entity, gateway.FetchParams{ParentID: key.ParentID, Timeout: f.timeout})
	fetchSeconds.WithLabelValues(string(key.Entity)).Observe(timeNow().Sub(start).Seconds())
	switch {
	case err == nil:
		remoteFetches.WithLabelValues(string(key.Entity), "ok").Inc()
	case errors.Is(err, types.ErrTimeout):
		remoteFetches.WithLabelValues(string(key.Entity), "timeout").Inc()
	default:
		remoteFetches.WithLabelValues(string(key.Entity), "error").Inc()
	}
	s.commit(key, f, opts, err)
}

// commit settles a fetch. The in-flight marker and loading flag are always cleared; the result
// is applied only if f is still the newest fetch of the key.
func (s *Store) commit(key types.CacheKey, f *flight, opts []types.Option, err error) {
	f.err = err
	defer close(f.done)

	s.mu.Lock()
	st, ok := s.entries[key]
	if !ok || st.gen != f.gen {
		if ok && st.inflight == f {
			st.inflight = nil
			st.entry.IsLoading = false
		}
		s.mu.Unlock()
		log.WithFields(log.Fields{"key": key.String(), "gen": f.gen}).Debug("dropping superseded fetch result")
		return
	}
	st.inflight = nil
	st.entry.IsLoading = false
	now := nowMillis()

	if err == nil {
		data := types.CloneOptions(opts)
		kept := st.pending[:0]
		// Options created after this fetch started may be missing from its result.
		for i := len(st.pending) - 1; i >= 0; i-- {
			p := st.pending[i]
			if p.gen < f.gen {
				continue
			}
			if !types.ContainsValue(data, p.opt.Value) {
				data = types.PrependOption(data, p.opt)
			}
		}
		for _, p := range st.pending {
			if p.gen >= f.gen {
				kept = append(kept, p)
			}
		}
		st.pending = kept
		st.entry.Data = data
		st.entry.Timestamp = now
		st.entry.Error = ""
		st.entry.Fallback = false
		st.attempts = 0
		st.fallbackApplied = false
	} else {
		st.entry.Error = types.Message(err)
		// Advancing the timestamp without data would make an empty entry look fresh.
		if len(st.entry.Data) > 0 {
			st.entry.Timestamp = now
		}
		st.attempts++
		if st.attempts >= s.cfg.MaxFailures {
			st.attempts = 0
			if fb := s.cfg.FallbackFor(key.Entity); len(fb) > 0 && len(st.entry.Data) == 0 && !st.fallbackApplied {
				st.entry.Data = fb
				st.entry.Fallback = true
				st.entry.Timestamp = now
				st.fallbackApplied = true
				fallbacks.WithLabelValues(string(key.Entity)).Inc()
				log.WithField("key", key.String()).Warn("backend keeps failing, using built-in defaults")
			}
		}
		log.WithError(err).WithFields(log.Fields{
			"key":      key.String(),
			"attempts": st.attempts,
			"cached":   len(st.entry.Data),
		}).Warn("refresh failed, keeping cached options")
	}
	out := snapshotOf(st.entry)
	s.mu.Unlock()

	if err == nil {
		s.persist(key, out)
	}
	s.notify(key, out)
}

// CreateOption creates through the source and prepends the new option to the key's entry.
// The entry's timestamp is left alone: the create neither refreshes nor invalidates it.
func (s *Store) CreateOption(ctx context.Context, e types.EntityType, name, parentID string) (types.Option, error) {
	opt, err := s.src.Create(ctx, e, name, parentID)
	if err != nil {
		creates.WithLabelValues(string(e), "error").Inc()
		return types.Option{}, err
	}
	creates.WithLabelValues(string(e), "ok").Inc()
	key := types.NewKey(e, parentID)

	s.mu.Lock()
	st := s.state(key)
	st.entry.Data = types.PrependOption(st.entry.Data, opt)
	st.pending = append([]pendingOption{{opt: opt, gen: s.lastGen}}, st.pending...)
	out := snapshotOf(st.entry)
	s.mu.Unlock()

	s.dropSearches(key)
	if !out.IsLoading {
		s.persist(key, out)
	}
	s.notify(key, out)
	return opt, nil
}

// InvalidateCache makes the key stale without dropping its data, so dropdowns keep showing the
// last known options until the next read refreshes them. For items without a parent every
// items bucket is invalidated.
func (s *Store) InvalidateCache(e types.EntityType, parentID string) {
	if !e.Valid() {
		return
	}
	key := types.NewKey(e, parentID)
	s.src.Forget(e)

	s.mu.Lock()
	var changed []types.CacheKey
	var outs []types.CacheEntry
	for k, st := range s.entries {
		if k == key || (e.ParentScoped() && parentID == "" && k.Entity == e) {
			st.entry.Timestamp = 0
			changed = append(changed, k)
			outs = append(outs, snapshotOf(st.entry))
		}
	}
	s.mu.Unlock()

	for i, k := range changed {
		s.dropSearches(k)
		s.notify(k, outs[i])
	}
}

// PrefetchAll warms the given entities (all global entities by default) concurrently.
// Failures are per entity and returned joined.
func (s *Store) PrefetchAll(ctx context.Context, entities ...types.EntityType) error {
	return s.prefetch(ctx, entities)
}

// Clear drops every entry. Fetches still in flight settle without touching the new state.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = make(map[types.CacheKey]*state)
	s.mu.Unlock()
	if s.searches != nil {
		s.searches.DeleteAll()
	}
}

// Entry returns a copy of the key's entry and whether it exists.
func (s *Store) Entry(e types.EntityType, parentID string) (types.CacheEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.entries[types.NewKey(e, parentID)]
	if !ok {
		return types.CacheEntry{}, false
	}
	return snapshotOf(st.entry), true
}

func (s *Store) IsLoading(e types.EntityType, parentID string) bool {
	entry, _ := s.Entry(e, parentID)
	return entry.IsLoading
}

func (s *Store) HasError(e types.EntityType, parentID string) bool {
	entry, _ := s.Entry(e, parentID)
	return entry.Error != ""
}

// Error returns the last fetch error message of the key, "" if none.
func (s *Store) Error(e types.EntityType, parentID string) string {
	entry, _ := s.Entry(e, parentID)
	return entry.Error
}

// Fetch lets a Hook sit on top of the Store: plain reads go through Ensure, searches through
// SearchOptions. Filters other than the parent are not supported here.
func (s *Store) Fetch(ctx context.Context, e types.EntityType, p gateway.FetchParams) ([]types.Option, error) {
	if p.Search != "" {
		return s.SearchOptions(ctx, e, p.Search, p.ParentID)
	}
	entry, err := s.Ensure(ctx, e, p.ParentID)
	if err != nil && len(entry.Data) == 0 {
		return nil, err
	}
	return entry.Data, nil
}
