package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"optcache/internal/gateway"
	"optcache/internal/ports"
	"optcache/internal/types"
)

// fakeSource serves options from memory. Fetches snapshot the data when they start, then wait on
// block if it is set, so tests can hold a fetch in flight.
type fakeSource struct {
	mu        sync.Mutex
	data      map[types.CacheKey][]types.Option
	err       error
	createErr error
	block     chan struct{}
	timeouts  []time.Duration
	searches  []string
	nextID    int

	fetches atomic.Int32
	forgets atomic.Int32
}

func newFakeSource() *fakeSource {
	return &fakeSource{data: make(map[types.CacheKey][]types.Option)}
}

func (f *fakeSource) set(e types.EntityType, parentID string, opts ...types.Option) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[types.NewKey(e, parentID)] = opts
}

func (f *fakeSource) failWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeSource) hold() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.block = make(chan struct{})
	return f.block
}

func (f *fakeSource) recordedTimeouts() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.timeouts...)
}

func (f *fakeSource) Fetch(ctx context.Context, e types.EntityType, p gateway.FetchParams) ([]types.Option, error) {
	f.fetches.Add(1)
	f.mu.Lock()
	opts := types.CloneOptions(f.data[types.NewKey(e, p.ParentID)])
	err := f.err
	block := f.block
	f.timeouts = append(f.timeouts, p.Timeout)
	if p.Search != "" {
		f.searches = append(f.searches, p.Search)
	}
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if p.Search != "" {
		filtered := make([]types.Option, 0)
		for _, o := range opts {
			if strings.Contains(strings.ToLower(o.Label), strings.ToLower(p.Search)) {
				filtered = append(filtered, o)
			}
		}
		return filtered, nil
	}
	if opts == nil {
		opts = []types.Option{}
	}
	return opts, nil
}

// Create appends to the backing data, as the remote table would.
func (f *fakeSource) Create(ctx context.Context, e types.EntityType, label, parentID string) (types.Option, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return types.Option{}, f.createErr
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return types.Option{}, types.Err(types.ErrValidation, nil, types.EmptyLabelMessage)
	}
	f.nextID++
	opt := types.Option{Value: fmt.Sprintf("new-%d", f.nextID), Label: label}
	k := types.NewKey(e, parentID)
	f.data[k] = append(f.data[k], opt)
	return opt, nil
}

func (f *fakeSource) Forget(e types.EntityType) {
	f.forgets.Add(1)
}

// stallingRows answers selects from rows until stall is called; afterwards selects hang until
// the gate closes, the way an unreachable backend does.
type stallingRows struct {
	mu      sync.Mutex
	rows    []types.Row
	gate    chan struct{}
	stalled bool
	queries []ports.Query
}

func newStallingRows(rows ...types.Row) *stallingRows {
	return &stallingRows{rows: rows, gate: make(chan struct{})}
}

func (r *stallingRows) stall() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stalled = true
}

func (r *stallingRows) Select(ctx context.Context, q ports.Query) ([]types.Row, error) {
	r.mu.Lock()
	r.queries = append(r.queries, q)
	stalled, rows := r.stalled, r.rows
	r.mu.Unlock()
	if stalled {
		<-r.gate
		return nil, nil
	}
	return rows, nil
}

func (r *stallingRows) Insert(ctx context.Context, table string, row types.Row) (types.Row, error) {
	return nil, fmt.Errorf("insert not supported")
}

func (r *stallingRows) lastQuery() ports.Query {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queries[len(r.queries)-1]
}

// clock is a settable time source for timeNow.
type clock struct {
	ms atomic.Int64
}

func newClock() *clock {
	c := &clock{}
	c.ms.Store(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC).UnixMilli())
	return c
}

func (c *clock) now() time.Time { return time.UnixMilli(c.ms.Load()) }

func (c *clock) advance(d time.Duration) { c.ms.Add(d.Milliseconds()) }

func opts(labels ...string) []types.Option {
	out := make([]types.Option, 0, len(labels))
	for i, l := range labels {
		out = append(out, types.Option{Value: fmt.Sprintf("opt-%d", i), Label: l})
	}
	return out
}
