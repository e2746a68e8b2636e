package cache

import (
	"context"
	"sync"
	"time"

	"optcache/internal/gateway"
	"optcache/internal/types"

	log "github.com/sirupsen/logrus"
)

// Fetcher is what a Hook loads from: the gateway itself, or a Store when the hook should
// share fetches with other components.
type Fetcher interface {
	Fetch(ctx context.Context, e types.EntityType, p gateway.FetchParams) ([]types.Option, error)
}

// hookCache is shared by hooks that were not given their own map, keyed by request parameters.
var hookCache = NewTTL[string, []types.Option]()

// Hook is the per-component cache of one dropdown. It does not coordinate with other hooks:
// two hooks on the same key may both fetch.
type Hook struct {
	fetcher Fetcher
	key     types.CacheKey
	ttl     time.Duration
	cache   *TTL[string, []types.Option]

	mu          sync.Mutex
	options     []types.Option
	loading     bool
	initialized bool
	err         error
}

type HookOption func(*Hook)

// WithHookTTL overrides the freshness window (default 5 minutes).
func WithHookTTL(d time.Duration) HookOption {
	return func(h *Hook) { h.ttl = d }
}

// WithHookCache gives the hook its own parameter map instead of the shared one.
func WithHookCache(c *TTL[string, []types.Option]) HookOption {
	return func(h *Hook) { h.cache = c }
}

func NewHook(f Fetcher, e types.EntityType, parentID string, opts ...HookOption) *Hook {
	h := &Hook{
		fetcher: f,
		key:     types.NewKey(e, parentID),
		ttl:     types.DefaultConfig().HookTTL,
		cache:   hookCache,
	}
	for _, o := range opts {
		o(h)
	}
	// Whatever is known for the key, fresh or not, is shown until a load settles.
	if v, ok := h.cache.Peek(h.key.String()); ok {
		h.options = types.CloneOptions(v)
	}
	return h
}

// Load is the mount step: fresh cached data is used as-is, otherwise the fetcher is called.
// Initialized is set once Load settles whatever the outcome; on failure the previous options stay.
func (h *Hook) Load(ctx context.Context) error {
	k := h.key.String()
	if v, ok := h.cache.Get(k); ok {
		h.mu.Lock()
		h.options = types.CloneOptions(v)
		h.initialized = true
		h.mu.Unlock()
		return nil
	}

	h.mu.Lock()
	h.loading = true
	h.mu.Unlock()

	opts, err := h.fetcher.Fetch(ctx, h.key.Entity, gateway.FetchParams{ParentID: h.key.ParentID})

	h.mu.Lock()
	defer h.mu.Unlock()
	h.loading = false
	h.initialized = true
	h.err = err
	if err != nil {
		log.WithError(err).WithField("key", k).Warn("hook load failed, keeping previous options")
		return err
	}
	h.options = types.CloneOptions(opts)
	h.cache.Set(k, types.CloneOptions(opts), h.ttl)
	return nil
}

// AddOption prepends a freshly created option without waiting for the server.
func (h *Hook) AddOption(opt types.Option) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.options = types.PrependOption(h.options, opt)
	h.cache.Set(h.key.String(), types.CloneOptions(h.options), h.ttl)
}

func (h *Hook) Options() []types.Option {
	h.mu.Lock()
	defer h.mu.Unlock()
	return types.CloneOptions(h.options)
}

func (h *Hook) IsLoading() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loading
}

func (h *Hook) Initialized() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.initialized
}

// Err is the error of the last load, nil after a successful one.
func (h *Hook) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}
