// Package gateway reads and writes reference rows on the remote backend and maps them to options.
// Both operations are bounded by a client-side timeout and never panic past this package.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"optcache/internal/ports"
	"optcache/internal/types"

	"github.com/jellydator/ttlcache/v3"
	"github.com/jmespath/go-jmespath"
	log "github.com/sirupsen/logrus"
)

const (
	idColumn   = "id"
	nameColumn = "name"
)

// FetchParams narrows a fetch. ParentID only applies to parent-scoped entities.
// FilterField/FilterValue apply only when both are set. Limit <= 0 means the configured default.
// Timeout <= 0 means the configured fetch timeout; it is not part of the memo key.
type FetchParams struct {
	Search      string
	ParentID    string
	FilterField string
	FilterValue string
	Limit       int
	Timeout     time.Duration
}

// Gateway is the single entry point to the remote backend.
type Gateway struct {
	rows   ports.RowStore
	pub    ports.Publisher
	cfg    types.Config
	memo   *ttlcache.Cache[string, []types.Option]
	labels map[types.EntityType]*jmespath.JMESPath
}

// New builds a gateway. pub may be nil, in which case creates are not announced.
func New(rows ports.RowStore, pub ports.Publisher, cfg types.Config) (*Gateway, error) {
	g := &Gateway{
		rows:   rows,
		pub:    pub,
		cfg:    cfg,
		labels: make(map[types.EntityType]*jmespath.JMESPath),
	}
	for _, e := range types.AllEntityTypes {
		expr := cfg.LabelExpr(e)
		if expr == "" {
			continue
		}
		compiled, err := jmespath.Compile(expr)
		if err != nil {
			return nil, types.Err(types.ErrInvalidConfig, err, "entities.%s.label_expr", e)
		}
		g.labels[e] = compiled
	}
	if cfg.MemoTTL > 0 {
		g.memo = ttlcache.New[string, []types.Option](
			ttlcache.WithTTL[string, []types.Option](cfg.MemoTTL),
			ttlcache.WithDisableTouchOnHit[string, []types.Option](),
		)
	}
	return g, nil
}

// Forget drops every memoized fetch of an entity.
func (g *Gateway) Forget(e types.EntityType) {
	if g.memo == nil {
		return
	}
	prefix := string(e) + "|"
	for _, k := range g.memo.Keys() {
		if strings.HasPrefix(k, prefix) {
			g.memo.Delete(k)
		}
	}
}

func memoKey(e types.EntityType, p FetchParams) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%d", e, p.Search, p.ParentID, p.FilterField, p.FilterValue, p.Limit)
}

// race runs fn against a timer. The loser's result is dropped: the backend call itself
// cannot be cancelled, it is abandoned.
func race[T any](ctx context.Context, timeout time.Duration, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				ch <- result{v: zero, err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := fn()
		ch <- result{v: v, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var zero T
	select {
	case r := <-ch:
		return r.v, r.err
	case <-timer.C:
		return zero, types.Err(types.ErrTimeout, nil, "")
	case <-ctx.Done():
		return zero, fmt.Errorf("request abandoned: %w", ctx.Err())
	}
}

// abandoned reports whether the caller gave up before the backend answered.
func abandoned(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// toOption maps a backend row. ok is false when the row cannot be shown (no id or no label).
func (g *Gateway) toOption(e types.EntityType, row types.Row) (types.Option, bool) {
	value := types.Stringify(row[idColumn])
	label, err := g.label(e, row)
	if err != nil {
		log.WithError(err).WithField("entity", e).Warn("label expression failed")
	}
	if value == "" || label == "" {
		return types.Option{}, false
	}
	meta := make(map[string]any, len(row))
	for k, v := range row {
		meta[k] = v
	}
	return types.Option{Value: value, Label: label, Metadata: meta}, true
}
