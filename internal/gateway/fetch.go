package gateway

import (
	"context"
	"errors"
	"strings"

	"optcache/internal/ports"
	"optcache/internal/types"

	log "github.com/sirupsen/logrus"
)

// Fetch reads options for an entity. Unknown entities, backend failures and timeouts all come
// back as errors with an empty option list; errors.Is(err, types.ErrTimeout) tells a timeout
// apart from types.ErrBackend.
func (g *Gateway) Fetch(ctx context.Context, e types.EntityType, p FetchParams) ([]types.Option, error) {
	if !e.Valid() {
		return []types.Option{}, types.Err(types.ErrUnknownEntity, nil, "unknown entity type %q", e)
	}
	if p.Limit <= 0 {
		p.Limit = g.cfg.DefaultLimit
	}
	if p.Limit > types.MaxLimit {
		p.Limit = types.MaxLimit
	}
	p.Search = strings.TrimSpace(p.Search)
	if !e.ParentScoped() {
		p.ParentID = ""
	}

	key := memoKey(e, p)
	if g.memo != nil {
		if item := g.memo.Get(key); item != nil {
			return types.CloneOptions(item.Value()), nil
		}
	}

	q := ports.Query{
		Table:   g.cfg.Table(e),
		OrderBy: nameColumn,
		Limit:   p.Limit,
		Filters: map[string]string{},
	}
	if p.Search != "" {
		q.SearchColumn = nameColumn
		q.Search = p.Search
	}
	if p.ParentID != "" {
		q.Filters[types.ItemsParentColumn] = p.ParentID
	}
	if p.FilterField != "" && p.FilterValue != "" {
		q.Filters[p.FilterField] = p.FilterValue
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = g.cfg.FetchTimeout
	}
	rows, err := race(ctx, timeout, func() ([]types.Row, error) {
		return g.rows.Select(ctx, q)
	})
	if err != nil {
		fields := log.Fields{"entity": e, "parent": p.ParentID, "search": p.Search}
		if errors.Is(err, types.ErrTimeout) {
			log.WithFields(fields).Warn("fetch timed out")
			return []types.Option{}, err
		}
		if abandoned(err) {
			log.WithError(err).WithFields(fields).Debug("fetch abandoned by caller")
			return []types.Option{}, err
		}
		log.WithError(err).WithFields(fields).Error("fetch failed")
		return []types.Option{}, backendError(err)
	}

	opts := make([]types.Option, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		opt, ok := g.toOption(e, row)
		if !ok {
			log.WithField("entity", e).Warn("skipping row without id or label")
			continue
		}
		if _, dup := seen[opt.Value]; dup {
			continue
		}
		seen[opt.Value] = struct{}{}
		opts = append(opts, opt)
	}
	if g.memo != nil {
		g.memo.Set(key, types.CloneOptions(opts), g.cfg.MemoTTL)
	}
	return opts, nil
}
