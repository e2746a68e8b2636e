package gateway

import (
	"context"
	"errors"
	"strings"
	"time"

	"optcache/internal/types"

	log "github.com/sirupsen/logrus"
)

// Create inserts a row named label and returns it as an option. An empty label is rejected
// before any remote call. For items, parentID becomes the category foreign key.
func (g *Gateway) Create(ctx context.Context, e types.EntityType, label, parentID string) (types.Option, error) {
	if !e.Valid() {
		return types.Option{}, types.Err(types.ErrUnknownEntity, nil, "unknown entity type %q", e)
	}
	name := strings.TrimSpace(label)
	if name == "" {
		return types.Option{}, types.Err(types.ErrValidation, nil, types.EmptyLabelMessage)
	}
	row := types.Row{nameColumn: name}
	if e.ParentScoped() && parentID != "" {
		row[types.ItemsParentColumn] = parentID
	} else {
		parentID = ""
	}

	created, err := race(ctx, g.cfg.FetchTimeout, func() (types.Row, error) {
		return g.rows.Insert(ctx, g.cfg.Table(e), row)
	})
	if err != nil {
		if errors.Is(err, types.ErrTimeout) {
			log.WithField("entity", e).Warn("create timed out")
			return types.Option{}, err
		}
		if abandoned(err) {
			log.WithError(err).WithField("entity", e).Warn("create abandoned by caller, the row may still be inserted")
			return types.Option{}, err
		}
		log.WithError(err).WithField("entity", e).Error("create failed")
		return types.Option{}, backendError(err)
	}
	opt, ok := g.toOption(e, created)
	if !ok {
		return types.Option{}, types.Err(types.ErrBackend, nil, "backend returned the created row without id or name")
	}

	g.Forget(e)
	if g.pub != nil {
		msg := types.Revalidation{Entity: e, ParentID: parentID, Value: opt.Value, At: time.Now().UnixMilli()}
		if err := g.pub.PublishRevalidation(ctx, msg); err != nil {
			log.WithError(err).WithField("entity", e).Warn("failed to publish revalidation")
		}
	}
	return opt, nil
}
