package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"optcache/internal/types"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const prefetchConcurrency = 4

func (s *Store) prefetch(ctx context.Context, entities []types.EntityType) error {
	if len(entities) == 0 {
		entities = types.GlobalEntityTypes
	}
	var (
		mu   sync.Mutex
		errs []error
	)
	g := new(errgroup.Group)
	g.SetLimit(prefetchConcurrency)
	for _, e := range entities {
		if !e.Valid() {
			mu.Lock()
			errs = append(errs, types.Err(types.ErrUnknownEntity, nil, "unknown entity type %q", e))
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			// A failing entity must not cancel the others, so errors are collected instead of returned.
			if _, err := s.Ensure(ctx, e, ""); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", e, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	if len(errs) > 0 {
		log.WithField("failed", len(errs)).Warn("prefetch finished with errors")
	}
	return errors.Join(errs...)
}
