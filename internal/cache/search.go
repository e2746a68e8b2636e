package cache

import (
	"context"
	"fmt"
	"strings"

	"optcache/internal/gateway"
	"optcache/internal/types"
)

func searchKey(key types.CacheKey, search string) string {
	return fmt.Sprintf("%s|%s", key, search)
}

// SearchOptions runs a name search for the key. Identical searches are coalesced while in flight
// and answered from the previous result within the debounce interval, so fast typing does not
// flood the backend. Results are returned only; the key's entry is left untouched.
// An empty search is a plain read of the entry.
func (s *Store) SearchOptions(ctx context.Context, e types.EntityType, search, parentID string) ([]types.Option, error) {
	if !e.Valid() {
		return nil, types.Err(types.ErrUnknownEntity, nil, "unknown entity type %q", e)
	}
	key := types.NewKey(e, parentID)
	search = strings.TrimSpace(search)
	if search == "" {
		entry, err := s.load(ctx, key, false)
		return entry.Data, err
	}

	sk := searchKey(key, search)
	if s.searches != nil {
		if item := s.searches.Get(sk); item != nil {
			return types.CloneOptions(item.Value()), nil
		}
	}

	// The shared fetch outlives any single caller; each caller only stops waiting on its own ctx.
	ch := s.searchGroup.DoChan(sk, func() (any, error) {
		opts, err := s.src.Fetch(s.ctx, e, gateway.FetchParams{
			Search:   search,
			ParentID: key.ParentID,
			Timeout:  s.cfg.FetchTimeout,
		})
		if err != nil {
			return nil, err
		}
		if s.searches != nil {
			s.searches.Set(sk, types.CloneOptions(opts), s.cfg.SearchDebounce)
		}
		return opts, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return types.CloneOptions(res.Val.([]types.Option)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// dropSearches forgets debounced search results of a key after its data changed.
func (s *Store) dropSearches(key types.CacheKey) {
	if s.searches == nil {
		return
	}
	prefix := key.String() + "|"
	for _, k := range s.searches.Keys() {
		if strings.HasPrefix(k, prefix) {
			s.searches.Delete(k)
		}
	}
}
