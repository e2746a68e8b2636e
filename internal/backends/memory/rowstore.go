// Package memory holds process-local backends for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"optcache/internal/ports"
	"optcache/internal/types"

	"github.com/google/uuid"
)

// RowStore keeps tables in memory. Names are unique per table and parent, like the hosted schema.
type RowStore struct {
	mu     sync.RWMutex
	tables map[string][]types.Row
}

func NewRowStore() *RowStore {
	return &RowStore{tables: make(map[string][]types.Row)}
}

// Seed appends rows to a table as-is. Rows without an id get one.
func (s *RowStore) Seed(table string, rows ...types.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		c := copyRow(r)
		if types.Stringify(c["id"]) == "" {
			c["id"] = uuid.NewString()
		}
		s.tables[table] = append(s.tables[table], c)
	}
}

func (s *RowStore) Select(ctx context.Context, q ports.Query) ([]types.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	search := strings.ToLower(q.Search)
	out := make([]types.Row, 0)
	for _, r := range s.tables[q.Table] {
		if search != "" && !strings.Contains(strings.ToLower(types.Stringify(r[q.SearchColumn])), search) {
			continue
		}
		if !matches(r, q.Filters) {
			continue
		}
		out = append(out, copyRow(r))
	}
	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			return types.Stringify(out[i][q.OrderBy]) < types.Stringify(out[j][q.OrderBy])
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *RowStore) Insert(ctx context.Context, table string, row types.Row) (types.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := types.Stringify(row["name"])
	parent := types.Stringify(row[types.ItemsParentColumn])
	for _, r := range s.tables[table] {
		if strings.EqualFold(types.Stringify(r["name"]), name) && types.Stringify(r[types.ItemsParentColumn]) == parent {
			return nil, fmt.Errorf("(23505) duplicate key value violates unique constraint \"%s_name_key\"", table)
		}
	}
	c := copyRow(row)
	c["id"] = uuid.NewString()
	s.tables[table] = append(s.tables[table], c)
	return copyRow(c), nil
}

func matches(r types.Row, filters map[string]string) bool {
	for col, v := range filters {
		if types.Stringify(r[col]) != v {
			return false
		}
	}
	return true
}

func copyRow(r types.Row) types.Row {
	c := make(types.Row, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}
