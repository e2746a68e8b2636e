// Package supabase reads and writes the reference tables through the hosted PostgREST API.
package supabase

import (
	"bytes"
	"context"

	"optcache/internal/ports"
	"optcache/internal/types"

	"github.com/goccy/go-json"
	postgrest "github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
)

// RowStore wraps a supabase client. The client has no context support, so ctx is ignored
// and the gateway bounds each call with its own timer.
type RowStore struct {
	cli *supabase.Client
}

func NewRowStore(cli *supabase.Client) *RowStore {
	return &RowStore{cli: cli}
}

// NewRowStoreFromURL builds the client from the project URL and key.
func NewRowStoreFromURL(url, key string) (*RowStore, error) {
	cli, err := supabase.NewClient(url, key, nil)
	if err != nil {
		return nil, types.Err(types.ErrInvalidBackend, err, "supabase client")
	}
	return NewRowStore(cli), nil
}

func (s *RowStore) Select(ctx context.Context, q ports.Query) ([]types.Row, error) {
	fb := s.cli.From(q.Table).Select("*", "", false)
	if q.Search != "" && q.SearchColumn != "" {
		fb = fb.Ilike(q.SearchColumn, "%"+q.Search+"%")
	}
	for col, v := range q.Filters {
		fb = fb.Eq(col, v)
	}
	if q.OrderBy != "" {
		fb = fb.Order(q.OrderBy, &postgrest.OrderOpts{Ascending: true})
	}
	if q.Limit > 0 {
		fb = fb.Limit(q.Limit, "")
	}
	b, _, err := fb.Execute()
	if err != nil {
		return nil, err
	}
	return decodeRows(b)
}

func (s *RowStore) Insert(ctx context.Context, table string, row types.Row) (types.Row, error) {
	b, _, err := s.cli.From(table).Insert(row, false, "", "representation", "").Execute()
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows(b)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, types.Err(types.ErrBackend, nil, "insert into %s returned no rows", table)
	}
	return rows[0], nil
}

// decodeRows keeps numbers as json.Number so integer ids survive unchanged.
func decodeRows(b []byte) ([]types.Row, error) {
	var rows []types.Row
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&rows); err != nil {
		return nil, types.Err(types.ErrBackend, err, "decode rows")
	}
	return rows, nil
}
