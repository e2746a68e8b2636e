package ports

import (
	"context"
	"optcache/internal/types"
)

// Query describes a read against one backend table.
// Rows are ordered by OrderBy ascending and capped at Limit.
// Search is a case-insensitive substring match on SearchColumn.
// Filters are equality filters, column to value.
type Query struct {
	Table        string
	OrderBy      string
	Limit        int
	SearchColumn string
	Search       string
	Filters      map[string]string
}

// RowStore is the hosted backend holding the reference tables. Every table has at
// least `id` and `name` columns.
// Implementations MAY ignore ctx cancellation; callers bound latency themselves.
type RowStore interface {
	Select(ctx context.Context, q Query) ([]types.Row, error)

	// Insert writes a single row and returns it as stored (including the generated id).
	Insert(ctx context.Context, table string, row types.Row) (types.Row, error)
}
