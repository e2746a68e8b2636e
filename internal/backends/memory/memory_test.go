package memory

import (
	"context"
	"testing"
	"time"

	"optcache/internal/ports"
	"optcache/internal/types"

	"github.com/stretchr/testify/suite"
)

type MemoryTestSuite struct {
	suite.Suite
}

func TestMemoryTestSuite(t *testing.T) {
	suite.Run(t, new(MemoryTestSuite))
}

func (s *MemoryTestSuite) TestSelect() {
	rows := NewRowStore()
	rows.Seed("items",
		types.Row{"id": "3", "name": "Vinyl", "category_id": "c1"},
		types.Row{"id": "1", "name": "Mesh", "category_id": "c1"},
		types.Row{"id": "2", "name": "Matte Vinyl", "category_id": "c2"},
		types.Row{"name": "Canvas", "category_id": "c1"},
	)
	ctx := context.Background()

	got, err := rows.Select(ctx, ports.Query{Table: "items", OrderBy: "name", Filters: map[string]string{"category_id": "c1"}})
	s.NoError(err)
	s.Require().Len(got, 3)
	s.Equal("Canvas", got[0]["name"])
	s.NotEmpty(got[0]["id"])
	s.Equal("Mesh", got[1]["name"])

	got, err = rows.Select(ctx, ports.Query{Table: "items", SearchColumn: "name", Search: "VINYL", OrderBy: "name", Limit: 1})
	s.NoError(err)
	s.Require().Len(got, 1)
	s.Equal("Matte Vinyl", got[0]["name"])

	got, err = rows.Select(ctx, ports.Query{Table: "nothing"})
	s.NoError(err)
	s.Empty(got)
}

func (s *MemoryTestSuite) TestInsert() {
	rows := NewRowStore()
	ctx := context.Background()
	row, err := rows.Insert(ctx, "items", types.Row{"name": "Vinyl", "category_id": "c1"})
	s.NoError(err)
	s.NotEmpty(row["id"])

	_, err = rows.Insert(ctx, "items", types.Row{"name": "vinyl", "category_id": "c1"})
	s.ErrorContains(err, "23505")

	_, err = rows.Insert(ctx, "items", types.Row{"name": "Vinyl", "category_id": "c2"})
	s.NoError(err)
}

func (s *MemoryTestSuite) TestSnapshots() {
	snaps := NewSnapshotStore()
	ctx := context.Background()
	key := types.NewKey(types.Clients, "")
	s.NoError(snaps.Save(ctx, types.Snapshot{Entity: types.Clients, Data: []types.Option{{Value: "1", Label: "Acme"}}, Timestamp: 5}, time.Minute))
	snaps.Put(types.NewKey(types.Sizes, ""), []byte("junk"))

	got, err := snaps.Load(ctx, key)
	s.NoError(err)
	s.Require().NotNil(got)
	s.Equal(int64(5), got.Timestamp)

	_, err = snaps.Load(ctx, types.NewKey(types.Sizes, ""))
	s.Error(err)

	all, err := snaps.LoadAll(ctx)
	s.NoError(err)
	s.Len(all, 1)

	s.NoError(snaps.Delete(ctx, key))
	got, err = snaps.Load(ctx, key)
	s.NoError(err)
	s.Nil(got)

	s.NoError(snaps.ClearAll(ctx))
	all, err = snaps.LoadAll(ctx)
	s.NoError(err)
	s.Empty(all)
}
