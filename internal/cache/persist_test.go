package cache

import (
	"context"
	"time"

	"optcache/internal/codec"
	"optcache/internal/types"
)

func (s *StoreTestSuite) TestSuccessfulFetchIsPersisted() {
	s.src.set(types.Items, "c1", opts("Vinyl")...)
	ctx := context.Background()
	_, err := s.store.Ensure(ctx, types.Items, "c1")
	s.Require().NoError(err)

	snap, err := s.snaps.Load(ctx, types.NewKey(types.Items, "c1"))
	s.NoError(err)
	s.Require().NotNil(snap)
	s.Equal("Vinyl", snap.Data[0].Label)
	s.Equal(s.clk.now().UnixMilli(), snap.Timestamp)

	// an empty result is not worth persisting
	_, err = s.store.Ensure(ctx, types.Items, "c9")
	s.NoError(err)
	snap, err = s.snaps.Load(ctx, types.NewKey(types.Items, "c9"))
	s.NoError(err)
	s.Nil(snap)
}

func (s *StoreTestSuite) TestHydrateRestoresFreshSnapshots() {
	ctx := context.Background()
	now := s.clk.now()
	s.Require().NoError(s.snaps.Save(ctx, types.Snapshot{
		Entity:    types.Clients,
		Data:      opts("Acme", "Globex"),
		Timestamp: now.Add(-5 * time.Minute).UnixMilli(),
	}, s.cfg.CacheTTL))
	s.Require().NoError(s.snaps.Save(ctx, types.Snapshot{
		Entity:    types.Items,
		ParentID:  "c1",
		Data:      opts("Vinyl"),
		Timestamp: now.Add(-time.Minute).UnixMilli(),
	}, s.cfg.CacheTTL))

	fresh := NewStore(s.cfg, s.src, s.snaps)
	defer fresh.Close()
	s.Equal(2, fresh.Hydrate(ctx))

	s.Len(fresh.GetOptions(types.Clients, ""), 2)
	s.Len(fresh.GetOptions(types.Items, "c1"), 1)
	entry, _ := fresh.Entry(types.Clients, "")
	s.Equal(now.Add(-5*time.Minute).UnixMilli(), entry.Timestamp)
	s.Equal(int32(0), s.src.fetches.Load())
}

func (s *StoreTestSuite) TestHydrateDropsExpiredAndCorrupt() {
	ctx := context.Background()
	s.Require().NoError(s.snaps.Save(ctx, types.Snapshot{
		Entity:    types.Sizes,
		Data:      opts("A4"),
		Timestamp: s.clk.now().Add(-31 * time.Minute).UnixMilli(),
	}, s.cfg.CacheTTL))
	s.snaps.Put(types.NewKey(types.Clients, ""), []byte("not a snapshot"))

	fresh := NewStore(s.cfg, s.src, s.snaps)
	defer fresh.Close()
	s.Equal(0, fresh.Hydrate(ctx))

	_, ok := fresh.Entry(types.Sizes, "")
	s.False(ok)
	snap, err := s.snaps.Load(ctx, types.NewKey(types.Sizes, ""))
	s.NoError(err)
	s.Nil(snap)
}

func (s *StoreTestSuite) TestHydrateKeepsNewerData() {
	ctx := context.Background()
	s.src.set(types.Clients, "", opts("Acme", "Globex", "Initech")...)
	_, err := s.store.Ensure(ctx, types.Clients, "")
	s.Require().NoError(err)

	b, err := codec.EncodeSnapshot(types.Snapshot{Entity: types.Clients, Data: opts("Old"), Timestamp: s.clk.now().UnixMilli()})
	s.Require().NoError(err)
	s.snaps.Put(types.NewKey(types.Clients, ""), b)

	s.Equal(0, s.store.Hydrate(ctx))
	s.Len(s.store.GetOptions(types.Clients, ""), 3)
}

func (s *StoreTestSuite) TestHydrateWithoutSnapshots() {
	bare := NewStore(s.cfg, s.src, nil)
	defer bare.Close()
	s.Equal(0, bare.Hydrate(context.Background()))
}
