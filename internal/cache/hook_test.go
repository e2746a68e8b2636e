package cache

import (
	"context"
	"time"

	"optcache/internal/types"
)

func (s *UnitTestSuite) TestHookLoadsAndCaches() {
	src := newFakeSource()
	src.set(types.Clients, "", opts("Acme", "Globex")...)
	shared := NewTTL[string, []types.Option]()
	ctx := context.Background()

	h := NewHook(src, types.Clients, "", WithHookCache(shared))
	s.False(h.Initialized())
	s.NoError(h.Load(ctx))
	s.True(h.Initialized())
	s.False(h.IsLoading())
	s.Len(h.Options(), 2)

	// a second instance on the same key starts from the cached list
	h2 := NewHook(src, types.Clients, "", WithHookCache(shared))
	s.Len(h2.Options(), 2)
	s.NoError(h2.Load(ctx))
	s.Equal(int32(1), src.fetches.Load())

	s.clk.advance(6 * time.Minute)
	s.NoError(h2.Load(ctx))
	s.Equal(int32(2), src.fetches.Load())
}

func (s *UnitTestSuite) TestHookCustomTTL() {
	src := newFakeSource()
	src.set(types.Sizes, "", opts("A4")...)
	h := NewHook(src, types.Sizes, "", WithHookCache(NewTTL[string, []types.Option]()), WithHookTTL(time.Minute))
	ctx := context.Background()
	s.NoError(h.Load(ctx))
	s.clk.advance(30 * time.Second)
	s.NoError(h.Load(ctx))
	s.Equal(int32(1), src.fetches.Load())
	s.clk.advance(31 * time.Second)
	s.NoError(h.Load(ctx))
	s.Equal(int32(2), src.fetches.Load())
}

func (s *UnitTestSuite) TestHookFailureKeepsOptions() {
	src := newFakeSource()
	src.set(types.Suppliers, "", opts("Paper Co")...)
	h := NewHook(src, types.Suppliers, "", WithHookCache(NewTTL[string, []types.Option]()))
	ctx := context.Background()
	s.NoError(h.Load(ctx))

	s.clk.advance(10 * time.Minute)
	src.failWith(types.Err(types.ErrTimeout, nil, ""))
	err := h.Load(ctx)
	s.ErrorIs(err, types.ErrTimeout)
	s.Equal(err, h.Err())
	s.True(h.Initialized())
	s.False(h.IsLoading())
	s.Len(h.Options(), 1)
}

func (s *UnitTestSuite) TestHookFailureOnFirstLoad() {
	src := newFakeSource()
	src.failWith(types.Err(types.ErrBackend, nil, "down"))
	h := NewHook(src, types.Clients, "", WithHookCache(NewTTL[string, []types.Option]()))
	s.Error(h.Load(context.Background()))
	s.True(h.Initialized())
	s.Empty(h.Options())
}

func (s *UnitTestSuite) TestHookAddOption() {
	src := newFakeSource()
	src.set(types.Items, "c1", opts("Vinyl")...)
	shared := NewTTL[string, []types.Option]()
	h := NewHook(src, types.Items, "c1", WithHookCache(shared))
	s.NoError(h.Load(context.Background()))

	h.AddOption(types.Option{Value: "new", Label: "Mesh"})
	got := h.Options()
	s.Len(got, 2)
	s.Equal("new", got[0].Value)

	cached, ok := shared.Get(types.NewKey(types.Items, "c1").String())
	s.True(ok)
	s.Len(cached, 2)

	// parent buckets are independent
	other := NewHook(src, types.Items, "c2", WithHookCache(shared))
	s.Empty(other.Options())
}

func (s *UnitTestSuite) TestHookOnStore() {
	src := newFakeSource()
	src.set(types.Categories, "", opts("Banners")...)
	store := NewStore(types.DefaultConfig(), src, nil)
	defer store.Close()

	ctx := context.Background()
	a := NewHook(store, types.Categories, "", WithHookCache(NewTTL[string, []types.Option]()))
	b := NewHook(store, types.Categories, "", WithHookCache(NewTTL[string, []types.Option]()))
	s.NoError(a.Load(ctx))
	s.NoError(b.Load(ctx))
	s.Len(b.Options(), 1)
	// separate hook caches, one store fetch
	s.Equal(int32(1), src.fetches.Load())
}
