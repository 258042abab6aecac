package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tpbot/internal/domain"
	"github.com/alanyoungcy/tpbot/internal/platform/gw2"
)

// fetcherFunc adapts a func into an ItemFetcher for call counting.
type fetcherFunc func(ctx context.Context, id int64) (gw2.ItemInfo, error)

func (f fetcherFunc) GetItem(ctx context.Context, id int64) (gw2.ItemInfo, error) {
	return f(ctx, id)
}

type fakeNameCache struct {
	names map[int64]string
}

func (c *fakeNameCache) Get(_ context.Context, id int64) (string, error) {
	name, ok := c.names[id]
	if !ok {
		return "", domain.ErrNotFound
	}
	return name, nil
}

func (c *fakeNameCache) Set(_ context.Context, id int64, name string) error {
	c.names[id] = name
	return nil
}

func TestResolverFallsBackToPlaceholder(t *testing.T) {
	ctx := context.Background()
	items := newFakeItemStore()
	fetcher := &fakeItemFetcher{err: errors.New("upstream down")}

	r := NewNameResolver(items, nil, fetcher, NopMetrics{}, testLogger(), 4)
	require.NoError(t, r.EnsureItems(ctx, []int64{19700, 19701}))

	assert.Equal(t, "auto_19700", items.names[19700])
	assert.Equal(t, "auto_19701", items.names[19701])
}

func TestResolverSkipsKnownItems(t *testing.T) {
	ctx := context.Background()
	items := newFakeItemStore()
	items.names[5] = "Elder Wood Log"

	calls := 0
	fetcher := fetcherFunc(func(_ context.Context, id int64) (gw2.ItemInfo, error) {
		calls++
		return gw2.ItemInfo{ID: id, Name: "Resolved"}, nil
	})

	r := NewNameResolver(items, nil, fetcher, NopMetrics{}, testLogger(), 1)
	require.NoError(t, r.EnsureItems(ctx, []int64{5, 6}))

	assert.Equal(t, 1, calls)
	assert.Equal(t, "Elder Wood Log", items.names[5])
	assert.Equal(t, "Resolved", items.names[6])
}

func TestResolverUsesCacheBeforeAPI(t *testing.T) {
	ctx := context.Background()
	items := newFakeItemStore()
	cache := &fakeNameCache{names: map[int64]string{8: "Gossamer Scrap"}}
	fetcher := &fakeItemFetcher{err: errors.New("should not be called")}

	r := NewNameResolver(items, cache, fetcher, NopMetrics{}, testLogger(), 1)
	require.NoError(t, r.EnsureItems(ctx, []int64{8}))

	assert.Equal(t, "Gossamer Scrap", items.names[8])
}

func TestResolverPopulatesCacheOnHit(t *testing.T) {
	ctx := context.Background()
	items := newFakeItemStore()
	cache := &fakeNameCache{names: map[int64]string{}}
	fetcher := &fakeItemFetcher{names: map[int64]string{12: "Omnomberry"}}

	r := NewNameResolver(items, cache, fetcher, NopMetrics{}, testLogger(), 1)
	require.NoError(t, r.EnsureItems(ctx, []int64{12}))

	assert.Equal(t, "Omnomberry", items.names[12])
	assert.Equal(t, "Omnomberry", cache.names[12])
}

func TestResolverEmptyNameGetsPlaceholder(t *testing.T) {
	ctx := context.Background()
	items := newFakeItemStore()
	fetcher := fetcherFunc(func(_ context.Context, id int64) (gw2.ItemInfo, error) {
		return gw2.ItemInfo{ID: id, Name: ""}, nil
	})

	r := NewNameResolver(items, nil, fetcher, NopMetrics{}, testLogger(), 1)
	require.NoError(t, r.EnsureItems(ctx, []int64{9000}))

	assert.Equal(t, "auto_9000", items.names[9000])
}
