// AngelaMos | 2026
// service_test.go

package premium_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/recipes-api/internal/premium"
	"github.com/carterperez-dev/recipes-api/internal/testutil"
)

type memoryCache struct {
	mu    sync.Mutex
	items map[string][]byte
	gets  int
	err   error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: map[string][]byte{}}
}

func (c *memoryCache) Get(_ context.Context, key string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.err != nil {
		return false, c.err
	}
	raw, ok := c.items[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.items[key] = raw
	return nil
}

func (c *memoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.items, k)
	}
	return nil
}

func TestListActiveReadsThroughCache(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	testutil.CreatePackage(t, db, "Monthly", "recipes_monthly")
	cache := newMemoryCache()
	svc := premium.NewService(premium.NewRepository(db), cache, time.Minute, nil)

	first, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	testutil.CreatePackage(t, db, "Yearly", "recipes_yearly")

	second, err := svc.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, second, 1, "served from cache")

	svc.Invalidate(ctx)

	third, err := svc.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, third, 2)
}

func TestListActiveSkipsInactive(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	testutil.CreatePackage(t, db, "Monthly", "recipes_monthly")
	svc := premium.NewService(premium.NewRepository(db), nil, 0, nil)

	require.NoError(t, svc.Create(ctx, &premium.Package{
		ID:       "0b0b8c8e-7d1b-4b77-9a8b-7ad44a1f5b10",
		Name:     "Legacy",
		IsActive: false,
	}))

	pkgs, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, pkgs, 1)
	assert.Equal(t, "Monthly", pkgs[0].Name)
	assert.InDelta(t, 4.99, pkgs[0].PriceMonthly, 0.001)
	assert.Equal(t, 7, pkgs[0].TrialDays)
}

func TestCreateDuplicateName(t *testing.T) {
	db := testutil.NewDB(t)
	svc := premium.NewService(premium.NewRepository(db), nil, 0, nil)
	testutil.CreatePackage(t, db, "Monthly", "recipes_monthly")

	err := svc.Create(context.Background(), &premium.Package{
		ID:   "1f6d5a3c-2c55-4c1e-8d7a-5d9f0a8c4e21",
		Name: "Monthly",
	})

	assert.Error(t, err)
}

func TestBrokenCacheFallsBackToDatabase(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	testutil.CreatePackage(t, db, "Monthly", "recipes_monthly")
	cache := newMemoryCache()
	cache.err = errors.New("connection refused")
	svc := premium.NewService(premium.NewRepository(db), cache, time.Minute, nil)

	for range 6 {
		pkgs, err := svc.ListActive(ctx)
		require.NoError(t, err)
		assert.Len(t, pkgs, 1)
	}

	cache.mu.Lock()
	gets := cache.gets
	cache.mu.Unlock()
	assert.Less(t, gets, 6, "open breaker stops cache reads")
}

func TestPackageIDForProduct(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	monthly := testutil.CreatePackage(t, db, "Monthly", "recipes_monthly")
	svc := premium.NewService(premium.NewRepository(db), newMemoryCache(), time.Minute, nil)

	id, err := svc.PackageIDForProduct(ctx, "recipes_monthly")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, monthly, *id)

	id, err = svc.PackageIDForProduct(ctx, "unknown_sku")
	require.NoError(t, err)
	assert.Nil(t, id)

	ok, err := svc.HasPackage(ctx, monthly)
	require.NoError(t, err)
	assert.True(t, ok)
}
