package repositories_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"katalog/internal/models"
	"katalog/internal/repositories"
	"katalog/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCache mimics RedisClient's JSON semantics in memory.
type fakeCache struct {
	mu      sync.Mutex
	values  map[string][]byte
	sets    int
	failGet bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[string][]byte)}
}

func (c *fakeCache) Get(ctx context.Context, key string, dest any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return errors.New("connection refused")
	}
	data, ok := c.values[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (c *fakeCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = data
	c.sets++
	return nil
}

func (c *fakeCache) Increment(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	if data, ok := c.values[key]; ok {
		if err := json.Unmarshal(data, &n); err != nil {
			return 0, err
		}
	}
	n++
	data, _ := json.Marshal(n)
	c.values[key] = data
	return n, nil
}

// countingRepo counts List calls on the wrapped repository.
type countingRepo struct {
	repositories.ProductRepository
	lists int
}

func (r *countingRepo) List(ctx context.Context, page models.Page) ([]models.Product, error) {
	r.lists++
	return r.ProductRepository.List(ctx, page)
}

func TestCachedProductRepository_ServesRepeatedPagesFromCache(t *testing.T) {
	ctx := context.Background()
	inner := &countingRepo{ProductRepository: repositories.NewMockProductRepository()}
	fc := newFakeCache()
	repo := repositories.NewCachedProductRepository(inner, fc, time.Minute, nil)

	require.NoError(t, repo.Create(ctx, newProduct("Desk")))

	first, err := repo.List(ctx, models.Page{Skip: 0, Take: 10})
	require.NoError(t, err)
	second, err := repo.List(ctx, models.Page{Skip: 0, Take: 10})
	require.NoError(t, err)

	assert.Equal(t, 1, inner.lists)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.True(t, first[0].Price.Equal(second[0].Price))
	assert.Equal(t, first[0].PrimaryImage.FileURL, second[0].PrimaryImage.FileURL)
}

func TestCachedProductRepository_MutationsInvalidate(t *testing.T) {
	ctx := context.Background()
	inner := &countingRepo{ProductRepository: repositories.NewMockProductRepository()}
	repo := repositories.NewCachedProductRepository(inner, newFakeCache(), time.Minute, nil)

	product := newProduct("Desk")
	require.NoError(t, repo.Create(ctx, product))
	_, err := repo.List(ctx, models.Page{Take: 10})
	require.NoError(t, err)

	name := "Standing Desk"
	_, err = repo.Update(ctx, product.ID, models.ProductUpdate{Name: &name}, nil)
	require.NoError(t, err)

	page, err := repo.List(ctx, models.Page{Take: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.lists)
	assert.Equal(t, "Standing Desk", page[0].Name)

	_, err = repo.AppendShowcaseAssets(ctx, product.ID, []models.Asset{testAsset("x.png")})
	require.NoError(t, err)
	_, err = repo.List(ctx, models.Page{Take: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, inner.lists)
}

func TestCachedProductRepository_FallsThroughOnCacheFailure(t *testing.T) {
	ctx := context.Background()
	inner := &countingRepo{ProductRepository: repositories.NewMockProductRepository()}
	fc := newFakeCache()
	fc.failGet = true
	repo := repositories.NewCachedProductRepository(inner, fc, time.Minute, nil)

	require.NoError(t, repo.Create(ctx, newProduct("Desk")))
	page, err := repo.List(ctx, models.Page{Take: 10})
	require.NoError(t, err)
	assert.Len(t, page, 1)
	assert.Equal(t, 1, inner.lists)
	assert.Equal(t, 0, fc.sets)
}
