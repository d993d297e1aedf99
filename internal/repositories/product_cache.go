package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"katalog/internal/models"
	"katalog/pkg/cache"

	"go.uber.org/zap"
)

const listVersionKey = "katalog:products:list:version"

// ListCache is the subset of a key/value cache the listing decorator needs.
// Get returns cache.ErrCacheMiss for absent keys.
type ListCache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Increment(ctx context.Context, key string) (int64, error)
}

// CachedProductRepository caches listing pages in front of another repository.
// Every successful mutation bumps a version counter, which retires all cached pages.
// Cache failures are logged and never fail the call.
type CachedProductRepository struct {
	next   ProductRepository
	cache  ListCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedProductRepository wraps next with a listing cache.
func NewCachedProductRepository(next ProductRepository, c ListCache, ttl time.Duration, logger *zap.Logger) *CachedProductRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedProductRepository{next: next, cache: c, ttl: ttl, logger: logger}
}

// FindByID always reads through.
func (r *CachedProductRepository) FindByID(ctx context.Context, id string) (*models.Product, error) {
	return r.next.FindByID(ctx, id)
}

func (r *CachedProductRepository) Create(ctx context.Context, product *models.Product) error {
	if err := r.next.Create(ctx, product); err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

func (r *CachedProductRepository) Update(ctx context.Context, id string, update models.ProductUpdate, newPrimary *models.Asset) (*models.Product, error) {
	product, err := r.next.Update(ctx, id, update, newPrimary)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx)
	return product, nil
}

func (r *CachedProductRepository) AppendShowcaseAssets(ctx context.Context, id string, assets []models.Asset) (*models.Product, error) {
	product, err := r.next.AppendShowcaseAssets(ctx, id, assets)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx)
	return product, nil
}

// List serves the page from cache when the current version has it.
func (r *CachedProductRepository) List(ctx context.Context, page models.Page) ([]models.Product, error) {
	var version int64
	if err := r.cache.Get(ctx, listVersionKey, &version); err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		r.logger.Warn("failed to read listing cache version", zap.Error(err))
		return r.next.List(ctx, page)
	}

	key := fmt.Sprintf("katalog:products:list:v%d:%d:%d", version, page.Skip, page.Take)
	var products []models.Product
	err := r.cache.Get(ctx, key, &products)
	if err == nil {
		return products, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		r.logger.Warn("failed to read listing cache", zap.String("key", key), zap.Error(err))
	}

	products, err = r.next.List(ctx, page)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Set(ctx, key, products, r.ttl); err != nil {
		r.logger.Warn("failed to write listing cache", zap.String("key", key), zap.Error(err))
	}
	return products, nil
}

func (r *CachedProductRepository) invalidate(ctx context.Context) {
	if _, err := r.cache.Increment(context.WithoutCancel(ctx), listVersionKey); err != nil {
		r.logger.Warn("failed to invalidate listing cache", zap.Error(err))
	}
}
