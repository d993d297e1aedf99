package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"

	"katalog/internal/models"

	"gorm.io/datatypes"
)

// MockProductRepository is an in-memory implementation of ProductRepository.
type MockProductRepository struct {
	mu       sync.RWMutex
	products map[string]*models.Product
	order    []string
	assets   map[string]models.Asset
}

// NewMockProductRepository creates a new instance of MockProductRepository.
func NewMockProductRepository() *MockProductRepository {
	return &MockProductRepository{
		products: make(map[string]*models.Product),
		assets:   make(map[string]models.Asset),
	}
}

// FindByID returns a copy of the product with its images.
func (r *MockProductRepository) FindByID(ctx context.Context, id string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok {
		return nil, notFound(id)
	}
	return r.resolve(product), nil
}

// Create adds a new product and its primary image asset.
func (r *MockProductRepository) Create(ctx context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if product.ID == "" {
		product.ID = newID()
	}
	if _, exists := r.products[product.ID]; exists {
		return fmt.Errorf("failed to create product: duplicate ID %s", product.ID)
	}
	if product.PrimaryImage != nil {
		r.assets[product.PrimaryImage.ID] = *product.PrimaryImage
		id := product.PrimaryImage.ID
		product.PrimaryImageID = &id
	}
	now := time.Now()
	product.CreatedAt = now
	product.UpdatedAt = now

	stored := *product
	stored.PrimaryImage = nil
	stored.ShowcaseImages = nil
	stored.Tags = cloneSlice(product.Tags)
	stored.Colors = cloneSlice(product.Colors)
	r.products[product.ID] = &stored
	r.order = append(r.order, product.ID)
	return nil
}

// Update modifies an existing product.
func (r *MockProductRepository) Update(ctx context.Context, id string, update models.ProductUpdate, newPrimary *models.Asset) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[id]
	if !ok {
		return nil, notFound(id)
	}

	update.Apply(product)
	product.Tags = cloneSlice(product.Tags)
	product.Colors = cloneSlice(product.Colors)

	if newPrimary != nil {
		previous := product.PrimaryImageID
		r.assets[newPrimary.ID] = *newPrimary
		assetID := newPrimary.ID
		product.PrimaryImageID = &assetID
		if previous != nil && *previous != assetID {
			delete(r.assets, *previous)
		}
	}
	product.UpdatedAt = time.Now()
	return r.resolve(product), nil
}

// AppendShowcaseAssets appends assets to the product's showcase.
func (r *MockProductRepository) AppendShowcaseAssets(ctx context.Context, id string, assets []models.Asset) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[id]
	if !ok {
		return nil, notFound(id)
	}

	existing := len(product.ShowcaseImages)
	for i, asset := range assets {
		r.assets[asset.ID] = asset
		product.ShowcaseImages = append(product.ShowcaseImages, models.ShowcaseImage{
			ID:        newID(),
			ProductID: id,
			AssetID:   asset.ID,
			Position:  existing + i,
			CreatedAt: time.Now(),
		})
	}
	if len(assets) > 0 {
		product.UpdatedAt = time.Now()
	}
	return r.resolve(product), nil
}

// List returns a page of products in insertion order.
func (r *MockProductRepository) List(ctx context.Context, page models.Page) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	products := make([]models.Product, 0)
	if page.Skip >= len(r.order) {
		return products, nil
	}
	end := len(r.order)
	if page.Take >= 0 && page.Skip+page.Take < end {
		end = page.Skip + page.Take
	}
	for _, id := range r.order[page.Skip:end] {
		p := r.resolve(r.products[id])
		p.ShowcaseImages = nil
		products = append(products, *p)
	}
	return products, nil
}

// IsAssetReferenced reports whether any product points at the asset.
func (r *MockProductRepository) IsAssetReferenced(ctx context.Context, assetID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.products {
		if p.PrimaryImageID != nil && *p.PrimaryImageID == assetID {
			return true, nil
		}
		for _, s := range p.ShowcaseImages {
			if s.AssetID == assetID {
				return true, nil
			}
		}
	}
	return false, nil
}

// resolve returns a detached copy of p with asset references filled in.
// Callers must hold the lock.
func (r *MockProductRepository) resolve(p *models.Product) *models.Product {
	out := *p
	out.Tags = cloneSlice(p.Tags)
	out.Colors = cloneSlice(p.Colors)
	out.PrimaryImage = nil
	if p.PrimaryImageID != nil {
		id := *p.PrimaryImageID
		out.PrimaryImageID = &id
		if asset, ok := r.assets[id]; ok {
			out.PrimaryImage = &asset
		}
	}
	out.ShowcaseImages = make([]models.ShowcaseImage, len(p.ShowcaseImages))
	for i, s := range p.ShowcaseImages {
		s.Asset = r.assets[s.AssetID]
		out.ShowcaseImages[i] = s
	}
	return &out
}

func cloneSlice(in datatypes.JSONSlice[string]) datatypes.JSONSlice[string] {
	if in == nil {
		return nil
	}
	out := make(datatypes.JSONSlice[string], len(in))
	copy(out, in)
	return out
}
