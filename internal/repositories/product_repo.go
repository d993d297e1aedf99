package repositories

import (
	"context"

	"katalog/internal/models"

	"github.com/google/uuid"
)

// ProductRepository defines the interface for product data access.
// Every mutating call is atomic within the store.
type ProductRepository interface {
	// FindByID returns the product with its primary and showcase images resolved,
	// or an error matching apperror.ErrNotFound.
	FindByID(ctx context.Context, id string) (*models.Product, error)
	// Create inserts the product together with its primary image asset.
	Create(ctx context.Context, product *models.Product) error
	// Update applies field changes and, when newPrimary is set, stores it and
	// rebinds the primary image to it. The superseded asset row is removed.
	Update(ctx context.Context, id string, update models.ProductUpdate, newPrimary *models.Asset) (*models.Product, error)
	// AppendShowcaseAssets stores the assets and appends them to the product's
	// showcase in the given order.
	AppendShowcaseAssets(ctx context.Context, id string, assets []models.Asset) (*models.Product, error)
	// List returns a page of products in insertion order with primary images resolved.
	List(ctx context.Context, page models.Page) ([]models.Product, error)
}

// AssetReferenceChecker reports whether any product still points at an asset.
type AssetReferenceChecker interface {
	IsAssetReferenced(ctx context.Context, assetID string) (bool, error)
}

// newID returns a time-ordered (version 7) UUID. Ids minted by one process sort
// in creation order, which breaks created_at ties in List.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
