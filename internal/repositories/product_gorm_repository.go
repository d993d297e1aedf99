package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"katalog/internal/apperror"
	"katalog/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db: db,
	}
}

// AutoMigrate creates or updates the catalog tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Asset{}, &models.Product{}, &models.ShowcaseImage{}); err != nil {
		return fmt.Errorf("failed to migrate catalog schema: %w", err)
	}
	return nil
}

func notFound(id string) error {
	return fmt.Errorf("product with ID %s: %w", id, apperror.ErrNotFound)
}

func withImages(db *gorm.DB) *gorm.DB {
	return db.
		Preload("PrimaryImage").
		Preload("ShowcaseImages", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC").Order("created_at ASC")
		}).
		Preload("ShowcaseImages.Asset")
}

// FindByID retrieves a single product with its images.
func (r *GORMProductRepository) FindByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := withImages(r.db.WithContext(ctx)).First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("failed to get product by ID %s: %w", id, err)
	}
	return &product, nil
}

// Create inserts the product; GORM writes the primary image row in the same transaction.
func (r *GORMProductRepository) Create(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = newID()
	}
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// Update applies the field changes and optional primary image swap in one transaction.
func (r *GORMProductRepository) Update(ctx context.Context, id string, update models.ProductUpdate, newPrimary *models.Asset) (*models.Product, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound(id)
			}
			return err
		}

		previous := product.PrimaryImageID
		update.Apply(&product)

		if newPrimary != nil {
			if err := tx.Create(newPrimary).Error; err != nil {
				return fmt.Errorf("failed to store primary image: %w", err)
			}
			product.PrimaryImageID = &newPrimary.ID
		}

		if err := tx.Omit(clause.Associations).Save(&product).Error; err != nil {
			return err
		}

		if newPrimary != nil && previous != nil && *previous != newPrimary.ID {
			if err := tx.Delete(&models.Asset{}, "id = ?", *previous).Error; err != nil {
				return fmt.Errorf("failed to remove superseded primary image: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update product %s: %w", id, err)
	}
	return r.FindByID(ctx, id)
}

// AppendShowcaseAssets stores the assets and their showcase links in one transaction.
func (r *GORMProductRepository) AppendShowcaseAssets(ctx context.Context, id string, assets []models.Asset) (*models.Product, error) {
	if len(assets) == 0 {
		return r.FindByID(ctx, id)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The row lock serializes concurrent appends so positions stay contiguous.
		var product models.Product
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&product, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound(id)
			}
			return err
		}

		var existing int64
		if err := tx.Model(&models.ShowcaseImage{}).Where("product_id = ?", id).Count(&existing).Error; err != nil {
			return err
		}

		rows := make([]models.Asset, len(assets))
		copy(rows, assets)
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to store showcase assets: %w", err)
		}

		links := make([]models.ShowcaseImage, 0, len(rows))
		for i, asset := range rows {
			links = append(links, models.ShowcaseImage{
				ID:        newID(),
				ProductID: id,
				AssetID:   asset.ID,
				Position:  int(existing) + i,
			})
		}
		if err := tx.Omit(clause.Associations).Create(&links).Error; err != nil {
			return fmt.Errorf("failed to link showcase assets: %w", err)
		}

		return tx.Model(&models.Product{}).Where("id = ?", id).Update("updated_at", time.Now()).Error
	})
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to append showcase images to product %s: %w", id, err)
	}
	return r.FindByID(ctx, id)
}

// List retrieves a page of products in insertion order.
func (r *GORMProductRepository) List(ctx context.Context, page models.Page) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Preload("PrimaryImage").
		Order("created_at ASC").
		Order("id ASC").
		Offset(page.Skip).
		Limit(page.Take).
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// IsAssetReferenced reports whether a product uses the asset as primary or showcase image.
func (r *GORMProductRepository) IsAssetReferenced(ctx context.Context, assetID string) (bool, error) {
	var primary int64
	if err := r.db.WithContext(ctx).Model(&models.Product{}).Where("primary_image_id = ?", assetID).Count(&primary).Error; err != nil {
		return false, fmt.Errorf("failed to check primary image references: %w", err)
	}
	if primary > 0 {
		return true, nil
	}
	var showcase int64
	if err := r.db.WithContext(ctx).Model(&models.ShowcaseImage{}).Where("asset_id = ?", assetID).Count(&showcase).Error; err != nil {
		return false, fmt.Errorf("failed to check showcase references: %w", err)
	}
	return showcase > 0, nil
}
