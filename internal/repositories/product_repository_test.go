package repositories_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"katalog/internal/apperror"
	"katalog/internal/models"
	"katalog/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type repoFactory func(t *testing.T) repositories.ProductRepository

func newGORMRepo(t *testing.T) repositories.ProductRepository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, repositories.AutoMigrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// sqlite has no row locks; one connection keeps concurrent writers from hitting SQLITE_LOCKED.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return repositories.NewGORMProductRepository(db)
}

func newMockRepo(t *testing.T) repositories.ProductRepository {
	return repositories.NewMockProductRepository()
}

var factories = map[string]repoFactory{
	"gorm": newGORMRepo,
	"mock": newMockRepo,
}

func testAsset(name string) models.Asset {
	id := uuid.NewString()
	return models.Asset{
		ID:          id,
		Bucket:      "products",
		FileURL:     "http://cdn.local/products/" + id + "-" + name,
		FileID:      "products/" + id + "-" + name,
		ContentType: "image/png",
		Size:        3,
	}
}

func newProduct(name string) *models.Product {
	asset := testAsset(name + ".png")
	return &models.Product{
		Name:         name,
		Description:  "test product",
		Price:        decimal.RequireFromString("199.99"),
		Quantity:     5,
		Tags:         []string{"furniture", "modern"},
		Colors:       []string{"red"},
		PrimaryImage: &asset,
	}
}

func TestProductRepository_CreateAndFind(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := factory(t)

			product := newProduct("Modern Chair")
			require.NoError(t, repo.Create(ctx, product))
			require.NotEmpty(t, product.ID)
			require.NotNil(t, product.PrimaryImageID)

			found, err := repo.FindByID(ctx, product.ID)
			require.NoError(t, err)
			assert.Equal(t, "Modern Chair", found.Name)
			assert.True(t, decimal.RequireFromString("199.99").Equal(found.Price))
			assert.Equal(t, []string{"furniture", "modern"}, []string(found.Tags))
			assert.Equal(t, []string{"red"}, []string(found.Colors))
			require.NotNil(t, found.PrimaryImage)
			assert.Equal(t, product.PrimaryImage.ID, found.PrimaryImage.ID)
			assert.Equal(t, product.PrimaryImage.FileURL, found.PrimaryImage.FileURL)
			assert.Empty(t, found.ShowcaseImages)
		})
	}
}

func TestProductRepository_FindByIDNotFound(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			_, err := factory(t).FindByID(context.Background(), "missing")
			assert.ErrorIs(t, err, apperror.ErrNotFound)
		})
	}
}

func TestProductRepository_UpdateFieldsKeepsPrimaryImage(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := factory(t)
			product := newProduct("Chair")
			require.NoError(t, repo.Create(ctx, product))

			newName := "Gaming Chair"
			qty := 0
			updated, err := repo.Update(ctx, product.ID, models.ProductUpdate{
				Name:     &newName,
				Quantity: &qty,
				Tags:     []string{"gaming"},
			}, nil)
			require.NoError(t, err)

			assert.Equal(t, "Gaming Chair", updated.Name)
			assert.Equal(t, 0, updated.Quantity)
			assert.Equal(t, []string{"gaming"}, []string(updated.Tags))
			assert.Equal(t, []string{"red"}, []string(updated.Colors))
			assert.Equal(t, "test product", updated.Description)
			require.NotNil(t, updated.PrimaryImage)
			assert.Equal(t, product.PrimaryImage.ID, updated.PrimaryImage.ID)
		})
	}
}

func TestProductRepository_UpdateRebindsPrimaryImage(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := factory(t)
			product := newProduct("Lamp")
			require.NoError(t, repo.Create(ctx, product))
			oldID := product.PrimaryImage.ID

			replacement := testAsset("lamp-v2.png")
			updated, err := repo.Update(ctx, product.ID, models.ProductUpdate{}, &replacement)
			require.NoError(t, err)

			require.NotNil(t, updated.PrimaryImage)
			assert.Equal(t, replacement.ID, updated.PrimaryImage.ID)
			assert.NotEqual(t, oldID, updated.PrimaryImage.ID)

			checker := repo.(repositories.AssetReferenceChecker)
			referenced, err := checker.IsAssetReferenced(ctx, oldID)
			require.NoError(t, err)
			assert.False(t, referenced)
			referenced, err = checker.IsAssetReferenced(ctx, replacement.ID)
			require.NoError(t, err)
			assert.True(t, referenced)
		})
	}
}

func TestProductRepository_UpdateNotFound(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			_, err := factory(t).Update(context.Background(), "missing", models.ProductUpdate{}, nil)
			assert.ErrorIs(t, err, apperror.ErrNotFound)
		})
	}
}

func TestProductRepository_AppendShowcaseAssetsIsAdditive(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := factory(t)
			product := newProduct("Sofa")
			require.NoError(t, repo.Create(ctx, product))

			first := []models.Asset{testAsset("a.png"), testAsset("b.png")}
			withFirst, err := repo.AppendShowcaseAssets(ctx, product.ID, first)
			require.NoError(t, err)
			require.Len(t, withFirst.ShowcaseImages, 2)

			second := []models.Asset{testAsset("c.png")}
			withSecond, err := repo.AppendShowcaseAssets(ctx, product.ID, second)
			require.NoError(t, err)

			assets := withSecond.ShowcaseAssets()
			require.Len(t, assets, 3)
			assert.Equal(t, first[0].ID, assets[0].ID)
			assert.Equal(t, first[1].ID, assets[1].ID)
			assert.Equal(t, second[0].ID, assets[2].ID)
			assert.Equal(t, second[0].FileURL, assets[2].FileURL)
			for i, s := range withSecond.ShowcaseImages {
				assert.Equal(t, i, s.Position)
			}
			require.NotNil(t, withSecond.PrimaryImage)
			assert.Equal(t, product.PrimaryImage.ID, withSecond.PrimaryImage.ID)
		})
	}
}

func TestProductRepository_AppendShowcaseAssetsNotFound(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			_, err := factory(t).AppendShowcaseAssets(context.Background(), "missing", []models.Asset{testAsset("x.png")})
			assert.ErrorIs(t, err, apperror.ErrNotFound)
		})
	}
}

func TestProductRepository_ListPagesInInsertionOrder(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := factory(t)
			for i := 0; i < 5; i++ {
				require.NoError(t, repo.Create(ctx, newProduct(fmt.Sprintf("Product %d", i))))
			}

			page, err := repo.List(ctx, models.Page{Skip: 1, Take: 3})
			require.NoError(t, err)
			require.Len(t, page, 3)
			assert.Equal(t, "Product 1", page[0].Name)
			assert.Equal(t, "Product 2", page[1].Name)
			assert.Equal(t, "Product 3", page[2].Name)
			for _, p := range page {
				require.NotNil(t, p.PrimaryImage)
				assert.NotEmpty(t, p.PrimaryImage.FileURL)
			}

			tail, err := repo.List(ctx, models.Page{Skip: 4, Take: 10})
			require.NoError(t, err)
			require.Len(t, tail, 1)
			assert.Equal(t, "Product 4", tail[0].Name)

			empty, err := repo.List(ctx, models.Page{Skip: 10, Take: 10})
			require.NoError(t, err)
			assert.Empty(t, empty)

			none, err := repo.List(ctx, models.Page{Skip: 0, Take: 0})
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestProductRepository_ListKeepsOrderForBackToBackInserts(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := factory(t)
			const n = 25
			for i := 0; i < n; i++ {
				require.NoError(t, repo.Create(ctx, newProduct(fmt.Sprintf("P%02d", i))))
			}

			page, err := repo.List(ctx, models.Page{Take: n})
			require.NoError(t, err)
			require.Len(t, page, n)
			for i, p := range page {
				assert.Equal(t, fmt.Sprintf("P%02d", i), p.Name)
			}
		})
	}
}

func TestProductRepository_ConcurrentAppendsKeepPositionsContiguous(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := factory(t)
			product := newProduct("Wardrobe")
			require.NoError(t, repo.Create(ctx, product))

			const writers, perWriter = 4, 2
			var wg sync.WaitGroup
			errs := make(chan error, writers)
			for w := 0; w < writers; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					batch := make([]models.Asset, 0, perWriter)
					for i := 0; i < perWriter; i++ {
						batch = append(batch, testAsset(fmt.Sprintf("w%d-%d.png", w, i)))
					}
					_, err := repo.AppendShowcaseAssets(ctx, product.ID, batch)
					errs <- err
				}(w)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			found, err := repo.FindByID(ctx, product.ID)
			require.NoError(t, err)
			require.Len(t, found.ShowcaseImages, writers*perWriter)
			for i, s := range found.ShowcaseImages {
				assert.Equal(t, i, s.Position)
			}
		})
	}
}
