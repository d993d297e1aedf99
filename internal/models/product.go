package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Product represents a product in the catalog.
type Product struct {
	ID             string                      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name           string                      `json:"name" gorm:"type:varchar(100);not null"`
	Description    string                      `json:"description" gorm:"type:text"`
	Price          decimal.Decimal             `json:"price" gorm:"type:decimal(12,2);not null"`
	Quantity       int                         `json:"quantity" gorm:"not null"`
	Tags           datatypes.JSONSlice[string] `json:"tags"`
	Colors         datatypes.JSONSlice[string] `json:"colors"`
	PrimaryImageID *string                     `json:"primary_image_id,omitempty" gorm:"type:varchar(36)"`
	PrimaryImage   *Asset                      `json:"primary_image,omitempty" gorm:"foreignKey:PrimaryImageID"`
	ShowcaseImages []ShowcaseImage             `json:"showcase_images,omitempty" gorm:"foreignKey:ProductID"`
	CreatedAt      time.Time                   `json:"created_at"`
	UpdatedAt      time.Time                   `json:"updated_at"`
}

// ShowcaseImage links a supplementary asset to a product. Position keeps attach order.
type ShowcaseImage struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ProductID string    `json:"product_id" gorm:"type:varchar(36);index;not null"`
	AssetID   string    `json:"asset_id" gorm:"type:varchar(36);not null"`
	Asset     Asset     `json:"asset" gorm:"foreignKey:AssetID"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

// ProductUpdate carries the optional field changes of a full update.
// Nil pointers and nil slices leave the stored value untouched.
type ProductUpdate struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Quantity    *int
	Tags        []string
	Colors      []string
}

// IsEmpty reports whether the update changes no field.
func (u ProductUpdate) IsEmpty() bool {
	return u.Name == nil && u.Description == nil && u.Price == nil &&
		u.Quantity == nil && u.Tags == nil && u.Colors == nil
}

// Apply copies the set fields onto p.
func (u ProductUpdate) Apply(p *Product) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.Quantity != nil {
		p.Quantity = *u.Quantity
	}
	if u.Tags != nil {
		p.Tags = datatypes.JSONSlice[string](u.Tags)
	}
	if u.Colors != nil {
		p.Colors = datatypes.JSONSlice[string](u.Colors)
	}
}

// ShowcaseAssets returns the showcase assets in attach order.
func (p *Product) ShowcaseAssets() []Asset {
	assets := make([]Asset, 0, len(p.ShowcaseImages))
	for _, s := range p.ShowcaseImages {
		assets = append(assets, s.Asset)
	}
	return assets
}

// Page is a normalized skip/take window over the product listing.
type Page struct {
	Skip int `json:"skip"`
	Take int `json:"take"`
}
