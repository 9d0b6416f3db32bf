package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mosaicmart/backoffice/pkg/enums"
)

// Product is the minimal catalog surface the cart core reads: identity,
// status, tier membership, and the current selling price.
type Product struct {
	ID                  uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Name                string              `gorm:"column:name;not null"`
	Status              enums.ProductStatus `gorm:"column:status;not null;default:'active'"`
	CategoryTierID      *uuid.UUID          `gorm:"column:category_tier_id;type:uuid;index"`
	PriceCents          int                 `gorm:"column:price_cents;not null"`
	CompareAtPriceCents *int                `gorm:"column:compare_at_price_cents"`
	Variants            []ProductVariant    `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt           time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ProductVariant is a sellable variation of a product with its own price
// override and active flag.
type ProductVariant struct {
	ID                  uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID           uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	SKU                 string    `gorm:"column:sku;not null"`
	PriceCents          *int      `gorm:"column:price_cents"`
	CompareAtPriceCents *int      `gorm:"column:compare_at_price_cents"`
	Active              bool      `gorm:"column:active;not null;default:true"`
	CreatedAt           time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *ProductVariant) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
