package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartItem persists one (cart, product, variant) line with price fields
// snapshotted from the catalog at last write. Soft-deleted rows are kept
// for audit; only live rows count toward totals.
type CartItem struct {
	ID                      uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CartID                  uuid.UUID       `gorm:"column:cart_id;type:uuid;not null;index"`
	ProductID               uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	VariantID               *uuid.UUID      `gorm:"column:variant_id;type:uuid"`
	Quantity                int             `gorm:"column:quantity;not null"`
	UnitPriceCents          int             `gorm:"column:unit_price_cents;not null"`
	CompareAtUnitPriceCents *int            `gorm:"column:compare_at_unit_price_cents"`
	LineSubtotalCents       int             `gorm:"column:line_subtotal_cents;not null"`
	LineTotalCents          int             `gorm:"column:line_total_cents;not null"`
	Customization           json.RawMessage `gorm:"column:customization;type:jsonb"`
	CreatedAt               time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time       `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt               gorm.DeletedAt  `gorm:"column:deleted_at;index"`
}

func (i *CartItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
