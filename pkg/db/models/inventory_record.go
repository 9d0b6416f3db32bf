package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InventoryRecord tracks available/reserved stock counters for one
// (product, variant, location) tuple. Rows are never deleted; zero stock
// is a valid state.
type InventoryRecord struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ProductID    uuid.UUID  `gorm:"column:product_id;type:uuid;not null;uniqueIndex:uniq_inventory_scope"`
	VariantID    *uuid.UUID `gorm:"column:variant_id;type:uuid;uniqueIndex:uniq_inventory_scope"`
	LocationID   *uuid.UUID `gorm:"column:location_id;type:uuid;uniqueIndex:uniq_inventory_scope"`
	AvailableQty int        `gorm:"column:available_qty;not null;default:0"`
	ReservedQty  int        `gorm:"column:reserved_qty;not null;default:0"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *InventoryRecord) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
