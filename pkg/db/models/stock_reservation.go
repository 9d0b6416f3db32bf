package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockReservation is a time-boxed hold on stock owned by exactly one
// cart line item. Its existence implies a matching increment in the
// owning InventoryRecord's reserved_qty.
type StockReservation struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	CartItemID uuid.UUID  `gorm:"column:cart_item_id;type:uuid;not null;uniqueIndex"`
	ProductID  uuid.UUID  `gorm:"column:product_id;type:uuid;not null;index"`
	VariantID  *uuid.UUID `gorm:"column:variant_id;type:uuid"`
	Quantity   int        `gorm:"column:quantity;not null"`
	ExpiresAt  time.Time  `gorm:"column:expires_at;not null;index"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (r *StockReservation) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
