package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mosaicmart/backoffice/pkg/enums"
)

// StockAdjustment is one immutable entry in the inventory audit trail.
// Only the free-text note may change after insert.
type StockAdjustment struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	InventoryRecordID uuid.UUID            `gorm:"column:inventory_record_id;type:uuid;not null;index"`
	ProductID         uuid.UUID            `gorm:"column:product_id;type:uuid;not null;index"`
	VariantID         *uuid.UUID           `gorm:"column:variant_id;type:uuid"`
	Type              enums.AdjustmentType `gorm:"column:type;not null;index"`
	QuantityChange    int                  `gorm:"column:quantity_change;not null"`
	QuantityBefore    int                  `gorm:"column:quantity_before;not null"`
	QuantityAfter     int                  `gorm:"column:quantity_after;not null"`
	Reason            string               `gorm:"column:reason;not null"`
	Reference         *string              `gorm:"column:reference;index"`
	Note              *string              `gorm:"column:note"`
	ActorUserID       uuid.UUID            `gorm:"column:actor_user_id;type:uuid;not null"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (a *StockAdjustment) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
