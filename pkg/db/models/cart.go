package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mosaicmart/backoffice/pkg/enums"
)

// Cart aggregates line items for either an authenticated user or a guest
// session. Totals are a projection over live items, recomputed after
// every mutating transaction.
type Cart struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	UserID         *uuid.UUID       `gorm:"column:user_id;type:uuid;index"`
	SessionID      *string          `gorm:"column:session_id;index"`
	Status         enums.CartStatus `gorm:"column:status;not null;default:'active'"`
	SubtotalCents  int              `gorm:"column:subtotal_cents;not null;default:0"`
	DiscountCents  int              `gorm:"column:discount_cents;not null;default:0"`
	TotalCents     int              `gorm:"column:total_cents;not null;default:0"`
	ConvertedAt    *time.Time       `gorm:"column:converted_at"`
	Items          []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Cart) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
