package reservations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mosaicmart/backoffice/internal/repo"
	"github.com/mosaicmart/backoffice/pkg/db/models"
)

// Repository persists stock reservations.
type Repository struct {
	repo.Base
}

// NewRepository binds the repository to the provided GORM handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx scopes the repository to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Rebind(tx)}
}

// FindByCartItem returns the reservation owned by the line item, or nil
// when none exists.
func (r *Repository) FindByCartItem(ctx context.Context, cartItemID uuid.UUID) (*models.StockReservation, error) {
	var reservation models.StockReservation
	err := r.DB(ctx).
		Where("cart_item_id = ?", cartItemID).
		First(&reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &reservation, nil
}

// Create inserts a new reservation row.
func (r *Repository) Create(ctx context.Context, reservation *models.StockReservation) error {
	return r.DB(ctx).Create(reservation).Error
}

// DeleteByCartItem removes the reservation owned by the line item.
func (r *Repository) DeleteByCartItem(ctx context.Context, cartItemID uuid.UUID) error {
	return r.DB(ctx).
		Where("cart_item_id = ?", cartItemID).
		Delete(&models.StockReservation{}).Error
}

// FindExpired lists reservations whose TTL elapsed before the cutoff,
// oldest first, capped at limit.
func (r *Repository) FindExpired(ctx context.Context, cutoff time.Time, limit int) ([]models.StockReservation, error) {
	q := r.DB(ctx).
		Where("expires_at <= ?", cutoff).
		Order("expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.StockReservation
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
