package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mosaicmart/backoffice/internal/repo"
	"github.com/mosaicmart/backoffice/pkg/db/models"
	pkgerrors "github.com/mosaicmart/backoffice/pkg/errors"
)

// Repository is the only component allowed to touch inventory_records.
// Counter mutations go through LockForUpdate + ApplyDelta so every caller
// inherits the lock-then-mutate contract.
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

// LockForUpdate loads the inventory row under an exclusive row lock. The
// caller must hold an open transaction; the lock persists until that
// transaction commits or rolls back. A missing row is NotFound, never an
// auto-create.
func (r *Repository) LockForUpdate(ctx context.Context, productID uuid.UUID, variantID, locationID *uuid.UUID) (*models.InventoryRecord, error) {
	q := r.DB(ctx)
	// SQLite has no FOR UPDATE; its single-writer model already
	// serializes these transactions.
	if q.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	q = scopeNullable(q.Where("product_id = ?", productID), "variant_id", variantID)
	q = scopeNullable(q, "location_id", locationID)

	var record models.InventoryRecord
	if err := q.First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory record not found")
		}
		return nil, err
	}
	return &record, nil
}

// ApplyDelta shifts the counters of a row the caller has already locked.
func (r *Repository) ApplyDelta(ctx context.Context, recordID uuid.UUID, deltaAvailable, deltaReserved int) error {
	if deltaAvailable == 0 && deltaReserved == 0 {
		return nil
	}
	res := r.DB(ctx).Exec(`
		UPDATE inventory_records
		SET available_qty = available_qty + ?,
			reserved_qty = reserved_qty + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, deltaAvailable, deltaReserved, recordID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "inventory record not found")
	}
	return nil
}

// Find loads the inventory row without locking it.
func (r *Repository) Find(ctx context.Context, productID uuid.UUID, variantID, locationID *uuid.UUID) (*models.InventoryRecord, error) {
	q := scopeNullable(r.DB(ctx).Where("product_id = ?", productID), "variant_id", variantID)
	q = scopeNullable(q, "location_id", locationID)

	var record models.InventoryRecord
	if err := q.First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory record not found")
		}
		return nil, err
	}
	return &record, nil
}

// Create inserts a new inventory row. Admin/provisioning path only.
func (r *Repository) Create(ctx context.Context, record *models.InventoryRecord) (*models.InventoryRecord, error) {
	if err := r.DB(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

func scopeNullable(q *gorm.DB, column string, id *uuid.UUID) *gorm.DB {
	if id == nil {
		return q.Where(column + " IS NULL")
	}
	return q.Where(column+" = ?", *id)
}
