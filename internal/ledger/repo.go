package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mosaicmart/backoffice/internal/repo"
	"github.com/mosaicmart/backoffice/pkg/db/models"
	"github.com/mosaicmart/backoffice/pkg/enums"
)

// Repository manages persistence for stock adjustment entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.StockAdjustment) error
	CreateBatch(ctx context.Context, entries []models.StockAdjustment) error
	UpdateNote(ctx context.Context, id uuid.UUID, note string) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.StockAdjustment, error)
	ListByInventoryRecord(ctx context.Context, recordID uuid.UUID) ([]models.StockAdjustment, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.StockAdjustment, error)
	ListByType(ctx context.Context, adjustmentType enums.AdjustmentType, limit int) ([]models.StockAdjustment, error)
	ListByReference(ctx context.Context, reference string) ([]models.StockAdjustment, error)
	Recent(ctx context.Context, limit int) ([]models.StockAdjustment, error)
	Summarize(ctx context.Context, from, to time.Time) ([]TypeSummary, error)
}

// TypeSummary aggregates adjustment entries per type over a date range.
type TypeSummary struct {
	Type        enums.AdjustmentType `gorm:"column:type"`
	TotalChange int                  `gorm:"column:total_change"`
	Entries     int                  `gorm:"column:entries"`
}

type repository struct {
	repo.Base
}

// NewRepository returns an adjustment repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Rebind(tx)}
}

func (r *repository) Create(ctx context.Context, entry *models.StockAdjustment) error {
	return r.DB(ctx).Create(entry).Error
}

func (r *repository) CreateBatch(ctx context.Context, entries []models.StockAdjustment) error {
	if len(entries) == 0 {
		return nil
	}
	return r.DB(ctx).Create(&entries).Error
}

// UpdateNote touches the one mutable column; everything else is immutable
// after insert.
func (r *repository) UpdateNote(ctx context.Context, id uuid.UUID, note string) error {
	return r.DB(ctx).
		Model(&models.StockAdjustment{}).
		Where("id = ?", id).
		Update("note", note).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.StockAdjustment, error) {
	var entry models.StockAdjustment
	if err := r.DB(ctx).First(&entry, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) ListByInventoryRecord(ctx context.Context, recordID uuid.UUID) ([]models.StockAdjustment, error) {
	var entries []models.StockAdjustment
	if err := r.DB(ctx).
		Where("inventory_record_id = ?", recordID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ListByProduct returns entries for the product across all of its
// variants and locations.
func (r *repository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.StockAdjustment, error) {
	var entries []models.StockAdjustment
	if err := r.DB(ctx).
		Where("product_id = ?", productID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListByType(ctx context.Context, adjustmentType enums.AdjustmentType, limit int) ([]models.StockAdjustment, error) {
	q := r.DB(ctx).
		Where("type = ?", adjustmentType).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var entries []models.StockAdjustment
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListByReference(ctx context.Context, reference string) ([]models.StockAdjustment, error) {
	var entries []models.StockAdjustment
	if err := r.DB(ctx).
		Where("reference = ?", reference).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) Recent(ctx context.Context, limit int) ([]models.StockAdjustment, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []models.StockAdjustment
	if err := r.DB(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) Summarize(ctx context.Context, from, to time.Time) ([]TypeSummary, error) {
	var rows []TypeSummary
	err := r.DB(ctx).
		Model(&models.StockAdjustment{}).
		Select("type, SUM(quantity_change) AS total_change, COUNT(*) AS entries").
		Where("created_at >= ? AND created_at < ?", from, to).
		Group("type").
		Order("type ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
