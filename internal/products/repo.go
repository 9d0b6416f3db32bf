package products

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mosaicmart/backoffice/internal/repo"
	"github.com/mosaicmart/backoffice/pkg/db/models"
	"github.com/mosaicmart/backoffice/pkg/enums"
	pkgerrors "github.com/mosaicmart/backoffice/pkg/errors"
)

// Repository persists products, variants, and category tiers. Tier
// counters change only through the guarded increment/decrement below, so
// the cap check and the bump are one atomic statement.
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

// FindProduct loads a product by id.
func (r *Repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.DB(ctx).First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, err
	}
	return &product, nil
}

// FindVariant loads a variant by id, or nil when absent.
func (r *Repository) FindVariant(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := r.DB(ctx).First(&variant, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &variant, nil
}

// CreateProduct inserts a product together with its variants.
func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.DB(ctx).Create(product).Error
}

// UpdateProductStatus flips the product's sellability flag.
func (r *Repository) UpdateProductStatus(ctx context.Context, id uuid.UUID, status enums.ProductStatus) error {
	res := r.DB(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

// UpdateProductTier moves the product to another tier, or out of tiers
// entirely when tierID is nil. Counters are the caller's responsibility.
func (r *Repository) UpdateProductTier(ctx context.Context, id uuid.UUID, tierID *uuid.UUID) error {
	res := r.DB(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Update("category_tier_id", tierID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

// FindTier loads a category tier by id.
func (r *Repository) FindTier(ctx context.Context, id uuid.UUID) (*models.CategoryTier, error) {
	var tier models.CategoryTier
	if err := r.DB(ctx).First(&tier, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "category tier not found")
		}
		return nil, err
	}
	return &tier, nil
}

// CreateTier inserts a category tier.
func (r *Repository) CreateTier(ctx context.Context, tier *models.CategoryTier) error {
	return r.DB(ctx).Create(tier).Error
}

// IncrementTierCount bumps the tier's product counter, refusing the bump
// when the tier is at capacity. The cap check and the increment are one
// statement so concurrent assignments cannot both slip under the cap.
func (r *Repository) IncrementTierCount(ctx context.Context, tierID uuid.UUID) error {
	res := r.DB(ctx).Exec(`
		UPDATE category_tiers
		SET product_count = product_count + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
			AND (max_products IS NULL OR product_count < max_products)
	`, tierID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.FindTier(ctx, tierID); err != nil {
			return err
		}
		return pkgerrors.New(pkgerrors.CodeConflict, "category tier is at capacity")
	}
	return nil
}

// DecrementTierCount lowers the tier's product counter, floored at zero.
func (r *Repository) DecrementTierCount(ctx context.Context, tierID uuid.UUID) error {
	res := r.DB(ctx).Exec(`
		UPDATE category_tiers
		SET product_count = product_count - 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
			AND product_count > 0
	`, tierID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.FindTier(ctx, tierID); err != nil {
			return err
		}
		// Counter already at zero; nothing to take back.
	}
	return nil
}
