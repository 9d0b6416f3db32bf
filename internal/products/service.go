package products

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mosaicmart/backoffice/pkg/db/models"
	"github.com/mosaicmart/backoffice/pkg/enums"
	pkgerrors "github.com/mosaicmart/backoffice/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the catalog surface the cart core reads from: variant
// resolution and price snapshots. It also owns product mutations, which
// keep the category-tier counters consistent in the same transaction.
type Service struct {
	tx   txRunner
	repo *Repository
}

// NewService builds the catalog service.
func NewService(tx txRunner, repo *Repository) (*Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &Service{tx: tx, repo: repo}, nil
}

// ResolveVariant validates a (product, variant) pair for sale. The
// variant must belong to the product and be active; a nil variant id
// resolves to the bare product.
func (s *Service) ResolveVariant(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*models.Product, *models.ProductVariant, error) {
	product, err := s.repo.FindProduct(ctx, productID)
	if err != nil {
		return nil, nil, err
	}
	if product.Status != enums.ProductStatusActive {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not active")
	}
	if variantID == nil {
		return product, nil, nil
	}

	variant, err := s.repo.FindVariant(ctx, *variantID)
	if err != nil {
		return nil, nil, err
	}
	if variant == nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeInvalidVariant, "variant not found")
	}
	if variant.ProductID != productID {
		return nil, nil, pkgerrors.New(pkgerrors.CodeInvalidVariant, "variant does not belong to this product")
	}
	if !variant.Active {
		return nil, nil, pkgerrors.New(pkgerrors.CodeInvalidVariant, "variant is inactive")
	}
	return product, variant, nil
}

// PriceSnapshot is the catalog price captured at line-item write time.
type PriceSnapshot struct {
	UnitPriceCents          int
	CompareAtUnitPriceCents *int
}

// CurrentPrice resolves the selling price for a (product, variant) pair.
// A variant-level price overrides the product price.
func (s *Service) CurrentPrice(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*PriceSnapshot, error) {
	product, variant, err := s.ResolveVariant(ctx, productID, variantID)
	if err != nil {
		return nil, err
	}

	snapshot := &PriceSnapshot{
		UnitPriceCents:          product.PriceCents,
		CompareAtUnitPriceCents: product.CompareAtPriceCents,
	}
	if variant != nil {
		if variant.PriceCents != nil {
			snapshot.UnitPriceCents = *variant.PriceCents
		}
		if variant.CompareAtPriceCents != nil {
			snapshot.CompareAtUnitPriceCents = variant.CompareAtPriceCents
		}
	}
	return snapshot, nil
}

// VariantInput describes one sellable variation on a new product.
type VariantInput struct {
	SKU                 string
	PriceCents          *int
	CompareAtPriceCents *int
}

// CreateProductInput describes a new catalog entry.
type CreateProductInput struct {
	Name                string
	PriceCents          int
	CompareAtPriceCents *int
	CategoryTierID      *uuid.UUID
	Variants            []VariantInput
}

func (in CreateProductInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if in.PriceCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	for _, v := range in.Variants {
		if strings.TrimSpace(v.SKU) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "variant sku is required")
		}
		if v.PriceCents != nil && *v.PriceCents < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "variant price must not be negative")
		}
	}
	return nil
}

// CreateProduct inserts a product and, when it joins a tier, bumps the
// tier counter in the same transaction. A full tier rejects the whole
// creation.
func (s *Service) CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:                input.Name,
		Status:              enums.ProductStatusActive,
		CategoryTierID:      input.CategoryTierID,
		PriceCents:          input.PriceCents,
		CompareAtPriceCents: input.CompareAtPriceCents,
	}
	for _, v := range input.Variants {
		product.Variants = append(product.Variants, models.ProductVariant{
			SKU:                 v.SKU,
			PriceCents:          v.PriceCents,
			CompareAtPriceCents: v.CompareAtPriceCents,
			Active:              true,
		})
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if input.CategoryTierID != nil {
			if err := repo.IncrementTierCount(ctx, *input.CategoryTierID); err != nil {
				return err
			}
		}
		return repo.CreateProduct(ctx, product)
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

// CreateTierInput describes a new category tier. A nil MaxProducts
// leaves the tier uncapped.
type CreateTierInput struct {
	Name        string
	MaxProducts *int
}

func (in CreateTierInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "tier name is required")
	}
	if in.MaxProducts != nil && *in.MaxProducts <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "tier capacity must be positive")
	}
	return nil
}

// CreateTier registers a category tier products can be assigned to.
func (s *Service) CreateTier(ctx context.Context, input CreateTierInput) (*models.CategoryTier, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	tier := &models.CategoryTier{
		Name:        strings.TrimSpace(input.Name),
		MaxProducts: input.MaxProducts,
	}
	if err := s.repo.CreateTier(ctx, tier); err != nil {
		return nil, err
	}
	return tier, nil
}

// ArchiveProduct takes the product off sale and returns its tier slot.
func (s *Service) ArchiveProduct(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := repo.FindProduct(ctx, id)
		if err != nil {
			return err
		}
		if product.Status == enums.ProductStatusArchived {
			return nil
		}
		if err := repo.UpdateProductStatus(ctx, id, enums.ProductStatusArchived); err != nil {
			return err
		}
		if product.CategoryTierID != nil {
			return repo.DecrementTierCount(ctx, *product.CategoryTierID)
		}
		return nil
	})
}

// ReassignTier moves a product between tiers, adjusting both counters in
// one transaction. A nil tier removes the product from tiers.
func (s *Service) ReassignTier(ctx context.Context, productID uuid.UUID, tierID *uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := repo.FindProduct(ctx, productID)
		if err != nil {
			return err
		}
		samePointer := product.CategoryTierID == nil && tierID == nil
		sameValue := product.CategoryTierID != nil && tierID != nil && *product.CategoryTierID == *tierID
		if samePointer || sameValue {
			return nil
		}
		if tierID != nil {
			if err := repo.IncrementTierCount(ctx, *tierID); err != nil {
				return err
			}
		}
		if product.CategoryTierID != nil {
			if err := repo.DecrementTierCount(ctx, *product.CategoryTierID); err != nil {
				return err
			}
		}
		return repo.UpdateProductTier(ctx, productID, tierID)
	})
}
