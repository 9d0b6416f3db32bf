package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mosaicmart/backoffice/internal/products"
	"github.com/mosaicmart/backoffice/internal/reservations"
	"github.com/mosaicmart/backoffice/pkg/db/models"
	"github.com/mosaicmart/backoffice/pkg/enums"
	pkgerrors "github.com/mosaicmart/backoffice/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type catalog interface {
	ResolveVariant(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*models.Product, *models.ProductVariant, error)
	CurrentPrice(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*products.PriceSnapshot, error)
}

type stockReader interface {
	LockAndReadAvailable(ctx context.Context, tx *gorm.DB, productID uuid.UUID, variantID *uuid.UUID) (*models.InventoryRecord, int, error)
}

type reservationManager interface {
	Reserve(ctx context.Context, tx *gorm.DB, input reservations.ReserveInput) (*models.StockReservation, error)
	Release(ctx context.Context, tx *gorm.DB, cartItemID uuid.UUID) error
	ReReserve(ctx context.Context, tx *gorm.DB, input reservations.ReserveInput) (*models.StockReservation, error)
	Held(ctx context.Context, tx *gorm.DB, cartItemID uuid.UUID) (int, error)
}

// Service owns every cart mutation. Each one runs the same shape: lock
// the inventory row, check availability against the quantity about to be
// held, mutate the line item and its reservation, recompute totals, and
// commit or roll back as one unit.
type Service struct {
	tx           txRunner
	repo         *Repository
	catalog      catalog
	stock        stockReader
	reservations reservationManager
	ttl          time.Duration
}

// ServiceParams configure the cart service.
type ServiceParams struct {
	Tx             txRunner
	Repo           *Repository
	Catalog        catalog
	Stock          stockReader
	Reservations   reservationManager
	ReservationTTL time.Duration
}

// NewService builds the cart service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if params.Reservations == nil {
		return nil, fmt.Errorf("reservation manager required")
	}
	ttl := params.ReservationTTL
	if ttl <= 0 {
		ttl = reservations.DefaultTTL
	}
	return &Service{
		tx:           params.Tx,
		repo:         params.Repo,
		catalog:      params.Catalog,
		stock:        params.Stock,
		reservations: params.Reservations,
		ttl:          ttl,
	}, nil
}

// ActiveCartForUser returns the user's active cart, creating one when
// none exists.
func (s *Service) ActiveCartForUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	cart, err := s.repo.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart != nil {
		return cart, nil
	}
	cart = &models.Cart{UserID: &userID, Status: enums.CartStatusActive}
	if err := s.repo.CreateCart(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// ActiveCartForSession returns the guest session's active cart, creating
// one when none exists.
func (s *Service) ActiveCartForSession(ctx context.Context, sessionID string) (*models.Cart, error) {
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	cart, err := s.repo.FindActiveBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if cart != nil {
		return cart, nil
	}
	cart = &models.Cart{SessionID: &sessionID, Status: enums.CartStatusActive}
	if err := s.repo.CreateCart(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// GetCart loads a cart with its live line items.
func (s *Service) GetCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	cart, err := s.repo.FindCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListLiveItems(ctx, cartID)
	if err != nil {
		return nil, err
	}
	cart.Items = items
	return cart, nil
}

// AddItemInput describes one add-to-cart request.
type AddItemInput struct {
	CartID        uuid.UUID
	ProductID     uuid.UUID
	VariantID     *uuid.UUID
	Quantity      int
	Customization json.RawMessage
}

func (in AddItemInput) validate() error {
	if in.CartID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart id is required")
	}
	if in.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if in.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return nil
}

// AddItem adds a product to the cart, incrementing quantity in place
// when a live line for the same (product, variant) already exists. The
// stock check always covers the full quantity about to be held, never
// just the increment, and a shortfall surfaces the real available count.
func (s *Service) AddItem(ctx context.Context, input AddItemInput) (*models.Cart, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	if _, _, err := s.catalog.ResolveVariant(ctx, input.ProductID, input.VariantID); err != nil {
		return nil, err
	}
	price, err := s.catalog.CurrentPrice(ctx, input.ProductID, input.VariantID)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.FindCart(ctx, input.CartID)
		if err != nil {
			return err
		}
		if cart.Status != enums.CartStatusActive {
			return pkgerrors.New(pkgerrors.CodeConflict, "cart is not active")
		}

		record, available, err := s.stock.LockAndReadAvailable(ctx, tx, input.ProductID, input.VariantID)
		if err != nil {
			return err
		}

		existing, err := repo.FindLiveItem(ctx, input.CartID, input.ProductID, input.VariantID)
		if err != nil {
			return err
		}

		if existing == nil {
			if input.Quantity > available {
				return pkgerrors.InsufficientStock(available, input.Quantity)
			}
			subtotal, total := lineAmounts(price, input.Quantity)
			item := &models.CartItem{
				CartID:                  input.CartID,
				ProductID:               input.ProductID,
				VariantID:               input.VariantID,
				Quantity:                input.Quantity,
				UnitPriceCents:          price.UnitPriceCents,
				CompareAtUnitPriceCents: price.CompareAtUnitPriceCents,
				LineSubtotalCents:       subtotal,
				LineTotalCents:          total,
				Customization:           input.Customization,
			}
			if err := repo.CreateItem(ctx, item); err != nil {
				return err
			}
			if _, err := s.reservations.Reserve(ctx, tx, reservations.ReserveInput{
				ProductID:  input.ProductID,
				VariantID:  input.VariantID,
				Quantity:   input.Quantity,
				CartItemID: item.ID,
				TTL:        s.ttl,
			}); err != nil {
				return err
			}
			return s.recomputeTotals(ctx, tx, input.CartID)
		}

		newQuantity := existing.Quantity + input.Quantity
		held, err := s.reservations.Held(ctx, tx, existing.ID)
		if err != nil {
			return err
		}
		// The line's own hold is already counted in reserved_qty; it
		// comes back to the pool when the hold is swapped. Computed from
		// the raw counters so drift below zero never inflates capacity.
		effective := holdCapacity(record, held)
		if newQuantity > effective {
			return pkgerrors.InsufficientStock(effective, newQuantity)
		}

		existing.Quantity = newQuantity
		existing.UnitPriceCents = price.UnitPriceCents
		existing.CompareAtUnitPriceCents = price.CompareAtUnitPriceCents
		existing.LineSubtotalCents, existing.LineTotalCents = lineAmounts(price, newQuantity)
		if input.Customization != nil {
			existing.Customization = input.Customization
		}
		if err := repo.SaveItem(ctx, existing); err != nil {
			return err
		}
		if _, err := s.reservations.ReReserve(ctx, tx, reservations.ReserveInput{
			ProductID:  input.ProductID,
			VariantID:  input.VariantID,
			Quantity:   newQuantity,
			CartItemID: existing.ID,
			TTL:        s.ttl,
		}); err != nil {
			return err
		}
		return s.recomputeTotals(ctx, tx, input.CartID)
	})
	if err != nil {
		return nil, err
	}
	return s.GetCart(ctx, input.CartID)
}

// UpdateItemQuantity replaces a line item's quantity. Decreases are
// always legal; increases run the same stock check as AddItem.
func (s *Service) UpdateItemQuantity(ctx context.Context, cartID, itemID uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive; remove the item instead")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.FindItem(ctx, itemID)
		if err != nil {
			return err
		}
		if item == nil || item.CartID != cartID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}

		price, err := s.catalog.CurrentPrice(ctx, item.ProductID, item.VariantID)
		if err != nil {
			return err
		}

		record, _, err := s.stock.LockAndReadAvailable(ctx, tx, item.ProductID, item.VariantID)
		if err != nil {
			return err
		}
		held, err := s.reservations.Held(ctx, tx, item.ID)
		if err != nil {
			return err
		}
		// Decreases never run the stock check: drifted counters must not
		// trap a shopper at a quantity they are trying to lower.
		if quantity > held {
			effective := holdCapacity(record, held)
			if quantity > effective {
				return pkgerrors.InsufficientStock(effective, quantity)
			}
		}

		item.Quantity = quantity
		item.UnitPriceCents = price.UnitPriceCents
		item.CompareAtUnitPriceCents = price.CompareAtUnitPriceCents
		item.LineSubtotalCents, item.LineTotalCents = lineAmounts(price, quantity)
		if err := repo.SaveItem(ctx, item); err != nil {
			return err
		}
		if _, err := s.reservations.ReReserve(ctx, tx, reservations.ReserveInput{
			ProductID:  item.ProductID,
			VariantID:  item.VariantID,
			Quantity:   quantity,
			CartItemID: item.ID,
			TTL:        s.ttl,
		}); err != nil {
			return err
		}
		return s.recomputeTotals(ctx, tx, cartID)
	})
	if err != nil {
		return nil, err
	}
	return s.GetCart(ctx, cartID)
}

// RemoveItem releases the line's hold and soft-deletes it. Removing an
// already-removed item is a no-op.
func (s *Service) RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.Cart, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.FindItem(ctx, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return nil
		}
		if item.CartID != cartID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		if err := s.reservations.Release(ctx, tx, item.ID); err != nil {
			return err
		}
		if err := repo.SoftDeleteItem(ctx, item.ID); err != nil {
			return err
		}
		return s.recomputeTotals(ctx, tx, cartID)
	})
	if err != nil {
		return nil, err
	}
	return s.GetCart(ctx, cartID)
}

// recomputeTotals rebuilds the cart projection from all live items.
func (s *Service) recomputeTotals(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	items, err := repo.ListLiveItems(ctx, cartID)
	if err != nil {
		return err
	}
	var subtotal, total int
	for _, item := range items {
		subtotal += item.LineSubtotalCents
		total += item.LineTotalCents
	}
	discount := subtotal - total
	if discount < 0 {
		discount = 0
	}
	return repo.UpdateTotals(ctx, cartID, subtotal, discount, total)
}

// holdCapacity is the quantity one line may hold: stock not promised to
// anyone else plus what the line already holds, floored at zero.
func holdCapacity(record *models.InventoryRecord, held int) int {
	capacity := record.AvailableQty - record.ReservedQty + held
	if capacity < 0 {
		return 0
	}
	return capacity
}

func lineAmounts(price *products.PriceSnapshot, quantity int) (subtotal, total int) {
	total = price.UnitPriceCents * quantity
	subtotal = total
	if price.CompareAtUnitPriceCents != nil && *price.CompareAtUnitPriceCents > price.UnitPriceCents {
		subtotal = *price.CompareAtUnitPriceCents * quantity
	}
	return subtotal, total
}
