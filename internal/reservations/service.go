package reservations

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/mosaicmart/backoffice/pkg/db"
	"github.com/mosaicmart/backoffice/pkg/db/models"
	pkgerrors "github.com/mosaicmart/backoffice/pkg/errors"
	"github.com/mosaicmart/backoffice/pkg/logger"
)

const DefaultTTL = 30 * time.Minute

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ledgerAccess interface {
	LockAndReadAvailable(ctx context.Context, tx *gorm.DB, productID uuid.UUID, variantID *uuid.UUID) (*models.InventoryRecord, int, error)
	ApplyDelta(ctx context.Context, tx *gorm.DB, recordID uuid.UUID, deltaAvailable, deltaReserved int) error
}

// Manager owns the reservation lifecycle and the invariant that
// reserved_qty equals the sum of live reservations. Reserve, Release and
// ReReserve run on a transaction the caller already holds; callers lock
// the inventory row first and reserve second.
type Manager struct {
	tx        txRunner
	repo      *Repository
	inventory ledgerAccess
	logg      *logger.Logger
	now       func() time.Time
}

// NewManager builds a reservation manager.
func NewManager(tx txRunner, repo *Repository, inventory ledgerAccess, logg *logger.Logger) (*Manager, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("reservation repository required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Manager{
		tx:        tx,
		repo:      repo,
		inventory: inventory,
		logg:      logg,
		now:       time.Now,
	}, nil
}

// ReserveInput captures a hold request for one cart line item.
type ReserveInput struct {
	ProductID  uuid.UUID
	VariantID  *uuid.UUID
	Quantity   int
	CartItemID uuid.UUID
	TTL        time.Duration
}

func (in ReserveInput) validate() error {
	if in.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if in.CartItemID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart item id is required")
	}
	if in.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be positive")
	}
	return nil
}

// Reserve increments reserved_qty and records the hold. The caller has
// already locked the row and validated availability; a pre-existing
// reservation for the same line item is a caller bug, not a race.
func (m *Manager) Reserve(ctx context.Context, tx *gorm.DB, input ReserveInput) (*models.StockReservation, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for reserve")
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	repo := m.repo.WithTx(tx)
	existing, err := repo.FindByCartItem(ctx, input.CartItemID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "line item already holds a reservation; release before re-reserving")
	}

	record, _, err := m.inventory.LockAndReadAvailable(ctx, tx, input.ProductID, input.VariantID)
	if err != nil {
		return nil, err
	}
	if err := m.inventory.ApplyDelta(ctx, tx, record.ID, 0, input.Quantity); err != nil {
		return nil, err
	}

	ttl := input.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	reservation := &models.StockReservation{
		CartItemID: input.CartItemID,
		ProductID:  input.ProductID,
		VariantID:  input.VariantID,
		Quantity:   input.Quantity,
		ExpiresAt:  m.now().UTC().Add(ttl),
	}
	if err := repo.Create(ctx, reservation); err != nil {
		if db.IsUniqueViolation(err, "uniq_stock_reservations_cart_item_id") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "line item already holds a reservation")
		}
		return nil, err
	}
	return reservation, nil
}

// Held reports the quantity currently held for the line item, zero when
// no reservation exists.
func (m *Manager) Held(ctx context.Context, tx *gorm.DB, cartItemID uuid.UUID) (int, error) {
	reservation, err := m.repo.WithTx(tx).FindByCartItem(ctx, cartItemID)
	if err != nil {
		return 0, err
	}
	if reservation == nil {
		return 0, nil
	}
	return reservation.Quantity, nil
}

// Release returns a line item's hold to the pool and deletes the
// reservation. Releasing an absent or already-swept reservation is a
// no-op so retries and the sweep can overlap safely.
func (m *Manager) Release(ctx context.Context, tx *gorm.DB, cartItemID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for release")
	}
	if cartItemID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart item id is required")
	}

	repo := m.repo.WithTx(tx)
	reservation, err := repo.FindByCartItem(ctx, cartItemID)
	if err != nil {
		return err
	}
	if reservation == nil {
		return nil
	}

	record, _, err := m.inventory.LockAndReadAvailable(ctx, tx, reservation.ProductID, reservation.VariantID)
	if err != nil {
		return err
	}
	// Floor at zero: an out-of-band correction may have already lowered
	// reserved_qty below this hold.
	releasable := reservation.Quantity
	if releasable > record.ReservedQty {
		releasable = record.ReservedQty
	}
	if releasable > 0 {
		if err := m.inventory.ApplyDelta(ctx, tx, record.ID, 0, -releasable); err != nil {
			return err
		}
	}
	return repo.DeleteByCartItem(ctx, cartItemID)
}

// ReReserve swaps a line item's hold for a new quantity atomically with
// respect to concurrent readers of the same transaction's row lock.
func (m *Manager) ReReserve(ctx context.Context, tx *gorm.DB, input ReserveInput) (*models.StockReservation, error) {
	if err := m.Release(ctx, tx, input.CartItemID); err != nil {
		return nil, err
	}
	return m.Reserve(ctx, tx, input)
}

// ReleaseExpired sweeps reservations whose TTL elapsed, one short
// transaction per reservation so no lock spans the whole batch. A
// failing row does not stop the sweep.
func (m *Manager) ReleaseExpired(ctx context.Context, batchSize int) (int, error) {
	expired, err := m.repo.FindExpired(ctx, m.now().UTC(), batchSize)
	if err != nil {
		return 0, err
	}

	released := 0
	var errs error
	for _, reservation := range expired {
		res := reservation
		err := m.tx.WithTx(ctx, func(tx *gorm.DB) error {
			current, txErr := m.repo.WithTx(tx).FindByCartItem(ctx, res.CartItemID)
			if txErr != nil {
				return txErr
			}
			// Raced with an explicit release or a re-reserve that
			// pushed the expiry forward.
			if current == nil || current.ExpiresAt.After(m.now().UTC()) {
				return nil
			}
			return m.Release(ctx, tx, res.CartItemID)
		})
		if err != nil {
			logCtx := m.logg.WithField(ctx, "cart_item_id", res.CartItemID.String())
			m.logg.Error(logCtx, "failed to release expired reservation", err)
			errs = multierr.Append(errs, err)
			continue
		}
		released++
	}
	return released, errs
}
