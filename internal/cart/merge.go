package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mosaicmart/backoffice/internal/reservations"
	"github.com/mosaicmart/backoffice/pkg/db/models"
	"github.com/mosaicmart/backoffice/pkg/enums"
	pkgerrors "github.com/mosaicmart/backoffice/pkg/errors"
	"github.com/mosaicmart/backoffice/pkg/logger"
)

// MergeResult reports the outcome of a guest-to-user cart merge.
// InProgress means another merge holds the lock for this pair and the
// caller should retry; it is an expected outcome, not an error.
type MergeResult struct {
	Cart          *models.Cart
	AlreadyMerged bool
	InProgress    bool
}

// Coordinator folds a guest session's cart into the user's cart at
// login. The whole merge runs in one transaction behind a cross-process
// lock; per-line stock shortfalls clamp quantities instead of failing
// the merge.
type Coordinator struct {
	tx           txRunner
	repo         *Repository
	carts        *Service
	catalog      catalog
	stock        stockReader
	reservations reservationManager
	locker       MergeLocker
	logg         *logger.Logger
	ttl          time.Duration
	now          func() time.Time
}

// CoordinatorParams configure the merge coordinator.
type CoordinatorParams struct {
	Tx             txRunner
	Repo           *Repository
	Carts          *Service
	Catalog        catalog
	Stock          stockReader
	Reservations   reservationManager
	Locker         MergeLocker
	Logger         *logger.Logger
	ReservationTTL time.Duration
}

// NewCoordinator builds a merge coordinator.
func NewCoordinator(params CoordinatorParams) (*Coordinator, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart service required")
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
	if params.Locker == nil {
		return nil, fmt.Errorf("merge locker required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	ttl := params.ReservationTTL
	if ttl <= 0 {
		ttl = reservations.DefaultTTL
	}
	return &Coordinator{
		tx:           params.Tx,
		repo:         params.Repo,
		carts:        params.Carts,
		catalog:      params.Catalog,
		stock:        params.Stock,
		reservations: params.Reservations,
		locker:       params.Locker,
		logg:         params.Logger,
		ttl:          ttl,
		now:          time.Now,
	}, nil
}

// Merge folds the session's guest cart into the user's cart. Safe to
// retry: a converted guest cart reports AlreadyMerged, a concurrent
// merge reports InProgress.
func (c *Coordinator) Merge(ctx context.Context, userID uuid.UUID, sessionID string) (*MergeResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	ctx = c.logg.WithUserID(ctx, userID.String())
	ctx = c.logg.WithSessionID(ctx, sessionID)

	release, acquired := c.locker.Acquire(ctx, userID, sessionID)
	if !acquired {
		c.logg.Info(ctx, "cart merge already in progress for this pair")
		existing, err := c.repo.FindActiveByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &MergeResult{Cart: existing, InProgress: true}, nil
	}
	defer release(ctx)

	result := &MergeResult{}
	err := c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := c.repo.WithTx(tx)

		userCart, err := repo.FindActiveByUser(ctx, userID)
		if err != nil {
			return err
		}
		if userCart == nil {
			userCart = &models.Cart{UserID: &userID, Status: enums.CartStatusActive}
			if err := repo.CreateCart(ctx, userCart); err != nil {
				return err
			}
		}
		result.Cart = userCart

		guest, err := repo.FindActiveBySession(ctx, sessionID)
		if err != nil {
			return err
		}
		if guest == nil {
			result.AlreadyMerged = true
			return nil
		}

		guestItems, err := repo.ListLiveItems(ctx, guest.ID)
		if err != nil {
			return err
		}
		for _, item := range guestItems {
			line := item
			if err := c.mergeLine(ctx, tx, userCart.ID, &line); err != nil {
				return err
			}
		}

		if err := c.carts.recomputeTotals(ctx, tx, userCart.ID); err != nil {
			return err
		}
		return repo.MarkConverted(ctx, guest.ID, c.now().UTC())
	})
	if err != nil {
		return nil, err
	}

	cart, err := c.carts.GetCart(ctx, result.Cart.ID)
	if err != nil {
		return nil, err
	}
	result.Cart = cart
	return result, nil
}

// mergeLine folds one guest line into the user cart: combine with a
// matching line or re-parent, clamping the quantity to what the ledger
// can still hold. A line that cannot be priced or has no inventory row
// is dropped rather than failing the merge.
func (c *Coordinator) mergeLine(ctx context.Context, tx *gorm.DB, userCartID uuid.UUID, item *models.CartItem) error {
	repo := c.repo.WithTx(tx)
	lineCtx := c.logg.WithProductID(ctx, item.ProductID.String())

	price, err := c.catalog.CurrentPrice(ctx, item.ProductID, item.VariantID)
	if err != nil {
		if pkgerrors.As(err) == nil {
			return err
		}
		c.logg.Warn(lineCtx, "dropping unsellable line during cart merge")
		return c.dropLine(ctx, tx, item.ID)
	}

	record, _, err := c.stock.LockAndReadAvailable(ctx, tx, item.ProductID, item.VariantID)
	if err != nil {
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
			return err
		}
		c.logg.Warn(lineCtx, "dropping line with no inventory record during cart merge")
		return c.dropLine(ctx, tx, item.ID)
	}

	match, err := repo.FindLiveItem(ctx, userCartID, item.ProductID, item.VariantID)
	if err != nil {
		return err
	}

	heldGuest, err := c.reservations.Held(ctx, tx, item.ID)
	if err != nil {
		return err
	}
	combined := item.Quantity
	held := heldGuest
	if match != nil {
		heldUser, err := c.reservations.Held(ctx, tx, match.ID)
		if err != nil {
			return err
		}
		combined += match.Quantity
		held += heldUser
	}
	capacity := holdCapacity(record, held)

	clamped := combined
	if clamped > capacity {
		clamped = capacity
		c.logg.Warn(c.logg.WithFields(lineCtx, map[string]any{
			"requested_qty": combined,
			"clamped_qty":   clamped,
		}), "clamping merged quantity to available stock")
	}

	target := match
	if target == nil {
		target = item
		target.CartID = userCartID
	} else {
		// The guest line folds into the user line and retires.
		if err := c.dropLine(ctx, tx, item.ID); err != nil {
			return err
		}
	}

	if clamped <= 0 {
		return c.dropLine(ctx, tx, target.ID)
	}

	target.Quantity = clamped
	target.UnitPriceCents = price.UnitPriceCents
	target.CompareAtUnitPriceCents = price.CompareAtUnitPriceCents
	target.LineSubtotalCents, target.LineTotalCents = lineAmounts(price, clamped)
	if err := repo.SaveItem(ctx, target); err != nil {
		return err
	}
	_, err = c.reservations.ReReserve(ctx, tx, reservations.ReserveInput{
		ProductID:  target.ProductID,
		VariantID:  target.VariantID,
		Quantity:   clamped,
		CartItemID: target.ID,
		TTL:        c.ttl,
	})
	return err
}

// dropLine releases a line's hold and soft-deletes it.
func (c *Coordinator) dropLine(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) error {
	if err := c.reservations.Release(ctx, tx, itemID); err != nil {
		return err
	}
	return c.repo.WithTx(tx).SoftDeleteItem(ctx, itemID)
}
