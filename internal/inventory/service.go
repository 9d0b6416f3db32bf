package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mosaicmart/backoffice/internal/ledger"
	"github.com/mosaicmart/backoffice/pkg/db/models"
	"github.com/mosaicmart/backoffice/pkg/enums"
	pkgerrors "github.com/mosaicmart/backoffice/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns every mutation of the inventory counters. Reservation and
// cart code reach the ledger exclusively through LockAndReadAvailable and
// ApplyDelta on a transaction they already hold; administrative and
// fulfillment changes go through Adjust, which writes the audit entry in
// the same transaction.
type Service struct {
	tx          txRunner
	repo        *Repository
	adjustments ledger.Repository
}

// NewService builds the inventory service.
func NewService(tx txRunner, repo *Repository, adjustments ledger.Repository) (*Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if adjustments == nil {
		return nil, fmt.Errorf("adjustment repository required")
	}
	return &Service{tx: tx, repo: repo, adjustments: adjustments}, nil
}

// LockAndReadAvailable locks the inventory row inside the caller's
// transaction and returns it together with the quantity that may still
// be promised to new reservations, floored at zero.
func (s *Service) LockAndReadAvailable(ctx context.Context, tx *gorm.DB, productID uuid.UUID, variantID *uuid.UUID) (*models.InventoryRecord, int, error) {
	if tx == nil {
		return nil, 0, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory lock")
	}
	record, err := s.repo.WithTx(tx).LockForUpdate(ctx, productID, variantID, nil)
	if err != nil {
		return nil, 0, err
	}
	available := record.AvailableQty - record.ReservedQty
	if available < 0 {
		available = 0
	}
	return record, available, nil
}

// ApplyDelta mutates the counters of a row locked in the caller's
// transaction. It is the single write primitive over the ledger.
func (s *Service) ApplyDelta(ctx context.Context, tx *gorm.DB, recordID uuid.UUID, deltaAvailable, deltaReserved int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory mutation")
	}
	return s.repo.WithTx(tx).ApplyDelta(ctx, recordID, deltaAvailable, deltaReserved)
}

// AdjustInput describes one deliberate change to available stock.
type AdjustInput struct {
	ProductID      uuid.UUID
	VariantID      *uuid.UUID
	LocationID     *uuid.UUID
	Type           enums.AdjustmentType
	QuantityChange int
	Reason         string
	Reference      *string
	ActorUserID    uuid.UUID
}

func (in AdjustInput) validate() error {
	if in.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if in.ActorUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "actor user id is required")
	}
	if in.Reason == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}
	if !in.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid adjustment type %q", in.Type))
	}
	switch in.Type {
	case enums.AdjustmentTypeIncrease:
		if in.QuantityChange <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "increase requires a positive quantity change")
		}
	case enums.AdjustmentTypeDecrease, enums.AdjustmentTypeWriteOff:
		if in.QuantityChange >= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "decrease and write_off require a negative quantity change")
		}
	case enums.AdjustmentTypeCorrection:
		if in.QuantityChange == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "correction requires a non-zero quantity change")
		}
	}
	return nil
}

// Adjust applies one change to available stock and writes its audit
// entry, atomically. The audit trail and the ledger commit or roll back
// together.
func (s *Service) Adjust(ctx context.Context, input AdjustInput) (*models.StockAdjustment, error) {
	var entry *models.StockAdjustment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		entry, txErr = s.adjustInTx(ctx, tx, input)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// AdjustBatch applies several changes in one transaction and writes their
// audit entries with a single batch insert, one entry per change.
func (s *Service) AdjustBatch(ctx context.Context, inputs []AdjustInput) ([]models.StockAdjustment, error) {
	if len(inputs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one adjustment is required")
	}
	var entries []models.StockAdjustment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		entries = make([]models.StockAdjustment, 0, len(inputs))
		for _, input := range inputs {
			if err := input.validate(); err != nil {
				return err
			}
			entry, err := s.applyAdjustment(ctx, tx, input)
			if err != nil {
				return err
			}
			entries = append(entries, *entry)
		}
		return s.adjustments.WithTx(tx).CreateBatch(ctx, entries)
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Service) adjustInTx(ctx context.Context, tx *gorm.DB, input AdjustInput) (*models.StockAdjustment, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	entry, err := s.applyAdjustment(ctx, tx, input)
	if err != nil {
		return nil, err
	}
	if err := s.adjustments.WithTx(tx).Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// applyAdjustment locks the row, shifts available_qty, and builds the
// before/after entry. The caller decides how entries get inserted.
func (s *Service) applyAdjustment(ctx context.Context, tx *gorm.DB, input AdjustInput) (*models.StockAdjustment, error) {
	repo := s.repo.WithTx(tx)
	record, err := repo.LockForUpdate(ctx, input.ProductID, input.VariantID, input.LocationID)
	if err != nil {
		return nil, err
	}

	after := record.AvailableQty + input.QuantityChange
	if after < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("adjustment would drive available stock below zero (current %d, change %d)", record.AvailableQty, input.QuantityChange))
	}
	if err := repo.ApplyDelta(ctx, record.ID, input.QuantityChange, 0); err != nil {
		return nil, err
	}

	return &models.StockAdjustment{
		InventoryRecordID: record.ID,
		ProductID:         input.ProductID,
		VariantID:         input.VariantID,
		Type:              input.Type,
		QuantityChange:    input.QuantityChange,
		QuantityBefore:    record.AvailableQty,
		QuantityAfter:     after,
		Reason:            input.Reason,
		Reference:         input.Reference,
		ActorUserID:       input.ActorUserID,
	}, nil
}

// FulfillmentInput ties a stock movement to a confirmed or canceled order.
type FulfillmentInput struct {
	ProductID   uuid.UUID
	VariantID   *uuid.UUID
	Quantity    int
	OrderRef    string
	ActorUserID uuid.UUID
}

// DeductForFulfillment removes sold stock when an order is confirmed.
// The quantity leaves available_qty and, because the sale consumed the
// cart's hold, reserved_qty drops by the same amount, floored at zero.
func (s *Service) DeductForFulfillment(ctx context.Context, input FulfillmentInput) (*models.StockAdjustment, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fulfillment quantity must be positive")
	}
	var entry *models.StockAdjustment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ref := input.OrderRef
		adjusted, txErr := s.adjustInTx(ctx, tx, AdjustInput{
			ProductID:      input.ProductID,
			VariantID:      input.VariantID,
			Type:           enums.AdjustmentTypeDecrease,
			QuantityChange: -input.Quantity,
			Reason:         "order fulfillment",
			Reference:      &ref,
			ActorUserID:    input.ActorUserID,
		})
		if txErr != nil {
			return txErr
		}
		entry = adjusted

		record, txErr := s.repo.WithTx(tx).LockForUpdate(ctx, input.ProductID, input.VariantID, nil)
		if txErr != nil {
			return txErr
		}
		releasable := input.Quantity
		if releasable > record.ReservedQty {
			releasable = record.ReservedQty
		}
		if releasable == 0 {
			return nil
		}
		return s.repo.WithTx(tx).ApplyDelta(ctx, record.ID, 0, -releasable)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// RestockFromCancellation returns stock when a confirmed order is canceled.
func (s *Service) RestockFromCancellation(ctx context.Context, input FulfillmentInput) (*models.StockAdjustment, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restock quantity must be positive")
	}
	ref := input.OrderRef
	return s.Adjust(ctx, AdjustInput{
		ProductID:      input.ProductID,
		VariantID:      input.VariantID,
		Type:           enums.AdjustmentTypeIncrease,
		QuantityChange: input.Quantity,
		Reason:         "order cancellation restock",
		Reference:      &ref,
		ActorUserID:    input.ActorUserID,
	})
}
