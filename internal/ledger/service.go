package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mosaicmart/backoffice/pkg/db/models"
	"github.com/mosaicmart/backoffice/pkg/enums"
	pkgerrors "github.com/mosaicmart/backoffice/pkg/errors"
)

// Service exposes the read side of the adjustment log plus the one
// permitted mutation, appending a note.
type Service interface {
	HistoryForRecord(ctx context.Context, recordID uuid.UUID) ([]models.StockAdjustment, error)
	HistoryForProduct(ctx context.Context, productID uuid.UUID) ([]models.StockAdjustment, error)
	HistoryByType(ctx context.Context, adjustmentType enums.AdjustmentType, limit int) ([]models.StockAdjustment, error)
	HistoryByReference(ctx context.Context, reference string) ([]models.StockAdjustment, error)
	Recent(ctx context.Context, limit int) ([]models.StockAdjustment, error)
	Summary(ctx context.Context, from, to time.Time) ([]TypeSummary, error)
	AppendNote(ctx context.Context, id uuid.UUID, note string) error
}

type service struct {
	repo Repository
}

// NewService wires an adjustment log service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("adjustment repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) HistoryForRecord(ctx context.Context, recordID uuid.UUID) ([]models.StockAdjustment, error) {
	if recordID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "inventory record id is required")
	}
	return s.repo.ListByInventoryRecord(ctx, recordID)
}

func (s *service) HistoryForProduct(ctx context.Context, productID uuid.UUID) ([]models.StockAdjustment, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	return s.repo.ListByProduct(ctx, productID)
}

func (s *service) HistoryByType(ctx context.Context, adjustmentType enums.AdjustmentType, limit int) ([]models.StockAdjustment, error) {
	if !adjustmentType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid adjustment type %q", adjustmentType))
	}
	return s.repo.ListByType(ctx, adjustmentType, limit)
}

func (s *service) HistoryByReference(ctx context.Context, reference string) ([]models.StockAdjustment, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}
	return s.repo.ListByReference(ctx, reference)
}

func (s *service) Recent(ctx context.Context, limit int) ([]models.StockAdjustment, error) {
	return s.repo.Recent(ctx, limit)
}

func (s *service) Summary(ctx context.Context, from, to time.Time) ([]TypeSummary, error) {
	if !to.After(from) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "summary range end must be after start")
	}
	return s.repo.Summarize(ctx, from, to)
}

func (s *service) AppendNote(ctx context.Context, id uuid.UUID, note string) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "adjustment id is required")
	}
	if strings.TrimSpace(note) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "note is required")
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "adjustment entry not found")
	}
	return s.repo.UpdateNote(ctx, id, note)
}
