package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mosaicmart/backoffice/pkg/db/models"
	"github.com/mosaicmart/backoffice/pkg/enums"
	pkgerrors "github.com/mosaicmart/backoffice/pkg/errors"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	svc, err := NewService(NewRepository(newTestDB(t)))
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return svc
}

func TestNewService_RequiresRepository(t *testing.T) {
	if _, err := NewService(nil); err == nil {
		t.Fatalf("expected error for nil repository")
	}
}

func TestHistory_ValidatesInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.HistoryForRecord(ctx, uuid.Nil); pkgerrors.As(err) == nil {
		t.Fatalf("expected validation error for nil record id, got %v", err)
	}
	if _, err := svc.HistoryForProduct(ctx, uuid.Nil); pkgerrors.As(err) == nil {
		t.Fatalf("expected validation error for nil product id, got %v", err)
	}
	if _, err := svc.HistoryByType(ctx, enums.AdjustmentType("bogus"), 10); pkgerrors.As(err) == nil {
		t.Fatalf("expected validation error for invalid type, got %v", err)
	}
	if _, err := svc.HistoryByReference(ctx, "  "); pkgerrors.As(err) == nil {
		t.Fatalf("expected validation error for blank reference, got %v", err)
	}
}

func TestSummary_RejectsInvertedRange(t *testing.T) {
	svc := newTestService(t)
	now := time.Now().UTC()

	_, err := svc.Summary(context.Background(), now, now.Add(-time.Hour))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestAppendNote(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	entry := seedEntry(t, db, models.StockAdjustment{QuantityChange: 2})

	if err := svc.AppendNote(context.Background(), entry.ID, "recount confirmed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := repo.FindByID(context.Background(), entry.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Note == nil || *got.Note != "recount confirmed" {
		t.Fatalf("expected note persisted, got %v", got.Note)
	}

	err = svc.AppendNote(context.Background(), uuid.New(), "orphan")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND for missing entry, got %v", err)
	}
}
