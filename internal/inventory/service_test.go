package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mosaicmart/backoffice/internal/ledger"
	"github.com/mosaicmart/backoffice/pkg/db/models"
	"github.com/mosaicmart/backoffice/pkg/enums"
	pkgerrors "github.com/mosaicmart/backoffice/pkg/errors"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	svc, err := NewService(gormTxRunner{db: db}, NewRepository(db), ledger.NewRepository(db))
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return svc, db
}

func TestNewService_RequiresDependencies(t *testing.T) {
	db := newTestDB(t)
	if _, err := NewService(nil, NewRepository(db), ledger.NewRepository(db)); err == nil {
		t.Fatalf("expected error for nil tx runner")
	}
	if _, err := NewService(gormTxRunner{db: db}, nil, ledger.NewRepository(db)); err == nil {
		t.Fatalf("expected error for nil repository")
	}
	if _, err := NewService(gormTxRunner{db: db}, NewRepository(db), nil); err == nil {
		t.Fatalf("expected error for nil adjustment repository")
	}
}

func TestLockAndReadAvailable_FloorsAtZero(t *testing.T) {
	svc, db := newTestService(t)
	seeded := seedRecord(t, db, 3, 5)

	err := db.Transaction(func(tx *gorm.DB) error {
		record, available, err := svc.LockAndReadAvailable(context.Background(), tx, seeded.ProductID, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if record.ID != seeded.ID {
			t.Fatalf("expected record %s, got %s", seeded.ID, record.ID)
		}
		if available != 0 {
			t.Fatalf("expected available floored at 0, got %d", available)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
}

func TestAdjust_IncreaseWritesLedgerEntry(t *testing.T) {
	svc, db := newTestService(t)
	seeded := seedRecord(t, db, 10, 0)
	actor := uuid.New()

	entry, err := svc.Adjust(context.Background(), AdjustInput{
		ProductID:      seeded.ProductID,
		Type:           enums.AdjustmentTypeIncrease,
		QuantityChange: 5,
		Reason:         "restock delivery",
		ActorUserID:    actor,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if entry.QuantityBefore != 10 || entry.QuantityAfter != 15 {
		t.Fatalf("unexpected before/after: %d/%d", entry.QuantityBefore, entry.QuantityAfter)
	}
	if entry.ActorUserID != actor {
		t.Fatalf("expected actor %s, got %s", actor, entry.ActorUserID)
	}

	var record models.InventoryRecord
	if err := db.First(&record, "id = ?", seeded.ID).Error; err != nil {
		t.Fatalf("failed to reload record: %v", err)
	}
	if record.AvailableQty != 15 {
		t.Fatalf("expected available 15, got %d", record.AvailableQty)
	}

	var count int64
	if err := db.Model(&models.StockAdjustment{}).Where("inventory_record_id = ?", seeded.ID).Count(&count).Error; err != nil {
		t.Fatalf("failed to count entries: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", count)
	}
}

func TestAdjust_RejectsNegativeAvailable(t *testing.T) {
	svc, db := newTestService(t)
	seeded := seedRecord(t, db, 3, 0)

	_, err := svc.Adjust(context.Background(), AdjustInput{
		ProductID:      seeded.ProductID,
		Type:           enums.AdjustmentTypeDecrease,
		QuantityChange: -5,
		Reason:         "shrinkage",
		ActorUserID:    uuid.New(),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}

	var record models.InventoryRecord
	if err := db.First(&record, "id = ?", seeded.ID).Error; err != nil {
		t.Fatalf("failed to reload record: %v", err)
	}
	if record.AvailableQty != 3 {
		t.Fatalf("expected counters untouched, got available=%d", record.AvailableQty)
	}
}

func TestAdjust_SignMustMatchType(t *testing.T) {
	svc, db := newTestService(t)
	seeded := seedRecord(t, db, 10, 0)

	cases := []struct {
		name   string
		typ    enums.AdjustmentType
		change int
	}{
		{"increase with negative change", enums.AdjustmentTypeIncrease, -1},
		{"decrease with positive change", enums.AdjustmentTypeDecrease, 1},
		{"write_off with positive change", enums.AdjustmentTypeWriteOff, 1},
		{"correction with zero change", enums.AdjustmentTypeCorrection, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Adjust(context.Background(), AdjustInput{
				ProductID:      seeded.ProductID,
				Type:           tc.typ,
				QuantityChange: tc.change,
				Reason:         "test",
				ActorUserID:    uuid.New(),
			})
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected VALIDATION_ERROR, got %v", err)
			}
		})
	}
}

func TestAdjustBatch_AllOrNothing(t *testing.T) {
	svc, db := newTestService(t)
	seeded := seedRecord(t, db, 10, 0)
	actor := uuid.New()

	_, err := svc.AdjustBatch(context.Background(), []AdjustInput{
		{
			ProductID:      seeded.ProductID,
			Type:           enums.AdjustmentTypeIncrease,
			QuantityChange: 5,
			Reason:         "restock",
			ActorUserID:    actor,
		},
		{
			ProductID:      seeded.ProductID,
			Type:           enums.AdjustmentTypeDecrease,
			QuantityChange: -100,
			Reason:         "impossible",
			ActorUserID:    actor,
		},
	})
	if err == nil {
		t.Fatalf("expected batch to fail")
	}

	var record models.InventoryRecord
	if err := db.First(&record, "id = ?", seeded.ID).Error; err != nil {
		t.Fatalf("failed to reload record: %v", err)
	}
	if record.AvailableQty != 10 {
		t.Fatalf("expected rollback to original 10, got %d", record.AvailableQty)
	}

	var count int64
	if err := db.Model(&models.StockAdjustment{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count entries: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no ledger entries after rollback, got %d", count)
	}
}

func TestDeductForFulfillment_ReleasesReservedHold(t *testing.T) {
	svc, db := newTestService(t)
	seeded := seedRecord(t, db, 10, 4)

	entry, err := svc.DeductForFulfillment(context.Background(), FulfillmentInput{
		ProductID:   seeded.ProductID,
		Quantity:    3,
		OrderRef:    "order-42",
		ActorUserID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Reference == nil || *entry.Reference != "order-42" {
		t.Fatalf("expected order reference on entry, got %v", entry.Reference)
	}

	var record models.InventoryRecord
	if err := db.First(&record, "id = ?", seeded.ID).Error; err != nil {
		t.Fatalf("failed to reload record: %v", err)
	}
	if record.AvailableQty != 7 || record.ReservedQty != 1 {
		t.Fatalf("unexpected counters: available=%d reserved=%d", record.AvailableQty, record.ReservedQty)
	}
}

func TestDeductForFulfillment_FloorsReservedAtZero(t *testing.T) {
	svc, db := newTestService(t)
	seeded := seedRecord(t, db, 10, 1)

	if _, err := svc.DeductForFulfillment(context.Background(), FulfillmentInput{
		ProductID:   seeded.ProductID,
		Quantity:    3,
		OrderRef:    "order-43",
		ActorUserID: uuid.New(),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var record models.InventoryRecord
	if err := db.First(&record, "id = ?", seeded.ID).Error; err != nil {
		t.Fatalf("failed to reload record: %v", err)
	}
	if record.AvailableQty != 7 || record.ReservedQty != 0 {
		t.Fatalf("unexpected counters: available=%d reserved=%d", record.AvailableQty, record.ReservedQty)
	}
}

func TestRestockFromCancellation(t *testing.T) {
	svc, db := newTestService(t)
	seeded := seedRecord(t, db, 2, 0)

	entry, err := svc.RestockFromCancellation(context.Background(), FulfillmentInput{
		ProductID:   seeded.ProductID,
		Quantity:    3,
		OrderRef:    "order-44",
		ActorUserID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Type != enums.AdjustmentTypeIncrease {
		t.Fatalf("expected increase entry, got %s", entry.Type)
	}

	var record models.InventoryRecord
	if err := db.First(&record, "id = ?", seeded.ID).Error; err != nil {
		t.Fatalf("failed to reload record: %v", err)
	}
	if record.AvailableQty != 5 {
		t.Fatalf("expected available 5, got %d", record.AvailableQty)
	}
}
