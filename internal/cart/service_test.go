package cart

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mosaicmart/backoffice/internal/inventory"
	"github.com/mosaicmart/backoffice/internal/ledger"
	"github.com/mosaicmart/backoffice/internal/products"
	"github.com/mosaicmart/backoffice/internal/reservations"
	"github.com/mosaicmart/backoffice/pkg/db/models"
	"github.com/mosaicmart/backoffice/pkg/enums"
	pkgerrors "github.com/mosaicmart/backoffice/pkg/errors"
	"github.com/mosaicmart/backoffice/pkg/logger"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// serialTxRunner serializes whole transactions. sqlite has no
// SELECT FOR UPDATE, so the mutex stands in for the row lock that makes
// competing cart mutations take turns in production.
type serialTxRunner struct {
	mu sync.Mutex
	db *gorm.DB
}

func (r *serialTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.db.WithContext(ctx).Transaction(fn)
}

type testTxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type testEnv struct {
	db    *gorm.DB
	svc   *Service
	coord *Coordinator
	repo  *Repository
}

func openCartDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:cart_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Product{},
		&models.ProductVariant{},
		&models.CategoryTier{},
		&models.InventoryRecord{},
		&models.StockAdjustment{},
		&models.StockReservation{},
		&models.Cart{},
		&models.CartItem{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newTestEnv(t *testing.T, locker MergeLocker) *testEnv {
	t.Helper()
	db := openCartDB(t)
	return buildTestEnv(t, db, gormTxRunner{db: db}, locker)
}

func buildTestEnv(t *testing.T, db *gorm.DB, runner testTxRunner, locker MergeLocker) *testEnv {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	catalogSvc, err := products.NewService(runner, products.NewRepository(db))
	if err != nil {
		t.Fatalf("failed to build catalog: %v", err)
	}
	inventorySvc, err := inventory.NewService(runner, inventory.NewRepository(db), ledger.NewRepository(db))
	if err != nil {
		t.Fatalf("failed to build inventory: %v", err)
	}
	manager, err := reservations.NewManager(runner, reservations.NewRepository(db), inventorySvc, logg)
	if err != nil {
		t.Fatalf("failed to build reservation manager: %v", err)
	}

	repo := NewRepository(db)
	svc, err := NewService(ServiceParams{
		Tx:           runner,
		Repo:         repo,
		Catalog:      catalogSvc,
		Stock:        inventorySvc,
		Reservations: manager,
	})
	if err != nil {
		t.Fatalf("failed to build cart service: %v", err)
	}

	if locker == nil {
		locker = NoopMergeLock{}
	}
	coord, err := NewCoordinator(CoordinatorParams{
		Tx:           runner,
		Repo:         repo,
		Carts:        svc,
		Catalog:      catalogSvc,
		Stock:        inventorySvc,
		Reservations: manager,
		Locker:       locker,
		Logger:       logg,
	})
	if err != nil {
		t.Fatalf("failed to build coordinator: %v", err)
	}

	return &testEnv{db: db, svc: svc, coord: coord, repo: repo}
}

// seedSellable creates an active product with a variant-free inventory row.
func seedSellable(t *testing.T, db *gorm.DB, priceCents, available int) *models.Product {
	t.Helper()
	product := &models.Product{Name: "widget", Status: enums.ProductStatusActive, PriceCents: priceCents}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("failed to seed product: %v", err)
	}
	record := &models.InventoryRecord{ProductID: product.ID, AvailableQty: available}
	if err := db.Create(record).Error; err != nil {
		t.Fatalf("failed to seed inventory: %v", err)
	}
	return product
}

func newUserCart(t *testing.T, env *testEnv) *models.Cart {
	t.Helper()
	userID := uuid.New()
	cart, err := env.svc.ActiveCartForUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("failed to create user cart: %v", err)
	}
	return cart
}

func newSessionCart(t *testing.T, env *testEnv, sessionID string) *models.Cart {
	t.Helper()
	cart, err := env.svc.ActiveCartForSession(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("failed to create session cart: %v", err)
	}
	return cart
}

func reservedQty(t *testing.T, db *gorm.DB, productID uuid.UUID) int {
	t.Helper()
	var record models.InventoryRecord
	if err := db.First(&record, "product_id = ?", productID).Error; err != nil {
		t.Fatalf("failed to load inventory record: %v", err)
	}
	return record.ReservedQty
}

func TestAddItem_NewLineReservesStock(t *testing.T) {
	env := newTestEnv(t, nil)
	product := seedSellable(t, env.db, 1000, 5)
	cart := newUserCart(t, env)

	got, err := env.svc.AddItem(context.Background(), AddItemInput{
		CartID:    cart.ID,
		ProductID: product.ID,
		Quantity:  3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got.Items) != 1 || got.Items[0].Quantity != 3 {
		t.Fatalf("expected one line with quantity 3, got %+v", got.Items)
	}
	if got.Items[0].UnitPriceCents != 1000 {
		t.Fatalf("expected price snapshot 1000, got %d", got.Items[0].UnitPriceCents)
	}
	if got.SubtotalCents != 3000 || got.TotalCents != 3000 {
		t.Fatalf("unexpected totals: subtotal=%d total=%d", got.SubtotalCents, got.TotalCents)
	}
	if reserved := reservedQty(t, env.db, product.ID); reserved != 3 {
		t.Fatalf("expected reserved 3, got %d", reserved)
	}
}

func TestAddItem_InsufficientStockSurfacesAvailable(t *testing.T) {
	env := newTestEnv(t, nil)
	product := seedSellable(t, env.db, 1000, 5)
	cart := newUserCart(t, env)

	_, err := env.svc.AddItem(context.Background(), AddItemInput{
		CartID:    cart.ID,
		ProductID: product.ID,
		Quantity:  6,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected INSUFFICIENT_STOCK, got %v", err)
	}
	details, ok := typed.Details().(pkgerrors.InsufficientStockDetails)
	if !ok {
		t.Fatalf("expected stock details, got %T", typed.Details())
	}
	if details.AvailableQty != 5 || details.RequestedQty != 6 {
		t.Fatalf("unexpected details: %+v", details)
	}
	if reserved := reservedQty(t, env.db, product.ID); reserved != 0 {
		t.Fatalf("expected no reservation after rejection, got %d", reserved)
	}
}

func TestAddItem_ConcurrentAddsOnlyOneWins(t *testing.T) {
	db := openCartDB(t)
	// One pooled connection keeps the goroutines' reads from tripping
	// sqlite's shared-cache table locks while the other writes.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access pool: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	env := buildTestEnv(t, db, &serialTxRunner{db: db}, nil)
	product := seedSellable(t, env.db, 1000, 5)
	cartA := newUserCart(t, env)
	cartB := newUserCart(t, env)

	start := make(chan struct{})
	results := make(chan error, 2)
	var wg sync.WaitGroup
	for _, cartID := range []uuid.UUID{cartA.ID, cartB.ID} {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			<-start
			_, err := env.svc.AddItem(context.Background(), AddItemInput{
				CartID:    id,
				ProductID: product.ID,
				Quantity:  3,
			})
			results <- err
		}(cartID)
	}
	close(start)
	wg.Wait()
	close(results)

	var rejected []error
	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		rejected = append(rejected, err)
	}
	if wins != 1 || len(rejected) != 1 {
		t.Fatalf("expected exactly one add to win, got wins=%d rejections=%v", wins, rejected)
	}

	typed := pkgerrors.As(rejected[0])
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected INSUFFICIENT_STOCK for the loser, got %v", rejected[0])
	}
	details, ok := typed.Details().(pkgerrors.InsufficientStockDetails)
	if !ok {
		t.Fatalf("expected stock details, got %T", typed.Details())
	}
	if details.AvailableQty != 2 || details.RequestedQty != 3 {
		t.Fatalf("loser should see the winner's hold: %+v", details)
	}
	if reserved := reservedQty(t, env.db, product.ID); reserved != 3 {
		t.Fatalf("expected reserved 3 after the race, got %d", reserved)
	}
}

func TestAddItem_SameTupleIncrementsInPlace(t *testing.T) {
	env := newTestEnv(t, nil)
	product := seedSellable(t, env.db, 1000, 10)
	cart := newUserCart(t, env)

	for i := 0; i < 2; i++ {
		if _, err := env.svc.AddItem(context.Background(), AddItemInput{
			CartID:    cart.ID,
			ProductID: product.ID,
			Quantity:  2,
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got, err := env.svc.GetCart(context.Background(), cart.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Items) != 1 || got.Items[0].Quantity != 4 {
		t.Fatalf("expected single line with quantity 4, got %+v", got.Items)
	}
	if reserved := reservedQty(t, env.db, product.ID); reserved != 4 {
		t.Fatalf("expected reserved 4, got %d", reserved)
	}
}

func TestAddItem_ChecksTotalQuantityNotIncrement(t *testing.T) {
	env := newTestEnv(t, nil)
	product := seedSellable(t, env.db, 1000, 5)
	cart := newUserCart(t, env)

	if _, err := env.svc.AddItem(context.Background(), AddItemInput{
		CartID:    cart.ID,
		ProductID: product.ID,
		Quantity:  3,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 3 held + 3 more = 6 > 5 owned; the line's own hold must count
	// toward capacity, so the limit is 5, not 2.
	_, err := env.svc.AddItem(context.Background(), AddItemInput{
		CartID:    cart.ID,
		ProductID: product.ID,
		Quantity:  3,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected INSUFFICIENT_STOCK, got %v", err)
	}
	details := typed.Details().(pkgerrors.InsufficientStockDetails)
	if details.AvailableQty != 5 || details.RequestedQty != 6 {
		t.Fatalf("unexpected details: %+v", details)
	}

	// 2 more fits exactly.
	got, err := env.svc.AddItem(context.Background(), AddItemInput{
		CartID:    cart.ID,
		ProductID: product.ID,
		Quantity:  2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Items[0].Quantity != 5 {
		t.Fatalf("expected quantity 5, got %d", got.Items[0].Quantity)
	}
}

func TestAddItem_InvalidVariant(t *testing.T) {
	env := newTestEnv(t, nil)
	product := seedSellable(t, env.db, 1000, 5)
	cart := newUserCart(t, env)

	other := seedSellable(t, env.db, 900, 5)
	foreign := models.ProductVariant{ProductID: other.ID, SKU: "X-1", Active: true}
	if err := env.db.Create(&foreign).Error; err != nil {
		t.Fatalf("failed to seed variant: %v", err)
	}

	_, err := env.svc.AddItem(context.Background(), AddItemInput{
		CartID:    cart.ID,
		ProductID: product.ID,
		VariantID: &foreign.ID,
		Quantity:  1,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInvalidVariant {
		t.Fatalf("expected INVALID_VARIANT, got %v", err)
	}
}

func TestAddItem_MissingInventoryRowIsNotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	cart := newUserCart(t, env)

	product := &models.Product{Name: "no-stock", Status: enums.ProductStatusActive, PriceCents: 100}
	if err := env.db.Create(product).Error; err != nil {
		t.Fatalf("failed to seed product: %v", err)
	}

	_, err := env.svc.AddItem(context.Background(), AddItemInput{
		CartID:    cart.ID,
		ProductID: product.ID,
		Quantity:  1,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND for absent inventory row, got %v", err)
	}
}

func TestUpdateItemQuantity_DecreaseAlwaysLegal(t *testing.T) {
	env := newTestEnv(t, nil)
	product := seedSellable(t, env.db, 1000, 5)
	cart := newUserCart(t, env)

	added, err := env.svc.AddItem(context.Background(), AddItemInput{
		CartID:    cart.ID,
		ProductID: product.ID,
		Quantity:  5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := env.svc.UpdateItemQuantity(context.Background(), cart.ID, added.Items[0].ID, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Items[0].Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", got.Items[0].Quantity)
	}
	if reserved := reservedQty(t, env.db, product.ID); reserved != 2 {
		t.Fatalf("expected reserved 2, got %d", reserved)
	}
}

func TestUpdateItemQuantity_DecreaseLegalAfterCounterDrift(t *testing.T) {
	env := newTestEnv(t, nil)
	product := seedSellable(t, env.db, 1000, 5)
	cart := newUserCart(t, env)

	added, err := env.svc.AddItem(context.Background(), AddItemInput{
		CartID:    cart.ID,
		ProductID: product.ID,
		Quantity:  5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// An out-of-band write-off while the hold is live leaves
	// available_qty below reserved_qty.
	if err := env.db.Exec(
		"UPDATE inventory_records SET available_qty = 0 WHERE product_id = ?", product.ID,
	).Error; err != nil {
		t.Fatalf("failed to drift counters: %v", err)
	}

	got, err := env.svc.UpdateItemQuantity(context.Background(), cart.ID, added.Items[0].ID, 2)
	if err != nil {
		t.Fatalf("decrease must not be blocked by drifted counters: %v", err)
	}
	if got.Items[0].Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", got.Items[0].Quantity)
	}
	if reserved := reservedQty(t, env.db, product.ID); reserved != 2 {
		t.Fatalf("expected reserved 2 after re-reserve, got %d", reserved)
	}

	// The drifted record still refuses increases.
	_, err = env.svc.UpdateItemQuantity(context.Background(), cart.ID, added.Items[0].ID, 4)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected INSUFFICIENT_STOCK on increase, got %v", err)
	}
}

func TestUpdateItemQuantity_IncreaseChecked(t *testing.T) {
	env := newTestEnv(t, nil)
	product := seedSellable(t, env.db, 1000, 5)
	cart := newUserCart(t, env)

	added, err := env.svc.AddItem(context.Background(), AddItemInput{
		CartID:    cart.ID,
		ProductID: product.ID,
		Quantity:  3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = env.svc.UpdateItemQuantity(context.Background(), cart.ID, added.Items[0].ID, 6)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected INSUFFICIENT_STOCK, got %v", err)
	}

	if _, err := env.svc.UpdateItemQuantity(context.Background(), cart.ID, added.Items[0].ID, 5); err != nil {
		t.Fatalf("increase to exactly owned stock should pass: %v", err)
	}
}

func TestUpdateItemQuantity_MissingItemIsNotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	cart := newUserCart(t, env)

	_, err := env.svc.UpdateItemQuantity(context.Background(), cart.ID, uuid.New(), 1)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestRemoveItem_IdempotentAndReleasesHold(t *testing.T) {
	env := newTestEnv(t, nil)
	product := seedSellable(t, env.db, 1000, 5)
	cart := newUserCart(t, env)

	added, err := env.svc.AddItem(context.Background(), AddItemInput{
		CartID:    cart.ID,
		ProductID: product.ID,
		Quantity:  3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	itemID := added.Items[0].ID

	got, err := env.svc.RemoveItem(context.Background(), cart.ID, itemID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Items) != 0 {
		t.Fatalf("expected empty cart, got %d items", len(got.Items))
	}
	if got.TotalCents != 0 {
		t.Fatalf("expected totals reset, got %d", got.TotalCents)
	}
	if reserved := reservedQty(t, env.db, product.ID); reserved != 0 {
		t.Fatalf("expected hold released, got reserved=%d", reserved)
	}

	// Second removal is a no-op.
	if _, err := env.svc.RemoveItem(context.Background(), cart.ID, itemID); err != nil {
		t.Fatalf("expected idempotent removal, got %v", err)
	}
}

func TestTotals_DiscountFromCompareAtPrice(t *testing.T) {
	env := newTestEnv(t, nil)
	compareAt := 1500
	product := &models.Product{
		Name:                "discounted",
		Status:              enums.ProductStatusActive,
		PriceCents:          1000,
		CompareAtPriceCents: &compareAt,
	}
	if err := env.db.Create(product).Error; err != nil {
		t.Fatalf("failed to seed product: %v", err)
	}
	if err := env.db.Create(&models.InventoryRecord{ProductID: product.ID, AvailableQty: 5}).Error; err != nil {
		t.Fatalf("failed to seed inventory: %v", err)
	}
	cart := newUserCart(t, env)

	got, err := env.svc.AddItem(context.Background(), AddItemInput{
		CartID:    cart.ID,
		ProductID: product.ID,
		Quantity:  2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SubtotalCents != 3000 || got.TotalCents != 2000 || got.DiscountCents != 1000 {
		t.Fatalf("unexpected totals: subtotal=%d discount=%d total=%d",
			got.SubtotalCents, got.DiscountCents, got.TotalCents)
	}
}
