package models

// All returns every model in FK-safe creation order, for AutoMigrate in
// sqlite-backed dev and test environments.
func All() []any {
	return []any{
		&CategoryTier{},
		&Product{},
		&ProductVariant{},
		&InventoryRecord{},
		&StockAdjustment{},
		&StockReservation{},
		&Cart{},
		&CartItem{},
	}
}
