package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailpoint/pos-gateway/internal/model"
)

func seedProduct(t *testing.T, db *testDB, e *ProductEntity) {
	t.Helper()
	require.NoError(t, db.Write(context.Background()).Create(e).Error)
}

func TestProductRepository_ReserveStock(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProductRepository(db.DB)
	ctx := context.Background()

	t.Run("successful reservation decrements stock", func(t *testing.T) {
		seedProduct(t, db, &ProductEntity{
			ID:      1,
			Barcode: "1234567890128",
			Name:    "Espresso Beans",
			Price:   decimal.RequireFromString("10.00"),
			Stock:   5,
		})

		snap, err := repo.ReserveStock(ctx, 1, 3)
		require.NoError(t, err)
		assert.Equal(t, int64(1), snap.ProductID)
		assert.Equal(t, "Espresso Beans", snap.Name)
		assert.Equal(t, "1234567890128", snap.Barcode)
		assert.True(t, snap.Price.Equal(decimal.RequireFromString("10.00")))

		p, err := repo.GetByID(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 2, p.Stock)
	})

	t.Run("exact stock drains to zero", func(t *testing.T) {
		seedProduct(t, db, &ProductEntity{
			ID:      2,
			Barcode: "2000000000008",
			Name:    "Filter Paper",
			Price:   decimal.RequireFromString("2.50"),
			Stock:   4,
		})

		_, err := repo.ReserveStock(ctx, 2, 4)
		require.NoError(t, err)

		p, err := repo.GetByID(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, 0, p.Stock)

		// Nothing left to take
		_, err = repo.ReserveStock(ctx, 2, 1)
		assert.ErrorIs(t, err, ErrInsufficientStock)
	})

	t.Run("insufficient stock reports the shortfall", func(t *testing.T) {
		seedProduct(t, db, &ProductEntity{
			ID:      3,
			Barcode: "3000000000007",
			Name:    "Oat Milk",
			Price:   decimal.RequireFromString("3.75"),
			Stock:   5,
		})

		_, err := repo.ReserveStock(ctx, 3, 6)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInsufficientStock)

		var stockErr *InsufficientStockError
		require.True(t, errors.As(err, &stockErr))
		assert.Equal(t, int64(3), stockErr.ProductID)
		assert.Equal(t, "Oat Milk", stockErr.Name)
		assert.Equal(t, 5, stockErr.Available)
		assert.Equal(t, 6, stockErr.Requested)
		assert.Contains(t, stockErr.Error(), "Available: 5, Requested: 6")

		// Failed reservation leaves stock untouched
		p, err := repo.GetByID(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, 5, p.Stock)
	})

	t.Run("unknown product", func(t *testing.T) {
		_, err := repo.ReserveStock(ctx, 999, 1)
		assert.ErrorIs(t, err, ErrProductNotFound)
	})

	t.Run("rolls back with the surrounding unit of work", func(t *testing.T) {
		seedProduct(t, db, &ProductEntity{
			ID:      4,
			Barcode: "4000000000006",
			Name:    "Ceramic Mug",
			Price:   decimal.RequireFromString("8.00"),
			Stock:   10,
		})

		sentinel := errors.New("later step failed")
		err := db.WithinTransaction(ctx, func(txCtx context.Context) error {
			if _, err := repo.ReserveStock(txCtx, 4, 7); err != nil {
				return err
			}
			return sentinel
		})
		assert.ErrorIs(t, err, sentinel)

		p, err := repo.GetByID(ctx, 4)
		require.NoError(t, err)
		assert.Equal(t, 10, p.Stock)
	})
}

func TestProductRepository_CRUD(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProductRepository(db.DB)
	ctx := context.Background()

	t.Run("create and read back", func(t *testing.T) {
		p, err := repo.Create(ctx, &model.Product{
			Barcode: "5000000000005",
			Name:    "Drip Kettle",
			Price:   decimal.RequireFromString("45.00"),
			Stock:   3,
		})
		require.NoError(t, err)
		assert.NotZero(t, p.ID)

		got, err := repo.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "Drip Kettle", got.Name)
		assert.Equal(t, 3, got.Stock)
	})

	t.Run("get by barcode", func(t *testing.T) {
		got, err := repo.GetByBarcode(ctx, "5000000000005")
		require.NoError(t, err)
		assert.Equal(t, "Drip Kettle", got.Name)

		_, err = repo.GetByBarcode(ctx, "0000000000000")
		assert.ErrorIs(t, err, ErrProductNotFound)
	})

	t.Run("update", func(t *testing.T) {
		p, err := repo.GetByBarcode(ctx, "5000000000005")
		require.NoError(t, err)

		p.Name = "Gooseneck Kettle"
		p.Price = decimal.RequireFromString("49.00")
		p.Stock = 6

		updated, err := repo.Update(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, "Gooseneck Kettle", updated.Name)
		assert.Equal(t, 6, updated.Stock)
	})

	t.Run("update unknown product", func(t *testing.T) {
		_, err := repo.Update(ctx, &model.Product{
			ID:      999,
			Barcode: "9999999999990",
			Name:    "Ghost",
			Price:   decimal.RequireFromString("1.00"),
		})
		assert.ErrorIs(t, err, ErrProductNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		p, err := repo.Create(ctx, &model.Product{
			Barcode: "6000000000004",
			Name:    "Sticker",
			Price:   decimal.RequireFromString("0.50"),
			Stock:   100,
		})
		require.NoError(t, err)

		require.NoError(t, repo.Delete(ctx, p.ID))

		_, err = repo.GetByID(ctx, p.ID)
		assert.ErrorIs(t, err, ErrProductNotFound)
	})

	t.Run("delete refuses products with sale history", func(t *testing.T) {
		p, err := repo.Create(ctx, &model.Product{
			Barcode: "7000000000003",
			Name:    "Grinder",
			Price:   decimal.RequireFromString("120.00"),
			Stock:   2,
		})
		require.NoError(t, err)

		txnRepo := NewTransactionRepository(db.DB)
		_, err = txnRepo.Create(ctx, &model.Transaction{
			TotalAmount: decimal.RequireFromString("120.00"),
			Items: []model.TransactionItem{
				{ProductID: p.ID, Quantity: 1, PriceAtSale: decimal.RequireFromString("120.00")},
			},
		})
		require.NoError(t, err)

		err = repo.Delete(ctx, p.ID)
		assert.ErrorIs(t, err, ErrProductReferenced)

		// Still there
		_, err = repo.GetByID(ctx, p.ID)
		assert.NoError(t, err)
	})
}

func TestProductRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProductRepository(db.DB)
	ctx := context.Background()

	seedProduct(t, db, &ProductEntity{ID: 1, Barcode: "a-1", Name: "Beans", Price: decimal.RequireFromString("10.00"), Stock: 0})
	seedProduct(t, db, &ProductEntity{ID: 2, Barcode: "a-2", Name: "Milk", Price: decimal.RequireFromString("3.00"), Stock: 4})
	seedProduct(t, db, &ProductEntity{ID: 3, Barcode: "a-3", Name: "Cups", Price: decimal.RequireFromString("5.00"), Stock: 50})

	t.Run("default sort is name ascending", func(t *testing.T) {
		items, err := repo.List(ctx, model.ProductFilter{})
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, "Beans", items[0].Name)
		assert.Equal(t, "Cups", items[1].Name)
		assert.Equal(t, "Milk", items[2].Name)
	})

	t.Run("zero stock filter", func(t *testing.T) {
		items, err := repo.List(ctx, model.ProductFilter{StockLevel: model.StockLevelZero})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "Beans", items[0].Name)
	})

	t.Run("low stock filter uses default threshold", func(t *testing.T) {
		items, err := repo.List(ctx, model.ProductFilter{StockLevel: model.StockLevelLow})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "Milk", items[0].Name)
	})

	t.Run("low stock filter honors explicit threshold", func(t *testing.T) {
		items, err := repo.List(ctx, model.ProductFilter{StockLevel: model.StockLevelLow, Threshold: 100})
		require.NoError(t, err)
		assert.Len(t, items, 2)
	})

	t.Run("sort by price descending", func(t *testing.T) {
		items, err := repo.List(ctx, model.ProductFilter{SortBy: "price", Desc: true})
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, "Beans", items[0].Name)
	})

	t.Run("unknown sort key falls back to default", func(t *testing.T) {
		items, err := repo.List(ctx, model.ProductFilter{SortBy: "stock; DROP TABLE products"})
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, "Beans", items[0].Name)
	})
}

// reserveFailureReason is the branch taken when the read saw enough stock but
// the conditional update matched no row: a writer drained the stock in
// between. Exercised directly since the in-memory driver serializes writers
// and the window never opens through ReserveStock alone.
func TestProductRepository_ReserveFailureReason(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProductRepository(db.DB)
	ctx := context.Background()

	seedProduct(t, db, &ProductEntity{
		ID:      1,
		Barcode: "1234567890128",
		Name:    "Espresso Beans",
		Price:   decimal.RequireFromString("10.00"),
		Stock:   0,
	})

	t.Run("drained stock reports the shortfall", func(t *testing.T) {
		err := repo.reserveFailureReason(ctx, 1, 3)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInsufficientStock)

		var stockErr *InsufficientStockError
		require.True(t, errors.As(err, &stockErr))
		assert.Equal(t, int64(1), stockErr.ProductID)
		assert.Equal(t, "Espresso Beans", stockErr.Name)
		assert.Equal(t, 0, stockErr.Available)
		assert.Equal(t, 3, stockErr.Requested)
	})

	t.Run("product deleted under the reservation", func(t *testing.T) {
		err := repo.reserveFailureReason(ctx, 999, 1)
		assert.ErrorIs(t, err, ErrProductNotFound)
	})
}

func TestProductRepository_ConcurrentReservations(t *testing.T) {
	t.Skip("Skipping concurrent test - SQLite doesn't handle concurrent writes reliably in tests. Use PostgreSQL for concurrent testing.")

	db := setupTestDB(t)
	repo := NewProductRepository(db.DB)
	ctx := context.Background()

	seedProduct(t, db, &ProductEntity{
		ID:      1,
		Barcode: "1234567890128",
		Name:    "Espresso Beans",
		Price:   decimal.RequireFromString("10.00"),
		Stock:   5,
	})

	concurrency := 10
	var wg sync.WaitGroup
	var successCount atomic.Int32

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.ReserveStock(ctx, 1, 1); err == nil {
				successCount.Add(1)
			}
		}()
	}

	wg.Wait()

	// Only as many reservations as there were units may win; the rest must
	// come back with the stock error, and the final count must be exact.
	assert.Equal(t, int32(5), successCount.Load())

	p, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)
}
