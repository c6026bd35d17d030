package products

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kiranahq/kirana-backend/pkg/db/models"
	"github.com/kiranahq/kirana-backend/pkg/pagination"
)

func setupProductTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  shop_id TEXT NOT NULL,
  name TEXT NOT NULL,
  unit TEXT NOT NULL DEFAULT 'pcs',
  price NUMERIC NOT NULL,
  stock_qty INTEGER NOT NULL DEFAULT 0,
  categories TEXT,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(ddl).Error)
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, shopID uuid.UUID, name string, stock int, createdAt time.Time) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:        uuid.New(),
		ShopID:    shopID,
		Name:      name,
		Unit:      "pcs",
		Price:     decimal.NewFromInt(50),
		StockQty:  stock,
		Active:    true,
		CreatedAt: createdAt,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func TestRepositoryListPaginatesWithCursor(t *testing.T) {
	db := setupProductTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	shopID := uuid.New()
	base := time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedProduct(t, db, shopID, "Item", 10, base.Add(time.Duration(i)*time.Minute))
	}
	seedProduct(t, db, uuid.New(), "Other", 10, base)

	first, err := repo.List(ctx, shopID, ListQuery{Pagination: pagination.Params{Limit: 3}})
	require.NoError(t, err)
	assert.Len(t, first.Products, 3)
	require.NotEmpty(t, first.NextCursor)

	second, err := repo.List(ctx, shopID, ListQuery{
		Pagination: pagination.Params{Limit: 3, Cursor: first.NextCursor},
	})
	require.NoError(t, err)
	assert.Len(t, second.Products, 2)
	assert.Empty(t, second.NextCursor)

	seen := map[uuid.UUID]bool{}
	for _, p := range append(first.Products, second.Products...) {
		assert.False(t, seen[p.ID], "no duplicates across pages")
		seen[p.ID] = true
	}
}

func TestRepositoryListFilters(t *testing.T) {
	db := setupProductTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	shopID := uuid.New()
	base := time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)
	milk := seedProduct(t, db, shopID, "Toned Milk", 10, base)
	rice := seedProduct(t, db, shopID, "Basmati Rice", 10, base.Add(time.Minute))
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", rice.ID).Update("active", false).Error)

	active, err := repo.List(ctx, shopID, ListQuery{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active.Products, 1)
	assert.Equal(t, milk.ID, active.Products[0].ID)

	named, err := repo.List(ctx, shopID, ListQuery{Search: "Rice"})
	require.NoError(t, err)
	require.Len(t, named.Products, 1)
	assert.Equal(t, rice.ID, named.Products[0].ID)
}

func TestRepositoryAdjustStockIsGuarded(t *testing.T) {
	db := setupProductTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	product := seedProduct(t, db, uuid.New(), "Milk", 5, time.Now().UTC())

	ok, err := repo.AdjustStock(ctx, product.ID, -5)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.AdjustStock(ctx, product.ID, -1)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.AdjustStock(ctx, product.ID, 7)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.FindByID(ctx, product.ShopID, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.StockQty)
}
