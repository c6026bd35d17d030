package payments

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kiranahq/kirana-backend/pkg/db/models"
	"github.com/kiranahq/kirana-backend/pkg/enums"
)

func setupPaymentTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  shop_id TEXT NOT NULL,
  invoice_id TEXT,
  customer_id TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  mode TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'PENDING',
  reference TEXT,
  gateway_order_id TEXT,
  gateway_payment_id TEXT,
  failure_reason TEXT,
  completed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(ddl).Error)
	return db
}

func seedPayment(t *testing.T, db *gorm.DB, shopID, customerID uuid.UUID, gatewayOrderID string) *models.Payment {
	t.Helper()
	payment := &models.Payment{
		ID:             uuid.New(),
		ShopID:         shopID,
		CustomerID:     customerID,
		Amount:         decimal.NewFromInt(150),
		Mode:           enums.PaymentModeOnline,
		Status:         enums.PaymentStatusPending,
		GatewayOrderID: gatewayOrderID,
	}
	require.NoError(t, db.Create(payment).Error)
	return payment
}

func TestRepositoryFindByGatewayOrder(t *testing.T) {
	db := setupPaymentTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	shopID := uuid.New()
	seeded := seedPayment(t, db, shopID, uuid.New(), "order_abc")

	found, err := repo.FindByGatewayOrder(ctx, shopID, "order_abc")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, found.ID)

	_, err = repo.FindByGatewayOrder(ctx, uuid.New(), "order_abc")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound, "other shops cannot see the payment")
}

func TestRepositoryListByCustomer(t *testing.T) {
	db := setupPaymentTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	shopID := uuid.New()
	customerID := uuid.New()
	seedPayment(t, db, shopID, customerID, "order_1")
	seedPayment(t, db, shopID, customerID, "order_2")
	seedPayment(t, db, shopID, uuid.New(), "order_3")

	rows, err := repo.ListByCustomer(ctx, shopID, customerID, 10)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
