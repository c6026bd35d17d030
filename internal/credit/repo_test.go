package credit

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
	"github.com/kiranahq/kirana-backend/pkg/enums"
)

func setupCreditTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	accounts := `
CREATE TABLE IF NOT EXISTS credit_accounts (
  id TEXT PRIMARY KEY,
  shop_id TEXT NOT NULL,
  customer_id TEXT NOT NULL,
  credit_limit NUMERIC NOT NULL,
  current_balance NUMERIC NOT NULL DEFAULT 0,
  available_credit NUMERIC NOT NULL DEFAULT 0,
  credit_score INTEGER NOT NULL DEFAULT 100,
  active INTEGER NOT NULL DEFAULT 1,
  due_date DATETIME,
  last_payment_date DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	transactions := `
CREATE TABLE IF NOT EXISTS credit_transactions (
  id TEXT PRIMARY KEY,
  account_id TEXT NOT NULL,
  type TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  balance_after NUMERIC NOT NULL,
  description TEXT,
  reference TEXT,
  metadata TEXT,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(accounts).Error)
	require.NoError(t, db.Exec(transactions).Error)
	return db
}

func seedAccount(t *testing.T, db *gorm.DB, shopID uuid.UUID, due *time.Time, balance int64) *models.CreditAccount {
	t.Helper()
	account := &models.CreditAccount{
		ID:              uuid.New(),
		ShopID:          shopID,
		CustomerID:      uuid.New(),
		CreditLimit:     decimal.NewFromInt(1000),
		CurrentBalance:  decimal.NewFromInt(balance),
		AvailableCredit: decimal.NewFromInt(1000 - balance),
		CreditScore:     80,
		Active:          true,
		DueDate:         due,
	}
	require.NoError(t, db.Create(account).Error)
	return account
}

func TestRepositoryAccountLookups(t *testing.T) {
	db := setupCreditTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	shopID := uuid.New()
	account := seedAccount(t, db, shopID, nil, 200)

	found, err := repo.FindAccountByID(ctx, shopID, account.ID)
	require.NoError(t, err)
	assert.Equal(t, account.CustomerID, found.CustomerID)

	found, err = repo.FindAccountByCustomer(ctx, shopID, account.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, account.ID, found.ID)

	// other shops cannot see the account
	_, err = repo.FindAccountByID(ctx, uuid.New(), account.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryListTransactionsNewestFirst(t *testing.T) {
	db := setupCreditTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	account := seedAccount(t, db, uuid.New(), nil, 0)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		entry := &models.CreditTransaction{
			ID:           uuid.New(),
			AccountID:    account.ID,
			Type:         enums.CreditTransactionTypeCredit,
			Amount:       decimal.NewFromInt(int64(100 * (i + 1))),
			BalanceAfter: decimal.NewFromInt(int64(100 * (i + 1))),
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.InsertTransaction(ctx, entry))
	}

	rows, err := repo.ListTransactions(ctx, account.ID, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Amount.Equal(decimal.NewFromInt(300)))
	assert.True(t, rows[1].Amount.Equal(decimal.NewFromInt(200)))
}

func TestRepositoryListAccountsDueBefore(t *testing.T) {
	db := setupCreditTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	shopID := uuid.New()
	overdue := time.Now().Add(-24 * time.Hour)
	future := time.Now().Add(7 * 24 * time.Hour)

	due := seedAccount(t, db, shopID, &overdue, 500)
	seedAccount(t, db, shopID, &future, 500)
	seedAccount(t, db, shopID, &overdue, 0) // nothing owed

	rows, err := repo.ListAccountsDueBefore(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, due.ID, rows[0].ID)
}
