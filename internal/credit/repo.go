package credit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kiranahq/kirana-backend/pkg/db/models"
)

// Repository handles khata persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateAccount(ctx context.Context, account *models.CreditAccount) error
	FindAccountByID(ctx context.Context, shopID, id uuid.UUID) (*models.CreditAccount, error)
	FindAccountByIDForUpdate(ctx context.Context, shopID, id uuid.UUID) (*models.CreditAccount, error)
	FindAccountByCustomer(ctx context.Context, shopID, customerID uuid.UUID) (*models.CreditAccount, error)
	UpdateAccount(ctx context.Context, account *models.CreditAccount) error
	InsertTransaction(ctx context.Context, entry *models.CreditTransaction) error
	ListTransactions(ctx context.Context, accountID uuid.UUID, limit int) ([]models.CreditTransaction, error)
	ListAccountsDueBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.CreditAccount, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a credit repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateAccount(ctx context.Context, account *models.CreditAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *repository) FindAccountByID(ctx context.Context, shopID, id uuid.UUID) (*models.CreditAccount, error) {
	var account models.CreditAccount
	if err := r.db.WithContext(ctx).
		First(&account, "id = ? AND shop_id = ?", id, shopID).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// FindAccountByIDForUpdate loads the account under a row lock. Only
// meaningful inside a transaction.
func (r *repository) FindAccountByIDForUpdate(ctx context.Context, shopID, id uuid.UUID) (*models.CreditAccount, error) {
	var account models.CreditAccount
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&account, "id = ? AND shop_id = ?", id, shopID).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) FindAccountByCustomer(ctx context.Context, shopID, customerID uuid.UUID) (*models.CreditAccount, error) {
	var account models.CreditAccount
	if err := r.db.WithContext(ctx).
		First(&account, "shop_id = ? AND customer_id = ?", shopID, customerID).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) UpdateAccount(ctx context.Context, account *models.CreditAccount) error {
	return r.db.WithContext(ctx).Save(account).Error
}

func (r *repository) InsertTransaction(ctx context.Context, entry *models.CreditTransaction) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListTransactions(ctx context.Context, accountID uuid.UUID, limit int) ([]models.CreditTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.CreditTransaction
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ListAccountsDueBefore returns active accounts with outstanding balance due
// on or before the cutoff. Used by the due-reminder job.
func (r *repository) ListAccountsDueBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.CreditAccount, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.CreditAccount
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Where("current_balance > 0").
		Where("due_date IS NOT NULL AND due_date <= ?", cutoff).
		Order("due_date ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
