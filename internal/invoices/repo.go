package invoices

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kiranahq/kirana-backend/pkg/db/models"
	"github.com/kiranahq/kirana-backend/pkg/enums"
)

// ListQuery filters invoice listings.
type ListQuery struct {
	CustomerID *uuid.UUID
	Status     *enums.InvoiceStatus
	Limit      int
}

// Repository handles invoice persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, invoice *models.Invoice) error
	FindByID(ctx context.Context, shopID, id uuid.UUID) (*models.Invoice, error)
	FindByIDForUpdate(ctx context.Context, shopID, id uuid.UUID) (*models.Invoice, error)
	Update(ctx context.Context, invoice *models.Invoice) error
	List(ctx context.Context, shopID uuid.UUID, query ListQuery) ([]models.Invoice, error)
	ListOverdueCandidates(ctx context.Context, cutoff time.Time, limit int) ([]models.Invoice, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an invoice repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *repository) FindByID(ctx context.Context, shopID, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).
		Preload("Items").
		First(&invoice, "id = ? AND shop_id = ?", id, shopID).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, shopID, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&invoice, "id = ? AND shop_id = ?", id, shopID).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) Update(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Omit("Items").Save(invoice).Error
}

func (r *repository) List(ctx context.Context, shopID uuid.UUID, query ListQuery) ([]models.Invoice, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = 50
	}

	q := r.db.WithContext(ctx).Where("shop_id = ?", shopID)
	if query.CustomerID != nil {
		q = q.Where("customer_id = ?", *query.CustomerID)
	}
	if query.Status != nil {
		q = q.Where("status = ?", *query.Status)
	}

	var rows []models.Invoice
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// ListOverdueCandidates returns open invoices whose due date has passed.
func (r *repository) ListOverdueCandidates(ctx context.Context, cutoff time.Time, limit int) ([]models.Invoice, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.Invoice
	err := r.db.WithContext(ctx).
		Where("status IN ?", []enums.InvoiceStatus{enums.InvoiceStatusSent, enums.InvoiceStatusPartiallyPaid}).
		Where("due_date IS NOT NULL AND due_date < ?", cutoff).
		Order("due_date ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
