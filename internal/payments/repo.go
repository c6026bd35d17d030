package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kiranahq/kirana-backend/pkg/db/models"
)

// Repository handles payment persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, shopID, id uuid.UUID) (*models.Payment, error)
	FindByGatewayOrder(ctx context.Context, shopID uuid.UUID, gatewayOrderID string) (*models.Payment, error)
	FindByGatewayOrderForUpdate(ctx context.Context, shopID uuid.UUID, gatewayOrderID string) (*models.Payment, error)
	Update(ctx context.Context, payment *models.Payment) error
	ListByCustomer(ctx context.Context, shopID, customerID uuid.UUID, limit int) ([]models.Payment, error)
	ListByInvoice(ctx context.Context, shopID, invoiceID uuid.UUID) ([]models.Payment, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payment repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindByID(ctx context.Context, shopID, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		First(&payment, "id = ? AND shop_id = ?", id, shopID).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByGatewayOrder(ctx context.Context, shopID uuid.UUID, gatewayOrderID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		First(&payment, "shop_id = ? AND gateway_order_id = ?", shopID, gatewayOrderID).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByGatewayOrderForUpdate(ctx context.Context, shopID uuid.UUID, gatewayOrderID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&payment, "shop_id = ? AND gateway_order_id = ?", shopID, gatewayOrderID).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) Update(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Save(payment).Error
}

func (r *repository) ListByCustomer(ctx context.Context, shopID, customerID uuid.UUID, limit int) ([]models.Payment, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Payment
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND customer_id = ?", shopID, customerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListByInvoice(ctx context.Context, shopID, invoiceID uuid.UUID) ([]models.Payment, error) {
	var rows []models.Payment
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND invoice_id = ?", shopID, invoiceID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}
