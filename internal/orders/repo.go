package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kiranahq/kirana-backend/pkg/db/models"
	"github.com/kiranahq/kirana-backend/pkg/enums"
)

// ListQuery filters the shop's order book.
type ListQuery struct {
	CustomerID *uuid.UUID
	Status     *enums.OrderStatus
	Limit      int
}

// Repository handles order persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, shopID, id uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, shopID, id uuid.UUID) (*models.Order, error)
	Update(ctx context.Context, order *models.Order) error
	List(ctx context.Context, shopID uuid.UUID, query ListQuery) ([]models.Order, error)
	CountOrdersSince(ctx context.Context, shopID, customerID uuid.UUID, since time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an order repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create persists the order together with its item snapshot rows.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, shopID, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, "id = ? AND shop_id = ?", id, shopID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, shopID, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, "id = ? AND shop_id = ?", id, shopID).Error; err != nil {
		return nil, err
	}
	var items []models.OrderItem
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", order.ID).Find(&items).Error; err != nil {
		return nil, err
	}
	order.Items = items
	return &order, nil
}

func (r *repository) Update(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit("Items").Save(order).Error
}

func (r *repository) List(ctx context.Context, shopID uuid.UUID, query ListQuery) ([]models.Order, error) {
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
	var rows []models.Order
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// CountOrdersSince feeds the credit score's recent-activity band.
func (r *repository) CountOrdersSince(ctx context.Context, shopID, customerID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("shop_id = ? AND customer_id = ? AND created_at >= ?", shopID, customerID, since).
		Where("status <> ?", enums.OrderStatusCancelled).
		Count(&count).Error
	return count, err
}
