package customers

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kiranahq/kirana-backend/pkg/db/models"
)

// Repository handles customer persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, customer *models.Customer) error
	FindByID(ctx context.Context, shopID, id uuid.UUID) (*models.Customer, error)
	FindByIDForUpdate(ctx context.Context, shopID, id uuid.UUID) (*models.Customer, error)
	FindByPhone(ctx context.Context, shopID uuid.UUID, phone string) (*models.Customer, error)
	Update(ctx context.Context, customer *models.Customer) error
	List(ctx context.Context, shopID uuid.UUID, search string, limit int) ([]models.Customer, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a customer repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, customer *models.Customer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

func (r *repository) FindByID(ctx context.Context, shopID, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).
		First(&customer, "id = ? AND shop_id = ?", id, shopID).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, shopID, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&customer, "id = ? AND shop_id = ?", id, shopID).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *repository) FindByPhone(ctx context.Context, shopID uuid.UUID, phone string) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).
		First(&customer, "shop_id = ? AND phone = ?", shopID, phone).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *repository) Update(ctx context.Context, customer *models.Customer) error {
	return r.db.WithContext(ctx).Save(customer).Error
}

func (r *repository) List(ctx context.Context, shopID uuid.UUID, search string, limit int) ([]models.Customer, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.WithContext(ctx).Where("shop_id = ?", shopID)
	if search != "" {
		like := "%" + search + "%"
		q = q.Where("name LIKE ? OR phone LIKE ?", like, like)
	}
	var rows []models.Customer
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}
