package products

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiranahq/kirana-backend/pkg/db/models"
	"github.com/kiranahq/kirana-backend/pkg/pagination"
)

// ListQuery filters the shop catalog.
type ListQuery struct {
	ActiveOnly bool
	Category   string
	Search     string
	Pagination pagination.Params
}

// ListResult is one catalog page plus the cursor for the next one.
type ListResult struct {
	Products   []models.Product
	NextCursor string
}

// Repository handles product persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, product *models.Product) error
	FindByID(ctx context.Context, shopID, id uuid.UUID) (*models.Product, error)
	Update(ctx context.Context, product *models.Product) error
	List(ctx context.Context, shopID uuid.UUID, query ListQuery) (*ListResult, error)
	AdjustStock(ctx context.Context, productID uuid.UUID, delta int) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a product repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *repository) FindByID(ctx context.Context, shopID, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).
		First(&product, "id = ? AND shop_id = ?", id, shopID).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) Update(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Save(product).Error
}

func (r *repository) List(ctx context.Context, shopID uuid.UUID, query ListQuery) (*ListResult, error) {
	pageSize := pagination.NormalizeLimit(query.Pagination.Limit)
	cursor, err := pagination.ParseCursor(query.Pagination.Cursor)
	if err != nil {
		return nil, err
	}

	qb := r.db.WithContext(ctx).Where("shop_id = ?", shopID)
	if query.ActiveOnly {
		qb = qb.Where("active = ?", true)
	}
	if query.Category != "" {
		qb = qb.Where("? = ANY(categories)", query.Category)
	}
	if query.Search != "" {
		qb = qb.Where("name LIKE ?", "%"+query.Search+"%")
	}
	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Product
	err = qb.Order("created_at DESC").Order("id DESC").
		Limit(pagination.LimitWithBuffer(query.Pagination.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	nextCursor := ""
	if len(rows) > pageSize {
		rows = rows[:pageSize]
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return &ListResult{Products: rows, NextCursor: nextCursor}, nil
}

// AdjustStock applies the delta atomically; decrements are guarded against
// going negative in the same statement. Returns false when stock was
// insufficient.
func (r *repository) AdjustStock(ctx context.Context, productID uuid.UUID, delta int) (bool, error) {
	q := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID)
	if delta < 0 {
		q = q.Where("stock_qty >= ?", -delta)
	}
	result := q.Update("stock_qty", gorm.Expr("stock_qty + ?", delta))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
