package coupons

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiranahq/kirana-backend/pkg/db/models"
)

// Repository handles coupon and redemption persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, coupon *models.Coupon) error
	FindByID(ctx context.Context, shopID, id uuid.UUID) (*models.Coupon, error)
	FindByCode(ctx context.Context, shopID uuid.UUID, code string) (*models.Coupon, error)
	Update(ctx context.Context, coupon *models.Coupon) error
	List(ctx context.Context, shopID uuid.UUID, activeOnly bool, limit int) ([]models.Coupon, error)

	InsertRedemption(ctx context.Context, redemption *models.CouponRedemption) error
	CountRedemptionsByCustomer(ctx context.Context, couponID, customerID uuid.UUID) (int64, error)
	IncrementUsage(ctx context.Context, couponID uuid.UUID, usageLimit int) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a coupon repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, coupon *models.Coupon) error {
	return r.db.WithContext(ctx).Create(coupon).Error
}

func (r *repository) FindByID(ctx context.Context, shopID, id uuid.UUID) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.db.WithContext(ctx).
		First(&coupon, "id = ? AND shop_id = ?", id, shopID).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *repository) FindByCode(ctx context.Context, shopID uuid.UUID, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.db.WithContext(ctx).
		First(&coupon, "shop_id = ? AND code = ?", shopID, strings.ToUpper(code)).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *repository) Update(ctx context.Context, coupon *models.Coupon) error {
	return r.db.WithContext(ctx).Save(coupon).Error
}

func (r *repository) List(ctx context.Context, shopID uuid.UUID, activeOnly bool, limit int) ([]models.Coupon, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.WithContext(ctx).Where("shop_id = ?", shopID)
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var rows []models.Coupon
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *repository) InsertRedemption(ctx context.Context, redemption *models.CouponRedemption) error {
	return r.db.WithContext(ctx).Create(redemption).Error
}

func (r *repository) CountRedemptionsByCustomer(ctx context.Context, couponID, customerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CouponRedemption{}).
		Where("coupon_id = ? AND customer_id = ?", couponID, customerID).
		Count(&count).Error
	return count, err
}

// IncrementUsage bumps used_count, guarded against the usage limit in the
// same statement so concurrent redemptions cannot oversell the cap. A zero
// limit means unlimited. Returns false when the cap is exhausted.
func (r *repository) IncrementUsage(ctx context.Context, couponID uuid.UUID, usageLimit int) (bool, error) {
	q := r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("id = ?", couponID)
	if usageLimit > 0 {
		q = q.Where("used_count < ?", usageLimit)
	}
	result := q.Update("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
