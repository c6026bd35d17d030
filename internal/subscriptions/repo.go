package subscriptions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kiranahq/kirana-backend/pkg/db/models"
	"github.com/kiranahq/kirana-backend/pkg/enums"
)

// Repository handles subscription and delivery-schedule persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, subscription *models.Subscription) error
	FindByID(ctx context.Context, shopID, id uuid.UUID) (*models.Subscription, error)
	FindByIDForUpdate(ctx context.Context, shopID, id uuid.UUID) (*models.Subscription, error)
	Update(ctx context.Context, subscription *models.Subscription) error
	ListByShop(ctx context.Context, shopID uuid.UUID, customerID *uuid.UUID, limit int) ([]models.Subscription, error)
	ListDue(ctx context.Context, cutoff time.Time, limit int) ([]models.Subscription, error)

	CreateDelivery(ctx context.Context, delivery *models.DeliverySchedule) error
	FindDeliveryByID(ctx context.Context, id uuid.UUID) (*models.DeliverySchedule, error)
	UpdateDelivery(ctx context.Context, delivery *models.DeliverySchedule) error
	ListDeliveries(ctx context.Context, subscriptionID uuid.UUID, limit int) ([]models.DeliverySchedule, error)
	DeleteScheduledFrom(ctx context.Context, subscriptionID uuid.UUID, from time.Time) error
	DeleteScheduled(ctx context.Context, subscriptionID uuid.UUID) error
	MarkScheduledFailedBefore(ctx context.Context, subscriptionID uuid.UUID, cutoff time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a subscription repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, subscription *models.Subscription) error {
	return r.db.WithContext(ctx).Create(subscription).Error
}

func (r *repository) FindByID(ctx context.Context, shopID, id uuid.UUID) (*models.Subscription, error) {
	var subscription models.Subscription
	if err := r.db.WithContext(ctx).
		First(&subscription, "id = ? AND shop_id = ?", id, shopID).Error; err != nil {
		return nil, err
	}
	return &subscription, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, shopID, id uuid.UUID) (*models.Subscription, error) {
	var subscription models.Subscription
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&subscription, "id = ? AND shop_id = ?", id, shopID).Error; err != nil {
		return nil, err
	}
	return &subscription, nil
}

func (r *repository) Update(ctx context.Context, subscription *models.Subscription) error {
	return r.db.WithContext(ctx).Save(subscription).Error
}

func (r *repository) ListByShop(ctx context.Context, shopID uuid.UUID, customerID *uuid.UUID, limit int) ([]models.Subscription, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.WithContext(ctx).Where("shop_id = ?", shopID)
	if customerID != nil {
		q = q.Where("customer_id = ?", *customerID)
	}
	var rows []models.Subscription
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// ListDue returns active, unpaused subscriptions whose next delivery is at or
// before the cutoff. Used by the catch-up job.
func (r *repository) ListDue(ctx context.Context, cutoff time.Time, limit int) ([]models.Subscription, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.Subscription
	err := r.db.WithContext(ctx).
		Where("active = ? AND paused = ?", true, false).
		Where("next_delivery IS NOT NULL AND next_delivery <= ?", cutoff).
		Order("next_delivery ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) CreateDelivery(ctx context.Context, delivery *models.DeliverySchedule) error {
	return r.db.WithContext(ctx).Create(delivery).Error
}

func (r *repository) FindDeliveryByID(ctx context.Context, id uuid.UUID) (*models.DeliverySchedule, error) {
	var delivery models.DeliverySchedule
	if err := r.db.WithContext(ctx).First(&delivery, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *repository) UpdateDelivery(ctx context.Context, delivery *models.DeliverySchedule) error {
	return r.db.WithContext(ctx).Save(delivery).Error
}

func (r *repository) ListDeliveries(ctx context.Context, subscriptionID uuid.UUID, limit int) ([]models.DeliverySchedule, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.DeliverySchedule
	err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("delivery_date DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// DeleteScheduledFrom removes upcoming planned drops from the given instant.
func (r *repository) DeleteScheduledFrom(ctx context.Context, subscriptionID uuid.UUID, from time.Time) error {
	return r.db.WithContext(ctx).
		Where("subscription_id = ? AND status = ? AND delivery_date >= ?",
			subscriptionID, enums.DeliveryStatusScheduled, from).
		Delete(&models.DeliverySchedule{}).Error
}

// MarkScheduledFailedBefore flips planned drops that were never fulfilled to
// FAILED. Used by the catch-up job before rescheduling.
func (r *repository) MarkScheduledFailedBefore(ctx context.Context, subscriptionID uuid.UUID, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.DeliverySchedule{}).
		Where("subscription_id = ? AND status = ? AND delivery_date < ?",
			subscriptionID, enums.DeliveryStatusScheduled, cutoff).
		Update("status", enums.DeliveryStatusFailed)
	return result.RowsAffected, result.Error
}

// DeleteScheduled removes every planned drop regardless of date. Delivered
// history is retained.
func (r *repository) DeleteScheduled(ctx context.Context, subscriptionID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("subscription_id = ? AND status = ?", subscriptionID, enums.DeliveryStatusScheduled).
		Delete(&models.DeliverySchedule{}).Error
}
