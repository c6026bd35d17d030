package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/kiranahq/kirana-backend/pkg/enums"
)

// Subscription is a recurring delivery arrangement for one product. At most
// one row may exist per (customer, product, shop) triple. Cancellation
// end-dates and deactivates the row; it is never hard-deleted while
// deliveries reference it.
type Subscription struct {
	ID           uuid.UUID                   `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ShopID       uuid.UUID                   `gorm:"column:shop_id;type:uuid;not null;uniqueIndex:idx_subscriptions_triple"`
	CustomerID   uuid.UUID                   `gorm:"column:customer_id;type:uuid;not null;uniqueIndex:idx_subscriptions_triple"`
	ProductID    uuid.UUID                   `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_subscriptions_triple"`
	Quantity     int                         `gorm:"column:quantity;not null;default:1"`
	Unit         string                      `gorm:"column:unit;not null;default:'pcs'"`
	PricePerUnit decimal.Decimal             `gorm:"column:price_per_unit;type:numeric(12,2);not null"`
	Frequency    enums.SubscriptionFrequency `gorm:"column:frequency;type:subscription_frequency;not null"`
	DeliveryTime string                      `gorm:"column:delivery_time;not null;default:'08:00'"`
	CustomDays   pq.StringArray              `gorm:"column:custom_days;type:text[];default:ARRAY[]::text[]"`
	Active       bool                        `gorm:"column:active;not null;default:true"`
	Paused       bool                        `gorm:"column:paused;not null;default:false"`
	StartDate    time.Time                   `gorm:"column:start_date;not null"`
	EndDate      *time.Time                  `gorm:"column:end_date"`
	NextDelivery *time.Time                  `gorm:"column:next_delivery"`
	AutoCharge   bool                        `gorm:"column:auto_charge;not null;default:false"`
	LastCharged  *time.Time                  `gorm:"column:last_charged"`
	CreatedAt    time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}
