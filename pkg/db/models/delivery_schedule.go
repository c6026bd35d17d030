package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kiranahq/kirana-backend/pkg/enums"
)

// DeliverySchedule is one planned drop for a subscription. Status moves
// one-directionally out of SCHEDULED; delivered rows are retained for audit.
type DeliverySchedule struct {
	ID             uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SubscriptionID uuid.UUID            `gorm:"column:subscription_id;type:uuid;not null;index"`
	DeliveryDate   time.Time            `gorm:"column:delivery_date;not null;index"`
	ScheduledTime  string               `gorm:"column:scheduled_time;not null"`
	Status         enums.DeliveryStatus `gorm:"column:status;type:delivery_status;not null;default:'SCHEDULED'"`
	Quantity       int                  `gorm:"column:quantity;not null"`
	ActualQuantity *int                 `gorm:"column:actual_quantity"`
	ActualPrice    *decimal.Decimal     `gorm:"column:actual_price;type:numeric(12,2)"`
	DeliveredBy    *uuid.UUID           `gorm:"column:delivered_by;type:uuid"`
	DeliveredAt    *time.Time           `gorm:"column:delivered_at"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
