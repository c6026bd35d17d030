package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CouponRedemption records one coupon use against an order.
type CouponRedemption struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CouponID   uuid.UUID       `gorm:"column:coupon_id;type:uuid;not null;index"`
	OrderID    uuid.UUID       `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	CustomerID uuid.UUID       `gorm:"column:customer_id;type:uuid;not null;index"`
	Discount   decimal.Decimal `gorm:"column:discount;type:numeric(12,2);not null"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}
