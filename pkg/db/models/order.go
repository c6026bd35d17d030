package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kiranahq/kirana-backend/pkg/enums"
)

// Order is a customer purchase moving through fulfillment.
type Order struct {
	ID             uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ShopID         uuid.UUID         `gorm:"column:shop_id;type:uuid;not null;index"`
	CustomerID     uuid.UUID         `gorm:"column:customer_id;type:uuid;not null;index"`
	Number         string            `gorm:"column:number;not null;uniqueIndex"`
	Status         enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'PENDING'"`
	PaymentMode    enums.PaymentMode `gorm:"column:payment_mode;type:payment_mode;not null"`
	Subtotal       decimal.Decimal   `gorm:"column:subtotal;type:numeric(12,2);not null"`
	DiscountAmount decimal.Decimal   `gorm:"column:discount_amount;type:numeric(12,2);not null;default:0"`
	TotalAmount    decimal.Decimal   `gorm:"column:total_amount;type:numeric(12,2);not null"`
	CouponID       *uuid.UUID        `gorm:"column:coupon_id;type:uuid"`
	Notes          string            `gorm:"column:notes"`
	DeliveredAt    *time.Time        `gorm:"column:delivered_at"`
	CancelledAt    *time.Time        `gorm:"column:cancelled_at"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`

	Items []OrderItem `gorm:"foreignKey:OrderID"`
}
