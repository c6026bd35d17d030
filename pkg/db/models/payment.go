package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kiranahq/kirana-backend/pkg/enums"
)

// Payment records money received against an invoice. Gateway fields are only
// populated for ONLINE payments routed through Razorpay.
type Payment struct {
	ID                uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ShopID            uuid.UUID           `gorm:"column:shop_id;type:uuid;not null;index"`
	InvoiceID         *uuid.UUID          `gorm:"column:invoice_id;type:uuid;index"`
	CustomerID        uuid.UUID           `gorm:"column:customer_id;type:uuid;not null;index"`
	Amount            decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Mode              enums.PaymentMode   `gorm:"column:mode;type:payment_mode;not null"`
	Status            enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'PENDING'"`
	Reference         string              `gorm:"column:reference"`
	GatewayOrderID    string              `gorm:"column:gateway_order_id"`
	GatewayPaymentID  string              `gorm:"column:gateway_payment_id"`
	FailureReason     string              `gorm:"column:failure_reason"`
	CompletedAt       *time.Time          `gorm:"column:completed_at"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
