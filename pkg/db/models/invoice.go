package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kiranahq/kirana-backend/pkg/enums"
)

// Invoice is a bill issued to a customer, either manually or auto-generated
// when a subscription delivery completes with auto-charge enabled.
type Invoice struct {
	ID             uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ShopID         uuid.UUID           `gorm:"column:shop_id;type:uuid;not null;index"`
	CustomerID     uuid.UUID           `gorm:"column:customer_id;type:uuid;not null;index"`
	SubscriptionID *uuid.UUID          `gorm:"column:subscription_id;type:uuid;index"`
	Number         string              `gorm:"column:number;not null;uniqueIndex"`
	Status         enums.InvoiceStatus `gorm:"column:status;type:invoice_status;not null;default:'DRAFT'"`
	Subtotal       decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	TaxAmount      decimal.Decimal     `gorm:"column:tax_amount;type:numeric(12,2);not null;default:0"`
	TotalAmount    decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	PaidAmount     decimal.Decimal     `gorm:"column:paid_amount;type:numeric(12,2);not null;default:0"`
	BalanceAmount  decimal.Decimal     `gorm:"column:balance_amount;type:numeric(12,2);not null"`
	DueDate        *time.Time          `gorm:"column:due_date"`
	SentAt         *time.Time          `gorm:"column:sent_at"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	Items []InvoiceItem `gorm:"foreignKey:InvoiceID"`
}
