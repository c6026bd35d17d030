package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreditAccount is the per-customer khata. CurrentBalance is the amount the
// customer owes; AvailableCredit is clamped to the credit limit as an upper
// bound only, so DEBIT/FEE/PAYMENT paths can legitimately drive it negative.
type CreditAccount struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ShopID          uuid.UUID       `gorm:"column:shop_id;type:uuid;not null;uniqueIndex:idx_credit_accounts_pair"`
	CustomerID      uuid.UUID       `gorm:"column:customer_id;type:uuid;not null;uniqueIndex:idx_credit_accounts_pair"`
	CreditLimit     decimal.Decimal `gorm:"column:credit_limit;type:numeric(12,2);not null"`
	CurrentBalance  decimal.Decimal `gorm:"column:current_balance;type:numeric(12,2);not null;default:0"`
	AvailableCredit decimal.Decimal `gorm:"column:available_credit;type:numeric(12,2);not null;default:0"`
	CreditScore     int             `gorm:"column:credit_score;not null;default:100"`
	Active          bool            `gorm:"column:active;not null;default:true"`
	DueDate         *time.Time      `gorm:"column:due_date"`
	LastPaymentDate *time.Time      `gorm:"column:last_payment_date"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
