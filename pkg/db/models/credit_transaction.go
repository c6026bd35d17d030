package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kiranahq/kirana-backend/pkg/enums"
)

// CreditTransaction is an append-only ledger entry. BalanceAfter snapshots
// the account balance at the moment the entry was applied; it is never
// recomputed from history.
type CreditTransaction struct {
	ID           uuid.UUID                   `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	AccountID    uuid.UUID                   `gorm:"column:account_id;type:uuid;not null;index"`
	Type         enums.CreditTransactionType `gorm:"column:type;type:credit_transaction_type;not null"`
	Amount       decimal.Decimal             `gorm:"column:amount;type:numeric(12,2);not null"`
	BalanceAfter decimal.Decimal             `gorm:"column:balance_after;type:numeric(12,2);not null"`
	Description  string                      `gorm:"column:description"`
	Reference    string                      `gorm:"column:reference"`
	Metadata     json.RawMessage             `gorm:"column:metadata;type:jsonb"`
	CreatedAt    time.Time                   `gorm:"column:created_at;autoCreateTime"`
}
