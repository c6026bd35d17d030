package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Shop is a registered kirana store. The slug doubles as the QR storefront
// key: scanning the printed code resolves /store/{slug}.
type Shop struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID    uuid.UUID      `gorm:"column:owner_id;type:uuid;not null;index"`
	Name       string         `gorm:"column:name;not null"`
	Slug       string         `gorm:"column:slug;not null;uniqueIndex"`
	Address    string         `gorm:"column:address"`
	Phone      string         `gorm:"column:phone;not null"`
	Categories pq.StringArray `gorm:"column:categories;type:text[];default:ARRAY[]::text[]"`
	Active     bool           `gorm:"column:active;not null;default:true"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// ShopSettings carries per-shop policy knobs. Fetched once per operation and
// passed into services as a value object.
type ShopSettings struct {
	ID                 uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ShopID             uuid.UUID       `gorm:"column:shop_id;type:uuid;not null;uniqueIndex"`
	AllowPause         bool            `gorm:"column:allow_pause;not null;default:true"`
	AllowCancel        bool            `gorm:"column:allow_cancel;not null;default:true"`
	MinCreditScore     int             `gorm:"column:min_credit_score;not null;default:0"`
	GracePeriodDays    int             `gorm:"column:grace_period_days;not null;default:30"`
	DefaultCreditLimit decimal.Decimal `gorm:"column:default_credit_limit;type:numeric(12,2);not null;default:0"`
	CouponsEnabled     bool            `gorm:"column:coupons_enabled;not null;default:true"`
	LoyaltyEnabled     bool            `gorm:"column:loyalty_enabled;not null;default:true"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// Policy is the value-object view of ShopSettings that domain services accept.
type Policy struct {
	AllowPause         bool
	AllowCancel        bool
	MinCreditScore     int
	GracePeriodDays    int
	DefaultCreditLimit decimal.Decimal
	CouponsEnabled     bool
	LoyaltyEnabled     bool
}

// Policy converts the persisted settings row into the value object.
func (s ShopSettings) Policy() Policy {
	return Policy{
		AllowPause:         s.AllowPause,
		AllowCancel:        s.AllowCancel,
		MinCreditScore:     s.MinCreditScore,
		GracePeriodDays:    s.GracePeriodDays,
		DefaultCreditLimit: s.DefaultCreditLimit,
		CouponsEnabled:     s.CouponsEnabled,
		LoyaltyEnabled:     s.LoyaltyEnabled,
	}
}
