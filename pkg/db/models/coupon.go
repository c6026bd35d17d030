package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kiranahq/kirana-backend/pkg/enums"
)

// Coupon is a shop-scoped discount code.
type Coupon struct {
	ID             uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ShopID         uuid.UUID        `gorm:"column:shop_id;type:uuid;not null;uniqueIndex:idx_coupons_shop_code"`
	Code           string           `gorm:"column:code;not null;uniqueIndex:idx_coupons_shop_code"`
	Type           enums.CouponType `gorm:"column:type;type:coupon_type;not null"`
	Value          decimal.Decimal  `gorm:"column:value;type:numeric(12,2);not null"`
	MinOrderAmount decimal.Decimal  `gorm:"column:min_order_amount;type:numeric(12,2);not null;default:0"`
	MaxDiscount    *decimal.Decimal `gorm:"column:max_discount;type:numeric(12,2)"`
	UsageLimit     int              `gorm:"column:usage_limit;not null;default:0"`
	PerCustomerCap int              `gorm:"column:per_customer_cap;not null;default:0"`
	UsedCount      int              `gorm:"column:used_count;not null;default:0"`
	ValidFrom      time.Time        `gorm:"column:valid_from;not null"`
	ValidUntil     time.Time        `gorm:"column:valid_until;not null"`
	Active         bool             `gorm:"column:active;not null;default:true"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
