package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Customer is scoped to a single shop; there is no cross-shop identity.
// TotalOrders/TotalSpent are maintained on order delivery and feed the
// credit score heuristic.
type Customer struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ShopID        uuid.UUID       `gorm:"column:shop_id;type:uuid;not null;uniqueIndex:idx_customers_shop_phone"`
	Phone         string          `gorm:"column:phone;not null;uniqueIndex:idx_customers_shop_phone"`
	Name          string          `gorm:"column:name;not null"`
	Address       string          `gorm:"column:address"`
	LoyaltyPoints int             `gorm:"column:loyalty_points;not null;default:0"`
	TotalOrders   int             `gorm:"column:total_orders;not null;default:0"`
	TotalSpent    decimal.Decimal `gorm:"column:total_spent;type:numeric(14,2);not null;default:0"`
	Active        bool            `gorm:"column:active;not null;default:true"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
