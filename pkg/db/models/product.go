package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Product is a shop catalog item.
type Product struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ShopID     uuid.UUID       `gorm:"column:shop_id;type:uuid;not null;index"`
	Name       string          `gorm:"column:name;not null"`
	Unit       string          `gorm:"column:unit;not null;default:'pcs'"`
	Price      decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	StockQty   int             `gorm:"column:stock_qty;not null;default:0"`
	Categories pq.StringArray  `gorm:"column:categories;type:text[];default:ARRAY[]::text[]"`
	Active     bool            `gorm:"column:active;not null;default:true"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
