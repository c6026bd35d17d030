package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a shop owner account. Customers are not users; they are scoped to a
// shop and never authenticate.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Phone        string    `gorm:"column:phone;not null;uniqueIndex"`
	Name         string    `gorm:"column:name;not null"`
	PasswordHash string    `gorm:"column:password_hash;not null"`
	Active       bool      `gorm:"column:active;not null;default:true"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
