package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/kiranahq/kirana-backend/pkg/enums"
)

// OutboxEvent stages a notification for asynchronous WhatsApp delivery. Rows
// are written in the same transaction as the primary state change and drained
// by the notification-publisher worker.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ShopID        uuid.UUID                 `gorm:"column:shop_id;type:uuid;not null;index"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null;index"`
	Recipient     string                    `gorm:"column:recipient;not null"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`
	AttemptCount  int                       `gorm:"column:attempt_count;not null;default:0"`
	LastError     string                    `gorm:"column:last_error"`
	PublishedAt   *time.Time                `gorm:"column:published_at;index"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
}
