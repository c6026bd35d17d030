package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kiranahq/kirana-backend/pkg/db/models"
	"github.com/kiranahq/kirana-backend/pkg/enums"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  shop_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  recipient TEXT NOT NULL,
  payload TEXT NOT NULL,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT,
  published_at DATETIME,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(ddl).Error)
	return db
}

func TestEmitStagesEventInTransaction(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)

	shopID := uuid.New()
	orderID := uuid.New()

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.OutboxEventTypeOrderPlaced,
			AggregateType: enums.OutboxAggregateTypeOrder,
			AggregateID:   orderID,
			ShopID:        shopID,
			Recipient:     "+919800000001",
			Data:          map[string]any{"orderNumber": "ORD-0001"},
		})
	})
	require.NoError(t, err)

	rows, err := repo.FetchUnpublished(10, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, enums.OutboxEventTypeOrderPlaced, row.EventType)
	assert.Equal(t, enums.OutboxAggregateTypeOrder, row.AggregateType)
	assert.Equal(t, orderID, row.AggregateID)
	assert.Equal(t, "+919800000001", row.Recipient)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	assert.False(t, envelope.OccurredAt.IsZero())
}

func TestEmitRequiresTransactionAndRecipient(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc := NewService(NewRepository(db), nil)

	err := svc.Emit(context.Background(), nil, DomainEvent{Recipient: "+919800000001"})
	assert.Error(t, err)

	err = db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.OutboxEventTypeOrderPlaced,
			AggregateType: enums.OutboxAggregateTypeOrder,
			AggregateID:   uuid.New(),
			ShopID:        uuid.New(),
		})
	})
	assert.Error(t, err)
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.OutboxEventTypeOrderPlaced,
			AggregateType: enums.OutboxAggregateTypeOrder,
			AggregateID:   uuid.New(),
			ShopID:        uuid.New(),
			Recipient:     "+919800000001",
			Data:          map[string]any{},
		}); err != nil {
			return err
		}
		return errors.New("force rollback")
	})
	require.Error(t, err)

	rows, err := repo.FetchUnpublished(10, 5)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMarkPublishedAndFailed(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)

	publishedID := uuid.New()
	failedID := uuid.New()
	for _, id := range []uuid.UUID{publishedID, failedID} {
		require.NoError(t, db.Create(&models.OutboxEvent{
			ID:            id,
			ShopID:        uuid.New(),
			EventType:     enums.OutboxEventTypeInvoiceSent,
			AggregateType: enums.OutboxAggregateTypeInvoice,
			AggregateID:   uuid.New(),
			Recipient:     "+919800000002",
			Payload:       json.RawMessage(`{}`),
			CreatedAt:     time.Now(),
		}).Error)
	}

	require.NoError(t, repo.MarkPublished(publishedID))
	require.NoError(t, repo.MarkFailed(failedID, errors.New("whatsapp 500")))

	rows, err := repo.FetchUnpublished(10, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, failedID, rows[0].ID)
	assert.Equal(t, 1, rows[0].AttemptCount)
	assert.Equal(t, "whatsapp 500", rows[0].LastError)
}

func TestFetchUnpublishedSkipsExhaustedAttempts(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)

	id := uuid.New()
	require.NoError(t, db.Create(&models.OutboxEvent{
		ID:            id,
		ShopID:        uuid.New(),
		EventType:     enums.OutboxEventTypeInvoiceSent,
		AggregateType: enums.OutboxAggregateTypeInvoice,
		AggregateID:   uuid.New(),
		Recipient:     "+919800000003",
		Payload:       json.RawMessage(`{}`),
		AttemptCount:  5,
		CreatedAt:     time.Now(),
	}).Error)

	rows, err := repo.FetchUnpublished(10, 5)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDeletePublishedBefore(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)

	old := time.Now().Add(-40 * 24 * time.Hour)
	recent := time.Now().Add(-time.Hour)

	for _, ts := range []time.Time{old, recent} {
		ts := ts
		require.NoError(t, db.Create(&models.OutboxEvent{
			ID:            uuid.New(),
			ShopID:        uuid.New(),
			EventType:     enums.OutboxEventTypePaymentReceived,
			AggregateType: enums.OutboxAggregateTypeInvoice,
			AggregateID:   uuid.New(),
			Recipient:     "+919800000004",
			Payload:       json.RawMessage(`{}`),
			PublishedAt:   &ts,
			CreatedAt:     ts,
		}).Error)
	}

	deleted, err := repo.DeletePublishedBefore(time.Now().Add(-30 * 24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&remaining).Error)
	assert.Equal(t, int64(1), remaining)
}
