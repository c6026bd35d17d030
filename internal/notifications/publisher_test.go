package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranahq/kirana-backend/pkg/db/models"
	"github.com/kiranahq/kirana-backend/pkg/enums"
	"github.com/kiranahq/kirana-backend/pkg/whatsapp"
)

type fakeSource struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failures  map[uuid.UUID]string
}

func newFakeSource(events ...models.OutboxEvent) *fakeSource {
	return &fakeSource{events: events, failures: map[uuid.UUID]string{}}
}

func (f *fakeSource) FetchUnpublished(limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if limit > len(f.events) {
		limit = len(f.events)
	}
	return f.events[:limit], nil
}

func (f *fakeSource) MarkPublished(id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeSource) MarkFailed(id uuid.UUID, err error) error {
	f.failures[id] = err.Error()
	return nil
}

type fakeSender struct {
	sent    []whatsapp.Message
	failFor map[string]error
}

func (f *fakeSender) Send(ctx context.Context, msg whatsapp.Message) error {
	if err, ok := f.failFor[msg.To]; ok {
		return err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func stageEvent(t *testing.T, eventType enums.OutboxEventType, recipient string, payload map[string]any) models.OutboxEvent {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		ShopID:        uuid.New(),
		EventType:     eventType,
		AggregateType: enums.OutboxAggregateTypeOrder,
		AggregateID:   uuid.New(),
		Recipient:     recipient,
		Payload:       raw,
	}
}

func testPublisher(t *testing.T, source *fakeSource, sender *fakeSender) *Publisher {
	t.Helper()
	pub, err := NewPublisher(PublisherParams{Source: source, Sender: sender})
	require.NoError(t, err)
	return pub
}

func TestProcessBatchSendsAndMarksPublished(t *testing.T) {
	event := stageEvent(t, enums.OutboxEventTypeOrderPlaced, "+919812345678", map[string]any{
		"orderNumber": "ORD-20250601-AB12CD34",
		"totalAmount": "180",
		"paymentMode": "CASH",
	})
	source := newFakeSource(event)
	sender := &fakeSender{}
	pub := testPublisher(t, source, sender)

	published, failed, err := pub.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, published)
	assert.Equal(t, 0, failed)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "+919812345678", sender.sent[0].To)
	assert.Contains(t, sender.sent[0].Body, "ORD-20250601-AB12CD34")
	assert.Contains(t, sender.sent[0].Body, "₹180")
	assert.Equal(t, []uuid.UUID{event.ID}, source.published)
}

func TestProcessBatchRecordsSendFailuresAndContinues(t *testing.T) {
	bad := stageEvent(t, enums.OutboxEventTypeOrderPlaced, "+910000000000", map[string]any{
		"orderNumber": "ORD-1", "totalAmount": "50", "paymentMode": "UPI",
	})
	good := stageEvent(t, enums.OutboxEventTypePaymentReceived, "+919812345678", map[string]any{
		"amount": "250", "mode": "UPI",
	})
	source := newFakeSource(bad, good)
	sender := &fakeSender{failFor: map[string]error{"+910000000000": errors.New("api returned 500")}}
	pub := testPublisher(t, source, sender)

	published, failed, err := pub.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, published)
	assert.Equal(t, 1, failed)

	assert.Equal(t, "api returned 500", source.failures[bad.ID])
	assert.Equal(t, []uuid.UUID{good.ID}, source.published)
}

func TestProcessBatchParksUnknownEventTypes(t *testing.T) {
	event := stageEvent(t, enums.OutboxEventType("legacy.event"), "+919812345678", nil)
	source := newFakeSource(event)
	sender := &fakeSender{}
	pub := testPublisher(t, source, sender)

	published, failed, err := pub.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, published)
	assert.Equal(t, 1, failed)
	assert.Empty(t, sender.sent)
	assert.Contains(t, source.failures[event.ID], "no template")
}

func TestRenderTemplates(t *testing.T) {
	cases := []struct {
		eventType enums.OutboxEventType
		payload   map[string]any
		want      string
	}{
		{enums.OutboxEventTypeOrderDelivered, map[string]any{"orderNumber": "ORD-9", "totalAmount": "120"}, "has been delivered"},
		{enums.OutboxEventTypeDeliveryScheduled, map[string]any{"frequency": "DAILY", "quantity": 2, "nextDelivery": "2025-06-03T08:00:00Z"}, "03 Jun 2025"},
		{enums.OutboxEventTypeInvoiceSent, map[string]any{"invoiceNumber": "INV-7", "totalAmount": "60", "dueDate": "2025-06-10T00:00:00Z"}, "INV-7"},
		{enums.OutboxEventTypeCreditDueReminder, map[string]any{"balance": "850", "dueDate": "2025-07-01T00:00:00Z"}, "₹850"},
	}
	for _, tc := range cases {
		event := stageEvent(t, tc.eventType, "+919812345678", tc.payload)
		msg, err := Render(event)
		require.NoError(t, err, string(tc.eventType))
		assert.Contains(t, msg.Body, tc.want, string(tc.eventType))
	}
}
