package notifications

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kiranahq/kirana-backend/pkg/db/models"
	"github.com/kiranahq/kirana-backend/pkg/enums"
	"github.com/kiranahq/kirana-backend/pkg/whatsapp"
)

// Render turns a staged outbox event into the WhatsApp text the customer
// receives. Unknown event types are an error so the publisher parks the row
// instead of sending garbage.
func Render(event models.OutboxEvent) (whatsapp.Message, error) {
	var payload map[string]any
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return whatsapp.Message{}, fmt.Errorf("decoding payload for event %s: %w", event.ID, err)
		}
	}

	var body string
	switch event.EventType {
	case enums.OutboxEventTypeOrderPlaced:
		body = fmt.Sprintf("Your order %s for ₹%s has been placed. Payment mode: %s. We will update you once it is on the way.",
			str(payload, "orderNumber"), amount(payload, "totalAmount"), str(payload, "paymentMode"))
	case enums.OutboxEventTypeOrderDelivered:
		body = fmt.Sprintf("Order %s (₹%s) has been delivered. Thank you for shopping with us!",
			str(payload, "orderNumber"), amount(payload, "totalAmount"))
	case enums.OutboxEventTypeDeliveryScheduled:
		body = fmt.Sprintf("Your %s delivery of %s item(s) is scheduled for %s.",
			str(payload, "frequency"), str(payload, "quantity"), date(payload, "nextDelivery"))
	case enums.OutboxEventTypeDeliveryCompleted:
		body = fmt.Sprintf("Your subscription delivery of %s item(s) was completed on %s.",
			str(payload, "quantity"), date(payload, "deliveredAt"))
	case enums.OutboxEventTypeInvoiceSent:
		body = fmt.Sprintf("Invoice %s for ₹%s is ready. Please pay by %s.",
			str(payload, "invoiceNumber"), amount(payload, "totalAmount"), date(payload, "dueDate"))
	case enums.OutboxEventTypePaymentReceived:
		body = fmt.Sprintf("We received your payment of ₹%s (%s). Thank you!",
			amount(payload, "amount"), str(payload, "mode"))
	case enums.OutboxEventTypeCreditDueReminder:
		body = fmt.Sprintf("Reminder: your khata balance of ₹%s is due on %s. Please clear it at your convenience.",
			amount(payload, "balance"), date(payload, "dueDate"))
	default:
		return whatsapp.Message{}, fmt.Errorf("no template for event type %q", event.EventType)
	}

	return whatsapp.Message{To: event.Recipient, Body: body}, nil
}

func str(payload map[string]any, key string) string {
	value, ok := payload[key]
	if !ok || value == nil {
		return "-"
	}
	switch v := value.(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// amount renders decimal values JSON round-trips as strings or numbers.
func amount(payload map[string]any, key string) string {
	return str(payload, key)
}

func date(payload map[string]any, key string) string {
	raw, ok := payload[key].(string)
	if !ok || raw == "" {
		return "-"
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return parsed.Format("02 Jan 2006")
}
