package enums

import "fmt"

// OutboxEventType names a domain event written to the notification outbox.
type OutboxEventType string

const (
	OutboxEventTypeOrderPlaced       OutboxEventType = "order.placed"
	OutboxEventTypeOrderDelivered    OutboxEventType = "order.delivered"
	OutboxEventTypeDeliveryScheduled OutboxEventType = "delivery.scheduled"
	OutboxEventTypeDeliveryCompleted OutboxEventType = "delivery.completed"
	OutboxEventTypeInvoiceSent       OutboxEventType = "invoice.sent"
	OutboxEventTypePaymentReceived   OutboxEventType = "payment.received"
	OutboxEventTypeCreditDueReminder OutboxEventType = "credit.due_reminder"
)

var validOutboxEventTypes = []OutboxEventType{
	OutboxEventTypeOrderPlaced,
	OutboxEventTypeOrderDelivered,
	OutboxEventTypeDeliveryScheduled,
	OutboxEventTypeDeliveryCompleted,
	OutboxEventTypeInvoiceSent,
	OutboxEventTypePaymentReceived,
	OutboxEventTypeCreditDueReminder,
}

// String implements fmt.Stringer.
func (t OutboxEventType) String() string {
	return string(t)
}

// IsValid reports whether the value is known.
func (t OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into an OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}

// OutboxAggregateType names the entity an outbox event is about.
type OutboxAggregateType string

const (
	OutboxAggregateTypeOrder         OutboxAggregateType = "order"
	OutboxAggregateTypeSubscription  OutboxAggregateType = "subscription"
	OutboxAggregateTypeDelivery      OutboxAggregateType = "delivery"
	OutboxAggregateTypeInvoice       OutboxAggregateType = "invoice"
	OutboxAggregateTypeCreditAccount OutboxAggregateType = "credit_account"
)

var validOutboxAggregateTypes = []OutboxAggregateType{
	OutboxAggregateTypeOrder,
	OutboxAggregateTypeSubscription,
	OutboxAggregateTypeDelivery,
	OutboxAggregateTypeInvoice,
	OutboxAggregateTypeCreditAccount,
}

// String implements fmt.Stringer.
func (t OutboxAggregateType) String() string {
	return string(t)
}

// IsValid reports whether the value is known.
func (t OutboxAggregateType) IsValid() bool {
	for _, candidate := range validOutboxAggregateTypes {
		if candidate == t {
			return true
		}
	}
	return false
}
