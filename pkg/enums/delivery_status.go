package enums

import "fmt"

// DeliveryStatus tracks a scheduled delivery through its lifecycle.
type DeliveryStatus string

const (
	DeliveryStatusScheduled DeliveryStatus = "SCHEDULED"
	DeliveryStatusDelivered DeliveryStatus = "DELIVERED"
	DeliveryStatusSkipped   DeliveryStatus = "SKIPPED"
	DeliveryStatusCancelled DeliveryStatus = "CANCELLED"
	DeliveryStatusFailed    DeliveryStatus = "FAILED"
)

var validDeliveryStatuses = []DeliveryStatus{
	DeliveryStatusScheduled,
	DeliveryStatusDelivered,
	DeliveryStatusSkipped,
	DeliveryStatusCancelled,
	DeliveryStatusFailed,
}

// Transitions are one-directional: once a delivery leaves SCHEDULED it can
// never return, and terminal states accept nothing.
var deliveryTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryStatusScheduled: {
		DeliveryStatusDelivered,
		DeliveryStatusSkipped,
		DeliveryStatusCancelled,
		DeliveryStatusFailed,
	},
}

// String implements fmt.Stringer.
func (s DeliveryStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s DeliveryStatus) IsValid() bool {
	for _, candidate := range validDeliveryStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status accepts no further transitions.
func (s DeliveryStatus) IsTerminal() bool {
	return len(deliveryTransitions[s]) == 0
}

// CanTransitionTo reports whether moving from s to next is permitted.
func (s DeliveryStatus) CanTransitionTo(next DeliveryStatus) bool {
	for _, candidate := range deliveryTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseDeliveryStatus converts raw input into a DeliveryStatus.
func ParseDeliveryStatus(value string) (DeliveryStatus, error) {
	for _, candidate := range validDeliveryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery status %q", value)
}
