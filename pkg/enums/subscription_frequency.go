package enums

import (
	"fmt"
	"strings"
)

// SubscriptionFrequency controls how delivery dates roll forward.
type SubscriptionFrequency string

const (
	SubscriptionFrequencyDaily  SubscriptionFrequency = "daily"
	SubscriptionFrequencyWeekly SubscriptionFrequency = "weekly"
	SubscriptionFrequencyCustom SubscriptionFrequency = "custom"
)

var validSubscriptionFrequencies = []SubscriptionFrequency{
	SubscriptionFrequencyDaily,
	SubscriptionFrequencyWeekly,
	SubscriptionFrequencyCustom,
}

// String implements fmt.Stringer.
func (f SubscriptionFrequency) String() string {
	return string(f)
}

// IsValid reports whether the value is known.
func (f SubscriptionFrequency) IsValid() bool {
	for _, candidate := range validSubscriptionFrequencies {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseSubscriptionFrequency converts raw input into a SubscriptionFrequency.
func ParseSubscriptionFrequency(value string) (SubscriptionFrequency, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validSubscriptionFrequencies {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription frequency %q", value)
}
