package enums

import "fmt"

// PaymentMode is how a customer settles an order or invoice.
type PaymentMode string

const (
	PaymentModeCash   PaymentMode = "CASH"
	PaymentModeUPI    PaymentMode = "UPI"
	PaymentModeCredit PaymentMode = "CREDIT"
	PaymentModeOnline PaymentMode = "ONLINE"
)

var validPaymentModes = []PaymentMode{
	PaymentModeCash,
	PaymentModeUPI,
	PaymentModeCredit,
	PaymentModeOnline,
}

// String implements fmt.Stringer.
func (m PaymentMode) String() string {
	return string(m)
}

// IsValid reports whether the value is known.
func (m PaymentMode) IsValid() bool {
	for _, candidate := range validPaymentModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParsePaymentMode converts raw input into a PaymentMode.
func ParsePaymentMode(value string) (PaymentMode, error) {
	for _, candidate := range validPaymentModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment mode %q", value)
}
