package enums

import "fmt"

// InvoiceStatus tracks an invoice from draft through settlement.
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "DRAFT"
	InvoiceStatusSent          InvoiceStatus = "SENT"
	InvoiceStatusPaid          InvoiceStatus = "PAID"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceStatusOverdue       InvoiceStatus = "OVERDUE"
	InvoiceStatusCancelled     InvoiceStatus = "CANCELLED"
)

var validInvoiceStatuses = []InvoiceStatus{
	InvoiceStatusDraft,
	InvoiceStatusSent,
	InvoiceStatusPaid,
	InvoiceStatusPartiallyPaid,
	InvoiceStatusOverdue,
	InvoiceStatusCancelled,
}

var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft: {
		InvoiceStatusSent,
		InvoiceStatusCancelled,
	},
	InvoiceStatusSent: {
		InvoiceStatusPaid,
		InvoiceStatusPartiallyPaid,
		InvoiceStatusOverdue,
		InvoiceStatusCancelled,
	},
	InvoiceStatusPartiallyPaid: {
		InvoiceStatusPaid,
		InvoiceStatusOverdue,
		InvoiceStatusCancelled,
	},
	InvoiceStatusOverdue: {
		InvoiceStatusPaid,
		InvoiceStatusPartiallyPaid,
		InvoiceStatusCancelled,
	},
}

// String implements fmt.Stringer.
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s InvoiceStatus) IsValid() bool {
	for _, candidate := range validInvoiceStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status accepts no further transitions.
func (s InvoiceStatus) IsTerminal() bool {
	return len(invoiceTransitions[s]) == 0
}

// CanTransitionTo reports whether moving from s to next is permitted.
func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	for _, candidate := range invoiceTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseInvoiceStatus converts raw input into an InvoiceStatus.
func ParseInvoiceStatus(value string) (InvoiceStatus, error) {
	for _, candidate := range validInvoiceStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid invoice status %q", value)
}
