package enums

import "fmt"

// CreditTransactionType classifies a khata ledger entry. The amount on an
// entry is always a non-negative magnitude; direction comes from the type.
type CreditTransactionType string

const (
	CreditTransactionTypeCredit     CreditTransactionType = "CREDIT"
	CreditTransactionTypeDebit      CreditTransactionType = "DEBIT"
	CreditTransactionTypePayment    CreditTransactionType = "PAYMENT"
	CreditTransactionTypeAdjustment CreditTransactionType = "ADJUSTMENT"
	CreditTransactionTypeInterest   CreditTransactionType = "INTEREST"
	CreditTransactionTypeFee        CreditTransactionType = "FEE"
)

var validCreditTransactionTypes = []CreditTransactionType{
	CreditTransactionTypeCredit,
	CreditTransactionTypeDebit,
	CreditTransactionTypePayment,
	CreditTransactionTypeAdjustment,
	CreditTransactionTypeInterest,
	CreditTransactionTypeFee,
}

// String implements fmt.Stringer.
func (t CreditTransactionType) String() string {
	return string(t)
}

// IsValid reports whether the value is known.
func (t CreditTransactionType) IsValid() bool {
	for _, candidate := range validCreditTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseCreditTransactionType converts raw input into a CreditTransactionType.
func ParseCreditTransactionType(value string) (CreditTransactionType, error) {
	for _, candidate := range validCreditTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid credit transaction type %q", value)
}
