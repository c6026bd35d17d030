package enums

import "fmt"

// CouponType selects how a coupon discount is computed.
type CouponType string

const (
	CouponTypePercent CouponType = "PERCENT"
	CouponTypeFixed   CouponType = "FIXED"
)

var validCouponTypes = []CouponType{
	CouponTypePercent,
	CouponTypeFixed,
}

// String implements fmt.Stringer.
func (t CouponType) String() string {
	return string(t)
}

// IsValid reports whether the value is known.
func (t CouponType) IsValid() bool {
	for _, candidate := range validCouponTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseCouponType converts raw input into a CouponType.
func ParseCouponType(value string) (CouponType, error) {
	for _, candidate := range validCouponTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid coupon type %q", value)
}
