package enums

import "fmt"

// PriceOptionStatus marks whether a price tier can be purchased.
type PriceOptionStatus string

const (
	PriceOptionStatusActive   PriceOptionStatus = "ACTIVE"
	PriceOptionStatusDisabled PriceOptionStatus = "DISABLED"
)

var validPriceOptionStatuses = []PriceOptionStatus{
	PriceOptionStatusActive,
	PriceOptionStatusDisabled,
}

// String implements fmt.Stringer.
func (p PriceOptionStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PriceOptionStatus.
func (p PriceOptionStatus) IsValid() bool {
	for _, candidate := range validPriceOptionStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePriceOptionStatus converts raw input into a PriceOptionStatus.
func ParsePriceOptionStatus(value string) (PriceOptionStatus, error) {
	for _, candidate := range validPriceOptionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid price option status %q", value)
}
