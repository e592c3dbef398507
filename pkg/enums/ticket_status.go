package enums

import "fmt"

// TicketStatus tracks the redemption state of an issued ticket.
type TicketStatus string

const (
	TicketStatusValid   TicketStatus = "VALID"
	TicketStatusUsed    TicketStatus = "USED"
	TicketStatusExpired TicketStatus = "EXPIRED"
)

var validTicketStatuses = []TicketStatus{
	TicketStatusValid,
	TicketStatusUsed,
	TicketStatusExpired,
}

// String implements fmt.Stringer.
func (s TicketStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known TicketStatus.
func (s TicketStatus) IsValid() bool {
	for _, candidate := range validTicketStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseTicketStatus converts raw input into a TicketStatus.
func ParseTicketStatus(value string) (TicketStatus, error) {
	for _, candidate := range validTicketStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ticket status %q", value)
}
