package enums

import "fmt"

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder OutboxAggregateType = "order"
	AggregateEvent OutboxAggregateType = "event"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateEvent,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names the domain event recorded in the outbox.
type OutboxEventType string

const (
	EventOrderCreated   OutboxEventType = "order_created"
	EventOrderPaid      OutboxEventType = "order_paid"
	EventOrderCancelled OutboxEventType = "order_cancelled"
	EventOrderRefunded  OutboxEventType = "order_refunded"
	EventOrderExpired   OutboxEventType = "order_expired"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderPaid,
	EventOrderCancelled,
	EventOrderRefunded,
	EventOrderExpired,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
