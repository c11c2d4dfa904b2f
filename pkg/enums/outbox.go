package enums

import (
	"fmt"
	"slices"
)

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateItem     OutboxAggregateType = "item"
	AggregateModifier OutboxAggregateType = "modifier"
	AggregateSale     OutboxAggregateType = "sale"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateItem,
	AggregateModifier,
	AggregateSale,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains(validAggregateTypes, a)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	if a := OutboxAggregateType(value); a.IsValid() {
		return a, nil
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventItemCreated       OutboxEventType = "item_created"
	EventItemStatusChanged OutboxEventType = "item_status_changed"
	EventModifierCreated   OutboxEventType = "modifier_created"
	EventSaleSettled       OutboxEventType = "sale_settled"
)

var validEventTypes = []OutboxEventType{
	EventItemCreated,
	EventItemStatusChanged,
	EventModifierCreated,
	EventSaleSettled,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	return slices.Contains(validEventTypes, e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	if e := OutboxEventType(value); e.IsValid() {
		return e, nil
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
