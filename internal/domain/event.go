package domain

import "time"

// EventType names a wire-level domain event.
type EventType string

const (
	// Server-originated
	EventOrderNew         EventType = "order:new"
	EventOrderStatus      EventType = "order:status:changed"
	EventOrderReady       EventType = "order:ready"
	EventOrderReadyPickup EventType = "order:ready:pickup"
	EventTableStatus      EventType = "table:status:changed"
	EventMenuAvailability EventType = "menu:item:availability:changed"

	// Client-originated (rate limited)
	EventOrderAcknowledge EventType = "order:acknowledge"
	EventOrderItemStatus  EventType = "order:item:status"
	EventTableAssistance  EventType = "table:assistance"
)

// DomainEvent is a committed state change to be distributed to rooms.
// CausalKey is the mutated entity id: events sharing a key are published
// in commit order and must be consumed idempotently by status value,
// because backplane delivery is at-least-once.
type DomainEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	TenantID  string         `json:"tenantId"`
	CausalKey string         `json:"causalKey"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ClientOriginated reports whether the event type may arrive from a
// connected client rather than from the mutation layer.
func (t EventType) ClientOriginated() bool {
	switch t {
	case EventOrderAcknowledge, EventOrderItemStatus, EventTableAssistance:
		return true
	}
	return false
}
