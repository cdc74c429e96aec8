package client

// Server-originated event types.
const (
	Connected      = "connected"
	ServerShutdown = "server:shutdown"

	// Disconnected is synthesized locally when the link drops, before
	// any reconnect attempt; the server never sends it.
	Disconnected = "disconnected"
	StateSync      = "state:sync"
	SyncError      = "sync:error"

	ErrorEvent          = "error"
	AuthenticationError = "error:auth"
	RateLimited         = "error:rate_limited"

	OrderNew                    = "order:new"
	OrderStatusChanged          = "order:status:changed"
	OrderReady                  = "order:ready"
	OrderReadyPickup            = "order:ready:pickup"
	TableStatusChanged          = "table:status:changed"
	MenuItemAvailabilityChanged = "menu:item:availability:changed"
	TableAssistance             = "table:assistance"
)

// Client-originated event types.
const (
	OrderAcknowledge = "order:acknowledge"
	OrderItemStatus  = "order:item:status"
)

// Envelope is the wire frame exchanged over the websocket.
type Envelope struct {
	Type      string         `json:"type"`
	TenantID  string         `json:"tenantId,omitempty"`
	CausalKey string         `json:"causalKey,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}
