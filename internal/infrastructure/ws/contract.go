package ws

import (
	"time"

	"github.com/tabsync/tabsync/internal/domain"
)

// Envelope is the wire frame for every event in either direction.
// Domain payloads always carry enough scope identifiers (tenant, order,
// table) for the client to route them without further lookups.
type Envelope struct {
	Type      string `json:"type"`
	TenantID  string `json:"tenantId,omitempty"`
	CausalKey string `json:"causalKey,omitempty"`
	Data      any    `json:"data,omitempty"`
}

type ConnectedPayload struct {
	ConnectionID string          `json:"connectionId"`
	Identity     domain.Identity `json:"identity"`
	Rooms        []domain.RoomID `json:"rooms"`
}

// SyncPayload is the full-state snapshot sent once, before any live
// delta, right after room join. It is the sole recovery mechanism for
// events missed while disconnected.
type SyncPayload struct {
	AsOf   time.Time      `json:"asOf"`
	Orders []domain.Order `json:"orders"`
	Tables []domain.Table `json:"tables,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Retry   bool   `json:"retry,omitempty"`
}

type RateLimitedPayload struct {
	Message   string `json:"message"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
}

func NewConnected(connectionID string, identity domain.Identity, rooms []domain.RoomID) *Envelope {
	return &Envelope{
		Type:     Connected,
		TenantID: identity.TenantID,
		Data: ConnectedPayload{
			ConnectionID: connectionID,
			Identity:     identity,
			Rooms:        rooms,
		},
	}
}

func NewStateSync(tenantID string, payload *SyncPayload) *Envelope {
	return &Envelope{
		Type:     StateSync,
		TenantID: tenantID,
		Data:     payload,
	}
}

func NewSyncError(tenantID, message string) *Envelope {
	return &Envelope{
		Type:     SyncError,
		TenantID: tenantID,
		Data: ErrorPayload{
			Code:    "SNAPSHOT_FAILED",
			Message: message,
			Retry:   true,
		},
	}
}

func NewRateLimited(limit, remaining int) *Envelope {
	return &Envelope{
		Type: RateLimited,
		Data: RateLimitedPayload{
			Message:   "rate limit exceeded, event dropped",
			Limit:     limit,
			Remaining: remaining,
		},
	}
}

func NewAuthErrorEnvelope(message string) *Envelope {
	return &Envelope{
		Type: AuthError,
		Data: ErrorPayload{
			Code:    "AUTH_FAILED",
			Message: message,
		},
	}
}

func NewServerShutdown() *Envelope {
	return &Envelope{
		Type: ServerShutdown,
		Data: ErrorPayload{
			Message: "server shutting down, reconnect shortly",
			Retry:   true,
		},
	}
}

func NewError(message string) *Envelope {
	return &Envelope{
		Type: ErrorEvent,
		Data: ErrorPayload{Message: message},
	}
}

// NewDomainEnvelope wraps a committed domain event for delivery.
func NewDomainEnvelope(event domain.DomainEvent) *Envelope {
	return &Envelope{
		Type:      string(event.Type),
		TenantID:  event.TenantID,
		CausalKey: event.CausalKey,
		Data:      event.Payload,
	}
}
