package realtime

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/tabsync/tabsync/internal/infrastructure/auth"
	"github.com/tabsync/tabsync/internal/infrastructure/logging"
	"github.com/tabsync/tabsync/internal/infrastructure/tracing"
	"github.com/tabsync/tabsync/internal/infrastructure/ws"
	"go.opentelemetry.io/otel/attribute"
)

type Handler struct {
	hub        *ws.Hub
	gatekeeper *auth.Gatekeeper
	logger     logging.Logger
}

func NewHandler(hub *ws.Hub, gatekeeper *auth.Gatekeeper, logger logging.Logger) *Handler {
	return &Handler{
		hub:        hub,
		gatekeeper: gatekeeper,
		logger:     logger,
	}
}

// ServeWS upgrades the connection, authenticates the handshake and
// hands the client to the hub. A failed authentication sends one
// error:auth frame and tears the socket down: no anonymous connections.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GetTracer("realtime").Start(r.Context(), "ws.connect")
	defer span.End()

	identity, authErr := h.gatekeeper.Authenticate(r.WithContext(ctx))

	conn, err := h.hub.RoomManager().Upgrade(w, r)
	if err != nil {
		h.logger.Warn(logging.WebSocket, logging.Connect, "upgrade failed", map[logging.ExtraKey]any{
			logging.ClientIp:     r.RemoteAddr,
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	if authErr != nil {
		h.logger.Warn(logging.WebSocket, logging.Auth, "authentication rejected", map[logging.ExtraKey]any{
			logging.ClientIp:     r.RemoteAddr,
			logging.ErrorMessage: authErr.Error(),
		})

		_ = conn.WriteJSON(ws.NewAuthErrorEnvelope(publicAuthError(authErr)))
		_ = conn.Close()
		return
	}

	span.SetAttributes(
		attribute.String("tenant.id", identity.TenantID),
		attribute.String("identity.kind", string(identity.Kind)),
	)

	client := ws.NewClient(conn, uuid.NewString(), identity)
	h.hub.Register(client)

	go client.WritePump(h.hub)
	go client.ReadPump(h.hub)
}

// publicAuthError maps internal auth failures to client-safe messages.
func publicAuthError(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, auth.ErrInvalidToken):
		return "invalid token"
	case errors.Is(err, auth.ErrUnknownTable):
		return "unknown table code"
	case errors.Is(err, auth.ErrTableUnavailable):
		return "table not available for ordering"
	case errors.Is(err, auth.ErrMissingCredentials):
		return "missing credentials"
	}
	return "authentication failed"
}
