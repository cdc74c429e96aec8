package ws

import (
	"context"
	"sync"
	"time"

	"github.com/tabsync/tabsync/internal/domain"
	"github.com/tabsync/tabsync/internal/infrastructure/logging"
	"github.com/tabsync/tabsync/internal/infrastructure/metrics"
	"github.com/tabsync/tabsync/internal/infrastructure/ratelimiter"
)

// ClientEventHandler processes a rate-limited client-originated event.
// Implementations commit the mutation first and publish only after the
// commit is durable.
type ClientEventHandler interface {
	HandleClientEvent(ctx context.Context, identity domain.Identity, env *Envelope) error
}

const staleSweepInterval = time.Hour

type roomCast struct {
	env   *Envelope
	rooms []domain.RoomID
}

type inboundEvent struct {
	client *Client
	env    *Envelope
}

type syncResult struct {
	client  *Client
	payload *SyncPayload
	err     error
}

// Hub owns every local connection: registration, room membership,
// snapshot sequencing and local fanout all run through its single loop,
// so per-connection state (live flag, pending buffer) needs no locks.
type Hub struct {
	rooms   *RoomManager
	syncer  *Synchronizer
	limiter ratelimiter.Limiter
	handler ClientEventHandler
	logger  logging.Logger
	metrics *metrics.Metrics

	register   chan *Client
	unregister chan *Client
	broadcast  chan roomCast
	inbound    chan inboundEvent
	synced     chan syncResult

	dispatchTimeout time.Duration

	shutdown chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

func NewHub(syncer *Synchronizer, limiter ratelimiter.Limiter, logger logging.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		rooms:           NewRoomManager(),
		syncer:          syncer,
		limiter:         limiter,
		logger:          logger,
		metrics:         m,
		register:        make(chan *Client),
		unregister:      make(chan *Client),
		broadcast:       make(chan roomCast, 256),
		inbound:         make(chan inboundEvent, 256),
		synced:          make(chan syncResult),
		dispatchTimeout: 5 * time.Second,
		shutdown:        make(chan struct{}),
	}
}

// SetHandler wires the client-event dispatcher. Must be called before
// Run; split from the constructor because the dispatcher needs the hub
// for local fanout.
func (h *Hub) SetHandler(handler ClientEventHandler) {
	h.handler = handler
}

func (h *Hub) RoomManager() *RoomManager {
	return h.rooms
}

func (h *Hub) Run(ctx context.Context) {
	defer h.wg.Wait()

	sweep := time.NewTicker(staleSweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			h.Shutdown()
			return

		case <-h.shutdown:
			return

		case <-sweep.C:
			h.sweepStale()

		case cl := <-h.register:
			h.handleRegister(ctx, cl)

		case cl := <-h.unregister:
			h.handleUnregister(cl)

		case res := <-h.synced:
			h.handleSynced(res)

		case ev := <-h.inbound:
			h.handleInbound(ctx, ev)

		case cast := <-h.broadcast:
			h.deliver(cast)
		}
	}
}

// Register hands a freshly authenticated connection to the hub loop.
func (h *Hub) Register(cl *Client) {
	select {
	case h.register <- cl:
	case <-h.shutdown:
		cl.Close()
	}
}

// Unregister runs on every disconnect path; duplicate calls collapse
// into the idempotent leave.
func (h *Hub) Unregister(cl *Client) {
	select {
	case h.unregister <- cl:
	case <-h.shutdown:
	}
}

// Inbound enqueues a client-originated event for rate limiting and
// dispatch.
func (h *Hub) Inbound(cl *Client, env *Envelope) {
	select {
	case h.inbound <- inboundEvent{client: cl, env: env}:
	case <-h.shutdown:
	}
}

// Broadcast fans an envelope out to the given local rooms. Callers
// invoke it in commit order per causal key; the FIFO channel preserves
// that order through to delivery.
func (h *Hub) Broadcast(env *Envelope, rooms ...domain.RoomID) {
	select {
	case h.broadcast <- roomCast{env: env, rooms: rooms}:
	case <-h.shutdown:
	}
}

func (h *Hub) Stats() Stats {
	return h.rooms.Stats()
}

func (h *Hub) handleRegister(ctx context.Context, cl *Client) {
	rooms := domain.RoomsFor(cl.Identity)
	h.rooms.Join(cl, rooms)

	h.metrics.Connections.WithLabelValues(
		cl.Identity.TenantID,
		metrics.RoleLabel(cl.Identity.IsStaff(), string(cl.Identity.Role)),
	).Inc()

	cl.TrySend(NewConnected(cl.ID, cl.Identity, rooms))

	h.logger.Info(logging.WebSocket, logging.Connect, "connection registered", map[logging.ExtraKey]any{
		logging.ConnectionID: cl.ID,
		logging.TenantID:     cl.Identity.TenantID,
	})

	// The client is already in its rooms, so no delta can be missed:
	// everything broadcast from here on is parked in the pending buffer
	// until the snapshot has been flushed.
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		payload, err := h.syncer.Snapshot(ctx, cl.Identity)

		select {
		case h.synced <- syncResult{client: cl, payload: payload, err: err}:
		case <-h.shutdown:
		case <-cl.closed:
		}
	}()
}

func (h *Hub) handleSynced(res syncResult) {
	cl := res.client
	if cl.IsClosed() {
		return
	}

	if res.err != nil {
		h.metrics.SnapshotFailures.Inc()
		h.logger.Error(logging.WebSocket, logging.Sync, "snapshot failed", map[logging.ExtraKey]any{
			logging.ConnectionID: cl.ID,
			logging.TenantID:     cl.Identity.TenantID,
			logging.ErrorMessage: res.err.Error(),
		})
		cl.TrySend(NewSyncError(cl.Identity.TenantID, "state snapshot unavailable"))
	} else {
		cl.TrySend(NewStateSync(cl.Identity.TenantID, res.payload))
	}

	// Flush deltas that arrived during the snapshot query. Duplicates
	// against the snapshot are safe: consumers are idempotent on status.
	for _, env := range cl.pending {
		if !cl.TrySend(env) {
			h.metrics.EventsDropped.Inc()
		}
	}
	cl.pending = nil
	cl.live = true
}

func (h *Hub) handleUnregister(cl *Client) {
	rooms := h.rooms.Rooms(cl.ID)
	if len(rooms) == 0 {
		return
	}

	h.rooms.Leave(cl)
	h.limiter.Release(cl.ID)

	h.metrics.Connections.WithLabelValues(
		cl.Identity.TenantID,
		metrics.RoleLabel(cl.Identity.IsStaff(), string(cl.Identity.Role)),
	).Dec()

	h.logger.Info(logging.WebSocket, logging.Connect, "connection unregistered", map[logging.ExtraKey]any{
		logging.ConnectionID: cl.ID,
		logging.TenantID:     cl.Identity.TenantID,
	})

	cl.Close()
}

func (h *Hub) handleInbound(ctx context.Context, ev inboundEvent) {
	cl := ev.client

	eventType := domain.EventType(ev.env.Type)
	if !eventType.ClientOriginated() {
		cl.TrySend(NewError("unsupported client event: " + ev.env.Type))
		return
	}

	if !h.limiter.Allow(cl.ID, 1) {
		h.metrics.RateLimitRejections.Inc()
		h.logger.Warn(logging.General, logging.RateLimiting, "client event rejected", map[logging.ExtraKey]any{
			logging.ConnectionID: cl.ID,
			logging.TenantID:     cl.Identity.TenantID,
			logging.EventType:    ev.env.Type,
		})
		cl.TrySend(NewRateLimited(h.limiter.Capacity(), h.limiter.Remaining(cl.ID)))
		return
	}

	if h.handler == nil {
		return
	}

	// Dispatch off the hub loop: the handler performs store I/O.
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		dispatchCtx, cancel := context.WithTimeout(ctx, h.dispatchTimeout)
		defer cancel()

		if err := h.handler.HandleClientEvent(dispatchCtx, cl.Identity, ev.env); err != nil {
			h.logger.Error(logging.WebSocket, logging.Broadcast, "client event failed", map[logging.ExtraKey]any{
				logging.ConnectionID: cl.ID,
				logging.EventType:    ev.env.Type,
				logging.ErrorMessage: err.Error(),
			})
			cl.TrySend(NewError("event could not be processed"))
		}
	}()
}

func (h *Hub) deliver(cast roomCast) {
	// Tenant scoping is enforced again at the delivery boundary: an
	// envelope never reaches rooms of another tenant.
	rooms := cast.rooms[:0:0]
	for _, roomID := range cast.rooms {
		if cast.env.TenantID != "" && !roomID.IsTableRoom() && !roomID.BelongsToTenant(cast.env.TenantID) {
			continue
		}
		rooms = append(rooms, roomID)
	}

	for _, cl := range h.rooms.Members(rooms) {
		if cl.IsClosed() {
			// Stale handle: fail soft and let unregister clean up.
			h.metrics.EventsDropped.Inc()
			continue
		}

		if !cl.live {
			if len(cl.pending) < pendingBufferCap {
				cl.pending = append(cl.pending, cast.env)
			} else {
				h.metrics.EventsDropped.Inc()
			}
			continue
		}

		if cl.TrySend(cast.env) {
			h.metrics.EventsDelivered.Inc()
		} else {
			h.metrics.EventsDropped.Inc()
		}
	}
}

// Shutdown notifies every connection, then tears the hub down. Safe to
// call more than once.
func (h *Hub) Shutdown() {
	h.once.Do(func() {
		notice := NewServerShutdown()
		for _, cl := range h.allClients() {
			cl.TrySend(notice)
		}

		close(h.shutdown)
		h.rooms.DisconnectAll()

		h.logger.Info(logging.General, logging.Shutdown, "hub stopped", nil)
	})
}

// sweepStale evicts room entries whose client closed without the
// unregister path running. Normally a no-op; it exists so a missed
// disconnect can never leak membership forever.
func (h *Hub) sweepStale() {
	for _, cl := range h.allClients() {
		if cl.IsClosed() {
			h.handleUnregister(cl)
		}
	}
}

func (h *Hub) allClients() []*Client {
	rm := h.rooms
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	seen := make(map[string]*Client)
	for _, room := range rm.rooms {
		for id, cl := range room {
			seen[id] = cl
		}
	}

	out := make([]*Client, 0, len(seen))
	for _, cl := range seen {
		out = append(out, cl)
	}
	return out
}
