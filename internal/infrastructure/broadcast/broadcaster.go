package broadcast

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tabsync/tabsync/internal/domain"
	"github.com/tabsync/tabsync/internal/infrastructure/logging"
	"github.com/tabsync/tabsync/internal/infrastructure/metrics"
	"github.com/tabsync/tabsync/internal/infrastructure/ordercache"
	"github.com/tabsync/tabsync/internal/infrastructure/ws"
)

// Backplane is the cross-instance leg of event distribution. A failed
// publish degrades to local-only delivery, never blocks it.
type Backplane interface {
	Publish(ctx context.Context, event domain.DomainEvent) error
}

// Broadcaster fans committed domain events out to local rooms, to
// sibling instances, and into the active-order cache. Publish is called
// in commit order per causal key; that order is preserved end to end
// through the hub's FIFO channel.
type Broadcaster struct {
	hub     *ws.Hub
	back    Backplane
	cache   *ordercache.Cache
	logger  logging.Logger
	metrics *metrics.Metrics
}

func NewBroadcaster(hub *ws.Hub, back Backplane, cache *ordercache.Cache, logger logging.Logger, m *metrics.Metrics) *Broadcaster {
	return &Broadcaster{
		hub:     hub,
		back:    back,
		cache:   cache,
		logger:  logger,
		metrics: m,
	}
}

// Publish distributes one committed event. Local fanout always runs;
// backplane and cache failures are degraded-and-logged, per-event.
func (b *Broadcaster) Publish(ctx context.Context, event domain.DomainEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.metrics.EventsPublished.WithLabelValues(string(event.Type)).Inc()

	b.hub.Broadcast(ws.NewDomainEnvelope(event), targetRooms(event)...)

	b.applyCacheEffects(event)

	if b.back != nil {
		if err := b.back.Publish(ctx, event); err != nil {
			b.metrics.BackplaneErrors.Inc()
			b.logger.Error(logging.RabbitMQ, logging.Backplane, "backplane publish failed, delivery degraded to local", map[logging.ExtraKey]any{
				logging.TenantID:     event.TenantID,
				logging.EventType:    string(event.Type),
				logging.ErrorMessage: err.Error(),
			})
		}
	}
}

// HandleRemote re-emits an event received from a sibling instance to
// local rooms only. The origin instance already updated the shared
// cache and must not be echoed back.
func (b *Broadcaster) HandleRemote(event domain.DomainEvent) {
	b.hub.Broadcast(ws.NewDomainEnvelope(event), targetRooms(event)...)
}

// OnOrderCommitted is the mutation-layer entry point, called exactly
// once per durable commit.
func (b *Broadcaster) OnOrderCommitted(ctx context.Context, order domain.Order, previousStatus domain.OrderStatus) {
	payload := orderPayload(order)
	if previousStatus != "" {
		payload["previousStatus"] = string(previousStatus)
	}

	// order:ready fires on the transition into READY only; a commit
	// that leaves an already-ready order ready is a plain status event.
	eventType := domain.EventOrderStatus
	switch {
	case previousStatus == "":
		eventType = domain.EventOrderNew
	case order.Status == domain.OrderReady && previousStatus != domain.OrderReady:
		eventType = domain.EventOrderReady
	}

	b.Publish(ctx, domain.DomainEvent{
		Type:      eventType,
		TenantID:  order.TenantID,
		CausalKey: order.ID,
		Payload:   payload,
	})

	// Waiters get their own pickup signal once an order turns ready.
	if eventType == domain.EventOrderReady {
		b.Publish(ctx, domain.DomainEvent{
			Type:      domain.EventOrderReadyPickup,
			TenantID:  order.TenantID,
			CausalKey: order.ID,
			Payload:   orderPayload(order),
		})
	}
}

// OnTableCommitted distributes table state changes to the tenant staff.
func (b *Broadcaster) OnTableCommitted(ctx context.Context, table domain.Table) {
	b.Publish(ctx, domain.DomainEvent{
		Type:      domain.EventTableStatus,
		TenantID:  table.TenantID,
		CausalKey: table.ID,
		Payload: map[string]any{
			"tenantId": table.TenantID,
			"tableId":  table.ID,
			"status":   string(table.Status),
		},
	})
}

// OnMenuItemAvailability distributes menu availability flips.
func (b *Broadcaster) OnMenuItemAvailability(ctx context.Context, tenantID, menuItemID string, available bool) {
	b.Publish(ctx, domain.DomainEvent{
		Type:      domain.EventMenuAvailability,
		TenantID:  tenantID,
		CausalKey: menuItemID,
		Payload: map[string]any{
			"tenantId":   tenantID,
			"menuItemId": menuItemID,
			"available":  available,
		},
	})
}

func (b *Broadcaster) applyCacheEffects(event domain.DomainEvent) {
	if b.cache == nil {
		return
	}

	switch event.Type {
	case domain.EventOrderNew, domain.EventOrderStatus, domain.EventOrderReady:
	default:
		return
	}

	snap, ok := snapshotFromPayload(event)
	if !ok {
		return
	}

	var err error
	if snap.Status.Terminal() {
		err = b.cache.Remove(snap.TenantID, snap.OrderID)
	} else {
		err = b.cache.Upsert(snap)
	}

	if err != nil {
		b.logger.Error(logging.Redis, logging.Cache, "active-order cache update failed", map[logging.ExtraKey]any{
			logging.TenantID:     event.TenantID,
			logging.OrderID:      snap.OrderID,
			logging.ErrorMessage: err.Error(),
		})
	}
}

// targetRooms derives delivery targets from event type and tenant.
func targetRooms(event domain.DomainEvent) []domain.RoomID {
	tableID, _ := event.Payload["tableId"].(string)

	switch event.Type {
	case domain.EventOrderNew:
		rooms := []domain.RoomID{domain.KitchenRoom(event.TenantID)}
		if tableID != "" {
			rooms = append(rooms, domain.TableRoom(tableID))
		}
		return rooms

	case domain.EventOrderStatus:
		rooms := []domain.RoomID{domain.TenantRoom(event.TenantID)}
		if tableID != "" {
			rooms = append(rooms, domain.TableRoom(tableID))
		}
		return rooms

	case domain.EventOrderReady:
		if tableID != "" {
			return []domain.RoomID{domain.TableRoom(tableID)}
		}
		return []domain.RoomID{domain.TenantRoom(event.TenantID)}

	case domain.EventOrderReadyPickup:
		return []domain.RoomID{domain.RoleRoom(event.TenantID, domain.RoleWaiter)}

	case domain.EventTableStatus, domain.EventMenuAvailability, domain.EventTableAssistance:
		return []domain.RoomID{domain.TenantRoom(event.TenantID)}
	}

	return []domain.RoomID{domain.TenantRoom(event.TenantID)}
}

func orderPayload(order domain.Order) map[string]any {
	return map[string]any{
		"tenantId":    order.TenantID,
		"orderId":     order.ID,
		"tableId":     order.TableID,
		"status":      string(order.Status),
		"itemCount":   len(order.Items),
		"totalAmount": order.TotalAmount,
		"items":       order.Items,
	}
}

func snapshotFromPayload(event domain.DomainEvent) (domain.ActiveOrderSnapshot, bool) {
	orderID, _ := event.Payload["orderId"].(string)
	if orderID == "" {
		return domain.ActiveOrderSnapshot{}, false
	}

	tableID, _ := event.Payload["tableId"].(string)
	status, _ := event.Payload["status"].(string)
	itemCount, _ := event.Payload["itemCount"].(int)

	var total int64
	switch v := event.Payload["totalAmount"].(type) {
	case int64:
		total = v
	case float64:
		total = int64(v)
	}

	return domain.ActiveOrderSnapshot{
		OrderID:     orderID,
		TenantID:    event.TenantID,
		TableID:     tableID,
		Status:      domain.OrderStatus(status),
		ItemCount:   itemCount,
		TotalAmount: total,
		UpdatedAt:   event.Timestamp,
	}, true
}
