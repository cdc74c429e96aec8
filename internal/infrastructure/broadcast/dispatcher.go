package broadcast

import (
	"context"
	"errors"
	"fmt"

	"github.com/tabsync/tabsync/internal/domain"
	"github.com/tabsync/tabsync/internal/infrastructure/ws"
)

var (
	ErrForbidden      = errors.New("identity not permitted to send this event")
	ErrInvalidPayload = errors.New("invalid event payload")
)

// Dispatcher turns rate-limited client-originated events into committed
// mutations plus broadcasts. The commit always lands before the
// publish, which is what keeps per-key publish order equal to commit
// order.
type Dispatcher struct {
	orders      domain.OrderRepository
	broadcaster *Broadcaster
}

func NewDispatcher(orders domain.OrderRepository, broadcaster *Broadcaster) *Dispatcher {
	return &Dispatcher{orders: orders, broadcaster: broadcaster}
}

func (d *Dispatcher) HandleClientEvent(ctx context.Context, identity domain.Identity, env *ws.Envelope) error {
	data, _ := env.Data.(map[string]any)

	switch domain.EventType(env.Type) {
	case domain.EventOrderAcknowledge:
		return d.acknowledgeOrder(ctx, identity, data)

	case domain.EventOrderItemStatus:
		return d.updateItemStatus(ctx, identity, data)

	case domain.EventTableAssistance:
		return d.requestAssistance(ctx, identity, data)
	}

	return fmt.Errorf("unsupported client event: %s", env.Type)
}

// acknowledgeOrder moves a pending order to CONFIRMED on behalf of
// kitchen staff.
func (d *Dispatcher) acknowledgeOrder(ctx context.Context, identity domain.Identity, data map[string]any) error {
	if !identity.IsStaff() {
		return ErrForbidden
	}

	orderID := stringField(data, "orderId")
	if orderID == "" {
		return fmt.Errorf("%w: missing orderId", ErrInvalidPayload)
	}

	order, err := d.orders.UpdateStatus(ctx, identity.TenantID, orderID, domain.OrderConfirmed)
	if err != nil {
		return fmt.Errorf("acknowledge commit failed: %w", err)
	}

	d.broadcaster.OnOrderCommitted(ctx, order, domain.OrderPending)
	return nil
}

// updateItemStatus commits an item-level kitchen progress change and
// republishes the order state.
func (d *Dispatcher) updateItemStatus(ctx context.Context, identity domain.Identity, data map[string]any) error {
	if !identity.IsStaff() {
		return ErrForbidden
	}

	orderID := stringField(data, "orderId")
	itemID := stringField(data, "itemId")
	status := stringField(data, "status")
	if orderID == "" || itemID == "" || status == "" {
		return fmt.Errorf("%w: orderId, itemId and status are required", ErrInvalidPayload)
	}

	// The order status before the commit is what consumers see as
	// previousStatus; it has to be read before the update lands.
	before, err := d.orders.GetByID(ctx, identity.TenantID, orderID)
	if err != nil {
		return fmt.Errorf("item status lookup failed: %w", err)
	}

	order, err := d.orders.UpdateItemStatus(ctx, identity.TenantID, orderID, itemID, status)
	if err != nil {
		return fmt.Errorf("item status commit failed: %w", err)
	}

	d.broadcaster.OnOrderCommitted(ctx, order, before.Status)
	return nil
}

// requestAssistance raises a waiter call for the customer's table.
// Nothing is committed; assistance calls are transient.
func (d *Dispatcher) requestAssistance(ctx context.Context, identity domain.Identity, data map[string]any) error {
	if identity.IsStaff() {
		return ErrForbidden
	}

	d.broadcaster.Publish(ctx, domain.DomainEvent{
		Type:      domain.EventTableAssistance,
		TenantID:  identity.TenantID,
		CausalKey: identity.TableID,
		Payload: map[string]any{
			"tenantId": identity.TenantID,
			"tableId":  identity.TableID,
			"note":     stringField(data, "note"),
		},
	})
	return nil
}

func stringField(data map[string]any, key string) string {
	v, _ := data[key].(string)
	return v
}
