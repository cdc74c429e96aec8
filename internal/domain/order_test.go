package domain

import (
	"testing"
	"time"
)

func TestOrderStatusTerminal(t *testing.T) {
	terminal := []OrderStatus{OrderServed, OrderCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}

	active := []OrderStatus{OrderPending, OrderConfirmed, OrderPreparing, OrderReady}
	for _, s := range active {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestTableStatusOrderable(t *testing.T) {
	if !TableAvailable.Orderable() || !TableOccupied.Orderable() {
		t.Error("available and occupied tables accept sessions")
	}
	if TableReserved.Orderable() || TableOutOfOrder.Orderable() {
		t.Error("reserved and out-of-order tables reject sessions")
	}
}

func TestSnapshotOf(t *testing.T) {
	now := time.Now()
	order := Order{
		ID:          "o1",
		TenantID:    "t1",
		TableID:     "table-9",
		Status:      OrderPreparing,
		Items:       []OrderItem{{ID: "i1"}, {ID: "i2"}},
		TotalAmount: 2450,
		UpdatedAt:   now,
	}

	snap := SnapshotOf(order)
	if snap.OrderID != "o1" || snap.TenantID != "t1" || snap.TableID != "table-9" {
		t.Errorf("unexpected identity fields: %+v", snap)
	}
	if snap.Status != OrderPreparing {
		t.Errorf("expected status PREPARING, got %s", snap.Status)
	}
	if snap.ItemCount != 2 {
		t.Errorf("expected 2 items, got %d", snap.ItemCount)
	}
	if snap.TotalAmount != 2450 {
		t.Errorf("expected amount 2450, got %d", snap.TotalAmount)
	}
	if !snap.UpdatedAt.Equal(now) {
		t.Errorf("expected updatedAt preserved")
	}
}

func TestEventTypeClientOriginated(t *testing.T) {
	clientEvents := []EventType{EventOrderAcknowledge, EventOrderItemStatus, EventTableAssistance}
	for _, e := range clientEvents {
		if !e.ClientOriginated() {
			t.Errorf("%s should be client-originated", e)
		}
	}

	serverEvents := []EventType{EventOrderNew, EventOrderStatus, EventOrderReady, EventTableStatus}
	for _, e := range serverEvents {
		if e.ClientOriginated() {
			t.Errorf("%s should not be client-originated", e)
		}
	}
}
