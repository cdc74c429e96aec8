package ws

import (
	"context"
	"testing"
	"time"

	"github.com/tabsync/tabsync/internal/domain"
)

type capturingOrderRepo struct {
	blockingOrderRepo
	since time.Time
}

func (r *capturingOrderRepo) FindRecentByTable(ctx context.Context, tableID string, since time.Time) ([]domain.Order, error) {
	r.since = since
	return r.blockingOrderRepo.FindRecentByTable(ctx, tableID, since)
}

func TestSnapshot_StaffGetsOrdersAndTables(t *testing.T) {
	syncer := NewSynchronizer(&blockingOrderRepo{}, stubTableRepo{}, time.Hour, time.Second)

	payload, err := syncer.Snapshot(context.Background(), staffIdentity("t1", domain.RoleChef))
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}

	if len(payload.Orders) != 1 {
		t.Errorf("expected 1 active order, got %d", len(payload.Orders))
	}
	if len(payload.Tables) != 1 {
		t.Errorf("expected 1 table, got %d", len(payload.Tables))
	}
	if payload.AsOf.IsZero() {
		t.Error("asOf must be set")
	}
}

func TestSnapshot_CustomerGetsRecentTableOrders(t *testing.T) {
	repo := &capturingOrderRepo{}
	window := 2 * time.Hour
	syncer := NewSynchronizer(repo, stubTableRepo{}, window, time.Second)

	identity := domain.NewCustomerIdentity("t1", "table-9", "sess")
	payload, err := syncer.Snapshot(context.Background(), identity)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}

	if len(payload.Orders) != 1 {
		t.Errorf("expected 1 recent order, got %d", len(payload.Orders))
	}
	if len(payload.Tables) != 0 {
		t.Error("customers do not receive the table list")
	}

	wantSince := payload.AsOf.Add(-window)
	if diff := repo.since.Sub(wantSince); diff < -time.Second || diff > time.Second {
		t.Errorf("since should be asOf minus the window, got %v", repo.since)
	}
}

func TestSnapshot_PropagatesStoreErrors(t *testing.T) {
	syncer := NewSynchronizer(&blockingOrderRepo{fail: true}, stubTableRepo{}, time.Hour, time.Second)

	if _, err := syncer.Snapshot(context.Background(), staffIdentity("t1", domain.RoleChef)); err == nil {
		t.Error("store errors must propagate to the caller")
	}
}
