package ordercache

import (
	"testing"
	"time"

	"github.com/tabsync/tabsync/internal/domain"
)

func newTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	c := New(NewMemoryStore(), ttl)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func snap(tenantID, orderID string, status domain.OrderStatus) domain.ActiveOrderSnapshot {
	return domain.ActiveOrderSnapshot{
		OrderID:   orderID,
		TenantID:  tenantID,
		TableID:   "table-9",
		Status:    status,
		UpdatedAt: time.Now(),
	}
}

func TestCache_UpsertAndGet(t *testing.T) {
	c := newTestCache(t, time.Hour)

	if err := c.Upsert(snap("t1", "o1", domain.OrderPending)); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	got, ok, err := c.Get("t1", "o1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !ok {
		t.Fatal("expected snapshot to exist")
	}
	if got.Status != domain.OrderPending {
		t.Errorf("expected PENDING, got %s", got.Status)
	}
}

func TestCache_UpsertOverwritesStatus(t *testing.T) {
	c := newTestCache(t, time.Hour)

	_ = c.Upsert(snap("t1", "o1", domain.OrderPending))
	_ = c.Upsert(snap("t1", "o1", domain.OrderPreparing))

	got, ok, _ := c.Get("t1", "o1")
	if !ok || got.Status != domain.OrderPreparing {
		t.Errorf("expected PREPARING after overwrite, got %+v ok=%v", got, ok)
	}
}

func TestCache_GetMissingReturnsFalse(t *testing.T) {
	c := newTestCache(t, time.Hour)

	_, ok, err := c.Get("t1", "nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("missing snapshot should report ok=false")
	}
}

func TestCache_Remove(t *testing.T) {
	c := newTestCache(t, time.Hour)

	_ = c.Upsert(snap("t1", "o1", domain.OrderPending))
	if err := c.Remove("t1", "o1"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	_, ok, _ := c.Get("t1", "o1")
	if ok {
		t.Error("removed snapshot should be gone")
	}
}

func TestCache_EntriesExpire(t *testing.T) {
	c := newTestCache(t, 30*time.Millisecond)

	_ = c.Upsert(snap("t1", "o1", domain.OrderPending))

	time.Sleep(50 * time.Millisecond)

	_, ok, _ := c.Get("t1", "o1")
	if ok {
		t.Error("snapshot should have expired")
	}
}

func TestCache_ListSpansTenants(t *testing.T) {
	c := newTestCache(t, time.Hour)

	_ = c.Upsert(snap("t1", "o1", domain.OrderPending))
	_ = c.Upsert(snap("t1", "o2", domain.OrderReady))
	_ = c.Upsert(snap("t2", "o1", domain.OrderConfirmed))

	snaps, err := c.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(snaps) != 3 {
		t.Errorf("expected 3 snapshots, got %d", len(snaps))
	}
}
