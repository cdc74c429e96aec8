package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tabsync/tabsync/internal/domain"
	"github.com/tabsync/tabsync/internal/infrastructure/logging"
	"github.com/tabsync/tabsync/internal/infrastructure/ordercache"
)

type fakeOrderRepo struct {
	orders map[string]domain.Order
	errors map[string]error
}

func (f *fakeOrderRepo) GetByID(_ context.Context, tenantID, orderID string) (domain.Order, error) {
	if err, ok := f.errors[orderID]; ok {
		return domain.Order{}, err
	}
	order, ok := f.orders[tenantID+":"+orderID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

func (f *fakeOrderRepo) FindActiveByTenant(context.Context, string) ([]domain.Order, error) {
	return nil, nil
}

func (f *fakeOrderRepo) FindRecentByTable(context.Context, string, time.Time) ([]domain.Order, error) {
	return nil, nil
}

func (f *fakeOrderRepo) UpdateStatus(context.Context, string, string, domain.OrderStatus) (domain.Order, error) {
	return domain.Order{}, errors.New("not implemented")
}

func (f *fakeOrderRepo) UpdateItemStatus(context.Context, string, string, string, string) (domain.Order, error) {
	return domain.Order{}, errors.New("not implemented")
}

func seed(t *testing.T, cache *ordercache.Cache, tenantID, orderID string, status domain.OrderStatus) {
	t.Helper()
	err := cache.Upsert(domain.ActiveOrderSnapshot{
		OrderID:  orderID,
		TenantID: tenantID,
		Status:   status,
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
}

func TestRunOnce_EvictsTerminalAndMissingOrders(t *testing.T) {
	cache := ordercache.New(ordercache.NewMemoryStore(), time.Hour)
	defer cache.Close()

	repo := &fakeOrderRepo{orders: map[string]domain.Order{
		"t1:active":   {ID: "active", TenantID: "t1", Status: domain.OrderPreparing},
		"t1:finished": {ID: "finished", TenantID: "t1", Status: domain.OrderServed},
	}}

	seed(t, cache, "t1", "active", domain.OrderPreparing)
	seed(t, cache, "t1", "finished", domain.OrderPreparing)
	seed(t, cache, "t1", "ghost", domain.OrderPending) // not in the store

	job := NewReconcileJob(cache, repo, logging.NewNopLogger(), time.Hour)
	if err := job.RunOnce(context.Background()); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	if _, ok, _ := cache.Get("t1", "active"); !ok {
		t.Error("active order should stay cached")
	}
	if _, ok, _ := cache.Get("t1", "finished"); ok {
		t.Error("served order should be evicted")
	}
	if _, ok, _ := cache.Get("t1", "ghost"); ok {
		t.Error("missing order should be evicted")
	}
}

func TestRunOnce_SkipsOrdersOnLookupError(t *testing.T) {
	cache := ordercache.New(ordercache.NewMemoryStore(), time.Hour)
	defer cache.Close()

	repo := &fakeOrderRepo{
		orders: map[string]domain.Order{},
		errors: map[string]error{"flaky": errors.New("timeout")},
	}

	seed(t, cache, "t1", "flaky", domain.OrderPending)

	job := NewReconcileJob(cache, repo, logging.NewNopLogger(), time.Hour)
	if err := job.RunOnce(context.Background()); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	// A transient lookup failure keeps the entry for the next cycle.
	if _, ok, _ := cache.Get("t1", "flaky"); !ok {
		t.Error("entry with lookup error should survive the sweep")
	}
}

func TestStartStop(t *testing.T) {
	cache := ordercache.New(ordercache.NewMemoryStore(), time.Hour)
	defer cache.Close()

	job := NewReconcileJob(cache, &fakeOrderRepo{}, logging.NewNopLogger(), time.Hour)

	done := make(chan struct{})
	go func() {
		job.Start(context.Background())
		close(done)
	}()

	job.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job did not stop")
	}

	// Shutdown paths can overlap; a second Stop must be a no-op.
	job.Stop()
}
