package ordercache

import (
	"errors"
	"strings"
	"time"

	"github.com/tabsync/tabsync/internal/domain"
)

// Cache is the TTL-backed projection of in-flight orders, keyed by
// (tenantId, orderId). It exists for cross-instance recovery and for
// the reconciliation job; the authoritative store always wins.
type Cache struct {
	store Store
	ttl   time.Duration
}

func New(store Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{store: store, ttl: ttl}
}

func snapshotKey(tenantID, orderID string) string {
	return tenantID + ":" + orderID
}

// Upsert refreshes the snapshot and its TTL. Mutations are keyed per
// (tenant, order): concurrent upserts for different orders never
// contend on anything shared.
func (c *Cache) Upsert(snap domain.ActiveOrderSnapshot) error {
	return c.store.Set(snapshotKey(snap.TenantID, snap.OrderID), snap, c.ttl)
}

func (c *Cache) Get(tenantID, orderID string) (domain.ActiveOrderSnapshot, bool, error) {
	snap, err := c.store.Get(snapshotKey(tenantID, orderID))
	if errors.Is(err, ErrNotFound) {
		return domain.ActiveOrderSnapshot{}, false, nil
	}
	if err != nil {
		return domain.ActiveOrderSnapshot{}, false, err
	}
	return snap, true, nil
}

func (c *Cache) Remove(tenantID, orderID string) error {
	return c.store.Delete(snapshotKey(tenantID, orderID))
}

// List returns every live snapshot. Used by reconciliation only;
// entries that vanish mid-iteration are skipped.
func (c *Cache) List() ([]domain.ActiveOrderSnapshot, error) {
	keys, err := c.store.Keys()
	if err != nil {
		return nil, err
	}

	snaps := make([]domain.ActiveOrderSnapshot, 0, len(keys))
	for _, key := range keys {
		if !strings.Contains(key, ":") {
			continue
		}
		snap, err := c.store.Get(key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}

	return snaps, nil
}

func (c *Cache) Close() error {
	return c.store.Close()
}
