package ws

import (
	"context"
	"fmt"
	"time"

	"github.com/tabsync/tabsync/internal/domain"
)

// Synchronizer computes the initial full-state snapshot for a newly
// joined connection. Staff get every non-terminal order plus all tables
// of their tenant; customers get the recent orders of their table.
type Synchronizer struct {
	orders         domain.OrderRepository
	tables         domain.TableRepository
	customerWindow time.Duration
	queryTimeout   time.Duration
}

func NewSynchronizer(orders domain.OrderRepository, tables domain.TableRepository, customerWindow, queryTimeout time.Duration) *Synchronizer {
	if customerWindow <= 0 {
		customerWindow = 2 * time.Hour
	}
	if queryTimeout <= 0 {
		queryTimeout = 5 * time.Second
	}
	return &Synchronizer{
		orders:         orders,
		tables:         tables,
		customerWindow: customerWindow,
		queryTimeout:   queryTimeout,
	}
}

// Snapshot queries the authoritative store and returns one atomic
// payload. AsOf is taken before the queries so any delta committed
// after it may be re-delivered live; consumers dedupe by status value.
func (s *Synchronizer) Snapshot(ctx context.Context, identity domain.Identity) (*SyncPayload, error) {
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	asOf := time.Now()

	if identity.IsStaff() {
		orders, err := s.orders.FindActiveByTenant(queryCtx, identity.TenantID)
		if err != nil {
			return nil, fmt.Errorf("active orders query failed: %w", err)
		}

		tables, err := s.tables.FindByTenant(queryCtx, identity.TenantID)
		if err != nil {
			return nil, fmt.Errorf("tables query failed: %w", err)
		}

		return &SyncPayload{AsOf: asOf, Orders: orders, Tables: tables}, nil
	}

	since := asOf.Add(-s.customerWindow)
	orders, err := s.orders.FindRecentByTable(queryCtx, identity.TableID, since)
	if err != nil {
		return nil, fmt.Errorf("table orders query failed: %w", err)
	}

	return &SyncPayload{AsOf: asOf, Orders: orders}, nil
}
