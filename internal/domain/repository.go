package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrTableNotFound = errors.New("table not found")
)

// OrderRepository is the authoritative order store. The realtime layer
// only reads it and applies the status transitions triggered by
// client-originated events; all other mutations come from the CRUD layer.
type OrderRepository interface {
	// FindActiveByTenant returns all non-terminal orders of the tenant.
	FindActiveByTenant(ctx context.Context, tenantID string) ([]Order, error)

	// FindRecentByTable returns orders created for the table since the
	// given time, newest first.
	FindRecentByTable(ctx context.Context, tableID string, since time.Time) ([]Order, error)

	GetByID(ctx context.Context, tenantID, orderID string) (Order, error)

	// UpdateStatus commits a status transition and returns the updated
	// order. The commit is durable before the call returns.
	UpdateStatus(ctx context.Context, tenantID, orderID string, status OrderStatus) (Order, error)

	// UpdateItemStatus commits an item-level status change.
	UpdateItemStatus(ctx context.Context, tenantID, orderID, itemID, status string) (Order, error)
}

type TableRepository interface {
	FindByCode(ctx context.Context, code string) (Table, error)
	FindByTenant(ctx context.Context, tenantID string) ([]Table, error)
}
