package domain

import "time"

// OrderStatus follows the kitchen workflow. SERVED and CANCELLED are
// terminal: no further events may be published for the order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderPreparing OrderStatus = "PREPARING"
	OrderReady     OrderStatus = "READY"
	OrderServed    OrderStatus = "SERVED"
	OrderCancelled OrderStatus = "CANCELLED"
)

func (s OrderStatus) Terminal() bool {
	return s == OrderServed || s == OrderCancelled
}

type OrderItem struct {
	ID       string `bson:"id" json:"id"`
	MenuItem string `bson:"menuItem" json:"menuItem"`
	Quantity int    `bson:"quantity" json:"quantity"`
	Status   string `bson:"status" json:"status"`
}

type Order struct {
	ID          string      `bson:"_id" json:"id"`
	TenantID    string      `bson:"tenantId" json:"tenantId"`
	TableID     string      `bson:"tableId" json:"tableId"`
	Status      OrderStatus `bson:"status" json:"status"`
	Items       []OrderItem `bson:"items" json:"items"`
	TotalAmount int64       `bson:"totalAmount" json:"totalAmount"`
	CreatedAt   time.Time   `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time   `bson:"updatedAt" json:"updatedAt"`
}

// TableStatus gates whether a customer session may be opened on a table.
type TableStatus string

const (
	TableAvailable   TableStatus = "AVAILABLE"
	TableOccupied    TableStatus = "OCCUPIED"
	TableReserved    TableStatus = "RESERVED"
	TableOutOfOrder  TableStatus = "OUT_OF_ORDER"
)

// Orderable reports whether a customer may attach a session to the table.
func (s TableStatus) Orderable() bool {
	return s == TableAvailable || s == TableOccupied
}

type Table struct {
	ID       string      `bson:"_id" json:"id"`
	TenantID string      `bson:"tenantId" json:"tenantId"`
	Code     string      `bson:"code" json:"code"`
	Name     string      `bson:"name" json:"name"`
	Status   TableStatus `bson:"status" json:"status"`
}

// ActiveOrderSnapshot is the cached projection of an in-flight order,
// keyed by (tenantId, orderId). Its existence implies the order is
// non-terminal, or within the grace TTL after completion.
type ActiveOrderSnapshot struct {
	OrderID     string      `json:"orderId"`
	TenantID    string      `json:"tenantId"`
	TableID     string      `json:"tableId"`
	Status      OrderStatus `json:"status"`
	ItemCount   int         `json:"itemCount"`
	TotalAmount int64       `json:"totalAmount"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

func SnapshotOf(o Order) ActiveOrderSnapshot {
	return ActiveOrderSnapshot{
		OrderID:     o.ID,
		TenantID:    o.TenantID,
		TableID:     o.TableID,
		Status:      o.Status,
		ItemCount:   len(o.Items),
		TotalAmount: o.TotalAmount,
		UpdatedAt:   o.UpdatedAt,
	}
}
