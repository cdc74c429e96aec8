package ws

import (
	"testing"

	"github.com/tabsync/tabsync/internal/domain"
)

func newTestClient(id string, identity domain.Identity) *Client {
	return NewClient(nil, id, identity)
}

func staffIdentity(tenantID string, role domain.Role) domain.Identity {
	return domain.NewStaffIdentity(tenantID, "staff-"+tenantID, role, "sess")
}

func TestRoomManager_JoinAndMembers(t *testing.T) {
	rm := NewRoomManager()

	chef := newTestClient("c1", staffIdentity("t1", domain.RoleChef))
	rm.Join(chef, domain.RoomsFor(chef.Identity))

	members := rm.Members([]domain.RoomID{domain.KitchenRoom("t1")})
	if len(members) != 1 || members[0].ID != "c1" {
		t.Fatalf("expected chef in kitchen room, got %v", members)
	}
}

func TestRoomManager_JoinIsIdempotent(t *testing.T) {
	rm := NewRoomManager()

	cl := newTestClient("c1", staffIdentity("t1", domain.RoleWaiter))
	rooms := domain.RoomsFor(cl.Identity)
	rm.Join(cl, rooms)
	rm.Join(cl, rooms)

	if got := rm.Stats().Total; got != 1 {
		t.Errorf("expected 1 connection, got %d", got)
	}
}

func TestRoomManager_MembersDeduplicatesAcrossRooms(t *testing.T) {
	rm := NewRoomManager()

	chef := newTestClient("c1", staffIdentity("t1", domain.RoleChef))
	rm.Join(chef, domain.RoomsFor(chef.Identity))

	// The chef is in both rooms; fanout must count it once.
	members := rm.Members([]domain.RoomID{
		domain.TenantRoom("t1"),
		domain.KitchenRoom("t1"),
	})
	if len(members) != 1 {
		t.Errorf("expected 1 deduplicated member, got %d", len(members))
	}
}

func TestRoomManager_LeaveIsIdempotent(t *testing.T) {
	rm := NewRoomManager()

	cl := newTestClient("c1", staffIdentity("t1", domain.RoleChef))
	rm.Join(cl, domain.RoomsFor(cl.Identity))

	rm.Leave(cl)
	rm.Leave(cl)

	if got := rm.Stats().Total; got != 0 {
		t.Errorf("expected 0 connections after leave, got %d", got)
	}
	if rooms := rm.Rooms("c1"); len(rooms) != 0 {
		t.Errorf("expected no rooms after leave, got %v", rooms)
	}
}

func TestRoomManager_LeaveDropsEmptyRooms(t *testing.T) {
	rm := NewRoomManager()

	cl := newTestClient("c1", staffIdentity("t1", domain.RoleChef))
	rm.Join(cl, domain.RoomsFor(cl.Identity))
	rm.Leave(cl)

	rm.mu.RLock()
	defer rm.mu.RUnlock()
	if len(rm.rooms) != 0 {
		t.Errorf("empty rooms should be removed, still have %d", len(rm.rooms))
	}
}

func TestRoomManager_Stats(t *testing.T) {
	rm := NewRoomManager()

	chef := newTestClient("c1", staffIdentity("t1", domain.RoleChef))
	waiter := newTestClient("c2", staffIdentity("t1", domain.RoleWaiter))
	customer := newTestClient("c3", domain.NewCustomerIdentity("t2", "table-9", "sess"))

	rm.Join(chef, domain.RoomsFor(chef.Identity))
	rm.Join(waiter, domain.RoomsFor(waiter.Identity))
	rm.Join(customer, domain.RoomsFor(customer.Identity))

	stats := rm.Stats()
	if stats.Total != 3 {
		t.Errorf("expected 3 total, got %d", stats.Total)
	}
	if stats.ByTenant["t1"] != 2 || stats.ByTenant["t2"] != 1 {
		t.Errorf("unexpected tenant counts: %v", stats.ByTenant)
	}
	if stats.ByRole["CHEF"] != 1 || stats.ByRole["WAITER"] != 1 {
		t.Errorf("unexpected role counts: %v", stats.ByRole)
	}
	if stats.Customers != 1 {
		t.Errorf("expected 1 customer, got %d", stats.Customers)
	}
}
