package domain

import "testing"

func TestRoomsFor_Staff(t *testing.T) {
	tests := []struct {
		name string
		role Role
		want []RoomID
	}{
		{
			name: "chef joins kitchen",
			role: RoleChef,
			want: []RoomID{"tenant:t1", "tenant:t1:role:CHEF", "tenant:t1:kitchen"},
		},
		{
			name: "manager joins kitchen",
			role: RoleManager,
			want: []RoomID{"tenant:t1", "tenant:t1:role:MANAGER", "tenant:t1:kitchen"},
		},
		{
			name: "admin joins kitchen",
			role: RoleAdmin,
			want: []RoomID{"tenant:t1", "tenant:t1:role:ADMIN", "tenant:t1:kitchen"},
		},
		{
			name: "waiter stays out of kitchen",
			role: RoleWaiter,
			want: []RoomID{"tenant:t1", "tenant:t1:role:WAITER"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := NewStaffIdentity("t1", "staff-1", tt.role, "sess-1")
			got := RoomsFor(id)

			if len(got) != len(tt.want) {
				t.Fatalf("expected %d rooms, got %d: %v", len(tt.want), len(got), got)
			}
			for i, room := range tt.want {
				if got[i] != room {
					t.Errorf("room %d: expected %q, got %q", i, room, got[i])
				}
			}
		})
	}
}

func TestRoomsFor_CustomerJoinsOnlyTableRoom(t *testing.T) {
	id := NewCustomerIdentity("t1", "table-9", "sess-1")

	got := RoomsFor(id)
	if len(got) != 1 {
		t.Fatalf("expected 1 room, got %d: %v", len(got), got)
	}
	if got[0] != RoomID("table:table-9") {
		t.Errorf("expected table room, got %q", got[0])
	}
}

func TestBelongsToTenant(t *testing.T) {
	tests := []struct {
		room     RoomID
		tenantID string
		want     bool
	}{
		{TenantRoom("t1"), "t1", true},
		{RoleRoom("t1", RoleChef), "t1", true},
		{KitchenRoom("t1"), "t1", true},
		{TenantRoom("t2"), "t1", false},
		// a tenant id that is a prefix of another must not match
		{TenantRoom("t12"), "t1", false},
		{KitchenRoom("t12"), "t1", false},
		{TableRoom("table-9"), "t1", false},
	}

	for _, tt := range tests {
		if got := tt.room.BelongsToTenant(tt.tenantID); got != tt.want {
			t.Errorf("BelongsToTenant(%q, %q) = %v, want %v", tt.room, tt.tenantID, got, tt.want)
		}
	}
}

func TestIsTableRoom(t *testing.T) {
	if !TableRoom("table-9").IsTableRoom() {
		t.Error("expected table room")
	}
	if TenantRoom("t1").IsTableRoom() {
		t.Error("tenant room is not a table room")
	}
}
