package domain

import (
	"fmt"
	"strings"
)

// RoomID is a structured broadcast-group key. Rooms are tenant-scoped:
// a room never contains connections from more than one tenant.
type RoomID string

func TenantRoom(tenantID string) RoomID {
	return RoomID("tenant:" + tenantID)
}

func RoleRoom(tenantID string, role Role) RoomID {
	return RoomID(fmt.Sprintf("tenant:%s:role:%s", tenantID, role))
}

func KitchenRoom(tenantID string) RoomID {
	return RoomID("tenant:" + tenantID + ":kitchen")
}

func TableRoom(tableID string) RoomID {
	return RoomID("table:" + tableID)
}

// BelongsToTenant reports whether the room is scoped to the given tenant.
// Table rooms carry no tenant in their key; ownership is checked at join
// time against the customer identity instead.
func (r RoomID) BelongsToTenant(tenantID string) bool {
	return strings.HasPrefix(string(r), "tenant:"+tenantID) &&
		(len(r) == len("tenant:"+tenantID) || string(r)[len("tenant:"+tenantID)] == ':')
}

func (r RoomID) IsTableRoom() bool {
	return strings.HasPrefix(string(r), "table:")
}

// RoomsFor is the room-assignment function: membership is derived purely
// from the authenticated identity, never from client input.
//
// Staff join their tenant room, their role room and (for kitchen roles)
// the kitchen room. Customers join only their table room.
func RoomsFor(id Identity) []RoomID {
	if !id.IsStaff() {
		return []RoomID{TableRoom(id.TableID)}
	}

	rooms := []RoomID{
		TenantRoom(id.TenantID),
		RoleRoom(id.TenantID, id.Role),
	}
	if id.Role.Kitchen() {
		rooms = append(rooms, KitchenRoom(id.TenantID))
	}
	return rooms
}
