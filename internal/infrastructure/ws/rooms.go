package ws

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/tabsync/tabsync/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// RoomManager tracks which local connections belong to which rooms.
// It is purely instance-local: cross-instance awareness lives entirely
// in the backplane, so no global membership view is ever needed.
type RoomManager struct {
	rooms map[domain.RoomID]map[string]*Client
	// byConn is the reverse index used for idempotent leave.
	byConn map[string][]domain.RoomID
	mu     sync.RWMutex
}

func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms:  make(map[domain.RoomID]map[string]*Client),
		byConn: make(map[string][]domain.RoomID),
	}
}

func (rm *RoomManager) Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return upgrader.Upgrade(w, r, nil)
}

// Join adds the client to every given room. Rooms must already have
// been derived from the client's identity: membership is never wider
// than what the identity permits.
func (rm *RoomManager) Join(cl *Client, rooms []domain.RoomID) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, already := rm.byConn[cl.ID]; already {
		return
	}

	for _, roomID := range rooms {
		room, ok := rm.rooms[roomID]
		if !ok {
			room = make(map[string]*Client)
			rm.rooms[roomID] = room
		}
		room[cl.ID] = cl
	}

	joined := make([]domain.RoomID, len(rooms))
	copy(joined, rooms)
	rm.byConn[cl.ID] = joined
}

// Leave removes the client from all of its rooms. Idempotent: it runs
// on every disconnect path and repeated calls are no-ops.
func (rm *RoomManager) Leave(cl *Client) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rooms, ok := rm.byConn[cl.ID]
	if !ok {
		return
	}
	delete(rm.byConn, cl.ID)

	for _, roomID := range rooms {
		room, ok := rm.rooms[roomID]
		if !ok {
			continue
		}
		delete(room, cl.ID)
		if len(room) == 0 {
			delete(rm.rooms, roomID)
		}
	}
}

// Rooms returns the rooms the connection currently belongs to.
func (rm *RoomManager) Rooms(connectionID string) []domain.RoomID {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	rooms := rm.byConn[connectionID]
	out := make([]domain.RoomID, len(rooms))
	copy(out, rooms)
	return out
}

// Members snapshots the clients of the given rooms, deduplicated by
// connection id so multi-room fanout delivers each event once.
func (rm *RoomManager) Members(rooms []domain.RoomID) []*Client {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	seen := make(map[string]struct{})
	var members []*Client

	for _, roomID := range rooms {
		for id, cl := range rm.rooms[roomID] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			members = append(members, cl)
		}
	}

	return members
}

// Stats summarises connections per tenant and role for the operator
// surface. Read-only; never on the delivery path.
type Stats struct {
	Total     int            `json:"total"`
	ByTenant  map[string]int `json:"byTenant"`
	ByRole    map[string]int `json:"byRole"`
	Customers int            `json:"customers"`
}

func (rm *RoomManager) Stats() Stats {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	stats := Stats{
		ByTenant: make(map[string]int),
		ByRole:   make(map[string]int),
	}

	counted := make(map[string]struct{})
	for _, room := range rm.rooms {
		for id, cl := range room {
			if _, dup := counted[id]; dup {
				continue
			}
			counted[id] = struct{}{}

			stats.Total++
			stats.ByTenant[cl.Identity.TenantID]++
			if cl.Identity.IsStaff() {
				stats.ByRole[string(cl.Identity.Role)]++
			} else {
				stats.Customers++
			}
		}
	}

	return stats
}

func (rm *RoomManager) DisconnectAll() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	for _, room := range rm.rooms {
		for _, cl := range room {
			cl.Close()
		}
	}

	rm.rooms = make(map[domain.RoomID]map[string]*Client)
	rm.byConn = make(map[string][]domain.RoomID)
}
