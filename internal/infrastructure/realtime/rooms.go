package realtime

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNoActiveConnections means a room currently has nobody to notify. It is
// an expected condition, not a room-existence error.
var ErrNoActiveConnections = errors.New("realtime: no active connections in room")

// ErrDeliveryFailure wraps a failed send to a single connection.
var ErrDeliveryFailure = errors.New("realtime: delivery failure")

// DeliveryError builds an error matching ErrDeliveryFailure for conn.
func DeliveryError(conn Conn, cause error) error {
	return fmt.Errorf("%w: member %d conn %s: %v", ErrDeliveryFailure, conn.MemberID(), conn.ID(), cause)
}

type roomStripe struct {
	mu    sync.RWMutex
	conns map[int64]map[string]Conn // roomID -> connID -> connection
}

type memberStripe struct {
	mu    sync.RWMutex
	rooms map[int64]map[int64]map[string]struct{} // memberID -> roomID -> set of connIDs
}

// Rooms tracks which live connections are inside which rooms, plus the
// reverse index member -> rooms used for cleanup on disconnect.
//
// Both indexes are always mutated together while holding the member stripe
// and then the room stripe, in that order. Operations on the same member or
// the same room are therefore totally ordered, and unrelated rooms proceed
// in parallel.
type Rooms struct {
	rooms   []*roomStripe
	members []*memberStripe
}

// NewRooms constructs a Rooms registry with n stripes per index.
func NewRooms(n int) *Rooms {
	n = shardCount(n)
	r := &Rooms{
		rooms:   make([]*roomStripe, n),
		members: make([]*memberStripe, n),
	}
	for i := 0; i < n; i++ {
		r.rooms[i] = &roomStripe{conns: make(map[int64]map[string]Conn)}
		r.members[i] = &memberStripe{rooms: make(map[int64]map[int64]map[string]struct{})}
	}
	return r
}

func (r *Rooms) roomStripe(roomID int64) *roomStripe {
	return r.rooms[shardOf(roomID, len(r.rooms))]
}

func (r *Rooms) memberStripe(memberID int64) *memberStripe {
	return r.members[shardOf(memberID, len(r.members))]
}

// Join adds conn to the room. Joining is idempotent per connection identity;
// the return value reports whether a new entry was created.
func (r *Rooms) Join(roomID int64, conn Conn) bool {
	ms := r.memberStripe(conn.MemberID())
	rs := r.roomStripe(roomID)

	ms.mu.Lock()
	defer ms.mu.Unlock()
	rs.mu.Lock()
	defer rs.mu.Unlock()

	room := rs.conns[roomID]
	if room == nil {
		room = make(map[string]Conn)
		rs.conns[roomID] = room
	}
	if _, ok := room[conn.ID()]; ok {
		return false
	}
	room[conn.ID()] = conn

	memberships := ms.rooms[conn.MemberID()]
	if memberships == nil {
		memberships = make(map[int64]map[string]struct{})
		ms.rooms[conn.MemberID()] = memberships
	}
	connIDs := memberships[roomID]
	if connIDs == nil {
		connIDs = make(map[string]struct{})
		memberships[roomID] = connIDs
	}
	connIDs[conn.ID()] = struct{}{}
	return true
}

// Connections returns a snapshot of the room's live connections.
func (r *Rooms) Connections(roomID int64) ([]Conn, error) {
	rs := r.roomStripe(roomID)
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	room := rs.conns[roomID]
	if len(room) == 0 {
		return nil, ErrNoActiveConnections
	}
	conns := make([]Conn, 0, len(room))
	for _, conn := range room {
		conns = append(conns, conn)
	}
	return conns, nil
}

// RoomsOf returns the rooms the member currently has a connection in, ascending.
func (r *Rooms) RoomsOf(memberID int64) []int64 {
	ms := r.memberStripe(memberID)
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return sortedRoomIDs(ms.rooms[memberID])
}

// LeaveOne removes the member's connections from a single room and returns
// how many entries were removed.
func (r *Rooms) LeaveOne(roomID int64, memberID int64) int {
	ms := r.memberStripe(memberID)
	ms.mu.Lock()
	defer ms.mu.Unlock()

	memberships := ms.rooms[memberID]
	connIDs, ok := memberships[roomID]
	if !ok {
		return 0
	}
	r.removeLocked(roomID, connIDs)
	delete(memberships, roomID)
	if len(memberships) == 0 {
		delete(ms.rooms, memberID)
	}
	return len(connIDs)
}

// LeaveAll removes the member from every room it is in and returns those
// rooms. Calling it again, or for a member in no room, is a no-op.
func (r *Rooms) LeaveAll(memberID int64) []int64 {
	ms := r.memberStripe(memberID)
	ms.mu.Lock()
	defer ms.mu.Unlock()

	memberships := ms.rooms[memberID]
	if len(memberships) == 0 {
		return nil
	}
	left := sortedRoomIDs(memberships)
	for _, roomID := range left {
		r.removeLocked(roomID, memberships[roomID])
	}
	delete(ms.rooms, memberID)
	return left
}

// LeaveConn removes one specific connection from every room it joined and
// returns the rooms the member no longer has any connection in.
func (r *Rooms) LeaveConn(conn Conn) []int64 {
	ms := r.memberStripe(conn.MemberID())
	ms.mu.Lock()
	defer ms.mu.Unlock()

	memberships := ms.rooms[conn.MemberID()]
	var left []int64
	for _, roomID := range sortedRoomIDs(memberships) {
		connIDs := memberships[roomID]
		if _, ok := connIDs[conn.ID()]; !ok {
			continue
		}
		r.removeLocked(roomID, map[string]struct{}{conn.ID(): {}})
		delete(connIDs, conn.ID())
		if len(connIDs) == 0 {
			delete(memberships, roomID)
			left = append(left, roomID)
		}
	}
	if len(memberships) == 0 {
		delete(ms.rooms, conn.MemberID())
	}
	return left
}

// removeLocked deletes connIDs from the room index. The caller holds the
// owning member stripe.
func (r *Rooms) removeLocked(roomID int64, connIDs map[string]struct{}) {
	rs := r.roomStripe(roomID)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	room := rs.conns[roomID]
	if room == nil {
		return
	}
	for id := range connIDs {
		delete(room, id)
	}
	if len(room) == 0 {
		delete(rs.conns, roomID)
	}
}

func sortedRoomIDs(memberships map[int64]map[string]struct{}) []int64 {
	if len(memberships) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(memberships))
	for id := range memberships {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
