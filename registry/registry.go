package registry

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"chess-relay-server/domain"
)

type roomState int

const (
	// stateWaiting rooms hold one member and accept a second.
	stateWaiting roomState = iota
	// stateActive rooms have reached two members. The state is sticky: a room
	// that loses a member to disconnect stays active (half-open) and is never
	// joinable again, only closeable.
	stateActive
)

type room struct {
	id      string
	state   roomState
	members []domain.Connection // join order; first member gets white
}

func (r *room) memberIndex(connID string) int {
	for i, m := range r.members {
		if m.ID() == connID {
			return i
		}
	}
	return -1
}

// Snapshot is a point-in-time view of a room, taken under the registry lock.
// Conns and Players are parallel: Conns for delivery, Players for the wire.
type Snapshot struct {
	RoomID  string
	Players []domain.Member
	Conns   []domain.Connection
}

// Departure reports a member lost to disconnect from a room that survived it.
type Departure struct {
	RoomID    string
	Departed  domain.Member
	Remaining []domain.Connection
}

// Closure reports an explicit room close.
type Closure struct {
	RoomID string
	Others []domain.Connection
}

// Registry is the sole owner of room state. Every check-and-mutate runs in a
// single critical section, so concurrent joins against the same room cannot
// both succeed and membership never exceeds two.
type Registry struct {
	mu     sync.Mutex
	rooms  map[string]*room
	byConn map[string]string // connection id -> room id
}

func New() *Registry {
	return &Registry{
		rooms:  make(map[string]*room),
		byConn: make(map[string]string),
	}
}

// CreateRoom makes a fresh room with the creator as its sole member and
// returns the room id. A connection already in a room cannot create another.
func (reg *Registry) CreateRoom(creator domain.Connection) (string, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, taken := reg.byConn[creator.ID()]; taken {
		return "", domain.ErrAlreadyInRoom
	}

	id := uuid.NewString()
	reg.rooms[id] = &room{
		id:      id,
		state:   stateWaiting,
		members: []domain.Connection{creator},
	}
	reg.byConn[creator.ID()] = id

	slog.Info("room created", "room", id, "clientId", creator.ID())
	return id, nil
}

// Join adds the joiner as the second member and returns the resulting
// snapshot. The existence, capacity, and duplicate checks and the append are
// one atomic step.
func (reg *Registry) Join(roomID string, joiner domain.Connection) (Snapshot, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, exists := reg.rooms[roomID]
	if !exists {
		return Snapshot{}, domain.ErrRoomNotFound
	}
	if r.state != stateWaiting || len(r.members) >= 2 {
		return Snapshot{}, domain.ErrRoomFull
	}
	if _, taken := reg.byConn[joiner.ID()]; taken {
		return Snapshot{}, domain.ErrAlreadyInRoom
	}

	r.members = append(r.members, joiner)
	r.state = stateActive
	reg.byConn[joiner.ID()] = roomID

	slog.Info("room joined", "room", roomID, "clientId", joiner.ID(), "members", len(r.members))
	return snapshotOf(r), nil
}

// Close removes the room unconditionally, whatever its member count, and
// returns the members other than the requester so they can be notified. Only
// a current member may close a room.
func (reg *Registry) Close(roomID, requesterID string) (Closure, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, exists := reg.rooms[roomID]
	if !exists {
		return Closure{}, domain.ErrRoomNotFound
	}
	if r.memberIndex(requesterID) < 0 {
		return Closure{}, domain.ErrNotAMember
	}

	closure := Closure{RoomID: roomID}
	for _, m := range r.members {
		delete(reg.byConn, m.ID())
		if m.ID() != requesterID {
			closure.Others = append(closure.Others, m)
		}
	}
	delete(reg.rooms, roomID)

	slog.Info("room closed", "room", roomID, "clientId", requesterID)
	return closure, nil
}

// HandleDisconnect clears the connection out of any room it belongs to. It is
// a no-op for unknown connections. A waiting room loses its only member and is
// deleted silently; an active room survives the first disconnect (half-open)
// and the departure is reported; the second disconnect deletes it.
func (reg *Registry) HandleDisconnect(connID string) []Departure {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	roomID, exists := reg.byConn[connID]
	if !exists {
		return nil
	}
	delete(reg.byConn, connID)

	r, exists := reg.rooms[roomID]
	if !exists {
		return nil
	}
	i := r.memberIndex(connID)
	if i < 0 {
		return nil
	}

	if len(r.members) < 2 {
		delete(reg.rooms, roomID)
		slog.Info("room removed", "room", roomID, "clientId", connID)
		return nil
	}

	departed := domain.Member{ID: r.members[i].ID(), Username: r.members[i].DisplayName()}
	r.members = append(r.members[:i], r.members[i+1:]...)

	slog.Info("client left room", "room", roomID, "clientId", connID, "members", len(r.members))
	return []Departure{{
		RoomID:    roomID,
		Departed:  departed,
		Remaining: append([]domain.Connection(nil), r.members...),
	}}
}

// Snapshot returns a read-only view of the room, if it exists.
func (reg *Registry) Snapshot(roomID string) (Snapshot, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, exists := reg.rooms[roomID]
	if !exists {
		return Snapshot{}, false
	}
	return snapshotOf(r), true
}

// Stats reports the number of rooms and tracked members.
func (reg *Registry) Stats() (rooms, members int) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	rooms = len(reg.rooms)
	for _, r := range reg.rooms {
		members += len(r.members)
	}
	return rooms, members
}

func snapshotOf(r *room) Snapshot {
	snap := Snapshot{
		RoomID:  r.id,
		Players: make([]domain.Member, 0, len(r.members)),
		Conns:   make([]domain.Connection, 0, len(r.members)),
	}
	for _, m := range r.members {
		snap.Players = append(snap.Players, domain.Member{ID: m.ID(), Username: m.DisplayName()})
		snap.Conns = append(snap.Conns, m)
	}
	return snap
}
