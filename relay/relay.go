package relay

import (
	"encoding/json"
	"log/slog"

	"chess-relay-server/domain"
	"chess-relay-server/registry"
)

// Relay turns registry outcomes into notifications for the other members of a
// room. It holds no state of its own: recipients come from snapshots resolved
// under the registry lock, and delivery happens after that lock is released,
// so a slow recipient never stalls room operations.
type Relay struct{}

func New() *Relay {
	return &Relay{}
}

// OpponentJoined tells every member except the joiner that the room is now
// full, carrying the complete membership in join order.
func (rl *Relay) OpponentJoined(snap registry.Snapshot, joinerID string) {
	msg := domain.Message{
		Type:    domain.TypeOpponentJoined,
		RoomID:  snap.RoomID,
		Players: snap.Players,
	}
	for _, conn := range snap.Conns {
		if conn.ID() == joinerID {
			continue
		}
		rl.send(conn, msg)
	}
}

// Move forwards the payload verbatim to every member except the sender. The
// payload is never inspected; legality is the sending peer's problem.
func (rl *Relay) Move(snap registry.Snapshot, senderID string, move json.RawMessage) {
	msg := domain.Message{Type: domain.TypeMove, Move: move}
	for _, conn := range snap.Conns {
		if conn.ID() == senderID {
			continue
		}
		rl.send(conn, msg)
	}
}

// PeerDisconnected tells the surviving member(s) who dropped.
func (rl *Relay) PeerDisconnected(dep registry.Departure) {
	departed := dep.Departed
	msg := domain.Message{Type: domain.TypePlayerDisconnected, Player: &departed}
	for _, conn := range dep.Remaining {
		rl.send(conn, msg)
	}
}

// RoomClosed tells every member other than the closer that the room is gone.
func (rl *Relay) RoomClosed(closure registry.Closure) {
	msg := domain.Message{Type: domain.TypeRoomClosed, RoomID: closure.RoomID}
	for _, conn := range closure.Others {
		rl.send(conn, msg)
	}
}

func (rl *Relay) send(conn domain.Connection, msg domain.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Warn("marshal error", "clientId", conn.ID(), "error", err)
		return
	}
	if err := conn.Send(data); err != nil {
		// A recipient that cannot accept a frame is torn down; its read pump
		// drives the usual disconnect path from there.
		slog.Warn("send failed, closing connection", "clientId", conn.ID(), "error", err)
		conn.Close()
	}
}
