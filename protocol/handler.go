package protocol

import (
	"encoding/json"
	"log/slog"

	"chess-relay-server/domain"
	"chess-relay-server/registry"
	"chess-relay-server/relay"
)

// Handler decodes inbound frames, drives the registry, and hands the
// resulting notifications to the relay. Request outcomes are acknowledged on
// the originating connection; failures there are never fatal to the server.
type Handler struct {
	reg   *registry.Registry
	relay *relay.Relay
}

func NewHandler(reg *registry.Registry, rl *relay.Relay) *Handler {
	return &Handler{reg: reg, relay: rl}
}

func (h *Handler) Handle(conn domain.Connection, data []byte) {
	var msg domain.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Warn("invalid message", "clientId", conn.ID(), "error", err)
		return
	}

	switch msg.Type {
	case domain.TypePing:
		h.ack(conn, domain.Message{Type: domain.TypePong})

	case domain.TypeSetUsername:
		conn.SetDisplayName(msg.Name)

	case domain.TypeCreateRoom:
		roomID, err := h.reg.CreateRoom(conn)
		if err != nil {
			h.ack(conn, domain.Message{Type: domain.TypeCreateFailed, Error: err.Error()})
			return
		}
		h.ack(conn, domain.Message{Type: domain.TypeRoomCreated, RoomID: roomID})

	case domain.TypeJoinRoom:
		snap, err := h.reg.Join(msg.RoomID, conn)
		if err != nil {
			h.ack(conn, domain.Message{Type: domain.TypeJoinFailed, RoomID: msg.RoomID, Error: err.Error()})
			return
		}
		h.ack(conn, domain.Message{Type: domain.TypeRoomJoined, RoomID: snap.RoomID, Players: snap.Players})
		h.relay.OpponentJoined(snap, conn.ID())

	case domain.TypeMove:
		snap, ok := h.reg.Snapshot(msg.RoomID)
		if !ok || !isMember(snap, conn.ID()) {
			// Stale or bogus submission; the sender already holds local state,
			// so there is nothing useful to report back.
			slog.Debug("dropping move", "room", msg.RoomID, "clientId", conn.ID())
			return
		}
		h.relay.Move(snap, conn.ID(), msg.Move)

	case domain.TypeCloseRoom:
		closure, err := h.reg.Close(msg.RoomID, conn.ID())
		if err != nil {
			h.ack(conn, domain.Message{Type: domain.TypeCloseFailed, RoomID: msg.RoomID, Error: err.Error()})
			return
		}
		h.relay.RoomClosed(closure)

	default:
		slog.Warn("unknown message type", "clientId", conn.ID(), "type", msg.Type)
	}
}

// Disconnect clears the connection out of the registry and notifies any
// surviving room member. Invoked exactly once per connection by the transport.
func (h *Handler) Disconnect(conn domain.Connection) {
	for _, dep := range h.reg.HandleDisconnect(conn.ID()) {
		h.relay.PeerDisconnected(dep)
	}
}

func (h *Handler) ack(conn domain.Connection, msg domain.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Warn("marshal error", "clientId", conn.ID(), "error", err)
		return
	}
	if err := conn.Send(data); err != nil {
		slog.Warn("ack failed, closing connection", "clientId", conn.ID(), "error", err)
		conn.Close()
	}
}

func isMember(snap registry.Snapshot, connID string) bool {
	for _, p := range snap.Players {
		if p.ID == connID {
			return true
		}
	}
	return false
}
