package domain

import (
	"encoding/json"
	"errors"
)

// Message is the JSON envelope for every frame in both directions. Unused
// fields are omitted from the encoding; Move is kept raw so the server never
// re-encodes a payload it relays.
type Message struct {
	Type    string          `json:"type"`
	RoomID  string          `json:"roomId,omitempty"`
	Name    string          `json:"name,omitempty"`
	Move    json.RawMessage `json:"move,omitempty"`
	Players []Member        `json:"players,omitempty"`
	Player  *Member         `json:"player,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Message types.
const (
	TypeSetUsername = "setUsername"
	TypeCreateRoom  = "createRoom"
	TypeJoinRoom    = "joinRoom"
	TypeMove        = "move"
	TypeCloseRoom   = "closeRoom"
	TypePing        = "ping"

	TypeRoomCreated        = "roomCreated"
	TypeCreateFailed       = "createFailed"
	TypeRoomJoined         = "roomJoined"
	TypeJoinFailed         = "joinFailed"
	TypeCloseFailed        = "closeFailed"
	TypeOpponentJoined     = "opponentJoined"
	TypePlayerDisconnected = "playerDisconnected"
	TypeRoomClosed         = "roomClosed"
	TypePong               = "pong"
)

// Member identifies a room participant on the wire.
type Member struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
}

var (
	ErrRoomNotFound  = errors.New("room does not exist")
	ErrRoomFull      = errors.New("room is full")
	ErrAlreadyInRoom = errors.New("already in a room")
	ErrNotAMember    = errors.New("not a member of room")
)

// Connection is a live client connection. Implementations must make Send
// non-blocking: a recipient that cannot keep up fails the send rather than
// stalling the caller.
type Connection interface {
	ID() string
	DisplayName() string
	SetDisplayName(name string)
	Send(data []byte) error
	Close() error
}

// MessageHandler consumes inbound frames and the terminal disconnect event of
// a connection. Disconnect must be invoked exactly once per connection
// termination, however the connection ends.
type MessageHandler interface {
	Handle(conn Connection, data []byte)
	Disconnect(conn Connection)
}
