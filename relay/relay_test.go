package relay

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chess-relay-server/domain"
	"chess-relay-server/registry"
)

type mockConn struct {
	id      string
	name    string
	mu      sync.Mutex
	sent    [][]byte
	closed  bool
	sendErr error
}

func (m *mockConn) ID() string          { return m.id }
func (m *mockConn) DisplayName() string { return m.name }

func (m *mockConn) SetDisplayName(name string) { m.name = name }

func (m *mockConn) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, data)
	return nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConn) getSent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent
}

func (m *mockConn) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func decode(t *testing.T, data []byte) domain.Message {
	t.Helper()
	var msg domain.Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func snapshotFor(conns ...*mockConn) registry.Snapshot {
	snap := registry.Snapshot{RoomID: "room1"}
	for _, c := range conns {
		snap.Players = append(snap.Players, domain.Member{ID: c.id, Username: c.name})
		snap.Conns = append(snap.Conns, c)
	}
	return snap
}

func TestRelay_OpponentJoined(t *testing.T) {
	a := &mockConn{id: "a", name: "alice"}
	b := &mockConn{id: "b", name: "bob"}
	rl := New()

	rl.OpponentJoined(snapshotFor(a, b), "b")

	assert.Empty(t, b.getSent(), "joiner must not be notified")
	sent := a.getSent()
	require.Len(t, sent, 1)

	msg := decode(t, sent[0])
	assert.Equal(t, domain.TypeOpponentJoined, msg.Type)
	assert.Equal(t, "room1", msg.RoomID)
	require.Len(t, msg.Players, 2)
	assert.Equal(t, "alice", msg.Players[0].Username)
	assert.Equal(t, "bob", msg.Players[1].Username)
}

func TestRelay_MoveVerbatim(t *testing.T) {
	a := &mockConn{id: "a"}
	b := &mockConn{id: "b"}
	rl := New()
	payload := json.RawMessage(`{"from":"e2","to":"e4"}`)

	rl.Move(snapshotFor(a, b), "a", payload)

	assert.Empty(t, a.getSent(), "sender must not receive its own move")
	sent := b.getSent()
	require.Len(t, sent, 1)

	msg := decode(t, sent[0])
	assert.Equal(t, domain.TypeMove, msg.Type)
	assert.JSONEq(t, `{"from":"e2","to":"e4"}`, string(msg.Move))
}

func TestRelay_PeerDisconnected(t *testing.T) {
	b := &mockConn{id: "b"}
	rl := New()

	rl.PeerDisconnected(registry.Departure{
		RoomID:    "room1",
		Departed:  domain.Member{ID: "a", Username: "alice"},
		Remaining: []domain.Connection{b},
	})

	sent := b.getSent()
	require.Len(t, sent, 1)

	msg := decode(t, sent[0])
	assert.Equal(t, domain.TypePlayerDisconnected, msg.Type)
	require.NotNil(t, msg.Player)
	assert.Equal(t, "a", msg.Player.ID)
	assert.Equal(t, "alice", msg.Player.Username)
}

func TestRelay_RoomClosed(t *testing.T) {
	b := &mockConn{id: "b"}
	rl := New()

	rl.RoomClosed(registry.Closure{RoomID: "room1", Others: []domain.Connection{b}})

	sent := b.getSent()
	require.Len(t, sent, 1)

	msg := decode(t, sent[0])
	assert.Equal(t, domain.TypeRoomClosed, msg.Type)
	assert.Equal(t, "room1", msg.RoomID)
}

func TestRelay_SendFailureClosesConnection(t *testing.T) {
	a := &mockConn{id: "a"}
	stalled := &mockConn{id: "b", sendErr: assert.AnError}
	rl := New()

	rl.Move(snapshotFor(a, stalled), "a", json.RawMessage(`{}`))

	assert.True(t, stalled.isClosed())
	assert.False(t, a.isClosed())
}
