package ws

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(hub *Hub) *Client {
	return &Client{
		ID:   uuid.NewString(),
		Send: make(chan []byte, sendBuffer),
		hub:  hub,
	}
}

type evictRecorder struct {
	mu      sync.Mutex
	evicted []string
}

func (r *evictRecorder) record(roomID, playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evicted = append(r.evicted, playerID)
}

func (r *evictRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.evicted)
}

func TestHubBindRejectsSecondBinding(t *testing.T) {
	hub := NewHub(time.Second)
	c := newTestClient(hub)

	require.NoError(t, hub.Bind(c, "p1", "ROOM2345"))
	assert.ErrorIs(t, hub.Bind(c, "p2", "ROOM2345"), ErrDuplicateConnection)
}

func TestHubUnbindReturnsBinding(t *testing.T) {
	hub := NewHub(time.Second)
	c := newTestClient(hub)
	require.NoError(t, hub.Bind(c, "p1", "ROOM2345"))

	playerID, roomID, ok := hub.Unbind(c)
	require.True(t, ok)
	assert.Equal(t, "p1", playerID)
	assert.Equal(t, "ROOM2345", roomID)

	_, _, ok = hub.Binding(c)
	assert.False(t, ok)
}

func TestHubGraceEvictsAfterTimeout(t *testing.T) {
	rec := &evictRecorder{}
	hub := NewHub(50 * time.Millisecond)
	hub.SetEvictHandler(rec.record)

	c := newTestClient(hub)
	require.NoError(t, hub.Bind(c, "p1", "ROOM2345"))
	hub.OnDisconnect(c)

	assert.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestHubReconnectWithinGraceCancelsEviction(t *testing.T) {
	rec := &evictRecorder{}
	hub := NewHub(100 * time.Millisecond)
	hub.SetEvictHandler(rec.record)

	c := newTestClient(hub)
	require.NoError(t, hub.Bind(c, "p1", "ROOM2345"))
	hub.OnDisconnect(c)

	fresh := newTestClient(hub)
	require.NoError(t, hub.Rebind(fresh, "p1", "ROOM2345"))

	time.Sleep(250 * time.Millisecond)
	assert.Zero(t, rec.count(), "eviction should have been cancelled")

	playerID, _, ok := hub.Binding(fresh)
	require.True(t, ok)
	assert.Equal(t, "p1", playerID)
}

func TestHubRebindRejectsLiveIdentity(t *testing.T) {
	hub := NewHub(time.Second)
	c := newTestClient(hub)
	require.NoError(t, hub.Bind(c, "p1", "ROOM2345"))

	impostor := newTestClient(hub)
	assert.ErrorIs(t, hub.Rebind(impostor, "p1", "ROOM2345"), ErrDuplicateConnection)
}

func TestHubBroadcastExcludes(t *testing.T) {
	hub := NewHub(time.Second)
	c1 := newTestClient(hub)
	c2 := newTestClient(hub)
	require.NoError(t, hub.Bind(c1, "p1", "ROOM2345"))
	require.NoError(t, hub.Bind(c2, "p2", "ROOM2345"))

	hub.Broadcast("ROOM2345", MsgChatMessage, ChatMessageEvent{Message: "hi"}, c1)

	select {
	case <-c2.Send:
	default:
		t.Fatal("c2 should have received the frame")
	}
	select {
	case <-c1.Send:
		t.Fatal("excluded client received the frame")
	default:
	}
}
