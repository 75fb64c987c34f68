package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"playsync/internal/logger"
	"playsync/internal/metrics"
)

// ErrDuplicateConnection rejects a join or reconnect from a connection (or
// for an identity) that already has an active mapping.
var ErrDuplicateConnection = errors.New("connection already bound")

// binding ties a connection to the player identity it holds in a room.
type binding struct {
	playerID string
	roomID   string
}

// Hub is the connection tracker: connection ↔ player ↔ room, room
// subscriptions, and the disconnect grace period. A player whose connection
// drops keeps their seat until the grace timer fires; reconnecting with the
// same identity before that cancels the eviction entirely.
type Hub struct {
	mu          sync.Mutex
	bindings    map[string]*binding           // connID → binding
	playerConn  map[string]string             // playerID → connID
	roomConns   map[string]map[string]*Client // roomID → connID → client
	graceTimers map[string]*time.Timer        // playerID → pending eviction

	grace   time.Duration
	onEvict func(roomID, playerID string)
	onDrop  func(roomID, playerID string)
}

func NewHub(grace time.Duration) *Hub {
	return &Hub{
		bindings:    make(map[string]*binding),
		playerConn:  make(map[string]string),
		roomConns:   make(map[string]map[string]*Client),
		graceTimers: make(map[string]*time.Timer),
		grace:       grace,
	}
}

// SetEvictHandler installs the callback fired when a disconnect grace period
// expires without reconnection. Must be set before connections arrive.
func (h *Hub) SetEvictHandler(fn func(roomID, playerID string)) {
	h.onEvict = fn
}

// Bind registers a fresh join. A connection that already holds a binding is
// rejected rather than silently replacing it.
func (h *Hub) Bind(c *Client, playerID, roomID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.bindings[c.ID]; ok {
		return ErrDuplicateConnection
	}

	h.bindLocked(c, playerID, roomID)
	metrics.ActiveConnections.Inc()
	return nil
}

// Rebind restores a player's binding on a new connection, cancelling any
// pending eviction. Used by the reconnect flow after a network blip.
func (h *Hub) Rebind(c *Client, playerID, roomID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.bindings[c.ID]; ok {
		return ErrDuplicateConnection
	}

	if timer, ok := h.graceTimers[playerID]; ok {
		timer.Stop()
		delete(h.graceTimers, playerID)
		logger.Debug("grace eviction cancelled", "player_id", playerID)
	} else if _, held := h.playerConn[playerID]; held {
		// identity already held by a live connection
		return ErrDuplicateConnection
	}

	h.bindLocked(c, playerID, roomID)
	metrics.ActiveConnections.Inc()
	return nil
}

func (h *Hub) bindLocked(c *Client, playerID, roomID string) {
	h.bindings[c.ID] = &binding{playerID: playerID, roomID: roomID}
	h.playerConn[playerID] = c.ID
	if h.roomConns[roomID] == nil {
		h.roomConns[roomID] = make(map[string]*Client)
	}
	h.roomConns[roomID][c.ID] = c
}

// Unbind removes a connection's binding without a grace period (explicit
// leave). Returns the binding it held, if any.
func (h *Hub) Unbind(c *Client) (playerID, roomID string, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, found := h.bindings[c.ID]
	if !found {
		return "", "", false
	}
	h.removeLocked(c.ID, b)
	metrics.ActiveConnections.Dec()
	return b.playerID, b.roomID, true
}

// Binding reports the identity a connection holds.
func (h *Hub) Binding(c *Client) (playerID, roomID string, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, found := h.bindings[c.ID]
	if !found {
		return "", "", false
	}
	return b.playerID, b.roomID, true
}

// SetDropHandler installs the callback fired the moment a bound connection
// drops, before the grace period starts. Must be set before connections
// arrive.
func (h *Hub) SetDropHandler(fn func(roomID, playerID string)) {
	h.onDrop = fn
}

// OnDisconnect starts the grace period for a bound connection. The player
// keeps their seat; eviction fires only if no reconnect lands in time.
func (h *Hub) OnDisconnect(c *Client) {
	h.mu.Lock()
	b, found := h.bindings[c.ID]
	if !found {
		h.mu.Unlock()
		return
	}
	h.removeLocked(c.ID, b)
	metrics.ActiveConnections.Dec()

	playerID, roomID := b.playerID, b.roomID
	h.graceTimers[playerID] = time.AfterFunc(h.grace, func() {
		h.mu.Lock()
		if _, pending := h.graceTimers[playerID]; !pending {
			// reconnect won the race
			h.mu.Unlock()
			return
		}
		delete(h.graceTimers, playerID)
		h.mu.Unlock()

		logger.Info("disconnect grace expired", "player_id", playerID, "room_id", roomID)
		if h.onEvict != nil {
			h.onEvict(roomID, playerID)
		}
	})
	h.mu.Unlock()

	if h.onDrop != nil {
		h.onDrop(roomID, playerID)
	}
	logger.Debug("connection dropped, grace started", "conn_id", c.ID, "player_id", playerID)
}

func (h *Hub) removeLocked(connID string, b *binding) {
	delete(h.bindings, connID)
	if h.playerConn[b.playerID] == connID {
		delete(h.playerConn, b.playerID)
	}
	if conns, ok := h.roomConns[b.roomID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(h.roomConns, b.roomID)
		}
	}
}

// Broadcast sends an event to every connection subscribed to a room,
// optionally excluding one. The frame is marshalled once; no lock is held
// across the actual socket writes.
func (h *Hub) Broadcast(roomID, msgType string, payload any, exclude *Client) {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		logger.Error("broadcast marshal failed", "type", msgType, "error", err)
		return
	}

	h.mu.Lock()
	targets := make([]*Client, 0, len(h.roomConns[roomID]))
	for _, c := range h.roomConns[roomID] {
		if exclude != nil && c.ID == exclude.ID {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.enqueue(data)
	}
}

func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}
