package room

import (
	"context"
	"strings"
	"sync"
	"time"

	"playsync/internal/logger"
	"playsync/internal/roomcode"
	"playsync/internal/storage"

	"github.com/google/uuid"
)

// Registry owns the set of live rooms and is the single serialization point
// for room membership. It is an injected object, not process-global state,
// so each test constructs its own.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room

	gateway        storage.Gateway
	defaultTimeout time.Duration
	snapshotTTL    time.Duration
	maxPlayers     int

	cleanupMu       sync.Mutex
	lastCleanup     time.Time
	cleanupInterval time.Duration
}

type RegistryOptions struct {
	DefaultTimeout  time.Duration // in-memory inactivity timeout
	SnapshotTTL     time.Duration // durable snapshot expiry
	MaxPlayers      int
	CleanupInterval time.Duration
}

func NewRegistry(gateway storage.Gateway, opts RegistryOptions) *Registry {
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = 1200 * time.Second
	}
	if opts.SnapshotTTL <= 0 {
		opts.SnapshotTTL = 24 * time.Hour
	}
	if opts.MaxPlayers <= 0 {
		opts.MaxPlayers = 2
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = time.Minute
	}
	return &Registry{
		rooms:           make(map[string]*Room),
		gateway:         gateway,
		defaultTimeout:  opts.DefaultTimeout,
		snapshotTTL:     opts.SnapshotTTL,
		maxPlayers:      opts.MaxPlayers,
		cleanupInterval: opts.CleanupInterval,
		lastCleanup:     time.Now(),
	}
}

// CreateRoom registers a new room under a fresh code and durably records a
// minimal snapshot. The snapshot TTL is independent of the in-memory
// inactivity timeout: it only keeps the code resolvable across a restart.
func (reg *Registry) CreateRoom(ctx context.Context, timeout time.Duration) (string, error) {
	reg.MaybeCleanup(ctx)

	if timeout <= 0 {
		timeout = reg.defaultTimeout
	}

	var (
		id string
		rm *Room
	)
	for rm == nil {
		id = roomcode.Generate()

		// a code stays reserved while any durable record holds it, even
		// one written by a previous process. A gateway error does not
		// block creation.
		if _, held, err := reg.gateway.Get(ctx, id); err == nil && held {
			continue
		}

		reg.mu.Lock()
		if _, exists := reg.rooms[id]; !exists {
			rm = New(id, reg.maxPlayers, timeout)
			reg.rooms[id] = rm
		}
		reg.mu.Unlock()
	}

	snap := storage.Snapshot{
		RoomID:     id,
		CreatedAt:  rm.CreatedAt,
		MaxPlayers: reg.maxPlayers,
	}
	if err := reg.gateway.Put(ctx, id, snap, reg.snapshotTTL); err != nil {
		// the room still works for this process lifetime; only
		// reconnect-after-restart is lost
		logger.Error("failed to persist room snapshot", "room_id", id, "error", err)
	}

	logger.Info("room created", "room_id", id, "timeout", timeout)
	return id, nil
}

// GetRoom resolves a room id, consulting the persistence gateway on a miss
// and rehydrating a bare shell if a durable record exists. Players are never
// restored from the snapshot. Absence is a valid outcome, not an error.
func (reg *Registry) GetRoom(ctx context.Context, id string) *Room {
	id = strings.ToUpper(id)

	reg.mu.Lock()
	rm, ok := reg.rooms[id]
	reg.mu.Unlock()
	if ok {
		return rm
	}

	snap, found, err := reg.gateway.Get(ctx, id)
	if err != nil {
		logger.Error("snapshot lookup failed", "room_id", id, "error", err)
		return nil
	}
	if !found {
		return nil
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	// a concurrent lookup may have rehydrated it already
	if rm, ok := reg.rooms[id]; ok {
		return rm
	}
	maxPlayers := snap.MaxPlayers
	if maxPlayers <= 0 {
		maxPlayers = reg.maxPlayers
	}
	rm = New(id, maxPlayers, reg.defaultTimeout)
	reg.rooms[id] = rm
	logger.Debug("room rehydrated from storage", "room_id", id)
	return rm
}

// JoinRoom admits a new player, generating their opaque id server-side.
// The returned error is one of ErrRoomNotFound, ErrRoomFull, ErrRoomExpired.
func (reg *Registry) JoinRoom(ctx context.Context, id, displayName, color string) (*PlayerSlot, View, error) {
	rm := reg.GetRoom(ctx, id)
	if rm == nil {
		return nil, View{}, ErrRoomNotFound
	}

	playerID := uuid.NewString()
	slot, err := rm.AddPlayer(playerID, displayName, color)
	if err != nil {
		return nil, View{}, err
	}

	logger.Info("player joined room", "room_id", rm.ID, "player_id", playerID)
	return slot, rm.View(), nil
}

// LeaveRoom removes a player. When the last player leaves, the room is
// deleted from the live set and its durable snapshot removed, so the code
// cannot resolve to a stale empty room.
func (reg *Registry) LeaveRoom(ctx context.Context, id, playerID string) bool {
	rm := reg.GetRoom(ctx, id)
	if rm == nil {
		return false
	}

	removed, empty := rm.RemovePlayer(playerID)
	if !removed {
		return false
	}

	if empty {
		reg.deleteRoom(ctx, rm, "empty")
	}
	logger.Info("player left room", "room_id", rm.ID, "player_id", playerID)
	return true
}

// CleanupExpired evicts rooms idle past their inactivity timeout from memory
// and durable storage. Staleness wastes memory but never correctness, so
// this runs opportunistically rather than on a dedicated scheduler.
func (reg *Registry) CleanupExpired(ctx context.Context) int {
	reg.mu.Lock()
	var expired []*Room
	for _, rm := range reg.rooms {
		if rm.IsExpired() {
			expired = append(expired, rm)
		}
	}
	reg.mu.Unlock()

	for _, rm := range expired {
		reg.deleteRoom(ctx, rm, "expired")
	}
	return len(expired)
}

// MaybeCleanup runs CleanupExpired if the minimum interval has passed.
func (reg *Registry) MaybeCleanup(ctx context.Context) {
	reg.cleanupMu.Lock()
	due := time.Since(reg.lastCleanup) > reg.cleanupInterval
	if due {
		reg.lastCleanup = time.Now()
	}
	reg.cleanupMu.Unlock()

	if due {
		reg.CleanupExpired(ctx)
	}
}

// Count returns the number of live rooms.
func (reg *Registry) Count() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

func (reg *Registry) deleteRoom(ctx context.Context, rm *Room, reason string) {
	rm.markClosed()

	reg.mu.Lock()
	delete(reg.rooms, rm.ID)
	reg.mu.Unlock()

	// any running timer must die with the room or its goroutine leaks
	if eng := rm.DetachEngine(); eng != nil {
		eng.Stop()
	}

	if err := reg.gateway.Delete(ctx, rm.ID); err != nil {
		logger.Error("failed to delete room snapshot", "room_id", rm.ID, "error", err)
	}
	logger.Info("room deleted", "room_id", rm.ID, "reason", reason)
}
