package storage

import (
	"context"
	"time"
)

// Snapshot is the minimal durable record of a room. It exists so a room code
// survives a process restart for reconnection purposes; live membership and
// game state are never persisted.
type Snapshot struct {
	RoomID     string    `json:"room_id"`
	CreatedAt  time.Time `json:"created_at"`
	MaxPlayers int       `json:"max_players"`
}

// Gateway is the persistence contract for room snapshots. Implementations
// provide at-least-once durability with a TTL; no consistency is assumed
// across concurrent writers.
type Gateway interface {
	// Put stores or replaces a snapshot with the given expiry.
	Put(ctx context.Context, roomID string, snap Snapshot, ttl time.Duration) error

	// Get retrieves a snapshot. A missing record is (zero, false, nil).
	Get(ctx context.Context, roomID string) (Snapshot, bool, error)

	// Delete removes a snapshot. Deleting a missing record is not an error.
	Delete(ctx context.Context, roomID string) error

	// ListLive returns the ids of all unexpired snapshots.
	ListLive(ctx context.Context) ([]string, error)
}
