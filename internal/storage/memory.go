package storage

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	snap      Snapshot
	expiresAt time.Time
}

// MemoryGateway is an in-process Gateway used in tests and Redis-less runs.
// Snapshots do not survive a restart, which only costs reconnect-after-crash.
type MemoryGateway struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{entries: make(map[string]memoryEntry)}
}

func (g *MemoryGateway) Put(_ context.Context, roomID string, snap Snapshot, ttl time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries[roomID] = memoryEntry{snap: snap, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (g *MemoryGateway) Get(_ context.Context, roomID string) (Snapshot, bool, error) {
	g.mu.RLock()
	entry, ok := g.entries[roomID]
	g.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return Snapshot{}, false, nil
	}
	return entry.snap, true, nil
}

func (g *MemoryGateway) Delete(_ context.Context, roomID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, roomID)
	return nil
}

func (g *MemoryGateway) ListLive(_ context.Context) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	now := time.Now()
	var ids []string
	for id, entry := range g.entries {
		if now.Before(entry.expiresAt) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
