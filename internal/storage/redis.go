package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "room:"

// RedisGateway stores room snapshots as JSON values under room:<id> with a
// per-key TTL, so expiry needs no sweeper on our side.
type RedisGateway struct {
	client *redis.Client
}

func NewRedisGateway(addr, password string, db int) (*RedisGateway, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisGateway{client: client}, nil
}

func (g *RedisGateway) Put(ctx context.Context, roomID string, snap Snapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := g.client.Set(ctx, roomKey(roomID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	return nil
}

func (g *RedisGateway) Get(ctx context.Context, roomID string) (Snapshot, bool, error) {
	data, err := g.client.Get(ctx, roomKey(roomID)).Result()
	if err != nil {
		if err == redis.Nil {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("failed to get snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return snap, true, nil
}

func (g *RedisGateway) Delete(ctx context.Context, roomID string) error {
	if err := g.client.Del(ctx, roomKey(roomID)).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

func (g *RedisGateway) ListLive(ctx context.Context) ([]string, error) {
	var ids []string
	iter := g.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan snapshots: %w", err)
	}
	return ids, nil
}

func (g *RedisGateway) Close() error {
	return g.client.Close()
}

func roomKey(id string) string {
	return keyPrefix + id
}
