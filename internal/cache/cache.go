// Package cache keeps the last message snapshot a device has seen, so a
// room can be rendered before the live subscription delivers anything.
package cache

import (
	"circleup/backend/internal/config"
	"circleup/backend/internal/models"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Snapshot is the serialized ordered message list of one room, as seen by
// UserID.
type Snapshot struct {
	UserID   string           `json:"userId"`
	RoomID   string           `json:"roomId"`
	Messages []models.Message `json:"messages"`
}

// Cache is single-writer (the live sync engine) and read once on room entry.
type Cache interface {
	Load(ctx context.Context) (Snapshot, bool, error)
	Save(ctx context.Context, snap Snapshot) error
}

// RedisCache stores the snapshot under one key per user and device. Entries
// never expire.
type RedisCache struct {
	client *redis.Client
	key    string
}

func NewRedisCache(client *redis.Client, userID, deviceID string) *RedisCache {
	return &RedisCache{
		client: client,
		key:    Key(userID, deviceID),
	}
}

// Key returns the Redis key holding userID's snapshot on deviceID. The
// device id comes from the client, so the authenticated user scopes it.
func Key(userID, deviceID string) string {
	return config.CacheKeyPrefix + ":" + userID + ":" + deviceID
}

// Key returns the Redis key this cache writes.
func (c *RedisCache) Key() string { return c.key }

// Load returns found=false on a miss.
func (c *RedisCache) Load(ctx context.Context) (Snapshot, bool, error) {
	var snap Snapshot

	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return snap, false, nil
	}
	if err != nil {
		return snap, false, fmt.Errorf("cache get error: %w", err)
	}

	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("cache unmarshal error: %w", err)
	}
	return snap, true, nil
}

// Save overwrites the previous snapshot wholesale.
func (c *RedisCache) Save(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}
	if err := c.client.Set(ctx, c.key, data, 0).Err(); err != nil {
		return fmt.Errorf("cache set error: %w", err)
	}
	return nil
}

// Memory is a process-local Cache for devices without Redis.
type Memory struct {
	mu    sync.Mutex
	snap  Snapshot
	found bool
}

func (m *Memory) Load(context.Context) (Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap, m.found, nil
}

func (m *Memory) Save(_ context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = snap
	m.found = true
	return nil
}
