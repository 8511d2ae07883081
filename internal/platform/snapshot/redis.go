// Package snapshot caches replayed container state in Redis so dispatchers
// can resume from the cached sequence instead of folding the full stream.
// The cache is advisory: a stale or missing entry only costs extra replay.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cargotrail/project/internal/container"
)

const snapshotKeyPrefix = "container:snapshot:"

const defaultTTL = 10 * time.Minute

type envelope struct {
	State    container.State `json:"state"`
	Sequence uint64          `json:"sequence"`
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, containerID string) (container.State, uint64, bool, error) {
	raw, err := c.client.Get(ctx, snapshotKeyPrefix+containerID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return container.State{}, 0, false, nil
		}
		return container.State{}, 0, false, err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// Unreadable entries are treated as a miss and dropped.
		_ = c.client.Del(ctx, snapshotKeyPrefix+containerID).Err()
		return container.State{}, 0, false, nil
	}
	return env.State, env.Sequence, true, nil
}

func (c *RedisCache) Put(ctx context.Context, containerID string, state container.State, sequence uint64) error {
	raw, err := json.Marshal(envelope{State: state, Sequence: sequence})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, snapshotKeyPrefix+containerID, raw, c.ttl).Err()
}
