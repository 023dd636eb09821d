// Package rediscache provides a Redis-backed implementation of
// cache.Cache for resolved record states.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lirancohen/vitals/project"
)

// DefaultTTL bounds how long a cached state may outlive its last append.
// Invalidation on append is the correctness mechanism; the TTL only
// limits the blast radius of a missed invalidation.
const DefaultTTL = 5 * time.Minute

// Cache implements cache.Cache with Redis. States are stored as JSON
// under a per-record key.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a Redis cache. If ttl is zero, DefaultTTL is used.
func New(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

func key(eventID string) string {
	return "vitals:state:" + eventID
}

// Get returns the cached state for a record and whether one was present.
func (c *Cache) Get(ctx context.Context, eventID string) (project.State, bool, error) {
	data, err := c.client.Get(ctx, key(eventID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return project.State{}, false, nil
	}
	if err != nil {
		return project.State{}, false, fmt.Errorf("cache get: %w", err)
	}

	var st project.State
	if err := json.Unmarshal(data, &st); err != nil {
		// A corrupt entry behaves like a miss; the log re-resolves it.
		return project.State{}, false, nil
	}
	return st, true, nil
}

// Set stores the state for a record with the configured TTL.
func (c *Cache) Set(ctx context.Context, eventID string, st project.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.client.Set(ctx, key(eventID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate drops the cached state for a record.
func (c *Cache) Invalidate(ctx context.Context, eventID string) error {
	if err := c.client.Del(ctx, key(eventID)).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}
