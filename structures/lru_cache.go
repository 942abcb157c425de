package structures

import (
	"context"
	"fmt"

	"github.com/jalexanderII/test-websocket/connection"
	"github.com/jalexanderII/test-websocket/core"
)

// LRUCache is a persistent fixed-capacity cache with least-recently-used
// eviction. Values live in a hash keyed by cache key; recency lives in a
// list whose head is the most recently used key. Multi-step sequences are
// batched in a single pipeline and guarded by the container lock, so
// concurrent same-process access cannot interleave the hash and the order
// list.
type LRUCache[V any] struct {
	base
	capacity int
	orderKey string
}

// NewLRUCache creates a cache stored under {prefix}:{name} holding at most
// capacity entries.
func NewLRUCache[V any](name string, capacity int, manager *connection.Manager, opts ...Option) (*LRUCache[V], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("lru cache capacity must be positive, got %d: %w", capacity, core.ErrInvalidArgument)
	}
	c := &LRUCache[V]{
		base:     newBase(name, manager, opts),
		capacity: capacity,
	}
	c.orderKey = c.key + ":order"
	return c, nil
}

// Capacity returns the maximum number of entries the cache holds
func (c *LRUCache[V]) Capacity() int {
	return c.capacity
}

// Put stores a value and marks it most recently used. When the cache is
// full the least recently used entry is evicted.
func (c *LRUCache[V]) Put(ctx context.Context, key string, value V) error {
	data, err := c.serializer.Serialize(value)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	pipe := c.manager.Pipeline()
	pipe.LRem(ctx, c.orderKey, 0, key)
	pipe.LPush(ctx, c.orderKey, key)
	pipe.HSet(ctx, c.key, key, data)
	llen := pipe.LLen(ctx, c.orderKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	for extra := llen.Val() - int64(c.capacity); extra > 0; extra-- {
		evicted, err := c.manager.Execute(ctx, "rpop", c.orderKey)
		if err != nil {
			return err
		}
		victim, ok := evicted.(string)
		if !ok {
			break
		}
		if _, err := c.manager.Execute(ctx, "hdel", c.key, victim); err != nil {
			return err
		}
		c.logger.Debug("Evicted least recently used entry", map[string]interface{}{
			"cache": c.key,
			"key":   victim,
		})
	}
	return nil
}

// Get returns the value for key and promotes it to most recently used
func (c *LRUCache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.manager.Execute(ctx, "hget", c.key, key)
	if err != nil {
		return zero, false, err
	}
	data, ok := payloadBytes(res)
	if !ok {
		return zero, false, nil
	}

	pipe := c.manager.Pipeline()
	pipe.LRem(ctx, c.orderKey, 0, key)
	pipe.LPush(ctx, c.orderKey, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return zero, false, err
	}

	var value V
	if err := c.serializer.DeserializeInto(data, &value); err != nil {
		return zero, false, err
	}
	return value, true, nil
}

// Peek returns the value for key without touching recency
func (c *LRUCache[V]) Peek(ctx context.Context, key string) (V, bool, error) {
	var zero V
	res, err := c.manager.Execute(ctx, "hget", c.key, key)
	if err != nil {
		return zero, false, err
	}
	data, ok := payloadBytes(res)
	if !ok {
		return zero, false, nil
	}
	var value V
	if err := c.serializer.DeserializeInto(data, &value); err != nil {
		return zero, false, err
	}
	return value, true, nil
}

// Remove deletes an entry; returns false when the key was absent
func (c *LRUCache[V]) Remove(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pipe := c.manager.Pipeline()
	hdel := pipe.HDel(ctx, c.key, key)
	pipe.LRem(ctx, c.orderKey, 0, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return hdel.Val() > 0, nil
}

// GetLRUOrder returns the cached keys ordered least to most recently used
func (c *LRUCache[V]) GetLRUOrder(ctx context.Context) ([]string, error) {
	res, err := c.manager.Execute(ctx, "lrange", c.orderKey, 0, -1)
	if err != nil {
		return nil, err
	}
	recent, _ := res.([]string)
	order := make([]string, len(recent))
	for i, k := range recent {
		order[len(recent)-1-i] = k
	}
	return order, nil
}

// Size returns the number of cached entries
func (c *LRUCache[V]) Size(ctx context.Context) (int, error) {
	res, err := c.manager.Execute(ctx, "hlen", c.key)
	if err != nil {
		return 0, err
	}
	return int(asInt64(res)), nil
}

// Clear removes every entry and the recency list
func (c *LRUCache[V]) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.manager.Execute(ctx, "del", c.key, c.orderKey)
	return err
}
