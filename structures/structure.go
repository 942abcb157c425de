// Package structures provides generic concurrent containers (Dict, Set,
// Queue, LRUCache) persisted in Redis through the connection Manager.
//
// Each container owns a namespaced key, serializes its entries through the
// serialization package, and guards multi-step sequences with an in-process
// lock so same-process racers cannot interleave. Independent containers
// never contend; same-key operations are serialized by the store's own
// atomicity guarantees or by a single pipelined batch.
package structures

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jalexanderII/test-websocket/connection"
	"github.com/jalexanderII/test-websocket/core"
	"github.com/jalexanderII/test-websocket/serialization"
)

// DefaultKeyPrefix namespaces all container keys unless overridden
const DefaultKeyPrefix = "structures"

type options struct {
	prefix     string
	serializer *serialization.Serializer
	logger     core.Logger
}

// Option configures a container
type Option func(*options)

// WithKeyPrefix overrides the container key namespace
func WithKeyPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithSerializer sets a shared serializer (e.g. one with registered types)
func WithSerializer(s *serialization.Serializer) Option {
	return func(o *options) {
		if s != nil {
			o.serializer = s
		}
	}
}

// WithLogger sets the logger for container operations
func WithLogger(logger core.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// base carries the pieces every container shares
type base struct {
	key        string
	manager    *connection.Manager
	serializer *serialization.Serializer
	logger     core.Logger
	mu         sync.Mutex
}

func newBase(name string, manager *connection.Manager, opts []Option) base {
	o := &options{
		prefix: DefaultKeyPrefix,
		logger: &core.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.serializer == nil {
		o.serializer = serialization.NewSerializer()
	}
	return base{
		key:        fmt.Sprintf("%s:%s", o.prefix, name),
		manager:    manager,
		serializer: o.serializer,
		logger:     o.logger,
	}
}

// Key returns the container's physical key
func (b *base) Key() string {
	return b.key
}

// SetTTL sets a time-to-live on the container's key
func (b *base) SetTTL(ctx context.Context, ttl time.Duration) (bool, error) {
	res, err := b.manager.Execute(ctx, "expire", b.key, ttl)
	if err != nil {
		return false, err
	}
	ok, _ := res.(bool)
	return ok, nil
}

// GetTTL returns the remaining time-to-live on the container's key
func (b *base) GetTTL(ctx context.Context) (time.Duration, error) {
	res, err := b.manager.Execute(ctx, "ttl", b.key)
	if err != nil {
		return 0, err
	}
	d, _ := res.(time.Duration)
	return d, nil
}

// Persist removes any time-to-live from the container's key
func (b *base) Persist(ctx context.Context) (bool, error) {
	res, err := b.manager.Execute(ctx, "persist", b.key)
	if err != nil {
		return false, err
	}
	ok, _ := res.(bool)
	return ok, nil
}

// payloadBytes converts a store read result to raw bytes
func payloadBytes(v interface{}) ([]byte, bool) {
	switch x := v.(type) {
	case string:
		return []byte(x), true
	case []byte:
		return x, true
	default:
		return nil, false
	}
}

// asInt64 converts a store counter result
func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}
