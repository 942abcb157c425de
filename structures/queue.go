package structures

import (
	"context"

	"github.com/jalexanderII/test-websocket/connection"
)

// Queue is a persistent FIFO queue
type Queue[T any] struct {
	base
}

// NewQueue creates a Queue stored under {prefix}:{name}
func NewQueue[T any](name string, manager *connection.Manager, opts ...Option) *Queue[T] {
	return &Queue[T]{base: newBase(name, manager, opts)}
}

// Push appends a value to the back of the queue
func (q *Queue[T]) Push(ctx context.Context, value T) error {
	data, err := q.serializer.Serialize(value)
	if err != nil {
		return err
	}
	_, err = q.manager.Execute(ctx, "rpush", q.key, data)
	return err
}

// Pop removes and returns the oldest value; found is false when the queue
// is empty
func (q *Queue[T]) Pop(ctx context.Context) (T, bool, error) {
	var zero T
	res, err := q.manager.Execute(ctx, "lpop", q.key)
	if err != nil {
		return zero, false, err
	}
	data, ok := payloadBytes(res)
	if !ok {
		return zero, false, nil
	}
	var value T
	if err := q.serializer.DeserializeInto(data, &value); err != nil {
		return zero, false, err
	}
	return value, true, nil
}

// Peek returns the oldest value without removing it
func (q *Queue[T]) Peek(ctx context.Context) (T, bool, error) {
	var zero T
	res, err := q.manager.Execute(ctx, "lindex", q.key, 0)
	if err != nil {
		return zero, false, err
	}
	data, ok := payloadBytes(res)
	if !ok {
		return zero, false, nil
	}
	var value T
	if err := q.serializer.DeserializeInto(data, &value); err != nil {
		return zero, false, err
	}
	return value, true, nil
}

// Size returns the number of queued values
func (q *Queue[T]) Size(ctx context.Context) (int, error) {
	res, err := q.manager.Execute(ctx, "llen", q.key)
	if err != nil {
		return 0, err
	}
	return int(asInt64(res)), nil
}

// Clear removes all queued values
func (q *Queue[T]) Clear(ctx context.Context) error {
	_, err := q.manager.Execute(ctx, "del", q.key)
	return err
}
