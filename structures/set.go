package structures

import (
	"context"

	"github.com/jalexanderII/test-websocket/connection"
)

// Set is a persistent unordered collection of unique values. Membership is
// decided on the serialized representation, so values must serialize
// deterministically.
type Set[T any] struct {
	base
}

// NewSet creates a Set stored under {prefix}:{name}
func NewSet[T any](name string, manager *connection.Manager, opts ...Option) *Set[T] {
	return &Set[T]{base: newBase(name, manager, opts)}
}

// Add inserts a value. Adding an existing value is idempotent and returns
// false.
func (s *Set[T]) Add(ctx context.Context, value T) (bool, error) {
	data, err := s.serializer.Serialize(value)
	if err != nil {
		return false, err
	}
	res, err := s.manager.Execute(ctx, "sadd", s.key, data)
	if err != nil {
		return false, err
	}
	return asInt64(res) > 0, nil
}

// Remove deletes a value; returns false when it was not a member
func (s *Set[T]) Remove(ctx context.Context, value T) (bool, error) {
	data, err := s.serializer.Serialize(value)
	if err != nil {
		return false, err
	}
	res, err := s.manager.Execute(ctx, "srem", s.key, data)
	if err != nil {
		return false, err
	}
	return asInt64(res) > 0, nil
}

// Contains reports membership
func (s *Set[T]) Contains(ctx context.Context, value T) (bool, error) {
	data, err := s.serializer.Serialize(value)
	if err != nil {
		return false, err
	}
	res, err := s.manager.Execute(ctx, "sismember", s.key, data)
	if err != nil {
		return false, err
	}
	ok, _ := res.(bool)
	return ok, nil
}

// Members returns all values in the set
func (s *Set[T]) Members(ctx context.Context) ([]T, error) {
	res, err := s.manager.Execute(ctx, "smembers", s.key)
	if err != nil {
		return nil, err
	}
	raw, _ := res.([]string)
	members := make([]T, 0, len(raw))
	for _, item := range raw {
		var value T
		if err := s.serializer.DeserializeInto([]byte(item), &value); err != nil {
			return nil, err
		}
		members = append(members, value)
	}
	return members, nil
}

// Pop removes and returns an arbitrary member; found is false when empty
func (s *Set[T]) Pop(ctx context.Context) (T, bool, error) {
	var zero T
	res, err := s.manager.Execute(ctx, "spop", s.key)
	if err != nil {
		return zero, false, err
	}
	data, ok := payloadBytes(res)
	if !ok {
		return zero, false, nil
	}
	var value T
	if err := s.serializer.DeserializeInto(data, &value); err != nil {
		return zero, false, err
	}
	return value, true, nil
}

// Size returns the number of members
func (s *Set[T]) Size(ctx context.Context) (int, error) {
	res, err := s.manager.Execute(ctx, "scard", s.key)
	if err != nil {
		return 0, err
	}
	return int(asInt64(res)), nil
}

// Clear removes all members
func (s *Set[T]) Clear(ctx context.Context) error {
	_, err := s.manager.Execute(ctx, "del", s.key)
	return err
}
