package structures

import (
	"context"
	"strings"

	"github.com/jalexanderII/test-websocket/connection"
)

// Dict is a persistent string-keyed map. Each logical key maps to one
// physical store entry under the dict's namespace, so independent keys
// never contend.
type Dict[V any] struct {
	base
}

// NewDict creates a Dict stored under {prefix}:{name}
func NewDict[V any](name string, manager *connection.Manager, opts ...Option) *Dict[V] {
	return &Dict[V]{base: newBase(name, manager, opts)}
}

// fieldKey maps a logical key onto its physical store entry
func (d *Dict[V]) fieldKey(key string) string {
	return d.key + ":" + key
}

// Set stores a value under key, overwriting any previous value
func (d *Dict[V]) Set(ctx context.Context, key string, value V) error {
	data, err := d.serializer.Serialize(value)
	if err != nil {
		return err
	}
	_, err = d.manager.Execute(ctx, "set", d.fieldKey(key), data)
	return err
}

// Get returns the value for key; found is false when the key is absent
func (d *Dict[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	res, err := d.manager.Execute(ctx, "get", d.fieldKey(key))
	if err != nil {
		return zero, false, err
	}
	data, ok := payloadBytes(res)
	if !ok {
		return zero, false, nil
	}
	var value V
	if err := d.serializer.DeserializeInto(data, &value); err != nil {
		return zero, false, err
	}
	return value, true, nil
}

// Delete removes key. Deleting a nonexistent key is a no-op returning false.
func (d *Dict[V]) Delete(ctx context.Context, key string) (bool, error) {
	res, err := d.manager.Execute(ctx, "del", d.fieldKey(key))
	if err != nil {
		return false, err
	}
	return asInt64(res) > 0, nil
}

// Exists reports whether key is present
func (d *Dict[V]) Exists(ctx context.Context, key string) (bool, error) {
	res, err := d.manager.Execute(ctx, "exists", d.fieldKey(key))
	if err != nil {
		return false, err
	}
	return asInt64(res) > 0, nil
}

// Keys returns all logical keys in the dict
func (d *Dict[V]) Keys(ctx context.Context) ([]string, error) {
	res, err := d.manager.Execute(ctx, "keys", d.key+":*")
	if err != nil {
		return nil, err
	}
	physical, _ := res.([]string)
	keys := make([]string, 0, len(physical))
	for _, k := range physical {
		keys = append(keys, strings.TrimPrefix(k, d.key+":"))
	}
	return keys, nil
}

// Values returns all values in the dict
func (d *Dict[V]) Values(ctx context.Context) ([]V, error) {
	items, err := d.Items(ctx)
	if err != nil {
		return nil, err
	}
	values := make([]V, 0, len(items))
	for _, v := range items {
		values = append(values, v)
	}
	return values, nil
}

// Items returns the dict's contents as a Go map
func (d *Dict[V]) Items(ctx context.Context) (map[string]V, error) {
	keys, err := d.Keys(ctx)
	if err != nil {
		return nil, err
	}
	items := make(map[string]V, len(keys))
	if len(keys) == 0 {
		return items, nil
	}

	physical := make([]interface{}, len(keys))
	for i, k := range keys {
		physical[i] = d.fieldKey(k)
	}
	res, err := d.manager.Execute(ctx, "mget", physical...)
	if err != nil {
		return nil, err
	}
	payloads, _ := res.([]interface{})
	for i, payload := range payloads {
		if i >= len(keys) {
			break
		}
		data, ok := payloadBytes(payload)
		if !ok {
			// Key deleted between the scan and the read
			continue
		}
		var value V
		if err := d.serializer.DeserializeInto(data, &value); err != nil {
			return nil, err
		}
		items[keys[i]] = value
	}
	return items, nil
}

// Size returns the number of keys in the dict
func (d *Dict[V]) Size(ctx context.Context) (int, error) {
	keys, err := d.Keys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Clear removes every key in the dict
func (d *Dict[V]) Clear(ctx context.Context) error {
	keys, err := d.Keys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	physical := make([]interface{}, len(keys))
	for i, k := range keys {
		physical[i] = d.fieldKey(k)
	}
	_, err = d.manager.Execute(ctx, "del", physical...)
	return err
}
