// Package serialization converts domain values to and from the wire
// representation stored in Redis.
//
// Values travel inside a small JSON envelope that records enough type
// information for typed round-trips. Registered struct types deserialize
// back to their concrete Go type; everything else round-trips through
// JSON-native typing. Payloads above a configurable threshold are
// transparently gzip-compressed; decompression is detected from the gzip
// magic header, so readers never need to know whether a writer compressed.
package serialization

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sync"
	"time"

	"github.com/jalexanderII/test-websocket/core"
)

// typeJSON marks values without a registered type; they deserialize to
// JSON-native Go values (map[string]interface{}, []interface{}, float64...).
const typeJSON = "json"

// DefaultCompressionThreshold is the serialized size in bytes above which
// payloads are compressed
const DefaultCompressionThreshold = 1024

// envelope is the wire format
type envelope struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// Serializer converts values to/from bytes. Safe for concurrent use.
// Zero-config: NewSerializer() works out of the box.
type Serializer struct {
	threshold int

	mu     sync.RWMutex
	byName map[string]reflect.Type
	byType map[reflect.Type]string
}

// Option configures a Serializer
type Option func(*Serializer)

// WithCompressionThreshold sets the size in bytes above which serialized
// payloads are gzip-compressed. A threshold <= 0 disables compression.
func WithCompressionThreshold(bytes int) Option {
	return func(s *Serializer) { s.threshold = bytes }
}

// NewSerializer creates a Serializer with an empty type registry
func NewSerializer(opts ...Option) *Serializer {
	s := &Serializer{
		threshold: DefaultCompressionThreshold,
		byName:    make(map[string]reflect.Type),
		byType:    make(map[reflect.Type]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register associates a name with the prototype's concrete type so values of
// that type survive a serialize/deserialize round trip with their Go type
// intact. Must be called before the first use of the type. The prototype may
// be a value or a pointer; registration always records the element type.
func (s *Serializer) Register(name string, prototype interface{}) error {
	if name == "" || name == typeJSON {
		return fmt.Errorf("invalid type name %q: %w", name, core.ErrInvalidArgument)
	}
	t := reflect.TypeOf(prototype)
	if t == nil {
		return fmt.Errorf("cannot register nil prototype: %w", core.ErrInvalidArgument)
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return fmt.Errorf("type %s is not a struct: %w", t, core.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byName[name]; ok && existing != t {
		return fmt.Errorf("name %q already registered to %s: %w", name, existing, core.ErrInvalidArgument)
	}
	s.byName[name] = t
	s.byType[t] = name
	return nil
}

// RegisteredTypes returns a snapshot of the registry, keyed by name
func (s *Serializer) RegisteredTypes() map[string]reflect.Type {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]reflect.Type, len(s.byName))
	for name, t := range s.byName {
		out[name] = t
	}
	return out
}

// Serialize converts a value to its wire representation, compressing the
// payload when it exceeds the configured threshold.
func (s *Serializer) Serialize(v interface{}) ([]byte, error) {
	name := typeJSON
	if t := concreteType(v); t != nil {
		s.mu.RLock()
		if registered, ok := s.byType[t]; ok {
			name = registered
		}
		s.mu.RUnlock()
	}

	value, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cannot encode value of type %T: %w", v, core.ErrSerialization)
	}

	data, err := json.Marshal(envelope{Type: name, Value: value})
	if err != nil {
		return nil, fmt.Errorf("cannot encode envelope: %w", core.ErrSerialization)
	}

	if s.threshold > 0 && len(data) > s.threshold {
		return compress(data)
	}
	return data, nil
}

// Deserialize converts wire bytes back to a value. Envelopes naming a
// registered type produce a pointer to a freshly allocated value of that
// type; envelopes naming an unregistered type fail with ErrTypeNotRegistered.
func (s *Serializer) Deserialize(data []byte) (interface{}, error) {
	data, err := maybeDecompress(data)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed payload: %w", core.ErrSerialization)
	}

	if env.Type == typeJSON {
		var v interface{}
		if err := json.Unmarshal(env.Value, &v); err != nil {
			return nil, fmt.Errorf("malformed value: %w", core.ErrSerialization)
		}
		return v, nil
	}

	s.mu.RLock()
	t, ok := s.byName[env.Type]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("type %q: %w", env.Type, core.ErrTypeNotRegistered)
	}

	target := reflect.New(t)
	if err := json.Unmarshal(env.Value, target.Interface()); err != nil {
		return nil, fmt.Errorf("cannot decode %q value: %w", env.Type, core.ErrSerialization)
	}
	return target.Interface(), nil
}

// DeserializeInto decodes wire bytes into target, which must be a non-nil
// pointer. The envelope's type name is not consulted; the caller's type wins.
func (s *Serializer) DeserializeInto(data []byte, target interface{}) error {
	data, err := maybeDecompress(data)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("malformed payload: %w", core.ErrSerialization)
	}
	if err := json.Unmarshal(env.Value, target); err != nil {
		return fmt.Errorf("cannot decode value into %T: %w", target, core.ErrSerialization)
	}
	return nil
}

// Normalize converts a value into a JSON-safe representation: structs and
// maps become map[string]interface{}, slices become []interface{}, times
// become RFC 3339 strings, durations become seconds. Used by the task
// processor to store arbitrary task results inside a flat record.
func (s *Serializer) Normalize(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return x.Format(time.RFC3339Nano), nil
	case time.Duration:
		return x.Seconds(), nil
	case error:
		return x.Error(), nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cannot normalize value of type %T: %w", v, core.ErrSerialization)
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("cannot normalize value of type %T: %w", v, core.ErrSerialization)
	}
	return out, nil
}

// concreteType resolves the element type behind v, or nil for non-structs
func concreteType(v interface{}) reflect.Type {
	t := reflect.TypeOf(v)
	if t == nil {
		return nil
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	return t
}

// gzip magic header, used to detect compressed payloads on read
var gzipMagic = []byte{0x1f, 0x8b}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("compression failed: %w", core.ErrSerialization)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compression failed: %w", core.ErrSerialization)
	}
	return buf.Bytes(), nil
}

func maybeDecompress(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, gzipMagic) {
		return data, nil
	}
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decompression failed: %w", core.ErrSerialization)
	}
	defer func() { _ = r.Close() }()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompression failed: %w", core.ErrSerialization)
	}
	return out, nil
}
