package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/jalexanderII/test-websocket/core"
)

// dispatch maps an operation name onto the underlying client. Results are
// normalized: string payloads for value reads, nil for missing values,
// int64 for counters, bool for membership checks.
func (m *Manager) dispatch(ctx context.Context, op string, args []interface{}) (interface{}, error) {
	switch op {
	case "ping":
		return m.client.Ping(ctx).Result()

	// --- String operations ---

	case "get":
		key, err := argString(op, args, 0)
		if err != nil {
			return nil, err
		}
		return nilOnMiss(m.client.Get(ctx, key).Result())

	case "set":
		key, err := argString(op, args, 0)
		if err != nil {
			return nil, err
		}
		value, err := argValue(op, args, 1)
		if err != nil {
			return nil, err
		}
		ttl := time.Duration(0)
		if len(args) > 2 {
			ttl, err = argDuration(op, args, 2)
			if err != nil {
				return nil, err
			}
		}
		if err := m.client.Set(ctx, key, value, ttl).Err(); err != nil {
			return nil, err
		}
		return true, nil

	case "del":
		keys, err := argStrings(op, args, 0)
		if err != nil {
			return nil, err
		}
		return m.client.Del(ctx, keys...).Result()

	case "exists":
		keys, err := argStrings(op, args, 0)
		if err != nil {
			return nil, err
		}
		return m.client.Exists(ctx, keys...).Result()

	case "expire":
		key, err := argString(op, args, 0)
		if err != nil {
			return nil, err
		}
		ttl, err := argDuration(op, args, 1)
		if err != nil {
			return nil, err
		}
		return m.client.Expire(ctx, key, ttl).Result()

	case "ttl":
		key, err := argString(op, args, 0)
		if err != nil {
			return nil, err
		}
		return m.client.TTL(ctx, key).Result()

	case "persist":
		key, err := argString(op, args, 0)
		if err != nil {
			return nil, err
		}
		return m.client.Persist(ctx, key).Result()

	case "keys":
		pattern, err := argString(op, args, 0)
		if err != nil {
			return nil, err
		}
		return m.client.Keys(ctx, pattern).Result()

	case "mget":
		keys, err := argStrings(op, args, 0)
		if err != nil {
			return nil, err
		}
		return m.client.MGet(ctx, keys...).Result()

	// --- List operations ---

	case "rpush":
		key, values, err := keyAndValues(op, args)
		if err != nil {
			return nil, err
		}
		return m.client.RPush(ctx, key, values...).Result()

	case "lpush":
		key, values, err := keyAndValues(op, args)
		if err != nil {
			return nil, err
		}
		return m.client.LPush(ctx, key, values...).Result()

	case "lpop":
		key, err := argString(op, args, 0)
		if err != nil {
			return nil, err
		}
		return nilOnMiss(m.client.LPop(ctx, key).Result())

	case "rpop":
		key, err := argString(op, args, 0)
		if err != nil {
			return nil, err
		}
		return nilOnMiss(m.client.RPop(ctx, key).Result())

	case "lrem":
		key, err := argString(op, args, 0)
		if err != nil {
			return nil, err
		}
		count, err := argInt64(op, args, 1)
		if err != nil {
			return nil, err
		}
		value, err := argValue(op, args, 2)
		if err != nil {
			return nil, err
		}
		return m.client.LRem(ctx, key, count, value).Result()

	case "lrange":
		key, err := argString(op, args, 0)
		if err != nil {
			return nil, err
		}
		start, err := argInt64(op, args, 1)
		if err != nil {
			return nil, err
		}
		stop, err := argInt64(op, args, 2)
		if err != nil {
			return nil, err
		}
		return m.client.LRange(ctx, key, start, stop).Result()

	case "llen":
		key, err := argString(op, args, 0)
		if err != nil {
			return nil, err
		}
		return m.client.LLen(ctx, key).Result()

	case "lindex":
		key, err := argString(op, args, 0)
		if err != nil {
			return nil, err
		}
		index, err := argInt64(op, args, 1)
		if err != nil {
			return nil, err
		}
		return nilOnMiss(m.client.LIndex(ctx, key, index).Result())

	// --- Hash operations ---

	case "hset":
		key, err := argString(op, args, 0)
		if err != nil {
			return nil, err
		}
		field, err := argString(op, args, 1)
		if err != nil {
			return nil, err
		}
		value, err := argValue(op, args, 2)
		if err != nil {
			return nil, err
		}
		return m.client.HSet(ctx, key, field, value).Result()

	case "hget":
		key, err := argString(op, args, 0)
		if err != nil {
			return nil, err
		}
		field, err := argString(op, args, 1)
		if err != nil {
			return nil, err
		}
		return nilOnMiss(m.client.HGet(ctx, key, field).Result())

	case "hdel":
		key, err := argString(op, args, 0)
		if err != nil {
			return nil, err
		}
		fields, err := argStrings(op, args, 1)
		if err != nil {
			return nil, err
		}
		return m.client.HDel(ctx, key, fields...).Result()

	case "hlen":
		key, err := argString(op, args, 0)
		if err != nil {
			return nil, err
		}
		return m.client.HLen(ctx, key).Result()

	case "hgetall":
		key, err := argString(op, args, 0)
		if err != nil {
			return nil, err
		}
		return m.client.HGetAll(ctx, key).Result()

	// --- Set operations ---

	case "sadd":
		key, values, err := keyAndValues(op, args)
		if err != nil {
			return nil, err
		}
		return m.client.SAdd(ctx, key, values...).Result()

	case "srem":
		key, values, err := keyAndValues(op, args)
		if err != nil {
			return nil, err
		}
		return m.client.SRem(ctx, key, values...).Result()

	case "sismember":
		key, err := argString(op, args, 0)
		if err != nil {
			return nil, err
		}
		member, err := argValue(op, args, 1)
		if err != nil {
			return nil, err
		}
		return m.client.SIsMember(ctx, key, member).Result()

	case "smembers":
		key, err := argString(op, args, 0)
		if err != nil {
			return nil, err
		}
		return m.client.SMembers(ctx, key).Result()

	case "spop":
		key, err := argString(op, args, 0)
		if err != nil {
			return nil, err
		}
		return nilOnMiss(m.client.SPop(ctx, key).Result())

	case "scard":
		key, err := argString(op, args, 0)
		if err != nil {
			return nil, err
		}
		return m.client.SCard(ctx, key).Result()

	// --- Pub/sub ---

	case "publish":
		channel, err := argString(op, args, 0)
		if err != nil {
			return nil, err
		}
		message, err := argValue(op, args, 1)
		if err != nil {
			return nil, err
		}
		return m.client.Publish(ctx, channel, message).Result()

	default:
		return nil, fmt.Errorf("%q: %w", op, core.ErrUnknownOperation)
	}
}

// nilOnMiss converts redis.Nil into an absent value
func nilOnMiss(value string, err error) (interface{}, error) {
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func argValue(op string, args []interface{}, i int) (interface{}, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("%s: missing argument %d: %w", op, i, core.ErrInvalidArgument)
	}
	return args[i], nil
}

func argString(op string, args []interface{}, i int) (string, error) {
	v, err := argValue(op, args, i)
	if err != nil {
		return "", err
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	default:
		return "", fmt.Errorf("%s: argument %d must be a string, got %T: %w", op, i, v, core.ErrInvalidArgument)
	}
}

// argStrings collects all arguments from index i onward as strings
func argStrings(op string, args []interface{}, i int) ([]string, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("%s: missing argument %d: %w", op, i, core.ErrInvalidArgument)
	}
	out := make([]string, 0, len(args)-i)
	for ; i < len(args); i++ {
		s, err := argString(op, args, i)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func argInt64(op string, args []interface{}, i int) (int64, error) {
	v, err := argValue(op, args, i)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("%s: argument %d must be an integer, got %T: %w", op, i, v, core.ErrInvalidArgument)
	}
}

func argDuration(op string, args []interface{}, i int) (time.Duration, error) {
	v, err := argValue(op, args, i)
	if err != nil {
		return 0, err
	}
	switch d := v.(type) {
	case time.Duration:
		return d, nil
	case int:
		return time.Duration(d) * time.Second, nil
	case int64:
		return time.Duration(d) * time.Second, nil
	default:
		return 0, fmt.Errorf("%s: argument %d must be a duration, got %T: %w", op, i, v, core.ErrInvalidArgument)
	}
}

// keyAndValues splits args into a leading key and trailing values
func keyAndValues(op string, args []interface{}) (string, []interface{}, error) {
	key, err := argString(op, args, 0)
	if err != nil {
		return "", nil, err
	}
	if len(args) < 2 {
		return "", nil, fmt.Errorf("%s: missing values: %w", op, core.ErrInvalidArgument)
	}
	return key, args[1:], nil
}
