package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisStore implements Store over RedisTimeSeries + core Redis
// commands, the way data/cache/cache.go wires a *redis.Client for the
// teacher's flat byte-blob cache — generalized here to the typed
// series/KV operations the screener needs.
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore dials uri (a redis:// URI) and verifies connectivity.
func NewRedisStore(ctx context.Context, uri string) (*RedisStore, error) {
	opts, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("parse redis uri: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) CreateSeries(ctx context.Context, key string, retention time.Duration, policy DuplicatePolicy) error {
	err := s.client.Do(ctx, "TS.CREATE", key,
		"RETENTION", retention.Milliseconds(),
		"DUPLICATE_POLICY", string(policy),
	).Err()
	if err != nil && !alreadyExists(err) {
		return fmt.Errorf("ts.create %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Add(ctx context.Context, key string, timestampMS int64, value float64, policy DuplicatePolicy) error {
	err := s.client.Do(ctx, "TS.ADD", key, timestampMS, value,
		"DUPLICATE_POLICY", string(policy),
	).Err()
	if err != nil {
		return fmt.Errorf("ts.add %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Range(ctx context.Context, key string, startMS, endMS int64) ([]Point, error) {
	res, err := s.client.Do(ctx, "TS.RANGE", key, startMS, endMS).Result()
	if err != nil {
		if isUnknownKey(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ts.range %s: %w", key, err)
	}
	rows, ok := res.([]interface{})
	if !ok {
		return nil, nil
	}
	points := make([]Point, 0, len(rows))
	for _, row := range rows {
		pair, ok := row.([]interface{})
		if !ok || len(pair) != 2 {
			continue
		}
		ts, err := toInt64(pair[0])
		if err != nil {
			continue
		}
		val, err := toFloat64(pair[1])
		if err != nil {
			continue
		}
		points = append(points, Point{TimestampMS: ts, Value: val})
	}
	return points, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string, startMS, endMS int64) error {
	err := s.client.Do(ctx, "TS.DEL", key, startMS, endMS).Err()
	if err != nil && !isUnknownKey(err) {
		return fmt.Errorf("ts.del %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, false, fmt.Errorf("ttl %s: %w", key, err)
	}
	// -2: key does not exist. -1: key exists but has no expiry.
	if ttl < 0 {
		return 0, false, nil
	}
	return ttl, true, nil
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", key, err)
	}
	return n > 0, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func alreadyExists(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}

func isUnknownKey(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unknown") || strings.Contains(msg, "does not exist")
}

func toInt64(v interface{}) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected timestamp type %T", v)
	}
}

func toFloat64(v interface{}) (float64, error) {
	switch t := v.(type) {
	case string:
		return strconv.ParseFloat(t, 64)
	case float64:
		return t, nil
	default:
		return 0, fmt.Errorf("unexpected value type %T", v)
	}
}
