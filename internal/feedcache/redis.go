package feedcache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldData = "data"
	fieldTS   = "ts"
)

// Redis keeps the latest payload of one feed in a hash so several service
// instances share the same fallback copy.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedis creates a Redis cache for the feed stored at key. A zero ttl
// keeps the copy until overwritten.
func NewRedis(client *redis.Client, key string, ttl time.Duration) *Redis {
	return &Redis{client: client, key: key, ttl: ttl}
}

// Dial parses a redis:// URL and verifies the server answers.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Write replaces the cached payload.
func (r *Redis) Write(ctx context.Context, data []byte, ts time.Time) error {
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.key, fieldData, data, fieldTS, ts.Unix())
	if r.ttl > 0 {
		pipe.Expire(ctx, r.key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("writing %s: %w", r.key, err)
	}
	return nil
}

// LoadLatest returns the cached payload or ErrMiss.
func (r *Redis) LoadLatest(ctx context.Context) ([]byte, time.Time, error) {
	vals, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading %s: %w", r.key, err)
	}
	data, ok := vals[fieldData]
	if !ok {
		return nil, time.Time{}, ErrMiss
	}

	unix, err := strconv.ParseInt(vals[fieldTS], 10, 64)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("corrupt timestamp in %s: %w", r.key, err)
	}
	return []byte(data), time.Unix(unix, 0), nil
}
