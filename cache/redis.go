package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Redis is a Store backed by a Redis server. Expiry is delegated to Redis.
type Redis struct {
	client *goredis.Client
}

// NewRedis connects to the Redis server at url
// (redis://[:password@]host:port[/db]).
func NewRedis(url string) (*Redis, error) {
	if url == "" {
		return nil, errors.New("redis cache requires a URL")
	}
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis cache: invalid URL: %w", err)
	}
	return &Redis{client: goredis.NewClient(opts)}, nil
}

// Get implements Store.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Set implements Store.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Close implements Store.
func (r *Redis) Close() error {
	return r.client.Close()
}
