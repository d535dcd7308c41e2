// Package redis publishes snapshot events to a Redis pub/sub channel.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/justapithecus/pulse/notify"
)

// DefaultChannel is the default pub/sub channel name.
const DefaultChannel = "pulse:snapshot_completed"

// DefaultTimeout is the default per-publish timeout.
const DefaultTimeout = 5 * time.Second

// Config configures the Redis notifier.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Channel is the pub/sub channel (default pulse:snapshot_completed).
	Channel string
	// Timeout is the per-publish timeout (default 5s).
	Timeout time.Duration
	// Retries is the number of retry attempts after the first.
	Retries int
}

// Notifier publishes snapshot events via Redis PUBLISH.
type Notifier struct {
	config Config
	client *goredis.Client
}

// New creates a Redis notifier. Returns an error if the URL is empty or invalid.
func New(cfg Config) (*Notifier, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis notifier requires a URL")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis notifier: invalid URL: %w", err)
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}

	return &Notifier{config: cfg, client: goredis.NewClient(opts)}, nil
}

// Publish sends the event as JSON to the configured channel.
func (n *Notifier) Publish(ctx context.Context, event *notify.SnapshotEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}

	return notify.Retry(ctx, "redis", n.config.Retries, func(ctx context.Context) error {
		publishCtx, cancel := context.WithTimeout(ctx, n.config.Timeout)
		defer cancel()
		return n.client.Publish(publishCtx, n.config.Channel, body).Err()
	})
}

// Close releases the connection pool.
func (n *Notifier) Close() error {
	return n.client.Close()
}

var _ notify.Notifier = (*Notifier)(nil)
