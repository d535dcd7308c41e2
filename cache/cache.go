// Package cache provides an opt-in read-through cache for view data.
//
// Runs are cold by default. When a backend is configured, each source is
// wrapped by Wrap: a fresh entry answers the fetch without calling
// upstream, a miss calls the source and stores successful results. Cache
// failures never fail a fetch; they are reported through Options.OnError.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeebo/xxh3"

	"github.com/justapithecus/pulse/metrics"
	"github.com/justapithecus/pulse/source"
	"github.com/justapithecus/pulse/types"
)

// DefaultTTL is used when Options.TTL is unset.
const DefaultTTL = 5 * time.Minute

// KeyPrefix namespaces every cache key.
const KeyPrefix = "pulse:view:"

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("cache store closed")

// Store is a byte-oriented key/value store with per-entry expiry.
type Store interface {
	// Get returns the value for key. found is false for missing or
	// expired entries.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Close releases the store.
	Close() error
}

// Options configure one wrapped source.
type Options struct {
	View types.ViewID
	// Fingerprint distinguishes configurations of the same view (account,
	// query, base URL). Only its hash appears in the key.
	Fingerprint string
	TTL         time.Duration
	// Refresh skips the lookup and overwrites the entry with a fresh fetch.
	Refresh bool
	// OnError receives swallowed store and codec failures.
	OnError func(view types.ViewID, err error)
	// Metrics counts hits, misses and swallowed errors. May be nil.
	Metrics *metrics.Collector
}

// Key returns the cache key for a view and fingerprint.
func Key(view types.ViewID, fingerprint string) string {
	return fmt.Sprintf("%s%s:%016x", KeyPrefix, view, xxh3.HashString(fingerprint))
}

// Wrap returns a Source that consults store before calling src.
// T is the concrete data type src produces; data of any other type is
// passed through uncached.
func Wrap[T any](src source.Source, store Store, opts Options) source.Source {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	key := Key(opts.View, opts.Fingerprint)

	report := func(err error) {
		opts.Metrics.IncCacheError()
		if opts.OnError != nil {
			opts.OnError(opts.View, err)
		}
	}

	return source.Func(func(ctx context.Context) (types.ViewData, error) {
		if !opts.Refresh {
			if cached, ok := lookup[T](ctx, store, key, report); ok {
				opts.Metrics.IncCacheHit()
				return cached, nil
			}
			opts.Metrics.IncCacheMiss()
		}

		data, err := src.Fetch(ctx)
		if err != nil {
			return nil, err
		}

		typed, ok := data.(T)
		if !ok {
			return data, nil
		}
		raw, err := msgpack.Marshal(typed)
		if err != nil {
			report(fmt.Errorf("encode %s: %w", opts.View, err))
			return data, nil
		}
		if err := store.Set(ctx, key, raw, opts.TTL); err != nil {
			report(fmt.Errorf("store %s: %w", opts.View, err))
		}
		return data, nil
	})
}

func lookup[T any](ctx context.Context, store Store, key string, report func(error)) (T, bool) {
	var zero T
	raw, found, err := store.Get(ctx, key)
	if err != nil {
		report(fmt.Errorf("lookup %s: %w", key, err))
		return zero, false
	}
	if !found {
		return zero, false
	}
	var v T
	if err := msgpack.Unmarshal(raw, &v); err != nil {
		report(fmt.Errorf("decode %s: %w", key, err))
		return zero, false
	}
	return v, true
}
