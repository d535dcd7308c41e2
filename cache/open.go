package cache

import (
	"fmt"
	"os"
	"path/filepath"
)

// Backend names accepted by Open.
const (
	BackendNone   = ""
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendPebble = "pebble"
)

// Config selects and configures a Store.
type Config struct {
	Backend string `yaml:"backend"`
	// URL is the Redis URL for the redis backend.
	URL string `yaml:"url"`
	// Path is the directory for the pebble backend
	// (default <UserCacheDir>/pulse/pebble).
	Path string `yaml:"path"`
}

// Open creates the configured Store. Returns nil, nil when no backend is
// configured.
func Open(cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendNone:
		return nil, nil
	case BackendMemory:
		return NewMemory(), nil
	case BackendRedis:
		return NewRedis(cfg.URL)
	case BackendPebble:
		path := cfg.Path
		if path == "" {
			dir, err := os.UserCacheDir()
			if err != nil {
				return nil, fmt.Errorf("pebble cache: no path configured: %w", err)
			}
			path = filepath.Join(dir, "pulse", "pebble")
		}
		return OpenPebble(path)
	default:
		return nil, fmt.Errorf("unknown cache backend %q (must be memory, redis, or pebble)", cfg.Backend)
	}
}
