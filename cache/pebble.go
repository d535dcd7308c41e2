package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/vmihailenco/msgpack/v5"
)

// Pebble is an on-disk Store. Pebble has no native TTL, so every value is
// wrapped in an envelope carrying its expiry; expired entries are deleted
// lazily on read.
type Pebble struct {
	db  *pebble.DB
	now func() time.Time
}

type pebbleEnvelope struct {
	ExpiresAt int64  `msgpack:"e"` // unix nanoseconds
	Value     []byte `msgpack:"v"`
}

// OpenPebble opens (or creates) a Pebble database in dir.
func OpenPebble(dir string) (*Pebble, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble cache: open %s: %w", dir, err)
	}
	return &Pebble{db: db, now: time.Now}, nil
}

// Get implements Store.
func (p *Pebble) Get(_ context.Context, key string) ([]byte, bool, error) {
	raw, closer, err := p.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var env pebbleEnvelope
	decodeErr := msgpack.Unmarshal(raw, &env)
	_ = closer.Close()
	if decodeErr != nil {
		return nil, false, fmt.Errorf("pebble cache: decode envelope: %w", decodeErr)
	}

	if p.now().UnixNano() >= env.ExpiresAt {
		_ = p.db.Delete([]byte(key), pebble.NoSync)
		return nil, false, nil
	}
	return env.Value, true, nil
}

// Set implements Store.
func (p *Pebble) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	raw, err := msgpack.Marshal(pebbleEnvelope{
		ExpiresAt: p.now().Add(ttl).UnixNano(),
		Value:     value,
	})
	if err != nil {
		return fmt.Errorf("pebble cache: encode envelope: %w", err)
	}
	return p.db.Set([]byte(key), raw, pebble.Sync)
}

// Close implements Store.
func (p *Pebble) Close() error {
	return p.db.Close()
}
