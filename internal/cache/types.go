package cache

import (
	"context"
	"errors"
	"time"
)

var ErrDisabled = errors.New("cache disabled")

// Config configures the cache.
//
// Driver values:
//   - "file": dependency-free file backend (one file per key)
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", the cache is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Cache is the minimal persistence API the feed needs.
//
// Read failures degrade to "no value"; write failures lose persistence for
// the next launch but must not break the current session (the feed keeps its
// own in-memory copy).
type Cache interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Close() error
}
