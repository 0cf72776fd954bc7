package config

import (
	"errors"
	"fmt"
	"strings"
)

type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Feed controls the notification reconciliation pipeline.
	Feed FeedConfig `json:"feed"`

	// Storage configures the durable notification cache.
	// If omitted, the cache runs memory-only (nothing survives a restart).
	Storage *StorageConfig `json:"storage,omitempty"`

	// Docstore selects the document store backend the feed watches.
	Docstore DocstoreConfig `json:"docstore,omitempty"`

	// Sessions are the (user, role) pairs the daemon attaches listeners for.
	// In the mobile app this happens on login; the daemon reads it from config.
	Sessions []SessionConfig `json:"sessions,omitempty"`
}

type LoggingConfig struct {
	Level   string     `json:"level,omitempty"`
	Console bool       `json:"console"`
	File    FileConfig `json:"file,omitempty"`
}

type FileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// FeedConfig controls detection, merge, and dispatch behavior.
//
// All durations are Go duration strings (e.g. "300ms", "30s", "24h").
//
// Defaults (when fields are omitted/zero):
//   - debounce: "300ms"
//   - dedup_window: "30s"
//   - grace_window: "24h"
//   - catchup_lookback: "168h" (7 days, used when last login is unknown)
//   - max_notifications: 100
//   - dispatch_rate_per_sec: 5
type FeedConfig struct {
	Debounce        string `json:"debounce,omitempty"`
	DedupWindow     string `json:"dedup_window,omitempty"`
	GraceWindow     string `json:"grace_window,omitempty"`
	CatchupLookback string `json:"catchup_lookback,omitempty"`

	MaxNotifications   int `json:"max_notifications,omitempty"`
	DispatchRatePerSec int `json:"dispatch_rate_per_sec,omitempty"`

	// Rescan re-runs the catch-up scan for every attached session on a cron
	// or interval spec (e.g. "*/10 * * * *" or "10m"). Empty disables it.
	Rescan string `json:"rescan,omitempty"`
}

// StorageConfig controls the notification cache persistence.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./caresync_cache" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// DocstoreConfig selects the backing document store.
//
// Only the in-process "memory" backend ships here; the production app points
// this at its cloud document database through the same interface.
type DocstoreConfig struct {
	Backend string `json:"backend,omitempty"` // default: "memory"
	Seed    bool   `json:"seed,omitempty"`    // load demo fixtures (memory backend only)
}

type SessionConfig struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Validate checks cross-field constraints that the strict decoder can't.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	for i, s := range c.Sessions {
		if strings.TrimSpace(s.UserID) == "" {
			return fmt.Errorf("sessions[%d]: user_id is required", i)
		}
		switch strings.ToLower(strings.TrimSpace(s.Role)) {
		case "patient", "specialist":
		default:
			return fmt.Errorf("sessions[%d]: role must be patient or specialist, got %q", i, s.Role)
		}
	}
	if c.Feed.MaxNotifications < 0 {
		return errors.New("feed.max_notifications must be >= 0")
	}
	if c.Feed.DispatchRatePerSec < 0 {
		return errors.New("feed.dispatch_rate_per_sec must be >= 0")
	}
	if _, err := ParseDurationField("feed.debounce", c.Feed.Debounce); err != nil {
		return err
	}
	if _, err := ParseDurationField("feed.dedup_window", c.Feed.DedupWindow); err != nil {
		return err
	}
	if _, err := ParseDurationField("feed.grace_window", c.Feed.GraceWindow); err != nil {
		return err
	}
	if _, err := ParseDurationField("feed.catchup_lookback", c.Feed.CatchupLookback); err != nil {
		return err
	}
	if c.Storage != nil {
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	return nil
}
