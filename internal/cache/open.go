package cache

import (
	"errors"
	"strings"

	logx "caresync/pkg/logx"
)

// Open initializes the configured cache.
// It returns (nil, nil) if the cache is disabled.
func Open(cfg Config, log logx.Logger) (Cache, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown cache driver: " + driver)
	}
}
