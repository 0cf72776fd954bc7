package app

import (
	"caresync/internal/cache"
	"caresync/internal/config"
	"caresync/internal/feed"
	logx "caresync/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapFeedConfig(cfg *config.Config) (feed.Config, error) {
	debounce, err := config.ParseDurationField("feed.debounce", cfg.Feed.Debounce)
	if err != nil {
		return feed.Config{}, err
	}
	dedup, err := config.ParseDurationField("feed.dedup_window", cfg.Feed.DedupWindow)
	if err != nil {
		return feed.Config{}, err
	}
	grace, err := config.ParseDurationField("feed.grace_window", cfg.Feed.GraceWindow)
	if err != nil {
		return feed.Config{}, err
	}
	lookback, err := config.ParseDurationField("feed.catchup_lookback", cfg.Feed.CatchupLookback)
	if err != nil {
		return feed.Config{}, err
	}
	return feed.Config{
		Debounce:           debounce,
		DedupWindow:        dedup,
		GraceWindow:        grace,
		CatchupLookback:    lookback,
		MaxNotifications:   cfg.Feed.MaxNotifications,
		DispatchRatePerSec: cfg.Feed.DispatchRatePerSec,
		Rescan:             cfg.Feed.Rescan,
	}, nil
}

// mapCacheConfig returns (config, enabled, error). A missing storage section
// disables persistence entirely.
func mapCacheConfig(cfg *config.Config) (cache.Config, bool, error) {
	if cfg.Storage == nil {
		return cache.Config{}, false, nil
	}
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return cache.Config{}, false, err
	}
	return cache.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, true, nil
}
