package app

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/daemon"

	"caresync/internal/cache"
	"caresync/internal/config"
	"caresync/internal/docstore"
	"caresync/internal/eventbus"
	"caresync/internal/feed"
	"caresync/internal/supervisor"
	logx "caresync/pkg/logx"
)

// App wires config, logging, cache, docstore, and the feed service into one
// runnable daemon.
type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	cache cache.Cache
	store docstore.Store
	feed  *feed.Service

	sessionStops []func()
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	var cch cache.Cache
	if cc, enabled, err := mapCacheConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		c, err := cache.Open(cc, log.With(logx.String("comp", "cache")))
		if err != nil {
			return nil, err
		}
		cch = c
		if cch != nil {
			log.Info("notification cache enabled", logx.String("driver", cc.Driver))
		}
	}

	store, err := buildDocstore(cfg, log)
	if err != nil {
		return nil, err
	}

	feedCfg, err := mapFeedConfig(cfg)
	if err != nil {
		return nil, err
	}
	feedSvc := feed.New(feedCfg, store, cch, bus, log.With(logx.String("comp", "feed")))

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		cache:   cch,
		store:   store,
		feed:    feedSvc,
	}, nil
}

func buildDocstore(cfg *config.Config, log logx.Logger) (docstore.Store, error) {
	switch cfg.Docstore.Backend {
	case "", "memory":
		mem := docstore.NewMemory()
		if cfg.Docstore.Seed {
			docstore.SeedDemo(mem)
			log.Info("docstore seeded with demo fixtures")
		}
		return mem, nil
	default:
		return nil, fmt.Errorf("unknown docstore backend %q", cfg.Docstore.Backend)
	}
}

// Feed exposes the feed service for in-process consumers.
func (a *App) Feed() *feed.Service { return a.feed }

// Done is closed when the supervisor context is canceled.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log))

	// Transactional hot reload: a config that fails validation is never
	// committed or published.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := mapFeedConfig(cfg); err != nil {
			return err
		}
		if _, _, err := mapCacheConfig(cfg); err != nil {
			return err
		}
		return nil
	})

	// Attach a listener per configured session before signaling readiness.
	cfg := a.cfgm.Get()
	for _, sess := range cfg.Sessions {
		role, err := feed.ParseRole(sess.Role)
		if err != nil {
			return fmt.Errorf("sessions: %w", err)
		}
		userID := sess.UserID
		a.feed.SetCallback(userID, func(list []feed.Notification) {
			unread := 0
			for _, n := range list {
				if !n.Read {
					unread++
				}
			}
			a.log.Info("notifications refreshed",
				logx.String("user", userID),
				logx.Int("total", len(list)),
				logx.Int("unread", unread))
		})
		stop, err := a.feed.StartListening(a.sup.Context(), userID, role)
		if err != nil {
			return fmt.Errorf("attach %s: %w", userID, err)
		}
		a.sessionStops = append(a.sessionStops, stop)
	}

	a.sup.GoRestart("config.watch", a.cfgm.Watch)

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return nil
			case newCfg, ok := <-sub:
				if !ok {
					return nil
				}
				// Coalesce bursts: only the newest config matters.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(newCfg)
			}
		}
	})

	events, unsubEvents := a.bus.Subscribe(128)
	a.sup.Go("eventbus.log", func(c context.Context) error {
		defer unsubEvents()
		for {
			select {
			case <-c.Done():
				return nil
			case e, ok := <-events:
				if !ok {
					return nil
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Any("data", e.Data))
			}
		}
	})

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify failed", logx.Err(err))
	} else if sent {
		a.log.Debug("sd_notify ready sent")
	}
	a.log.Info("caresync started", logx.Int("sessions", len(a.sessionStops)))
	return nil
}

func (a *App) applyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	a.logs.Apply(mapLogConfig(cfg))

	feedCfg, err := mapFeedConfig(cfg)
	if err != nil {
		// Validator should have caught this; keep running on the old limits.
		a.log.Warn("reloaded feed config rejected", logx.Err(err))
		return
	}
	a.feed.Apply(feedCfg)
	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	for _, stop := range a.sessionStops {
		stop()
	}
	a.sessionStops = nil
	a.feed.Stop(ctx)

	var firstErr error
	if a.sup != nil {
		if err := a.sup.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	_ = a.logs.Close()
	return firstErr
}
