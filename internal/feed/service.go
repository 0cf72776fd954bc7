package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"caresync/internal/cache"
	"caresync/internal/docstore"
	"caresync/internal/eventbus"
	logx "caresync/pkg/logx"
)

var (
	// ErrStopped is returned once Stop has been called.
	ErrStopped = errors.New("feed service stopped")

	// ErrNotAttached is returned by operations that need a live listener.
	ErrNotAttached = errors.New("no active listener for user")
)

// Service is the notification feed: it attaches per-user listeners to the
// document store, reconciles observed changes into each user's notification
// list, and delivers debounced refreshes to registered callbacks.
type Service struct {
	store docstore.Store
	cache cache.Cache
	bus   eventbus.Bus
	log   logx.Logger

	synth   *synthesizer
	timers  *timerRegistry
	limiter *rate.Limiter

	mu        sync.Mutex
	cfg       Config
	stopped   bool
	sessions  map[string]*session
	callbacks map[string]func([]Notification) // set before attach
	cron      *cron.Cron
}

// New builds the service. store is required; c may be nil (memory-only feed),
// bus may be nil (a private one is created), log may be the zero Logger.
func New(cfg Config, store docstore.Store, c cache.Cache, bus eventbus.Bus, log logx.Logger) *Service {
	cfg.setDefaults()
	if bus == nil {
		bus = eventbus.New()
	}
	svc := &Service{
		store:     store,
		cache:     c,
		bus:       bus,
		log:       log,
		timers:    newTimerRegistry(),
		limiter:   rate.NewLimiter(rate.Limit(cfg.DispatchRatePerSec), cfg.DispatchRatePerSec),
		cfg:       cfg,
		sessions:  make(map[string]*session),
		callbacks: make(map[string]func([]Notification)),
	}
	svc.synth = &synthesizer{store: store, log: log}
	svc.startRescan(cfg.Rescan)
	return svc
}

func (svc *Service) config() Config {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.cfg
}

// Apply updates runtime limits from a reloaded config. The rescan schedule is
// fixed at construction and ignored here.
func (svc *Service) Apply(cfg Config) {
	cfg.setDefaults()
	svc.mu.Lock()
	cfg.Rescan = svc.cfg.Rescan
	svc.cfg = cfg
	svc.mu.Unlock()

	svc.limiter.SetLimit(rate.Limit(cfg.DispatchRatePerSec))
	svc.limiter.SetBurst(cfg.DispatchRatePerSec)
}

// StartListening attaches live listeners for (userID, role), loads the
// persisted notification list, and runs the catch-up scan for changes missed
// while no listener was attached. The first live snapshot of each stream only
// primes diff state and produces no notifications.
//
// Attaching again for the same user replaces the previous session. The
// returned stop func detaches cleanly and is safe to call more than once.
func (svc *Service) StartListening(ctx context.Context, userID string, role Role) (func(), error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("userID is required")
	}
	role, err := ParseRole(string(role))
	if err != nil {
		return nil, err
	}

	s := svc.newSession(userID, role)
	s.list = svc.loadCached(ctx, userID)

	svc.mu.Lock()
	if svc.stopped {
		svc.mu.Unlock()
		return nil, ErrStopped
	}
	prior := svc.sessions[userID]
	svc.sessions[userID] = s
	if cb, ok := svc.callbacks[userID]; ok {
		s.callback = cb
	}
	svc.mu.Unlock()

	if prior != nil {
		svc.detachSession(prior)
	}

	for _, spec := range streamsFor(role) {
		spec := spec
		unsub := svc.store.Subscribe(spec.collection,
			func(docs []docstore.Document) { s.handleSnapshot(spec, docs) },
			func(err error) {
				svc.log.Error("stream error",
					logx.String("user", userID),
					logx.String("collection", spec.collection),
					logx.Err(err))
				svc.bus.Publish(eventbus.Event{Type: eventbus.TypeFeedStreamError, Data: spec.collection})
				// Degrade to a refresh of the current list; the consumer
				// never sees the error itself.
				svc.applyIncoming(s, nil)
			})
		s.mu.Lock()
		s.unsubs = append(s.unsubs, unsub)
		s.mu.Unlock()
	}

	svc.log.Info("listener attached", logx.String("user", userID), logx.String("role", string(role)))
	if err := s.runCatchup(ctx); err != nil {
		svc.log.Warn("catch-up scan failed", logx.String("user", userID), logx.Err(err))
	}

	return func() { svc.removeSession(userID, s) }, nil
}

func (svc *Service) removeSession(userID string, s *session) {
	svc.mu.Lock()
	if svc.sessions[userID] == s {
		delete(svc.sessions, userID)
	}
	svc.mu.Unlock()
	svc.detachSession(s)
}

func (svc *Service) sessionFor(userID string) *session {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.sessions[userID]
}

// SetCallback registers the refresh callback for a user. It may be called
// before StartListening; a callback set on a live session triggers an
// immediate (debounced) refresh so the consumer gets current state.
func (svc *Service) SetCallback(userID string, fn func([]Notification)) {
	svc.mu.Lock()
	svc.callbacks[userID] = fn
	s := svc.sessions[userID]
	svc.mu.Unlock()

	if s == nil {
		return
	}
	s.mu.Lock()
	s.callback = fn
	s.mu.Unlock()
	if fn != nil {
		svc.scheduleDispatch(s)
	}
}

// Notifications returns the user's current list, newest first. Without a live
// session it reads the persisted cache; a missing or unreadable cache value
// degrades to an empty list.
func (svc *Service) Notifications(ctx context.Context, userID string) ([]Notification, error) {
	if s := svc.sessionFor(userID); s != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return append([]Notification(nil), s.list...), nil
	}
	return svc.loadCached(ctx, userID), nil
}

func (svc *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	list, err := svc.Notifications(ctx, userID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, item := range list {
		if !item.Read {
			n++
		}
	}
	return n, nil
}

// MarkAsRead flags one notification as read. Unknown ids are a no-op.
func (svc *Service) MarkAsRead(ctx context.Context, userID, notificationID string) error {
	return svc.mutateList(ctx, userID, func(list []Notification) []Notification {
		if i := indexByID(list, notificationID); i >= 0 {
			list[i].Read = true
		}
		return list
	})
}

func (svc *Service) MarkAllAsRead(ctx context.Context, userID string) error {
	return svc.mutateList(ctx, userID, func(list []Notification) []Notification {
		for i := range list {
			list[i].Read = true
		}
		return list
	})
}

// DeleteNotification removes one notification. On a live session the id is
// also suppressed for the dedup window so an in-flight re-observation of the
// same transition does not resurrect it immediately.
func (svc *Service) DeleteNotification(ctx context.Context, userID, notificationID string) error {
	if s := svc.sessionFor(userID); s != nil {
		s.mu.Lock()
		if !s.detached {
			if i := indexByID(s.list, notificationID); i >= 0 {
				s.list = append(s.list[:i], s.list[i+1:]...)
			}
			s.recent[notificationID] = nowMillis() + svc.config().DedupWindow.Milliseconds()
			snapshot := append([]Notification(nil), s.list...)
			s.mu.Unlock()
			svc.persist(ctx, userID, snapshot)
			svc.scheduleDispatch(s)
			return nil
		}
		s.mu.Unlock()
	}
	return svc.mutateList(ctx, userID, func(list []Notification) []Notification {
		if i := indexByID(list, notificationID); i >= 0 {
			list = append(list[:i], list[i+1:]...)
		}
		return list
	})
}

// ClearNotifications empties the user's list and removes the cached record.
func (svc *Service) ClearNotifications(ctx context.Context, userID string) error {
	if s := svc.sessionFor(userID); s != nil {
		s.mu.Lock()
		if !s.detached {
			s.list = nil
			s.mu.Unlock()
			svc.removeCached(ctx, userID)
			svc.scheduleDispatch(s)
			return nil
		}
		s.mu.Unlock()
	}
	svc.removeCached(ctx, userID)
	return nil
}

// ForceCheckMissed re-runs the catch-up scan for a live session.
func (svc *Service) ForceCheckMissed(ctx context.Context, userID string, role Role) error {
	s := svc.sessionFor(userID)
	if s == nil {
		return ErrNotAttached
	}
	if s.role != role {
		return fmt.Errorf("listener for %s has role %s, not %s", userID, s.role, role)
	}
	return s.runCatchup(ctx)
}

// Stop detaches every session, cancels all timers, and stops the rescan
// schedule. Further calls to StartListening fail with ErrStopped.
func (svc *Service) Stop(ctx context.Context) {
	svc.mu.Lock()
	if svc.stopped {
		svc.mu.Unlock()
		return
	}
	svc.stopped = true
	sessions := make([]*session, 0, len(svc.sessions))
	for _, s := range svc.sessions {
		sessions = append(sessions, s)
	}
	svc.sessions = make(map[string]*session)
	svc.mu.Unlock()

	for _, s := range sessions {
		svc.detachSession(s)
	}
	svc.timers.cancelAll()
	svc.stopRescan(ctx)
	svc.log.Info("feed service stopped", logx.Int("sessions", len(sessions)))
}

// mutateList applies fn to a user's list and persists the result, routing
// through the live session when one is attached.
func (svc *Service) mutateList(ctx context.Context, userID string, fn func([]Notification) []Notification) error {
	if s := svc.sessionFor(userID); s != nil {
		s.mu.Lock()
		if !s.detached {
			s.list = fn(s.list)
			snapshot := append([]Notification(nil), s.list...)
			s.mu.Unlock()
			svc.persist(ctx, userID, snapshot)
			svc.scheduleDispatch(s)
			return nil
		}
		s.mu.Unlock()
	}
	list := svc.loadCached(ctx, userID)
	svc.persist(ctx, userID, fn(list))
	return nil
}

// loadCached reads and decodes the persisted list, self-healing duplicate
// entries written by earlier versions. Every failure degrades to an empty
// list; the feed never refuses to start over bad cache data.
func (svc *Service) loadCached(ctx context.Context, userID string) []Notification {
	if svc.cache == nil {
		return nil
	}
	raw, ok, err := svc.cache.Get(ctx, cacheKey(userID))
	if err != nil && err != cache.ErrDisabled {
		svc.log.Warn("notification cache read failed", logx.String("user", userID), logx.Err(err))
		return nil
	}
	if !ok {
		return nil
	}
	list, err := decodeList(raw)
	if err != nil {
		svc.log.Warn("corrupt notification cache, starting empty",
			logx.String("user", userID), logx.Err(err))
		return nil
	}
	clean, removed := collapseDuplicates(list, svc.config().DedupWindow)
	if removed > 0 {
		svc.log.Info("healed duplicate notifications in cache",
			logx.String("user", userID), logx.Int("removed", removed))
		svc.persist(ctx, userID, clean)
		svc.bus.Publish(eventbus.Event{Type: eventbus.TypeFeedCacheHealed, Data: map[string]any{
			"user": userID, "removed": removed,
		}})
	}
	return clean
}

func (svc *Service) removeCached(ctx context.Context, userID string) {
	if svc.cache == nil {
		return
	}
	if err := svc.cache.Remove(ctx, cacheKey(userID)); err != nil && err != cache.ErrDisabled {
		svc.log.Warn("notification cache remove failed", logx.String("user", userID), logx.Err(err))
	}
}
