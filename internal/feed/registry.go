package feed

import (
	"context"
	"sync"

	"caresync/internal/cache"
	"caresync/internal/eventbus"
	logx "caresync/pkg/logx"
)

// session is one attached (user, role) pair: its merged notification list,
// per-stream diff state, live unsubscribe handles, and the UI callback.
//
// The in-memory list is canonical for the session; the cache is a best-effort
// mirror so a write failure degrades persistence, never the running feed.
type session struct {
	svc    *Service
	userID string
	role   Role

	mu       sync.Mutex
	detached bool
	list     []Notification
	primed   map[string]bool              // collection -> initial snapshot seen
	prev     map[string]map[string]string // collection -> entity id -> status
	recent   map[string]int64             // notification id -> suppress-until millis
	unsubs   []func()
	callback func([]Notification)
}

func (svc *Service) newSession(userID string, role Role) *session {
	return &session{
		svc:    svc,
		userID: userID,
		role:   role,
		primed: make(map[string]bool),
		prev:   make(map[string]map[string]string),
		recent: make(map[string]int64),
	}
}

func dispatchKey(userID string) string { return "dispatch:" + userID }

// applyIncoming routes a batch of synthesized notifications through the
// suppression filter and the merge engine, persists the result, and schedules
// a debounced dispatch. Both detection paths and external mutations funnel
// through here. Returns how many notifications were genuinely new.
func (svc *Service) applyIncoming(s *session, incoming []Notification) int {
	cfg := svc.config()
	now := nowMillis()
	winMS := cfg.DedupWindow.Milliseconds()

	s.mu.Lock()
	if s.detached {
		s.mu.Unlock()
		return 0
	}

	// Drop ids processed moments ago by the other detection path.
	suppressed := 0
	fresh := incoming[:0]
	for _, n := range incoming {
		if until, ok := s.recent[n.ID]; ok && until > now {
			suppressed++
			continue
		}
		fresh = append(fresh, n)
	}

	merged, added := mergeNotifications(s.list, fresh, cfg.DedupWindow, cfg.MaxNotifications)
	s.list = merged

	for _, n := range fresh {
		s.recent[n.ID] = now + winMS
	}
	for id, until := range s.recent {
		if until <= now {
			delete(s.recent, id)
		}
	}
	snapshot := append([]Notification(nil), s.list...)
	s.mu.Unlock()

	deduped := suppressed + (len(fresh) - added)
	if deduped > 0 {
		svc.bus.Publish(eventbus.Event{Type: eventbus.TypeFeedDeduped, Data: map[string]any{
			"user": s.userID, "dropped": deduped,
		}})
	}

	svc.persist(context.Background(), s.userID, snapshot)
	svc.scheduleDispatch(s)
	return added
}

// persist mirrors the list to the cache. Failures are logged and swallowed.
func (svc *Service) persist(ctx context.Context, userID string, list []Notification) {
	if svc.cache == nil {
		return
	}
	raw, err := encodeList(list)
	if err != nil {
		svc.log.Error("notification list encode failed", logx.String("user", userID), logx.Err(err))
		return
	}
	if err := svc.cache.Set(ctx, cacheKey(userID), raw); err != nil && err != cache.ErrDisabled {
		svc.log.Warn("notification cache write failed", logx.String("user", userID), logx.Err(err))
	}
}

func (svc *Service) scheduleDispatch(s *session) {
	svc.timers.schedule(dispatchKey(s.userID), svc.config().Debounce, func() {
		svc.dispatch(s)
	})
}

// dispatch delivers the current list to the session callback, honoring the
// registry-wide rate limiter. When the limiter asks for a delay the dispatch
// is re-armed instead of dropped, so the last refresh always lands.
func (svc *Service) dispatch(s *session) {
	res := svc.limiter.Reserve()
	if !res.OK() {
		return
	}
	if delay := res.Delay(); delay > 0 {
		res.Cancel()
		svc.timers.schedule(dispatchKey(s.userID), delay, func() { svc.dispatch(s) })
		return
	}

	s.mu.Lock()
	if s.detached {
		s.mu.Unlock()
		return
	}
	cb := s.callback
	snapshot := append([]Notification(nil), s.list...)
	s.mu.Unlock()

	if cb == nil {
		return
	}
	func() {
		defer func() {
			if r := recover(); r != nil {
				svc.log.Error("notification callback panicked",
					logx.String("user", s.userID), logx.Any("panic", r))
			}
		}()
		cb(snapshot)
	}()
	svc.bus.Publish(eventbus.Event{Type: eventbus.TypeFeedDispatched, Data: map[string]any{
		"user": s.userID, "count": len(snapshot),
	}})
}

// detachSession tears a session down: live listeners unsubscribe, the pending
// debounce timer is cancelled, and the callback is dropped. Nothing dispatches
// for this user afterwards.
func (svc *Service) detachSession(s *session) {
	s.mu.Lock()
	if s.detached {
		s.mu.Unlock()
		return
	}
	s.detached = true
	unsubs := s.unsubs
	s.unsubs = nil
	s.callback = nil
	s.mu.Unlock()

	svc.timers.cancel(dispatchKey(s.userID))
	for _, unsub := range unsubs {
		if unsub != nil {
			unsub()
		}
	}
	svc.log.Info("listener detached", logx.String("user", s.userID), logx.String("role", string(s.role)))
}
