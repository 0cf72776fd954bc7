package feed

import (
	"context"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	logx "caresync/pkg/logx"
)

// rescanTimeout bounds one full pass over all attached sessions.
const rescanTimeout = time.Minute

// startRescan arms the optional periodic catch-up re-scan. The spec is either
// a cron expression ("*/10 * * * *") or a plain interval ("10m"). An invalid
// spec is logged and disables the rescan rather than failing construction.
func (svc *Service) startRescan(spec string) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return
	}
	if d, err := time.ParseDuration(spec); err == nil && d > 0 {
		spec = "@every " + d.String()
	}

	c := cron.New()
	if _, err := c.AddFunc(spec, svc.rescanAll); err != nil {
		svc.log.Error("invalid rescan spec, periodic rescan disabled",
			logx.String("spec", spec), logx.Err(err))
		return
	}
	c.Start()

	svc.mu.Lock()
	svc.cron = c
	svc.mu.Unlock()
	svc.log.Info("periodic rescan enabled", logx.String("spec", spec))
}

func (svc *Service) rescanAll() {
	svc.mu.Lock()
	sessions := make([]*session, 0, len(svc.sessions))
	for _, s := range svc.sessions {
		sessions = append(sessions, s)
	}
	svc.mu.Unlock()
	if len(sessions) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), rescanTimeout)
	defer cancel()
	for _, s := range sessions {
		if err := s.runCatchup(ctx); err != nil {
			svc.log.Warn("periodic rescan failed",
				logx.String("user", s.userID), logx.Err(err))
		}
	}
}

// stopRescan halts the schedule and waits (bounded by ctx) for a running
// pass to finish.
func (svc *Service) stopRescan(ctx context.Context) {
	svc.mu.Lock()
	c := svc.cron
	svc.cron = nil
	svc.mu.Unlock()
	if c == nil {
		return
	}
	stopped := c.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		svc.log.Warn("rescan did not stop before deadline")
	}
}
