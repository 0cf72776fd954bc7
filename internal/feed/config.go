package feed

import "time"

// Config tunes detection, merge, and dispatch. The zero value is usable;
// setDefaults fills anything left unset.
type Config struct {
	// Debounce delays callback dispatch so bursts collapse into one refresh.
	Debounce time.Duration

	// DedupWindow bounds the content-duplicate timestamp test and the
	// per-user suppression of recently processed ids.
	DedupWindow time.Duration

	// GraceWindow extends the catch-up scan: entities touched up to this long
	// before the since-point still count as missed. Uniform across all
	// entity streams.
	GraceWindow time.Duration

	// CatchupLookback bounds the scan when the user's last login is unknown.
	CatchupLookback time.Duration

	// MaxNotifications caps the per-user retained list (newest kept).
	MaxNotifications int

	// DispatchRatePerSec bounds callback invocations per user across all
	// sessions. 0 keeps the default; debouncing is the primary throttle and
	// this is the ceiling above it.
	DispatchRatePerSec int

	// Rescan re-runs the catch-up scan for every attached session on a cron
	// spec ("*/10 * * * *") or plain interval ("10m"). Empty disables it.
	Rescan string
}

func (c *Config) setDefaults() {
	if c.Debounce <= 0 {
		c.Debounce = 300 * time.Millisecond
	}
	if c.DedupWindow <= 0 {
		c.DedupWindow = 30 * time.Second
	}
	if c.GraceWindow <= 0 {
		c.GraceWindow = 24 * time.Hour
	}
	if c.CatchupLookback <= 0 {
		c.CatchupLookback = 7 * 24 * time.Hour
	}
	if c.MaxNotifications <= 0 {
		c.MaxNotifications = 100
	}
	if c.DispatchRatePerSec <= 0 {
		c.DispatchRatePerSec = 5
	}
}
