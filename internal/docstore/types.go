package docstore

import (
	"context"
	"time"
)

// Collection names the feed watches.
const (
	CollectionAppointments = "appointments"
	CollectionReferrals    = "referrals"
	CollectionDoctors      = "doctors"
)

// Document is one record in a collection. Fields is schemaless on purpose:
// the backing store is a document database and records written by older app
// versions may miss fields newer ones denormalize.
type Document struct {
	ID     string
	Fields map[string]any
}

// Str returns a string field, or "" if absent or not a string.
func (d Document) Str(key string) string {
	v, ok := d.Fields[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Time returns a timestamp field. Accepts time.Time, RFC3339 strings, and
// epoch milliseconds (several record generations coexist in the store).
func (d Document) Time(key string) (time.Time, bool) {
	v, ok := d.Fields[key]
	if !ok || v == nil {
		return time.Time{}, false
	}
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		if t, err := time.Parse(time.RFC3339, x); err == nil {
			return t, true
		}
		if t, err := time.Parse("2006-01-02", x); err == nil {
			return t, true
		}
		return time.Time{}, false
	case int64:
		return time.UnixMilli(x), true
	case float64:
		return time.UnixMilli(int64(x)), true
	default:
		return time.Time{}, false
	}
}

// UserRecord is the subset of a user document the feed needs for name
// resolution and role checks.
type UserRecord struct {
	ID        string
	FirstName string
	LastName  string
	Role      string
}

// Store is the read-only surface the feed consumes.
type Store interface {
	// Collection returns the full current state of a collection.
	// No server-side filtering: callers filter client-side.
	Collection(ctx context.Context, name string) ([]Document, error)

	// Subscribe attaches a continuous listener delivering the full collection
	// state on any change. Errors surface via onError and never panic into
	// the caller. The returned func detaches the listener synchronously.
	Subscribe(name string, onChange func([]Document), onError func(error)) (unsubscribe func())

	// UserByID resolves a user document, or (nil, nil) if absent.
	UserByID(ctx context.Context, id string) (*UserRecord, error)

	// LastLogin returns the user's last recorded login, ok=false if unknown.
	LastLogin(ctx context.Context, userID, role string) (time.Time, bool, error)

	// EnrichAppointment fills denormalized patient/doctor name fields on an
	// appointment document when they are missing. Best effort.
	EnrichAppointment(ctx context.Context, doc Document) (Document, error)
}
