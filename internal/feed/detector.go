package feed

import (
	"context"
	"strings"
	"time"

	"caresync/internal/docstore"
	"caresync/internal/eventbus"
	logx "caresync/pkg/logx"
)

// streamSpec describes one watched collection for a (user, role) session:
// which documents belong to the user, how to read their status, and which
// notification key they map to.
type streamSpec struct {
	collection string
	entity     EntityType
	relevant   func(doc docstore.Document, userID string, role Role) bool
	statusOf   func(doc docstore.Document) string
	relatedID  func(doc docstore.Document, userID string) string
}

func docStatus(doc docstore.Document) string {
	return strings.ToLower(strings.TrimSpace(doc.Str("status")))
}

func docID(doc docstore.Document, _ string) string { return doc.ID }

var appointmentStream = streamSpec{
	collection: docstore.CollectionAppointments,
	entity:     TypeAppointment,
	relevant: func(doc docstore.Document, userID string, role Role) bool {
		if role == RolePatient {
			return doc.Str("patientId") == userID
		}
		return doc.Str("doctorId") == userID
	},
	statusOf:  docStatus,
	relatedID: docID,
}

var referralStream = streamSpec{
	collection: docstore.CollectionReferrals,
	entity:     TypeReferral,
	relevant: func(doc docstore.Document, userID string, role Role) bool {
		if role == RolePatient {
			return doc.Str("patientId") == userID
		}
		return doc.Str("assignedSpecialistId") == userID ||
			doc.Str("referringGeneralistId") == userID ||
			doc.Str("referringSpecialistId") == userID
	},
	statusOf:  docStatus,
	relatedID: docID,
}

var feeStream = streamSpec{
	collection: docstore.CollectionDoctors,
	entity:     TypeProfessionalFee,
	relevant: func(doc docstore.Document, userID string, role Role) bool {
		return role == RoleSpecialist && doc.ID == userID
	},
	statusOf: func(doc docstore.Document) string {
		return strings.ToLower(strings.TrimSpace(doc.Str("professionalFeeStatus")))
	},
	relatedID: func(_ docstore.Document, userID string) string {
		return "professional_fee_" + userID
	},
}

// streamsFor returns the collections a role watches. Patients have no fee
// stream; everything else is shared.
func streamsFor(role Role) []streamSpec {
	if role == RoleSpecialist {
		return []streamSpec{appointmentStream, referralStream, feeStream}
	}
	return []streamSpec{appointmentStream, referralStream}
}

// handleSnapshot diffs a delivered collection snapshot against the previously
// seen per-entity status map and synthesizes notifications for transitions.
//
// The first snapshot for a stream only primes the status map: attaching a
// listener must not replay the current state as "new" notifications. Missed
// history is the catch-up scan's job.
func (s *session) handleSnapshot(spec streamSpec, docs []docstore.Document) {
	s.mu.Lock()
	if s.detached {
		s.mu.Unlock()
		return
	}
	primed := s.primed[spec.collection]
	prev := s.prev[spec.collection]

	next := make(map[string]string, len(docs))
	var changed []docstore.Document
	for _, doc := range docs {
		if !spec.relevant(doc, s.userID, s.role) {
			continue
		}
		status := spec.statusOf(doc)
		next[doc.ID] = status
		if !primed || status == "" {
			continue
		}
		if old, seen := prev[doc.ID]; seen && old == status {
			continue
		}
		changed = append(changed, doc)
	}
	s.prev[spec.collection] = next
	s.primed[spec.collection] = true
	s.mu.Unlock()

	if !primed {
		s.svc.log.Debug("stream primed",
			logx.String("user", s.userID),
			logx.String("collection", spec.collection),
			logx.Int("entities", len(next)))
		return
	}

	incoming := make([]Notification, 0, len(changed))
	for _, doc := range changed {
		if n := s.svc.synth.synthesize(context.Background(), s.userID, s.role, spec.entity, doc); n != nil {
			incoming = append(incoming, *n)
		}
	}

	// Empty batches still go through apply: the snapshot may carry edits the
	// merged list should reflect, and a debounced refresh is cheap.
	s.svc.applyIncoming(s, incoming)
}

// runCatchup scans all streams for transitions the user missed while no
// listener was attached. Since-point is the last recorded login, or
// now-lookback when unknown; a uniform grace window widens it so changes that
// landed just before the since-point are not lost to clock skew between the
// writer and the login recorder.
//
// The scan is idempotent: transitions already represented in the session list
// are skipped before synthesis, and everything else still passes through the
// merge engine.
func (s *session) runCatchup(ctx context.Context) error {
	cfg := s.svc.config()
	since, known, err := s.svc.store.LastLogin(ctx, s.userID, string(s.role))
	if err != nil {
		s.svc.log.Warn("last login lookup failed, using lookback",
			logx.String("user", s.userID), logx.Err(err))
		known = false
	}
	if !known {
		since = time.Now().Add(-cfg.CatchupLookback)
	}
	cutoff := since.Add(-cfg.GraceWindow)

	var incoming []Notification
	scanned := 0
	for _, spec := range streamsFor(s.role) {
		docs, err := s.svc.store.Collection(ctx, spec.collection)
		if err != nil {
			s.svc.log.Error("catch-up collection scan failed",
				logx.String("user", s.userID),
				logx.String("collection", spec.collection),
				logx.Err(err))
			s.svc.bus.Publish(eventbus.Event{Type: eventbus.TypeFeedStreamError, Data: spec.collection})
			continue
		}
		scanned += len(docs)

		s.mu.Lock()
		current := append([]Notification(nil), s.list...)
		s.mu.Unlock()

		for _, doc := range docs {
			if !spec.relevant(doc, s.userID, s.role) {
				continue
			}
			status := spec.statusOf(doc)
			if status == "" {
				// Malformed record; skip rather than guess.
				continue
			}
			touched, ok := entityTouchedAt(doc)
			if !ok || touched.Before(cutoff) {
				continue
			}
			if findByKey(current, spec.entity, spec.relatedID(doc, s.userID), status) >= 0 {
				continue
			}
			if n := s.svc.synth.synthesize(ctx, s.userID, s.role, spec.entity, doc); n != nil {
				incoming = append(incoming, *n)
			}
		}
	}

	added := s.svc.applyIncoming(s, incoming)
	s.svc.log.Info("catch-up scan done",
		logx.String("user", s.userID),
		logx.String("role", string(s.role)),
		logx.Time("since", since),
		logx.Int("scanned", scanned),
		logx.Int("missed", added))
	s.svc.bus.Publish(eventbus.Event{Type: eventbus.TypeFeedScanDone, Data: map[string]any{
		"user": s.userID, "scanned": scanned, "missed": added,
	}})
	return nil
}

// entityTouchedAt extracts the most recent modification time of a record,
// falling back to its creation time.
func entityTouchedAt(doc docstore.Document) (time.Time, bool) {
	if t, ok := doc.Time("lastUpdated"); ok {
		return t, true
	}
	if t, ok := doc.Time("updatedAt"); ok {
		return t, true
	}
	if t, ok := doc.Time("createdAt"); ok {
		return t, true
	}
	return time.Time{}, false
}
