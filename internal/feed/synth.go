package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"caresync/internal/docstore"
	logx "caresync/pkg/logx"
)

// Fallback names when resolution fails. These are user-visible.
const (
	unknownPatient    = "Unknown Patient"
	unknownSpecialist = "Unknown Specialist"
	unknownDoctor     = "Unknown Doctor"
)

// synthesizer turns an observed entity state into a notification, or nil when
// the transition is not notify-worthy for the given (user, role).
//
// Name resolution is best effort: denormalized fields on the entity win, then
// point lookups on the user collection, then literal fallbacks. A failed
// lookup never blocks notification creation.
type synthesizer struct {
	store docstore.Store
	log   logx.Logger
}

func (s *synthesizer) synthesize(ctx context.Context, userID string, role Role, t EntityType, doc docstore.Document) *Notification {
	switch t {
	case TypeAppointment:
		return s.appointment(ctx, userID, role, doc)
	case TypeReferral:
		return s.referral(ctx, userID, role, doc)
	case TypeProfessionalFee:
		return s.professionalFee(userID, doc)
	default:
		return nil
	}
}

// ---- appointments ----

func (s *synthesizer) appointment(ctx context.Context, userID string, role Role, doc docstore.Document) *Notification {
	status := strings.ToLower(doc.Str("status"))
	date := formatEntityDate(doc.Str("appointmentDate"))
	at := doc.Str("appointmentTime")

	// Fill missing denormalized names before rendering.
	if doc.Str("patientFirstName") == "" || doc.Str("doctorFirstName") == "" {
		enriched, err := s.store.EnrichAppointment(ctx, doc)
		if err != nil {
			s.log.Debug("appointment enrich failed", logx.String("id", doc.ID), logx.Err(err))
		} else {
			doc = enriched
		}
	}

	var title, msg string
	var prio Priority
	if role == RolePatient {
		doctor := s.resolveName(ctx, doc, "doctorFirstName", "doctorLastName", doc.Str("doctorId"), unknownDoctor)
		switch status {
		case StatusPending:
			title = "Appointment Pending"
			msg = fmt.Sprintf("Your appointment with Dr. %s on %s at %s is pending confirmation.", doctor, date, at)
			prio = PriorityMedium
		case StatusConfirmed:
			title = "Appointment Confirmed"
			msg = fmt.Sprintf("Your appointment with Dr. %s on %s at %s has been confirmed.", doctor, date, at)
			prio = PriorityHigh
		case StatusCompleted:
			title = "Appointment Completed"
			msg = fmt.Sprintf("Your appointment with Dr. %s on %s has been completed.", doctor, date)
			prio = PriorityMedium
		case StatusCancelled:
			title = "Appointment Cancelled"
			msg = fmt.Sprintf("Your appointment with Dr. %s on %s at %s has been cancelled.", doctor, date, at)
			prio = PriorityHigh
		default:
			return nil
		}
	} else {
		patient := s.resolveName(ctx, doc, "patientFirstName", "patientLastName", doc.Str("patientId"), unknownPatient)
		switch status {
		case StatusPending:
			title = "New Appointment Request"
			msg = fmt.Sprintf("%s requested an appointment on %s at %s.", patient, date, at)
			prio = PriorityHigh
		case StatusConfirmed:
			title = "Appointment Confirmed"
			msg = fmt.Sprintf("Appointment with %s on %s at %s has been confirmed.", patient, date, at)
			prio = PriorityMedium
		case StatusCompleted:
			title = "Appointment Completed"
			msg = fmt.Sprintf("Appointment with %s on %s has been completed.", patient, date)
			prio = PriorityLow
		case StatusCancelled:
			title = "Appointment Cancelled"
			msg = fmt.Sprintf("Appointment with %s on %s at %s has been cancelled.", patient, date, at)
			prio = PriorityMedium
		default:
			return nil
		}
	}

	return &Notification{
		ID:        NotificationID(TypeAppointment, doc.ID, status),
		Type:      TypeAppointment,
		Title:     title,
		Message:   msg,
		Timestamp: nowMillis(),
		Priority:  prio,
		RelatedID: doc.ID,
		Status:    status,
	}
}

// ---- referrals ----

func (s *synthesizer) referral(ctx context.Context, userID string, role Role, doc docstore.Document) *Notification {
	status := strings.ToLower(doc.Str("status"))
	date := formatEntityDate(doc.Str("appointmentDate"))
	at := doc.Str("appointmentTime")

	var title, msg string
	var prio Priority
	if role == RolePatient {
		specialist := s.resolveReferralSpecialist(ctx, doc)
		switch status {
		case StatusPending:
			title = "New Referral"
			msg = fmt.Sprintf("You have been referred to Dr. %s. Proposed schedule: %s at %s.", specialist, date, at)
			prio = PriorityHigh
		case StatusConfirmed:
			title = "Referral Confirmed"
			msg = fmt.Sprintf("Your referral appointment with Dr. %s on %s at %s has been confirmed.", specialist, date, at)
			prio = PriorityHigh
		case StatusCompleted:
			title = "Referral Completed"
			msg = fmt.Sprintf("Your referral appointment with Dr. %s has been completed.", specialist)
			prio = PriorityMedium
		case StatusCancelled:
			title = "Referral Cancelled"
			msg = fmt.Sprintf("Your referral appointment with Dr. %s has been cancelled.", specialist)
			prio = PriorityHigh
		default:
			return nil
		}
	} else {
		patient := s.resolveName(ctx, doc, "patientFirstName", "patientLastName", doc.Str("patientId"), unknownPatient)
		switch status {
		case StatusPending:
			title = "New Referral"
			msg = fmt.Sprintf("%s has been referred to you. Proposed schedule: %s at %s.", patient, date, at)
			prio = PriorityHigh
		case StatusConfirmed:
			title = "Referral Confirmed"
			msg = fmt.Sprintf("Referral appointment with %s on %s at %s has been confirmed.", patient, date, at)
			prio = PriorityMedium
		case StatusCompleted:
			title = "Referral Completed"
			msg = fmt.Sprintf("Referral appointment with %s has been completed.", patient)
			prio = PriorityLow
		case StatusCancelled:
			title = "Referral Cancelled"
			msg = fmt.Sprintf("Referral appointment with %s has been cancelled.", patient)
			prio = PriorityMedium
		default:
			return nil
		}
	}

	return &Notification{
		ID:        NotificationID(TypeReferral, doc.ID, status),
		Type:      TypeReferral,
		Title:     title,
		Message:   msg,
		Timestamp: nowMillis(),
		Priority:  prio,
		RelatedID: doc.ID,
		Status:    status,
	}
}

// ---- professional fee (specialist only) ----

func (s *synthesizer) professionalFee(userID string, doc docstore.Document) *Notification {
	status := strings.ToLower(doc.Str("professionalFeeStatus"))

	var title, msg string
	switch status {
	case StatusApproved:
		title = "Professional Fee Approved"
		if fee := feeAmount(doc); fee != "" {
			msg = fmt.Sprintf("Your professional fee of %s has been approved.", fee)
		} else {
			msg = "Your professional fee has been approved."
		}
	case StatusRejected:
		title = "Professional Fee Rejected"
		msg = "Your professional fee submission has been rejected. Please review and resubmit."
	default:
		// pending and anything else is not notify-worthy.
		return nil
	}

	relatedID := "professional_fee_" + userID
	return &Notification{
		ID:        NotificationID(TypeProfessionalFee, relatedID, status),
		Type:      TypeProfessionalFee,
		Title:     title,
		Message:   msg,
		Timestamp: nowMillis(),
		Priority:  PriorityHigh,
		RelatedID: relatedID,
		Status:    status,
	}
}

// ---- helpers ----

// resolveName prefers denormalized fields on the document, then a point
// lookup by user id, then the literal fallback.
func (s *synthesizer) resolveName(ctx context.Context, doc docstore.Document, firstKey, lastKey, lookupID, fallback string) string {
	if first := strings.TrimSpace(doc.Str(firstKey)); first != "" {
		return joinName(first, doc.Str(lastKey))
	}
	if name := s.lookupName(ctx, lookupID); name != "" {
		return name
	}
	return fallback
}

// resolveReferralSpecialist resolves the specialist side of a referral for
// patient-facing text: assigned specialist first, then referring generalist,
// then referring specialist, then the literal fallback.
func (s *synthesizer) resolveReferralSpecialist(ctx context.Context, doc docstore.Document) string {
	if first := strings.TrimSpace(doc.Str("specialistFirstName")); first != "" {
		return joinName(first, doc.Str("specialistLastName"))
	}
	for _, key := range []string{"assignedSpecialistId", "referringGeneralistId", "referringSpecialistId"} {
		if name := s.lookupName(ctx, doc.Str(key)); name != "" {
			return name
		}
	}
	return unknownSpecialist
}

func (s *synthesizer) lookupName(ctx context.Context, id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	u, err := s.store.UserByID(ctx, id)
	if err != nil {
		s.log.Debug("user lookup failed", logx.String("id", id), logx.Err(err))
		return ""
	}
	if u == nil {
		return ""
	}
	return joinName(u.FirstName, u.LastName)
}

func joinName(first, last string) string {
	first = strings.TrimSpace(first)
	last = strings.TrimSpace(last)
	if first == "" {
		return last
	}
	if last == "" {
		return first
	}
	return first + " " + last
}

// formatEntityDate renders "{Mon} {D}, {YYYY}". Unparsable input passes
// through untouched rather than erroring a whole notification.
func formatEntityDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "the scheduled date"
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("Jan 2, 2006")
		}
	}
	return raw
}

func feeAmount(doc docstore.Document) string {
	v, ok := doc.Fields["professionalFee"]
	if !ok || v == nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case int:
		return fmt.Sprintf("%d", x)
	case int64:
		return fmt.Sprintf("%d", x)
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%.2f", x)
	default:
		return ""
	}
}
