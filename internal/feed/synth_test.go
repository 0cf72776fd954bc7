package feed

import (
	"context"
	"strings"
	"testing"

	"caresync/internal/docstore"
	logx "caresync/pkg/logx"
)

func newTestSynth() (*synthesizer, *docstore.Memory) {
	mem := docstore.NewMemory()
	mem.PutUser(docstore.UserRecord{ID: "p1", FirstName: "Maria", LastName: "Santos", Role: "patient"})
	mem.PutUser(docstore.UserRecord{ID: "d1", FirstName: "Ana", LastName: "Cruz", Role: "specialist"})
	return &synthesizer{store: mem, log: logx.Nop()}, mem
}

func TestSynthesizeAppointmentWording(t *testing.T) {
	synth, _ := newTestSynth()
	doc := docstore.Document{ID: "appt-1", Fields: map[string]any{
		"patientId":       "p1",
		"doctorId":        "d1",
		"status":          "confirmed",
		"appointmentDate": "2026-09-15",
		"appointmentTime": "10:00",
	}}

	tests := []struct {
		role     Role
		status   string
		title    string
		priority Priority
		contains string
	}{
		{RolePatient, "confirmed", "Appointment Confirmed", PriorityHigh, "Dr. Ana Cruz on Sep 15, 2026 at 10:00"},
		{RolePatient, "cancelled", "Appointment Cancelled", PriorityHigh, "cancelled"},
		{RolePatient, "completed", "Appointment Completed", PriorityMedium, "completed"},
		{RoleSpecialist, "pending", "New Appointment Request", PriorityHigh, "Maria Santos requested"},
		{RoleSpecialist, "confirmed", "Appointment Confirmed", PriorityMedium, "Maria Santos"},
		{RoleSpecialist, "completed", "Appointment Completed", PriorityLow, "Maria Santos"},
	}
	for _, tc := range tests {
		t.Run(string(tc.role)+"/"+tc.status, func(t *testing.T) {
			d := docstore.Document{ID: doc.ID, Fields: map[string]any{}}
			for k, v := range doc.Fields {
				d.Fields[k] = v
			}
			d.Fields["status"] = tc.status

			userID := "p1"
			if tc.role == RoleSpecialist {
				userID = "d1"
			}
			n := synth.synthesize(context.Background(), userID, tc.role, TypeAppointment, d)
			if n == nil {
				t.Fatalf("no notification for %s/%s", tc.role, tc.status)
			}
			if n.Title != tc.title {
				t.Fatalf("title = %q, want %q", n.Title, tc.title)
			}
			if n.Priority != tc.priority {
				t.Fatalf("priority = %q, want %q", n.Priority, tc.priority)
			}
			if !strings.Contains(n.Message, tc.contains) {
				t.Fatalf("message %q does not contain %q", n.Message, tc.contains)
			}
			if n.ID != "appointment-appt-1-"+tc.status {
				t.Fatalf("id = %q", n.ID)
			}
		})
	}
}

func TestSynthesizeAppointmentUnknownStatus(t *testing.T) {
	synth, _ := newTestSynth()
	doc := docstore.Document{ID: "appt-1", Fields: map[string]any{
		"patientId": "p1", "doctorId": "d1", "status": "rescheduling",
	}}
	if n := synth.synthesize(context.Background(), "p1", RolePatient, TypeAppointment, doc); n != nil {
		t.Fatalf("unknown status must be ignored, got %+v", n)
	}
}

func TestSynthesizeAppointmentNameFallback(t *testing.T) {
	synth, _ := newTestSynth()
	doc := docstore.Document{ID: "appt-2", Fields: map[string]any{
		"patientId":       "p1",
		"doctorId":        "nobody",
		"status":          "confirmed",
		"appointmentDate": "2026-09-15",
		"appointmentTime": "10:00",
	}}
	n := synth.synthesize(context.Background(), "p1", RolePatient, TypeAppointment, doc)
	if n == nil {
		t.Fatal("no notification")
	}
	if !strings.Contains(n.Message, unknownDoctor) {
		t.Fatalf("message %q should fall back to %q", n.Message, unknownDoctor)
	}
}

func TestSynthesizeReferralRoleWording(t *testing.T) {
	synth, _ := newTestSynth()
	doc := docstore.Document{ID: "ref-1", Fields: map[string]any{
		"patientId":            "p1",
		"assignedSpecialistId": "d1",
		"status":               "confirmed",
		"appointmentDate":      "2026-10-01",
		"appointmentTime":      "14:30",
	}}

	patient := synth.synthesize(context.Background(), "p1", RolePatient, TypeReferral, doc)
	specialist := synth.synthesize(context.Background(), "d1", RoleSpecialist, TypeReferral, doc)
	if patient == nil || specialist == nil {
		t.Fatal("both roles must get a confirmed-referral notification")
	}
	if patient.Title != "Referral Confirmed" || specialist.Title != "Referral Confirmed" {
		t.Fatalf("titles = %q / %q", patient.Title, specialist.Title)
	}
	if patient.Message == specialist.Message {
		t.Fatalf("role wording must differ, both %q", patient.Message)
	}
	if !strings.Contains(patient.Message, "Dr. Ana Cruz") {
		t.Fatalf("patient message %q should name the specialist", patient.Message)
	}
	if !strings.Contains(specialist.Message, "Maria Santos") {
		t.Fatalf("specialist message %q should name the patient", specialist.Message)
	}
	if patient.Priority != PriorityHigh || specialist.Priority != PriorityMedium {
		t.Fatalf("priorities = %q / %q", patient.Priority, specialist.Priority)
	}
}

func TestSynthesizeProfessionalFeeAllowlist(t *testing.T) {
	synth, _ := newTestSynth()
	mk := func(status string) docstore.Document {
		return docstore.Document{ID: "d1", Fields: map[string]any{
			"professionalFeeStatus": status,
			"professionalFee":       1500,
		}}
	}

	if n := synth.synthesize(context.Background(), "d1", RoleSpecialist, TypeProfessionalFee, mk("pending")); n != nil {
		t.Fatalf("pending fee must not notify, got %+v", n)
	}
	if n := synth.synthesize(context.Background(), "d1", RoleSpecialist, TypeProfessionalFee, mk("confirmed")); n != nil {
		t.Fatalf("confirmed is not a fee status, got %+v", n)
	}

	approved := synth.synthesize(context.Background(), "d1", RoleSpecialist, TypeProfessionalFee, mk("approved"))
	if approved == nil {
		t.Fatal("approved fee must notify")
	}
	if approved.Priority != PriorityHigh {
		t.Fatalf("priority = %q, want high", approved.Priority)
	}
	if approved.RelatedID != "professional_fee_d1" {
		t.Fatalf("relatedId = %q", approved.RelatedID)
	}
	if !strings.Contains(approved.Message, "1500") {
		t.Fatalf("message %q should carry the fee amount", approved.Message)
	}

	rejected := synth.synthesize(context.Background(), "d1", RoleSpecialist, TypeProfessionalFee, mk("rejected"))
	if rejected == nil || rejected.Title != "Professional Fee Rejected" {
		t.Fatalf("rejected fee notification wrong: %+v", rejected)
	}
}

func TestFormatEntityDate(t *testing.T) {
	tests := []struct{ in, want string }{
		{"2026-09-15", "Sep 15, 2026"},
		{"2026-09-15T10:00:00Z", "Sep 15, 2026"},
		{"", "the scheduled date"},
		{"soonish", "soonish"},
	}
	for _, tc := range tests {
		if got := formatEntityDate(tc.in); got != tc.want {
			t.Fatalf("formatEntityDate(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
