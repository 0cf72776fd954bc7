package feed

import (
	"testing"
	"time"
)

func notif(t EntityType, relatedID, status string, ts int64) Notification {
	return Notification{
		ID:        NotificationID(t, relatedID, status),
		Type:      t,
		Title:     "t:" + status,
		Message:   "m:" + relatedID + ":" + status,
		Timestamp: ts,
		Priority:  PriorityMedium,
		RelatedID: relatedID,
		Status:    status,
	}
}

func TestMergeReplaceByIDPreservesRead(t *testing.T) {
	old := notif(TypeAppointment, "a1", "confirmed", 1000)
	old.Read = true

	in := notif(TypeAppointment, "a1", "confirmed", 2000)
	out, added := mergeNotifications([]Notification{old}, []Notification{in}, 30*time.Second, 100)

	if added != 0 {
		t.Fatalf("added = %d, want 0 for a replace", added)
	}
	if len(out) != 1 {
		t.Fatalf("len = %d, want 1", len(out))
	}
	if !out[0].Read {
		t.Fatalf("read flag lost on re-observation")
	}
	if out[0].Timestamp != 2000 {
		t.Fatalf("timestamp = %d, want the newer observation", out[0].Timestamp)
	}
}

func TestMergeAppendsNewTransitions(t *testing.T) {
	cached := []Notification{notif(TypeAppointment, "a1", "pending", 1000)}
	in := []Notification{
		notif(TypeAppointment, "a1", "confirmed", 2000),
		notif(TypeReferral, "r1", "pending", 3000),
	}
	out, added := mergeNotifications(cached, in, 30*time.Second, 100)
	if added != 2 {
		t.Fatalf("added = %d, want 2", added)
	}
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}
	// Newest first.
	if out[0].RelatedID != "r1" || out[2].Status != "pending" {
		t.Fatalf("unexpected order: %+v", out)
	}
}

func TestMergeContentDuplicate(t *testing.T) {
	base := notif(TypeReferral, "r1", "pending", 10_000)

	tests := []struct {
		name    string
		mutate  func(*Notification)
		dropped bool
	}{
		{"same status different id suffix", func(n *Notification) { n.ID = n.ID + "-legacy" }, true},
		{"different status close in time", func(n *Notification) {
			n.Status = "confirmed"
			n.ID = NotificationID(n.Type, n.RelatedID, n.Status)
			n.Timestamp = 25_000 // within 30s of base
		}, true},
		{"different status far apart", func(n *Notification) {
			n.Status = "confirmed"
			n.ID = NotificationID(n.Type, n.RelatedID, n.Status)
			n.Timestamp = 100_000
		}, false},
		{"different message", func(n *Notification) {
			n.ID = n.ID + "-x"
			n.Message = "something else"
		}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := base
			tc.mutate(&in)
			out, added := mergeNotifications([]Notification{base}, []Notification{in}, 30*time.Second, 100)
			if tc.dropped && (added != 0 || len(out) != 1) {
				t.Fatalf("want drop, got added=%d len=%d", added, len(out))
			}
			if !tc.dropped && (added != 1 || len(out) != 2) {
				t.Fatalf("want append, got added=%d len=%d", added, len(out))
			}
		})
	}
}

func TestMergeBoundedRetention(t *testing.T) {
	var cached []Notification
	var in []Notification
	for i := 0; i < 150; i++ {
		in = append(in, notif(TypeAppointment, "a"+string(rune('A'+i%26))+string(rune('0'+i/26)), "confirmed", int64(i)))
	}
	out, _ := mergeNotifications(cached, in, 30*time.Second, 100)
	if len(out) != 100 {
		t.Fatalf("len = %d, want 100", len(out))
	}
	// Newest survived the cut.
	if out[0].Timestamp != 149 {
		t.Fatalf("newest timestamp = %d, want 149", out[0].Timestamp)
	}
	if out[len(out)-1].Timestamp != 50 {
		t.Fatalf("oldest kept = %d, want 50", out[len(out)-1].Timestamp)
	}
}

func TestCollapseDuplicatesHealsLegacyLists(t *testing.T) {
	// Same transition written three times by older versions with random ids.
	a := notif(TypeAppointment, "a1", "confirmed", 5000)
	b := a
	b.ID = "appointment-a1-confirmed-1699999999-abc123"
	b.Timestamp = 4000
	c := a
	c.ID = "appointment-a1-confirmed-1699999998-def456"
	c.Timestamp = 3000
	other := notif(TypeReferral, "r1", "pending", 2000)

	clean, removed := collapseDuplicates([]Notification{c, a, other, b}, 30*time.Second)
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if len(clean) != 2 {
		t.Fatalf("len = %d, want 2", len(clean))
	}
	// The newest occurrence wins.
	if clean[0].Timestamp != 5000 {
		t.Fatalf("kept timestamp = %d, want 5000", clean[0].Timestamp)
	}
}

func TestSortNotificationsDeterministicTiebreak(t *testing.T) {
	a := notif(TypeAppointment, "a1", "confirmed", 1000)
	b := notif(TypeAppointment, "b1", "confirmed", 1000)
	list := []Notification{b, a}
	sortNotifications(list)
	if list[0].RelatedID != "a1" {
		t.Fatalf("equal timestamps must order by id, got %q first", list[0].RelatedID)
	}
}
