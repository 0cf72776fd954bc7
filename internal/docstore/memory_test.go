package docstore

import (
	"context"
	"sync"
	"testing"
	"time"
)

func waitFor(t *testing.T, d time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestMemoryPutAndCollection(t *testing.T) {
	m := NewMemory()
	id := m.Put(CollectionAppointments, Document{Fields: map[string]any{"status": "pending"}})
	if id == "" {
		t.Fatal("generated id is empty")
	}
	m.Put(CollectionAppointments, Document{ID: "a2", Fields: map[string]any{"status": "confirmed"}})

	docs, err := m.Collection(context.Background(), CollectionAppointments)
	if err != nil {
		t.Fatalf("collection: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("len = %d, want 2", len(docs))
	}

	// Snapshots are copies: mutating a returned doc must not leak back.
	for i := range docs {
		docs[i].Fields["status"] = "mutated"
	}
	docs, _ = m.Collection(context.Background(), CollectionAppointments)
	for _, d := range docs {
		if d.Str("status") == "mutated" {
			t.Fatal("collection snapshot aliases internal state")
		}
	}
}

func TestMemorySubscribeDeliversInitialAndChanges(t *testing.T) {
	m := NewMemory()
	m.Put(CollectionReferrals, Document{ID: "r1", Fields: map[string]any{"status": "pending"}})

	var mu sync.Mutex
	var deliveries [][]Document
	unsub := m.Subscribe(CollectionReferrals, func(docs []Document) {
		mu.Lock()
		deliveries = append(deliveries, docs)
		mu.Unlock()
	}, nil)
	defer unsub()

	waitFor(t, time.Second, "initial delivery", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(deliveries) >= 1
	})
	mu.Lock()
	if len(deliveries[0]) != 1 || deliveries[0][0].ID != "r1" {
		t.Fatalf("initial snapshot wrong: %+v", deliveries[0])
	}
	mu.Unlock()

	m.Put(CollectionReferrals, Document{ID: "r1", Fields: map[string]any{"status": "confirmed"}})
	waitFor(t, time.Second, "change delivery", func() bool {
		mu.Lock()
		defer mu.Unlock()
		last := deliveries[len(deliveries)-1]
		return len(last) == 1 && last[0].Str("status") == "confirmed"
	})
}

func TestMemoryUnsubscribeStopsDelivery(t *testing.T) {
	m := NewMemory()
	var mu sync.Mutex
	count := 0
	unsub := m.Subscribe(CollectionDoctors, func([]Document) {
		mu.Lock()
		count++
		mu.Unlock()
	}, nil)

	waitFor(t, time.Second, "initial delivery", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count >= 1
	})
	unsub()
	unsub() // safe to call twice

	m.Put(CollectionDoctors, Document{ID: "d1", Fields: map[string]any{}})
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Fatalf("delivery after unsubscribe, count = %d", count)
	}
}

func TestMemoryPanickingSubscriberSurfacesError(t *testing.T) {
	m := NewMemory()
	errCh := make(chan error, 1)
	unsub := m.Subscribe(CollectionDoctors, func([]Document) {
		panic("bad subscriber")
	}, func(err error) {
		select {
		case errCh <- err:
		default:
		}
	})
	defer unsub()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("nil error from panicking subscriber")
		}
	case <-time.After(time.Second):
		t.Fatal("panic never surfaced via onError")
	}

	// The pump must survive and keep serving other subscribers.
	done := make(chan struct{}, 1)
	unsub2 := m.Subscribe(CollectionDoctors, func([]Document) {
		select {
		case done <- struct{}{}:
		default:
		}
	}, nil)
	defer unsub2()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("healthy subscriber starved after another panicked")
	}
}

func TestMemoryUsersAndLogins(t *testing.T) {
	m := NewMemory()
	m.PutUser(UserRecord{ID: "u1", FirstName: "Maria", LastName: "Santos", Role: "patient"})

	u, err := m.UserByID(context.Background(), "u1")
	if err != nil || u == nil || u.FirstName != "Maria" {
		t.Fatalf("user = %+v, err = %v", u, err)
	}
	missing, err := m.UserByID(context.Background(), "nobody")
	if err != nil || missing != nil {
		t.Fatalf("missing user must be (nil, nil), got %+v, %v", missing, err)
	}

	if _, ok, _ := m.LastLogin(context.Background(), "u1", "patient"); ok {
		t.Fatal("login recorded before SetLastLogin")
	}
	at := time.Now().Add(-time.Hour).Truncate(time.Second)
	m.SetLastLogin("u1", "patient", at)
	got, ok, err := m.LastLogin(context.Background(), "u1", "Patient")
	if err != nil || !ok || !got.Equal(at) {
		t.Fatalf("last login = %v ok=%v err=%v", got, ok, err)
	}
}

func TestMemoryEnrichAppointment(t *testing.T) {
	m := NewMemory()
	m.PutUser(UserRecord{ID: "p1", FirstName: "Maria", LastName: "Santos", Role: "patient"})
	m.PutUser(UserRecord{ID: "d1", FirstName: "Ana", LastName: "Cruz", Role: "specialist"})

	doc := Document{ID: "a1", Fields: map[string]any{"patientId": "p1", "doctorId": "d1"}}
	out, err := m.EnrichAppointment(context.Background(), doc)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if out.Str("patientFirstName") != "Maria" || out.Str("doctorLastName") != "Cruz" {
		t.Fatalf("enriched fields wrong: %+v", out.Fields)
	}
	if _, ok := doc.Fields["patientFirstName"]; ok {
		t.Fatal("enrich mutated the input document")
	}
}

func TestDocumentTimeConversions(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	tests := []struct {
		name  string
		value any
		ok    bool
	}{
		{"time.Time", now, true},
		{"rfc3339", now.Format(time.RFC3339), true},
		{"date only", "2026-09-15", true},
		{"epoch millis int64", now.UnixMilli(), true},
		{"epoch millis float64", float64(now.UnixMilli()), true},
		{"garbage", "not a time", false},
		{"nil", nil, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := Document{ID: "x", Fields: map[string]any{"ts": tc.value}}
			_, ok := d.Time("ts")
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
		})
	}
}
