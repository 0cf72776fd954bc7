package docstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store used by the daemon's dev mode and by tests.
//
// Writes fan the full collection snapshot out to subscribers through a
// one-slot buffer: a pending undelivered snapshot is replaced by the newer
// one (coalescing), and nothing ever blocks a writer.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
	users       map[string]UserRecord
	logins      map[string]time.Time // key: userID|role

	subsMu sync.Mutex
	subs   map[uint64]*memSub
	seq    uint64
}

type memSub struct {
	collection string
	onChange   func([]Document)
	onError    func(error)

	mu      sync.Mutex
	pending [][]Document // at most 1 entry; newer snapshots replace it
	wake    chan struct{}
	stop    chan struct{}
}

func NewMemory() *Memory {
	return &Memory{
		collections: map[string]map[string]Document{},
		users:       map[string]UserRecord{},
		logins:      map[string]time.Time{},
		subs:        map[uint64]*memSub{},
	}
}

// ---- Store ----

func (m *Memory) Collection(ctx context.Context, name string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked(name), nil
}

func (m *Memory) Subscribe(name string, onChange func([]Document), onError func(error)) func() {
	sub := &memSub{
		collection: name,
		onChange:   onChange,
		onError:    onError,
		wake:       make(chan struct{}, 1),
		stop:       make(chan struct{}),
	}

	m.subsMu.Lock()
	m.seq++
	id := m.seq
	m.subs[id] = sub
	m.subsMu.Unlock()

	go sub.pump()

	// Initial delivery: subscribers always see the current state first.
	m.mu.RLock()
	snap := m.snapshotLocked(name)
	m.mu.RUnlock()
	sub.offer(snap)

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subsMu.Lock()
			delete(m.subs, id)
			m.subsMu.Unlock()
			close(sub.stop)
		})
	}
}

func (m *Memory) UserByID(ctx context.Context, id string) (*UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := u
	return &cp, nil
}

func (m *Memory) LastLogin(ctx context.Context, userID, role string) (time.Time, bool, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.logins[loginKey(userID, role)]
	return t, ok, nil
}

func (m *Memory) EnrichAppointment(ctx context.Context, doc Document) (Document, error) {
	if err := ctx.Err(); err != nil {
		return doc, err
	}
	out := doc.clone()
	m.mu.RLock()
	defer m.mu.RUnlock()
	if out.Str("patientFirstName") == "" {
		if u, ok := m.users[out.Str("patientId")]; ok {
			out.Fields["patientFirstName"] = u.FirstName
			out.Fields["patientLastName"] = u.LastName
		}
	}
	if out.Str("doctorFirstName") == "" {
		if u, ok := m.users[out.Str("doctorId")]; ok {
			out.Fields["doctorFirstName"] = u.FirstName
			out.Fields["doctorLastName"] = u.LastName
		}
	}
	return out, nil
}

// ---- Writes (test/dev surface, not part of Store) ----

// Put upserts a document and notifies subscribers of the collection.
// An empty ID gets a generated one; the id is returned either way.
func (m *Memory) Put(collection string, doc Document) string {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Fields == nil {
		doc.Fields = map[string]any{}
	}
	m.mu.Lock()
	col := m.collections[collection]
	if col == nil {
		col = map[string]Document{}
		m.collections[collection] = col
	}
	col[doc.ID] = doc.clone()
	snap := m.snapshotLocked(collection)
	m.mu.Unlock()

	m.broadcast(collection, snap)
	return doc.ID
}

func (m *Memory) Delete(collection, id string) {
	m.mu.Lock()
	if col := m.collections[collection]; col != nil {
		delete(col, id)
	}
	snap := m.snapshotLocked(collection)
	m.mu.Unlock()

	m.broadcast(collection, snap)
}

func (m *Memory) PutUser(u UserRecord) {
	m.mu.Lock()
	m.users[u.ID] = u
	m.mu.Unlock()
}

func (m *Memory) SetLastLogin(userID, role string, at time.Time) {
	m.mu.Lock()
	m.logins[loginKey(userID, role)] = at
	m.mu.Unlock()
}

func (m *Memory) broadcast(collection string, snap []Document) {
	m.subsMu.Lock()
	targets := make([]*memSub, 0, len(m.subs))
	for _, s := range m.subs {
		if s.collection == collection {
			targets = append(targets, s)
		}
	}
	m.subsMu.Unlock()

	for _, s := range targets {
		s.offer(snap)
	}
}

func (m *Memory) snapshotLocked(name string) []Document {
	col := m.collections[name]
	out := make([]Document, 0, len(col))
	for _, d := range col {
		out = append(out, d.clone())
	}
	return out
}

func (d Document) clone() Document {
	cp := Document{ID: d.ID, Fields: make(map[string]any, len(d.Fields))}
	for k, v := range d.Fields {
		cp.Fields[k] = v
	}
	return cp
}

func loginKey(userID, role string) string {
	return userID + "|" + strings.ToLower(strings.TrimSpace(role))
}

// ---- subscriber pump ----

func (s *memSub) offer(snap []Document) {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.pending = append(s.pending, snap)
	} else {
		// Coalesce: replace the undelivered snapshot with the newer one.
		s.pending[0] = snap
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *memSub) pump() {
	for {
		select {
		case <-s.stop:
			return
		case <-s.wake:
		}

		for {
			s.mu.Lock()
			if len(s.pending) == 0 {
				s.mu.Unlock()
				break
			}
			snap := s.pending[0]
			s.pending = s.pending[:0]
			s.mu.Unlock()

			select {
			case <-s.stop:
				return
			default:
			}
			s.deliver(snap)
		}
	}
}

func (s *memSub) deliver(snap []Document) {
	defer func() {
		if r := recover(); r != nil && s.onError != nil {
			// A panicking callback must not kill the pump.
			s.safeError(r)
		}
	}()
	if s.onChange != nil {
		s.onChange(snap)
	}
}

func (s *memSub) safeError(r any) {
	defer func() { _ = recover() }()
	s.onError(panicError{r})
}

type panicError struct{ v any }

func (e panicError) Error() string { return "subscriber callback panicked" }
