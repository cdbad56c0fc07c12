package consult

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/suPer8Hu/consult-desk/internal/logging"
	"github.com/suPer8Hu/consult-desk/internal/transcript"
)

type fakeConn struct {
	id     string
	mu     sync.Mutex
	events []Event
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: id} }

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(ev Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return true
}

func (f *fakeConn) all() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event(nil), f.events...)
}

func (f *fakeConn) names() []string {
	var out []string
	for _, ev := range f.all() {
		out = append(out, ev.Name)
	}
	return out
}

func (f *fakeConn) count(name string) int {
	n := 0
	for _, ev := range f.all() {
		if ev.Name == name {
			n++
		}
	}
	return n
}

func (f *fakeConn) last(t *testing.T, name string, v any) {
	t.Helper()
	evs := f.all()
	for i := len(evs) - 1; i >= 0; i-- {
		if evs[i].Name != name {
			continue
		}
		if v != nil {
			if err := json.Unmarshal(evs[i].Data, v); err != nil {
				t.Fatalf("decode %s: %v", name, err)
			}
		}
		return
	}
	t.Fatalf("no %s event on %s, got %v", name, f.id, f.names())
}

func (f *fakeConn) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = nil
}

type storeCall struct {
	Op           string
	SessionID    string
	Status       transcript.Status
	ConsultantID *uint64
	Seq          int64
	Role         transcript.SenderRole
}

type fakeStore struct {
	mu    sync.Mutex
	calls []storeCall
	fail  bool
	gate  chan struct{} // when set, AppendMessage waits for it
}

var errStoreDown = errors.New("store down")

func (s *fakeStore) record(c storeCall) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c)
	if s.fail {
		return errStoreDown
	}
	return nil
}

func (s *fakeStore) CreateSession(ctx context.Context, id string, requesterID uint64) error {
	return s.record(storeCall{Op: "create", SessionID: id})
}

func (s *fakeStore) UpdateSessionStatus(ctx context.Context, id string, status transcript.Status, consultantID *uint64) error {
	return s.record(storeCall{Op: "status", SessionID: id, Status: status, ConsultantID: consultantID})
}

func (s *fakeStore) AppendMessage(ctx context.Context, sessionID string, seq int64, role transcript.SenderRole, content string) error {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.record(storeCall{Op: "append", SessionID: sessionID, Seq: seq, Role: role})
}

func (s *fakeStore) ops() []storeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]storeCall(nil), s.calls...)
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []string
}

func (q *fakeQueue) PublishSummaryJob(ctx context.Context, sessionID string, audience transcript.Audience) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, sessionID+"/"+string(audience))
	return nil
}

func newTestOrchestrator(store Store, opts Options) *Orchestrator {
	if opts.MirrorTimeout == 0 {
		opts.MirrorTimeout = time.Second
	}
	return NewOrchestrator(store, logging.Discard(), opts)
}

func newTestSequencer(store Store) (*Sequencer, *Hub) {
	hub := NewHub()
	return NewSequencer(hub, &mirror{store: store, timeout: time.Second, log: logging.Discard()}), hub
}
