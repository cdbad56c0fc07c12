package consult

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/suPer8Hu/consult-desk/internal/common"
	"github.com/suPer8Hu/consult-desk/internal/transcript"
)

var ErrDisplayNameRequired = errors.New("userName is required")

type JoinResult int

const (
	JoinNotFound JoinResult = iota
	// JoinConnected: the session moved WAITING -> CONNECTED.
	JoinConnected
	// JoinAlready: the same consultant joined again; nothing changed.
	JoinAlready
	// JoinRejected: another consultant holds the session, or it has ended.
	JoinRejected
)

func (r JoinResult) String() string {
	switch r {
	case JoinConnected:
		return "connected"
	case JoinAlready:
		return "already"
	case JoinRejected:
		return "rejected"
	default:
		return "not_found"
	}
}

type entry struct {
	mu sync.Mutex
	s  Session
}

func (e *entry) snapshot() Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s.clone()
}

func (s Session) clone() Session {
	if s.ConsultantID != nil {
		id := *s.ConsultantID
		s.ConsultantID = &id
	}
	return s
}

// Registry is the in-memory source of truth for live sessions. The map lock
// only guards membership; state transitions take the entry's own lock so
// unrelated sessions never serialize on each other.
type Registry struct {
	mu        sync.RWMutex
	sessions  map[string]*entry
	completed map[string]CompletedSession

	ids *common.IDGenerator
	now func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:  make(map[string]*entry),
		completed: make(map[string]CompletedSession),
		ids:       common.NewIDGenerator(),
		now:       time.Now,
	}
}

func (r *Registry) newID() (string, error) {
	id, err := r.ids.New()
	if err != nil {
		return "", err
	}
	return "session-" + id, nil
}

// Create inserts a fresh WAITING session and returns its id.
func (r *Registry) Create(requesterID uint64, displayName, role string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, err := r.insertLocked(requesterID, displayName, role)
	if err != nil {
		return "", err
	}
	return s.ID, nil
}

// CreateOrRejoin returns the WAITING session already queued under the same
// display name and role, or creates one. created is false on rejoin.
func (r *Registry) CreateOrRejoin(requesterID uint64, displayName, role string) (Session, bool, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return Session{}, false, ErrDisplayNameRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		found    *Session
		foundKey string
	)
	for id, e := range r.sessions {
		s := e.snapshot()
		if s.Status != transcript.StatusWaiting || s.DisplayName != name || s.Role != role {
			continue
		}
		// several matches can only come from Create; prefer the oldest
		if found == nil || id < foundKey {
			found, foundKey = &s, id
		}
	}
	if found != nil {
		return *found, false, nil
	}

	s, err := r.insertLocked(requesterID, name, role)
	if err != nil {
		return Session{}, false, err
	}
	return s, true, nil
}

func (r *Registry) insertLocked(requesterID uint64, displayName, role string) (Session, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return Session{}, ErrDisplayNameRequired
	}
	id, err := r.newID()
	if err != nil {
		return Session{}, err
	}
	if _, taken := r.sessions[id]; taken {
		return Session{}, errors.New("consult: session id reused")
	}
	e := &entry{s: Session{
		ID:          id,
		RequesterID: requesterID,
		Status:      transcript.StatusWaiting,
		DisplayName: name,
		Role:        role,
		CreatedAt:   r.now(),
	}}
	r.sessions[id] = e
	return e.s.clone(), nil
}

func (r *Registry) lookup(id string) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

func (r *Registry) Get(id string) (Session, bool) {
	e := r.lookup(id)
	if e == nil {
		return Session{}, false
	}
	return e.snapshot(), true
}

// Join assigns consultantID to a WAITING session. The first join wins; later
// joins by anyone else are rejected without side effects.
func (r *Registry) Join(id string, consultantID uint64) (Session, JoinResult) {
	e := r.lookup(id)
	if e == nil {
		return Session{}, JoinNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.s.Status {
	case transcript.StatusWaiting:
		cid := consultantID
		e.s.ConsultantID = &cid
		e.s.Status = transcript.StatusConnected
		return e.s.clone(), JoinConnected
	case transcript.StatusConnected:
		if e.s.ConsultantID != nil && *e.s.ConsultantID == consultantID {
			return e.s.clone(), JoinAlready
		}
	}
	return e.s.clone(), JoinRejected
}

// JoinAsConsultant is Join reduced to "is consultantID now the session's
// consultant".
func (r *Registry) JoinAsConsultant(id string, consultantID uint64) bool {
	_, res := r.Join(id, consultantID)
	return res == JoinConnected || res == JoinAlready
}

// End marks the session ENDED, drops it from the active map and records the
// completed projection. ok is false when the session is not active.
func (r *Registry) End(id string) (Session, bool) {
	e := r.lookup(id)
	if e == nil {
		return Session{}, false
	}

	e.mu.Lock()
	if e.s.Status == transcript.StatusEnded {
		e.mu.Unlock()
		return Session{}, false
	}
	e.s.Status = transcript.StatusEnded
	snap := e.s.clone()
	e.mu.Unlock()

	r.mu.Lock()
	if r.sessions[id] == e {
		delete(r.sessions, id)
	}
	r.completed[id] = CompletedSession{
		SessionID:   id,
		DisplayName: snap.DisplayName,
		CreatedAt:   snap.CreatedAt,
		CompletedAt: r.now(),
	}
	r.mu.Unlock()

	return snap, true
}

// Forget drops the completed projection of id.
func (r *Registry) Forget(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.completed, id)
}

// ListWaiting returns WAITING sessions whose role is not excludeRole, oldest
// first. An empty excludeRole disables the filter.
func (r *Registry) ListWaiting(excludeRole string) []WaitingSession {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.sessions))
	for _, e := range r.sessions {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]WaitingSession, 0, len(entries))
	for _, e := range entries {
		s := e.snapshot()
		if s.Status != transcript.StatusWaiting {
			continue
		}
		if excludeRole != "" && s.Role == excludeRole {
			continue
		}
		out = append(out, WaitingSession{
			SessionID:   s.ID,
			DisplayName: s.DisplayName,
			Status:      s.Status,
			CreatedAt:   s.CreatedAt,
		})
	}
	// ids are monotonic ULIDs, so id order is creation order
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

func (r *Registry) ListCompleted() []CompletedSession {
	r.mu.RLock()
	out := make([]CompletedSession, 0, len(r.completed))
	for _, c := range r.completed {
		out = append(out, c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CompletedAt.Equal(out[j].CompletedAt) {
			return out[i].CompletedAt.Before(out[j].CompletedAt)
		}
		return out[i].SessionID < out[j].SessionID
	})
	return out
}
