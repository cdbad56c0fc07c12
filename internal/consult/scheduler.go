package consult

import (
	"sync"
	"time"
)

// Scheduler runs one delayed task per key. A key that is already pending is
// not rescheduled, so activity on the key cannot postpone its task. Stop
// cancels everything still pending.
type Scheduler struct {
	mu      sync.Mutex
	tasks   map[string]*time.Timer
	stopped bool
}

func NewScheduler() *Scheduler {
	return &Scheduler{tasks: make(map[string]*time.Timer)}
}

// Schedule reports whether fn was scheduled.
func (s *Scheduler) Schedule(key string, delay time.Duration, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	if _, pending := s.tasks[key]; pending {
		return false
	}
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		s.mu.Lock()
		current := s.tasks[key] == t
		if current {
			delete(s.tasks, key)
		}
		s.mu.Unlock()
		if current {
			fn()
		}
	})
	s.tasks[key] = t
	return true
}

func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[key]
	return ok
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for key, t := range s.tasks {
		t.Stop()
		delete(s.tasks, key)
	}
}
