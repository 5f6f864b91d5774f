package workflow

import (
	"sync"
	"time"
)

type schedEntry struct {
	id         string
	key        string
	eligibleAt time.Time
}

// scheduler holds the in-memory pending sequence and the per-key lock table.
// Workers block in next until a task is enqueued, a key lock is released, or
// a backoff gate expires; there is no polling loop.
type scheduler struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []schedEntry
	locked  map[string]struct{}
	timers  map[string]*time.Timer
	paused  bool
	closed  bool
}

func newScheduler() *scheduler {
	s := &scheduler{
		locked: make(map[string]struct{}),
		timers: make(map[string]*time.Timer),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// enqueue appends a task to the tail of the pending sequence.
func (s *scheduler) enqueue(id, key string) {
	s.enqueueAt(id, key, time.Time{})
}

// enqueueAfter appends a task that becomes eligible once delay passes.
// The delay is enforced by an eligibility gate plus a timer wakeup, so no
// worker slot is consumed while the task waits out its backoff.
func (s *scheduler) enqueueAfter(id, key string, delay time.Duration) {
	s.enqueueAt(id, key, time.Now().Add(delay))
}

func (s *scheduler) enqueueAt(id, key string, eligibleAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pending = append(s.pending, schedEntry{id: id, key: key, eligibleAt: eligibleAt})
	if delay := time.Until(eligibleAt); delay > 0 {
		if existing, ok := s.timers[id]; ok {
			existing.Stop()
		}
		s.timers[id] = time.AfterFunc(delay+time.Millisecond, func() {
			s.mu.Lock()
			delete(s.timers, id)
			s.mu.Unlock()
			s.cond.Broadcast()
		})
	}
	s.cond.Broadcast()
}

// remove deletes a pending task before any worker claims it. Returns false
// when the task is no longer pending (already dequeued or never enqueued).
func (s *scheduler) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, entry := range s.pending {
		if entry.id == id {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			if timer, ok := s.timers[id]; ok {
				timer.Stop()
				delete(s.timers, id)
			}
			return true
		}
	}
	return false
}

// next blocks until an eligible task whose key is unlocked can be claimed,
// locking the key before returning. Returns ok=false after close.
func (s *scheduler) next() (id, key string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if s.closed {
			return "", "", false
		}
		if !s.paused {
			now := time.Now()
			for i, entry := range s.pending {
				if _, held := s.locked[entry.key]; held {
					continue
				}
				if entry.eligibleAt.After(now) {
					continue
				}
				s.pending = append(s.pending[:i], s.pending[i+1:]...)
				s.locked[entry.key] = struct{}{}
				return entry.id, entry.key, true
			}
		}
		s.cond.Wait()
	}
}

// release unlocks a key after its running task leaves the running state.
// Called on every exit path so a key bucket can never deadlock.
func (s *scheduler) release(key string) {
	s.mu.Lock()
	delete(s.locked, key)
	s.mu.Unlock()
	s.cond.Broadcast()
}

func (s *scheduler) pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

func (s *scheduler) resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
	s.cond.Broadcast()
}

func (s *scheduler) isPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// pendingCount reports queued (not yet claimed) tasks.
func (s *scheduler) pendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// close wakes all waiting workers and makes further next calls return
// immediately. Enqueued-but-unclaimed tasks stay in the store as pending.
func (s *scheduler) close() {
	s.mu.Lock()
	s.closed = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.cond.Broadcast()
}
