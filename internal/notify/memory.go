package notify

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	n       Notification
	expires time.Time
}

type userQueue struct {
	mu    sync.Mutex
	items []entry
}

// MemoryStore keeps notifications in process. Each user queue has its own
// lock so pushes for different users never contend.
type MemoryStore struct {
	mu     sync.Mutex
	queues map[int64]*userQueue
	keys   map[string]entry
	now    func() time.Time
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		queues: make(map[int64]*userQueue),
		keys:   make(map[string]entry),
		now:    time.Now,
	}
}

func (s *MemoryStore) queue(userID int64) *userQueue {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queues[userID]
	if !ok {
		q = &userQueue{}
		s.queues[userID] = q
	}
	return q
}

func (s *MemoryStore) Put(_ context.Context, n Notification) error {
	now := s.now()
	e := entry{n: n, expires: now.Add(TTL)}

	s.mu.Lock()
	for k, old := range s.keys {
		if !old.expires.After(now) {
			delete(s.keys, k)
		}
	}
	s.keys[NotificationKey(n.UserID, n.CallID)] = e
	s.mu.Unlock()

	q := s.queue(n.UserID)
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(live(q.items, now), e)
	if len(q.items) > QueueCap {
		q.items = append([]entry(nil), q.items[len(q.items)-QueueCap:]...)
	}

	return nil
}

func (s *MemoryStore) Drain(_ context.Context, userID int64) ([]Notification, error) {
	q := s.queue(userID)
	q.mu.Lock()
	items := live(q.items, s.now())
	q.items = nil
	q.mu.Unlock()

	out := make([]Notification, 0, len(items))
	for _, e := range items {
		out = append(out, e.n)
	}
	return out, nil
}

func (s *MemoryStore) Lookup(_ context.Context, userID int64, callID string) (Notification, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.keys[NotificationKey(userID, callID)]
	if !ok || !e.expires.After(s.now()) {
		return Notification{}, false, nil
	}
	return e.n, true, nil
}

func (s *MemoryStore) Forget(_ context.Context, userID int64, callID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.keys, NotificationKey(userID, callID))
	return nil
}

// live drops expired entries in place
func live(items []entry, now time.Time) []entry {
	kept := items[:0]
	for _, e := range items {
		if e.expires.After(now) {
			kept = append(kept, e)
		}
	}
	return kept
}
