package transcript

import (
	"log/slog"
	"sync"
	"time"
)

const DefaultTTL = 5000 * time.Millisecond

type entry struct {
	text      string
	createdAt time.Time
	seq       uint64
}

// Store holds finalized transcripts for a short retention window. A per-write
// sequence number keeps a stale timer from deleting a newer write.
type Store struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]entry
	nextSeq uint64
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:     ttl,
		entries: make(map[string]entry),
	}
}

func (s *Store) Put(id, text string) {
	s.mu.Lock()
	s.nextSeq++
	seq := s.nextSeq
	s.entries[id] = entry{text: text, createdAt: time.Now(), seq: seq}
	s.mu.Unlock()

	time.AfterFunc(s.ttl, func() {
		s.expire(id, seq)
	})
}

func (s *Store) Get(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return "", false
	}
	if !time.Now().Before(e.createdAt.Add(s.ttl)) {
		return "", false
	}
	return e.text, true
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) expire(id string, seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.seq != seq {
		return
	}
	delete(s.entries, id)
	slog.Debug("transcript expired", "session_id", id)
}
