package session

import (
	"hash/fnv"
	"sync"
	"time"
)

const storeShardCount = 16

// Store keeps live sessions sharded by id so unrelated sessions never contend
// on the same lock.
type Store struct {
	shards [storeShardCount]storeShard
}

type storeShard struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewStore() *Store {
	store := &Store{}
	for i := range store.shards {
		store.shards[i].sessions = make(map[string]*Session)
	}
	return store
}

func (s *Store) shard(id string) *storeShard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &s.shards[h.Sum32()%storeShardCount]
}

// Upsert runs fn on the session for id under its shard lock, creating the
// session when absent.
func (s *Store) Upsert(id string, sampleRate int, now time.Time, fn func(*Session)) (created bool) {
	sh := s.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sess, ok := sh.sessions[id]
	if !ok {
		sess = &Session{
			ID:             id,
			SampleRate:     sampleRate,
			LastActivityAt: now,
			CreatedAt:      now,
		}
		sh.sessions[id] = sess
		created = true
	}
	fn(sess)
	return created
}

func (s *Store) Remove(id string) (*Session, bool) {
	sh := s.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sess, ok := sh.sessions[id]
	if !ok {
		return nil, false
	}
	delete(sh.sessions, id)
	return sess, true
}

// RemoveIfSilent removes id only when it is still past the silence timeout at
// now; a chunk arriving between a sweep and the removal keeps its session.
func (s *Store) RemoveIfSilent(id string, now time.Time, timeout time.Duration) (*Session, bool) {
	sh := s.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sess, ok := sh.sessions[id]
	if !ok || !sess.silentFor(now, timeout) {
		return nil, false
	}
	delete(sh.sessions, id)
	return sess, true
}

func (s *Store) SilentIDs(now time.Time, timeout time.Duration) []string {
	var ids []string
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for id, sess := range sh.sessions {
			if sess.silentFor(now, timeout) {
				ids = append(ids, id)
			}
		}
		sh.mu.Unlock()
	}
	return ids
}

func (s *Store) IDs() []string {
	var ids []string
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for id := range sh.sessions {
			ids = append(ids, id)
		}
		sh.mu.Unlock()
	}
	return ids
}

func (s *Store) Len() int {
	total := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		total += len(sh.sessions)
		sh.mu.Unlock()
	}
	return total
}
