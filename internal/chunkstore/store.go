package chunkstore

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// slot holds the current chunk of one id. Its lock is independent of every
// other slot, so readers of one id never wait on a writer of another.
type slot struct {
	mu      sync.RWMutex
	chunk   *Chunk
	evicted bool
}

// Store maps chunk ids to their current chunk.
//
// The store lock guards only the id→slot map and is taken for writing when a
// slot is created or evicted. Installing and reading chunks happens under the
// slot's own lock.
type Store struct {
	mu    sync.RWMutex
	slots map[ID]*slot

	// nil when unbounded
	recency *lru.Cache[ID, *slot]
}

// NewStore returns a store that keeps every chunk until the process exits
func NewStore() *Store {
	return &Store{slots: make(map[ID]*slot)}
}

// NewBoundedStore returns a store holding at most capacity ids. Publishing a
// new id beyond that evicts the least recently published or looked-up id.
func NewBoundedStore(capacity int) (*Store, error) {
	if capacity <= 0 {
		return nil, errors.Errorf("store capacity must be positive, got %d", capacity)
	}
	s := NewStore()
	recency, err := lru.NewWithEvict[ID, *slot](capacity, s.evict)
	if err != nil {
		return nil, errors.Wrap(err, "create LRU")
	}
	s.recency = recency
	return s, nil
}

// Publish makes c the current chunk for id, replacing any earlier one, and
// reports whether one was replaced. Readers of id see either the previous
// chunk or c, never a mix. A nil chunk is ignored.
func (s *Store) Publish(id ID, c *Chunk) (replaced bool) {
	if c == nil {
		return false
	}
	for {
		sl := s.slotFor(id)
		sl.mu.Lock()
		if sl.evicted {
			// Lost a race with eviction; the id needs a fresh slot.
			sl.mu.Unlock()
			continue
		}
		replaced = sl.chunk != nil
		sl.chunk = c
		sl.mu.Unlock()
		return replaced
	}
}

// Lookup returns the current chunk for id
func (s *Store) Lookup(id ID) (*Chunk, bool) {
	s.mu.RLock()
	sl, ok := s.slots[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	sl.mu.RLock()
	c := sl.chunk
	sl.mu.RUnlock()
	if c == nil {
		return nil, false
	}
	if s.recency != nil {
		s.recency.Get(id)
	}
	return c, true
}

// Len returns the number of ids currently holding a slot
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots)
}

// slotFor returns the slot of id, creating it on first publish
func (s *Store) slotFor(id ID) *slot {
	s.mu.RLock()
	sl, ok := s.slots[id]
	s.mu.RUnlock()
	if ok {
		if s.recency != nil {
			s.recency.Get(id)
		}
		return sl
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sl, ok := s.slots[id]; ok {
		return sl
	}
	sl = &slot{}
	s.slots[id] = sl
	if s.recency != nil {
		// May call evict synchronously; the store lock is already held.
		s.recency.Add(id, sl)
	}
	return sl
}

// evict runs under the store write lock from within slotFor
func (s *Store) evict(id ID, sl *slot) {
	if s.slots[id] == sl {
		delete(s.slots, id)
	}
	sl.mu.Lock()
	sl.evicted = true
	sl.chunk = nil
	sl.mu.Unlock()
	log.WithField("chunk_id", id).Debug("Evicted chunk")
}
