package session

import (
	"sort"
	"sync"
	"time"
)

// DefaultShards is used when NewStore gets a non-positive count.
const DefaultShards = 32

type shard struct {
	mu sync.Mutex
	m  map[int64]State
}

// Store is a sharded chat-id -> State map. Every operation on one chat id is
// atomic with respect to all other operations on the same id.
type Store struct {
	shards []*shard
	mask   uint64
	now    func() time.Time
}

// NewStore creates a store with the shard count rounded up to a power of two.
func NewStore(shards int) *Store {
	if shards <= 0 {
		shards = DefaultShards
	}
	n := 1
	for n < shards {
		n <<= 1
	}
	s := &Store{
		shards: make([]*shard, n),
		mask:   uint64(n - 1),
		now:    time.Now,
	}
	for i := range s.shards {
		s.shards[i] = &shard{m: make(map[int64]State)}
	}
	return s
}

func (s *Store) shardFor(id int64) *shard {
	// Fibonacci hashing spreads sequential ids across shards.
	h := uint64(id) * 0x9E3779B97F4A7C15
	return s.shards[(h>>32)&s.mask]
}

// Get returns a copy of the chat state.
func (s *Store) Get(id int64) (State, bool) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	st, ok := sh.m[id]
	if !ok {
		return State{}, false
	}
	return st.clone(), true
}

// Upsert runs fn on a copy of the current state (idle default when absent)
// while holding the chat's lock, then stores the result. Idle results are
// removed from the map. The returned value is a copy of what was stored.
//
// fn must not call back into the store for the same chat.
func (s *Store) Upsert(id int64, fn func(st *State)) State {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	prev, existed := sh.m[id]
	next := prev.clone()
	fn(&next)

	now := s.now()
	next.normalize(now)
	if next.Idle() {
		delete(sh.m, id)
		return State{}
	}
	if !existed || !sameState(prev, next) {
		next.UpdatedAt = now
	}
	sh.m[id] = next
	return next.clone()
}

// Remove drops the chat state. Missing ids are ignored.
func (s *Store) Remove(id int64) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	delete(sh.m, id)
	sh.mu.Unlock()
}

// Len returns the number of non-idle sessions.
func (s *Store) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		total += len(sh.m)
		sh.mu.Unlock()
	}
	return total
}

// Entry is one chat in a snapshot.
type Entry struct {
	ChatID int64
	State  State
}

// Snapshot returns copies of the sessions accepted by keep, oldest update first.
// The result is not a consistent cut across shards.
func (s *Store) Snapshot(keep func(State) bool) []Entry {
	var out []Entry
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, st := range sh.m {
			if keep == nil || keep(st) {
				out = append(out, Entry{ChatID: id, State: st.clone()})
			}
		}
		sh.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].State.UpdatedAt.Equal(out[j].State.UpdatedAt) {
			return out[i].ChatID < out[j].ChatID
		}
		return out[i].State.UpdatedAt.Before(out[j].State.UpdatedAt)
	})
	return out
}

func sameState(a, b State) bool {
	if a.Mode != b.Mode || a.Name != b.Name {
		return false
	}
	if a.Order == nil || b.Order == nil {
		return a.Order == b.Order
	}
	return *a.Order == *b.Order
}
