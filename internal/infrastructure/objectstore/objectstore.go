package objectstore

import (
	"sync"

	"go.uber.org/zap"
)

// ObjectStore is a concurrent, in-memory KV indexed by string keys.
//
// Data structures:
//   - Mutable state (keys + vals + pos + map) guarded by RWMutex
//
// Iteration is deterministic (insertion order). Overwriting an existing key
// keeps its original position, so List reflects creation order.
//
// Concurrency:
//   - Per-store write serialization via exclusive lock
//   - Concurrent reads via shared lock
//
// Typical costs:
//   - Upsert: O(1) for overwrite/append
//   - Delete: O(n) for slice compaction
//   - Reads: O(1)/O(n)
//
// Semantics:
//   - Values are stored *as provided*, without deep copying.
//   - Structs are stored by value; pointers are stored by reference.
type ObjectStore[V any] struct {
	log *zap.Logger

	mu sync.RWMutex // guards st
	st storeState[V]
}

type storeState[V any] struct {
	byKey map[string]V
	keys  []string
	vals  []V
	pos   map[string]int
}

// NewObjectStore constructs a ready-to-use ObjectStore.
func NewObjectStore[V any](log *zap.Logger) *ObjectStore[V] {
	if log == nil {
		log = zap.NewNop()
	}
	return &ObjectStore[V]{
		log: log,
		st: storeState[V]{
			byKey: make(map[string]V),
			keys:  make([]string, 0),
			vals:  make([]V, 0),
			pos:   make(map[string]int),
		},
	}
}

// Upsert inserts or overwrites value at key and reports whether key was new.
//
// Time: O(1) amortized.
//
// Strategy:
//   - Overwrite existing key -> update map and vals at position
//   - Otherwise append key/val at the tail
func (s *ObjectStore[V]) Upsert(key string, value V) (created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertLocked(key, value)
}

// Insert stores value only when key is absent. Returns false on an existing key.
func (s *ObjectStore[V]) Insert(key string, value V) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.st.pos[key]; exists {
		return false
	}
	s.upsertLocked(key, value)
	return true
}

// Update overwrites value at key only when present. Returns false on a missing key.
func (s *ObjectStore[V]) Update(key string, value V) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.st.pos[key]; !exists {
		return false
	}
	s.upsertLocked(key, value)
	return true
}

func (s *ObjectStore[V]) upsertLocked(key string, value V) bool {
	if idx, exists := s.st.pos[key]; exists {
		s.st.byKey[key] = value
		s.st.vals[idx] = value
		return false
	}

	s.st.keys = append(s.st.keys, key)
	s.st.vals = append(s.st.vals, value)
	s.st.byKey[key] = value
	s.st.pos[key] = len(s.st.keys) - 1
	return true
}

// Delete removes key if present and reports whether it was.
//
// Time: O(n) for slice compaction
//
// Approach:
//   - remove key from map and keys/vals slices
//   - update positions for shifted tail
func (s *ObjectStore[V]) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.st.pos[key]
	if !ok {
		return false
	}

	delete(s.st.byKey, key)
	delete(s.st.pos, key)

	copy(s.st.keys[idx:], s.st.keys[idx+1:])
	s.st.keys = s.st.keys[:len(s.st.keys)-1]

	var zero V
	copy(s.st.vals[idx:], s.st.vals[idx+1:])
	s.st.vals[len(s.st.vals)-1] = zero
	s.st.vals = s.st.vals[:len(s.st.vals)-1]

	for i := idx; i < len(s.st.keys); i++ {
		s.st.pos[s.st.keys[i]] = i
	}
	return true
}

// GetOne returns (value, ok).
//
// Time: O(1) hashmap lookup
func (s *ObjectStore[V]) GetOne(key string) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.st.byKey[key]
	return val, ok
}

// Has reports whether key is present.
func (s *ObjectStore[V]) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.st.byKey[key]
	return ok
}

// GetList returns (keys, values) in insertion order; copies are returned.
//
// Time: O(n) to copy
func (s *ObjectStore[V]) GetList() ([]string, []V) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.st.keys)
	keysOut := make([]string, n)
	copy(keysOut, s.st.keys)

	valsOut := make([]V, n)
	copy(valsOut, s.st.vals)

	return keysOut, valsOut
}

func (s *ObjectStore[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.st.keys)
}
