// Package inmemorystore provides an ephemeral, thread-safe, in-memory
// implementation of the resultstore.Store interface.
//
// # Concurrency Model
//
// Results are kept in a sync.Map keyed by node id. Each node's result is
// independent of the others, so writers for different nodes never contend
// on a global lock. Update is implemented as a compare-and-swap loop, which
// gives per-key atomic read-modify-write without blocking other keys.
package inmemorystore

import (
	"sync"

	"github.com/specialistvlad/nodegraph/internal/node"
	"github.com/specialistvlad/nodegraph/internal/resultstore"
)

// Store is an in-memory implementation of resultstore.Store.
type Store struct {
	results sync.Map // Key: node ID string, Value: *node.Result
}

// New creates a new, empty in-memory result store.
func New() *Store {
	return &Store{}
}

var _ resultstore.Store = (*Store)(nil)

// Get retrieves the stored result for a node.
func (s *Store) Get(id string) (node.Result, bool) {
	v, ok := s.results.Load(id)
	if !ok {
		return node.Result{}, false
	}
	return *v.(*node.Result), true
}

// Set records a result, overwriting the previous one.
func (s *Store) Set(r node.Result) {
	s.results.Store(r.NodeID, &r)
}

// Remove deletes the result of a node.
func (s *Store) Remove(id string) {
	s.results.Delete(id)
}

// ClearAll deletes every result.
func (s *Store) ClearAll() {
	s.results.Clear()
}

// Update atomically replaces the result for id with the one returned by fn.
func (s *Store) Update(id string, fn resultstore.UpdateFunc) (node.Result, bool) {
	for {
		old, loaded := s.results.Load(id)
		var current node.Result
		if loaded {
			current = *old.(*node.Result)
		}

		next, keep := fn(current, loaded)
		if !keep {
			return current, loaded
		}
		next.NodeID = id

		if loaded {
			// Pointers are swapped, so results holding maps stay comparable.
			if s.results.CompareAndSwap(id, old, &next) {
				return next, true
			}
			continue
		}
		if _, raced := s.results.LoadOrStore(id, &next); !raced {
			return next, true
		}
	}
}

// Snapshot copies all results into a plain map.
func (s *Store) Snapshot() map[string]node.Result {
	out := make(map[string]node.Result)
	s.results.Range(func(k, v any) bool {
		out[k.(string)] = *v.(*node.Result)
		return true
	})
	return out
}
