// Package resultstore defines the interface for storing the latest execution
// outcome of every node.
//
// The result store is the single source of truth for execution state. It
// isolates mutable state (status, value, error) from the graph structure
// held by graphstore, so the scheduler can write results while the resolver
// and the editor read them.
//
// # Lifecycle
//
//   - A node without a stored result is pending.
//   - The scheduler stores a running result before the executor is called and
//     overwrites it with success or error once the executor settles.
//   - Results persist until the node is removed or ClearAll is called at the
//     start of a full run.
//
// No history is kept: Set overwrites unconditionally (last write wins).
package resultstore

import "github.com/specialistvlad/nodegraph/internal/node"

// UpdateFunc receives the current result (ok is false when none is stored)
// and returns the result to store. Returning keep=false leaves the store
// unchanged.
type UpdateFunc func(current node.Result, ok bool) (next node.Result, keep bool)

// Store manages the per-node execution results.
//
// Implementations MUST be safe for concurrent use: parallel workers write
// results for disjoint nodes while readers resolve templates.
type Store interface {
	// Get returns the stored result for id.
	Get(id string) (node.Result, bool)

	// Set stores r under r.NodeID, replacing any previous result.
	Set(r node.Result)

	// Remove deletes the result for id. It is a no-op if none is stored.
	Remove(id string)

	// ClearAll deletes every stored result.
	ClearAll()

	// Update performs an atomic read-modify-write on a single key. fn may be
	// called more than once under contention and must be free of side effects.
	Update(id string, fn UpdateFunc) (node.Result, bool)

	// Snapshot returns a copy of all stored results keyed by node id.
	Snapshot() map[string]node.Result
}

// Status returns the status stored for id, StatusPending when absent.
func Status(s Store, id string) node.Status {
	r, ok := s.Get(id)
	if !ok {
		return node.StatusPending
	}
	return r.Status
}
