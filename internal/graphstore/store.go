// Package graphstore is the authoritative holder of nodes and edges. It
// exposes a consistent, always-acyclic adjacency view of the graph.
//
// The adjacency map is derived state: it is rebuilt from the node list and
// the edge list after every structural change and is never patched in place.
// Successor order follows edge insertion order, which makes execution order
// deterministic for a given graph.
package graphstore

import (
	"fmt"
	"slices"
	"sync"

	"github.com/specialistvlad/nodegraph/internal/dag"
	"github.com/specialistvlad/nodegraph/internal/node"
)

// Store holds nodes and edges and guards them with a read/write mutex.
type Store struct {
	mu        sync.RWMutex
	order     []string // node ids in insertion order
	nodes     map[string]*node.Node
	edges     []node.Edge
	adjacency map[string][]string
}

// New creates a new, empty graph store.
func New() *Store {
	return &Store{
		nodes:     make(map[string]*node.Node),
		adjacency: make(map[string][]string),
	}
}

// AddNode appends a node. Duplicate ids are rejected rather than overwritten.
func (s *Store) AddNode(n *node.Node) error {
	if n == nil {
		return fmt.Errorf("node cannot be nil")
	}
	if err := node.ValidateID(n.ID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.nodes[n.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateNode, n.ID)
	}
	cp := *n
	if cp.Kind == "" && cp.Config != nil {
		cp.Kind = cp.Config.Kind()
	}
	s.nodes[n.ID] = &cp
	s.order = append(s.order, n.ID)
	s.rebuild()
	return nil
}

// UpdateNode replaces the name, kind and configuration of an existing node.
// Edges are left untouched.
func (s *Store) UpdateNode(n *node.Node) error {
	if n == nil {
		return fmt.Errorf("node cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.nodes[n.ID]; !exists {
		return fmt.Errorf("%w: %q", ErrUnknownNode, n.ID)
	}
	cp := *n
	if cp.Kind == "" && cp.Config != nil {
		cp.Kind = cp.Config.Kind()
	}
	s.nodes[n.ID] = &cp
	return nil
}

// RemoveNode removes the node and every edge touching it. It is a no-op if
// the id is unknown.
func (s *Store) RemoveNode(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.nodes[id]; !exists {
		return
	}
	delete(s.nodes, id)
	s.order = slices.DeleteFunc(s.order, func(x string) bool { return x == id })
	s.edges = slices.DeleteFunc(s.edges, func(e node.Edge) bool {
		return e.Source == id || e.Target == id
	})
	s.rebuild()
}

// SetEdges replaces the whole edge set. The candidate set is validated
// before anything is committed: an edge naming an unknown node yields a
// *DanglingEdgeError, a cycle yields a *CyclicGraphError, and in both cases
// the previous edges stay in place.
func (s *Store) SetEdges(edges []node.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidate := make([]node.Edge, 0, len(edges))
	seen := make(map[node.Edge]bool, len(edges))
	for _, e := range edges {
		if _, ok := s.nodes[e.Source]; !ok {
			return &DanglingEdgeError{Edge: e, Missing: e.Source}
		}
		if _, ok := s.nodes[e.Target]; !ok {
			return &DanglingEdgeError{Edge: e, Missing: e.Target}
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		candidate = append(candidate, e)
	}

	if cycle := dag.FindCycle(s.order, candidate); cycle != nil {
		return &CyclicGraphError{Cycle: cycle}
	}

	s.edges = candidate
	s.rebuild()
	return nil
}

// rebuild derives the adjacency map from nodes and edges. Callers must hold the write lock.
func (s *Store) rebuild() {
	adj := make(map[string][]string, len(s.order))
	for _, id := range s.order {
		adj[id] = []string{}
	}
	for _, e := range s.edges {
		if !slices.Contains(adj[e.Source], e.Target) {
			adj[e.Source] = append(adj[e.Source], e.Target)
		}
	}
	s.adjacency = adj
}

// Node returns a copy of the node with the given id.
func (s *Store) Node(id string) (*node.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	if !ok {
		return nil, false
	}
	cp := *n
	return &cp, true
}

// Nodes returns copies of all nodes in insertion order.
func (s *Store) Nodes() []*node.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*node.Node, 0, len(s.order))
	for _, id := range s.order {
		cp := *s.nodes[id]
		out = append(out, &cp)
	}
	return out
}

// NodeIDs returns all node ids in insertion order.
func (s *Store) NodeIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}

// Edges returns the committed edge set.
func (s *Store) Edges() []node.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.edges)
}

// Adjacency returns a snapshot of the derived adjacency map.
func (s *Store) Adjacency() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]string, len(s.adjacency))
	for id, succ := range s.adjacency {
		out[id] = slices.Clone(succ)
	}
	return out
}

// Successors returns the direct successors of id in edge order. Unknown ids
// yield an empty slice.
func (s *Store) Successors(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	succ, ok := s.adjacency[id]
	if !ok {
		return []string{}
	}
	return slices.Clone(succ)
}

// Predecessors returns the sources of every edge whose target is id, in edge order.
func (s *Store) Predecessors(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.predecessors(id)
}

func (s *Store) predecessors(id string) []string {
	out := []string{}
	for _, e := range s.edges {
		if e.Target == id && !slices.Contains(out, e.Source) {
			out = append(out, e.Source)
		}
	}
	return out
}

// Roots returns the nodes without predecessors, in insertion order.
func (s *Store) Roots() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hasPred := make(map[string]bool, len(s.edges))
	for _, e := range s.edges {
		hasPred[e.Target] = true
	}
	var out []string
	for _, id := range s.order {
		if !hasPred[id] {
			out = append(out, id)
		}
	}
	return out
}

// Descendants returns every node reachable from id, excluding id itself, in
// breadth-first order.
func (s *Store) Descendants(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	seen := map[string]bool{id: true}
	queue := slices.Clone(s.adjacency[id])
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if seen[next] {
			continue
		}
		seen[next] = true
		out = append(out, next)
		queue = append(queue, s.adjacency[next]...)
	}
	return out
}

// TopologicalOrder returns all node ids so that sources precede targets.
func (s *Store) TopologicalOrder() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return dag.TopologicalOrder(s.order, s.edges)
}
