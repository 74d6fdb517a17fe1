package graphstore

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/nodegraph/internal/dag"
	"github.com/specialistvlad/nodegraph/internal/node"
)

var (
	// ErrCyclicGraph is matched by every *CyclicGraphError.
	ErrCyclicGraph = errors.New("cyclic dependency")
	// ErrUnknownNode is returned when an operation names a node that is not in the store.
	ErrUnknownNode = errors.New("unknown node")
	// ErrDuplicateNode is returned by AddNode when the id is already taken.
	ErrDuplicateNode = errors.New("duplicate node id")
)

// CyclicGraphError rejects an edge set that would introduce a cycle.
type CyclicGraphError struct {
	// Cycle is a witness such as [a b a].
	Cycle []string
}

func (e *CyclicGraphError) Error() string {
	return fmt.Sprintf("cyclic dependency: %s", dag.FormatCycle(e.Cycle))
}

func (e *CyclicGraphError) Is(target error) bool {
	return target == ErrCyclicGraph
}

// DanglingEdgeError rejects an edge that names a node the store does not hold.
type DanglingEdgeError struct {
	Edge    node.Edge
	Missing string
}

func (e *DanglingEdgeError) Error() string {
	return fmt.Sprintf("edge %s references unknown node %q", e.Edge, e.Missing)
}

func (e *DanglingEdgeError) Unwrap() error {
	return ErrUnknownNode
}
