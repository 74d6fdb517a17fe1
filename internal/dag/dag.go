package dag

import (
	"fmt"
	"strings"

	"github.com/specialistvlad/nodegraph/internal/node"
)

// adjacency builds an ordered successor list for every node. Ids that only
// appear in edges are appended after the declared nodes so that every
// vertex is visited.
func adjacency(nodes []string, edges []node.Edge) ([]string, map[string][]string) {
	order := make([]string, 0, len(nodes))
	succ := make(map[string][]string, len(nodes))
	seen := make(map[string]bool, len(nodes))

	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}
	for _, id := range nodes {
		add(id)
	}
	for _, e := range edges {
		add(e.Source)
		add(e.Target)
		succ[e.Source] = append(succ[e.Source], e.Target)
	}
	return order, succ
}

// FindCycle returns a cycle witness such as [a b a] if the graph formed by
// nodes and edges contains a cycle, or nil if it is acyclic. Traversal order
// follows the order of nodes and edges, so the witness is deterministic.
func FindCycle(nodes []string, edges []node.Edge) []string {
	order, succ := adjacency(nodes, edges)

	// Classic depth-first search with two sets of nodes:
	// permanent: nodes that have been fully visited and are not part of a cycle.
	// temporary: nodes currently on the recursion stack.
	permanent := make(map[string]bool, len(order))
	temporary := make(map[string]bool)
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		if permanent[id] {
			return nil
		}
		if temporary[id] {
			// Hit a node already on the stack: slice out the loop.
			for i, s := range stack {
				if s == id {
					cycle := append([]string{}, stack[i:]...)
					return append(cycle, id)
				}
			}
			return []string{id, id}
		}

		temporary[id] = true
		stack = append(stack, id)

		for _, next := range succ[id] {
			if cycle := visit(next); cycle != nil {
				return cycle
			}
		}

		stack = stack[:len(stack)-1]
		delete(temporary, id)
		permanent[id] = true
		return nil
	}

	// Visit every node to cover disconnected components.
	for _, id := range order {
		if cycle := visit(id); cycle != nil {
			return cycle
		}
	}
	return nil
}

// HasCycle reports whether the graph formed by nodes and edges is cyclic.
func HasCycle(nodes []string, edges []node.Edge) bool {
	return FindCycle(nodes, edges) != nil
}

// FormatCycle renders a witness as `a -> b -> a`.
func FormatCycle(cycle []string) string {
	return strings.Join(cycle, " -> ")
}

// TopologicalOrder returns the nodes so that every source precedes its
// targets. Roots keep their declaration order and successors are released
// in edge order.
func TopologicalOrder(nodes []string, edges []node.Edge) ([]string, error) {
	if cycle := FindCycle(nodes, edges); cycle != nil {
		return nil, fmt.Errorf("cycle detected: %s", FormatCycle(cycle))
	}
	order, succ := adjacency(nodes, edges)

	inDegree := make(map[string]int, len(order))
	for _, targets := range succ {
		for _, t := range targets {
			inDegree[t]++
		}
	}

	var queue, out []string
	for _, id := range order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		out = append(out, id)
		for _, t := range succ[id] {
			inDegree[t]--
			if inDegree[t] == 0 {
				queue = append(queue, t)
			}
		}
	}
	return out, nil
}
