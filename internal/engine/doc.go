// Package engine is the entry point for callers that edit and run a graph.
//
// An Engine composes the graph store, the result store, the reference
// resolver and the scheduler. Each Engine is independent; there is no
// process-wide instance. All I/O goes through the executor passed to New.
package engine
