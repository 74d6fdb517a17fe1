// Package scheduler runs a node's external work and propagates execution
// along the graph.
//
// # State Machine
//
// Each node moves through pending → running → success | error, driven
// through the result store. Pending is implicit: a node without a stored
// result has not run. When blocked propagation is enabled, descendants of a
// failed node are additionally marked blocked.
//
// # Execution Modes
//
//   - **Sequential** (default): RunNode awaits a node, then runs each ready
//     successor depth-first in adjacency order. The executor call is the only
//     suspension point and the execution order is deterministic.
//   - **Parallel** (WithWorkers(n), n > 1): a coordinator keeps a work queue
//     and up to n executor calls in flight. After every completion it sweeps
//     all pending nodes of the run for readiness, so join nodes are picked up
//     no matter which branch finishes last.
//
// In both modes a node never starts before every direct predecessor has
// succeeded.
package scheduler
