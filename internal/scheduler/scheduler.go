package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/specialistvlad/nodegraph/internal/ctxlog"
	"github.com/specialistvlad/nodegraph/internal/executor"
	"github.com/specialistvlad/nodegraph/internal/node"
	"github.com/specialistvlad/nodegraph/internal/resultstore"
)

// Graph is the read side of the graph store the scheduler relies on.
type Graph interface {
	Node(id string) (*node.Node, bool)
	Successors(id string) []string
	Predecessors(id string) []string
	Descendants(id string) []string
	Roots() []string
}

// Scheduler orchestrates node execution over a graph.
type Scheduler struct {
	graph    Graph
	results  resultstore.Store
	resolver node.Resolver
	exec     executor.Executor

	now              Clock
	workers          int
	propagateBlocked bool
	observers        []Observer
}

// New creates a scheduler. The executor is the only component that performs I/O.
func New(graph Graph, results resultstore.Store, resolver node.Resolver, exec executor.Executor, opts ...Option) *Scheduler {
	s := &Scheduler{
		graph:    graph,
		results:  results,
		resolver: resolver,
		exec:     exec,
		now:      time.Now,
		workers:  1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Parallel reports whether the worker-pool mode is enabled.
func (s *Scheduler) Parallel() bool {
	return s.workers > 1
}

// RunNode executes the node and, on success, every downstream node that
// becomes ready. Node failures are recorded in the result store, not
// returned; the error is non-nil only if ctx was cancelled.
func (s *Scheduler) RunNode(ctx context.Context, id string) error {
	ctx, _ = ensureRunID(ctx)
	if s.Parallel() {
		return s.runParallel(ctx, []string{id})
	}
	return s.runSequential(ctx, id)
}

// StartExecution clears every stored result and runs the pipeline from root.
func (s *Scheduler) StartExecution(ctx context.Context, rootID string) error {
	ctx, runID := ensureRunID(ctx)
	logger := ctxlog.FromContext(ctx).With("runID", runID)

	s.results.ClearAll()
	logger.Info("🚀 Starting execution...", "root", rootID, "workers", s.workers)
	err := s.RunNode(ctx, rootID)
	logger.Info("🏁 Execution finished.", "root", rootID)
	return err
}

// StartAll clears every stored result and runs the pipeline from every
// node without predecessors.
func (s *Scheduler) StartAll(ctx context.Context) error {
	ctx, runID := ensureRunID(ctx)
	logger := ctxlog.FromContext(ctx).With("runID", runID)

	s.results.ClearAll()
	roots := s.graph.Roots()
	logger.Info("🚀 Starting execution...", "roots", roots, "workers", s.workers)
	defer logger.Info("🏁 Execution finished.")

	if s.Parallel() {
		return s.runParallel(ctx, roots)
	}
	for _, id := range roots {
		if err := s.runSequential(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// ReadyNodeIDs returns the direct successors of id whose every predecessor
// currently has a successful result, in adjacency order.
func (s *Scheduler) ReadyNodeIDs(id string) []string {
	ready := []string{}
	for _, succ := range s.graph.Successors(id) {
		if s.predecessorsSucceeded(succ) {
			ready = append(ready, succ)
		}
	}
	return ready
}

func (s *Scheduler) predecessorsSucceeded(id string) bool {
	for _, pred := range s.graph.Predecessors(id) {
		if resultstore.Status(s.results, pred) != node.StatusSuccess {
			return false
		}
	}
	return true
}

func (s *Scheduler) runSequential(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res := s.execute(ctx, id)
	if !res.Succeeded() {
		if res.Status == node.StatusError && s.propagateBlocked {
			s.block(ctx, id)
		}
		return nil
	}

	// Readiness is computed once, before any successor runs.
	for _, next := range s.ReadyNodeIDs(id) {
		if err := s.runSequential(ctx, next); err != nil {
			return err
		}
	}
	return nil
}

// execute validates, resolves and runs one node and records the outcome.
// An invalid configuration is recorded as an error without calling the
// executor.
func (s *Scheduler) execute(ctx context.Context, id string) node.Result {
	runID, _ := RunIDFromContext(ctx)
	ctx = ctxlog.With(WithNodeID(ctx, id), "nodeID", id, "runID", runID)
	logger := ctxlog.FromContext(ctx)

	n, ok := s.graph.Node(id)
	if !ok {
		logger.Error("Node not found.")
		res := node.Result{NodeID: id, Status: node.StatusError, Error: "node not found", StartedAt: s.now()}
		s.record(ctx, nil, res)
		return res
	}

	if err := n.Validate(); err != nil {
		logger.Error("Refusing to run node with invalid configuration.", "error", err)
		res := node.Result{NodeID: id, Status: node.StatusError, Error: err.Error(), StartedAt: s.now()}
		s.record(ctx, n, res)
		return res
	}

	started := s.now()
	s.record(ctx, n, node.Result{NodeID: id, Status: node.StatusRunning, StartedAt: started})
	logger.Debug("Node execution started.", "kind", n.Kind)

	resolved := n.Resolved(ctx, s.resolver)
	value, err := s.call(ctx, resolved)
	elapsed := s.now().Sub(started)

	if err != nil {
		logger.Error("❌ Node failed.", "error", err, "duration", elapsed)
		res := node.Result{NodeID: id, Status: node.StatusError, Error: err.Error(), StartedAt: started, Duration: elapsed}
		s.record(ctx, n, res)
		return res
	}

	logger.Info("✅ Node succeeded.", "duration", elapsed)
	res := node.Result{NodeID: id, Status: node.StatusSuccess, Value: value, StartedAt: started, Duration: elapsed}
	s.record(ctx, n, res)
	return res
}

// call invokes the executor and turns a panic into an error outcome.
func (s *Scheduler) call(ctx context.Context, n *node.Node) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panicked: %v", r)
		}
	}()
	return s.exec.Execute(ctx, n.Kind, n.Config)
}

func (s *Scheduler) record(ctx context.Context, n *node.Node, res node.Result) {
	s.results.Set(res)
	s.publish(ctx, n, res)
}

func (s *Scheduler) publish(ctx context.Context, n *node.Node, res node.Result) {
	if len(s.observers) == 0 {
		return
	}
	runID, _ := RunIDFromContext(ctx)
	ev := Event{RunID: runID, Node: n, Result: res}
	for _, o := range s.observers {
		o.OnResult(ctx, ev)
	}
}

// block marks every descendant of failedID as blocked. Nodes that are
// currently running are left alone.
func (s *Scheduler) block(ctx context.Context, failedID string) {
	logger := ctxlog.FromContext(ctx)
	msg := fmt.Sprintf("upstream node %q failed", failedID)

	for _, id := range s.graph.Descendants(failedID) {
		res, changed := s.results.Update(id, func(cur node.Result, ok bool) (node.Result, bool) {
			if ok && cur.Status == node.StatusRunning {
				return cur, false
			}
			return node.Result{Status: node.StatusBlocked, Error: msg, StartedAt: s.now()}, true
		})
		if !changed || res.Status != node.StatusBlocked {
			continue
		}
		logger.Warn("Node blocked by failed dependency.", "blockedNodeID", id, "failedNodeID", failedID)
		n, _ := s.graph.Node(id)
		s.publish(ctx, n, res)
	}
}
