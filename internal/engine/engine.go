package engine

import (
	"context"

	"github.com/specialistvlad/nodegraph/internal/ctxlog"
	"github.com/specialistvlad/nodegraph/internal/executor"
	"github.com/specialistvlad/nodegraph/internal/graphstore"
	"github.com/specialistvlad/nodegraph/internal/inmemorystore"
	"github.com/specialistvlad/nodegraph/internal/node"
	"github.com/specialistvlad/nodegraph/internal/resolver"
	"github.com/specialistvlad/nodegraph/internal/resultstore"
	"github.com/specialistvlad/nodegraph/internal/scheduler"
)

// ErrInvalidConfig is returned by RunNode when the node's configuration is
// rejected before execution.
var ErrInvalidConfig = node.ErrInvalidConfig

// Engine owns one graph, its results and the scheduler that runs it.
type Engine struct {
	graph     *graphstore.Store
	results   resultstore.Store
	resolver  *resolver.Resolver
	scheduler *scheduler.Scheduler
	refOpts   resolver.ListOptions
}

// New creates an engine that performs node I/O through exec.
func New(exec executor.Executor, opts ...Option) *Engine {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.results == nil {
		cfg.results = inmemorystore.New()
	}

	g := graphstore.New()
	r := resolver.New(cfg.results, g)
	return &Engine{
		graph:     g,
		results:   cfg.results,
		resolver:  r,
		scheduler: scheduler.New(g, cfg.results, r, exec, cfg.scheduler...),
		refOpts:   cfg.refs,
	}
}

// AddNode adds n to the graph. The stored copy is independent of n.
func (e *Engine) AddNode(n *node.Node) error {
	return e.graph.AddNode(n)
}

// UpdateNode replaces the configuration of an existing node. Its stored
// result is kept.
func (e *Engine) UpdateNode(n *node.Node) error {
	return e.graph.UpdateNode(n)
}

// RemoveNode deletes the node, every edge touching it and its result.
func (e *Engine) RemoveNode(id string) {
	e.graph.RemoveNode(id)
	e.results.Remove(id)
}

// SetEdges replaces the edge set. On error the graph is unchanged.
func (e *Engine) SetEdges(edges []node.Edge) error {
	return e.graph.SetEdges(edges)
}

// Node returns a copy of a stored node.
func (e *Engine) Node(id string) (*node.Node, bool) {
	return e.graph.Node(id)
}

// Nodes returns every node in insertion order.
func (e *Engine) Nodes() []*node.Node {
	return e.graph.Nodes()
}

// Edges returns the current edge set.
func (e *Engine) Edges() []node.Edge {
	return e.graph.Edges()
}

// Adjacency returns a copy of the source to targets map.
func (e *Engine) Adjacency() map[string][]string {
	return e.graph.Adjacency()
}

// TopologicalOrder returns every node id ordered so that each node follows
// all of its dependencies.
func (e *Engine) TopologicalOrder() ([]string, error) {
	return e.graph.TopologicalOrder()
}

// RunNode validates the node and runs it plus every downstream node that
// becomes ready. The returned error covers invalid input and cancellation;
// execution failures are recorded as results.
func (e *Engine) RunNode(ctx context.Context, id string) error {
	if err := e.validate(ctx, id); err != nil {
		return err
	}
	return e.scheduler.RunNode(ctx, id)
}

// StartExecution clears all results and runs the pipeline from rootID.
func (e *Engine) StartExecution(ctx context.Context, rootID string) error {
	if err := e.validate(ctx, rootID); err != nil {
		return err
	}
	return e.scheduler.StartExecution(ctx, rootID)
}

// StartAll clears all results and runs the pipeline from every root.
func (e *Engine) StartAll(ctx context.Context) error {
	for _, id := range e.graph.Roots() {
		if err := e.validate(ctx, id); err != nil {
			return err
		}
	}
	return e.scheduler.StartAll(ctx)
}

// validate rejects a configuration that cannot run. Unknown ids pass so the
// scheduler can record the "node not found" result.
func (e *Engine) validate(ctx context.Context, id string) error {
	n, ok := e.graph.Node(id)
	if !ok {
		return nil
	}
	if err := n.Validate(); err != nil {
		ctxlog.FromContext(ctx).Warn("Refusing to run node with invalid configuration.", "nodeID", id, "error", err)
		return err
	}
	return nil
}

// ReadyNodeIDs returns the successors of id that can run now.
func (e *Engine) ReadyNodeIDs(id string) []string {
	return e.scheduler.ReadyNodeIDs(id)
}

// Result returns the latest result recorded for id.
func (e *Engine) Result(id string) (node.Result, bool) {
	return e.results.Get(id)
}

// Status returns the node's status; nodes without a result are pending.
func (e *Engine) Status(id string) node.Status {
	return resultstore.Status(e.results, id)
}

// Results returns a snapshot of every stored result.
func (e *Engine) Results() map[string]node.Result {
	return e.results.Snapshot()
}

// ClearResults drops every stored result.
func (e *Engine) ClearResults() {
	e.results.ClearAll()
}

// ListAvailableReferences lists the values nodeID can reference, using the
// options the engine was built with.
func (e *Engine) ListAvailableReferences(nodeID string) []resolver.Reference {
	return e.resolver.ListAvailableReferences(nodeID, e.refOpts)
}

// ListReferences is ListAvailableReferences with explicit options.
func (e *Engine) ListReferences(nodeID string, opts resolver.ListOptions) []resolver.Reference {
	return e.resolver.ListAvailableReferences(nodeID, opts)
}

// ResolveTemplateString renders s against the current results.
func (e *Engine) ResolveTemplateString(ctx context.Context, s string) string {
	return e.resolver.ResolveTemplateString(ctx, s)
}
