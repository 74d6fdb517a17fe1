package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/nodegraph/internal/node"
)

// Clock returns the current time. It is injected so tests can control
// timestamps and durations.
type Clock func() time.Time

// Event is published to observers after every result change.
type Event struct {
	RunID string
	// Node is nil when the requested node does not exist.
	Node   *node.Node
	Result node.Result
}

// Observer is notified synchronously after every result is recorded.
type Observer interface {
	OnResult(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) OnResult(ctx context.Context, ev Event) { f(ctx, ev) }

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now.
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.now = c
		}
	}
}

// WithWorkers enables the parallel work queue when n > 1.
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		s.workers = n
	}
}

// WithObserver registers observers for result changes.
func WithObserver(obs ...Observer) Option {
	return func(s *Scheduler) {
		s.observers = append(s.observers, obs...)
	}
}

// WithBlockedPropagation marks every descendant of a failed node as blocked
// instead of leaving it without a result.
func WithBlockedPropagation(enabled bool) Option {
	return func(s *Scheduler) {
		s.propagateBlocked = enabled
	}
}

type runIDKey struct{}

// WithRunID attaches a run id to ctx. Results recorded under ctx are
// published with that id.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run id attached to ctx, if any.
func RunIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok && id != ""
}

type nodeIDKey struct{}

// WithNodeID attaches the id of the node being executed to ctx.
func WithNodeID(ctx context.Context, nodeID string) context.Context {
	return context.WithValue(ctx, nodeIDKey{}, nodeID)
}

// NodeIDFromContext returns the id of the node whose executor call ctx
// belongs to, if any.
func NodeIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(nodeIDKey{}).(string)
	return id, ok && id != ""
}

func ensureRunID(ctx context.Context) (context.Context, string) {
	if id, ok := RunIDFromContext(ctx); ok {
		return ctx, id
	}
	id := uuid.NewString()
	return WithRunID(ctx, id), id
}
