// Package executor defines the narrow contract between the scheduler and
// whatever performs a node's actual work (an HTTP call, a SQL query, a
// script run), plus a registry that dispatches on node kind.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/specialistvlad/nodegraph/internal/node"
)

// ErrNoHandler is returned when no handler is registered for a node kind.
var ErrNoHandler = errors.New("no executor registered for node kind")

// Executor performs the work of a node. It receives the fully resolved
// configuration and settles with either a value or an error.
type Executor interface {
	Execute(ctx context.Context, kind node.Kind, cfg node.Config) (any, error)
}

// Func adapts a plain function to the Executor interface.
type Func func(ctx context.Context, kind node.Kind, cfg node.Config) (any, error)

// Execute calls f.
func (f Func) Execute(ctx context.Context, kind node.Kind, cfg node.Config) (any, error) {
	return f(ctx, kind, cfg)
}

// Handler runs one node kind.
type Handler func(ctx context.Context, cfg node.Config) (any, error)

// Module is implemented by packages that contribute handlers.
type Module interface {
	Register(r *Registry)
}

// Registry dispatches Execute calls to the handler registered for the kind.
type Registry struct {
	mu       sync.RWMutex
	handlers map[node.Kind]Handler
}

// NewRegistry creates a registry and registers every module into it.
func NewRegistry(modules ...Module) *Registry {
	r := &Registry{handlers: make(map[node.Kind]Handler)}
	for _, m := range modules {
		m.Register(r)
	}
	return r
}

var _ Executor = (*Registry)(nil)

// Register binds a handler to a kind. Registering the same kind twice is a
// programmer error and panics.
func (r *Registry) Register(kind node.Kind, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[kind]; exists {
		panic(fmt.Sprintf("executor for node kind '%s' already registered", kind))
	}
	slog.Debug("Registering executor.", "kind", kind)
	r.handlers[kind] = h
}

// Execute runs the handler registered for kind.
func (r *Registry) Execute(ctx context.Context, kind node.Kind, cfg node.Config) (any, error) {
	r.mu.RLock()
	h, ok := r.handlers[kind]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoHandler, kind)
	}
	return h(ctx, cfg)
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []node.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]node.Kind, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// ConfigAs asserts cfg to the concrete configuration type a handler expects.
func ConfigAs[T node.Config](cfg node.Config) (T, error) {
	typed, ok := cfg.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("unexpected configuration type %T, want %T", cfg, zero)
	}
	return typed, nil
}
