package engine

import (
	"github.com/specialistvlad/nodegraph/internal/resolver"
	"github.com/specialistvlad/nodegraph/internal/resultstore"
	"github.com/specialistvlad/nodegraph/internal/scheduler"
)

type config struct {
	results   resultstore.Store
	scheduler []scheduler.Option
	refs      resolver.ListOptions
}

// Option configures an Engine.
type Option func(*config)

// WithResultStore replaces the default in-memory result store.
func WithResultStore(s resultstore.Store) Option {
	return func(c *config) { c.results = s }
}

// WithWorkers sets the number of concurrent executor calls. One keeps the
// sequential depth-first order.
func WithWorkers(n int) Option {
	return func(c *config) { c.scheduler = append(c.scheduler, scheduler.WithWorkers(n)) }
}

// WithObserver registers observers for every result change.
func WithObserver(obs ...scheduler.Observer) Option {
	return func(c *config) { c.scheduler = append(c.scheduler, scheduler.WithObserver(obs...)) }
}

// WithClock injects the time source used for result timestamps.
func WithClock(clock scheduler.Clock) Option {
	return func(c *config) { c.scheduler = append(c.scheduler, scheduler.WithClock(clock)) }
}

// WithBlockedPropagation marks descendants of a failed node as blocked.
func WithBlockedPropagation(enabled bool) Option {
	return func(c *config) { c.scheduler = append(c.scheduler, scheduler.WithBlockedPropagation(enabled)) }
}

// WithReferenceOptions sets the defaults for ListAvailableReferences.
func WithReferenceOptions(opts resolver.ListOptions) Option {
	return func(c *config) { c.refs = opts }
}
