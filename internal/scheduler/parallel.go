package scheduler

import (
	"context"
	"slices"

	"github.com/specialistvlad/nodegraph/internal/ctxlog"
	"github.com/specialistvlad/nodegraph/internal/node"
	"github.com/specialistvlad/nodegraph/internal/resultstore"
	"golang.org/x/sync/errgroup"
)

// completion is sent by a worker when a node settles.
type completion struct {
	id  string
	res node.Result
}

// run tracks the nodes that belong to one parallel run.
type run struct {
	scope   []string        // roots followed by their descendants, in discovery order
	inScope map[string]bool // membership of scope
	claimed map[string]bool // dispatched at most once per run
	settled map[string]bool // finished successfully during this run
}

func (s *Scheduler) newRun(roots []string) *run {
	r := &run{
		inScope: make(map[string]bool),
		claimed: make(map[string]bool),
		settled: make(map[string]bool),
	}
	add := func(id string) {
		if !r.inScope[id] {
			r.inScope[id] = true
			r.scope = append(r.scope, id)
		}
	}
	for _, id := range roots {
		add(id)
	}
	for _, id := range roots {
		for _, d := range s.graph.Descendants(id) {
			add(d)
		}
	}
	return r
}

// runParallel executes roots and everything downstream of them with up to
// s.workers executor calls in flight.
func (s *Scheduler) runParallel(ctx context.Context, roots []string) error {
	logger := ctxlog.FromContext(ctx)
	r := s.newRun(roots)

	var queue []string
	for _, id := range roots {
		if !r.claimed[id] {
			r.claimed[id] = true
			queue = append(queue, id)
		}
	}

	done := make(chan completion)
	g := new(errgroup.Group)
	g.SetLimit(s.workers)
	inFlight := 0 // started calls whose completion has not been received

	for len(queue) > 0 || inFlight > 0 {
		for ctx.Err() == nil && len(queue) > 0 {
			id := queue[0]
			work := func() error {
				done <- completion{id: id, res: s.execute(ctx, id)}
				return nil
			}
			if inFlight == 0 {
				// Nothing is left to receive; g.Go only waits for
				// finished goroutines to return.
				g.Go(work)
			} else if !g.TryGo(work) {
				break
			}
			queue = queue[1:]
			inFlight++
		}
		if inFlight == 0 {
			// Cancelled with work still queued.
			logger.Warn("Execution cancelled; queued nodes were not started.", "queued", queue)
			break
		}

		c := <-done
		inFlight--

		if !c.res.Succeeded() {
			if c.res.Status == node.StatusError && s.propagateBlocked {
				s.block(ctx, c.id)
			}
			continue
		}
		r.settled[c.id] = true
		queue = append(queue, s.sweep(r)...)
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// sweep returns every unclaimed node of the run whose predecessors have all
// succeeded. Predecessors inside the run must have succeeded during this
// run; results left over from earlier runs only count for nodes outside it.
func (s *Scheduler) sweep(r *run) []string {
	var ready []string
	for _, id := range r.scope {
		if r.claimed[id] {
			continue
		}
		if s.readyInRun(r, id) {
			r.claimed[id] = true
			ready = append(ready, id)
		}
	}
	return ready
}

func (s *Scheduler) readyInRun(r *run, id string) bool {
	preds := s.graph.Predecessors(id)
	if len(preds) == 0 {
		return false
	}
	return !slices.ContainsFunc(preds, func(pred string) bool {
		if r.inScope[pred] {
			return !r.settled[pred]
		}
		return resultstore.Status(s.results, pred) != node.StatusSuccess
	})
}
