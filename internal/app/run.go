package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/specialistvlad/nodegraph/internal/ctxlog"
	"github.com/specialistvlad/nodegraph/internal/node"
)

// ErrNodesFailed is returned by Run when at least one node ended in error.
var ErrNodesFailed = errors.New("one or more nodes failed")

// RunOptions selects what Run executes.
type RunOptions struct {
	// Paths are project files or directories.
	Paths []string
	// Root runs only this node and its downstream graph. Empty runs every root.
	Root string
}

// Run loads the project and executes it once.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	ctx = a.withLogger(ctx)
	logger := ctxlog.FromContext(ctx)
	logger.Debug("App.Run method started.")

	a.healthCheckServer()
	a.connectEditor(ctx)

	p, err := a.Load(ctx, opts.Paths...)
	if err != nil {
		return err
	}
	if len(p.Nodes) == 0 {
		logger.Warn("No nodes found in project, execution not required.")
		return nil
	}

	if opts.Root != "" {
		if _, ok := a.engine.Node(opts.Root); !ok {
			return fmt.Errorf("root node %q is not defined", opts.Root)
		}
		err = a.engine.StartExecution(ctx, opts.Root)
	} else {
		err = a.engine.StartAll(ctx)
	}
	if err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}

	a.logger.Debug("App.Run method finished.")
	return a.summarize(ctx)
}

// summarize logs one line per status and reports failed nodes.
func (a *App) summarize(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	results := a.engine.Results()

	counts := make(map[node.Status]int)
	var failed []string
	for id, res := range results {
		counts[res.Status]++
		if res.Status == node.StatusError {
			failed = append(failed, id)
		}
	}
	pending := len(a.engine.Nodes()) - len(results)
	logger.Info("Run summary.",
		"success", counts[node.StatusSuccess],
		"error", counts[node.StatusError],
		"blocked", counts[node.StatusBlocked],
		"not_run", max(pending, 0),
	)

	if len(failed) == 0 {
		return nil
	}
	slices.Sort(failed)
	return fmt.Errorf("%w: %s", ErrNodesFailed, strings.Join(failed, ", "))
}
