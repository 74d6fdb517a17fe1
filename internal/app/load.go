package app

import (
	"context"
	"fmt"

	"github.com/specialistvlad/nodegraph/internal/ctxlog"
	"github.com/specialistvlad/nodegraph/internal/project"
)

// Load reads project files into the engine. Missing dependency declarations
// are logged as warnings.
func (a *App) Load(ctx context.Context, paths ...string) (*project.Project, error) {
	ctx = a.withLogger(ctx)
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading project...", "paths", paths)

	p, err := project.Load(ctx, paths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	if err := p.Apply(ctx, a.engine); err != nil {
		return nil, err
	}
	for _, w := range p.Warnings() {
		logger.Warn(w)
	}
	for _, n := range p.Nodes {
		if err := n.Validate(); err != nil {
			logger.Warn("Node configuration is invalid.", "nodeID", n.ID, "error", err)
		}
	}

	logger.Info("Project loaded successfully.", "files", len(p.Files), "nodes", len(p.Nodes), "edges", len(p.Edges))
	return p, nil
}

func (a *App) withLogger(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}
