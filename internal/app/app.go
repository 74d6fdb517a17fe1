package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/specialistvlad/nodegraph/internal/ctxlog"
	"github.com/specialistvlad/nodegraph/internal/engine"
	"github.com/specialistvlad/nodegraph/internal/executor"
	"github.com/specialistvlad/nodegraph/internal/notify"
	"github.com/specialistvlad/nodegraph/internal/resolver"
	"github.com/specialistvlad/nodegraph/internal/runlog"
	"github.com/specialistvlad/nodegraph/internal/scheduler"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	ctx    context.Context
	logger *slog.Logger
	config *Config

	registry *executor.Registry
	modules  []executor.Module
	engine   *engine.Engine
	log      *runlog.Log

	// publisher is set once the editor connection is up.
	publisher  atomic.Pointer[notify.Publisher]
	httpServer *http.Server
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger, executors and
// engine. Without modules the core executors are used.
func NewApp(outW io.Writer, cfg *Config, modules ...executor.Module) *App {
	logger := newLogger(cfg, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	log := runlog.New()
	if len(modules) == 0 {
		modules = coreModules(cfg, log)
	}
	reg := executor.NewRegistry(modules...)
	logger.Debug("All executor modules registered.", "count", len(modules), "kinds", reg.Kinds())

	a := &App{
		outW:     outW,
		ctx:      ctx,
		logger:   logger,
		config:   cfg,
		registry: reg,
		modules:  modules,
		log:      log,
	}

	a.engine = engine.New(reg,
		engine.WithWorkers(cfg.Workers),
		engine.WithBlockedPropagation(cfg.PropagateBlocked),
		engine.WithObserver(a.log, scheduler.ObserverFunc(a.notifyEditor)),
		engine.WithReferenceOptions(resolver.ListOptions{
			IncludeAllExecuted: cfg.IncludeAllExecuted,
			MaxDepth:           cfg.ReferenceDepth,
		}),
	)
	return a
}

// Engine returns the application's engine.
func (a *App) Engine() *engine.Engine {
	return a.engine
}

// Log returns the execution log.
func (a *App) Log() *runlog.Log {
	return a.log
}

// Registry returns the application's executor registry. This is primarily for testing.
func (a *App) Registry() *executor.Registry {
	return a.registry
}

func (a *App) notifyEditor(ctx context.Context, ev scheduler.Event) {
	if p := a.publisher.Load(); p != nil {
		p.OnResult(ctx, ev)
	}
}

// connectEditor starts live notifications when an editor URL is configured.
// A failed connection is logged and the run continues without it.
func (a *App) connectEditor(ctx context.Context) {
	if a.config.EditorURL == "" {
		return
	}
	p, err := notify.Dial(ctx, notify.Options{URL: a.config.EditorURL, Namespace: a.config.EditorNamespace})
	if err != nil {
		ctxlog.FromContext(ctx).Warn("Editor notifications disabled.", "error", err)
		return
	}
	a.publisher.Store(p)
}

// Close stops the health check server, disconnects the editor and releases
// executor resources.
func (a *App) Close() error {
	var errs []error
	errs = append(errs, a.closeHealthCheckServer())
	if p := a.publisher.Swap(nil); p != nil {
		errs = append(errs, p.Close())
	}
	for _, m := range a.modules {
		if c, ok := m.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
