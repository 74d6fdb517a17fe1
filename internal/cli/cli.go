package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/specialistvlad/nodegraph/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(err error) error {
	return &ExitError{Code: 2, Message: err.Error()}
}

// usageArgs turns an argument validation failure into an exit code 2.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}

// options are the flags shared by every command.
type options struct {
	configPath       string
	logLevel         string
	logFormat        string
	workers          int
	healthcheckPort  int
	propagateBlocked bool
	editorURL        string
}

// Execute runs the nodegraph command line with args. Command output goes to
// outW; logs go to logW.
func Execute(ctx context.Context, args []string, outW, logW io.Writer) error {
	root := NewRootCommand(outW, logW)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// NewRootCommand builds the command tree.
func NewRootCommand(outW, logW io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "nodegraph",
		Short: "Run dependency graphs of API, database and script nodes",
		Long: `nodegraph executes a graph of nodes declared in HCL project files.
Each node runs once all of its dependencies have succeeded and can reference
their results with {{nodeId.result.path}} templates.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(outW)
	root.SetErr(outW)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML settings file.")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	flags.StringVar(&opts.logFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")
	flags.IntVarP(&opts.workers, "workers", "w", 1, "Number of nodes executed concurrently. 1 runs depth-first.")
	flags.IntVar(&opts.healthcheckPort, "healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	flags.BoolVar(&opts.propagateBlocked, "propagate-blocked", false, "Mark nodes downstream of a failure as blocked.")
	flags.StringVar(&opts.editorURL, "editor-url", "", "socket.io endpoint that receives live results.")

	root.AddCommand(
		runCmd(opts, logW),
		validateCmd(opts, logW),
		refsCmd(opts, logW),
	)
	return root
}

// resolveConfig layers defaults, the settings file, the environment and the
// flags the user set explicitly.
func resolveConfig(cmd *cobra.Command, opts *options) (*app.Config, error) {
	slog.Debug("Resolving configuration.", "config", opts.configPath)
	cfg, err := app.LoadConfig(opts.configPath)
	if err != nil {
		return nil, usageError(err)
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = opts.logFormat
	}
	if flags.Changed("workers") {
		cfg.Workers = opts.workers
	}
	if flags.Changed("healthcheck-port") {
		cfg.HealthcheckPort = opts.healthcheckPort
	}
	if flags.Changed("propagate-blocked") {
		cfg.PropagateBlocked = opts.propagateBlocked
	}
	if flags.Changed("editor-url") {
		cfg.EditorURL = opts.editorURL
	}

	validated, err := app.NewConfig(*cfg)
	if err != nil {
		return nil, usageError(err)
	}
	return validated, nil
}

// newApp builds the application and registers its cleanup on the command.
func newApp(cmd *cobra.Command, opts *options, logW io.Writer, adjust ...func(*app.Config)) (*app.App, error) {
	cfg, err := resolveConfig(cmd, opts)
	if err != nil {
		return nil, err
	}
	for _, fn := range adjust {
		fn(cfg)
	}
	return app.NewApp(logW, cfg), nil
}

func closeApp(a *app.App, err *error) {
	if cerr := a.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}

func runCmd(opts *options, logW io.Writer) *cobra.Command {
	var root string
	cmd := &cobra.Command{
		Use:   "run <path>...",
		Short: "Execute a project",
		Long:  "Execute every root node of the project, or only --root and its downstream nodes.",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := newApp(cmd, opts, logW)
			if err != nil {
				return err
			}
			defer closeApp(a, &err)

			runErr := a.Run(cmd.Context(), app.RunOptions{Paths: args, Root: root})
			if errors.Is(runErr, app.ErrNodesFailed) {
				return &ExitError{Code: 1, Message: runErr.Error()}
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&root, "root", "", "Run only this node and the nodes that depend on it.")
	return cmd
}

func validateCmd(opts *options, logW io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <path>...",
		Short: "Check a project without running it",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := newApp(cmd, opts, logW)
			if err != nil {
				return err
			}
			defer closeApp(a, &err)

			p, err := a.Load(cmd.Context(), args...)
			if err != nil {
				return &ExitError{Code: 1, Message: err.Error()}
			}

			out := cmd.OutOrStdout()
			invalid := 0
			for _, n := range p.Nodes {
				if verr := n.Validate(); verr != nil {
					invalid++
					fmt.Fprintf(out, "error: %v\n", verr)
				}
			}
			for _, w := range p.Warnings() {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			order, err := a.Engine().TopologicalOrder()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d nodes, %d edges in %d files\n", len(p.Nodes), len(p.Edges), len(p.Files))
			fmt.Fprintf(out, "execution order: %v\n", order)

			if invalid > 0 {
				return &ExitError{Code: 1, Message: fmt.Sprintf("%d invalid nodes", invalid)}
			}
			return nil
		},
	}
}

func refsCmd(opts *options, logW io.Writer) *cobra.Command {
	var (
		execute bool
		all     bool
		depth   int
	)
	cmd := &cobra.Command{
		Use:   "refs <path> <node>",
		Short: "List the values a node can reference",
		Long: `List the {{nodeId.path}} templates available to a node. Result fields are
only known after the referenced nodes ran; use --run to execute the project first.`,
		Args: usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := newApp(cmd, opts, logW, func(cfg *app.Config) {
				if all {
					cfg.IncludeAllExecuted = true
				}
				if depth > 0 {
					cfg.ReferenceDepth = depth
				}
			})
			if err != nil {
				return err
			}
			defer closeApp(a, &err)

			path, nodeID := args[0], args[1]
			if _, err := a.Load(cmd.Context(), path); err != nil {
				return &ExitError{Code: 1, Message: err.Error()}
			}
			if _, ok := a.Engine().Node(nodeID); !ok {
				return &ExitError{Code: 1, Message: fmt.Sprintf("node %q is not defined", nodeID)}
			}
			if execute {
				if err := a.Engine().StartAll(cmd.Context()); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			refs := a.Engine().ListAvailableReferences(nodeID)
			if len(refs) == 0 {
				fmt.Fprintf(out, "no references available to %s\n", nodeID)
				return nil
			}
			for _, r := range refs {
				fmt.Fprintf(out, "%s\t%s\n", r.Template(), r.DisplayLabel)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&execute, "run", false, "Execute the project before listing references.")
	cmd.Flags().BoolVar(&all, "all", false, "Fall back to every executed node when the node has no dependencies.")
	cmd.Flags().IntVar(&depth, "depth", 0, "How many object levels to list. 0 uses the configured depth.")
	return cmd
}
