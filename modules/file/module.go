// Package file executes script nodes. The script receives the path of a JSON
// file holding its resolved parameters as its first argument; whatever it
// prints to stdout becomes the node's value.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/specialistvlad/nodegraph/internal/ctxlog"
	"github.com/specialistvlad/nodegraph/internal/executor"
	"github.com/specialistvlad/nodegraph/internal/node"
)

// DefaultTimeout bounds a script run when neither node nor module set one.
const DefaultTimeout = 5 * time.Minute

// interpreters maps a file extension to the program that runs it.
var interpreters = map[string][]string{
	".js":  {"node"},
	".mjs": {"node"},
	".ts":  {"ts-node"},
	".py":  {"python3"},
	".sh":  {"sh"},
}

// Module registers the file node kind.
type Module struct {
	// Timeout is the default per-script bound.
	Timeout time.Duration
	// TempDir holds request files. Empty means os.TempDir().
	TempDir string
	// Streams, if set, receives the trimmed stdout and stderr of every
	// script that ran, successful or not.
	Streams func(ctx context.Context, stdout, stderr string)
}

// Output is the value of a script whose stdout is not JSON.
type Output struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr,omitempty"`
}

// Register implements executor.Module.
func (m *Module) Register(r *executor.Registry) {
	r.Register(node.KindFile, m.Execute)
}

// Command returns the program and arguments used to run path.
func Command(path, interpreter string) ([]string, error) {
	if interpreter != "" {
		return append(strings.Fields(interpreter), path), nil
	}
	prog, ok := interpreters[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("no interpreter for %q; set one explicitly", filepath.Base(path))
	}
	return append(append([]string{}, prog...), path), nil
}

// Execute runs the script of a *node.FileConfig.
func (m *Module) Execute(ctx context.Context, cfg node.Config) (any, error) {
	c, err := executor.ConfigAs[*node.FileConfig](cfg)
	if err != nil {
		return nil, err
	}
	logger := ctxlog.FromContext(ctx).With("path", c.Path)

	argv, err := Command(c.Path, c.Interpreter)
	if err != nil {
		return nil, err
	}

	request, err := m.writeRequest(c.ResolvedParams)
	if err != nil {
		return nil, err
	}
	defer os.Remove(request)

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = m.Timeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], append(argv[1:], request)...)
	cmd.Dir = c.WorkDir
	cmd.WaitDelay = time.Second
	if len(c.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range c.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Info("📜 Running script.", "command", argv[0])
	err = cmd.Run()
	if m.Streams != nil {
		m.Streams(ctx, strings.TrimSpace(stdout.String()), strings.TrimSpace(stderr.String()))
	}
	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return nil, fmt.Errorf("script timed out after %v", timeout)
		case errors.As(err, &exitErr):
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = strings.TrimSpace(stdout.String())
			}
			return nil, fmt.Errorf("script exited with code %d: %s", exitErr.ExitCode(), msg)
		default:
			return nil, fmt.Errorf("failed to run script: %w", err)
		}
	}
	if stderr.Len() > 0 {
		logger.Warn("Script wrote to stderr.", "stderr", strings.TrimSpace(stderr.String()))
	}

	out := bytes.TrimSpace(stdout.Bytes())
	var v any
	if len(out) > 0 && json.Unmarshal(out, &v) == nil {
		return v, nil
	}
	return &Output{Stdout: string(out), Stderr: strings.TrimSpace(stderr.String())}, nil
}

func (m *Module) writeRequest(params map[string]any) (string, error) {
	if params == nil {
		params = map[string]any{}
	}
	data, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to encode script parameters: %w", err)
	}
	f, err := os.CreateTemp(m.TempDir, "nodegraph-request-*.json")
	if err != nil {
		return "", fmt.Errorf("failed to create request file: %w", err)
	}
	_, werr := f.Write(data)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write request file: %w", err)
	}
	return f.Name(), nil
}
