// Package testutil holds fakes and helpers shared by the test suites.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/specialistvlad/nodegraph/internal/ctxlog"
	"github.com/specialistvlad/nodegraph/internal/node"
)

// KindTest is the node kind served by RecordingExecutor.
const KindTest node.Kind = "test"

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// Context returns a context carrying a debug logger that writes to the
// returned buffer.
func Context(t *testing.T) (context.Context, *SafeBuffer) {
	t.Helper()
	buf := &SafeBuffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return ctxlog.WithLogger(context.Background(), logger), buf
}

// NewNode creates a node served by RecordingExecutor. Extra fields are
// templated like any other configuration.
func NewNode(id string, fields ...string) *node.Node {
	f := map[string]any{"id": id}
	for i := 0; i+1 < len(fields); i += 2 {
		f[fields[i]] = fields[i+1]
	}
	return node.New(id, "", &node.GenericConfig{KindName: KindTest, Fields: f})
}

// ExecutionRecord holds the start and end times for a single node's execution.
type ExecutionRecord struct {
	Start time.Time
	End   time.Time
}

// RecordingExecutor is a fake executor that records the order in which nodes
// were executed and the configuration they received.
type RecordingExecutor struct {
	// Fail maps node ids to the error they return.
	Fail map[string]error
	// Values maps node ids to the value they return. Default: {"id": id}.
	Values map[string]any
	// Delay is slept before every call settles.
	Delay time.Duration
	// Hook, if set, runs at the start of every call.
	Hook func(ctx context.Context, id string)

	mu       sync.Mutex
	calls    []string
	configs  map[string]map[string]any
	records  map[string]ExecutionRecord
	inFlight int
	maxSeen  int
}

// NewRecordingExecutor creates an executor where every node succeeds.
func NewRecordingExecutor() *RecordingExecutor {
	return &RecordingExecutor{
		Fail:    make(map[string]error),
		Values:  make(map[string]any),
		configs: make(map[string]map[string]any),
		records: make(map[string]ExecutionRecord),
	}
}

// Execute implements executor.Executor.
func (e *RecordingExecutor) Execute(ctx context.Context, kind node.Kind, cfg node.Config) (any, error) {
	gc, ok := cfg.(*node.GenericConfig)
	if !ok {
		return nil, fmt.Errorf("recording executor: unexpected config %T", cfg)
	}
	id, _ := gc.Fields["id"].(string)

	start := time.Now()
	e.mu.Lock()
	e.calls = append(e.calls, id)
	e.configs[id] = gc.Fields
	e.inFlight++
	if e.inFlight > e.maxSeen {
		e.maxSeen = e.inFlight
	}
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.inFlight--
		e.records[id] = ExecutionRecord{Start: start, End: time.Now()}
		e.mu.Unlock()
	}()

	if e.Hook != nil {
		e.Hook(ctx, id)
	}
	if e.Delay > 0 {
		select {
		case <-time.After(e.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := e.Fail[id]; err != nil {
		return nil, err
	}
	if v, ok := e.Values[id]; ok {
		return v, nil
	}
	return map[string]any{"id": id}, nil
}

// Calls returns the ids in execution order.
func (e *RecordingExecutor) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

// Config returns the resolved fields a node was executed with.
func (e *RecordingExecutor) Config(id string) map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.configs[id]
}

// Record returns the execution window of a node.
func (e *RecordingExecutor) Record(id string) (ExecutionRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.records[id]
	return r, ok
}

// MaxConcurrency is the highest number of simultaneous calls observed.
func (e *RecordingExecutor) MaxConcurrency() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.maxSeen
}

// FixedClock returns a clock that advances by step on every call.
func FixedClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	cur := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := cur
		cur = cur.Add(step)
		return now
	}
}
