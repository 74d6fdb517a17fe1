// Package runlog keeps a human-readable execution log per node and run.
//
// A Log is a scheduler.Observer: registering it with the scheduler turns
// every result change into one entry.
package runlog

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/nodegraph/internal/node"
	"github.com/specialistvlad/nodegraph/internal/scheduler"
)

// Level classifies an entry.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelStdout  Level = "stdout"
	LevelStderr  Level = "stderr"
)

// Entry is one line of the execution log.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"runId,omitempty"`
	NodeID    string    `json:"nodeId"`
	NodeName  string    `json:"nodeName"`
	Level     Level     `json:"type"`
	Message   string    `json:"message"`
}

// Log is an append-only, concurrency-safe list of entries.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	limit   int
	now     func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithLimit keeps only the newest n entries. Zero keeps everything.
func WithLimit(n int) Option {
	return func(l *Log) { l.limit = n }
}

// WithClock replaces time.Now for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates an empty log.
func New(opts ...Option) *Log {
	l := &Log{now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var _ scheduler.Observer = (*Log)(nil)

// Add appends e, filling in its id and timestamp, and returns the stored entry.
func (l *Log) Add(e Entry) Entry {
	e.ID = uuid.NewString()
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	if l.limit > 0 && len(l.entries) > l.limit {
		l.entries = slices.Clone(l.entries[len(l.entries)-l.limit:])
	}
	return e
}

// AddOutput records a script's stdout and stderr as separate entries under
// the node and run found in ctx. Empty streams are skipped.
func (l *Log) AddOutput(ctx context.Context, stdout, stderr string) {
	nodeID, _ := scheduler.NodeIDFromContext(ctx)
	runID, _ := scheduler.RunIDFromContext(ctx)
	streams := []struct {
		level Level
		text  string
	}{
		{LevelStdout, stdout},
		{LevelStderr, stderr},
	}
	for _, st := range streams {
		if st.text == "" {
			continue
		}
		l.Add(Entry{RunID: runID, NodeID: nodeID, NodeName: nodeID, Level: st.level, Message: st.text})
	}
}

// Entries returns every entry in insertion order.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.entries)
}

// ForNode returns the entries of one node.
func (l *Log) ForNode(nodeID string) []Entry {
	return l.filter(func(e Entry) bool { return e.NodeID == nodeID })
}

// ForRun returns the entries recorded during one run.
func (l *Log) ForRun(runID string) []Entry {
	return l.filter(func(e Entry) bool { return e.RunID == runID })
}

func (l *Log) filter(keep func(Entry) bool) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := []Entry{}
	for _, e := range l.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// ClearNode drops the entries of one node.
func (l *Log) ClearNode(nodeID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = slices.DeleteFunc(l.entries, func(e Entry) bool { return e.NodeID == nodeID })
}

// Clear drops every entry.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// OnResult implements scheduler.Observer.
func (l *Log) OnResult(_ context.Context, ev scheduler.Event) {
	e := Entry{
		RunID:    ev.RunID,
		NodeID:   ev.Result.NodeID,
		NodeName: ev.Result.NodeID,
	}
	kind := node.Kind("")
	if ev.Node != nil {
		e.NodeName = ev.Node.DisplayName()
		kind = ev.Node.Kind
	}

	switch ev.Result.Status {
	case node.StatusRunning:
		e.Level = LevelInfo
		if kind != "" {
			e.Message = fmt.Sprintf("🚀 Starting %s node", kind)
		} else {
			e.Message = "🚀 Starting"
		}
	case node.StatusSuccess:
		e.Level = LevelSuccess
		e.Message = fmt.Sprintf("✅ Completed (%dms)", ev.Result.DurationMs())
	case node.StatusError:
		e.Level = LevelError
		e.Message = "❌ Failed: " + ev.Result.Error
	case node.StatusBlocked:
		e.Level = LevelWarning
		e.Message = "⏸️ Blocked: " + ev.Result.Error
	default:
		return
	}
	l.Add(e)
}
