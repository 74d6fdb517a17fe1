package node

import (
	"encoding/json"
	"time"
)

// Status is the execution state of a node.
type Status string

const (
	// StatusPending is implicit: a node without a stored result is pending.
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	// StatusBlocked marks a node that can no longer run because an upstream
	// node failed. Only recorded when blocked propagation is enabled.
	StatusBlocked Status = "blocked"
)

// IsTerminal reports whether no further transition is expected.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusError || s == StatusBlocked
}

// Result is the outcome of a node's most recent execution.
type Result struct {
	NodeID    string
	Status    Status
	Value     any
	Error     string
	StartedAt time.Time
	Duration  time.Duration
}

// Succeeded reports whether the result carries a usable value.
func (r Result) Succeeded() bool {
	return r.Status == StatusSuccess
}

// DurationMs is the execution time in whole milliseconds.
func (r Result) DurationMs() int64 {
	return r.Duration.Milliseconds()
}

// Envelope is the root object that reference paths are evaluated against,
// which is why paths such as `result.items[0].id` start with `result`.
func (r Result) Envelope() map[string]any {
	env := map[string]any{
		"nodeId":     r.NodeID,
		"status":     string(r.Status),
		"result":     r.Value,
		"durationMs": r.DurationMs(),
	}
	if r.Error != "" {
		env["error"] = r.Error
	}
	return env
}

// MarshalJSON encodes the envelope plus the start timestamp.
func (r Result) MarshalJSON() ([]byte, error) {
	env := r.Envelope()
	if !r.StartedAt.IsZero() {
		env["startedAt"] = r.StartedAt.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(env)
}
