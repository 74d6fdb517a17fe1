package node

import (
	"context"
	"fmt"
	"regexp"
)

// Kind tags a node with the family of work it performs.
type Kind string

const (
	// KindAPI issues an HTTP request.
	KindAPI Kind = "api"
	// KindDB runs a SQL query.
	KindDB Kind = "db"
	// KindFile executes a script file.
	KindFile Kind = "file"
)

// idRegex restricts node ids to characters that cannot collide with the
// template and path grammar (`.`, `{`, `}`, `[`, `]`, whitespace).
var idRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateID reports whether id can be used as a node identifier.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: identifier cannot be empty", ErrInvalidID)
	}
	if !idRegex.MatchString(id) {
		return fmt.Errorf("%w: %q may only contain letters, digits, '_' and '-'", ErrInvalidID, id)
	}
	return nil
}

// Node is a single vertex in the execution graph: one unit of work of a
// particular kind together with its kind-specific configuration.
type Node struct {
	// ID is the unique, machine-readable identifier used in edges and templates.
	ID string
	// Kind selects the executor that performs the node's work.
	Kind Kind
	// Name is the human-readable label. It defaults to ID.
	Name string
	// Config is owned by the node kind and is never interpreted by the core
	// beyond template resolution.
	Config Config
}

// New creates a node, taking the kind from its configuration.
func New(id, name string, cfg Config) *Node {
	n := &Node{ID: id, Name: name, Config: cfg}
	if cfg != nil {
		n.Kind = cfg.Kind()
	}
	return n
}

// DisplayName returns Name, or ID when no name was given.
func (n *Node) DisplayName() string {
	if n.Name != "" {
		return n.Name
	}
	return n.ID
}

// Validate checks the identifier and the mandatory configuration of the node.
func (n *Node) Validate() error {
	if err := ValidateID(n.ID); err != nil {
		return err
	}
	if n.Config == nil {
		return fmt.Errorf("node %q: %w: configuration is missing", n.ID, ErrInvalidConfig)
	}
	if n.Kind != "" && n.Kind != n.Config.Kind() {
		return fmt.Errorf("node %q: %w: kind %q does not match configuration kind %q", n.ID, ErrInvalidConfig, n.Kind, n.Config.Kind())
	}
	if err := n.Config.Validate(); err != nil {
		return fmt.Errorf("node %q: %w: %w", n.ID, ErrInvalidConfig, err)
	}
	return nil
}

// Resolved returns a copy of the node whose configuration has every template
// and parameter reference substituted by r.
func (n *Node) Resolved(ctx context.Context, r Resolver) *Node {
	out := *n
	if n.Config != nil {
		out.Config = n.Config.Resolve(ctx, r)
	}
	return &out
}

// Edge is a dependency: Target depends on Source.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// String renders the edge as `source -> target`.
func (e Edge) String() string {
	return e.Source + " -> " + e.Target
}
