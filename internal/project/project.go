package project

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/specialistvlad/nodegraph/internal/ctxlog"
	"github.com/specialistvlad/nodegraph/internal/node"
	"github.com/specialistvlad/nodegraph/internal/resolver"
)

// Project is the graph described by a set of project files.
type Project struct {
	Files []string
	Nodes []*node.Node
	// Edges come from `depends_on`, in file order.
	Edges []node.Edge
}

// Graph is what a project is loaded into.
type Graph interface {
	AddNode(n *node.Node) error
	SetEdges(edges []node.Edge) error
}

// Apply adds every node and then installs the edge set.
func (p *Project) Apply(ctx context.Context, g Graph) error {
	for _, n := range p.Nodes {
		if err := g.AddNode(n); err != nil {
			return fmt.Errorf("failed to add node %q: %w", n.ID, err)
		}
	}
	if err := g.SetEdges(p.Edges); err != nil {
		return fmt.Errorf("failed to set edges: %w", err)
	}
	ctxlog.FromContext(ctx).Debug("Project applied.", "nodes", len(p.Nodes), "edges", len(p.Edges))
	return nil
}

// Warnings lists template and parameter references to nodes that are not
// declared dependencies. Such references resolve only if the referenced node
// happens to have run.
func (p *Project) Warnings() []string {
	deps := make(map[string][]string)
	for _, e := range p.Edges {
		deps[e.Target] = append(deps[e.Target], e.Source)
	}

	var warnings []string
	for _, n := range p.Nodes {
		for _, ref := range referencedNodes(n.Config) {
			if ref == n.ID {
				warnings = append(warnings, fmt.Sprintf("node %q references itself", n.ID))
				continue
			}
			if !slices.Contains(deps[n.ID], ref) {
				warnings = append(warnings, fmt.Sprintf("node %q references %q without depending on it", n.ID, ref))
			}
		}
	}
	return warnings
}

// referencedNodes collects the node ids a configuration reads from, in order
// of first appearance.
func referencedNodes(cfg node.Config) []string {
	var strs []string
	var params []node.Parameter
	switch c := cfg.(type) {
	case *node.APIConfig:
		strs = append(strs, c.URL, c.Auth.Token, c.Auth.Username, c.Auth.Password, c.Auth.KeyValue, c.Body.Raw)
		for _, h := range c.Headers {
			strs = append(strs, h.Value)
		}
		for _, f := range c.Body.Form {
			strs = append(strs, f.Value)
		}
		params = c.Query
	case *node.DBConfig:
		strs = append(strs, c.DSN, c.Query)
		params = c.Args
	case *node.FileConfig:
		strs = append(strs, c.Path)
		for _, k := range slices.Sorted(maps.Keys(c.Env)) {
			strs = append(strs, c.Env[k])
		}
		params = c.Params
	}

	var out []string
	add := func(id string) {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	for _, s := range strs {
		for _, id := range resolver.MentionedNodes(s) {
			add(id)
		}
	}
	for _, prm := range params {
		if !prm.Disabled && prm.Source == node.SourceReference {
			add(prm.ReferenceNodeID)
		}
	}
	return out
}
