package resolver

import (
	"reflect"
	"slices"
	"sort"

	"github.com/specialistvlad/nodegraph/internal/refpath"
)

// DefaultMaxDepth is how many object levels below `result` are walked when
// listing references.
const DefaultMaxDepth = 3

// Reference identifies a value reachable from a node's stored result. It is
// a read-only projection used to build pickers.
type Reference struct {
	NodeID       string `json:"nodeId"`
	NodeName     string `json:"nodeName"`
	FieldPath    string `json:"fieldPath"`
	DisplayLabel string `json:"displayLabel"`
}

// Template renders the reference as `{{nodeId.fieldPath}}`.
func (r Reference) Template() string {
	return "{{" + r.NodeID + "." + r.FieldPath + "}}"
}

// ListOptions tunes ListAvailableReferences.
type ListOptions struct {
	// IncludeAllExecuted falls back to every other node with a successful
	// result when the node has no predecessors.
	IncludeAllExecuted bool
	// MaxDepth bounds the walk into nested objects. Zero means DefaultMaxDepth.
	MaxDepth int
}

// ListAvailableReferences enumerates the references visible to nodeID:
// direct predecessors first, then, if there are none and the option is on,
// every other node that currently has a successful result.
func (r *Resolver) ListAvailableReferences(nodeID string, opts ListOptions) []Reference {
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	candidates := r.graph.Predecessors(nodeID)
	if len(candidates) == 0 && opts.IncludeAllExecuted {
		for _, n := range r.graph.Nodes() {
			if n.ID == nodeID {
				continue
			}
			if res, ok := r.results.Get(n.ID); ok && res.Succeeded() {
				candidates = append(candidates, n.ID)
			}
		}
	}

	refs := []Reference{}
	for _, id := range candidates {
		name := id
		if n, ok := r.graph.Node(id); ok {
			name = n.DisplayName()
		}

		res, executed := r.results.Get(id)
		label := name + " → result"
		switch {
		case !executed:
			label += " (not-executed)"
		case !res.Succeeded():
			label += " (" + string(res.Status) + ")"
		}
		refs = append(refs, Reference{NodeID: id, NodeName: name, FieldPath: "result", DisplayLabel: label})

		if executed && res.Succeeded() {
			w := walker{nodeID: id, name: name, maxDepth: maxDepth}
			w.walk(res.Value, refpath.Path{refpath.NewSegment("result")}, 0)
			refs = append(refs, w.refs...)
		}
	}
	return refs
}

type walker struct {
	nodeID   string
	name     string
	maxDepth int
	refs     []Reference
}

func (w *walker) emit(p refpath.Path) {
	path := p.String()
	w.refs = append(w.refs, Reference{
		NodeID:       w.nodeID,
		NodeName:     w.name,
		FieldPath:    path,
		DisplayLabel: w.name + " → " + path,
	})
}

// walk emits one reference per object field and, for arrays, one per field
// of the first element.
func (w *walker) walk(value any, base refpath.Path, depth int) {
	if depth >= w.maxDepth {
		return
	}
	switch v := jsonLike(value).(type) {
	case map[string]any:
		for _, key := range sortedKeys(v) {
			p := base.Child(key)
			w.emit(p)
			w.walk(v[key], p, depth+1)
		}
	case []any:
		if len(v) == 0 {
			return
		}
		first, ok := jsonLike(v[0]).(map[string]any)
		if !ok {
			return
		}
		indexed := base.WithIndex(0)
		for _, key := range sortedKeys(first) {
			p := indexed.Child(key)
			w.emit(p)
			w.walk(first[key], p, depth+1)
		}
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if refpath.ValidFieldName(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// jsonLike converts structs and typed containers to map[string]any/[]any.
func jsonLike(v any) any {
	switch v.(type) {
	case nil, map[string]any, []any:
		return v
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Pointer:
		if out, ok := refpath.Normalize(v); ok {
			return out
		}
	}
	return v
}

// MentionedNodes lists the node ids referenced by `{{nodeId.path}}`
// placeholders in s, in order of first appearance.
func MentionedNodes(s string) []string {
	var out []string
	for _, m := range templateRegex.FindAllStringSubmatch(s, -1) {
		if !slices.Contains(out, m[1]) {
			out = append(out, m[1])
		}
	}
	return out
}
