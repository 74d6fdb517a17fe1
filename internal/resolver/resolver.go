// Package resolver lets one node's configuration reference another node's
// result.
//
// References are written as `{{nodeId.path}}` inside any string field, or
// as reference entries in a parameter set. Paths are evaluated against the
// referenced node's result envelope, so they start with `result`. Resolution
// is soft: a node that has not run, has not succeeded, or does not contain
// the path leaves the placeholder untouched and logs a warning. It is up to
// the executor to fail if the value turns out to be required.
package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/specialistvlad/nodegraph/internal/ctxlog"
	"github.com/specialistvlad/nodegraph/internal/node"
	"github.com/specialistvlad/nodegraph/internal/refpath"
)

// templateRegex matches `{{nodeId.path}}`, tolerating inner whitespace.
var templateRegex = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_-]+)\.([^{}\s]+)\s*\}\}`)

// ResultReader is the read side of the result store.
type ResultReader interface {
	Get(id string) (node.Result, bool)
}

// GraphReader is the read side of the graph store.
type GraphReader interface {
	Node(id string) (*node.Node, bool)
	Nodes() []*node.Node
	Predecessors(id string) []string
}

// Resolver substitutes references using the currently stored results.
type Resolver struct {
	results ResultReader
	graph   GraphReader
}

// New creates a resolver over the given stores.
func New(results ResultReader, graph GraphReader) *Resolver {
	return &Resolver{results: results, graph: graph}
}

var _ node.Resolver = (*Resolver)(nil)

// ExtractValueFromPath walks value along a dot/bracket path. Any miss
// returns nil.
func ExtractValueFromPath(value any, path string) any {
	return refpath.ExtractValue(value, path)
}

// ResolveTemplateString replaces every `{{nodeId.path}}` in s. Each
// placeholder is resolved independently; unresolvable ones are kept verbatim.
func (r *Resolver) ResolveTemplateString(ctx context.Context, s string) string {
	if s == "" {
		return s
	}
	logger := ctxlog.FromContext(ctx)

	return templateRegex.ReplaceAllStringFunc(s, func(placeholder string) string {
		m := templateRegex.FindStringSubmatch(placeholder)
		nodeID, path := m[1], m[2]

		res, ok := r.results.Get(nodeID)
		if !ok {
			logger.Warn("Referenced node has not been executed; placeholder left unchanged.", "ref", nodeID, "path", path)
			return placeholder
		}
		if !res.Succeeded() {
			logger.Warn("Referenced node did not succeed; placeholder left unchanged.", "ref", nodeID, "path", path, "status", res.Status)
			return placeholder
		}

		p, err := refpath.Parse(path)
		if err != nil {
			logger.Warn("Malformed reference path; placeholder left unchanged.", "ref", nodeID, "path", path, "error", err)
			return placeholder
		}
		v, found := refpath.Extract(res.Envelope(), p)
		if !found {
			logger.Warn("Reference path not found in result; placeholder left unchanged.", "ref", nodeID, "path", path)
			return placeholder
		}
		return Stringify(v)
	})
}

// ResolveParameterSet turns an ordered parameter list into a key/value map.
// Reference entries read from stored results, manual entries pass through,
// and entries without a key or switched off are skipped.
func (r *Resolver) ResolveParameterSet(ctx context.Context, params []node.Parameter) map[string]any {
	logger := ctxlog.FromContext(ctx)
	out := make(map[string]any, len(params))

	for _, p := range params {
		if p.Key == "" || p.Disabled {
			continue
		}
		if p.Source != node.SourceReference {
			out[p.Key] = p.Value
			continue
		}

		res, ok := r.results.Get(p.ReferenceNodeID)
		if !ok || !res.Succeeded() {
			logger.Warn("Parameter reference unavailable; using null.", "key", p.Key, "ref", p.ReferenceNodeID)
			out[p.Key] = nil
			continue
		}
		if p.ReferencePath == "" {
			out[p.Key] = res.Value
			continue
		}
		out[p.Key] = refpath.ExtractValue(res.Envelope(), p.ReferencePath)
	}
	return out
}

// Stringify renders a value for insertion into a string: strings verbatim,
// numbers in shortest form, objects and arrays as compact JSON.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(val)
	case json.Number:
		return val.String()
	case []byte:
		return string(val)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
