package node

import "context"

// Config is the kind-specific configuration of a node. Each kind owns a
// concrete type; the core only validates it and asks it to resolve itself.
type Config interface {
	// Kind returns the node kind this configuration belongs to.
	Kind() Kind
	// Validate reports missing mandatory fields (e.g. an empty URL).
	Validate() error
	// Resolve returns a copy with every templated string substituted and
	// every parameter set resolved. The receiver is not modified.
	Resolve(ctx context.Context, r Resolver) Config
}

// Resolver substitutes references to other nodes' results.
type Resolver interface {
	ResolveTemplateString(ctx context.Context, s string) string
	ResolveParameterSet(ctx context.Context, params []Parameter) map[string]any
}

// ValueSource says where a parameter's value comes from.
type ValueSource string

const (
	SourceManual    ValueSource = "manual"
	SourceReference ValueSource = "reference"
)

// Parameter is one entry of an ordered key/value set whose value is either
// given directly or read from another node's result.
type Parameter struct {
	Key             string
	Value           any
	Source          ValueSource
	ReferenceNodeID string
	ReferencePath   string
	Disabled        bool
}

// Header is an ordered key/value pair that can be switched off.
type Header struct {
	Key      string
	Value    string
	Disabled bool
}

func resolveHeaders(ctx context.Context, r Resolver, in []Header) []Header {
	if in == nil {
		return nil
	}
	out := make([]Header, len(in))
	for i, h := range in {
		out[i] = Header{Key: h.Key, Value: r.ResolveTemplateString(ctx, h.Value), Disabled: h.Disabled}
	}
	return out
}

// resolveAny walks JSON-like values and templates every string it finds,
// including those in map[string]string and []string. Other types are
// returned unchanged.
func resolveAny(ctx context.Context, r Resolver, v any) any {
	switch val := v.(type) {
	case string:
		return r.ResolveTemplateString(ctx, val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = resolveAny(ctx, r, item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = resolveAny(ctx, r, item)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(val))
		for k, item := range val {
			out[k] = r.ResolveTemplateString(ctx, item)
		}
		return out
	case []string:
		out := make([]string, len(val))
		for i, item := range val {
			out[i] = r.ResolveTemplateString(ctx, item)
		}
		return out
	default:
		return v
	}
}
