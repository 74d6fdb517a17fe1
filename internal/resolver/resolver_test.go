package resolver

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/nodegraph/internal/ctxlog"
	"github.com/specialistvlad/nodegraph/internal/graphstore"
	"github.com/specialistvlad/nodegraph/internal/inmemorystore"
	"github.com/specialistvlad/nodegraph/internal/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	graph   *graphstore.Store
	results *inmemorystore.Store
	r       *Resolver
	logs    *bytes.Buffer
	ctx     context.Context
}

func newFixture(t *testing.T, ids ...string) *fixture {
	t.Helper()
	f := &fixture{
		graph:   graphstore.New(),
		results: inmemorystore.New(),
		logs:    &bytes.Buffer{},
	}
	for _, id := range ids {
		require.NoError(t, f.graph.AddNode(node.New(id, "", &node.APIConfig{URL: "http://x"})))
	}
	f.r = New(f.results, f.graph)
	f.ctx = ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(f.logs, nil)))
	return f
}

func (f *fixture) succeed(id string, v any) {
	f.results.Set(node.Result{NodeID: id, Status: node.StatusSuccess, Value: v})
}

func TestExtractValueFromPath(t *testing.T) {
	payload := map[string]any{"result": map[string]any{"items": []any{map[string]any{"id": 1}}}}

	assert.Equal(t, 1, ExtractValueFromPath(payload, "result.items[0].id"))
	assert.Nil(t, ExtractValueFromPath(payload, "result.items[0].missing"))
	assert.Nil(t, ExtractValueFromPath(payload, "result.nothing.here"))
}

func TestResolveTemplateString(t *testing.T) {
	t.Run("object values are inserted as json", func(t *testing.T) {
		f := newFixture(t, "A")
		f.succeed("A", map[string]any{"data": map[string]any{"x": 5}})

		assert.Equal(t, `value={"x":5}`, f.r.ResolveTemplateString(f.ctx, "value={{A.result.data}}"))
	})

	t.Run("not executed leaves placeholder and warns", func(t *testing.T) {
		f := newFixture(t, "A")

		assert.Equal(t, "value={{A.result.data}}", f.r.ResolveTemplateString(f.ctx, "value={{A.result.data}}"))
		assert.Contains(t, f.logs.String(), "level=WARN")
	})

	t.Run("failed node leaves placeholder", func(t *testing.T) {
		f := newFixture(t, "A")
		f.results.Set(node.Result{NodeID: "A", Status: node.StatusError, Error: "boom"})

		assert.Equal(t, "{{A.result}}", f.r.ResolveTemplateString(f.ctx, "{{A.result}}"))
	})

	t.Run("running node leaves placeholder", func(t *testing.T) {
		f := newFixture(t, "A")
		f.results.Set(node.Result{NodeID: "A", Status: node.StatusRunning})

		assert.Equal(t, "{{A.result}}", f.r.ResolveTemplateString(f.ctx, "{{A.result}}"))
	})

	t.Run("missing path leaves placeholder", func(t *testing.T) {
		f := newFixture(t, "A")
		f.succeed("A", map[string]any{"x": 1})

		assert.Equal(t, "{{A.result.y}}", f.r.ResolveTemplateString(f.ctx, "{{A.result.y}}"))
	})

	t.Run("multiple independent placeholders", func(t *testing.T) {
		f := newFixture(t, "A", "B")
		f.succeed("A", map[string]any{"host": "api.example.com", "port": float64(8080)})

		got := f.r.ResolveTemplateString(f.ctx, "https://{{A.result.host}}:{{ A.result.port }}/{{B.result.id}}")
		assert.Equal(t, "https://api.example.com:8080/{{B.result.id}}", got)
	})

	t.Run("scalars", func(t *testing.T) {
		f := newFixture(t, "A")
		f.succeed("A", map[string]any{
			"ok":    true,
			"n":     float64(2.5),
			"i":     42,
			"nil":   nil,
			"list":  []any{"a", "b"},
			"html":  "<b>&</b>",
			"items": []any{map[string]any{"name": "first"}},
		})

		assert.Equal(t, "true", f.r.ResolveTemplateString(f.ctx, "{{A.result.ok}}"))
		assert.Equal(t, "2.5", f.r.ResolveTemplateString(f.ctx, "{{A.result.n}}"))
		assert.Equal(t, "42", f.r.ResolveTemplateString(f.ctx, "{{A.result.i}}"))
		assert.Equal(t, "null", f.r.ResolveTemplateString(f.ctx, "{{A.result.nil}}"))
		assert.Equal(t, `["a","b"]`, f.r.ResolveTemplateString(f.ctx, "{{A.result.list}}"))
		assert.Equal(t, "<b>&</b>", f.r.ResolveTemplateString(f.ctx, "{{A.result.html}}"))
		assert.Equal(t, "first", f.r.ResolveTemplateString(f.ctx, "{{A.result.items[0].name}}"))
		assert.Equal(t, "success", f.r.ResolveTemplateString(f.ctx, "{{A.status}}"))
	})

	t.Run("text without placeholders is unchanged", func(t *testing.T) {
		f := newFixture(t)
		assert.Equal(t, "plain {text}", f.r.ResolveTemplateString(f.ctx, "plain {text}"))
		assert.Equal(t, "", f.r.ResolveTemplateString(f.ctx, ""))
		assert.Equal(t, "{{nodot}}", f.r.ResolveTemplateString(f.ctx, "{{nodot}}"))
	})
}

func TestResolveParameterSet(t *testing.T) {
	f := newFixture(t, "login", "other")
	f.succeed("login", map[string]any{"token": "abc", "user": map[string]any{"id": 7}})

	params := []node.Parameter{
		{Key: "page", Value: 2, Source: node.SourceManual},
		{Key: "token", Source: node.SourceReference, ReferenceNodeID: "login", ReferencePath: "result.token"},
		{Key: "user", Source: node.SourceReference, ReferenceNodeID: "login", ReferencePath: "result.user.id"},
		{Key: "whole", Source: node.SourceReference, ReferenceNodeID: "login"},
		{Key: "missing", Source: node.SourceReference, ReferenceNodeID: "other", ReferencePath: "result.x"},
		{Key: "badpath", Source: node.SourceReference, ReferenceNodeID: "login", ReferencePath: "result.nope"},
		{Key: "", Value: "skipped"},
		{Key: "off", Value: "skipped", Disabled: true},
		{Key: "templ", Value: "{{login.result.token}}"},
	}

	got := f.r.ResolveParameterSet(f.ctx, params)

	want := map[string]any{
		"page":    2,
		"token":   "abc",
		"user":    7,
		"whole":   map[string]any{"token": "abc", "user": map[string]any{"id": 7}},
		"missing": nil,
		"badpath": nil,
		"templ":   "{{login.result.token}}",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ResolveParameterSet() mismatch (-want +got):\n%s", diff)
	}
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "5", Stringify(float64(5)))
	assert.Equal(t, "0.1", Stringify(float64(0.1)))
	assert.Equal(t, "-3", Stringify(int64(-3)))
	assert.Equal(t, `{"a":1,"b":2}`, Stringify(map[string]any{"b": 2, "a": 1}))
	assert.Equal(t, "raw", Stringify([]byte("raw")))
}

func TestMentionedNodes(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, MentionedNodes("{{a.result}} {{b.result.x}} {{a.result.y}}"))
	assert.Empty(t, MentionedNodes("none"))
}
