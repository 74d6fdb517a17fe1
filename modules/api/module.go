// Package api executes HTTP request nodes.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/specialistvlad/nodegraph/internal/ctxlog"
	"github.com/specialistvlad/nodegraph/internal/executor"
	"github.com/specialistvlad/nodegraph/internal/node"
	"github.com/specialistvlad/nodegraph/internal/resolver"
	"resty.dev/v3"
)

// DefaultTimeout applies when neither the node nor the module sets one.
const DefaultTimeout = 30 * time.Second

const defaultAPIKeyHeader = "X-API-Key"

// Module registers the api node kind.
type Module struct {
	// Timeout is the per-request default. Zero means DefaultTimeout.
	Timeout time.Duration

	mu     sync.Mutex
	client *resty.Client
}

// Response is the value an api node leaves behind.
type Response struct {
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers"`
	Data       any               `json:"data"`
}

// Register implements executor.Module.
func (m *Module) Register(r *executor.Registry) {
	r.Register(node.KindAPI, m.Execute)
}

// Close releases the shared client. A later Execute creates a new one.
func (m *Module) Close() error {
	m.mu.Lock()
	c := m.client
	m.client = nil
	m.mu.Unlock()

	if c == nil {
		return nil
	}
	return c.Close()
}

func (m *Module) restClient() *resty.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		m.client = resty.New()
	}
	return m.client
}

// Execute performs the request described by an *node.APIConfig. Responses
// outside the 2xx range are errors of the form "HTTP <code>: <text>".
func (m *Module) Execute(ctx context.Context, cfg node.Config) (any, error) {
	c, err := executor.ConfigAs[*node.APIConfig](cfg)
	if err != nil {
		return nil, err
	}
	method := c.HTTPMethod()
	logger := ctxlog.FromContext(ctx).With("method", method, "url", c.URL)

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = m.Timeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	req := m.restClient().R().
		SetContext(ctx).
		SetTimeout(timeout)

	for _, h := range c.Headers {
		if h.Disabled || h.Key == "" {
			continue
		}
		req.SetHeader(h.Key, h.Value)
	}
	for key, value := range c.ResolvedQuery {
		req.SetQueryParam(key, resolver.Stringify(value))
	}
	applyAuth(req, c.Auth)
	applyBody(req, c.Body)

	logger.Info("📤 Sending request.")
	resp, err := req.Execute(method, c.URL)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	out := &Response{
		Status:     resp.StatusCode(),
		StatusText: http.StatusText(resp.StatusCode()),
		Headers:    flattenHeaders(resp.Header()),
		Data:       decodeBody(resp.Bytes()),
	}
	logger.Debug("Received response.", "status", out.Status)

	if out.Status < 200 || out.Status >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", out.Status, out.StatusText)
	}
	return out, nil
}

func applyAuth(req *resty.Request, a node.Auth) {
	switch a.Type {
	case node.AuthBearer:
		if a.Token != "" {
			req.SetAuthToken(a.Token)
		}
	case node.AuthBasic:
		if a.Username != "" {
			req.SetBasicAuth(a.Username, a.Password)
		}
	case node.AuthAPIKey:
		name := a.KeyName
		if name == "" {
			name = defaultAPIKeyHeader
		}
		if a.KeyValue != "" {
			req.SetHeader(name, a.KeyValue)
		}
	}
}

func applyBody(req *resty.Request, b node.Body) {
	switch b.Type {
	case node.BodyJSON:
		if b.Raw != "" {
			req.SetHeader("Content-Type", "application/json")
			req.SetBody(b.Raw)
		}
	case node.BodyRaw:
		if b.Raw != "" {
			req.SetBody(b.Raw)
		}
	case node.BodyForm:
		form := make(map[string]string, len(b.Form))
		for _, f := range b.Form {
			if !f.Disabled && f.Key != "" {
				form[f.Key] = f.Value
			}
		}
		if len(form) > 0 {
			req.SetFormData(form)
		}
	}
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = strings.Join(v, ", ")
	}
	return out
}

// decodeBody returns the parsed JSON document, or the raw text when the body
// is not JSON.
func decodeBody(body []byte) any {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&v); err == nil && !dec.More() {
		return normalizeNumbers(v)
	}
	return string(body)
}

// normalizeNumbers turns json.Number into int64 when exact, float64 otherwise.
func normalizeNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case map[string]any:
		for k, item := range val {
			val[k] = normalizeNumbers(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = normalizeNumbers(item)
		}
		return val
	}
	return v
}
