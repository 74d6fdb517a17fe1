// Package notify pushes result changes to a live editor over socket.io.
package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/specialistvlad/nodegraph/internal/ctxlog"
	"github.com/specialistvlad/nodegraph/internal/node"
	"github.com/specialistvlad/nodegraph/internal/scheduler"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// EventResult is the socket.io event carrying one result change.
const EventResult = "node:result"

const defaultConnectTimeout = 15 * time.Second

// Emitter sends one event. It is satisfied by a connected socket and by
// test fakes.
type Emitter interface {
	Emit(event string, payload any)
	Close()
}

// Options describe the editor endpoint.
type Options struct {
	URL                string
	Namespace          string
	InsecureSkipVerify bool
	ConnectTimeout     time.Duration
}

// Publisher is a scheduler.Observer that forwards every result change.
type Publisher struct {
	mu      sync.Mutex
	emitter Emitter
	closed  bool
}

var _ scheduler.Observer = (*Publisher)(nil)

// NewPublisher wraps an existing emitter.
func NewPublisher(e Emitter) *Publisher {
	return &Publisher{emitter: e}
}

// Dial connects to the editor and returns a publisher bound to it.
func Dial(ctx context.Context, o Options) (*Publisher, error) {
	logger := ctxlog.FromContext(ctx).With("url", o.URL, "namespace", o.Namespace)

	parsedURL, err := url.Parse(o.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse editor URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("editor URL %q must include scheme and host", o.URL)
	}
	timeout := o.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	opts := socket.DefaultOptions()
	if parsedURL.Path != "" {
		opts.SetPath(parsedURL.Path)
	}
	if o.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(o.Namespace, opts)

	connected := make(chan error, 1)
	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Connected to editor.", "sid", io.Id())
		connected <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		var err error = fmt.Errorf("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		connected <- err
	})

	logger.Debug("Connecting to editor...")
	io.Connect()

	select {
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return NewPublisher(&socketEmitter{io: io}), nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection: %w", ctx.Err())
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", timeout)
	}
}

// OnResult implements scheduler.Observer.
func (p *Publisher) OnResult(ctx context.Context, ev scheduler.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	ctxlog.FromContext(ctx).Debug("Publishing result.", "event", EventResult, "status", ev.Result.Status)
	p.emitter.Emit(EventResult, Payload(ev))
}

// Close disconnects. Later results are dropped.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		p.emitter.Close()
	}
	return nil
}

// Payload builds the JSON-ready body of a node:result event.
func Payload(ev scheduler.Event) map[string]any {
	res := ev.Result
	out := map[string]any{
		"runId":      ev.RunID,
		"nodeId":     res.NodeID,
		"nodeName":   res.NodeID,
		"status":     string(res.Status),
		"result":     res.Value,
		"durationMs": res.DurationMs(),
	}
	if ev.Node != nil {
		out["nodeName"] = ev.Node.DisplayName()
		out["kind"] = string(ev.Node.Kind)
	}
	if res.Error != "" {
		out["error"] = res.Error
	}
	if !res.StartedAt.IsZero() {
		out["startedAt"] = res.StartedAt.Format(time.RFC3339Nano)
	}
	if res.Status == node.StatusRunning {
		delete(out, "durationMs")
	}
	return out
}

type socketEmitter struct {
	io *socket.Socket
}

func (s *socketEmitter) Emit(event string, payload any) {
	s.io.Emit(event, payload)
}

func (s *socketEmitter) Close() {
	s.io.Disconnect()
}
