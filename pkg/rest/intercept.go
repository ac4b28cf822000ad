package rest

import (
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/edgeflare/pgmock/pkg/metrics"
	"github.com/edgeflare/pgmock/pkg/schema"
	"github.com/edgeflare/pgmock/pkg/store"
)

// Context is one isolated mock: its own store, registry and engine, plus
// the set of HTTP clients whose traffic it intercepts.
type Context struct {
	*Engine

	mu        sync.Mutex
	installed map[*http.Client]bool
}

// NewContext returns a Context over a fresh store holding every table of
// the default registry.
func NewContext(opts ...Option) *Context {
	reg := schema.Default()
	return NewContextWith(store.New(reg.Names()...), reg, opts...)
}

func NewContextWith(st *store.Store, reg *schema.Registry, opts ...Option) *Context {
	return &Context{
		Engine:    NewEngine(st, reg, opts...),
		installed: make(map[*http.Client]bool),
	}
}

// Setup routes client's requests through the mock. It is idempotent: it
// reports false and changes nothing when client is already set up.
func (c *Context) Setup(client *http.Client) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.installed[client] {
		return false
	}
	c.installed[client] = true
	client.Transport = c.Transport(client.Transport)
	return true
}

// Transport returns a RoundTripper that answers mocked requests in process
// and sends the rest to next, or http.DefaultTransport when next is nil.
func (c *Context) Transport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Transport{engine: c.Engine, next: next}
}

// Transport is an http.RoundTripper backed by an Engine.
type Transport struct {
	engine *Engine
	next   http.RoundTripper
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	table, ok := t.engine.Match(req)
	if !ok {
		metrics.PassthroughRequests.WithLabelValues(req.Method).Inc()
		return t.next.RoundTrip(req)
	}

	rec := httptest.NewRecorder()
	t.engine.serve(rec, req, table)
	if req.Body != nil {
		_ = req.Body.Close()
	}

	resp := rec.Result()
	resp.Request = req
	return resp, nil
}
