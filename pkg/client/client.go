// Package client is a small PostgREST query builder. It speaks the subset
// of the protocol pgmock serves, so code under test can use it against both
// the mock and the live backend.
package client

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client issues PostgREST requests against one REST root, e.g.
// https://project.supabase.co/rest/v1.
type Client struct {
	http       *http.Client
	logger     *zap.Logger
	headers    http.Header
	restURL    string
	maxRetries int
}

type Option func(*Client)

// WithHTTPClient sets the client requests are sent with. Installing a mock
// on it (rest.Context.Setup) routes the requests to the mock.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHeader adds a header sent on every request, e.g. apikey.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Add(key, value)
	}
}

// WithRetry retries transport errors and 5xx responses up to n times.
func WithRetry(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

func New(restURL string, opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  zap.NewNop(),
		headers: make(http.Header),
		restURL: strings.TrimRight(restURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// From starts a query on table.
func (c *Client) From(table string) *Query {
	return &Query{
		client:  c,
		table:   table,
		method:  http.MethodGet,
		headers: c.headers.Clone(),
		params:  make([]param, 0, 4),
	}
}
