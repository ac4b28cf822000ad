// Package mocktest wires a rest.Context into tests.
package mocktest

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/edgeflare/pgmock/internal/testutil"
	"github.com/edgeflare/pgmock/pkg/rest"
	"github.com/edgeflare/pgmock/pkg/schema"
	"github.com/edgeflare/pgmock/pkg/store"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// BaseURL is the origin test clients address. Requests to it never leave
// the process once the client is set up.
const BaseURL = "https://mock.supabase.test"

// Epoch is the clock of registries built by NewContext.
var Epoch = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

// NewContext returns an isolated mock with a fixed clock and a zaptest
// logger. The store is reset when the test ends.
func NewContext(t testing.TB, opts ...rest.Option) *rest.Context {
	t.Helper()
	reg := schema.Default(schema.WithClock(func() time.Time { return Epoch }))
	opts = append([]rest.Option{rest.WithLogger(zaptest.NewLogger(t))}, opts...)
	c := rest.NewContextWith(store.New(reg.Names()...), reg, opts...)
	t.Cleanup(c.Reset)
	return c
}

// Client returns an *http.Client whose requests are served by c. Requests
// the mock declines fail instead of reaching the network.
func Client(t testing.TB, c *rest.Context) *http.Client {
	t.Helper()
	client := &http.Client{Transport: declined{t: t}}
	require.True(t, c.Setup(client))
	return client
}

type declined struct{ t testing.TB }

func (d declined) RoundTrip(req *http.Request) (*http.Response, error) {
	d.t.Errorf("unexpected passthrough: %s %s", req.Method, req.URL)
	return &http.Response{
		StatusCode: http.StatusBadGateway,
		Body:       io.NopCloser(bytes.NewReader(nil)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

// NewServer starts an httptest.Server serving c, with fallback answering
// declined requests. A nil fallback answers 404.
func NewServer(t testing.TB, c *rest.Context, fallback http.Handler) *httptest.Server {
	t.Helper()
	if fallback == nil {
		fallback = http.NotFoundHandler()
	}
	srv := httptest.NewServer(c.Middleware(fallback))
	t.Cleanup(srv.Close)
	return srv
}

// Seed writes recs into table, failing the test on error.
func Seed(t testing.TB, c *rest.Context, table string, recs ...store.Record) {
	t.Helper()
	require.NoError(t, c.Seed(table, recs...))
}

// SeedMarketplace loads testdata/marketplace.yaml into c.
func SeedMarketplace(t testing.TB, c *rest.Context) {
	t.Helper()
	fx, err := testutil.LoadFixtures("testdata/marketplace.yaml")
	require.NoError(t, err)
	require.NoError(t, c.SeedFixtures(fx))
}

// Response is a decoded mock response.
type Response struct {
	Header http.Header
	Body   []byte
	Status int
}

// JSON decodes the body into v.
func (r Response) JSON(t testing.TB, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Body, v), string(r.Body))
}

// Rows decodes a collection body.
func (r Response) Rows(t testing.TB) []map[string]any {
	t.Helper()
	var rows []map[string]any
	r.JSON(t, &rows)
	return rows
}

// Do sends method path with an optional JSON body and extra headers given
// as key, value pairs.
func Do(t testing.TB, client *http.Client, method, path string, body any, headers ...string) Response {
	t.Helper()
	require.Zero(t, len(headers)%2, "headers must be key, value pairs")

	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	case []byte:
		rd = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, BaseURL+path, rd)
	require.NoError(t, err)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i < len(headers); i += 2 {
		req.Header.Add(headers[i], headers[i+1])
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return Response{Status: resp.StatusCode, Header: resp.Header, Body: data}
}
