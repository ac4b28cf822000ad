package pgmock

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/edgeflare/pgmock/pkg/client"
	"github.com/edgeflare/pgmock/pkg/config"
	"github.com/edgeflare/pgmock/pkg/store"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func fixturePath(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), "..", "..", "internal", "testutil", "testdata", "marketplace.yaml")
}

func startServer(t *testing.T, mutate func(*config.Config)) *httptest.Server {
	t.Helper()
	c := config.Default()
	c.Mock.Fixtures = []string{fixturePath(t)}
	if mutate != nil {
		mutate(&c)
	}
	s, err := newServer(&c, zaptest.NewLogger(t))
	require.NoError(t, err)
	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)
	return srv
}

func send(t *testing.T, method, url string, body string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func tableCounts(t *testing.T, url string) map[string]int {
	t.Helper()
	_, body := send(t, http.MethodGet, url+"/_mock/tables", "")
	var counts map[string]int
	require.NoError(t, json.Unmarshal(body, &counts))
	return counts
}

func TestServeMockedTable(t *testing.T) {
	srv := startServer(t, nil)

	resp, body := send(t, http.MethodGet, srv.URL+"/rest/v1/phones?select=id&order=price.desc", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[{"id":"P2"},{"id":"P3"},{"id":"P1"}]`, string(body))
	assert.Equal(t, "0-2/3", resp.Header.Get("Content-Range"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServePreflight(t *testing.T) {
	srv := startServer(t, nil)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/rest/v1/phones", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Expose-Headers"), "Content-Range")
}

func TestServeFallback(t *testing.T) {
	t.Run("not found without upstream", func(t *testing.T) {
		srv := startServer(t, nil)
		resp, _ := send(t, http.MethodGet, srv.URL+"/auth/v1/user", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("proxied to upstream", func(t *testing.T) {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "upstream "+r.Method+" "+r.URL.Path)
		}))
		defer upstream.Close()

		srv := startServer(t, func(c *config.Config) { c.Mock.Upstream = upstream.URL })

		_, body := send(t, http.MethodGet, srv.URL+"/rest/v1/profiles", "")
		assert.Equal(t, "upstream GET /rest/v1/profiles", string(body))
		_, body = send(t, http.MethodPut, srv.URL+"/rest/v1/phones", "{}")
		assert.Equal(t, "upstream PUT /rest/v1/phones", string(body))
	})
}

func TestServeTablesSubsetAndBaseURL(t *testing.T) {
	srv := startServer(t, func(c *config.Config) {
		c.Mock.BaseURL = "/api"
		c.Mock.Tables = []string{"phones"}
		c.Mock.Fixtures = nil
	})

	resp, _ := send(t, http.MethodGet, srv.URL+"/api/phones", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = send(t, http.MethodGet, srv.URL+"/api/phone_inquiries", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, map[string]int{"phones": 0}, tableCounts(t, srv.URL))
}

func TestAdminResetRestoresFixtures(t *testing.T) {
	srv := startServer(t, nil)

	resp, _ := send(t, http.MethodDelete, srv.URL+"/rest/v1/phones?seller_id=eq.U1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, tableCounts(t, srv.URL)["phones"])

	resp, _ = send(t, http.MethodPost, srv.URL+"/_mock/reset", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, map[string]int{"phones": 3, "phone_inquiries": 2, "phone_reactions": 1}, tableCounts(t, srv.URL))
}

func TestAdminSeed(t *testing.T) {
	srv := startServer(t, func(c *config.Config) { c.Mock.Fixtures = nil })

	resp, body := send(t, http.MethodPost, srv.URL+"/_mock/seed/phones", `[{"id":"X1","price":"12"},{"id":"X2"}]`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"table":"phones","seeded":2}`, string(body))

	resp, body = send(t, http.MethodPost, srv.URL+"/_mock/seed/phone_reactions", `{"id":"R9"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	_, body = send(t, http.MethodGet, srv.URL+"/rest/v1/phones?id=eq.X1&select=price", "")
	assert.JSONEq(t, `[{"price":12}]`, string(body))

	for _, tt := range []struct {
		path, body string
		want       int
	}{
		{"/_mock/seed/users", `[]`, http.StatusNotFound},
		{"/_mock/seed/phones", `{bad`, http.StatusBadRequest},
		{"/_mock/seed/phones", `"scalar"`, http.StatusBadRequest},
		{"/_mock/seed/phones", `{"id":"X3","price":"cheap"}`, http.StatusBadRequest},
	} {
		resp, _ := send(t, http.MethodPost, srv.URL+tt.path, tt.body)
		assert.Equal(t, tt.want, resp.StatusCode, tt.path+" "+tt.body)
	}
	assert.Equal(t, 2, tableCounts(t, srv.URL)["phones"])
}

func TestHealthz(t *testing.T) {
	srv := startServer(t, nil)
	resp, body := send(t, http.MethodGet, srv.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestNewServerErrors(t *testing.T) {
	tests := map[string]func(*config.Config){
		"missing fixture": func(c *config.Config) { c.Mock.Fixtures = []string{filepath.Join(t.TempDir(), "none.yaml")} },
		"bad upstream":    func(c *config.Config) { c.Mock.Upstream = "relative/path" },
		"bad nulls":       func(c *config.Config) { c.Mock.NullsOrder = "middle" },
		"fixture table not served": func(c *config.Config) {
			c.Mock.Tables = []string{"phones"}
		},
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := config.Default()
			c.Mock.Fixtures = []string{fixturePath(t)}
			mutate(&c)
			_, err := newServer(&c, zaptest.NewLogger(t))
			assert.Error(t, err)
		})
	}
}

func TestSeedThroughClient(t *testing.T) {
	srv := startServer(t, func(c *config.Config) { c.Mock.Fixtures = nil })

	fx, err := store.LoadFixtures(fixturePath(t))
	require.NoError(t, err)
	c := client.New(srv.URL+"/rest/v1", client.WithRetry(1))
	require.NoError(t, seed(context.Background(), c, fx))

	assert.Equal(t, map[string]int{"phones": 3, "phone_inquiries": 2, "phone_reactions": 1}, tableCounts(t, srv.URL))
}
