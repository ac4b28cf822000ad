package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProxy(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Seen-Host", r.Header.Get("X-Forwarded-Host"))
		_, _ = io.WriteString(w, r.Method+" "+r.URL.RequestURI())
	}))
	defer upstream.Close()

	proxy, err := Proxy(upstream.URL, ProxyOptions{TrimPrefix: "/upstream"})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	proxy.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "http://mock.test/upstream/auth/v1/user?x=1", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "GET /auth/v1/user?x=1", rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("X-Seen-Host"))
}

func TestProxyUpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	url := upstream.URL
	upstream.Close()

	proxy, err := Proxy(url, ProxyOptions{})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	proxy.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "http://mock.test/storage/v1/bucket", nil))

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "upstream unavailable")
}

func TestProxyInvalidTarget(t *testing.T) {
	_, err := Proxy("not a url", ProxyOptions{})
	assert.Error(t, err)

	_, err = Proxy("://bad", ProxyOptions{})
	assert.Error(t, err)
}

func TestChain(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { order = append(order, "handler") }),
		mark("outer"), mark("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}
