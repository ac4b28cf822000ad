package middleware

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	pghttp "github.com/edgeflare/pgmock/pkg/httputil"
	"go.uber.org/zap"
)

// ProxyOptions configures the upstream reverse proxy.
type ProxyOptions struct {
	TLSConfig     *tls.Config
	Logger        *zap.Logger
	TrimPrefix    string
	ForwardedHost string
	// InsecureSkipVerify is used only when TLSConfig is nil.
	InsecureSkipVerify bool
}

// Proxy returns a reverse proxy to target. Requests the mock declines are
// forwarded there so the browser under test still reaches the live backend.
func Proxy(target string, opts ProxyOptions) (http.Handler, error) {
	targetURL, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse upstream %q: %w", target, err)
	}
	if targetURL.Scheme == "" || targetURL.Host == "" {
		return nil, fmt.Errorf("upstream %q must be an absolute URL", target)
	}

	if opts.ForwardedHost == "" {
		opts.ForwardedHost = targetURL.Host
	}
	if opts.TLSConfig == nil {
		opts.TLSConfig = &tls.Config{
			InsecureSkipVerify: opts.InsecureSkipVerify,
			ServerName:         targetURL.Hostname(),
		}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	proxy := httputil.NewSingleHostReverseProxy(targetURL)
	director := proxy.Director
	proxy.Director = func(req *http.Request) {
		director(req)
		req.Host = targetURL.Host

		if opts.TrimPrefix != "" {
			req.URL.Path = strings.TrimPrefix(req.URL.Path, opts.TrimPrefix)
			req.URL.RawPath = ""
		}
		if opts.ForwardedHost != "" {
			req.Header.Set("X-Forwarded-Host", opts.ForwardedHost)
		}
	}
	proxy.Transport = &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: opts.TLSConfig,
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		opts.Logger.Warn("upstream request failed",
			zap.String("method", r.Method), zap.String("url", r.URL.String()), zap.Error(err))
		pghttp.Error(w, http.StatusBadGateway, "upstream unavailable")
	}

	return proxy, nil
}
