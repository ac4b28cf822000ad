package pgmock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/edgeflare/pgmock/pkg/config"
	"github.com/edgeflare/pgmock/pkg/httputil"
	mw "github.com/edgeflare/pgmock/pkg/httputil/middleware"
	"github.com/edgeflare/pgmock/pkg/metrics"
	"github.com/edgeflare/pgmock/pkg/rest"
	"github.com/edgeflare/pgmock/pkg/store"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mock server",
	Long:  `Serves the mocked tables over HTTP and forwards every other request to the upstream, if one is configured`,
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringP("mock.listenAddr", "l", "", "listen address (default :8080)")
	f.String("mock.baseURL", "", "path prefix tables are served under (default /rest/v1)")
	f.StringP("mock.upstream", "u", "", "forward declined requests to this URL")
	f.Bool("mock.insecureUpstream", false, "skip TLS verification of the upstream")
	f.String("mock.nullsOrder", "", "null placement without nullsfirst/nullslast (first, last)")
	f.StringSlice("mock.tables", nil, "serve only these tables")
	f.StringSliceP("mock.fixtures", "f", nil, "fixture files seeded at startup and on reset")
	f.Bool("mock.tls.enabled", false, "serve HTTPS, generating a self-signed certificate when none exists")
	f.Bool("metrics.enabled", false, "serve Prometheus metrics")
	f.String("metrics.listenAddr", "", "metrics listen address (default :9100)")

	_ = v.BindPFlags(f)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := newServer(cfg, logger)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	if cfg.Metrics.Enabled {
		metrics.TrackStore(srv.mock.Store())
		metrics.StartPrometheusServer(ctx, &wg, &metrics.PromServerOpts{
			Addr:   cfg.Metrics.ListenAddr,
			Path:   cfg.Metrics.Path,
			Logger: logger,
		})
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.router.ListenAndServe(cfg.Mock.ListenAddr); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.router.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	wg.Wait()
	logger.Info("server gracefully stopped")
	return nil
}

type server struct {
	router   *httputil.Router
	mock     *rest.Context
	logger   *zap.Logger
	fixtures store.Fixtures
}

// newServer wires the mock, its admin routes and the upstream fallback
// into a router.
func newServer(cfg *config.Config, logger *zap.Logger) (*server, error) {
	nulls, err := rest.ParseNullsPosition(cfg.Mock.NullsOrder)
	if err != nil {
		return nil, err
	}
	opts := []rest.Option{
		rest.WithBaseURL(cfg.Mock.BaseURL),
		rest.WithNullsOrder(nulls),
		rest.WithLogger(logger.Named("rest")),
	}
	if len(cfg.Mock.Tables) > 0 {
		opts = append(opts, rest.WithTables(cfg.Mock.Tables...))
	}

	s := &server{mock: rest.NewContext(opts...), logger: logger, fixtures: store.Fixtures{}}
	for _, path := range cfg.Mock.Fixtures {
		fx, err := store.LoadFixtures(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		for table, recs := range fx {
			s.fixtures[table] = append(s.fixtures[table], recs...)
		}
	}
	if err := s.mock.SeedFixtures(s.fixtures); err != nil {
		return nil, fmt.Errorf("seed fixtures: %w", err)
	}

	fallback := http.NotFoundHandler()
	if cfg.Mock.Upstream != "" {
		fallback, err = mw.Proxy(cfg.Mock.Upstream, mw.ProxyOptions{
			Logger:             logger.Named("proxy"),
			InsecureSkipVerify: cfg.Mock.InsecureUpstream,
		})
		if err != nil {
			return nil, err
		}
	}

	routerOpts := []httputil.RouterOptions{httputil.WithLogger(logger)}
	if cfg.Mock.TLS.Enabled {
		routerOpts = append(routerOpts, httputil.WithTLS(cfg.Mock.TLS.CertFile, cfg.Mock.TLS.KeyFile))
	}
	s.router = httputil.NewRouter(routerOpts...)
	s.router.Use(
		mw.RequestID,
		mw.LoggerWithOptions(&mw.LoggerOptions{Logger: logger.Named("http"), SkipPaths: []string{"/healthz"}}),
		mw.CORSWithOptions(nil),
	)

	s.router.Handle("GET /healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.Text(w, http.StatusOK, "ok")
	}))
	admin := s.router.Group("/_mock")
	admin.Handle("GET /tables", http.HandlerFunc(s.handleTables))
	admin.Handle("POST /reset", http.HandlerFunc(s.handleReset))
	admin.Handle("POST /seed/{table}", http.HandlerFunc(s.handleSeed))
	s.router.Mount("/", mw.Chain(fallback, s.mock.Middleware))

	return s, nil
}

// handleTables reports the record count of every served table.
func (s *server) handleTables(w http.ResponseWriter, r *http.Request) {
	counts := make(map[string]int)
	for _, name := range s.mock.Tables() {
		counts[name] = s.mock.Store().Len(name)
	}
	httputil.JSON(w, http.StatusOK, counts)
}

// handleReset empties the store and re-seeds the configured fixtures.
func (s *server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.mock.Reset()
	if err := s.mock.SeedFixtures(s.fixtures); err != nil {
		mw.LoggerFromContext(r.Context()).Error("reseed fixtures", zap.Error(err))
		httputil.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSeed writes a record or an array of records to a table without
// going through the REST representation rules.
func (s *server) handleSeed(w http.ResponseWriter, r *http.Request) {
	table := r.PathValue("table")
	if !slices.Contains(s.mock.Tables(), table) {
		httputil.Error(w, http.StatusNotFound, fmt.Sprintf("relation %q is not mocked", table))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 10<<20))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	var recs []store.Record
	switch parsed := gjson.ParseBytes(body); {
	case !gjson.ValidBytes(body):
		httputil.Error(w, http.StatusBadRequest, "body must be a JSON object or array")
		return
	case parsed.IsObject():
		var rec store.Record
		err = json.Unmarshal(body, &rec)
		recs = []store.Record{rec}
	case parsed.IsArray():
		err = json.Unmarshal(body, &recs)
	default:
		httputil.Error(w, http.StatusBadRequest, "body must be a JSON object or array")
		return
	}
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.mock.Seed(table, recs...); err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	mw.LoggerFromContext(r.Context()).Debug("seeded", zap.String("table", table), zap.Int("records", len(recs)))
	httputil.JSON(w, http.StatusCreated, map[string]any{"table": table, "seeded": len(recs)})
}
