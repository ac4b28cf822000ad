package metrics

import (
	"cmp"
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/edgeflare/pgmock/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	MockRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgmock_requests_total",
			Help: "Total number of mocked requests by table, method and status",
		},
		[]string{"table", "method", "status"},
	)

	MockRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pgmock_request_duration_seconds",
			Help:    "Duration of mocked request handling",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table", "method"},
	)

	PassthroughRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgmock_passthrough_requests_total",
			Help: "Total number of requests declined by the mock and sent upstream",
		},
		[]string{"method"},
	)

	StoreRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pgmock_store_records",
			Help: "Number of records currently held per table",
		},
		[]string{"table"},
	)

	StoreChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgmock_store_changes_total",
			Help: "Total number of committed store changes by table and op",
		},
		[]string{"table", "op"},
	)
)

// ObserveRequest records one mocked request.
func ObserveRequest(table, method string, status int, d time.Duration) {
	MockRequests.WithLabelValues(table, method, strconv.Itoa(status)).Inc()
	MockRequestDuration.WithLabelValues(table, method).Observe(d.Seconds())
}

// TrackStore keeps StoreRecords and StoreChanges current for s.
func TrackStore(s *store.Store) {
	for _, name := range s.Tables() {
		StoreRecords.WithLabelValues(name).Set(float64(s.Len(name)))
	}
	s.Observe(func(c store.Change) {
		StoreChanges.WithLabelValues(c.Table, string(c.Op)).Inc()
		StoreRecords.WithLabelValues(c.Table).Set(float64(s.Len(c.Table)))
	})
}

type PromServerOpts struct {
	Logger            *zap.Logger
	Addr              string
	Path              string        // Path for metrics endpoint, defaults to "/metrics"
	ShutdownTimeout   time.Duration // Timeout for server shutdown, defaults to 5 seconds
	ReadHeaderTimeout time.Duration // Timeout for reading request headers, defaults to 3 seconds
}

func defaultPrometheusServerOptions() PromServerOpts {
	return PromServerOpts{
		Addr:              ":9100",
		Path:              "/metrics",
		ShutdownTimeout:   5 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// StartPrometheusServer starts a Prometheus metrics server with the given options
// The server gracefully shutdown when the provided context is canceled
func StartPrometheusServer(ctx context.Context, wg *sync.WaitGroup, opts *PromServerOpts) {
	effectiveOpts := defaultPrometheusServerOptions()
	if opts != nil {
		effectiveOpts.Addr = cmp.Or(opts.Addr, effectiveOpts.Addr)
		effectiveOpts.Path = cmp.Or(opts.Path, effectiveOpts.Path)
		effectiveOpts.ShutdownTimeout = cmp.Or(opts.ShutdownTimeout, effectiveOpts.ShutdownTimeout)
		effectiveOpts.ReadHeaderTimeout = cmp.Or(opts.ReadHeaderTimeout, effectiveOpts.ReadHeaderTimeout)
		effectiveOpts.Logger = opts.Logger
	}
	logger := effectiveOpts.Logger
	if logger == nil {
		logger = zap.L()
	}

	mux := http.NewServeMux()
	mux.Handle(effectiveOpts.Path, promhttp.Handler())
	server := &http.Server{
		Addr:              effectiveOpts.Addr,
		Handler:           mux,
		ReadHeaderTimeout: effectiveOpts.ReadHeaderTimeout,
	}

	serverClosed := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("starting metrics server", zap.String("addr", effectiveOpts.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
		}
		close(serverClosed)
	}()

	go func() {
		<-ctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), effectiveOpts.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("error shutting down metrics server", zap.Error(err))
		}

		select {
		case <-serverClosed:
			logger.Info("metrics server shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("metrics server shutdown timed out")
		}
	}()
}
