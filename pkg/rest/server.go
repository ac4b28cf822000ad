package rest

import (
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/edgeflare/pgmock/pkg/httputil"
	"github.com/edgeflare/pgmock/pkg/metrics"
	"github.com/edgeflare/pgmock/pkg/schema"
	"github.com/edgeflare/pgmock/pkg/store"
	"go.uber.org/zap"
)

// DefaultBaseURL is the path prefix tables are served under.
const DefaultBaseURL = "/rest/v1"

type Option func(*Engine)

// WithBaseURL sets the path prefix; tables are served at <baseURL>/<table>.
func WithBaseURL(baseURL string) Option {
	return func(e *Engine) {
		e.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithNullsOrder sets where nulls sort when an order term has no
// nullsfirst/nullslast modifier. The default is NullsLast.
func WithNullsOrder(nulls NullsPosition) Option {
	return func(e *Engine) {
		e.nulls = nulls
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTables restricts the mocked tables to names. Every name must be both
// registered and held by the store to be served.
func WithTables(names ...string) Option {
	return func(e *Engine) {
		e.only = make(map[string]bool, len(names))
		for _, n := range names {
			e.only[n] = true
		}
	}
}

// Engine serves PostgREST-style requests from an in-memory store.
type Engine struct {
	store    *store.Store
	registry *schema.Registry
	logger   *zap.Logger
	only     map[string]bool
	baseURL  string
	nulls    NullsPosition
}

// NewEngine returns an Engine serving the tables of reg that st holds.
func NewEngine(st *store.Store, reg *schema.Registry, opts ...Option) *Engine {
	e := &Engine{
		store:    st,
		registry: reg,
		logger:   zap.NewNop(),
		baseURL:  DefaultBaseURL,
		nulls:    NullsLast,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Store() *store.Store {
	return e.store
}

// Tables returns the names of the mocked tables in sorted order.
func (e *Engine) Tables() []string {
	var names []string
	for _, name := range e.store.Tables() {
		if e.serves(name) {
			names = append(names, name)
		}
	}
	return names
}

func (e *Engine) serves(table string) bool {
	if e.only != nil && !e.only[table] {
		return false
	}
	return e.registry.Has(table) && e.store.Has(table)
}

// Match resolves the table r targets. It reports false for paths outside
// <baseURL>/<table>, unserved tables and methods other than
// GET, POST, PATCH and DELETE.
func (e *Engine) Match(r *http.Request) (string, bool) {
	switch r.Method {
	case http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete:
	default:
		return "", false
	}

	rest, ok := strings.CutPrefix(r.URL.Path, e.baseURL+"/")
	if !ok {
		return "", false
	}
	table := strings.TrimSuffix(rest, "/")
	if table == "" || strings.Contains(table, "/") || !e.serves(table) {
		return "", false
	}
	return table, true
}

// Middleware serves matching requests and passes everything else to next.
func (e *Engine) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		table, ok := e.Match(r)
		if !ok {
			metrics.PassthroughRequests.WithLabelValues(r.Method).Inc()
			next.ServeHTTP(w, r)
			return
		}
		e.serve(w, r, table)
	})
}

// ServeHTTP serves matching requests and answers 404 otherwise.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	table, ok := e.Match(r)
	if !ok {
		status, body := toAPIError(newError(CodeUndefinedTable,
			fmt.Sprintf("relation %q is not mocked", strings.TrimPrefix(r.URL.Path, e.baseURL+"/")), ""))
		httputil.JSON(w, status, body)
		return
	}
	e.serve(w, r, table)
}

// Seed normalizes recs and writes them to table directly, bypassing HTTP.
func (e *Engine) Seed(table string, recs ...store.Record) error {
	rows := make([]store.Record, 0, len(recs))
	for _, rec := range recs {
		n, err := e.registry.Normalize(table, rec, nil)
		if err != nil {
			return err
		}
		rows = append(rows, n)
	}
	return e.store.Put(table, rows...)
}

// SeedFixtures seeds every table of fx. Tables the engine does not serve
// are rejected before anything is written.
func (e *Engine) SeedFixtures(fx store.Fixtures) error {
	names := slices.Sorted(maps.Keys(fx))
	for _, name := range names {
		if !e.serves(name) {
			return newError(CodeUndefinedTable, fmt.Sprintf("relation %q is not mocked", name), "")
		}
	}
	for _, name := range names {
		if err := e.Seed(name, fx[name]...); err != nil {
			return fmt.Errorf("seed %s: %w", name, err)
		}
	}
	return nil
}

// Reset empties every table.
func (e *Engine) Reset() {
	e.store.Reset()
	e.logger.Debug("store reset")
}

// response is what a handler produced. A nil body with noBody false is
// written as JSON null.
type response struct {
	body   any
	status int
	noBody bool
}

func (e *Engine) serve(w http.ResponseWriter, r *http.Request, table string) {
	start := time.Now()

	resp, err := e.handle(w, r, table)
	if err != nil {
		status, body := toAPIError(err)
		resp = response{status: status, body: body}
	}

	if resp.noBody {
		w.WriteHeader(resp.status)
	} else {
		httputil.JSON(w, resp.status, resp.body)
	}

	elapsed := time.Since(start)
	metrics.ObserveRequest(table, r.Method, resp.status, elapsed)

	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("table", table),
		zap.String("query", r.URL.RawQuery),
		zap.Int("status", resp.status),
		zap.Duration("duration", elapsed),
	}
	if id, ok := httputil.RequestID(r); ok {
		fields = append(fields, zap.String("request_id", id))
	}
	switch {
	case resp.status >= http.StatusInternalServerError:
		e.logger.Error("mock request failed", append(fields, zap.Error(err))...)
	case err != nil:
		e.logger.Info("mock request rejected", append(fields, zap.Error(err))...)
	default:
		e.logger.Debug("mock request", fields...)
	}
}

func (e *Engine) handle(w http.ResponseWriter, r *http.Request, table string) (response, error) {
	q, err := ParseQuery(r.URL.Query(), e.nulls)
	if err != nil {
		return response{}, err
	}
	h := parseHeaders(r)

	switch r.Method {
	case http.MethodGet:
		return e.handleGet(w, table, q, h)
	case http.MethodPost:
		return e.handlePost(r, table, q, h)
	case http.MethodPatch:
		return e.handlePatch(r, table, q, h)
	default:
		return e.handleDelete(table, q, h)
	}
}

// handleGet processes GET requests to fetch data
func (e *Engine) handleGet(w http.ResponseWriter, table string, q QueryParams, h *Headers) (response, error) {
	rows, err := e.store.Snapshot(table)
	if err != nil {
		return response{}, err
	}

	res := Execute(rows, q, h.Range)
	w.Header().Set("Content-Range", res.ContentRange())

	if h.SingleObject {
		if err := checkSingular(len(res.Rows), h.Prefer); err != nil {
			return response{}, err
		}
		return singleResponse(http.StatusOK, res.Rows, q.Select), nil
	}
	return response{status: http.StatusOK, body: projectAll(res.Rows, q.Select)}, nil
}

// handlePost processes POST requests to insert data
func (e *Engine) handlePost(r *http.Request, table string, q QueryParams, h *Headers) (response, error) {
	objs, err := readBody(r, true)
	if err != nil {
		return response{}, err
	}
	affected, err := e.mutate(table, h, func(tx *store.Txn) ([]store.Record, error) {
		return e.insertRows(tx, objs)
	})
	if err != nil {
		return response{}, err
	}
	return representation(http.StatusCreated, affected, q.Select, h), nil
}

// handlePatch processes PATCH requests to update data
func (e *Engine) handlePatch(r *http.Request, table string, q QueryParams, h *Headers) (response, error) {
	objs, err := readBody(r, false)
	if err != nil {
		return response{}, err
	}
	affected, err := e.mutate(table, h, func(tx *store.Txn) ([]store.Record, error) {
		return e.updateRows(tx, q, objs[0])
	})
	if err != nil {
		return response{}, err
	}
	return representation(http.StatusOK, affected, q.Select, h), nil
}

// handleDelete processes DELETE requests
func (e *Engine) handleDelete(table string, q QueryParams, h *Headers) (response, error) {
	affected, err := e.mutate(table, h, func(tx *store.Txn) ([]store.Record, error) {
		return deleteRows(tx, q), nil
	})
	if err != nil {
		return response{}, err
	}
	return representation(http.StatusOK, affected, q.Select, h), nil
}
