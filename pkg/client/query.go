package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/edgeflare/pgmock/pkg/httputil"
	json "github.com/goccy/go-json"
)

type param struct{ key, value string }

// Query builds and executes one request. Builder methods record the first
// encoding error and Execute returns it.
type Query struct {
	client  *Client
	headers http.Header
	body    any
	err     error
	table   string
	method  string
	columns string
	params  []param
	orders  []string
	prefer  []string
	limit   *int
	offset  *int
}

// Select sets the projection, e.g. "id,title,cost:price".
func (q *Query) Select(columns string) *Query {
	q.columns = columns
	return q
}

// Insert posts v, an object or a slice of objects.
func (q *Query) Insert(v any) *Query {
	q.method = http.MethodPost
	q.body = v
	return q.Returning()
}

// Update patches every row matching the filters with v.
func (q *Query) Update(v any) *Query {
	q.method = http.MethodPatch
	q.body = v
	return q.Returning()
}

// Delete removes every row matching the filters.
func (q *Query) Delete() *Query {
	q.method = http.MethodDelete
	return q.Returning()
}

// Returning asks mutations to answer with the affected rows.
func (q *Query) Returning() *Query {
	return q.setPrefer("return", "representation")
}

// Minimal asks mutations to answer 204 without a body.
func (q *Query) Minimal() *Query {
	return q.setPrefer("return", "minimal")
}

func (q *Query) filter(column, op, operand string) *Query {
	q.params = append(q.params, param{column, op + "." + operand})
	return q
}

// Eq matches rows whose column equals v; a nil v matches null.
func (q *Query) Eq(column string, v any) *Query {
	if v == nil {
		return q.filter(column, "eq", "null")
	}
	return q.filter(column, "eq", fmt.Sprint(v))
}

// Is matches null, true or false.
func (q *Query) Is(column string, v *bool) *Query {
	if v == nil {
		return q.filter(column, "is", "null")
	}
	return q.filter(column, "is", strconv.FormatBool(*v))
}

func (q *Query) Like(column, pattern string) *Query {
	return q.filter(column, "like", pattern)
}

func (q *Query) ILike(column, pattern string) *Query {
	return q.filter(column, "ilike", pattern)
}

// Contains matches rows whose array column holds every element of values,
// or whose json column contains the object values.
func (q *Query) Contains(column string, values any) *Query {
	b, err := json.Marshal(values)
	if err != nil {
		q.err = errors.Join(q.err, fmt.Errorf("contains %s: %w", column, err))
		return q
	}
	return q.filter(column, "cs", string(b))
}

// Or adds a group matching rows that satisfy any clause, each written as
// "column.op.value", "and(...)" or "or(...)".
func (q *Query) Or(clauses ...string) *Query {
	q.params = append(q.params, param{"or", "(" + strings.Join(clauses, ",") + ")"})
	return q
}

// And adds a group matching rows that satisfy every clause.
func (q *Query) And(clauses ...string) *Query {
	q.params = append(q.params, param{"and", "(" + strings.Join(clauses, ",") + ")"})
	return q
}

// OrderOption modifies an Order term.
type OrderOption string

const (
	Desc       OrderOption = "desc"
	Asc        OrderOption = "asc"
	NullsFirst OrderOption = "nullsfirst"
	NullsLast  OrderOption = "nullslast"
)

// Order appends a sort key; keys apply in the order added.
func (q *Query) Order(column string, opts ...OrderOption) *Query {
	term := column
	for _, o := range opts {
		term += "." + string(o)
	}
	q.orders = append(q.orders, term)
	return q
}

func (q *Query) Limit(n int) *Query {
	q.limit = &n
	return q
}

func (q *Query) Offset(n int) *Query {
	q.offset = &n
	return q
}

// Range requests rows from through to, inclusive, via the Range header.
func (q *Query) Range(from, to int) *Query {
	q.headers.Set("Range-Unit", "items")
	q.headers.Set("Range", fmt.Sprintf("%d-%d", from, to))
	return q
}

// Single expects exactly one row; anything else fails with a 406 Error.
func (q *Query) Single() *Query {
	q.headers.Set("Accept", "application/vnd.pgrst.object+json")
	return q
}

// MaybeSingle is Single except that zero rows decode as null.
func (q *Query) MaybeSingle() *Query {
	q.Single()
	return q.setPrefer("plurality", "singular")
}

func (q *Query) setPrefer(key, value string) *Query {
	for i, p := range q.prefer {
		if strings.HasPrefix(p, key+"=") {
			q.prefer[i] = key + "=" + value
			return q
		}
	}
	q.prefer = append(q.prefer, key+"="+value)
	return q
}

// URL returns the request URL the query resolves to.
func (q *Query) URL() string {
	values := url.Values{}
	if q.columns != "" {
		values.Set("select", q.columns)
	}
	for _, p := range q.params {
		values.Add(p.key, p.value)
	}
	if len(q.orders) > 0 {
		values.Set("order", strings.Join(q.orders, ","))
	}
	if q.limit != nil {
		values.Set("limit", strconv.Itoa(*q.limit))
	}
	if q.offset != nil {
		values.Set("offset", strconv.Itoa(*q.offset))
	}

	u := q.client.restURL + "/" + url.PathEscape(q.table)
	if enc := values.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

// Result is a successful response.
type Result struct {
	Body         []byte
	ContentRange string
	Status       int
}

// Execute sends the query. Responses with status >= 400 return an *Error.
func (q *Query) Execute(ctx context.Context) (*Result, error) {
	if q.err != nil {
		return nil, q.err
	}

	headers := q.headers.Clone()
	if len(q.prefer) > 0 {
		headers.Set("Prefer", strings.Join(q.prefer, ","))
	}

	cfg := httputil.DefaultRequestConfig(q.method, q.URL())
	cfg.Client = q.client.http
	cfg.Logger = q.client.logger
	cfg.Headers = headers
	cfg.RetryEnabled = q.client.maxRetries > 0
	cfg.MaxRetries = q.client.maxRetries

	resp, err := httputil.Request(ctx, cfg, q.body)
	if err != nil {
		var statusErr *httputil.StatusError
		if errors.As(err, &statusErr) {
			return nil, parseError(statusErr.StatusCode, statusErr.Body)
		}
		return nil, fmt.Errorf("%s %s: %w", q.method, q.table, err)
	}
	return &Result{
		Status:       resp.StatusCode,
		Body:         resp.Body,
		ContentRange: resp.Headers.Get("Content-Range"),
	}, nil
}

// ExecuteInto sends the query and decodes the body into dest. An empty body
// (204) leaves dest untouched.
func (q *Query) ExecuteInto(ctx context.Context, dest any) (*Result, error) {
	res, err := q.Execute(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Body) == 0 {
		return res, nil
	}
	if err := json.Unmarshal(res.Body, dest); err != nil {
		return res, fmt.Errorf("unmarshal response: %w", err)
	}
	return res, nil
}
