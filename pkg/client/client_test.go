package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/edgeflare/pgmock/internal/testutil/mocktest"
	"github.com/edgeflare/pgmock/pkg/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type phone struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	SellerID *string  `json:"seller_id"`
	Tags     []string `json:"tags"`
	Price    float64  `json:"price"`
}

func newClient(t *testing.T) *client.Client {
	t.Helper()
	c := mocktest.NewContext(t)
	mocktest.SeedMarketplace(t, c)
	return client.New(mocktest.BaseURL+"/rest/v1",
		client.WithHTTPClient(mocktest.Client(t, c)),
		client.WithLogger(zaptest.NewLogger(t)),
		client.WithHeader("apikey", "anon"),
	)
}

func ids(phones []phone) []string {
	out := make([]string, len(phones))
	for i, p := range phones {
		out[i] = p.ID
	}
	return out
}

func TestQueryURL(t *testing.T) {
	c := client.New("https://project.supabase.co/rest/v1/")
	u, err := url.Parse(c.From("phones").
		Select("id,title").
		Eq("seller_id", "U1").
		ILike("title", "%pixel%").
		Or("status.eq.active", "price.gt.100").
		Order("price", client.Desc, client.NullsLast).
		Order("id").
		Limit(10).
		Offset(20).
		URL())
	require.NoError(t, err)

	assert.Equal(t, "/rest/v1/phones", u.Path)
	q := u.Query()
	assert.Equal(t, "id,title", q.Get("select"))
	assert.Equal(t, "eq.U1", q.Get("seller_id"))
	assert.Equal(t, "ilike.%pixel%", q.Get("title"))
	assert.Equal(t, "(status.eq.active,price.gt.100)", q.Get("or"))
	assert.Equal(t, "price.desc.nullslast,id", q.Get("order"))
	assert.Equal(t, "10", q.Get("limit"))
	assert.Equal(t, "20", q.Get("offset"))
}

func TestSelect(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	var got []phone
	res, err := c.From("phones").Eq("seller_id", "U1").Order("price", client.Desc).ExecuteInto(ctx, &got)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "0-1/2", res.ContentRange)
	assert.Equal(t, []string{"P3", "P1"}, ids(got))

	got = nil
	_, err = c.From("phones").Contains("tags", []string{"5g"}).Like("title", "%test%").ExecuteInto(ctx, &got)
	require.NoError(t, err)
	assert.Equal(t, []string{"P1"}, ids(got))

	got = nil
	_, err = c.From("phones").Or("status.eq.edited", "and(seller_id.eq.U1,price.eq.450)").Order("id").ExecuteInto(ctx, &got)
	require.NoError(t, err)
	assert.Equal(t, []string{"P2", "P3"}, ids(got))

	got = nil
	res, err = c.From("phones").Order("id").Range(1, 2).ExecuteInto(ctx, &got)
	require.NoError(t, err)
	assert.Equal(t, []string{"P2", "P3"}, ids(got))
	assert.Equal(t, "1-2/3", res.ContentRange)
}

func TestIsAndEqNull(t *testing.T) {
	c := newClient(t)

	var got []phone
	_, err := c.From("phones").Is("latitude", nil).Order("id").ExecuteInto(context.Background(), &got)
	require.NoError(t, err)
	assert.Equal(t, []string{"P1", "P2"}, ids(got))

	got = nil
	_, err = c.From("phone_inquiries").Eq("parent_id", nil).ExecuteInto(context.Background(), &got)
	require.NoError(t, err)
	assert.Equal(t, []string{"Q1"}, ids(got))
}

func TestSingle(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	var p phone
	_, err := c.From("phones").Eq("id", "P2").Single().ExecuteInto(ctx, &p)
	require.NoError(t, err)
	assert.Equal(t, "iPhone 15", p.Title)

	_, err = c.From("phones").Eq("id", "nope").Single().Execute(ctx)
	var apiErr *client.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotAcceptable, apiErr.Status)
	assert.Equal(t, "PGRST116", apiErr.Code)

	_, err = c.From("phones").Eq("seller_id", "U1").Single().Execute(ctx)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "PGRST117", apiErr.Code)

	res, err := c.From("phones").Eq("id", "nope").MaybeSingle().Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, "null", string(res.Body))
}

func TestMutations(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	var created []phone
	res, err := c.From("phones").Insert(map[string]any{"id": "P9", "title": "Pixel 9", "price": 700}).ExecuteInto(ctx, &created)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, res.Status)
	require.Len(t, created, 1)
	assert.Empty(t, created[0].Tags)
	assert.Equal(t, "Pixel 9", created[0].Title)

	var updated []phone
	_, err = c.From("phones").Update(map[string]any{"price": 650}).Eq("id", "P9").ExecuteInto(ctx, &updated)
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, 650.0, updated[0].Price)
	assert.Equal(t, "Pixel 9", updated[0].Title)

	res, err = c.From("phones").Update(map[string]any{"status": "edited"}).Eq("id", "P9").Minimal().Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, res.Status)
	assert.Empty(t, res.Body)

	var deleted []phone
	_, err = c.From("phones").Delete().Eq("id", "P9").ExecuteInto(ctx, &deleted)
	require.NoError(t, err)
	assert.Equal(t, []string{"P9"}, ids(deleted))

	var rest []phone
	_, err = c.From("phones").Eq("id", "P9").ExecuteInto(ctx, &rest)
	require.NoError(t, err)
	assert.Empty(t, rest)
}

func TestInvalidBody(t *testing.T) {
	c := newClient(t)

	_, err := c.From("phones").Insert("{not json").Execute(context.Background())
	var apiErr *client.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "PGRST102", apiErr.Code)
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "anon", r.Header.Get("apikey"))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Range", "*/0")
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	c := client.New(srv.URL+"/rest/v1", client.WithRetry(2), client.WithHeader("apikey", "anon"))
	res, err := c.From("phones").Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "[]", string(res.Body))
	assert.EqualValues(t, 2, calls.Load())
}

func TestNonPostgRESTError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := client.New(srv.URL).From("phones").Execute(context.Background())
	var apiErr *client.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Empty(t, apiErr.Code)
	assert.Contains(t, apiErr.Message, "gateway down")
}
