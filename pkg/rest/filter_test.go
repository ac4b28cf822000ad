package rest

import (
	"testing"

	"github.com/edgeflare/pgmock/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueString(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "null"},
		{"abc", "abc"},
		{float64(100), "100"},
		{1.5, "1.5"},
		{int64(7), "7"},
		{true, "true"},
		{[]string{"a", "b"}, "{a,b}"},
		{[]any{"a", float64(2)}, "{a,2}"},
		{map[string]any{"k": "v"}, `{"k":"v"}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValueOf(tt.in).String(), "%#v", tt.in)
	}
}

func TestValueEquality(t *testing.T) {
	assert.True(t, ValueOf(float64(100)).EqualsText("100"))
	assert.False(t, ValueOf(float64(100)).EqualsText("100.0"))
	assert.True(t, ValueOf(false).EqualsText("false"))
	assert.False(t, NullValue().EqualsText("null"), "null never equals a text operand")

	assert.True(t, NumberValue(1).Equal(ValueOf(1)))
	assert.True(t, NullValue().Equal(ValueOf(nil)))
	assert.False(t, NullValue().Equal(StringValue("")))
	assert.True(t, StringValue("2").Equal(NumberValue(2)))
}

func TestValueContainsAll(t *testing.T) {
	tags := ValueOf([]any{"new", "sale", "5g"})
	assert.True(t, tags.ContainsAll(ValueOf([]string{"sale", "new"})))
	assert.True(t, tags.ContainsAll(ValueOf([]string{})))
	assert.False(t, tags.ContainsAll(ValueOf([]string{"sale", "used"})))
	assert.False(t, StringValue("sale").ContainsAll(ValueOf([]string{"sale"})))

	meta := ValueOf(map[string]any{"color": "black", "spec": map[string]any{"ram": float64(8), "gb": float64(256)}})
	assert.True(t, meta.ContainsAll(ValueOf(map[string]any{"color": "black"})))
	assert.True(t, meta.ContainsAll(ValueOf(map[string]any{"spec": map[string]any{"ram": float64(8)}})))
	assert.False(t, meta.ContainsAll(ValueOf(map[string]any{"color": "white"})))
	assert.False(t, meta.ContainsAll(ValueOf(map[string]any{"missing": nil})))
}

func TestCompare(t *testing.T) {
	assert.Equal(t, -1, Compare(NumberValue(9), NumberValue(10)), "numbers compare numerically")
	assert.Equal(t, 1, Compare(StringValue("9"), StringValue("10")), "strings compare lexically")
	assert.Equal(t, 0, Compare(StringValue("a"), StringValue("a")))
}

func TestPredicateMatch(t *testing.T) {
	rec := store.Record{
		"id":        "P1",
		"title":     "a test case",
		"price":     float64(100),
		"sold":      false,
		"seller_id": nil,
		"tags":      []string{"new", "5g"},
		"metadata":  map[string]any{"color": "black"},
		"note":      "50% off_now",
	}

	tests := []struct {
		column, expr string
		want         bool
	}{
		{"price", "eq.100", true},
		{"price", "eq.99", false},
		{"id", "eq.P1", true},
		{"sold", "eq.false", true},
		{"seller_id", "eq.null", true},
		{"title", "eq.null", false},
		{"seller_id", "is.null", true},
		{"title", "is.null", false},
		{"sold", "is.false", true},
		{"sold", "is.true", false},
		{"seller_id", "is.false", false},
		{"sold", "is.unknown", false},
		{"missing", "is.null", true},
		{"title", "ilike.%Test%", true},
		{"title", "like.%Test%", false},
		{"title", "like.%test%", true},
		{"title", "like.a_test%", true},
		{"title", "like.a_test", false},
		{"title", "ilike.A TEST CASE", true},
		{"note", "like.50% off_now", true},
		{"note", "like.50.*", false},
		{"seller_id", "ilike.%", false},
		{"tags", "cs.{new}", true},
		{"tags", "cs.{new,5g}", true},
		{"tags", "cs.{new,used}", false},
		{"tags", "cs.{}", true},
		{"tags", "cs.[]", true},
		{"metadata", "cs.{}", true},
		{"title", "cs.{}", false},
		{"tags", `cs.["5g"]`, true},
		{"metadata", `cs.{"color":"black"}`, true},
		{"metadata", `cs.{"color":"white"}`, false},
		{"price", "gt.1000", true},
		{"price", "100", true},
	}
	for _, tt := range tests {
		p := ParsePredicate(tt.column, tt.expr)
		assert.Equal(t, tt.want, p.Match(rec), "%s=%s", tt.column, tt.expr)
	}
}

func TestLikeEscapesRegexp(t *testing.T) {
	p := ParsePredicate("title", "like.(a+b)*[c]")
	assert.True(t, p.Match(store.Record{"title": "(a+b)*[c]"}))
	assert.False(t, p.Match(store.Record{"title": "aab[c]"}))
}

func TestParseLogic(t *testing.T) {
	active := store.Record{"status": "active", "price": float64(1), "tags": []string{"a", "b"}}
	edited := store.Record{"status": "edited", "price": float64(2), "tags": []string{"c"}}
	deleted := store.Record{"status": "deleted", "price": float64(3), "tags": []string{}}

	tests := []struct {
		op    LogicOp
		raw   string
		match []bool
	}{
		{LogicOr, "(status.eq.active,status.eq.edited)", []bool{true, true, false}},
		{LogicOr, "(status.eq.deleted,and(status.eq.edited,price.eq.2))", []bool{false, true, true}},
		{LogicOr, "(status.eq.deleted,and(status.eq.edited,price.eq.3))", []bool{false, false, true}},
		{LogicAnd, "(status.eq.active,price.eq.1)", []bool{true, false, false}},
		{LogicAnd, "(price.eq.1,or(status.eq.active,status.eq.deleted))", []bool{true, false, false}},
		{LogicOr, "(tags.cs.{a,b},price.eq.3)", []bool{true, false, true}},
		{LogicOr, `(status.eq."edited",status.like."a,(b)")`, []bool{false, true, false}},
		{LogicOr, "(status.gt.z)", []bool{true, true, true}},
	}
	for _, tt := range tests {
		g, err := ParseLogic(tt.op, tt.raw)
		require.NoError(t, err, tt.raw)
		got := []bool{g.Match(active), g.Match(edited), g.Match(deleted)}
		assert.Equal(t, tt.match, got, tt.raw)
	}
}

func TestParseLogicQuotedOperand(t *testing.T) {
	g, err := ParseLogic(LogicOr, `(title.eq."a, (b)",title.eq.x)`)
	require.NoError(t, err)
	require.Len(t, g.Children, 2)
	p, ok := g.Children[0].(Predicate)
	require.True(t, ok)
	assert.Equal(t, "a, (b)", p.Operand)
	assert.True(t, g.Match(store.Record{"title": "a, (b)"}))
}

func TestParseLogicErrors(t *testing.T) {
	for _, raw := range []string{
		"",
		"status.eq.active",
		"(status.eq.active",
		"(status.eq.active))",
		"(status)",
		"(,status.eq.a)",
		`(status.eq."open)`,
		"(and(status.eq.a)",
	} {
		_, err := ParseLogic(LogicOr, raw)
		require.Error(t, err, raw)
		status, body := toAPIError(err)
		assert.Equal(t, 400, status, raw)
		assert.Equal(t, CodeParseError, body.Code, raw)
	}
}
