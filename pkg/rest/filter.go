package rest

import (
	"regexp"
	"strings"

	"github.com/edgeflare/pgmock/pkg/schema"
	"github.com/edgeflare/pgmock/pkg/store"
	"github.com/tidwall/gjson"
)

// Operator is a PostgREST filter operator.
type Operator string

const (
	OpEq       Operator = "eq"
	OpIs       Operator = "is"
	OpLike     Operator = "like"
	OpILike    Operator = "ilike"
	OpContains Operator = "cs"
)

// Known reports whether the mock models op. Unknown operators match every row.
func (op Operator) Known() bool {
	switch op {
	case OpEq, OpIs, OpLike, OpILike, OpContains:
		return true
	}
	return false
}

// Predicate is one column filter such as price=eq.100.
type Predicate struct {
	pattern  *regexp.Regexp
	contains *Value
	Column   string
	Operator Operator
	Operand  string
}

// ParsePredicate parses expr of the form operator.operand for column.
// An expr without a dot yields an unknown operator.
func ParsePredicate(column, expr string) Predicate {
	op, operand, _ := strings.Cut(expr, ".")
	p := Predicate{
		Column:   column,
		Operator: Operator(op),
		Operand:  operand,
	}

	switch p.Operator {
	case OpLike:
		p.pattern = likePattern(operand, false)
	case OpILike:
		p.pattern = likePattern(operand, true)
	case OpContains:
		v := containsOperand(operand)
		p.contains = &v
	}
	return p
}

// Match evaluates p against rec. Absent columns read as null.
func (p Predicate) Match(rec store.Record) bool {
	v := ValueOf(rec[p.Column])

	switch p.Operator {
	case OpEq:
		if p.Operand == "null" {
			return v.IsNull()
		}
		return v.EqualsText(p.Operand)
	case OpIs:
		switch strings.ToLower(p.Operand) {
		case "null":
			return v.IsNull()
		case "true":
			return v.Kind() == KindBool && v.b
		case "false":
			return v.Kind() == KindBool && !v.b
		}
		return false
	case OpLike, OpILike:
		if v.IsNull() {
			return false
		}
		return p.pattern.MatchString(v.String())
	case OpContains:
		return v.ContainsAll(*p.contains)
	}
	return true
}

func (p Predicate) String() string {
	return p.Column + "=" + string(p.Operator) + "." + p.Operand
}

// likePattern translates a LIKE pattern into an anchored regexp. % matches
// any sequence and _ a single character; everything else is literal.
func likePattern(pattern string, fold bool) *regexp.Regexp {
	var b strings.Builder
	if fold {
		b.WriteString("(?is)^")
	} else {
		b.WriteString("(?s)^")
	}
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

// containsOperand parses the right side of cs: a Postgres array literal
// {a,b}, a JSON array, or a JSON object for jsonb containment.
func containsOperand(operand string) Value {
	operand = strings.TrimSpace(operand)
	if gjson.Valid(operand) {
		res := gjson.Parse(operand)
		if res.IsArray() || res.IsObject() {
			return ValueOf(res.Value())
		}
	}
	if elems, ok := schema.ParseArrayLiteral(operand); ok {
		return ValueOf(elems)
	}
	return ValueOf([]string{operand})
}
