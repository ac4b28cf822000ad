package rest

import (
	"cmp"
	"fmt"
	"math"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Kind tags the type held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value is a record field lifted into a small tagged union so that filter
// comparison does not depend on the dynamic Go type stored in the record.
type Value struct {
	obj  map[string]any
	str  string
	arr  []Value
	num  float64
	kind Kind
	b    bool
}

func NullValue() Value {
	return Value{kind: KindNull}
}

func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

func NumberValue(n float64) Value {
	return Value{kind: KindNumber, num: n}
}

func BoolValue(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// ValueOf lifts a decoded JSON or record value. Types outside the record
// model are lifted by their fmt representation.
func ValueOf(v any) Value {
	switch x := v.(type) {
	case nil:
		return NullValue()
	case Value:
		return x
	case string:
		return StringValue(x)
	case bool:
		return BoolValue(x)
	case float64:
		return NumberValue(x)
	case float32:
		return NumberValue(float64(x))
	case int:
		return NumberValue(float64(x))
	case int64:
		return NumberValue(float64(x))
	case []string:
		arr := make([]Value, len(x))
		for i, s := range x {
			arr[i] = StringValue(s)
		}
		return Value{kind: KindArray, arr: arr}
	case []any:
		arr := make([]Value, len(x))
		for i, e := range x {
			arr[i] = ValueOf(e)
		}
		return Value{kind: KindArray, arr: arr}
	case map[string]any:
		return Value{kind: KindObject, obj: x}
	case interface{ Float64() (float64, error) }:
		if f, err := x.Float64(); err == nil {
			return NumberValue(f)
		}
	}
	return StringValue(fmt.Sprint(v))
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.kind == KindNull
}

func (v Value) empty() bool {
	switch v.kind {
	case KindArray:
		return len(v.arr) == 0
	case KindObject:
		return len(v.obj) == 0
	}
	return false
}

// String is the canonical text form used for every coerced comparison:
// numbers in shortest decimal form, booleans as true/false, null as "null",
// arrays as a Postgres array literal and objects as JSON.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindString:
		return v.str
	case KindNumber:
		if math.IsInf(v.num, 0) || math.IsNaN(v.num) {
			return strconv.FormatFloat(v.num, 'g', -1, 64)
		}
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, e := range v.arr {
			parts[i] = e.String()
		}
		return "{" + strings.Join(parts, ",") + "}"
	case KindObject:
		b, err := json.Marshal(v.obj)
		if err != nil {
			return fmt.Sprint(v.obj)
		}
		return string(b)
	}
	return ""
}

// EqualsText reports whether the canonical form of v equals operand.
// Null never equals a text operand.
func (v Value) EqualsText(operand string) bool {
	if v.IsNull() {
		return false
	}
	return v.String() == operand
}

// Equal compares two values by kind and canonical form.
func (v Value) Equal(o Value) bool {
	if v.kind == KindNumber && o.kind == KindNumber {
		return v.num == o.num
	}
	if v.IsNull() || o.IsNull() {
		return v.IsNull() && o.IsNull()
	}
	return v.String() == o.String()
}

// ContainsAll reports whether every element of want appears in the array v.
// For objects, every key of want must be present with an equal value.
// An empty want ({} or []) is contained by any array or object.
func (v Value) ContainsAll(want Value) bool {
	switch {
	case (v.kind == KindArray || v.kind == KindObject) && want.empty():
		return true
	case v.kind == KindArray && want.kind == KindArray:
		for _, w := range want.arr {
			found := false
			for _, e := range v.arr {
				if e.Equal(w) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	case v.kind == KindObject && want.kind == KindObject:
		for k, w := range want.obj {
			e, ok := v.obj[k]
			if !ok {
				return false
			}
			ev, wv := ValueOf(e), ValueOf(w)
			if ev.kind == KindObject || ev.kind == KindArray {
				if !ev.ContainsAll(wv) {
					return false
				}
				continue
			}
			if !ev.Equal(wv) {
				return false
			}
		}
		return true
	}
	return false
}

// Compare orders two non-null values: numerically when both are numbers,
// otherwise by canonical text.
func Compare(a, b Value) int {
	if a.kind == KindNumber && b.kind == KindNumber {
		return cmp.Compare(a.num, b.num)
	}
	return strings.Compare(a.String(), b.String())
}
