package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Coerce converts v to the Go representation of col's type:
// string, float64, bool, []string, any JSON value, or an RFC 3339 string.
// nil is accepted for nullable columns only.
func Coerce(col Column, v any) (any, error) {
	if v == nil {
		if !col.IsNullable {
			return nil, &pgconn.PgError{
				Code:       "23502",
				Message:    fmt.Sprintf("null value in column %q violates not-null constraint", col.Name),
				ColumnName: col.Name,
			}
		}
		return nil, nil
	}

	var (
		out any
		ok  bool
	)
	switch col.DataType {
	case TypeText:
		out, ok = toText(v)
	case TypeNumber:
		out, ok = toNumber(v)
	case TypeBool:
		out, ok = toBool(v)
	case TypeTextArray:
		out, ok = toTextArray(v)
	case TypeTimestamp:
		out, ok = toTimestamp(v)
	case TypeJSON:
		out, ok = cloneValue(v), true
	default:
		out, ok = cloneValue(v), true
	}
	if !ok {
		return nil, &pgconn.PgError{
			Code:       "22P02",
			Message:    fmt.Sprintf("invalid input syntax for type %s: %q", col.DataType, fmt.Sprint(v)),
			ColumnName: col.Name,
		}
	}
	return out, nil
}

func toText(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	}
	if f, ok := toNumber(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	return "", false
}

func toNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	case interface{ Float64() (float64, error) }:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

func toBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "t", "yes", "on", "1":
			return true, true
		case "false", "f", "no", "off", "0":
			return false, true
		}
	}
	return false, false
}

func toTextArray(v any) ([]string, bool) {
	switch x := v.(type) {
	case []string:
		return append([]string{}, x...), true
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			s, ok := toText(e)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	case string:
		return ParseArrayLiteral(x)
	}
	return nil, false
}

// ParseArrayLiteral parses a Postgres array literal such as {a,"b,c"}.
func ParseArrayLiteral(s string) ([]string, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return nil, false
	}
	body := s[1 : len(s)-1]
	out := []string{}
	if strings.TrimSpace(body) == "" {
		return out, true
	}

	var cur strings.Builder
	inQuote, escaped := false, false
	for _, r := range body {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && inQuote:
			escaped = true
		case r == '"':
			inQuote = !inQuote
		case r == ',' && !inQuote:
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if inQuote {
		return nil, false
	}
	return append(out, strings.TrimSpace(cur.String())), true
}

func toTimestamp(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case time.Time:
		return FormatTime(x), true
	}
	return "", false
}

// cloneValue deep-copies slices and maps so stored records never share
// mutable state with request payloads.
func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[k] = cloneValue(e)
		}
		return m
	case []any:
		s := make([]any, len(x))
		for i, e := range x {
			s[i] = cloneValue(e)
		}
		return s
	case []string:
		return append([]string{}, x...)
	default:
		return v
	}
}
