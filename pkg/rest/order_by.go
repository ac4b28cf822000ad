package rest

import (
	"fmt"
	"slices"
	"strings"

	"github.com/edgeflare/pgmock/pkg/store"
)

// NullsPosition places null values before or after every non-null value,
// independent of sort direction.
type NullsPosition string

const (
	NullsFirst NullsPosition = "first"
	NullsLast  NullsPosition = "last"
)

// ParseNullsPosition accepts first/last and the nullsfirst/nullslast spellings.
func ParseNullsPosition(s string) (NullsPosition, error) {
	switch strings.TrimPrefix(strings.ToLower(s), "nulls") {
	case "first":
		return NullsFirst, nil
	case "last":
		return NullsLast, nil
	}
	return "", fmt.Errorf("invalid nulls position %q", s)
}

type OrderParam struct {
	Column        string
	Direction     string // asc or desc
	NullsPosition NullsPosition
}

// parseOrderParam parses col[.asc|.desc][.nullsfirst|.nullslast] terms
// separated by commas. Modifiers are read from the end so column names
// containing dots survive. nulls fills in an absent nulls modifier.
func parseOrderParam(order string, nulls NullsPosition) []OrderParam {
	parts := splitOrderParamString(order)
	result := make([]OrderParam, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		o := OrderParam{Column: part, Direction: "asc", NullsPosition: nulls}
		if col, mod, ok := cutLast(o.Column); ok {
			switch mod {
			case "nullsfirst":
				o.Column, o.NullsPosition = col, NullsFirst
			case "nullslast":
				o.Column, o.NullsPosition = col, NullsLast
			}
		}
		if col, mod, ok := cutLast(o.Column); ok && (mod == "asc" || mod == "desc") {
			o.Column, o.Direction = col, mod
		}

		result = append(result, o)
	}

	return result
}

func cutLast(s string) (before, after string, found bool) {
	i := strings.LastIndexByte(s, '.')
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+1:], true
}

// splitOrderParamString splits the order string by commas, ignoring commas inside parentheses
func splitOrderParamString(order string) []string {
	var parts []string
	var current strings.Builder
	parenDepth := 0

	for _, char := range order {
		switch char {
		case '(':
			parenDepth++
		case ')':
			parenDepth--
		case ',':
			if parenDepth == 0 {
				parts = append(parts, current.String())
				current.Reset()
				continue
			}
		}
		current.WriteRune(char)
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}

	return parts
}

// sortRecords stable-sorts recs by each key in turn. Ties on every key keep
// their original relative order.
func sortRecords(recs []store.Record, order []OrderParam) {
	if len(order) == 0 {
		return
	}
	slices.SortStableFunc(recs, func(a, b store.Record) int {
		for _, o := range order {
			if c := o.compare(a, b); c != 0 {
				return c
			}
		}
		return 0
	})
}

func (o OrderParam) compare(a, b store.Record) int {
	va, vb := ValueOf(a[o.Column]), ValueOf(b[o.Column])
	switch {
	case va.IsNull() && vb.IsNull():
		return 0
	case va.IsNull():
		if o.NullsPosition == NullsFirst {
			return -1
		}
		return 1
	case vb.IsNull():
		if o.NullsPosition == NullsFirst {
			return 1
		}
		return -1
	}

	c := Compare(va, vb)
	if o.Direction == "desc" {
		return -c
	}
	return c
}
