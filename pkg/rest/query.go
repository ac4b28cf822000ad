package rest

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/edgeflare/pgmock/pkg/store"
)

// QueryParams holds parsed query parameters in a structured way
type QueryParams struct {
	Select  []SelectItem // Projected columns; nil selects every column
	Order   []OrderParam // Sort keys in priority order
	Filters []Predicate  // Column filters, AND-ed
	Groups  []Group      // or=/and= logic trees, each AND-ed with the rest
	Limit   int          // -1 when absent
	Offset  int          // -1 when absent
}

// SelectItem is one entry of select=, optionally renamed with alias:column.
type SelectItem struct {
	Column string
	Alias  string
}

// ParseQuery parses the query string of a table request. nulls is the null
// placement used by order terms without an explicit modifier.
func ParseQuery(values url.Values, nulls NullsPosition) (QueryParams, error) {
	params := QueryParams{Limit: -1, Offset: -1}

	if select_ := values.Get("select"); select_ != "" {
		params.Select = parseSelectParam(select_)
	}

	for _, order := range values["order"] {
		params.Order = append(params.Order, parseOrderParam(order, nulls)...)
	}

	var err error
	if params.Limit, err = parseIntParam(values, "limit"); err != nil {
		return params, err
	}
	if params.Offset, err = parseIntParam(values, "offset"); err != nil {
		return params, err
	}

	for _, op := range []LogicOp{LogicOr, LogicAnd} {
		for _, raw := range values[string(op)] {
			g, err := ParseLogic(op, raw)
			if err != nil {
				return params, err
			}
			params.Groups = append(params.Groups, g)
		}
	}

	// sorted so filters evaluate and log in a stable order
	keys := make([]string, 0, len(values))
	for key := range values {
		if !isReservedParam(key) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	for _, key := range keys {
		for _, v := range values[key] {
			params.Filters = append(params.Filters, ParsePredicate(key, v))
		}
	}

	return params, nil
}

// Match reports whether rec satisfies every filter and every logic group.
func (q QueryParams) Match(rec store.Record) bool {
	for _, f := range q.Filters {
		if !f.Match(rec) {
			return false
		}
	}
	for _, g := range q.Groups {
		if !g.Match(rec) {
			return false
		}
	}
	return true
}

// parseSelectParam parses select=. Embedded resources like seller:users(*)
// are not modeled and are skipped; ::casts are dropped.
func parseSelectParam(select_ string) []SelectItem {
	var items []SelectItem
	for _, part := range splitOrderParamString(select_) {
		part = strings.TrimSpace(part)
		if part == "" || strings.Contains(part, "(") {
			continue
		}
		if part == "*" {
			return nil
		}
		alias, column, ok := strings.Cut(part, ":")
		if !ok || strings.HasPrefix(column, ":") {
			alias, column = "", part
		}
		column, _, _ = strings.Cut(column, "::")
		if alias == "" {
			alias = column
		}
		items = append(items, SelectItem{Column: column, Alias: alias})
	}
	return items
}

// project applies select= to rec. A nil selection returns rec unchanged.
func project(rec store.Record, sel []SelectItem) store.Record {
	if sel == nil {
		return rec
	}
	out := make(store.Record, len(sel))
	for _, item := range sel {
		out[item.Alias] = rec[item.Column]
	}
	return out
}

func parseIntParam(values url.Values, key string) (int, error) {
	s := values.Get(key)
	if s == "" {
		return -1, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return -1, newError(CodeParseError,
			fmt.Sprintf("%q (line 1, column 1)", s),
			fmt.Sprintf("%s must be a non-negative integer", key))
	}
	return n, nil
}

// isReservedParam reports whether name is a query keyword rather than a column filter.
func isReservedParam(name string) bool {
	switch name {
	case "select", "order", "limit", "offset", "range", "rangeMin", "rangeMax", "or", "and", "columns", "on_conflict":
		return true
	}
	return false
}
