package rest

import (
	"fmt"

	"github.com/edgeflare/pgmock/pkg/store"
)

// Result is the window of rows a read returns.
type Result struct {
	Rows  []store.Record
	Start int // offset of Rows[0] within the filtered set
	Total int // filtered row count before pagination
}

// ContentRange renders the Content-Range header for r.
func (r Result) ContentRange() string {
	switch {
	case r.Total == 0:
		return "0-0/0"
	case len(r.Rows) == 0:
		return fmt.Sprintf("*/%d", r.Total)
	}
	return fmt.Sprintf("%d-%d/%d", r.Start, r.Start+len(r.Rows)-1, r.Total)
}

// Filter returns the rows matching q, keeping their order.
func Filter(rows []store.Record, q QueryParams) []store.Record {
	out := make([]store.Record, 0, len(rows))
	for _, rec := range rows {
		if q.Match(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// Execute filters, orders and paginates rows. limit/offset take precedence
// over rng; with neither, every matching row is returned.
func Execute(rows []store.Record, q QueryParams, rng *Range) Result {
	matched := Filter(rows, q)
	sortRecords(matched, q.Order)

	total := len(matched)
	start, end := 0, total
	switch {
	case q.Limit >= 0 || q.Offset >= 0:
		start = min(max(q.Offset, 0), total)
		if q.Limit >= 0 && q.Limit < total-start {
			end = start + q.Limit
		}
	case rng != nil:
		start = min(rng.Start, total)
		if rng.End >= 0 && rng.End < total-1 {
			end = rng.End + 1
		}
	}
	end = max(end, start)

	return Result{Rows: matched[start:end], Start: start, Total: total}
}
