package rest

import (
	"net/http"

	"github.com/edgeflare/pgmock/pkg/store"
)

// representation negotiates the response to a committed mutation.
func representation(status int, rows []store.Record, sel []SelectItem, h *Headers) response {
	switch {
	case h.Prefer.WantsMinimal():
		return response{status: http.StatusNoContent, noBody: true}
	case h.SingleObject:
		return singleResponse(status, rows, sel)
	}
	return response{status: status, body: projectAll(rows, sel)}
}

// singleResponse renders rows, already checked by checkSingular, as one
// object or as null when empty. An empty singular result is always 200.
func singleResponse(status int, rows []store.Record, sel []SelectItem) response {
	if len(rows) == 0 {
		return response{status: http.StatusOK}
	}
	return response{status: status, body: project(rows[0], sel)}
}

// checkSingular enforces exactly one row for a single-object Accept.
// plurality=singular tolerates zero rows.
func checkSingular(n int, p *Prefer) error {
	if n == 1 || (n == 0 && p.WantsSingular()) {
		return nil
	}
	return singularError(n)
}

func projectAll(rows []store.Record, sel []SelectItem) []store.Record {
	out := make([]store.Record, len(rows))
	for i, rec := range rows {
		out[i] = project(rec, sel)
	}
	return out
}
