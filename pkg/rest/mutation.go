package rest

import (
	"io"
	"net/http"

	"github.com/edgeflare/pgmock/pkg/store"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// maxBodyBytes bounds request bodies read by mutations.
const maxBodyBytes = 10 << 20

// mutate runs plan inside one store transaction. When a single object is
// requested the row count is checked before commit, so a 406 leaves the
// table untouched.
func (e *Engine) mutate(table string, h *Headers, plan func(tx *store.Txn) ([]store.Record, error)) ([]store.Record, error) {
	var affected []store.Record
	err := e.store.Txn(table, func(tx *store.Txn) error {
		rows, err := plan(tx)
		if err != nil {
			return err
		}
		if h.SingleObject {
			if err := checkSingular(len(rows), h.Prefer); err != nil {
				return err
			}
		}
		affected = rows
		return nil
	})
	return affected, err
}

// insertRows normalizes each object and stages it keyed by its id. An
// existing row with the same id is replaced.
func (e *Engine) insertRows(tx *store.Txn, objs []map[string]any) ([]store.Record, error) {
	out := make([]store.Record, 0, len(objs))
	for _, obj := range objs {
		rec, err := e.registry.Normalize(tx.Table(), obj, nil)
		if err != nil {
			return nil, err
		}
		if err := tx.Put(rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// updateRows merges patch into every row matching q's filters. Ordering and
// pagination do not apply to target selection.
func (e *Engine) updateRows(tx *store.Txn, q QueryParams, patch map[string]any) ([]store.Record, error) {
	targets := Filter(tx.Rows(), q)
	out := make([]store.Record, 0, len(targets))
	for _, existing := range targets {
		rec, err := e.registry.Normalize(tx.Table(), patch, existing)
		if err != nil {
			return nil, err
		}
		if err := tx.Put(rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// deleteRows stages the removal of every row matching q's filters and
// returns the removed rows.
func deleteRows(tx *store.Txn, q QueryParams) []store.Record {
	targets := Filter(tx.Rows(), q)
	for _, rec := range targets {
		if id, ok := rec.ID(); ok {
			tx.Delete(id)
		}
	}
	return targets
}

// readBody decodes a JSON mutation body. Inserts accept an object or an
// array of objects; updates accept a single object.
func readBody(r *http.Request, allowArray bool) ([]map[string]any, error) {
	if r.Body == nil {
		return nil, invalidBody("")
	}
	data, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err != nil {
		return nil, invalidBody(err.Error())
	}
	if !gjson.ValidBytes(data) {
		return nil, invalidBody("")
	}

	res := gjson.ParseBytes(data)
	switch {
	case res.IsObject():
		var obj map[string]any
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, invalidBody(err.Error())
		}
		return []map[string]any{obj}, nil
	case res.IsArray() && allowArray:
		var objs []map[string]any
		if err := json.Unmarshal(data, &objs); err != nil {
			return nil, invalidBody(err.Error())
		}
		for _, obj := range objs {
			if obj == nil {
				return nil, invalidBody("array elements must be objects")
			}
		}
		return objs, nil
	}
	return nil, invalidBody("")
}

func invalidBody(details string) error {
	return newError(CodeInvalidBody, "Empty or invalid json", details)
}
