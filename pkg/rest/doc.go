// Package rest serves a PostgREST-compatible API from an in-memory store.
//
// Tables are exposed at <baseURL>/<table> (default /rest/v1/<table>) for
// GET, POST, PATCH and DELETE. Requests for other paths, tables or methods are
// declined so they can reach the real backend.
//
// Query parameters control filtering, pagination, and ordering:
//
//	Parameter           | Description
//	--------------------|------------------------------------------------
//	?select=col1,a:col2 | Project columns, optionally renamed
//	?order=col.desc     | Order results (supports nullsfirst/nullslast)
//	?limit=10           | Limit number of results
//	?offset=20          | Pagination offset
//	?col=eq.val         | Equality; eq.null matches null
//	?col=is.null        | is.null, is.true, is.false
//	?col=like.a%_       | Case-sensitive wildcard match
//	?col=ilike.%a%      | Case-insensitive wildcard match
//	?col=cs.{a,b}       | Array (or JSON object) containment
//	?or=(a.eq.x,b.is.null,and(c.eq.1,d.eq.2)) | Logic trees; and=(...) too
//
// Any other operator matches every row.
//
// Headers control the response shape:
//
//	Header                                    | Description
//	------------------------------------------|---------------------------------------
//	Accept: application/vnd.pgrst.object+json | Single object; 406 unless exactly one row
//	Prefer: plurality=singular                | With the above, zero rows answer 200 null
//	Prefer: return=minimal                    | Mutations answer 204 with no body
//	Range: 0-9                                | Inclusive row window when limit/offset are absent
//
// GET responses carry Content-Range: start-end/total.
//
// Example usage:
//
//	mock := rest.NewContext()
//	mock.Setup(http.DefaultClient)
//	_ = mock.Seed("phones", store.Record{"id": "P1", "price": 100})
//	resp, _ := http.Get("https://project.supabase.co/rest/v1/phones?price=eq.100")
package rest
