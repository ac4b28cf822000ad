package rest

import (
	"mime"
	"net/http"
	"strconv"
	"strings"
)

// MediaTypeObject requests a single JSON object instead of an array.
const MediaTypeObject = "application/vnd.pgrst.object+json"

// Prefer holds preferences from the Prefer header (RFC 7240).
type Prefer struct {
	Return    string // "minimal", "representation", "headers-only"
	Plurality string // "singular"
}

// Range is an inclusive row window from a Range request header.
// End is -1 for an open-ended "start-" range.
type Range struct {
	Start int
	End   int
}

// Headers holds all parsed HTTP headers relevant to REST actions.
type Headers struct {
	Prefer       *Prefer
	Range        *Range
	SingleObject bool
}

// parseHeaders parses all relevant headers from the HTTP request
func parseHeaders(r *http.Request) *Headers {
	return &Headers{
		Prefer:       parsePrefer(r),
		Range:        parseRange(r.Header.Get("Range")),
		SingleObject: acceptsObject(r.Header.Values("Accept")),
	}
}

// parsePrefer parses the Prefer header according to RFC 7240.
// It returns nil if the header is not present. Without return=, mutations
// respond with the full representation.
func parsePrefer(r *http.Request) *Prefer {
	header := strings.Join(r.Header.Values("Prefer"), ",")
	if header == "" {
		return nil
	}

	p := &Prefer{}
	parseKeyValPairs(header, func(key, value string) {
		switch key {
		case "return":
			if isValidReturn(value) {
				p.Return = strings.ToLower(value)
			}
		case "plurality":
			if strings.EqualFold(value, "singular") {
				p.Plurality = "singular"
			}
		}
	})

	return p
}

// parseKeyValPairs parses comma-separated preference directives.
// For each key=value pair found, it calls fn with the key and value.
func parseKeyValPairs(header string, fn func(key, value string)) {
	prefs := strings.SplitSeq(header, ",")
	for pref := range prefs {
		pref = strings.TrimSpace(pref)
		if key, value, found := strings.Cut(pref, "="); found {
			key = strings.TrimSpace(strings.ToLower(key))       // normalize case
			value = strings.Trim(strings.TrimSpace(value), `"`) // remove quotes
			fn(key, value)
		}
	}
}

// isValidReturn reports whether s is a valid return preference value.
func isValidReturn(s string) bool {
	switch strings.ToLower(s) {
	case "minimal", "representation", "headers-only":
		return true
	}
	return false
}

// WantsMinimal reports whether a mutation should answer 204 with no body.
func (p *Prefer) WantsMinimal() bool {
	return p != nil && (p.Return == "minimal" || p.Return == "headers-only")
}

// WantsSingular reports whether zero rows under a single-object Accept yield null.
func (p *Prefer) WantsSingular() bool {
	return p != nil && p.Plurality == "singular"
}

// acceptsObject reports whether any Accept value names the single-object media type.
func acceptsObject(accept []string) bool {
	for _, header := range accept {
		for part := range strings.SplitSeq(header, ",") {
			mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
			if err == nil && mt == MediaTypeObject {
				return true
			}
		}
	}
	return false
}

// parseRange parses "start-end", "start-" and the "items=start-end" form.
// Malformed values are ignored.
func parseRange(header string) *Range {
	header = strings.TrimSpace(header)
	if _, v, ok := strings.Cut(header, "="); ok {
		header = v
	}
	lo, hi, ok := strings.Cut(header, "-")
	if !ok {
		return nil
	}
	start, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil || start < 0 {
		return nil
	}
	if strings.TrimSpace(hi) == "" {
		return &Range{Start: start, End: -1}
	}
	end, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil || end < start {
		return nil
	}
	return &Range{Start: start, End: end}
}
