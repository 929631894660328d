package http

import (
	"net/http"
	"strings"
)

// sanitizeInput removes control characters other than tab, newline and
// carriage return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// pathID reads a sanitized path wildcard.
func pathID(r *http.Request, name string) string {
	return sanitizeInput(r.PathValue(name))
}

// optionalString returns nil when the query parameter is absent.
func optionalString(r *http.Request, name string) *string {
	if !r.URL.Query().Has(name) {
		return nil
	}
	v := sanitizeInput(r.URL.Query().Get(name))
	return &v
}
