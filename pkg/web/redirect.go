package web

import (
	"net/http"
	"strings"
)

// RedirectOutsidePrefix sends every request whose path does not start with
// prefix to prefix itself (302). Requests under prefix pass through unchanged.
func RedirectOutsidePrefix(prefix string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, prefix) {
			http.Redirect(w, r, prefix, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
