package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// callbackPath multiplexes several provider callbacks on the type parameter.
const callbackPath = "/api/bluecode"

// routeLabel names the matched route with low cardinality. Provider callbacks
// share one path, so their type is appended.
func routeLabel(r *http.Request) string {
	pattern := ""
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		pattern = rctx.RoutePattern()
	}
	if pattern == "" {
		pattern = r.URL.Path
	}
	if pattern == callbackPath {
		switch t := r.URL.Query().Get("type"); t {
		case "redirect", "notify", "bcoauth2":
			pattern += "?type=" + t
		default:
			pattern += "?type=unknown"
		}
	}
	return pattern
}
