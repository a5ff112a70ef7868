package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gorilla/mux"
)

// corsMaxAge is how long, in seconds, browsers may cache a preflight.
const corsMaxAge = "86400"

// CORS wraps router with cross-origin handling. It sits outside the router
// because mux rejects an OPTIONS request to a GET-only route before any
// router middleware runs.
//
// Responses to allowed origins carry Access-Control-Allow-Origin; a listed
// origin also gets credentials, a "*" entry does not. Preflight requests are
// answered with the methods actually registered for the requested path. A
// path with no registered route falls through to the router.
func CORS(router *mux.Router, allowedOrigins, allowedHeaders []string) http.Handler {
	listed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		listed[origin] = true
	}
	anyOrigin := listed["*"]
	headers := strings.Join(allowedHeaders, ", ")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			switch {
			case anyOrigin:
				w.Header().Set("Access-Control-Allow-Origin", origin)
			case listed[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			w.Header().Add("Vary", "Origin")
		}

		if r.Method != http.MethodOptions {
			router.ServeHTTP(w, r)
			return
		}

		methods := routeMethods(router, r)
		if len(methods) == 0 {
			router.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Access-Control-Allow-Methods", strings.Join(methods, ", "))
		w.Header().Set("Access-Control-Allow-Headers", headers)
		w.Header().Set("Access-Control-Max-Age", corsMaxAge)
		w.WriteHeader(http.StatusNoContent)
	})
}

// routeMethods lists, sorted, the methods the router serves for the path of
// r, plus OPTIONS. It returns nil when no route matches the path.
func routeMethods(router *mux.Router, r *http.Request) []string {
	var methods []string
	_ = router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		registered, err := route.GetMethods()
		if err != nil {
			return nil
		}
		for _, method := range registered {
			if slices.Contains(methods, method) {
				continue
			}
			candidate := r.Clone(r.Context())
			candidate.Method = method
			var match mux.RouteMatch
			if route.Match(candidate, &match) {
				methods = append(methods, method)
			}
		}
		return nil
	})

	if len(methods) == 0 {
		return nil
	}
	if !slices.Contains(methods, http.MethodOptions) {
		methods = append(methods, http.MethodOptions)
	}
	slices.Sort(methods)
	return methods
}
