package middleware

import (
	"net/http"
	"slices"
)

// CORS answers cross-origin requests from the allowed origins. Preflight
// OPTIONS requests are answered with 204 and never reach the router.
//
// "*" allows any origin but only for anonymous requests: the response carries
// a literal "*" and no Allow-Credentials, so browsers never attach the session
// cookie. Origins listed explicitly are echoed back with credentials allowed.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAny := slices.Contains(allowedOrigins, "*")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				h := w.Header()
				h.Add("Vary", "Origin")

				switch {
				case slices.Contains(allowedOrigins, origin):
					h.Set("Access-Control-Allow-Origin", origin)
					h.Set("Access-Control-Allow-Credentials", "true")
					setAllowHeaders(h)
				case allowAny:
					h.Set("Access-Control-Allow-Origin", "*")
					setAllowHeaders(h)
				}
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func setAllowHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	h.Set("Access-Control-Max-Age", "3600")
}
