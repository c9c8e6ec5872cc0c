package middleware

import "net/http"

// CORS sets permissive cross-origin headers for the contact endpoint.
func CORS(methods string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			SetCORSHeaders(w, methods)
			next.ServeHTTP(w, r)
		})
	}
}

// SetCORSHeaders writes the allow-all origin headers.
func SetCORSHeaders(w http.ResponseWriter, methods string) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", methods)
	h.Set("Access-Control-Allow-Headers", "Content-Type")
}
