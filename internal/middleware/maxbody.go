package middleware

import "net/http"

// MaxBody caps the request body at limit bytes. Oversized bodies fail the
// handler's read with an http.MaxBytesError, which net/http answers with 413.
func MaxBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
