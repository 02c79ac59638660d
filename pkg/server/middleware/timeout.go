package middleware

import (
	"context"
	"net/http"
	"time"
)

// Timeout attaches a deadline to each request's context. Handlers pass
// the context down to storage and aggregation calls, which abort when
// the deadline expires.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
