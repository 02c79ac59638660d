package middleware

import (
	"net/http"
	"strconv"
	"time"
)

// RequestRecorder receives completed request observations. Implemented
// by the telemetry metrics collector.
type RequestRecorder interface {
	RecordRequest(route, method, code string, duration time.Duration)
}

// Metrics records request counts and durations per route. The route
// label is the registered mux pattern, not the raw path, to keep
// cardinality bounded.
func Metrics(recorder RequestRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)

			next.ServeHTTP(rw, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			recorder.RecordRequest(route, r.Method, strconv.Itoa(rw.statusCode), time.Since(start))
		})
	}
}
