package middleware

import (
	"log/slog"
	"net/http"
)

const defaultMaxBodyBytes int64 = 1 << 20

// MaxBody limits request bodies with http.MaxBytesReader. Handlers reading
// past the limit get an error and should answer 413. A non-positive limit
// falls back to 1MB with a warning.
func MaxBody(logger *slog.Logger, limit int64) func(http.Handler) http.Handler {
	if limit <= 0 {
		orDefault(logger).Warn("middleware: limit must be positive, using default",
			"provided", limit, "default", defaultMaxBodyBytes)

		limit = defaultMaxBodyBytes
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
