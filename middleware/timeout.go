package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

const defaultTimeoutDuration = 30 * time.Second

// Timeout returns a middleware that answers 503 Service Unavailable when the
// handler does not complete within duration. A non-positive duration falls
// back to 30s with a warning.
func Timeout(logger *slog.Logger, duration time.Duration) func(http.Handler) http.Handler {
	if duration <= 0 {
		orDefault(logger).Warn("middleware: duration must be positive, using default",
			"provided", duration, "default", defaultTimeoutDuration)

		duration = defaultTimeoutDuration
	}

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, duration, "Service Unavailable")
	}
}
