package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"golang.org/x/time/rate"
)

// RateLimit returns a middleware enforcing a global token bucket of
// requestsPerSecond with the given burst. Rejected requests get
// 429 Too Many Requests and a Retry-After header. Non-positive values fall
// back to 1 with a warning.
func RateLimit(logger *slog.Logger, requestsPerSecond float64, burst int) func(http.Handler) http.Handler {
	logger = orDefault(logger)

	if requestsPerSecond <= 0 {
		logger.Warn("middleware: requestsPerSecond must be positive, using default",
			"provided", requestsPerSecond, "default", 1.0)

		requestsPerSecond = 1.0
	}

	if burst <= 0 {
		logger.Warn("middleware: burst must be positive, using default", "provided", burst, "default", 1)
		burst = 1
	}

	limiter := rate.NewLimiter(rate.Limit(requestsPerSecond), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reservation := limiter.Reserve()

			if delay := reservation.Delay(); delay > 0 {
				reservation.Cancel()

				seconds := max(int(math.Ceil(delay.Seconds())), 1)

				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
