package middleware

import (
	"bufio"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter

	status   int
	written  bool
	hijacked bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true

		w.ResponseWriter.WriteHeader(code)
	}
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.status = http.StatusOK
		w.written = true
	}

	return w.ResponseWriter.Write(b) //nolint:wrapcheck
}

// Hijack implements http.Hijacker through http.ResponseController.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	conn, buf, err := http.NewResponseController(w.ResponseWriter).Hijack()
	if err == nil {
		w.hijacked = true
	}

	return conn, buf, err //nolint:wrapcheck
}

// Flush implements http.Flusher through http.ResponseController.
func (w *statusWriter) Flush() {
	err := http.NewResponseController(w.ResponseWriter).Flush()
	if err == nil && !w.written {
		w.status = http.StatusOK
		w.written = true
	}
}

// Unwrap returns the underlying ResponseWriter for http.ResponseController.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Logging returns a middleware that logs method, path, status, duration and
// request ID. The level is Info for 2xx/3xx, Warn for 4xx and Error for 5xx.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	logger = orDefault(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			sw := &statusWriter{ResponseWriter: w}

			next.ServeHTTP(sw, r)

			if sw.status == 0 {
				if sw.hijacked {
					sw.status = http.StatusSwitchingProtocols
				} else {
					sw.status = http.StatusOK
				}
			}

			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", sw.status),
				slog.Duration("duration", time.Since(start)),
			}

			if reqID := RequestIDFrom(r.Context()); reqID != "" {
				attrs = append(attrs, slog.String("request_id", reqID))
			}

			msg := "http request"

			switch {
			case sw.status >= http.StatusInternalServerError:
				logger.Error(msg, attrs...)
			case sw.status >= http.StatusBadRequest:
				logger.Warn(msg, attrs...)
			default:
				logger.Info(msg, attrs...)
			}
		})
	}
}
