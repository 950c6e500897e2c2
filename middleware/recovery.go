package middleware

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
)

// PanicError is the error given to a PanicRenderer.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// PanicRenderer writes the response for a recovered panic.
type PanicRenderer func(w http.ResponseWriter, r *http.Request, err error)

// recoveryWriter wraps http.ResponseWriter to track whether headers have been sent.
type recoveryWriter struct {
	http.ResponseWriter

	written bool
}

func (w *recoveryWriter) WriteHeader(code int) {
	if code == http.StatusSwitchingProtocols || code >= http.StatusOK {
		w.written = true
	}

	w.ResponseWriter.WriteHeader(code)
}

func (w *recoveryWriter) Write(b []byte) (int, error) {
	w.written = true

	return w.ResponseWriter.Write(b) //nolint:wrapcheck
}

// Flush implements http.Flusher through http.ResponseController.
func (w *recoveryWriter) Flush() {
	err := http.NewResponseController(w.ResponseWriter).Flush()
	if err == nil {
		w.written = true
	}
}

// Hijack implements http.Hijacker through http.ResponseController, so
// websocket upgrades pass through the recovery middleware.
func (w *recoveryWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	conn, buf, err := http.NewResponseController(w.ResponseWriter).Hijack()
	if err == nil {
		w.written = true
	}

	return conn, buf, err //nolint:wrapcheck
}

// Unwrap returns the underlying ResponseWriter for http.ResponseController.
func (w *recoveryWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Recovery returns a middleware that recovers from panics in downstream handlers.
// It logs the panic value and stack trace and calls render, or answers
// 500 Internal Server Error when render is nil. If the response has already
// been partially written, it only logs.
func Recovery(logger *slog.Logger, render PanicRenderer) func(http.Handler) http.Handler {
	logger = orDefault(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			recWriter := &recoveryWriter{ResponseWriter: w}

			defer func() { //nolint:contextcheck
				rec := recover()
				if rec == nil {
					return
				}

				err, ok := rec.(error)
				if ok && err == http.ErrAbortHandler { //nolint:errorlint,err113
					panic(rec)
				}

				attrs := []any{
					slog.String("panic", fmt.Sprintf("%v", rec)),
					slog.String("stack", string(debug.Stack())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				}

				if reqID := RequestIDFrom(r.Context()); reqID != "" {
					attrs = append(attrs, slog.String("request_id", reqID))
				}

				if recWriter.written {
					attrs = append(attrs, slog.Bool("response_already_written", true))
					logger.Error("panic recovered after response was already written", attrs...)

					return
				}

				logger.Error("panic recovered", attrs...)

				if render != nil {
					render(recWriter, r, &PanicError{Value: rec})

					return
				}

				http.Error(recWriter, "Internal Server Error", http.StatusInternalServerError)
			}()

			next.ServeHTTP(recWriter, r)
		})
	}
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}

	return logger
}
