package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestRecovery_PanicReturns500(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	handler := Recovery(newBufferLogger(&buf), nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("something went wrong")
	}))

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	logOutput := buf.String()
	assert.Contains(t, logOutput, "panic recovered")
	assert.Contains(t, logOutput, "something went wrong")
	assert.Contains(t, logOutput, "goroutine")
	assert.Contains(t, logOutput, "/panic")
}

func TestRecovery_IncludesRequestIDInLog(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	handler := Recovery(newBufferLogger(&buf), nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("with request id")
	}))

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req = req.WithContext(WithRequestID(req.Context(), "test-request-id-123"))

	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Contains(t, buf.String(), "test-request-id-123")
}

func TestRecovery_Render(t *testing.T) {
	t.Parallel()

	var rendered error

	render := func(w http.ResponseWriter, _ *http.Request, err error) {
		rendered = err

		w.WriteHeader(http.StatusTeapot)
	}

	handler := Recovery(slog.New(slog.DiscardHandler), render)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(42)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)

	var panicErr *PanicError

	require.ErrorAs(t, rendered, &panicErr)
	assert.Equal(t, 42, panicErr.Value)
}

func TestRecovery_AlreadyWritten(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	handler := Recovery(newBufferLogger(&buf), nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		panic("late")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, buf.String(), "response_already_written")
}

func TestRecovery_RepanicsAbortHandler(t *testing.T) {
	t.Parallel()

	handler := Recovery(slog.New(slog.DiscardHandler), nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
