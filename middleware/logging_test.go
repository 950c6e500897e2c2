package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogging_Levels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusFound, "INFO"},
		{http.StatusNotFound, "WARN"},
		{http.StatusBadGateway, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer

			handler := Logging(newBufferLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))

			req := httptest.NewRequest(http.MethodPost, "/items", nil)
			req = req.WithContext(WithRequestID(req.Context(), "rid"))

			handler.ServeHTTP(httptest.NewRecorder(), req)

			var entry map[string]any

			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "/items", entry["path"])
			assert.Equal(t, http.MethodPost, entry["method"])
			assert.InDelta(t, float64(tt.status), entry["status"], 0)
			assert.Equal(t, "rid", entry["request_id"])
		})
	}
}

func TestLogging_ImplicitOK(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	handler := Logging(newBufferLogger(&buf))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Contains(t, buf.String(), `"status":200`)
}
