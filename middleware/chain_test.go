package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tag(name string, order *[]string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*order = append(*order, name)
			next.ServeHTTP(w, r)
		})
	}
}

func TestChain_FirstIsOutermost(t *testing.T) {
	t.Parallel()

	var order []string

	handler := Chain(okHandler, tag("a", &order), tag("b", &order), tag("c", &order))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestFromConfig(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.DiscardHandler)

	chain, err := FromConfig([]string{
		"recovery", "requestid", "logging", "timeout=5s", "ratelimit=100/20", "maxbody=2048", "gzip=512", "cors=example.com",
	}, logger, nil)

	require.NoError(t, err)
	assert.Len(t, chain, 8)

	handler := Chain(okHandler, chain...)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get(RequestIDHeader))
}

func TestFromConfig_Errors(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.DiscardHandler)

	_, err := FromConfig([]string{"session"}, logger, nil)
	require.ErrorIs(t, err, ErrUnknownMiddleware)

	for _, entry := range []string{"timeout=soon", "ratelimit=fast", "ratelimit=1/x", "maxbody=big", "gzip=-"} {
		_, err := FromConfig([]string{entry}, logger, nil)
		require.ErrorIs(t, err, ErrInvalidArgument, entry)
	}
}

func TestParseRate(t *testing.T) {
	t.Parallel()

	rps, burst, err := parseRate("2.5")
	require.NoError(t, err)
	assert.InDelta(t, 2.5, rps, 0)
	assert.Equal(t, 2, burst)

	rps, burst, err = parseRate("")
	require.NoError(t, err)
	assert.Zero(t, rps)
	assert.Zero(t, burst)
}
