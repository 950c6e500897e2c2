package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Names accepted by FromConfig.
const (
	NameRecovery  = "recovery"
	NameRequestID = "requestid"
	NameLogging   = "logging"
	NameTimeout   = "timeout"
	NameRateLimit = "ratelimit"
	NameMaxBody   = "maxbody"
	NameGzip      = "gzip"
	NameCORS      = "cors"
)

// ErrUnknownMiddleware is returned by FromConfig for a name it does not know.
var ErrUnknownMiddleware = errors.New("unknown middleware")

// ErrInvalidArgument is returned by FromConfig for an argument it cannot parse.
var ErrInvalidArgument = errors.New("invalid middleware argument")

// Middleware wraps an http.Handler.
type Middleware = func(http.Handler) http.Handler

// Chain applies middleware so that the first one is the outermost.
func Chain(handler http.Handler, middleware ...Middleware) http.Handler {
	for _, wrap := range slices.Backward(middleware) {
		handler = wrap(handler)
	}

	return handler
}

// FromConfig builds middleware from entries of the form "name" or "name=argument":
//
//	recovery
//	requestid
//	logging
//	timeout=5s
//	ratelimit=100/20   (requests per second / burst)
//	maxbody=1048576    (bytes)
//	gzip=512           (minimum size in bytes)
//	cors=a.com|b.com   (allowed hostnames, all when omitted)
func FromConfig(entries []string, logger *slog.Logger, render PanicRenderer) ([]Middleware, error) {
	out := make([]Middleware, 0, len(entries))

	for _, item := range entries {
		name, arg, _ := strings.Cut(strings.TrimSpace(item), "=")

		mw, err := build(strings.ToLower(name), arg, logger, render)
		if err != nil {
			return nil, err
		}

		out = append(out, mw)
	}

	return out, nil
}

func build(name, arg string, logger *slog.Logger, render PanicRenderer) (Middleware, error) {
	switch name {
	case NameRecovery:
		return Recovery(logger, render), nil
	case NameRequestID, "request-id", "request_id":
		return RequestID(), nil
	case NameLogging:
		return Logging(logger), nil
	case NameTimeout:
		var duration time.Duration

		if arg != "" {
			parsed, err := time.ParseDuration(arg)
			if err != nil {
				return nil, fmt.Errorf("%w: %s=%s: %w", ErrInvalidArgument, name, arg, err)
			}

			duration = parsed
		}

		return Timeout(logger, duration), nil
	case NameRateLimit:
		rps, burst, err := parseRate(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%s: %w", ErrInvalidArgument, name, arg, err)
		}

		return RateLimit(logger, rps, burst), nil
	case NameMaxBody:
		limit, err := parseInt(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%s: %w", ErrInvalidArgument, name, arg, err)
		}

		return MaxBody(logger, int64(limit)), nil
	case NameGzip:
		minSize, err := parseInt(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%s: %w", ErrInvalidArgument, name, arg, err)
		}

		return Gzip(minSize)
	case NameCORS:
		var hostnames []string
		if arg != "" {
			hostnames = strings.Split(arg, "|")
		}

		return CORS(logger, hostnames...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMiddleware, name)
	}
}

func parseInt(arg string) (int, error) {
	if arg == "" {
		return 0, nil
	}

	return strconv.Atoi(arg) //nolint:wrapcheck
}

func parseRate(arg string) (float64, int, error) {
	if arg == "" {
		return 0, 0, nil
	}

	rpsText, burstText, _ := strings.Cut(arg, "/")

	rps, err := strconv.ParseFloat(rpsText, 64)
	if err != nil {
		return 0, 0, err //nolint:wrapcheck
	}

	burst, err := parseInt(burstText)
	if err != nil {
		return 0, 0, err
	}

	if burst == 0 {
		burst = max(int(rps), 1)
	}

	return rps, burst, nil
}
