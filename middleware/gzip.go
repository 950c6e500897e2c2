package middleware

import (
	"fmt"
	"net/http"

	"github.com/klauspost/compress/gzhttp"
)

// DefaultGzipMinSize is the smallest response compressed by Gzip.
const DefaultGzipMinSize = 256

// Gzip compresses responses of at least minSize bytes for clients accepting gzip.
// Already compressed content types are left alone.
func Gzip(minSize int) (func(http.Handler) http.Handler, error) {
	if minSize <= 0 {
		minSize = DefaultGzipMinSize
	}

	wrap, err := gzhttp.NewWrapper(gzhttp.MinSize(minSize))
	if err != nil {
		return nil, fmt.Errorf("gzip middleware: %w", err)
	}

	return func(next http.Handler) http.Handler {
		return wrap(next)
	}, nil
}
