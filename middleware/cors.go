package middleware

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const corsMaxAge = 3600

var (
	corsMethods = strings.Join([]string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete}, ", ")
	corsHeaders = strings.Join([]string{"Origin", "Accept", "Content-Type", "Authorization",
		RequestIDHeader}, ", ")
)

// CORS answers cross-origin requests from the listed hostnames. An empty list
// or "*" allows every origin. Hostnames carrying a scheme, path or port are
// skipped with a warning since origins are matched on hostname only.
func CORS(logger *slog.Logger, hostnames ...string) Middleware {
	allowed := make(map[string]struct{}, len(hostnames))
	wildcard := len(hostnames) == 0

	for _, hostname := range hostnames {
		hostname = strings.ToLower(strings.TrimSpace(hostname))

		switch {
		case hostname == "*":
			wildcard = true
		case hostname == "", strings.ContainsAny(hostname, "/:"):
			logger.Warn("cors origin ignored", slog.String("origin", hostname))
		default:
			allowed[hostname] = struct{}{}
		}
	}

	maxAge := strconv.Itoa(corsMaxAge)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "Origin")

			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)

				return
			}

			if wildcard {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else {
				if _, ok := allowed[originHostname(origin)]; !ok {
					next.ServeHTTP(w, r)

					return
				}

				w.Header().Set("Access-Control-Allow-Origin", origin)
			}

			w.Header().Set("Access-Control-Expose-Headers", RequestIDHeader)

			if r.Method != http.MethodOptions || r.Header.Get("Access-Control-Request-Method") == "" {
				next.ServeHTTP(w, r)

				return
			}

			w.Header().Add("Vary", "Access-Control-Request-Method")
			w.Header().Set("Access-Control-Allow-Methods", corsMethods)
			w.Header().Set("Access-Control-Allow-Headers", corsHeaders)
			w.Header().Set("Access-Control-Max-Age", maxAge)
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

func originHostname(origin string) string {
	u, err := url.Parse(origin)
	if err != nil {
		return ""
	}

	return strings.ToLower(u.Hostname())
}
