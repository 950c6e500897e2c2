// Package middleware provides net/http middleware that application plugins
// install from the "middlewares" list of an HTTP server's application config.
//
// Every middleware has the shape func(http.Handler) http.Handler, so the same
// chain wraps chi, gorilla/mux, gin and plain net/http applications.
package middleware
