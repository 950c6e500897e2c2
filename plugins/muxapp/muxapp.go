// Package muxapp is the "app:mux" application plugin built on gorilla/mux.
package muxapp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ckenx/kenx/config"
	"github.com/ckenx/kenx/plugin"
	"github.com/ckenx/kenx/plugin/appkit"
	"github.com/gorilla/mux"
)

// Reference is the plugin reference of this package.
const Reference = "app:mux"

// App is a gorilla/mux router served over the HTTP transport.
type App struct {
	*appkit.Base

	router *mux.Router
}

var _ plugin.ApplicationPlugin = (*App)(nil)

// New is the plugin.ApplicationFactory of "app:mux".
func New(host plugin.Host, cfg config.ServerConfig) (plugin.ApplicationPlugin, error) {
	base, err := appkit.NewBase(host, cfg, "mux")
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(base.NotFound)

	return &App{Base: base, router: router}, nil
}

// Mux returns the underlying router.
func (a *App) Mux() *mux.Router {
	return a.router
}

// Handler returns the router behind the application middleware.
func (a *App) Handler() http.Handler {
	return a.Wrap(a.router)
}

// Router mounts fn under prefix. fn is a func(*mux.Router) filling a sub-router,
// or an http.Handler answering every path below prefix.
func (a *App) Router(prefix string, fn any) error {
	switch fn := fn.(type) {
	case func(*mux.Router):
		fn(a.router.PathPrefix(prefix).Subrouter())
	case func(http.ResponseWriter, *http.Request):
		a.router.PathPrefix(prefix).HandlerFunc(fn)
	case http.Handler:
		a.router.PathPrefix(prefix).Handler(fn)
	default:
		return fmt.Errorf("%w: %T", appkit.ErrUnsupportedRouter, fn)
	}

	return nil
}

// Serve starts the HTTP transport carrying the application.
func (a *App) Serve(ctx context.Context, overhead bool) (plugin.ServerPlugin, error) {
	return a.Base.Serve(ctx, a, overhead)
}
