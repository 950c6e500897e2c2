// Package chiapp is the "app:chi" application plugin built on go-chi.
package chiapp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ckenx/kenx/config"
	"github.com/ckenx/kenx/plugin"
	"github.com/ckenx/kenx/plugin/appkit"
	"github.com/go-chi/chi/v5"
)

// Reference is the plugin reference of this package.
const Reference = "app:chi"

// App is a chi router served over the HTTP transport.
type App struct {
	*appkit.Base

	router *chi.Mux
}

var _ plugin.ApplicationPlugin = (*App)(nil)

// New is the plugin.ApplicationFactory of "app:chi".
func New(host plugin.Host, cfg config.ServerConfig) (plugin.ApplicationPlugin, error) {
	base, err := appkit.NewBase(host, cfg, "chi")
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	router := chi.NewRouter()
	router.NotFound(base.NotFound)

	return &App{Base: base, router: router}, nil
}

// Chi returns the underlying router for direct route registration.
func (a *App) Chi() chi.Router {
	return a.router
}

// Handler returns the router behind the application middleware.
func (a *App) Handler() http.Handler {
	return a.Wrap(a.router)
}

// Router mounts fn under prefix. fn is a func(chi.Router) building a sub-router,
// or an http.Handler mounted as is.
func (a *App) Router(prefix string, fn any) error {
	switch fn := fn.(type) {
	case func(chi.Router):
		return appkit.Guard(func() { a.router.Route(prefix, fn) })
	case func(http.ResponseWriter, *http.Request):
		return appkit.Guard(func() { a.router.Mount(prefix, http.HandlerFunc(fn)) })
	case http.Handler:
		return appkit.Guard(func() { a.router.Mount(prefix, fn) })
	default:
		return fmt.Errorf("%w: %T", appkit.ErrUnsupportedRouter, fn)
	}
}

// Serve starts the HTTP transport carrying the application.
func (a *App) Serve(ctx context.Context, overhead bool) (plugin.ServerPlugin, error) {
	return a.Base.Serve(ctx, a, overhead)
}
