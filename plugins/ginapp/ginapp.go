// Package ginapp is the "app:gin" application plugin.
package ginapp

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"sync"

	"github.com/ckenx/kenx/config"
	"github.com/ckenx/kenx/plugin"
	"github.com/ckenx/kenx/plugin/appkit"
	"github.com/gin-gonic/gin"
)

// Reference is the plugin reference of this package.
const Reference = "app:gin"

var releaseMode sync.Once

// App is a gin engine served over the HTTP transport.
type App struct {
	*appkit.Base

	engine *gin.Engine
}

var _ plugin.ApplicationPlugin = (*App)(nil)

// New is the plugin.ApplicationFactory of "app:gin". Gin runs in release mode;
// request logging and recovery come from the configured middleware.
func New(host plugin.Host, cfg config.ServerConfig) (plugin.ApplicationPlugin, error) {
	releaseMode.Do(func() { gin.SetMode(gin.ReleaseMode) })

	base, err := appkit.NewBase(host, cfg, "gin")
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	engine := gin.New()
	engine.NoRoute(func(c *gin.Context) {
		base.NotFound(c.Writer, c.Request)
	})

	return &App{Base: base, engine: engine}, nil
}

// Engine returns the underlying gin engine.
func (a *App) Engine() *gin.Engine {
	return a.engine
}

// Handler returns the engine behind the application middleware.
func (a *App) Handler() http.Handler {
	return a.Wrap(a.engine)
}

// Router mounts fn under prefix. fn is a func(*gin.RouterGroup) filling a group,
// or an http.Handler answering every path below prefix.
func (a *App) Router(prefix string, fn any) error {
	switch fn := fn.(type) {
	case func(*gin.RouterGroup):
		return appkit.Guard(func() { fn(a.engine.Group(prefix)) })
	case func(http.ResponseWriter, *http.Request):
		return a.mountHandler(prefix, http.HandlerFunc(fn))
	case http.Handler:
		return a.mountHandler(prefix, fn)
	default:
		return fmt.Errorf("%w: %T", appkit.ErrUnsupportedRouter, fn)
	}
}

func (a *App) mountHandler(prefix string, handler http.Handler) error {
	return appkit.Guard(func() {
		a.engine.Any(path.Join("/", prefix, "*path"), gin.WrapH(handler))
	})
}

// Serve starts the HTTP transport carrying the application.
func (a *App) Serve(ctx context.Context, overhead bool) (plugin.ServerPlugin, error) {
	return a.Base.Serve(ctx, a, overhead)
}
