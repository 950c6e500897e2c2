package plugin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ckenx/kenx/config"
)

// Host is the view of the setup manager given to plugin factories.
type Host interface {
	Logger() *slog.Logger
	ImportPlugin(reference string) (any, error)
	ResolvePath(path string) string
	Environment() map[string]string
	// Fatal reports an error no caller can recover from, such as a listener
	// that stopped serving, and asks the application to shut down.
	Fatal(err error)
}

// ActiveServerInfo describes a server that is bound and serving.
type ActiveServerInfo struct {
	Type  string
	Host  string
	Port  int
	Extra map[string]any
}

// Binder tells a server where to listen: on top of another server or on its own address.
type Binder struct {
	Target ServerPlugin
	Host   string
	Port   int
}

// ServerPlugin is an HTTP transport or an auxiliary server.
type ServerPlugin interface {
	Listen(ctx context.Context, binder Binder) (*ActiveServerInfo, error)
	Close(ctx context.Context) error
	// Info returns nil until the server is bound.
	Info() *ActiveServerInfo
}

// Carrier is implemented by HTTP servers that serve an application.
// Entrypoints taking over "http" resources reach the application through it.
type Carrier interface {
	Application() ApplicationPlugin
}

// Mounter is implemented by servers that other servers can bind to.
type Mounter interface {
	Mount(pattern string, handler http.Handler)
}

// DatabasePlugin is a database or broker client.
type DatabasePlugin interface {
	Connect(ctx context.Context) (any, error)
	Disconnect(ctx context.Context) error
	// Connection returns the live handle, or an error before Connect succeeded.
	Connection(name string) (any, error)
}

// ErrorHandler renders an error raised while handling a request.
// status is 404 for unmatched routes and 500 for recovered panics.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, status int, err error)

// ApplicationPlugin is an application framework served over HTTP.
type ApplicationPlugin interface {
	Handler() http.Handler
	Attach(key string, value any)
	Attachment(key string) (any, bool)
	Use(middleware ...func(http.Handler) http.Handler)
	// Router mounts fn under prefix. The accepted function types are framework specific.
	Router(prefix string, fn any) error
	OnError(handler ErrorHandler)
	// Serve starts the HTTP transport carrying the application.
	// With overhead set, unmatched routes and panics get a default response
	// unless OnError installed a handler.
	Serve(ctx context.Context, overhead bool) (ServerPlugin, error)
}

// ServerFactory builds a server. app is nil unless the server carries an application.
type ServerFactory func(host Host, app ApplicationPlugin, options map[string]any) (ServerPlugin, error)

// DatabaseFactory builds a database client from its configuration.
type DatabaseFactory func(host Host, cfg config.DatabaseConfig) (DatabasePlugin, error)

// ApplicationFactory builds an application from the configuration of its HTTP server.
type ApplicationFactory func(host Host, cfg config.ServerConfig) (ApplicationPlugin, error)

// ExtensionFactory applies a session, assets or routing extension to an application.
type ExtensionFactory func(host Host, app ApplicationPlugin, cfg map[string]any) error
