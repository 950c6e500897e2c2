// Package appkit implements the framework-independent half of an application
// plugin: attachments, the middleware chain, error handling and serving over
// the "server:http" transport. Framework plugins embed *Base and add routing.
package appkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/ckenx/kenx/config"
	"github.com/ckenx/kenx/logging"
	"github.com/ckenx/kenx/middleware"
	"github.com/ckenx/kenx/plugin"
)

// TransportReference is the server plugin an application is served with by default.
const TransportReference = plugin.CategoryServer + ":" + config.HTTPType

// ErrRouteNotFound is given to the error handler for unmatched routes.
var ErrRouteNotFound = errors.New("route not found")

// ErrUnsupportedRouter is returned by Router for a function type the framework cannot mount.
var ErrUnsupportedRouter = errors.New("unsupported router function")

// ErrRouterConflict is returned when a framework refuses a route, usually a duplicate pattern.
var ErrRouterConflict = errors.New("router registration failed")

type baseKey struct{}

// Base carries the state shared by every application plugin.
type Base struct {
	host   plugin.Host
	config config.ServerConfig
	logger *slog.Logger

	mu           sync.RWMutex
	attachments  map[string]any
	middleware   []middleware.Middleware
	errorHandler plugin.ErrorHandler
	server       plugin.ServerPlugin

	overhead atomic.Bool
	handler  atomic.Pointer[http.Handler]
}

// NewBase creates a Base for the application of cfg. The middleware listed in
// the application config is installed first, in order.
func NewBase(host plugin.Host, cfg config.ServerConfig, name string) (*Base, error) {
	base := &Base{
		host:        host,
		config:      cfg,
		logger:      logging.Component(host.Logger(), name),
		attachments: make(map[string]any),
	}

	if cfg.Application != nil {
		chain, err := middleware.FromConfig(cfg.Application.Middlewares, base.logger, base.renderPanic)
		if err != nil {
			return nil, fmt.Errorf("%s middleware: %w", name, err)
		}

		base.middleware = chain
	}

	return base, nil
}

// Host returns the host the application was built with.
func (b *Base) Host() plugin.Host {
	return b.host
}

// Config returns the server configuration of the application.
func (b *Base) Config() config.ServerConfig {
	return b.config
}

// Logger returns the application logger.
func (b *Base) Logger() *slog.Logger {
	return b.logger
}

// Attach stores a value that handlers read back with FromContext.
func (b *Base) Attach(key string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.attachments[key] = value
}

// Attachment returns a value stored with Attach.
func (b *Base) Attachment(key string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	value, ok := b.attachments[key]

	return value, ok
}

// Use appends middleware to the chain wrapping the application.
func (b *Base) Use(mw ...func(http.Handler) http.Handler) {
	b.mu.Lock()
	b.middleware = append(b.middleware, mw...)
	b.mu.Unlock()

	b.handler.Store(nil)
}

// OnError installs the handler for unmatched routes and recovered panics.
func (b *Base) OnError(handler plugin.ErrorHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.errorHandler = handler
}

// Wrap returns router behind the middleware chain, with the application
// reachable from request contexts. The result is cached until the next Use,
// so every call must pass the same router.
func (b *Base) Wrap(router http.Handler) http.Handler {
	if cached := b.handler.Load(); cached != nil {
		return *cached
	}

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		router.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), baseKey{}, b)))
	})

	b.mu.RLock()
	chain := append([]middleware.Middleware(nil), b.middleware...)
	b.mu.RUnlock()

	handler := middleware.Chain(inner, chain...)
	b.handler.Store(&handler)

	return handler
}

// NotFound answers unmatched routes. Framework plugins install it as their not-found handler.
func (b *Base) NotFound(w http.ResponseWriter, r *http.Request) {
	b.renderError(w, r, http.StatusNotFound, ErrRouteNotFound)
}

func (b *Base) renderPanic(w http.ResponseWriter, r *http.Request, err error) {
	b.renderError(w, r, http.StatusInternalServerError, err)
}

func (b *Base) renderError(w http.ResponseWriter, r *http.Request, status int, err error) {
	b.mu.RLock()
	custom := b.errorHandler
	b.mu.RUnlock()

	switch {
	case custom != nil:
		custom(w, r, status, err)
	case b.overhead.Load():
		writeJSONError(w, status)
	default:
		http.Error(w, http.StatusText(status), status)
	}
}

func writeJSONError(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":  http.StatusText(status),
		"status": status,
	})
}

// Serve starts the HTTP transport for app on the configured HOST and PORT.
// app is the framework plugin embedding b.
func (b *Base) Serve(ctx context.Context, app plugin.ApplicationPlugin, overhead bool) (plugin.ServerPlugin, error) {
	b.overhead.Store(overhead)

	reference := b.config.Plugin
	if reference == "" {
		reference = TransportReference
	}

	factory, err := plugin.ImportServer(b.host.ImportPlugin, reference)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	server, err := factory(b.host, app, b.config.Options)
	if err != nil {
		return nil, fmt.Errorf("constructing %s: %w", reference, err)
	}

	_, err = server.Listen(ctx, plugin.Binder{Host: b.config.Host, Port: b.config.Port})
	if err != nil {
		return server, fmt.Errorf("serving application: %w", err)
	}

	b.mu.Lock()
	b.server = server
	b.mu.Unlock()

	return server, nil
}

// Guard runs register and returns a framework panic as ErrRouterConflict.
func Guard(register func()) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrRouterConflict, rec)
		}
	}()

	register()

	return nil
}

// Server returns the transport started by Serve, or nil.
func (b *Base) Server() plugin.ServerPlugin {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.server
}

// FromContext returns the application serving the request.
func FromContext(ctx context.Context) (*Base, bool) {
	base, ok := ctx.Value(baseKey{}).(*Base)

	return base, ok
}

// AttachmentFrom returns an attachment of the application serving the request.
func AttachmentFrom(ctx context.Context, key string) (any, bool) {
	base, ok := FromContext(ctx)
	if !ok {
		return nil, false
	}

	return base.Attachment(key)
}
