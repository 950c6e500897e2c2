// Package httpserver is the "server:http" plugin: a net/http transport that
// serves an application plugin and lets auxiliary servers mount handlers on it.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ckenx/kenx/config"
	"github.com/ckenx/kenx/logging"
	"github.com/ckenx/kenx/plugin"
)

// Reference is the plugin reference of this package.
const Reference = "server:http"

// ReadHeaderTimeout is the default timeout for reading request headers.
const ReadHeaderTimeout = 10 * time.Second

var (
	// ErrListenFailed is returned when the server fails to listen on the configured address.
	ErrListenFailed = errors.New("failed to listen")
	// ErrShutdownFailed is returned when the server fails to shut down gracefully.
	ErrShutdownFailed = errors.New("shutdown failed")
	// ErrCannotBind is returned when the HTTP transport is asked to bind onto another server.
	ErrCannotBind = errors.New("http server cannot bind to another server")
	// ErrAlreadyListening is returned by a second Listen.
	ErrAlreadyListening = errors.New("http server already listening")
)

// Options are the transport settings read from a server's "options".
type Options struct {
	ReadHeaderTimeout time.Duration `mapstructure:"readHeaderTimeout"`
	ReadTimeout       time.Duration `mapstructure:"readTimeout"`
	WriteTimeout      time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout       time.Duration `mapstructure:"idleTimeout"`
}

// SetDefaults sets default values for the Options.
func (o *Options) SetDefaults() bool {
	if o.ReadHeaderTimeout == 0 {
		o.ReadHeaderTimeout = ReadHeaderTimeout

		return true
	}

	return false
}

// Server manages an HTTP server lifecycle.
type Server struct {
	app     plugin.ApplicationPlugin
	host    plugin.Host
	logger  *slog.Logger
	options Options

	mux     *http.ServeMux
	mounted map[string]bool

	mu       sync.RWMutex
	server   *http.Server
	listener net.Listener
	info     *plugin.ActiveServerInfo
}

var (
	_ plugin.ServerPlugin = (*Server)(nil)
	_ plugin.Mounter      = (*Server)(nil)
	_ plugin.Carrier      = (*Server)(nil)
)

// New is the plugin.ServerFactory of "server:http". With a nil app every
// unmounted path answers 404.
func New(host plugin.Host, app plugin.ApplicationPlugin, options map[string]any) (plugin.ServerPlugin, error) {
	opts, err := config.Decode(options, "", &Options{})
	if err != nil {
		return nil, fmt.Errorf("http server options: %w", err)
	}

	root := http.NotFoundHandler()
	if app != nil {
		root = app.Handler()
	}

	mux := http.NewServeMux()
	mux.Handle("/", root)

	return &Server{
		app:     app,
		host:    host,
		logger:  logging.Component(host.Logger(), "http"),
		options: *opts,
		mux:     mux,
		mounted: map[string]bool{"/": true},
	}, nil
}

// Application returns the application served at "/", or nil.
func (s *Server) Application() plugin.ApplicationPlugin {
	return s.app
}

// Mount serves handler under pattern next to the application.
// A pattern that is already mounted is ignored with a warning.
func (s *Server) Mount(pattern string, handler http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mounted[pattern] {
		s.logger.Warn("pattern already mounted", slog.String("pattern", pattern))

		return
	}

	s.mounted[pattern] = true
	s.mux.Handle(pattern, handler)

	s.logger.Debug("handler mounted", slog.String("pattern", pattern))
}

// Listen begins listening on TCP and serves HTTP requests in a background goroutine.
// Port 0 picks a free port; Info reports the bound one.
func (s *Server) Listen(ctx context.Context, binder plugin.Binder) (*plugin.ActiveServerInfo, error) {
	if binder.Target != nil {
		return nil, ErrCannotBind
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return nil, ErrAlreadyListening
	}

	address := net.JoinHostPort(binder.Host, strconv.Itoa(binder.Port))

	listenCfg := net.ListenConfig{} //nolint:exhaustruct // zero-value defaults are fine

	listener, err := listenCfg.Listen(ctx, "tcp", address)
	if err != nil {
		s.logger.Error("failed to listen", "address", address, "error", err)

		return nil, fmt.Errorf("%w: %w", ErrListenFailed, err)
	}

	s.listener = listener
	s.server = &http.Server{ //nolint:exhaustruct // only relevant fields needed
		Handler:           s.mux,
		ReadHeaderTimeout: s.options.ReadHeaderTimeout,
		ReadTimeout:       s.options.ReadTimeout,
		WriteTimeout:      s.options.WriteTimeout,
		IdleTimeout:       s.options.IdleTimeout,
	}

	port := binder.Port
	if addr, ok := listener.Addr().(*net.TCPAddr); ok {
		port = addr.Port
	}

	s.info = &plugin.ActiveServerInfo{Type: config.HTTPType, Host: binder.Host, Port: port}

	s.logger.Info("starting HTTP listener", "address", listener.Addr().String())

	go s.serve(s.server, listener)

	return s.info, nil
}

func (s *Server) serve(server *http.Server, listener net.Listener) {
	err := server.Serve(listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("HTTP listener error", "error", err)
		s.host.Fatal(fmt.Errorf("http server on %s: %w", listener.Addr(), err))
	}
}

// Info returns the bound address, or nil before Listen.
func (s *Server) Info() *plugin.ActiveServerInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.info
}

// Close gracefully shuts down the HTTP server.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.mu.Unlock()

	if server == nil {
		return nil
	}

	s.logger.Info("stopping HTTP listener")

	err := server.Shutdown(ctx)
	if err != nil {
		s.logger.Error("shutdown failed", "error", err)

		return fmt.Errorf("%w: %w", ErrShutdownFailed, err)
	}

	return nil
}
