// Package metrics is the "server:metrics" plugin exposing a Prometheus
// registry. Applications add HTTP instrumentation with Instrument.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ckenx/kenx/config"
	"github.com/ckenx/kenx/logging"
	"github.com/ckenx/kenx/plugin"
	"github.com/ckenx/kenx/plugins/httpserver"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reference is the plugin reference of this package.
const Reference = "server:metrics"

// Type is the server type reported in ActiveServerInfo.
const Type = "metrics"

const (
	defaultPath      = "/metrics"
	defaultNamespace = "kenx"
)

// Options are read from the server's "options".
type Options struct {
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
	// Runtime registers the Go runtime and process collectors.
	Runtime *bool `mapstructure:"runtime"`
}

// SetDefaults sets default values for the Options.
func (o *Options) SetDefaults() bool {
	changed := false

	if o.Path == "" {
		o.Path = defaultPath
		changed = true
	}

	if o.Namespace == "" {
		o.Namespace = defaultNamespace
		changed = true
	}

	if o.Runtime == nil {
		enabled := true
		o.Runtime = &enabled
		changed = true
	}

	return changed
}

// Server serves a Prometheus registry.
type Server struct {
	host     plugin.Host
	logger   *slog.Logger
	options  Options
	raw      map[string]any
	registry *prometheus.Registry

	inFlight prometheus.Gauge
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec

	mu   sync.RWMutex
	own  *httpserver.Server
	info *plugin.ActiveServerInfo
}

var _ plugin.ServerPlugin = (*Server)(nil)

// New is the plugin.ServerFactory of "server:metrics".
func New(host plugin.Host, _ plugin.ApplicationPlugin, options map[string]any) (plugin.ServerPlugin, error) {
	opts, err := config.Decode(options, "", &Options{})
	if err != nil {
		return nil, fmt.Errorf("metrics options: %w", err)
	}

	server := &Server{
		host:     host,
		logger:   logging.Component(host.Logger(), Type),
		options:  *opts,
		raw:      options,
		registry: prometheus.NewRegistry(),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: opts.Namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~2.5s
		}, []string{"method"}),
	}

	server.registry.MustRegister(server.inFlight, server.requests, server.duration)

	if *opts.Runtime {
		server.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return server, nil
}

// Registry returns the registry served by the plugin, for custom collectors.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// Handler returns the exposition handler.
func (s *Server) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
}

// Instrument returns middleware recording request count, duration and
// in-flight requests. Requests for the metrics path itself are not recorded.
func (s *Server) Instrument() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == s.options.Path {
				next.ServeHTTP(w, r)

				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			s.inFlight.Inc()
			defer s.inFlight.Dec()

			next.ServeHTTP(rec, r)

			s.requests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
			s.duration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
		})
	}
}

// Listen mounts the exposition handler on the binder target or serves it on its own address.
func (s *Server) Listen(ctx context.Context, binder plugin.Binder) (*plugin.ActiveServerInfo, error) {
	own, info, err := httpserver.Attach(ctx, s.host, binder, s.options.Path, s.Handler(), s.raw)
	if err != nil {
		return nil, fmt.Errorf("metrics listen: %w", err)
	}

	info.Type = Type

	s.mu.Lock()
	s.own = own
	s.info = info
	s.mu.Unlock()

	s.logger.Info("metrics exposed", slog.String("path", s.options.Path), slog.Int("port", info.Port))

	return info, nil
}

// Info returns the bound address, or nil before Listen.
func (s *Server) Info() *plugin.ActiveServerInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.info
}

// Close stops the plugin's own listener, if any.
func (s *Server) Close(ctx context.Context) error {
	s.mu.RLock()
	own := s.own
	s.mu.RUnlock()

	if own == nil {
		return nil
	}

	return own.Close(ctx)
}

type statusRecorder struct {
	http.ResponseWriter

	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
