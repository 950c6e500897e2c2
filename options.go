package kenx

import (
	"io"
	"time"

	"github.com/ckenx/kenx/core"
	"github.com/ckenx/kenx/entry"
	"github.com/ckenx/kenx/plugin"
	"github.com/ckenx/kenx/setup"

	"go.uber.org/fx"
)

// DefaultStartTimeout bounds autoload and dispatch when no timeout is set.
const DefaultStartTimeout = time.Minute

// Options holds configuration settings for the application.
type Options struct {
	Modules      []fx.Option
	LogLevel     string
	LogFormat    string
	LogOutput    io.Writer
	StartTimeout time.Duration
	Environment  map[string]string

	Setup []setup.Option
	Core  []core.Option
}

// Option defines a function type for applying configuration options.
type Option func(*Options)

// WithModules adds Fx modules to the application.
func WithModules(modules ...fx.Option) Option {
	return func(opts *Options) {
		opts.Modules = append(opts.Modules, modules...)
	}
}

// WithLogLevel sets the log level for the application.
// Valid levels are: "debug", "info", "warn", "error".
// If not set, KENX_LOG_LEVEL is used, then "info".
func WithLogLevel(level string) Option {
	return func(opts *Options) {
		opts.LogLevel = level
	}
}

// WithLogFormat selects "json" or "text" output. Development mode defaults to text.
func WithLogFormat(format string) Option {
	return func(opts *Options) {
		opts.LogFormat = format
	}
}

// WithLogOutput sets where logs are written. It defaults to stderr.
func WithLogOutput(w io.Writer) Option {
	return func(opts *Options) {
		opts.LogOutput = w
	}
}

// WithStartTimeout bounds the whole start sequence: autoload and dispatch.
func WithStartTimeout(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.StartTimeout = timeout
	}
}

// WithWorkdir sets the project root holding .config, plugins and entrypoints.
func WithWorkdir(dir string) Option {
	return func(opts *Options) {
		opts.Setup = append(opts.Setup, setup.WithWorkdir(dir))
	}
}

// WithEnvironment replaces the process environment, for tests and embedding.
func WithEnvironment(vars map[string]string) Option {
	return func(opts *Options) {
		opts.Environment = vars
		opts.Setup = append(opts.Setup, setup.WithEnvironment(vars))
	}
}

// WithCategories sets the plugin category allow-list.
func WithCategories(categories ...string) Option {
	return func(opts *Options) {
		opts.Setup = append(opts.Setup, setup.WithCategories(categories...))
	}
}

// WithPlugins registers in-process plugins, searched before the built-in ones.
func WithPlugins(catalog *plugin.Catalog) Option {
	return WithPluginSource(plugin.NewCatalogSource("app", catalog))
}

// WithPluginSource adds plugin sources searched after the project plugins directory.
func WithPluginSource(sources ...plugin.Source) Option {
	return func(opts *Options) {
		opts.Setup = append(opts.Setup, setup.WithPluginSource(sources...))
	}
}

// WithModuleSource adds entrypoint sources searched before compiled shared objects.
func WithModuleSource(sources ...entry.Source) Option {
	return func(opts *Options) {
		opts.Setup = append(opts.Setup, setup.WithModuleSource(sources...))
	}
}

// WithEntrypoints registers in-process entrypoint modules such as "index" or "controllers/index".
func WithEntrypoints(catalog *entry.Catalog) Option {
	return WithModuleSource(catalog)
}

// WithEntrypoint sets the singleton entrypoint path.
func WithEntrypoint(path string) Option {
	return func(opts *Options) {
		opts.Core = append(opts.Core, core.WithEntrypoint(path))
	}
}

// WithTakeover sets the takeover list of a singleton entrypoint that declares none.
func WithTakeover(selectors ...string) Option {
	return func(opts *Options) {
		opts.Core = append(opts.Core, core.WithTakeover(selectors...))
	}
}

// WithStrictTakeover fails dispatch when a named takeover resource is missing.
func WithStrictTakeover() Option {
	return func(opts *Options) {
		opts.Core = append(opts.Core, core.WithStrictTakeover())
	}
}
