package kenx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/ckenx/kenx/core"
	"github.com/ckenx/kenx/logging"
	"github.com/ckenx/kenx/plugins/builtin"
	"github.com/ckenx/kenx/registry"
	"github.com/ckenx/kenx/setup"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

var errAppNotInitialized = errors.New("app not initialized")

// App is a kenx project run by Fx: resources are provisioned on start and
// released on stop.
type App struct {
	app     *fx.App
	core    *core.Core
	manager *setup.Manager
}

// NewApp creates a new instance of App with Fx configured.
func NewApp(opts ...Option) *App {
	var options Options

	for _, apply := range opts {
		apply(&options)
	}

	app := &App{}
	app.app = configure(&options, app)

	return app
}

func configure(options *Options, app *App) *fx.App {
	vars := options.Environment
	if vars == nil {
		vars = env.ToMap(os.Environ())
	}

	loggerCfg := loggerConfig(options, vars)

	output := options.LogOutput
	if output == nil {
		output = os.Stderr
	}

	logger := createLogger(loggerCfg, output)
	slog.SetDefault(logger)

	startTimeout := options.StartTimeout
	if startTimeout <= 0 {
		startTimeout = DefaultStartTimeout
	}

	return fx.New(
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger}
		}),
		fx.StartTimeout(startTimeout),
		fx.Supply(loggerCfg),
		fx.Supply(logger),
		fx.Provide(
			registry.New,
			newManager(options.Setup),
			newCore(options.Core),
		),
		fx.Invoke(registerLifecycle),
		fx.Populate(&app.core, &app.manager),
		fx.Options(options.Modules...),
	)
}

func loggerConfig(options *Options, vars map[string]string) logging.LoggerConfig {
	cfg := logging.LoggerConfig{Level: options.LogLevel, Format: options.LogFormat}

	environment, err := setup.ParseEnvironment(vars)
	if err != nil {
		return cfg
	}

	if cfg.Level == "" {
		cfg.Level = environment.LogLevel
	}

	if cfg.Format == "" {
		cfg.Format = environment.LogFormat
	}

	if cfg.Format == "" && environment.Development() {
		cfg.Format = logging.FormatText
	}

	return cfg
}

func createLogger(config logging.LoggerConfig, w io.Writer) *slog.Logger {
	return logging.NewLogger(config, w)
}

func newManager(opts []setup.Option) func(*slog.Logger, fx.Shutdowner) *setup.Manager {
	return func(logger *slog.Logger, shutdowner fx.Shutdowner) *setup.Manager {
		fatal := func(err error) {
			logger.Error("fatal error, shutting down", slog.Any("error", err))

			shutdownErr := shutdowner.Shutdown(fx.ExitCode(1))
			if shutdownErr != nil {
				logger.Error("failed to trigger shutdown", slog.Any("error", shutdownErr))
			}
		}

		base := []setup.Option{
			setup.WithLogger(logger),
			setup.WithBundled(builtin.Catalog()),
			setup.WithFatal(fatal),
		}

		return setup.NewManager(append(base, opts...)...)
	}
}

func newCore(opts []core.Option) func(*setup.Manager, *registry.Registry) *core.Core {
	return func(manager *setup.Manager, reg *registry.Registry) *core.Core {
		return core.New(manager, reg, opts...)
	}
}

// registerLifecycle ties the core to the Fx lifecycle. A failed start never
// reaches OnStop, so what was provisioned is released right away.
func registerLifecycle(lifecycle fx.Lifecycle, kenx *core.Core, logger *slog.Logger) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			err := kenx.Start(ctx)
			if err != nil {
				shutdownErr := kenx.Shutdown(context.WithoutCancel(ctx))
				if shutdownErr != nil {
					logger.Error("cleanup after failed start", slog.Any("error", shutdownErr))
				}

				return err //nolint:wrapcheck
			}

			return nil
		},
		OnStop: kenx.Shutdown,
	})
}

// Err returns the error raised while building the application graph, if any.
func (app *App) Err() error {
	if app == nil || app.app == nil {
		return errAppNotInitialized
	}

	return app.app.Err() //nolint:wrapcheck
}

// Registry returns the provisioned resources. It is empty before Start.
func (app *App) Registry() *registry.Registry {
	if app == nil || app.core == nil {
		return nil
	}

	return app.core.Registry()
}

// Setup returns the setup manager. Its configuration is loaded on Start.
func (app *App) Setup() *setup.Manager {
	if app == nil {
		return nil
	}

	return app.manager
}

// Start provisions every resource and runs the entrypoints.
func (app *App) Start() error {
	if app != nil && app.app != nil {
		err := app.app.Start(context.Background())
		if err != nil {
			return fmt.Errorf("failed to start app: %w", err)
		}

		return nil
	}

	return errAppNotInitialized
}

// Run starts the application and blocks until an OS signal is received, then shuts down gracefully.
func (app *App) Run() {
	if app == nil || app.app == nil {
		slog.Error("attempted to run an uninitialized app")

		return
	}

	app.app.Run()
}

// Wait blocks until the application is asked to stop and returns its exit code.
func (app *App) Wait() int {
	if app == nil || app.app == nil {
		return 1
	}

	signal := <-app.app.Wait()

	return signal.ExitCode
}

// Stop closes servers and disconnects databases.
func (app *App) Stop() error {
	if app != nil && app.app != nil {
		err := app.app.Stop(context.Background())
		if err != nil {
			return fmt.Errorf("failed to stop app: %w", err)
		}

		return nil
	}

	return errAppNotInitialized
}
