package core

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/ckenx/kenx/config"
	"github.com/ckenx/kenx/plugin"
	"github.com/ckenx/kenx/registry"
)

// Fallback HTTP address when neither the server nor HTTP_HOST/HTTP_PORT set one.
const (
	DefaultHost = "0.0.0.0"
	DefaultPort = 8000
)

const defaultRetryBackoff = 500 * time.Millisecond

// Autoload loads the environment and setup, then provisions every database and
// server in declared order. The first failure stops provisioning.
func (c *Core) Autoload(ctx context.Context) error {
	err := c.manager.LoadEnv()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	err = c.manager.Initialize()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	setup := c.manager.Config()

	for _, database := range setup.Databases {
		err := c.provisionDatabase(ctx, database)
		if err != nil {
			return &ProvisionError{Section: SectionDatabase, Key: database.RegistryKey(), Type: database.Type, Err: err}
		}
	}

	for _, server := range setup.Servers {
		err := c.provisionServer(ctx, server)
		if err != nil {
			return &ProvisionError{Section: server.Type, Key: server.RegistryKey(), Type: server.Type, Err: err}
		}
	}

	c.logger.Info("autoload complete", slog.Int("resources", c.registry.Len()))

	return nil
}

func (c *Core) provisionDatabase(ctx context.Context, cfg config.DatabaseConfig) error {
	reference := cfg.Plugin
	if reference == "" {
		reference = plugin.CategoryDatabase + ":" + cfg.Type
	}

	factory, err := plugin.ImportDatabase(c.manager.ImportPlugin, reference)
	if err != nil {
		return err //nolint:wrapcheck
	}

	database, err := factory(c.manager, cfg)
	if err != nil {
		return fmt.Errorf("constructing %s: %w", reference, err)
	}

	key := cfg.RegistryKey()

	c.registry.Set(SectionDatabase, key, database)
	c.databases = append(c.databases, provisionedDatabase{key: registry.Key(SectionDatabase, key), database: database})

	if !cfg.Autoconnect {
		c.logger.Info("database registered", slog.String("key", key), slog.String("plugin", reference))

		return nil
	}

	err = c.connect(ctx, database)
	if err != nil {
		return fmt.Errorf("connecting: %w", err)
	}

	c.logger.Info("database connected", slog.String("key", key), slog.String("plugin", reference),
		slog.String("target", redact(cfg.Target())))

	return nil
}

// connect bounds each attempt by the connect timeout and retries with exponential backoff.
func (c *Core) connect(ctx context.Context, database plugin.DatabasePlugin) error {
	env := c.manager.Env()

	base := env.RetryBackoff
	if base <= 0 {
		base = defaultRetryBackoff
	}

	backoff := retry.WithMaxRetries(env.ConnectRetries, retry.NewExponential(base))

	return retry.Do(ctx, backoff, func(ctx context.Context) error { //nolint:wrapcheck
		attemptCtx, cancel := withTimeout(ctx, env.ConnectTimeout)
		defer cancel()

		_, err := database.Connect(attemptCtx)
		if err != nil {
			c.logger.Warn("connect attempt failed", slog.Any("error", err))

			return retry.RetryableError(err)
		}

		return nil
	})
}

func (c *Core) provisionServer(ctx context.Context, cfg config.ServerConfig) error {
	if cfg.Type == "" {
		return fmt.Errorf("%w: server type is required", ErrConfiguration)
	}

	var (
		server plugin.ServerPlugin
		err    error
	)

	if cfg.Type == config.HTTPType {
		server, err = c.provisionHTTP(ctx, cfg)
	} else {
		server, err = c.provisionAuxiliary(ctx, cfg)
	}

	key := cfg.RegistryKey()
	fullKey := registry.Key(cfg.Type, key)

	if err != nil {
		// A server that failed to listen may still hold resources.
		if server != nil {
			c.servers = append(c.servers, provisionedServer{key: fullKey, server: server})
		}

		return err
	}

	// Register before checking Info so Shutdown still closes a half-started server.
	c.registry.Set(cfg.Type, key, server)
	c.servers = append(c.servers, provisionedServer{key: fullKey, server: server})

	info := server.Info()
	if info == nil {
		return ErrServerNotBound
	}

	c.logger.Info("server started", slog.String("key", fullKey),
		slog.String("host", info.Host), slog.Int("port", info.Port))

	return nil
}

func (c *Core) provisionHTTP(ctx context.Context, cfg config.ServerConfig) (plugin.ServerPlugin, error) {
	env := c.manager.Env()

	defaults := config.ServerConfig{Host: env.HTTPHost, Port: env.HTTPPort}

	err := cfg.ApplyDefaults(defaults)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	err = cfg.ApplyDefaults(config.ServerConfig{Host: DefaultHost, Port: DefaultPort})
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	listenCtx, cancel := withTimeout(ctx, env.ListenTimeout)
	defer cancel()

	if reference := cfg.Application.Reference(); reference != "" {
		return c.serveApplication(listenCtx, reference, cfg)
	}

	reference := cfg.Plugin
	if reference == "" {
		reference = plugin.CategoryServer + ":" + config.HTTPType
	}

	factory, err := plugin.ImportServer(c.manager.ImportPlugin, reference)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	server, err := factory(c.manager, nil, serverOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("constructing %s: %w", reference, err)
	}

	_, err = server.Listen(listenCtx, plugin.Binder{Host: cfg.Host, Port: cfg.Port})
	if err != nil {
		return server, fmt.Errorf("listening on %s: %w", cfg.Address(), err)
	}

	return server, nil
}

func (c *Core) serveApplication(ctx context.Context, reference string, cfg config.ServerConfig) (plugin.ServerPlugin, error) {
	factory, err := plugin.ImportApplication(c.manager.ImportPlugin, reference)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	app, err := factory(c.manager, cfg)
	if err != nil {
		return nil, fmt.Errorf("constructing %s: %w", reference, err)
	}

	for _, extension := range cfg.Application.Extensions() {
		apply, err := plugin.ImportExtension(c.manager.ImportPlugin, extension.Plugin)
		if err != nil {
			return nil, fmt.Errorf("%s extension: %w", extension.Section, err)
		}

		err = apply(c.manager, app, extension.Config)
		if err != nil {
			return nil, fmt.Errorf("applying %s extension %s: %w", extension.Section, extension.Plugin, err)
		}

		c.logger.Debug("application extension applied",
			slog.String("section", extension.Section), slog.String("plugin", extension.Plugin))
	}

	server, err := app.Serve(ctx, true)
	if err != nil {
		return server, fmt.Errorf("serving %s: %w", reference, err)
	}

	return server, nil
}

func (c *Core) provisionAuxiliary(ctx context.Context, cfg config.ServerConfig) (plugin.ServerPlugin, error) {
	binder, err := c.binder(cfg)
	if err != nil {
		return nil, err
	}

	reference := cfg.Plugin
	if reference == "" {
		reference = plugin.CategoryServer + ":" + cfg.Type
	}

	factory, err := plugin.ImportServer(c.manager.ImportPlugin, reference)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	server, err := factory(c.manager, nil, serverOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("constructing %s: %w", reference, err)
	}

	listenCtx, cancel := withTimeout(ctx, c.manager.Env().ListenTimeout)
	defer cancel()

	_, err = server.Listen(listenCtx, binder)
	if err != nil {
		return server, fmt.Errorf("listening: %w", err)
	}

	return server, nil
}

// binder attaches to the server named by bindTo, or to PORT, falling back to HTTP_PORT.
func (c *Core) binder(cfg config.ServerConfig) (plugin.Binder, error) {
	env := c.manager.Env()

	if cfg.BindTo != "" {
		key := cfg.BindTo
		if !strings.Contains(key, ":") {
			key = registry.Key(config.HTTPType, key)
		}

		resource, ok := c.registry.Lookup(key)
		if !ok {
			return plugin.Binder{}, fmt.Errorf("%w: bindTo target %s is not registered", ErrConfiguration, key)
		}

		target, ok := resource.(plugin.ServerPlugin)
		if !ok {
			return plugin.Binder{}, fmt.Errorf("%w: bindTo target %s is not a server", ErrConfiguration, key)
		}

		return plugin.Binder{Target: target}, nil
	}

	port := cfg.Port
	if port == 0 {
		port = env.HTTPPort
	}

	if port == 0 {
		return plugin.Binder{}, fmt.Errorf("%w: %s server has neither bindTo nor PORT", ErrConfiguration, cfg.Type)
	}

	host := cfg.Host
	if host == "" {
		host = env.HTTPHost
	}

	if host == "" {
		host = DefaultHost
	}

	return plugin.Binder{Host: host, Port: port}, nil
}

// serverOptions merges unrecognized server fields under the explicit options.
func serverOptions(cfg config.ServerConfig) map[string]any {
	options := make(map[string]any, len(cfg.Extra)+len(cfg.Options))
	maps.Copy(options, cfg.Extra)
	maps.Copy(options, cfg.Options)

	return options
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, timeout)
}

// redact hides the password of a connection URI.
func redact(target string) string {
	scheme, rest, found := strings.Cut(target, "://")
	if !found {
		return target
	}

	credentials, host, found := strings.Cut(rest, "@")
	if !found {
		return target
	}

	user, _, _ := strings.Cut(credentials, ":")

	return scheme + "://" + user + ":***@" + host
}
