// Package core provisions the resources described by the setup configuration
// and dispatches them to the project's entrypoint modules.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/ckenx/kenx/logging"
	"github.com/ckenx/kenx/plugin"
	"github.com/ckenx/kenx/registry"
	"github.com/ckenx/kenx/setup"
)

// Registry sections.
const (
	SectionDatabase = "database"
)

// Default takeover lists of MVC modules.
var (
	DefaultModelsTakeover      = []string{"database:*"}
	DefaultControllersTakeover = []string{"http:*"}
)

// Options tune dispatch.
type Options struct {
	// Entrypoint is the singleton module path, "index" by default.
	Entrypoint string
	// Takeover is used by a singleton entrypoint that declares none.
	Takeover []string
	// Strict fails dispatch when a named takeover resource is missing.
	Strict bool
}

// Option configures a Core.
type Option func(*Options)

// WithEntrypoint sets the singleton module path.
func WithEntrypoint(path string) Option {
	return func(o *Options) {
		o.Entrypoint = path
	}
}

// WithTakeover sets the fallback takeover list of a singleton entrypoint.
func WithTakeover(selectors ...string) Option {
	return func(o *Options) {
		o.Takeover = selectors
	}
}

// WithStrictTakeover fails dispatch when a named takeover resource is missing.
func WithStrictTakeover() Option {
	return func(o *Options) {
		o.Strict = true
	}
}

type provisionedServer struct {
	key    string
	server plugin.ServerPlugin
}

type provisionedDatabase struct {
	key      string
	database plugin.DatabasePlugin
}

// Core drives autoload, dispatch and shutdown.
type Core struct {
	manager  *setup.Manager
	registry *registry.Registry
	options  Options
	logger   *slog.Logger

	servers   []provisionedServer
	databases []provisionedDatabase
}

// New creates a Core provisioning into reg.
func New(manager *setup.Manager, reg *registry.Registry, opts ...Option) *Core {
	options := Options{Entrypoint: "index"}

	for _, apply := range opts {
		apply(&options)
	}

	return &Core{
		manager:  manager,
		registry: reg,
		options:  options,
		logger:   logging.Component(manager.Logger(), "core"),
	}
}

// Registry returns the registry resources are provisioned into.
func (c *Core) Registry() *registry.Registry {
	return c.registry
}

// Start runs Autoload then Dispatch.
func (c *Core) Start(ctx context.Context) error {
	err := c.Autoload(ctx)
	if err != nil {
		return err
	}

	return c.Dispatch(ctx)
}

// Shutdown closes servers in reverse order, then disconnects databases in reverse order.
func (c *Core) Shutdown(ctx context.Context) error {
	var errs []error

	for _, provisioned := range slices.Backward(c.servers) {
		err := provisioned.server.Close(ctx)
		if err != nil {
			c.logger.Error("closing server failed", slog.String("key", provisioned.key), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("closing %s: %w", provisioned.key, err))
		}
	}

	for _, provisioned := range slices.Backward(c.databases) {
		err := provisioned.database.Disconnect(ctx)
		if err != nil {
			c.logger.Error("disconnecting database failed", slog.String("key", provisioned.key), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("disconnecting %s: %w", provisioned.key, err))
		}
	}

	c.servers = nil
	c.databases = nil

	return errors.Join(errs...)
}
