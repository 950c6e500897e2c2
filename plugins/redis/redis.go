// Package redis is the "database:redis" plugin over go-redis.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/ckenx/kenx/config"
	"github.com/ckenx/kenx/logging"
	"github.com/ckenx/kenx/plugin"
	"github.com/ckenx/kenx/plugins/internal/dbkit"
	goredis "github.com/redis/go-redis/v9"
)

// Reference is the plugin reference of this package.
const Reference = "database:redis"

const defaultPort = 6379

// Database is a Redis client.
type Database struct {
	logger  *slog.Logger
	options *goredis.Options
	conn    dbkit.Conn[*goredis.Client]
}

var _ plugin.DatabasePlugin = (*Database)(nil)

// New is the plugin.DatabaseFactory of "database:redis".
func New(host plugin.Host, cfg config.DatabaseConfig) (plugin.DatabasePlugin, error) {
	options, err := ClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	return &Database{
		logger:  logging.Component(host.Logger(), cfg.RegistryKey()),
		options: options,
	}, nil
}

// ClientOptions parses a redis:// URI, or builds options from host, port,
// password and a numeric database index.
func ClientOptions(cfg config.DatabaseConfig) (*goredis.Options, error) {
	if cfg.URI != "" {
		options, err := goredis.ParseURL(cfg.URI)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", dbkit.ErrInvalidConfig, err)
		}

		return options, nil
	}

	if cfg.Options == nil || cfg.Options.Host == "" {
		return nil, fmt.Errorf("%w: redis needs uri or options.host", dbkit.ErrInvalidConfig)
	}

	port := cfg.Options.Port
	if port == 0 {
		port = defaultPort
	}

	index := 0

	if cfg.Options.Database != "" {
		var err error

		index, err = strconv.Atoi(cfg.Options.Database)
		if err != nil {
			return nil, fmt.Errorf("%w: redis database must be an index: %w", dbkit.ErrInvalidConfig, err)
		}
	}

	options := &goredis.Options{ //nolint:exhaustruct // client defaults are fine
		Addr:     net.JoinHostPort(cfg.Options.Host, strconv.Itoa(port)),
		Username: cfg.Options.User,
		Password: cfg.Options.Password,
		DB:       index,
	}

	if pool := cfg.Options.Pool; pool != nil {
		options.PoolSize = pool.MaxOpen
		options.MaxIdleConns = pool.MaxIdle
		options.ConnMaxLifetime = pool.MaxLifetime
	}

	return options, nil
}

// Connect creates the client, pings the server and returns the *redis.Client.
func (d *Database) Connect(ctx context.Context) (any, error) {
	client, err := d.conn.Connect(ctx, func(ctx context.Context) (*goredis.Client, error) {
		client := goredis.NewClient(d.options)

		err := client.Ping(ctx).Err()
		if err != nil {
			_ = client.Close()

			return nil, fmt.Errorf("pinging redis %s: %w", d.options.Addr, err)
		}

		return client, nil
	})
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	d.logger.Info("redis connected", slog.String("addr", d.options.Addr))

	return client, nil
}

// Connection returns the open *redis.Client. name is ignored.
func (d *Database) Connection(string) (any, error) {
	return d.conn.Get() //nolint:wrapcheck
}

// Disconnect closes the client.
func (d *Database) Disconnect(context.Context) error {
	err := d.conn.Disconnect(func(client *goredis.Client) error { return client.Close() })
	if err != nil {
		return fmt.Errorf("closing redis: %w", err)
	}

	return nil
}
