// Package postgres is the "database:postgres" plugin backed by a pgx connection pool.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"

	"github.com/ckenx/kenx/config"
	"github.com/ckenx/kenx/logging"
	"github.com/ckenx/kenx/plugin"
	"github.com/ckenx/kenx/plugins/internal/dbkit"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Reference is the plugin reference of this package.
const Reference = "database:postgres"

const defaultPort = 5432

// Database is a PostgreSQL connection pool.
type Database struct {
	logger *slog.Logger
	pool   *pgxpool.Config
	conn   dbkit.Conn[*pgxpool.Pool]
}

var _ plugin.DatabasePlugin = (*Database)(nil)

// New is the plugin.DatabaseFactory of "database:postgres".
func New(host plugin.Host, cfg config.DatabaseConfig) (plugin.DatabasePlugin, error) {
	poolCfg, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	return &Database{
		logger: logging.Component(host.Logger(), cfg.RegistryKey()),
		pool:   poolCfg,
	}, nil
}

// ConnString returns the configured URI, or a postgres:// URL built from options.
func ConnString(cfg config.DatabaseConfig) (string, error) {
	if cfg.URI != "" {
		return cfg.URI, nil
	}

	if cfg.Options == nil || cfg.Options.Host == "" {
		return "", fmt.Errorf("%w: postgres needs uri or options.host", dbkit.ErrInvalidConfig)
	}

	port := cfg.Options.Port
	if port == 0 {
		port = defaultPort
	}

	connURL := url.URL{ //nolint:exhaustruct // only relevant fields needed
		Scheme: "postgres",
		Host:   net.JoinHostPort(cfg.Options.Host, strconv.Itoa(port)),
		Path:   "/" + cfg.Options.Database,
	}

	if cfg.Options.User != "" {
		connURL.User = url.UserPassword(cfg.Options.User, cfg.Options.Password)
	}

	return connURL.String(), nil
}

// PoolConfig parses the connection string and applies the pool settings.
func PoolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	connString, err := ConnString(cfg)
	if err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", dbkit.ErrInvalidConfig, err)
	}

	if cfg.Options != nil && cfg.Options.Pool != nil {
		pool := cfg.Options.Pool

		if pool.MaxOpen > 0 {
			poolCfg.MaxConns = int32(pool.MaxOpen) //nolint:gosec // pool sizes are small
		}

		if pool.MaxIdle > 0 {
			poolCfg.MinConns = int32(min(pool.MaxIdle, int(poolCfg.MaxConns))) //nolint:gosec // pool sizes are small
		}

		if pool.MaxLifetime > 0 {
			poolCfg.MaxConnLifetime = pool.MaxLifetime
		}
	}

	return poolCfg, nil
}

// Connect creates the pool, pings it and returns the *pgxpool.Pool.
func (d *Database) Connect(ctx context.Context) (any, error) {
	pool, err := d.conn.Connect(ctx, func(ctx context.Context) (*pgxpool.Pool, error) {
		pool, err := pgxpool.NewWithConfig(ctx, d.pool)
		if err != nil {
			return nil, fmt.Errorf("creating postgres pool: %w", err)
		}

		err = pool.Ping(ctx)
		if err != nil {
			pool.Close()

			return nil, fmt.Errorf("pinging postgres: %w", err)
		}

		return pool, nil
	})
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	d.logger.Info("postgres connected", slog.String("host", d.pool.ConnConfig.Host))

	return pool, nil
}

// Connection returns the open *pgxpool.Pool. name is ignored.
func (d *Database) Connection(string) (any, error) {
	return d.conn.Get() //nolint:wrapcheck
}

// Disconnect closes the pool.
func (d *Database) Disconnect(context.Context) error {
	return d.conn.Disconnect(func(pool *pgxpool.Pool) error { //nolint:wrapcheck
		pool.Close()
		d.logger.Info("postgres disconnected")

		return nil
	})
}
