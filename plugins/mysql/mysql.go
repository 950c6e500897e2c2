// Package mysql is the "database:mysql" plugin: a pooled sqlx handle over
// go-sql-driver/mysql.
package mysql

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/ckenx/kenx/config"
	"github.com/ckenx/kenx/logging"
	"github.com/ckenx/kenx/plugin"
	"github.com/ckenx/kenx/plugins/internal/dbkit"
	driver "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// Reference is the plugin reference of this package.
const Reference = "database:mysql"

const (
	driverName  = "mysql"
	defaultPort = 3306
)

// Database is a MySQL connection pool.
type Database struct {
	logger *slog.Logger
	dsn    string
	pool   *config.PoolConfig
	open   dbkit.OpenFunc
	conn   dbkit.Conn[*sqlx.DB]
}

var _ plugin.DatabasePlugin = (*Database)(nil)

// New is the plugin.DatabaseFactory of "database:mysql".
func New(host plugin.Host, cfg config.DatabaseConfig) (plugin.DatabasePlugin, error) {
	return NewWithOpener(host, cfg, sqlx.Open)
}

// NewWithOpener is New with a custom handle opener.
func NewWithOpener(host plugin.Host, cfg config.DatabaseConfig, open dbkit.OpenFunc) (*Database, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}

	var pool *config.PoolConfig
	if cfg.Options != nil {
		pool = cfg.Options.Pool
	}

	return &Database{
		logger: logging.Component(host.Logger(), cfg.RegistryKey()),
		dsn:    dsn,
		pool:   pool,
		open:   open,
	}, nil
}

// DSN builds a driver DSN from a "mysql://" URI, a raw driver DSN or discrete options.
func DSN(cfg config.DatabaseConfig) (string, error) {
	switch {
	case strings.HasPrefix(cfg.URI, "mysql://"):
		return fromURL(cfg.URI)
	case cfg.URI != "":
		parsed, err := driver.ParseDSN(cfg.URI)
		if err != nil {
			return "", fmt.Errorf("%w: %w", dbkit.ErrInvalidConfig, err)
		}

		return parsed.FormatDSN(), nil
	case cfg.Options != nil && cfg.Options.Host != "":
		port := cfg.Options.Port
		if port == 0 {
			port = defaultPort
		}

		dsnCfg := newConfig()
		dsnCfg.User = cfg.Options.User
		dsnCfg.Passwd = cfg.Options.Password
		dsnCfg.Addr = net.JoinHostPort(cfg.Options.Host, strconv.Itoa(port))
		dsnCfg.DBName = cfg.Options.Database

		return dsnCfg.FormatDSN(), nil
	default:
		return "", fmt.Errorf("%w: mysql needs uri or options.host", dbkit.ErrInvalidConfig)
	}
}

func fromURL(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", dbkit.ErrInvalidConfig, err)
	}

	dsnCfg := newConfig()
	dsnCfg.User = parsed.User.Username()
	dsnCfg.Passwd, _ = parsed.User.Password()
	dsnCfg.DBName = strings.TrimPrefix(parsed.Path, "/")

	dsnCfg.Addr = parsed.Host
	if parsed.Port() == "" {
		dsnCfg.Addr = net.JoinHostPort(parsed.Hostname(), strconv.Itoa(defaultPort))
	}

	dsn := dsnCfg.FormatDSN()
	if parsed.RawQuery != "" {
		separator := "?"
		if strings.Contains(dsn, "?") {
			separator = "&"
		}

		dsn += separator + parsed.RawQuery
	}

	_, err = driver.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("%w: %w", dbkit.ErrInvalidConfig, err)
	}

	return dsn, nil
}

func newConfig() *driver.Config {
	dsnCfg := driver.NewConfig()
	dsnCfg.Net = "tcp"
	dsnCfg.ParseTime = true

	return dsnCfg
}

// Connect opens the pool and returns the *sqlx.DB.
func (d *Database) Connect(ctx context.Context) (any, error) {
	db, err := d.conn.Connect(ctx, func(ctx context.Context) (*sqlx.DB, error) {
		return dbkit.OpenSQL(ctx, d.open, driverName, d.dsn, d.pool)
	})
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	d.logger.Info("mysql connected")

	return db, nil
}

// Connection returns the open *sqlx.DB. name is ignored; a pool serves one database.
func (d *Database) Connection(string) (any, error) {
	return d.conn.Get() //nolint:wrapcheck
}

// Disconnect closes the pool.
func (d *Database) Disconnect(context.Context) error {
	return d.conn.Disconnect(func(db *sqlx.DB) error { //nolint:wrapcheck
		d.logger.Info("mysql disconnected")

		return db.Close()
	})
}
