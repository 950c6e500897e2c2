// Package sqlite is the "database:sqlite" plugin over mattn/go-sqlite3.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ckenx/kenx/config"
	"github.com/ckenx/kenx/logging"
	"github.com/ckenx/kenx/plugin"
	"github.com/ckenx/kenx/plugins/internal/dbkit"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
)

// Reference is the plugin reference of this package.
const Reference = "database:sqlite"

const (
	driverName = "sqlite3"
	memory     = ":memory:"
)

// Database is a SQLite handle.
type Database struct {
	logger *slog.Logger
	dsn    string
	pool   *config.PoolConfig
	conn   dbkit.Conn[*sqlx.DB]
}

var _ plugin.DatabasePlugin = (*Database)(nil)

// New is the plugin.DatabaseFactory of "database:sqlite". The file is the
// uri, else options.database, else an in-memory database. Relative paths
// resolve against the project root.
func New(host plugin.Host, cfg config.DatabaseConfig) (plugin.DatabasePlugin, error) {
	var pool *config.PoolConfig
	if cfg.Options != nil {
		pool = cfg.Options.Pool
	}

	return &Database{
		logger: logging.Component(host.Logger(), cfg.RegistryKey()),
		dsn:    DSN(host, cfg),
		pool:   pool,
	}, nil
}

// DSN returns the go-sqlite3 data source for cfg.
func DSN(host plugin.Host, cfg config.DatabaseConfig) string {
	source := strings.TrimPrefix(cfg.URI, "sqlite://")
	if source == "" && cfg.Options != nil {
		source = cfg.Options.Database
	}

	switch {
	case source == "", source == memory:
		return "file::memory:?cache=shared"
	case strings.HasPrefix(source, "file:"):
		return source
	}

	path, query, _ := strings.Cut(source, "?")
	dsn := "file:" + host.ResolvePath(path)

	if query != "" {
		dsn += "?" + query
	}

	return dsn
}

// Connect opens the database and returns the *sqlx.DB.
func (d *Database) Connect(ctx context.Context) (any, error) {
	db, err := d.conn.Connect(ctx, func(ctx context.Context) (*sqlx.DB, error) {
		return dbkit.OpenSQL(ctx, sqlx.Open, driverName, d.dsn, d.pool)
	})
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	d.logger.Info("sqlite opened", slog.String("dsn", d.dsn))

	return db, nil
}

// Connection returns the open *sqlx.DB. name is ignored.
func (d *Database) Connection(string) (any, error) {
	return d.conn.Get() //nolint:wrapcheck
}

// Disconnect closes the database.
func (d *Database) Disconnect(context.Context) error {
	err := d.conn.Disconnect(func(db *sqlx.DB) error { return db.Close() })
	if err != nil {
		return fmt.Errorf("closing sqlite: %w", err)
	}

	return nil
}
