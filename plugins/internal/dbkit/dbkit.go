// Package dbkit holds the connection bookkeeping shared by the database plugins.
package dbkit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ckenx/kenx/config"
	"github.com/jmoiron/sqlx"
)

var (
	// ErrNotConnected is returned by Connection before Connect succeeded.
	ErrNotConnected = errors.New("database not connected")
	// ErrInvalidConfig is returned when neither uri nor options are usable.
	ErrInvalidConfig = errors.New("invalid database configuration")
)

// Pool defaults applied when the configuration leaves them unset.
const (
	DefaultMaxOpen     = 20
	DefaultMaxIdle     = 10
	DefaultMaxLifetime = 30 * time.Minute
)

// Conn guards a connection opened once and shared until Disconnect.
type Conn[T any] struct {
	mu    sync.Mutex
	value T
	open  bool
}

// Connect returns the open connection, dialing it first if needed.
func (c *Conn[T]) Connect(ctx context.Context, dial func(context.Context) (T, error)) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.open {
		return c.value, nil
	}

	value, err := dial(ctx)
	if err != nil {
		var zero T

		return zero, err
	}

	c.value = value
	c.open = true

	return value, nil
}

// Get returns the open connection or ErrNotConnected.
func (c *Conn[T]) Get() (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		var zero T

		return zero, ErrNotConnected
	}

	return c.value, nil
}

// Disconnect closes the open connection. It is a no-op when not connected.
func (c *Conn[T]) Disconnect(closeFn func(T) error) error {
	c.mu.Lock()
	value, open := c.value, c.open

	var zero T

	c.value, c.open = zero, false
	c.mu.Unlock()

	if !open {
		return nil
	}

	return closeFn(value)
}

// OpenFunc opens a database handle without connecting.
type OpenFunc func(driverName, dsn string) (*sqlx.DB, error)

// OpenSQL opens dsn with open, applies pool settings and pings the database.
func OpenSQL(ctx context.Context, open OpenFunc, driverName, dsn string, pool *config.PoolConfig) (*sqlx.DB, error) {
	if open == nil {
		open = sqlx.Open
	}

	db, err := open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", driverName, err)
	}

	settings := config.PoolConfig{MaxOpen: DefaultMaxOpen, MaxIdle: DefaultMaxIdle, MaxLifetime: DefaultMaxLifetime}
	if pool != nil {
		if pool.MaxOpen > 0 {
			settings.MaxOpen = pool.MaxOpen
		}

		if pool.MaxIdle > 0 {
			settings.MaxIdle = pool.MaxIdle
		}

		if pool.MaxLifetime > 0 {
			settings.MaxLifetime = pool.MaxLifetime
		}
	}

	db.SetMaxOpenConns(settings.MaxOpen)
	db.SetMaxIdleConns(settings.MaxIdle)
	db.SetConnMaxLifetime(settings.MaxLifetime)

	err = db.PingContext(ctx)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("pinging %s: %w", driverName, err)
	}

	return db, nil
}
