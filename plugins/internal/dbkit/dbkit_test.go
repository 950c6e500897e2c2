package dbkit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ckenx/kenx/config"
	"github.com/ckenx/kenx/plugins/internal/dbkit"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDial = errors.New("dial refused")

func TestConn(t *testing.T) {
	t.Parallel()

	var conn dbkit.Conn[string]

	_, err := conn.Get()
	require.ErrorIs(t, err, dbkit.ErrNotConnected)

	_, err = conn.Connect(context.Background(), func(context.Context) (string, error) { return "", errDial })
	require.ErrorIs(t, err, errDial)

	dials := 0
	dial := func(context.Context) (string, error) {
		dials++

		return "handle", nil
	}

	for range 2 {
		value, err := conn.Connect(context.Background(), dial)
		require.NoError(t, err)
		assert.Equal(t, "handle", value)
	}

	assert.Equal(t, 1, dials)

	var closed []string

	closeFn := func(value string) error {
		closed = append(closed, value)

		return nil
	}

	require.NoError(t, conn.Disconnect(closeFn))
	require.NoError(t, conn.Disconnect(closeFn))
	assert.Equal(t, []string{"handle"}, closed)

	_, err = conn.Get()
	require.ErrorIs(t, err, dbkit.ErrNotConnected)
}

func TestOpenSQL(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	mock.ExpectPing()

	var gotDriver, gotDSN string

	open := func(driverName, dsn string) (*sqlx.DB, error) {
		gotDriver, gotDSN = driverName, dsn

		return sqlx.NewDb(db, "sqlmock"), nil
	}

	handle, err := dbkit.OpenSQL(context.Background(), open, "mysql", "dsn", &config.PoolConfig{MaxOpen: 3})
	require.NoError(t, err)
	assert.Equal(t, "mysql", gotDriver)
	assert.Equal(t, "dsn", gotDSN)
	assert.Equal(t, 3, handle.Stats().MaxOpenConnections)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenSQLPingFailure(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	mock.ExpectPing().WillReturnError(errDial)
	mock.ExpectClose()

	_, err = dbkit.OpenSQL(context.Background(), func(string, string) (*sqlx.DB, error) {
		return sqlx.NewDb(db, "sqlmock"), nil
	}, "mysql", "dsn", nil)
	require.ErrorIs(t, err, errDial)
	require.NoError(t, mock.ExpectationsWereMet())
}
