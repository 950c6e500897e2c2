package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ckenx/kenx/config"
	"github.com/ckenx/kenx/plugin/plugintest"
	"github.com/ckenx/kenx/plugins/internal/dbkit"
	"github.com/ckenx/kenx/plugins/sqlite"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	t.Parallel()

	host := plugintest.NewHost(nil)
	host.Root = "/srv/app"

	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		want string
	}{
		{"memory by default", config.DatabaseConfig{}, "file::memory:?cache=shared"},
		{"relative uri", config.DatabaseConfig{URI: "sqlite://data/app.db?_fk=1"}, "file:/srv/app/data/app.db?_fk=1"},
		{"absolute option", config.DatabaseConfig{Options: &config.DatabaseOptions{Database: "/tmp/x.db"}}, "file:/tmp/x.db"},
		{"file uri kept", config.DatabaseConfig{URI: "file:test.db?mode=ro"}, "file:test.db?mode=ro"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, sqlite.DSN(host, tt.cfg))
		})
	}
}

func TestConnectAndQuery(t *testing.T) {
	t.Parallel()

	host := plugintest.NewHost(nil)
	host.Root = t.TempDir()

	database, err := sqlite.New(host, config.DatabaseConfig{URI: "app.db"})
	require.NoError(t, err)

	_, err = database.Connection("")
	require.ErrorIs(t, err, dbkit.ErrNotConnected)

	handle, err := database.Connect(context.Background())
	require.NoError(t, err)

	db, ok := handle.(*sqlx.DB)
	require.True(t, ok)

	_, err = db.Exec(`CREATE TABLE users (name TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO users (name) VALUES (?)`, "ada")
	require.NoError(t, err)

	var names []string
	require.NoError(t, db.Select(&names, `SELECT name FROM users`))
	assert.Equal(t, []string{"ada"}, names)

	require.NoError(t, database.Disconnect(context.Background()))
	assert.FileExists(t, filepath.Join(host.Root, "app.db"))
}
