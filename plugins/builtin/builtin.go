// Package builtin bundles the plugins shipped with kenx.
package builtin

import (
	"github.com/ckenx/kenx/plugin"
	"github.com/ckenx/kenx/plugins/chiapp"
	"github.com/ckenx/kenx/plugins/ginapp"
	"github.com/ckenx/kenx/plugins/httpserver"
	"github.com/ckenx/kenx/plugins/metrics"
	"github.com/ckenx/kenx/plugins/muxapp"
	"github.com/ckenx/kenx/plugins/mysql"
	"github.com/ckenx/kenx/plugins/postgres"
	"github.com/ckenx/kenx/plugins/rabbitmq"
	"github.com/ckenx/kenx/plugins/redis"
	"github.com/ckenx/kenx/plugins/sqlite"
	"github.com/ckenx/kenx/plugins/static"
	"github.com/ckenx/kenx/plugins/websocket"
)

// Catalog returns a new catalog holding every built-in plugin.
func Catalog() *plugin.Catalog {
	return plugin.NewCatalog().
		MustAdd(httpserver.Reference, plugin.ServerFactory(httpserver.New)).
		MustAdd(websocket.Reference, plugin.ServerFactory(websocket.New)).
		MustAdd(metrics.Reference, plugin.ServerFactory(metrics.New)).
		MustAdd(chiapp.Reference, plugin.ApplicationFactory(chiapp.New)).
		MustAdd(ginapp.Reference, plugin.ApplicationFactory(ginapp.New)).
		MustAdd(muxapp.Reference, plugin.ApplicationFactory(muxapp.New)).
		MustAdd(static.Reference, plugin.ExtensionFactory(static.Apply)).
		MustAdd(mysql.Reference, plugin.DatabaseFactory(mysql.New)).
		MustAdd(postgres.Reference, plugin.DatabaseFactory(postgres.New)).
		MustAdd(sqlite.Reference, plugin.DatabaseFactory(sqlite.New)).
		MustAdd(redis.Reference, plugin.DatabaseFactory(redis.New)).
		MustAdd(rabbitmq.Reference, plugin.DatabaseFactory(rabbitmq.New))
}
