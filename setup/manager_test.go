package setup_test

import (
	"os"
	"path/filepath"
	goplugin "plugin"
	"testing"
	"time"

	"github.com/ckenx/kenx/config"
	"github.com/ckenx/kenx/entry"
	"github.com/ckenx/kenx/plugin"
	"github.com/ckenx/kenx/setup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func newProject(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()

	for name, content := range files {
		writeFile(t, filepath.Join(dir, filepath.FromSlash(name)), content)
	}

	return dir
}

const indexYAML = `
__extends__: [servers, databases]
directory:
  base: ./src
  pattern: mvc
frontend:
  ssr: true
`

const serversYAML = `
servers:
  - type: http
    HOST: "[env]:HTTP_HOST"
    PORT: "[env]:HTTP_PORT"
    application:
      framework: chi
`

const databasesYAML = `
databases:
  - type: redis
    plugin: database:redis
    uri: "[env]:REDIS_URL"
  - type: mysql
    key: main
    plugin: database:mysql
    autoconnect: true
    options:
      host: "[env]:MYSQL_HOST"
`

func TestManager_LoadEnvAndInitialize(t *testing.T) {
	t.Parallel()

	dir := newProject(t, map[string]string{
		".config/index.yml":     indexYAML,
		".config/servers.yml":   serversYAML,
		".config/databases.yml": databasesYAML,
		".env":                  "HTTP_HOST=127.0.0.1\nHTTP_PORT=9000\nREDIS_URL=redis://cache:6379\nKENX_CONNECT_TIMEOUT=2s\n",
		".env.local":            "HTTP_PORT=1111\n",
	})

	manager := setup.NewManager(
		setup.WithWorkdir(dir),
		setup.WithEnvironment(map[string]string{"HTTP_HOST": "10.0.0.1"}),
	)

	require.NoError(t, manager.LoadEnv())

	env := manager.Env()
	assert.Equal(t, "10.0.0.1", env.HTTPHost, "process values win over the dotenv file")
	assert.Equal(t, 9000, env.HTTPPort)
	assert.Equal(t, 2*time.Second, env.ConnectTimeout)
	assert.Equal(t, 10*time.Second, env.ListenTimeout)
	assert.False(t, env.Development())

	require.NoError(t, manager.Initialize())

	cfg := manager.Config()
	require.NotNil(t, cfg)
	assert.Equal(t, filepath.Join(dir, "src"), cfg.Directory.Base)
	assert.Equal(t, config.PatternMVC, cfg.Directory.Pattern)

	require.Len(t, cfg.Servers, 1)
	assert.Equal(t, "10.0.0.1:9000", cfg.Servers[0].Address())

	require.Len(t, cfg.Databases, 2)
	assert.Equal(t, "redis://cache:6379", cfg.Databases[0].URI)
	assert.Equal(t, "main", cfg.Databases[1].RegistryKey())

	assert.Equal(t, []string{"database:redis", "database:mysql"}, manager.Plugins())
	assert.Equal(t, map[string]any{"ssr": true}, manager.Section("frontend"))

	paths := make([]string, 0, len(manager.Issues()))
	for _, issue := range manager.Issues() {
		paths = append(paths, issue.Path)
	}

	assert.Contains(t, paths, "databases:1:options:host")
}

func TestManager_LoadEnv_Development(t *testing.T) {
	t.Parallel()

	dir := newProject(t, map[string]string{
		".env":       "HTTP_PORT=9000\n",
		".env.local": "HTTP_PORT=1111\n",
	})

	manager := setup.NewManager(
		setup.WithWorkdir(dir),
		setup.WithEnvironment(map[string]string{"NODE_ENV": "development"}),
	)

	require.NoError(t, manager.LoadEnv())
	assert.Equal(t, 1111, manager.Env().HTTPPort)
	assert.True(t, manager.Env().Development())
	assert.Equal(t, "1111", manager.Environment()["HTTP_PORT"])
}

func TestManager_LoadEnv_MissingFile(t *testing.T) {
	t.Parallel()

	manager := setup.NewManager(setup.WithWorkdir(t.TempDir()), setup.WithEnvironment(nil))

	require.NoError(t, manager.LoadEnv())
	assert.Equal(t, 30*time.Second, manager.Env().ConnectTimeout)
}

func TestManager_LoadEnv_ReadsVariablesSetAfterNewManager(t *testing.T) {
	dir := newProject(t, map[string]string{
		".config/index.yml": "databases:\n  - type: redis\n    uri: \"[env]:KENX_TEST_REDIS_URL\"\n",
	})

	manager := setup.NewManager(setup.WithWorkdir(dir))

	t.Setenv("KENX_TEST_REDIS_URL", "redis://late:6379")

	require.NoError(t, manager.LoadEnv())
	require.NoError(t, manager.Initialize())

	require.Len(t, manager.Config().Databases, 1)
	assert.Equal(t, "redis://late:6379", manager.Config().Databases[0].URI)
	assert.Empty(t, manager.Issues())
}

func TestManager_Initialize_MissingIndex(t *testing.T) {
	t.Parallel()

	manager := setup.NewManager(setup.WithWorkdir(t.TempDir()), setup.WithEnvironment(map[string]string{}))

	err := manager.Initialize()

	require.ErrorIs(t, err, setup.ErrSetupNotFound)
	assert.Nil(t, manager.Config())
}

func TestManager_BeforeInitialize(t *testing.T) {
	t.Parallel()

	manager := setup.NewManager(setup.WithWorkdir(t.TempDir()), setup.WithEnvironment(map[string]string{}))

	_, err := manager.ImportPlugin("server:http")
	require.ErrorIs(t, err, setup.ErrNotInitialized)

	_, err = manager.ImportModule(t.Context(), "index")
	require.ErrorIs(t, err, setup.ErrNotInitialized)

	assert.Nil(t, manager.Section("servers"))
}

func TestManager_ImportPlugin(t *testing.T) {
	t.Parallel()

	dir := newProject(t, map[string]string{".config/index.yml": "directory:\n  base: app\n"})

	bundled := plugin.NewCatalog().MustAdd("server:http", "bundled http")
	local := plugin.NewCatalog().MustAdd("app:@acme/web", "custom")

	var opened []string

	manager := setup.NewManager(
		setup.WithWorkdir(dir),
		setup.WithEnvironment(map[string]string{}),
		setup.WithBundled(bundled),
		setup.WithPluginSource(plugin.NewCatalogSource("custom", local)),
		setup.WithPluginOpener(func(path string) (plugin.Symbols, error) {
			opened = append(opened, path)

			return nil, os.ErrNotExist
		}),
	)

	require.NoError(t, manager.Initialize())

	export, err := manager.ImportPlugin("server:http")
	require.NoError(t, err)
	assert.Equal(t, "bundled http", export)

	export, err = manager.ImportPlugin("app:@acme/web")
	require.NoError(t, err)
	assert.Equal(t, "custom", export)

	_, err = manager.ImportPlugin("database:missing")
	require.ErrorIs(t, err, plugin.ErrPluginNotFound)

	assert.Equal(t, []string{
		filepath.Join(dir, "app", "plugins", "http.so"),
		filepath.Join(dir, "app", "plugins", "@acme", "web.so"),
		filepath.Join(dir, "app", "plugins", "missing.so"),
	}, opened)
}

func TestManager_Typescript(t *testing.T) {
	t.Parallel()

	dir := newProject(t, map[string]string{
		".config/index.yml": "typescript: true\ndirectory:\n  base: src\n",
		"dist/index.so":     "",
	})

	var opened string

	manager := setup.NewManager(
		setup.WithWorkdir(dir),
		setup.WithEnvironment(map[string]string{}),
		setup.WithModuleOpener(func(path string) (entry.Symbols, error) {
			opened = path

			return emptySymbols{}, nil
		}),
	)

	require.NoError(t, manager.Initialize())

	_, err := manager.ImportModule(t.Context(), "index")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "dist", "index.so"), opened)
}

func TestManager_ImportModule_CatalogFirst(t *testing.T) {
	t.Parallel()

	dir := newProject(t, map[string]string{".config/index.yml": "directory:\n  pattern: \"-\"\n"})

	modules := entry.NewCatalog().Add("index", entry.Module{Takeover: []string{"http"}})

	manager := setup.NewManager(
		setup.WithWorkdir(dir),
		setup.WithEnvironment(map[string]string{}),
		setup.WithModuleSource(modules),
	)

	require.NoError(t, manager.Initialize())

	module, err := manager.ImportModule(t.Context(), "index")
	require.NoError(t, err)
	assert.Equal(t, []string{"http"}, module.Takeover)

	_, err = manager.ImportModule(t.Context(), "controllers/index")
	require.ErrorIs(t, err, entry.ErrModuleNotFound)
}

func TestManager_ResolvePathAndLoadConfig(t *testing.T) {
	t.Parallel()

	dir := newProject(t, map[string]string{
		".config/index.yml":    "directory:\n  base: src\n",
		".config/frontend.yml": "static:\n  root: \"[env]:STATIC_ROOT\"\n",
	})

	manager := setup.NewManager(
		setup.WithWorkdir(dir),
		setup.WithEnvironment(map[string]string{"STATIC_ROOT": "public"}),
	)

	assert.Equal(t, filepath.Join(dir, "views"), manager.ResolvePath("views"))

	require.NoError(t, manager.Initialize())

	assert.Equal(t, filepath.Join(dir, "src", "views"), manager.ResolvePath("views"))
	assert.Equal(t, "/etc/kenx", manager.ResolvePath("/etc/kenx"))

	tree, err := manager.LoadConfig("frontend")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"static": map[string]any{"root": "public"}}, tree)

	_, err = manager.LoadConfig("native")
	require.Error(t, err)
}

func TestManager_Fatal(t *testing.T) {
	t.Parallel()

	var got error

	manager := setup.NewManager(
		setup.WithEnvironment(map[string]string{}),
		setup.WithFatal(func(err error) { got = err }),
	)

	manager.Fatal(os.ErrClosed)

	require.ErrorIs(t, got, os.ErrClosed)
}

type emptySymbols struct{}

func (emptySymbols) Lookup(string) (goplugin.Symbol, error) { return nil, os.ErrNotExist }
