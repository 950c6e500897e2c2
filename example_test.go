package kenx_test

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ckenx/kenx"
	"github.com/ckenx/kenx/config"
	"github.com/ckenx/kenx/entry"
	"github.com/ckenx/kenx/plugin"
)

// memoryStore is a database plugin keeping values in a map.
type memoryStore struct {
	uri    string
	values map[string]string
}

func newMemoryStore(_ plugin.Host, cfg config.DatabaseConfig) (plugin.DatabasePlugin, error) {
	return &memoryStore{uri: cfg.URI}, nil
}

func (m *memoryStore) Connect(context.Context) (any, error) {
	m.values = map[string]string{"greeting": "hello"}

	return m.values, nil
}

func (m *memoryStore) Disconnect(context.Context) error {
	fmt.Println("disconnected", m.uri)

	return nil
}

func (m *memoryStore) Connection(string) (any, error) {
	return m.values, nil
}

// Example_app runs a project whose setup declares one database and whose
// entrypoint takes it over.
func Example_app() {
	dir, err := os.MkdirTemp("", "kenx-example")
	if err != nil {
		fmt.Println(err)

		return
	}

	defer func() { _ = os.RemoveAll(dir) }()

	setupYAML := `
directory:
  base: .
  pattern: "-"
databases:
  - type: memory
    key: cache
    autoconnect: true
    uri: memory://cache
`

	_ = os.MkdirAll(filepath.Join(dir, ".config"), 0o755)
	_ = os.WriteFile(filepath.Join(dir, ".config", "index.yml"), []byte(setupYAML), 0o600)

	plugins := plugin.NewCatalog().MustAdd("database:memory", plugin.DatabaseFactory(newMemoryStore))

	entrypoints := entry.NewCatalog().Add("index", entry.Module{
		Takeover: []string{"database:cache"},
		Main: entry.MustPositional(func(db plugin.DatabasePlugin) error {
			conn, err := db.Connection("")
			if err != nil {
				return err
			}

			fmt.Println("greeting:", conn.(map[string]string)["greeting"])

			return nil
		}),
	})

	app := kenx.NewApp(
		kenx.WithWorkdir(dir),
		kenx.WithEnvironment(map[string]string{}),
		kenx.WithLogOutput(io.Discard),
		kenx.WithPlugins(plugins),
		kenx.WithEntrypoints(entrypoints),
	)

	err = app.Start()
	if err != nil {
		fmt.Printf("Error starting app: %v\n", err)

		return
	}

	_, registered := app.Registry().Lookup("database:cache")
	fmt.Println("registered:", registered)

	_ = app.Stop()
	// Output:
	// greeting: hello
	// registered: true
	// disconnected memory://cache
}
