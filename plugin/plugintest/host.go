// Package plugintest provides a plugin.Host for testing plugins without a setup manager.
package plugintest

import (
	"io"
	"log/slog"
	"maps"
	"path/filepath"
	"sync"

	"github.com/ckenx/kenx/plugin"
)

// Host is an in-memory plugin.Host backed by a catalog.
type Host struct {
	Catalog *plugin.Catalog
	Root    string
	Env     map[string]string
	Log     *slog.Logger

	mu     sync.Mutex
	fatals []error
	loader *plugin.Loader
	once   sync.Once
}

var _ plugin.Host = (*Host)(nil)

// NewHost creates a Host importing from catalog. A nil catalog is empty.
func NewHost(catalog *plugin.Catalog) *Host {
	if catalog == nil {
		catalog = plugin.NewCatalog()
	}

	return &Host{
		Catalog: catalog,
		Env:     make(map[string]string),
		Log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Logger returns the discarding test logger.
func (h *Host) Logger() *slog.Logger {
	return h.Log
}

// ImportPlugin imports from the catalog only.
func (h *Host) ImportPlugin(reference string) (any, error) {
	h.once.Do(func() {
		h.loader = plugin.NewLoader(
			plugin.WithSources(plugin.NewCatalogSource("test", h.Catalog)),
			plugin.WithLogger(h.Log),
		)
	})

	return h.loader.Import(reference) //nolint:wrapcheck
}

// ResolvePath joins relative paths onto Root.
func (h *Host) ResolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(h.Root, path)
}

// Environment returns a copy of Env.
func (h *Host) Environment() map[string]string {
	return maps.Clone(h.Env)
}

// Fatal records err.
func (h *Host) Fatal(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.fatals = append(h.fatals, err)
}

// Fatals returns the errors passed to Fatal.
func (h *Host) Fatals() []error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]error(nil), h.fatals...)
}
