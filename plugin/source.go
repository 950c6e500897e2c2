package plugin

import (
	"errors"
	"fmt"
	"path/filepath"
	goplugin "plugin"
	"reflect"
	"slices"
	"sync"
)

// ExportSymbol is the symbol a shared-object plugin exports.
const ExportSymbol = "Plugin"

// ErrNotInSource is returned by a source that does not hold the reference.
var ErrNotInSource = errors.New("not in source")

// Source yields the export of a plugin reference.
type Source interface {
	Name() string
	Lookup(ref Reference) (any, error)
}

// Catalog maps "category:module" keys to exports. It is safe for concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	exports map[string]any
}

// NewCatalog creates an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{exports: make(map[string]any)}
}

// Add registers export under reference, replacing any previous export.
func (c *Catalog) Add(reference string, export any) error {
	ref, err := parseReference(reference)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.exports[ref.Key()] = export

	return nil
}

// MustAdd is Add for static catalogs; it panics on a malformed reference.
func (c *Catalog) MustAdd(reference string, export any) *Catalog {
	err := c.Add(reference, export)
	if err != nil {
		panic(err)
	}

	return c
}

// Get returns the export stored for ref.
func (c *Catalog) Get(ref Reference) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	export, ok := c.exports[ref.Key()]

	return export, ok
}

// Keys returns the sorted catalog keys.
func (c *Catalog) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.exports))
	for key := range c.exports {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	return keys
}

var packages = NewCatalog()

// Register makes a plugin linked into the binary available to every Loader
// using the Packages source. It is meant to be called from init and panics on
// a malformed reference or a nil export, like database/sql.Register.
func Register(reference string, export any) {
	if export == nil {
		panic("plugin: Register export is nil for " + reference)
	}

	packages.MustAdd(reference, export)
}

// Packages returns the catalog filled by Register.
func Packages() *Catalog {
	return packages
}

// CatalogSource looks references up in a Catalog.
type CatalogSource struct {
	name    string
	catalog *Catalog
}

// NewCatalogSource creates a named source over catalog.
func NewCatalogSource(name string, catalog *Catalog) *CatalogSource {
	return &CatalogSource{name: name, catalog: catalog}
}

// Name implements Source.
func (s *CatalogSource) Name() string {
	return s.name
}

// Lookup implements Source.
func (s *CatalogSource) Lookup(ref Reference) (any, error) {
	export, ok := s.catalog.Get(ref)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotInSource, ref.Key())
	}

	return export, nil
}

// Symbols is the part of an opened shared object used by DirectorySource.
type Symbols interface {
	Lookup(name string) (goplugin.Symbol, error)
}

// OpenFunc opens a shared object.
type OpenFunc func(path string) (Symbols, error)

// DirectorySource loads "<dir>/<module>.so" shared objects.
type DirectorySource struct {
	dir  string
	open OpenFunc
}

// NewDirectorySource creates a source reading shared objects below dir.
// A nil open uses the standard plugin package.
func NewDirectorySource(dir string, open OpenFunc) *DirectorySource {
	if open == nil {
		open = func(path string) (Symbols, error) {
			return goplugin.Open(path) //nolint:wrapcheck
		}
	}

	return &DirectorySource{dir: dir, open: open}
}

// Name implements Source.
func (s *DirectorySource) Name() string {
	return "directory " + s.dir
}

// Path returns the shared object path for ref.
func (s *DirectorySource) Path(ref Reference) string {
	return filepath.Join(s.dir, filepath.FromSlash(ref.Module())+".so")
}

// Lookup implements Source.
func (s *DirectorySource) Lookup(ref Reference) (any, error) {
	path := s.Path(ref)

	symbols, err := s.open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	symbol, err := symbols.Lookup(ExportSymbol)
	if err != nil {
		return nil, fmt.Errorf("looking up %s in %s: %w", ExportSymbol, path, err)
	}

	return derefSymbol(symbol), nil
}

// derefSymbol unwraps exported variables: the plugin package hands out a
// pointer to a variable and the function itself for a function.
func derefSymbol(symbol any) any {
	value := reflect.ValueOf(symbol)
	if value.Kind() != reflect.Pointer || value.IsNil() {
		return symbol
	}

	if value.Elem().Kind() != reflect.Func {
		return symbol
	}

	return value.Elem().Interface()
}
