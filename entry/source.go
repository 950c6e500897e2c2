package entry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	goplugin "plugin"
	"reflect"
	"sync"
)

// ErrInvalidSymbol is returned for an exported symbol of the wrong type.
var ErrInvalidSymbol = errors.New("invalid exported symbol")

// Symbols exported by an entrypoint shared object.
const (
	MainSymbol     = "Main"
	TakeoverSymbol = "Takeover"
)

// Catalog is a Source of modules registered in code.
type Catalog struct {
	mu      sync.RWMutex
	modules map[string]Module
}

// NewCatalog creates an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{modules: make(map[string]Module)}
}

// Add registers module at path, replacing any previous module.
func (c *Catalog) Add(path string, module Module) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.modules[filepath.ToSlash(path)] = module

	return c
}

// Import implements Source.
func (c *Catalog) Import(_ context.Context, path string) (Module, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	module, ok := c.modules[filepath.ToSlash(path)]
	if !ok {
		return Module{}, fmt.Errorf("%w: %s", ErrModuleNotFound, path)
	}

	return module, nil
}

// Symbols is the part of an opened shared object used by SharedObjectSource.
type Symbols interface {
	Lookup(name string) (goplugin.Symbol, error)
}

// OpenFunc opens a shared object.
type OpenFunc func(path string) (Symbols, error)

// SharedObjectSource imports "<dir>/<path>.so". Opening the object runs its
// init functions; Main and Takeover are optional symbols.
type SharedObjectSource struct {
	dir  string
	open OpenFunc
}

// NewSharedObjectSource creates a source below dir. A nil open uses the standard plugin package.
func NewSharedObjectSource(dir string, open OpenFunc) *SharedObjectSource {
	if open == nil {
		open = func(path string) (Symbols, error) {
			return goplugin.Open(path) //nolint:wrapcheck
		}
	}

	return &SharedObjectSource{dir: dir, open: open}
}

// Import implements Source.
func (s *SharedObjectSource) Import(_ context.Context, path string) (Module, error) {
	file := filepath.Join(s.dir, filepath.FromSlash(path)+".so")

	_, err := os.Stat(file)
	if errors.Is(err, fs.ErrNotExist) {
		return Module{}, fmt.Errorf("%w: %s", ErrModuleNotFound, file)
	}

	symbols, err := s.open(file)
	if err != nil {
		return Module{}, fmt.Errorf("opening %s: %w", file, err)
	}

	var module Module

	if symbol, lookupErr := symbols.Lookup(MainSymbol); lookupErr == nil {
		main, err := asFunc(deref(symbol))
		if err != nil {
			return Module{}, fmt.Errorf("%s in %s: %w", MainSymbol, file, err)
		}

		module.Main = main
	}

	if symbol, lookupErr := symbols.Lookup(TakeoverSymbol); lookupErr == nil {
		takeover, ok := deref(symbol).([]string)
		if !ok {
			return Module{}, fmt.Errorf("%w: %s in %s is %T, want []string", ErrInvalidSymbol, TakeoverSymbol, file, symbol)
		}

		module.Takeover = takeover
	}

	return module, nil
}

// deref unwraps exported variables, which the plugin package hands out as pointers.
func deref(symbol any) any {
	value := reflect.ValueOf(symbol)
	if value.Kind() != reflect.Pointer || value.IsNil() {
		return symbol
	}

	switch value.Elem().Kind() { //nolint:exhaustive
	case reflect.Func, reflect.Slice:
		return value.Elem().Interface()
	default:
		return symbol
	}
}

func asFunc(symbol any) (Func, error) {
	switch main := symbol.(type) {
	case Func:
		return main, nil
	case func(context.Context, Input) (any, error):
		return main, nil
	default:
		return Positional(symbol)
	}
}

// Chain tries sources in order and returns the first module found.
// A source error other than ErrModuleNotFound stops the search.
type Chain []Source

// Import implements Source.
func (c Chain) Import(ctx context.Context, path string) (Module, error) {
	for _, source := range c {
		module, err := source.Import(ctx, path)
		if err == nil {
			return module, nil
		}

		if !errors.Is(err, ErrModuleNotFound) {
			return Module{}, err
		}
	}

	return Module{}, fmt.Errorf("%w: %s", ErrModuleNotFound, path)
}
