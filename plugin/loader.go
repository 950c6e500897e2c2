package plugin

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
)

// ErrPluginNotFound is matched by every *PluginNotFoundError.
var ErrPluginNotFound = errors.New("plugin not found")

// ErrInvalidExport is returned when a plugin exports something other than the expected factory.
var ErrInvalidExport = errors.New("invalid plugin export")

// PluginNotFoundError names the reference and every source that was tried.
type PluginNotFoundError struct {
	Reference string
	Tried     []string
}

func (e *PluginNotFoundError) Error() string {
	return fmt.Sprintf("<%s> plugin not found (tried: %s)", e.Reference, strings.Join(e.Tried, ", "))
}

// Is reports whether target is ErrPluginNotFound.
func (e *PluginNotFoundError) Is(target error) bool {
	return target == ErrPluginNotFound
}

// Loader resolves plugin references against its sources, in order. Nothing is cached.
type Loader struct {
	sources    []Source
	categories []string
	logger     *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithSources sets the sources tried by Import, in order.
func WithSources(sources ...Source) LoaderOption {
	return func(l *Loader) {
		l.sources = sources
	}
}

// WithCategories replaces the category allow-list.
func WithCategories(categories ...string) LoaderOption {
	return func(l *Loader) {
		l.categories = categories
	}
}

// WithLogger sets the logger for failed attempts.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader creates a Loader. Without WithSources it only sees Packages.
func NewLoader(opts ...LoaderOption) *Loader {
	loader := &Loader{
		sources:    []Source{NewCatalogSource("packages", Packages())},
		categories: DefaultCategories,
		logger:     slog.Default(),
	}

	for _, apply := range opts {
		apply(loader)
	}

	return loader
}

// Import returns the un-instantiated export of reference from the first source holding it.
func (l *Loader) Import(reference string) (any, error) {
	ref, err := ParseReference(reference, l.categories...)
	if err != nil {
		return nil, err
	}

	tried := make([]string, 0, len(l.sources))

	for _, source := range l.sources {
		tried = append(tried, source.Name())

		export, err := attempt(source, ref)
		if err != nil {
			l.logger.Debug("plugin source miss",
				slog.String("reference", reference), slog.String("source", source.Name()), slog.Any("error", err))

			continue
		}

		if export == nil {
			l.logger.Debug("plugin source returned nil export",
				slog.String("reference", reference), slog.String("source", source.Name()))

			continue
		}

		l.logger.Debug("plugin imported", slog.String("reference", reference), slog.String("source", source.Name()))

		return export, nil
	}

	return nil, &PluginNotFoundError{Reference: reference, Tried: tried}
}

func attempt(source Source, ref Reference) (export any, err error) {
	defer func() {
		recovered := recover()
		if recovered != nil {
			export = nil
			err = fmt.Errorf("panic in %s: %v", source.Name(), recovered) //nolint:err113
		}
	}()

	return source.Lookup(ref) //nolint:wrapcheck
}

// ImportFunc imports a plugin export, like Loader.Import or Host.ImportPlugin.
type ImportFunc func(reference string) (any, error)

// ImportServer imports a ServerFactory.
func ImportServer(importFn ImportFunc, reference string) (ServerFactory, error) {
	return importAs[ServerFactory](importFn, reference)
}

// ImportDatabase imports a DatabaseFactory.
func ImportDatabase(importFn ImportFunc, reference string) (DatabaseFactory, error) {
	return importAs[DatabaseFactory](importFn, reference)
}

// ImportApplication imports an ApplicationFactory.
func ImportApplication(importFn ImportFunc, reference string) (ApplicationFactory, error) {
	return importAs[ApplicationFactory](importFn, reference)
}

// ImportExtension imports an ExtensionFactory.
func ImportExtension(importFn ImportFunc, reference string) (ExtensionFactory, error) {
	return importAs[ExtensionFactory](importFn, reference)
}

func importAs[F any](importFn ImportFunc, reference string) (F, error) {
	var zero F

	export, err := importFn(reference)
	if err != nil {
		return zero, err
	}

	factory, ok := export.(F)
	if ok {
		return factory, nil
	}

	// Functions exported by shared objects carry their unnamed signature.
	value := reflect.ValueOf(export)
	target := reflect.TypeFor[F]()

	if value.Kind() == reflect.Func && value.Type().ConvertibleTo(target) {
		return value.Convert(target).Interface().(F), nil //nolint:forcetypeassert // converted above
	}

	return zero, fmt.Errorf("%w: <%s> exports %T, want %s", ErrInvalidExport, reference, export, target)
}
