package config

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	filefetcher "github.com/ckenx/kenx/config/fetcher/file"
	yamlparser "github.com/ckenx/kenx/config/parser/yaml"
)

// ExtendsKey lists the partial documents a document is merged with.
const ExtendsKey = "__extends__"

// ErrExtendsCycle is returned when "__extends__" entries lead back to a document being loaded.
var ErrExtendsCycle = errors.New("__extends__ cycle")

// ErrInvalidExtends is returned when "__extends__" is neither a string nor a list of strings.
var ErrInvalidExtends = errors.New("invalid __extends__ value")

// FetchFunc opens the document addressed by stem (a path without extension).
type FetchFunc func(stem string) (DataFetcher, error)

// Loader reads setup documents and merges their partials.
type Loader struct {
	parser DocumentParser
	fetch  FetchFunc
	logger *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithParser replaces the YAML parser.
func WithParser(parser DocumentParser) LoaderOption {
	return func(l *Loader) {
		l.parser = parser
	}
}

// WithFetcher replaces the filesystem fetcher.
func WithFetcher(fetch FetchFunc) LoaderOption {
	return func(l *Loader) {
		l.fetch = fetch
	}
}

// WithLoaderLogger sets the logger used for skipped partials.
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader creates a Loader reading ".yml" files with the YAML parser.
func NewLoader(opts ...LoaderOption) *Loader {
	loader := &Loader{
		parser: yamlparser.NewParser(),
		fetch: func(stem string) (DataFetcher, error) {
			return filefetcher.FromStem(stem)
		},
		logger: slog.Default(),
	}

	for _, apply := range opts {
		apply(loader)
	}

	return loader
}

// Load reads the document at stem and merges its "__extends__" partials.
//
// Partials are resolved relative to the directory of stem and merged shallowly:
// a later partial overwrites an earlier one, and the document's own fields win
// over every partial. A partial that cannot be read is logged and skipped; a
// cycle is an error.
func (l *Loader) Load(stem string) (map[string]any, error) {
	return l.load(stem, nil)
}

func (l *Loader) load(stem string, chain []string) (map[string]any, error) {
	abs, err := filepath.Abs(stem)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", stem, err)
	}

	if slices.Contains(chain, abs) {
		return nil, fmt.Errorf("%w: %s", ErrExtendsCycle, strings.Join(append(slices.Clone(chain), abs), " -> "))
	}

	fetcher, err := l.fetch(stem)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", stem, err)
	}

	data, err := fetcher.Fetch()
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", stem, err)
	}

	doc, err := l.parser.ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %q: %w", stem, err)
	}

	raw, hasExtends := doc[ExtendsKey]
	if !hasExtends {
		return doc, nil
	}

	delete(doc, ExtendsKey)

	entries, err := extendsEntries(raw)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", stem, err)
	}

	next := append(slices.Clone(chain), abs)
	merged := make(map[string]any)

	for _, entry := range entries {
		partial, err := l.load(filepath.Join(filepath.Dir(stem), entry), next)
		if err != nil {
			if errors.Is(err, ErrExtendsCycle) {
				return nil, err
			}

			l.logger.Warn("skipping partial setup document",
				slog.String("document", stem), slog.String("extends", entry), slog.Any("error", err))

			continue
		}

		maps.Copy(merged, partial)
	}

	maps.Copy(merged, doc)

	return merged, nil
}

func extendsEntries(raw any) ([]string, error) {
	switch value := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{value}, nil
	case []any:
		entries := make([]string, 0, len(value))

		for _, item := range value {
			entry, ok := item.(string)
			if !ok || entry == "" {
				return nil, fmt.Errorf("%w: entry %v", ErrInvalidExtends, item)
			}

			entries = append(entries, entry)
		}

		return entries, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidExtends, raw)
	}
}
