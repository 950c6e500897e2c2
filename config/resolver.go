package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// EnvSection is the pseudo section resolving references against the process environment.
const EnvSection = "env"

// PluginField is the key whose values PluginCollector gathers.
const PluginField = "plugin"

// ErrReferenceCycle is returned when a reference chain leads back to itself.
var ErrReferenceCycle = errors.New("reference cycle")

var referencePattern = regexp.MustCompile(`^\[([A-Za-z0-9_.-]+)\]:([A-Za-z0-9_.-]+)$`)

// ParseReference splits "[section]:key". The whole string must match.
func ParseReference(value string) (section, key string, ok bool) {
	match := referencePattern.FindStringSubmatch(value)
	if match == nil {
		return "", "", false
	}

	return match[1], match[2], true
}

// IsReference reports whether value is a reference.
func IsReference(value string) bool {
	return referencePattern.MatchString(value)
}

// Observer is notified of every mapping field after its value is resolved.
type Observer interface {
	Observe(path, key string, value any)
}

// Miss records a reference that resolved to nothing.
type Miss struct {
	Path      string
	Reference string
}

// Resolver replaces references in a configuration tree.
type Resolver struct {
	lookupEnv func(string) (string, bool)
	observer  Observer
	misses    []Miss
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithEnvLookup replaces os.LookupEnv.
func WithEnvLookup(lookup func(string) (string, bool)) ResolverOption {
	return func(r *Resolver) {
		r.lookupEnv = lookup
	}
}

// WithObserver registers an observer of resolved fields.
func WithObserver(observer Observer) ResolverOption {
	return func(r *Resolver) {
		r.observer = observer
	}
}

// NewResolver creates a Resolver reading the process environment.
func NewResolver(opts ...ResolverOption) *Resolver {
	resolver := &Resolver{lookupEnv: os.LookupEnv}

	for _, apply := range opts {
		apply(resolver)
	}

	return resolver
}

// ResolveTree resolves every reference of root against root itself.
// The input is left untouched.
func (r *Resolver) ResolveTree(root map[string]any) (map[string]any, error) {
	resolved, err := r.Resolve(root, root)
	if err != nil {
		return nil, err
	}

	tree, _ := resolved.(map[string]any)

	return tree, nil
}

// Resolve returns a copy of value with every reference replaced.
//
// A reference to a missing section, key or environment variable resolves to
// nil and is recorded in Misses. Resolved values are resolved again, so chains
// of references are followed to their end.
func (r *Resolver) Resolve(root map[string]any, value any) (any, error) {
	r.misses = nil

	return r.resolve(root, value, "", nil)
}

// Misses returns the references of the last Resolve call that resolved to nothing.
func (r *Resolver) Misses() []Miss {
	return slices.Clone(r.misses)
}

func (r *Resolver) resolve(root map[string]any, value any, path string, chain []string) (any, error) {
	switch typed := value.(type) {
	case string:
		section, key, ok := ParseReference(typed)
		if !ok {
			return typed, nil
		}

		if slices.Contains(chain, typed) {
			return nil, fmt.Errorf("%w at %s: %s", ErrReferenceCycle, displayPath(path),
				strings.Join(append(slices.Clone(chain), typed), " -> "))
		}

		target, found := r.lookup(root, section, key)
		if !found {
			r.misses = append(r.misses, Miss{Path: displayPath(path), Reference: typed})

			return nil, nil
		}

		return r.resolve(root, target, path, append(slices.Clone(chain), typed))
	case []any:
		out := make([]any, len(typed))

		for i, item := range typed {
			resolved, err := r.resolve(root, item, joinPath(path, strconv.Itoa(i)), chain)
			if err != nil {
				return nil, err
			}

			out[i] = resolved
		}

		return out, nil
	case map[string]any:
		out := make(map[string]any, len(typed))

		for _, key := range slices.Sorted(maps.Keys(typed)) {
			resolved, err := r.resolve(root, typed[key], joinPath(path, key), chain)
			if err != nil {
				return nil, err
			}

			if r.observer != nil {
				r.observer.Observe(path, key, resolved)
			}

			out[key] = resolved
		}

		return out, nil
	default:
		return value, nil
	}
}

func (r *Resolver) lookup(root map[string]any, section, key string) (any, bool) {
	if section == EnvSection {
		value, ok := r.lookupEnv(key)
		if !ok {
			return nil, false
		}

		return value, true
	}

	switch entries := root[section].(type) {
	case []any:
		for _, entry := range entries {
			fields, ok := entry.(map[string]any)
			if !ok {
				continue
			}

			entryKey := keyOf(fields)
			if entryKey == key || (entryKey == "" && key == DefaultKey) {
				return fields, true
			}
		}
	case map[string]any:
		value, ok := entries[key]

		return value, ok
	}

	return nil, false
}

func keyOf(fields map[string]any) string {
	value, ok := fields["key"]
	if !ok || value == nil {
		return ""
	}

	return fmt.Sprint(value)
}

func joinPath(path, segment string) string {
	if path == "" {
		return segment
	}

	return path + ":" + segment
}

func displayPath(path string) string {
	if path == "" {
		return "<root>"
	}

	return path
}

// PluginCollector gathers the distinct values found under "plugin" keys, in discovery order.
type PluginCollector struct {
	plugins []string
}

// Observe implements Observer.
func (c *PluginCollector) Observe(_, key string, value any) {
	if key != PluginField {
		return
	}

	name, ok := value.(string)
	if !ok || name == "" || slices.Contains(c.plugins, name) {
		return
	}

	c.plugins = append(c.plugins, name)
}

// Plugins returns the collected plugin references.
func (c *PluginCollector) Plugins() []string {
	return slices.Clone(c.plugins)
}
