// Package registry holds the live resources provisioned at startup and maps
// takeover selectors such as "database:*" or "http:api" to them.
package registry

import (
	"slices"
	"strings"
	"sync"
)

// Wildcard selects every key of a section.
const Wildcard = "*"

// DefaultKey is the key assumed when a selector names only a section.
const DefaultKey = "default"

// Group maps the keys of one section to their resources.
type Group map[string]any

// Key returns the registry key "section:key".
func Key(section, key string) string {
	return section + ":" + key
}

// SplitKey splits "section:key"; a missing key is DefaultKey.
func SplitKey(value string) (section, key string) {
	section, key, _ = strings.Cut(value, ":")
	if key == "" {
		key = DefaultKey
	}

	return section, key
}

// Registry stores resources under "section:key". Entries are never removed;
// setting an existing key replaces its resource and keeps its position.
type Registry struct {
	mu        sync.RWMutex
	resources map[string]any
	order     []string
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{resources: make(map[string]any)}
}

// Set stores resource under section:key.
func (r *Registry) Set(section, key string, resource any) {
	full := Key(section, key)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.resources[full]; !exists {
		r.order = append(r.order, full)
	}

	r.resources[full] = resource
}

// Get returns the resource at section:key.
func (r *Registry) Get(section, key string) (any, bool) {
	return r.Lookup(Key(section, key))
}

// Lookup returns the resource at a full "section:key".
func (r *Registry) Lookup(full string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	resource, ok := r.resources[full]

	return resource, ok
}

// Section returns every resource of section, keyed without the section prefix.
// It is empty, never nil, when the section holds nothing.
func (r *Registry) Section(section string) Group {
	prefix := section + ":"

	r.mu.RLock()
	defer r.mu.RUnlock()

	group := make(Group)

	for _, full := range r.order {
		key, found := strings.CutPrefix(full, prefix)
		if found {
			group[key] = r.resources[full]
		}
	}

	return group
}

// Keys returns the registered keys in first registration order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.order)
}

// Len returns the number of registered keys.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.order)
}
