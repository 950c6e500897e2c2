package plugin

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Plugin categories.
const (
	CategoryApp      = "app"
	CategoryServer   = "server"
	CategoryDatabase = "database"
)

// DefaultCategories is the allow-list used when a Loader is given none.
var DefaultCategories = []string{CategoryApp, CategoryServer, CategoryDatabase}

// ErrInvalidReference is returned for a malformed reference or a category outside the allow-list.
var ErrInvalidReference = errors.New("invalid plugin reference")

var namePattern = regexp.MustCompile(`^(@?[A-Za-z0-9_.-]+)(?:/([A-Za-z0-9_.-]+))?$`)

// Reference is a parsed plugin reference.
type Reference struct {
	Raw       string
	Category  string
	Namespace string
	Subname   string
}

// Module returns the module name looked up in sources:
// "@ns/sub" or "@ns/index" for namespaced names, the bare name otherwise.
func (r Reference) Module() string {
	if !strings.HasPrefix(r.Namespace, "@") {
		return r.Namespace
	}

	if r.Subname == "" {
		return r.Namespace + "/index"
	}

	return r.Namespace + "/" + r.Subname
}

// Key returns "category:module", the key used by catalogs.
func (r Reference) Key() string {
	return r.Category + ":" + r.Module()
}

func (r Reference) String() string {
	return r.Raw
}

// ParseReference parses "category:name" and checks the category against categories.
// An empty categories list means DefaultCategories.
func ParseReference(value string, categories ...string) (Reference, error) {
	ref, err := parseReference(value)
	if err != nil {
		return Reference{}, err
	}

	if len(categories) == 0 {
		categories = DefaultCategories
	}

	if !slices.Contains(categories, ref.Category) {
		return Reference{}, fmt.Errorf("%w: unknown category %q in %q", ErrInvalidReference, ref.Category, value)
	}

	return ref, nil
}

func parseReference(value string) (Reference, error) {
	category, name, found := strings.Cut(value, ":")
	if !found || category == "" || name == "" {
		return Reference{}, fmt.Errorf("%w: %q", ErrInvalidReference, value)
	}

	match := namePattern.FindStringSubmatch(name)
	if match == nil {
		return Reference{}, fmt.Errorf("%w: malformed name in %q", ErrInvalidReference, value)
	}

	ref := Reference{Raw: value, Category: category, Namespace: match[1], Subname: match[2]}

	// "name/sub" without a scope is not a module name.
	if !strings.HasPrefix(ref.Namespace, "@") && ref.Subname != "" {
		return Reference{}, fmt.Errorf("%w: unscoped name with subpath in %q", ErrInvalidReference, value)
	}

	return ref, nil
}
