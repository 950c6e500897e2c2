package registry

import (
	"errors"
	"fmt"
	"slices"
)

// ErrResourceNotFound is returned in strict mode for a named key that is not registered.
var ErrResourceNotFound = errors.New("takeover resource not found")

// ErrInvalidSelector is returned for a selector without a section.
var ErrInvalidSelector = errors.New("invalid takeover selector")

type takeoverOptions struct {
	strict bool
}

// TakeoverOption configures BuildArgs.
type TakeoverOption func(*takeoverOptions)

// WithStrict makes BuildArgs fail when a named, non-wildcard key is missing.
func WithStrict() TakeoverOption {
	return func(o *takeoverOptions) {
		o.strict = true
	}
}

// BuildArgs turns takeover selectors into entrypoint arguments, one per
// distinct section in first-seen order.
//
// For each section the argument is:
//   - the resource itself when a single key is selected, or nil when it is absent
//   - a Group of the whole section when the key is "*", empty if nothing matches
//   - a Group restricted to the selected keys when several are selected;
//     a "*" among them selects the whole section
func (r *Registry) BuildArgs(selectors []string, opts ...TakeoverOption) ([]any, error) {
	var options takeoverOptions

	for _, apply := range opts {
		apply(&options)
	}

	var sections []string

	keys := make(map[string][]string)

	for _, selector := range selectors {
		section, key := SplitKey(selector)
		if section == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSelector, selector)
		}

		if _, seen := keys[section]; !seen {
			sections = append(sections, section)
		}

		if !slices.Contains(keys[section], key) {
			keys[section] = append(keys[section], key)
		}
	}

	args := make([]any, 0, len(sections))

	for _, section := range sections {
		arg, err := r.sectionArg(section, keys[section], options)
		if err != nil {
			return nil, err
		}

		args = append(args, arg)
	}

	return args, nil
}

func (r *Registry) sectionArg(section string, keys []string, options takeoverOptions) (any, error) {
	switch {
	case len(keys) == 0:
		return nil, nil //nolint:nilnil // an empty section is a nil argument
	case slices.Contains(keys, Wildcard):
		return r.Section(section), nil
	case len(keys) == 1:
		resource, ok := r.Get(section, keys[0])
		if !ok && options.strict {
			return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, Key(section, keys[0]))
		}

		return resource, nil
	}

	group := make(Group, len(keys))

	for _, key := range keys {
		resource, ok := r.Get(section, key)
		if !ok {
			if options.strict {
				return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, Key(section, key))
			}

			continue
		}

		group[key] = resource
	}

	return group, nil
}
