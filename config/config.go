package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// ErrPathNotFound is returned when a path does not exist in a tree.
var ErrPathNotFound = errors.New("config path not found")

// Parser defines an interface for parsing configuration data into a target structure.
//
// The path parameter specifies a navigation path within the configuration data
// using colon (:) as the separator for nested keys. An empty path means the
// entire document.
type Parser interface {
	Parse(data []byte, target any, path string) error
}

// DocumentParser parses a whole document into a generic tree.
type DocumentParser interface {
	Parser
	ParseDocument(data []byte) (map[string]any, error)
}

// DataFetcher defines an interface for reading configuration data.
type DataFetcher interface {
	Fetch() ([]byte, error)
}

// Validator defines an interface for validating configuration structures.
type Validator interface {
	Validate() error
}

// Defaulter defines an interface for setting default values in configuration structures.
type Defaulter interface {
	SetDefaults() (changed bool)
}

// Decode reads the value found at path in tree into target, sets defaults and validates it.
// Values are decoded weakly, so "8080" fills an int field and "true" a bool field.
func Decode[T any](tree map[string]any, path string, target *T) (*T, error) {
	var source any = tree

	if path != "" {
		value, found := Lookup(tree, path)
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
		}

		source = value
	}

	err := decodeValue(source, target)
	if err != nil {
		return nil, fmt.Errorf("decoding error: %w", err)
	}

	targetDefaulter, isDefaulter := any(target).(Defaulter)
	if isDefaulter {
		changed := targetDefaulter.SetDefaults()
		if changed {
			slog.Debug("defaults applied", slog.String("path", path))
		}
	}

	targetValidatable, isValidatable := any(target).(Validator)
	if isValidatable {
		err := targetValidatable.Validate()
		if err != nil {
			return nil, fmt.Errorf("validating error: %w", err)
		}
	}

	return target, nil
}

func decodeValue(source, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{ //nolint:exhaustruct // defaults are fine
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return fmt.Errorf("creating decoder: %w", err)
	}

	return decoder.Decode(source) //nolint:wrapcheck
}

// Lookup returns the value at a colon separated path.
// Numeric segments index into lists.
func Lookup(tree map[string]any, path string) (any, bool) {
	var current any = tree

	for _, segment := range strings.Split(path, ":") {
		switch node := current.(type) {
		case map[string]any:
			value, ok := node[segment]
			if !ok {
				return nil, false
			}

			current = value
		case []any:
			index, err := strconv.Atoi(segment)
			if err != nil || index < 0 || index >= len(node) {
				return nil, false
			}

			current = node[index]
		default:
			return nil, false
		}
	}

	return current, true
}
