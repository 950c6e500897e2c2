package yaml

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

// ErrEmptyData is returned when the input data is empty.
var ErrEmptyData = errors.New("empty data")

// ErrPathNotFound is returned when the specified path is not found in the YAML document.
var ErrPathNotFound = errors.New("path not found")

// ErrNotMapping is returned when a document's root is not a mapping.
var ErrNotMapping = errors.New("document root is not a mapping")

// Parser implements config.Parser for YAML data.
type Parser struct{}

// NewParser creates a new YAML parser instance.
func NewParser() *Parser {
	return &Parser{}
}

// Parse unmarshals data into target.
// The path uses colon (:) as separator; numeric segments index sequences.
// An empty path parses the entire document.
func (p *Parser) Parse(data []byte, target any, path string) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return ErrEmptyData
	}

	if path == "" {
		err := yaml.Unmarshal(data, target)
		if err != nil {
			return fmt.Errorf("unmarshal error: %w", err)
		}

		return nil
	}

	pathObj, err := yaml.PathString(convertToYAMLPath(path))
	if err != nil {
		return fmt.Errorf("invalid path %q: %w", path, err)
	}

	err = pathObj.Read(bytes.NewReader(data), target)
	if err != nil {
		if yaml.IsNotFoundNodeError(err) {
			return fmt.Errorf("%w: %s", ErrPathNotFound, path)
		}

		return fmt.Errorf("reading path %q: %w", path, err)
	}

	return nil
}

// ParseDocument parses data into a generic tree with string keys.
func (p *Parser) ParseDocument(data []byte) (map[string]any, error) {
	var doc any

	err := p.Parse(data, &doc, "")
	if err != nil {
		return nil, err
	}

	tree, ok := normalize(doc).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrNotMapping, doc)
	}

	return tree, nil
}

// normalize converts mappings with non-string keys so the tree only holds map[string]any.
func normalize(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		for key, sub := range typed {
			typed[key] = normalize(sub)
		}

		return typed
	case map[any]any:
		out := make(map[string]any, len(typed))
		for key, sub := range typed {
			out[fmt.Sprint(key)] = normalize(sub)
		}

		return out
	case []any:
		for i, sub := range typed {
			typed[i] = normalize(sub)
		}

		return typed
	default:
		return value
	}
}

// convertToYAMLPath converts a colon-separated path to goccy/go-yaml PathString format.
//   - "servers" -> "$.servers"
//   - "servers:0:application" -> "$.servers[0].application"
func convertToYAMLPath(path string) string {
	var builder strings.Builder

	builder.WriteString("$")

	for _, part := range strings.Split(path, ":") {
		if _, err := strconv.Atoi(part); err == nil {
			builder.WriteString("[" + part + "]")

			continue
		}

		builder.WriteString("." + part)
	}

	return builder.String()
}
