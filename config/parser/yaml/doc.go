// Package yaml parses setup documents for the config package.
//
// It wraps github.com/goccy/go-yaml. ParseDocument returns the generic tree the
// loader and resolver work on; Parse decodes straight into a typed target and
// accepts a colon separated path ("servers:0" -> "$.servers[0]") to read only a
// part of the document.
package yaml
