// Package plugin defines the contracts every kenx plugin implements and the
// Loader that turns a reference such as "server:http" or "app:@acme/web" into
// the plugin's exported factory.
//
// A reference is looked up in an ordered list of sources. The default order is:
//
//   - the project's plugins directory, holding Go shared objects that export a
//     symbol named "Plugin" (<base>/plugins/<module>.so)
//   - packages linked into the binary that called Register from their init
//   - the plugins bundled with kenx
//
// The first source that yields a non-nil export wins. A failure or panic in one
// source never stops the search; only exhausting every source is an error.
package plugin
