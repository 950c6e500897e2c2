// Package config loads, resolves and decodes kenx setup documents.
//
// A setup is read in three steps:
//   - Loader reads "<dir>/<target>.yml" and merges every "__extends__" partial
//     document listed in it, depth first.
//   - Resolver replaces "[section]:key" references with the value they point
//     at: another section's field, an entry of a keyed list, or an
//     environment variable ("[env]:NAME").
//   - Decode turns the resolved tree (or a colon separated path inside it)
//     into typed structs, then applies the Defaulter and Validator hooks.
//
// # Path Navigation
//
// Decode and Lookup accept the same colon separated paths as the YAML parser:
//
//	"directory"           -> tree["directory"]
//	"servers:0:application" -> tree["servers"][0]["application"]
//	""                    -> the whole tree
//
// # Example
//
//	tree, err := config.NewLoader().Load(".config/index")
//	resolved, err := config.NewResolver().ResolveTree(tree)
//	setup, err := config.Decode(resolved, "", &config.SetupConfig{})
package config
