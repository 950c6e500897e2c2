// Package setup owns the process environment and the resolved setup
// configuration, and is the Host every plugin is built with.
//
// A Manager is used in three steps: LoadEnv reads the dotenv file matching the
// mode, Initialize loads ".config/index.yml" with its partials and resolves
// references, and from then on plugins and entrypoint modules are imported
// through it.
package setup
