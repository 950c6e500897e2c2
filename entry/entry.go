// Package entry defines the user entrypoint modules kenx hands provisioned
// resources to, and the sources they are imported from.
package entry

import (
	"context"
	"errors"
)

// Roles of an entrypoint module.
const (
	RoleSingleton  = "singleton"
	RoleModels     = "models"
	RoleViews      = "views"
	RoleController = "controllers"
)

// ErrModuleNotFound is returned by a source that has no module at the requested path.
var ErrModuleNotFound = errors.New("entrypoint module not found")

// Input carries the resolved takeover arguments and, for controllers, the
// values returned by the models and views modules.
type Input struct {
	Args   []any
	Models any
	Views  any
	Role   string
}

// Positional returns the arguments in call order: Args, then Models and Views for controllers.
func (in Input) Positional() []any {
	if in.Role != RoleController {
		return in.Args
	}

	out := make([]any, 0, len(in.Args)+2) //nolint:mnd
	out = append(out, in.Args...)

	return append(out, in.Models, in.Views)
}

// Func is the body of an entrypoint module.
type Func func(ctx context.Context, in Input) (any, error)

// Module is an entrypoint. A nil Main means the module did its work when it was imported.
// A nil Takeover means the module declared none.
type Module struct {
	Takeover []string
	Main     Func
}

// Source imports entrypoint modules by path relative to the project directory,
// such as "index" or "models/index".
type Source interface {
	Import(ctx context.Context, path string) (Module, error)
}
