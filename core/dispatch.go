package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ckenx/kenx/config"
	"github.com/ckenx/kenx/entry"
	"github.com/ckenx/kenx/registry"
)

// MVC module paths.
const (
	ModelsModule      = "models/index"
	ViewsModule       = "views/index"
	ControllersModule = "controllers/index"
)

// Dispatch hands the provisioned resources to the entrypoint modules selected by directory.pattern.
func (c *Core) Dispatch(ctx context.Context) error {
	setup := c.manager.Config()
	if setup == nil {
		return fmt.Errorf("%w: dispatch before autoload", ErrConfiguration)
	}

	if setup.Directory.Pattern == config.PatternMVC {
		return c.dispatchMVC(ctx)
	}

	return c.dispatchSingleton(ctx)
}

func (c *Core) dispatchSingleton(ctx context.Context) error {
	path := c.options.Entrypoint

	module, _, err := c.importModule(ctx, path, true)
	if err != nil {
		return err
	}

	if module.Main == nil {
		c.logger.Info("entrypoint has no main function, nothing to dispatch", slog.String("module", path))

		return nil
	}

	takeover := module.Takeover
	if len(takeover) == 0 {
		takeover = c.options.Takeover
	}

	if takeover == nil {
		return &DispatchError{Module: path, Err: ErrMissingTakeover}
	}

	_, err = c.invoke(ctx, path, module, takeover, entry.Input{Role: entry.RoleSingleton})

	return err
}

func (c *Core) dispatchMVC(ctx context.Context) error {
	models, err := c.runRequired(ctx, ModelsModule, DefaultModelsTakeover, entry.Input{Role: entry.RoleModels})
	if err != nil {
		return err
	}

	var views any

	module, found, err := c.importModule(ctx, ViewsModule, false)

	switch {
	case err != nil:
		return err
	case !found:
		c.logger.Debug("no views module", slog.String("module", ViewsModule))
	case module.Main == nil:
		return &DispatchError{Module: ViewsModule, Err: ErrInvalidModule}
	default:
		views, err = c.invoke(ctx, ViewsModule, module, module.Takeover, entry.Input{Role: entry.RoleViews})
		if err != nil {
			return err
		}
	}

	_, err = c.runRequired(ctx, ControllersModule, DefaultControllersTakeover, entry.Input{
		Models: models,
		Views:  views,
		Role:   entry.RoleController,
	})

	return err
}

// runRequired imports a module that must exist and have a main function,
// and invokes it with its takeover list, or fallback when it declares none.
func (c *Core) runRequired(ctx context.Context, path string, fallback []string, in entry.Input) (any, error) {
	module, _, err := c.importModule(ctx, path, true)
	if err != nil {
		return nil, err
	}

	if module.Main == nil {
		return nil, &DispatchError{Module: path, Err: ErrInvalidModule}
	}

	takeover := module.Takeover
	if len(takeover) == 0 {
		takeover = fallback
	}

	return c.invoke(ctx, path, module, takeover, in)
}

// importModule reports found as false for a missing optional module.
func (c *Core) importModule(ctx context.Context, path string, required bool) (entry.Module, bool, error) {
	module, err := c.manager.ImportModule(ctx, path)

	switch {
	case err == nil:
		return module, true, nil
	case !errors.Is(err, entry.ErrModuleNotFound):
		return entry.Module{}, false, &DispatchError{Module: path, Err: err}
	case required:
		return entry.Module{}, false, &DispatchError{Module: path, Err: fmt.Errorf("%w: %w", ErrEntrypointNotFound, err)}
	default:
		return entry.Module{}, false, nil
	}
}

func (c *Core) invoke(
	ctx context.Context, path string, module entry.Module, takeover []string, in entry.Input,
) (result any, err error) {
	var opts []registry.TakeoverOption
	if c.options.Strict {
		opts = append(opts, registry.WithStrict())
	}

	args, err := c.registry.BuildArgs(takeover, opts...)
	if err != nil {
		return nil, &DispatchError{Module: path, Err: err}
	}

	in.Args = args

	defer func() {
		recovered := recover()
		if recovered != nil {
			result = nil
			err = &DispatchError{Module: path, Err: fmt.Errorf("%w: panic: %v", ErrApplication, recovered)}
		}
	}()

	c.logger.Info("dispatching", slog.String("module", path), slog.Any("takeover", takeover))

	result, err = module.Main(ctx, in)
	if err != nil {
		return nil, &DispatchError{Module: path, Err: fmt.Errorf("%w: %w", ErrApplication, err)}
	}

	return result, nil
}
