package core

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned for a setup that cannot be provisioned as written.
	ErrConfiguration = errors.New("configuration error")
	// ErrProvisioning is matched by every *ProvisionError.
	ErrProvisioning = errors.New("provisioning failed")
	// ErrServerNotBound is returned when a server reports no info after listening.
	ErrServerNotBound = errors.New("server did not bind")

	// ErrEntrypointNotFound is returned when a required entrypoint module does not exist.
	ErrEntrypointNotFound = errors.New("entrypoint not found")
	// ErrMissingTakeover is returned when a singleton entrypoint declares no takeover list.
	ErrMissingTakeover = errors.New("entrypoint declares no takeover")
	// ErrInvalidModule is returned when a required entrypoint module has no main function.
	ErrInvalidModule = errors.New("entrypoint has no main function")
	// ErrApplication wraps errors and panics raised by entrypoint code.
	ErrApplication = errors.New("application error")
)

// ProvisionError reports the resource that failed to start.
type ProvisionError struct {
	Section string
	Key     string
	Type    string
	Err     error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provisioning %s:%s (%s): %v", e.Section, e.Key, e.Type, e.Err)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrProvisioning.
func (e *ProvisionError) Is(target error) bool {
	return target == ErrProvisioning
}

// DispatchError reports the entrypoint module that could not be located or failed.
type DispatchError struct {
	Module string
	Err    error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatching %s: %v", e.Module, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// NotLocated reports whether the module was missing rather than failing.
func (e *DispatchError) NotLocated() bool {
	return errors.Is(e.Err, ErrEntrypointNotFound) || errors.Is(e.Err, ErrInvalidModule)
}
