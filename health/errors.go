package health

import "errors"

var (
	// ErrCheckTimeout indicates a health check did not finish in time.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound indicates no checker is registered under a name.
	ErrCheckerNotFound = errors.New("health: checker not found")

	// ErrNilRegistry indicates a RegistryChecker has no registry to inspect.
	ErrNilRegistry = errors.New("health: registry is nil")
)
