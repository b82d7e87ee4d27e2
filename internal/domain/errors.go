package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by repositories and caches when an entity
// does not exist.
var ErrNotFound = errors.New("not found")

// ErrDependency wraps failures of external collaborators (financial
// data providers, stores). Callers use errors.Is to map it to a 502.
var ErrDependency = errors.New("dependency failure")

// ValidationError aggregates every field violation found in one pass
// over an application. It is terminal: the pipeline does not proceed.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Errors, "; "))
}

// ConfigurationError reports an invalid policy configuration. It is
// raised at engine construction, before any application is processed.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid policy configuration: %s: %s", e.Field, e.Reason)
}
