package component

import (
	"context"

	"dfolks/internal/tabular"
)

// Component is anything that can be named by a "kind" in a config
type Component interface {
	// Kind returns the fixed discriminator of the component type
	Kind() string
	// Variables returns the component parameters as a plain mapping
	Variables() map[string]any
}

// Transformable components map a table to a new table
type Transformable interface {
	Component
	Transform(ctx context.Context, t *tabular.Table) (*tabular.Table, error)
}

// Fittable components derive state from a table before transforming it
type Fittable interface {
	Transformable
	Fit(ctx context.Context, t *tabular.Table) error
}

// Runnable components are top-level workflows
type Runnable interface {
	Component
	Run(ctx context.Context) (*tabular.Table, error)
}

// Parser components extract a table from a source
type Parser interface {
	Component
	Parse(ctx context.Context) (*tabular.Table, error)
}

// Validatable components check cross-field rules after binding
type Validatable interface {
	Validate() error
}

// RuntimeAware components receive the runtime after binding
type RuntimeAware interface {
	SetRuntime(rt *Runtime)
}

// Resolver turns a config into a bound component
type Resolver interface {
	Resolve(ctx context.Context, cfg any) (Component, error)
}

// ExternalParamsUser components have file:// parameters expanded before binding
type ExternalParamsUser interface {
	UsesExternalParams() bool
}

// ExternalFileParams is embedded by components whose string parameters may
// reference external YAML files with the file:// prefix.
type ExternalFileParams struct{}

// UsesExternalParams implements ExternalParamsUser
func (ExternalFileParams) UsesExternalParams() bool { return true }
