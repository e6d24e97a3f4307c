package resolver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v2"

	"dfolks/internal/component"
	apperrors "dfolks/internal/errors"
	"dfolks/internal/params"
	"dfolks/internal/registry"
)

// Resolver turns component configs into bound, validated components
type Resolver struct {
	registry *registry.Registry
	loader   *params.Loader
	validate *validator.Validate
	runtime  *component.Runtime
	logger   *slog.Logger
}

// New creates a resolver over reg. A nil runtime uses component.DefaultRuntime.
func New(reg *registry.Registry, rt *component.Runtime) *Resolver {
	if rt == nil {
		rt = component.DefaultRuntime()
	}
	r := &Resolver{
		registry: reg,
		loader:   params.NewLoader(rt.ProjectRoot),
		validate: newValidator(),
		logger:   rt.ComponentLogger("resolver"),
	}
	r.runtime = rt.WithResolver(r)
	return r
}

// Registry returns the registry the resolver looks kinds up in
func (r *Resolver) Registry() *registry.Registry {
	return r.registry
}

// Runtime returns the runtime handed to resolved components
func (r *Resolver) Runtime() *component.Runtime {
	return r.runtime
}

// Resolve binds cfg to a fresh instance of the component its kind names.
// cfg may be a mapping or a serialized YAML/JSON mapping.
func (r *Resolver) Resolve(ctx context.Context, cfg any) (component.Component, error) {
	parsed, err := component.ParseConfig(cfg)
	if err != nil {
		return nil, err
	}

	kind, ok := parsed.Kind()
	if !ok {
		if _, present := parsed.Get(component.KindKey); present {
			return nil, apperrors.NewMissingDiscriminatorError(`"kind" must be a non-empty string`)
		}
		return nil, apperrors.NewMissingDiscriminatorError(`component config has no "kind" key`)
	}

	ns, factory, err := r.registry.Lookup(kind)
	if err != nil {
		return nil, err
	}

	if r.runtime.Tracer != nil {
		var span trace.Span
		ctx, span = r.runtime.Tracer.Start(ctx, "resolver.resolve",
			trace.WithAttributes(
				attribute.String("component.kind", kind),
				attribute.String("component.namespace", string(ns)),
			))
		defer span.End()
	}

	inst := factory()
	values := parsed.Without(component.KindKey)

	if user, ok := inst.(component.ExternalParamsUser); ok && user.UsesExternalParams() {
		values, err = r.loader.Expand(values)
		if err != nil {
			return nil, err
		}
	}

	if err := bind(kind, values, inst); err != nil {
		return nil, err
	}

	if err := validateStruct(r.validate, inst); err != nil {
		return nil, apperrors.NewParameterValidationError(kind, err.Error(), nil)
	}

	if v, ok := inst.(component.Validatable); ok {
		if err := v.Validate(); err != nil {
			if apperrors.IsType(err, apperrors.ErrTypeParameterValidation) {
				return nil, err
			}
			return nil, apperrors.NewParameterValidationError(kind, err.Error(), err)
		}
	}

	if aware, ok := inst.(component.RuntimeAware); ok {
		aware.SetRuntime(r.runtime)
	}

	r.logger.DebugContext(ctx, "component resolved",
		slog.String("kind", kind),
		slog.String("namespace", string(ns)),
		slog.Int("params", len(values)))

	return inst, nil
}

// bind decodes values onto inst with strict YAML semantics, so unknown keys are rejected
func bind(kind string, values component.Config, inst component.Component) error {
	if len(values) == 0 {
		return nil
	}
	data, err := yaml.Marshal(yaml.MapSlice(values))
	if err != nil {
		return apperrors.NewParameterValidationError(kind, "parameters cannot be encoded", err)
	}
	if err := yaml.UnmarshalStrict(data, inst); err != nil {
		return apperrors.NewParameterValidationError(kind, fmt.Sprintf("cannot bind parameters: %v", err), err)
	}
	return nil
}
