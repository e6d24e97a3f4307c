package chain

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"dfolks/internal/component"
	apperrors "dfolks/internal/errors"
	"dfolks/internal/infrastructure"
	"dfolks/internal/tabular"
)

const (
	actionFitTransform = "fit_transform"
	actionTransform    = "transform"
)

// Chain is an ordered list of component configs, checked for shape but not yet resolved
type Chain struct {
	steps []component.Config
}

// Create validates that every element is a mapping
func Create(configs []any) (*Chain, error) {
	steps := make([]component.Config, 0, len(configs))
	for i, raw := range configs {
		cfg, ok := component.AsConfig(raw)
		if !ok {
			return nil, apperrors.NewInvalidChainElementError(i, raw)
		}
		steps = append(steps, cfg)
	}
	return &Chain{steps: steps}, nil
}

// Steps returns the step configs in order
func (c *Chain) Steps() []component.Config {
	out := make([]component.Config, len(c.steps))
	copy(out, c.steps)
	return out
}

// Len returns the number of steps
func (c *Chain) Len() int {
	return len(c.steps)
}

// Processor resolves and applies chain steps to a table
type Processor struct {
	resolver component.Resolver
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *infrastructure.PipelineMetrics
}

// NewProcessor creates a processor using the runtime's resolver and telemetry
func NewProcessor(rt *component.Runtime) *Processor {
	if rt == nil {
		rt = component.DefaultRuntime()
	}
	return &Processor{
		resolver: rt.Resolver,
		logger:   rt.ComponentLogger("chain"),
		tracer:   rt.Tracer,
		metrics:  rt.Metrics,
	}
}

// Execute runs every step in order, threading the table through them.
// The returned map holds each executed component under its config kind; a repeated kind keeps the last instance.
func (p *Processor) Execute(ctx context.Context, c *Chain, t *tabular.Table) (map[string]component.Component, *tabular.Table, error) {
	if p.resolver == nil {
		return nil, nil, apperrors.NewConfigError("chain processor has no resolver", nil)
	}

	instances := make(map[string]component.Component, c.Len())
	for i, cfg := range c.steps {
		kind, _ := cfg.Kind()

		next, comp, err := p.executeStep(ctx, i, kind, cfg, t)
		if err != nil {
			return nil, nil, fmt.Errorf("chain step %d (%s): %w", i, kind, err)
		}
		instances[kind] = comp
		t = next
	}

	p.logger.InfoContext(ctx, "chain completed", slog.Int("steps", c.Len()))
	return instances, t, nil
}

func (p *Processor) executeStep(ctx context.Context, index int, kind string, cfg component.Config, t *tabular.Table) (*tabular.Table, component.Component, error) {
	start := time.Now()
	action := actionTransform

	if p.tracer != nil {
		var span trace.Span
		ctx, span = p.tracer.Start(ctx, "chain.step",
			trace.WithAttributes(
				attribute.Int("step.index", index),
				attribute.String("step.kind", kind),
			))
		defer span.End()
	}

	p.logger.InfoContext(ctx, "processing started",
		slog.Int("step", index),
		slog.String("kind", kind))

	comp, err := p.resolver.Resolve(ctx, cfg)
	if err != nil {
		p.fail(ctx, kind, action, start, err)
		return nil, nil, err
	}

	var out *tabular.Table
	switch step := comp.(type) {
	case component.Fittable:
		action = actionFitTransform
		if err = step.Fit(ctx, t); err == nil {
			out, err = step.Transform(ctx, t)
		}
	case component.Transformable:
		out, err = step.Transform(ctx, t)
	default:
		err = apperrors.NewUnsupportedComponentError(comp.Kind())
	}
	if err == nil && out == nil {
		err = fmt.Errorf("component %q returned no table", kind)
	}
	if err != nil {
		p.fail(ctx, kind, action, start, err)
		return nil, nil, err
	}

	p.metrics.RecordChainStep(ctx, kind, action, time.Since(start), true)
	p.logger.InfoContext(ctx, "processing completed",
		slog.Int("step", index),
		slog.String("kind", kind),
		slog.String("action", action),
		slog.Int("rows", out.NumRows()),
		slog.Int("columns", out.NumCols()),
		slog.Duration("duration", time.Since(start)))

	return out, comp, nil
}

func (p *Processor) fail(ctx context.Context, kind, action string, start time.Time, err error) {
	p.metrics.RecordChainStep(ctx, kind, action, time.Since(start), false)
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	p.logger.ErrorContext(ctx, "processing failed",
		slog.String("kind", kind),
		slog.String("error", err.Error()))
}
