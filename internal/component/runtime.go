package component

import (
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"dfolks/internal/config"
	"dfolks/internal/infrastructure"
)

// Runtime carries the collaborators a bound component needs at execution time
type Runtime struct {
	Resolver    Resolver
	Logger      *slog.Logger
	HiveRoot    string
	ProjectRoot string
	Tracer      trace.Tracer
	Metrics     *infrastructure.PipelineMetrics
}

// DefaultRuntime returns a runtime backed by the global logger and no-op telemetry.
// It has no resolver.
func DefaultRuntime() *Runtime {
	hive, err := config.DefaultHiveRoot()
	if err != nil {
		hive = config.HiveDirName
	}
	project, err := os.Getwd()
	if err != nil {
		project = "."
	}
	return &Runtime{
		Logger:      infrastructure.GetLogger(),
		HiveRoot:    hive,
		ProjectRoot: project,
		Tracer:      otel.Tracer(infrastructure.MeterName),
		Metrics:     infrastructure.NoopPipelineMetrics(),
	}
}

// WithResolver returns a copy of rt using r
func (rt *Runtime) WithResolver(r Resolver) *Runtime {
	out := *rt
	out.Resolver = r
	return &out
}

// ComponentLogger scopes the runtime logger to a component kind
func (rt *Runtime) ComponentLogger(kind string) *slog.Logger {
	return infrastructure.WithComponent(rt.Logger, kind)
}

// Base stores the runtime for components that embed it
type Base struct {
	rt *Runtime
}

// SetRuntime implements RuntimeAware
func (b *Base) SetRuntime(rt *Runtime) { b.rt = rt }

// Runtime returns the injected runtime, or DefaultRuntime if none was set
func (b *Base) Runtime() *Runtime {
	if b.rt == nil {
		b.rt = DefaultRuntime()
	}
	return b.rt
}
