package workflows

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v2"

	"dfolks/internal/chain"
	"dfolks/internal/component"
	apperrors "dfolks/internal/errors"
	"dfolks/internal/infrastructure"
	"dfolks/internal/output"
	"dfolks/internal/schema"
	"dfolks/internal/tabular"
)

// DataIngestionKind is registered in the workflow namespace
const DataIngestionKind = "DataIngestion"

// Output formats
const (
	FormatDF      = "df"
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// DataIngestion parses a source, runs a chain over it, validates the result and
// either returns it or persists it through the file writer.
type DataIngestion struct {
	component.Base               `yaml:"-"`
	component.ExternalFileParams `yaml:"-"`

	Format          string             `yaml:"format" validate:"required"`
	TargetDB        string             `yaml:"target_db"`
	TargetOutput    string             `yaml:"target_output"`
	Compression     string             `yaml:"compression"`
	PartitionCols   []string           `yaml:"partition_cols"`
	WriteMode       string             `yaml:"write_mode"`
	SchemaEvolution bool               `yaml:"schema_evolution"`
	Parser          yaml.MapSlice      `yaml:"parser" validate:"required"`
	RetainCols      []string           `yaml:"retain_cols"`
	Chains          []any              `yaml:"chains"`
	Validation      *schema.Definition `yaml:"validation"`
	LogLevel        string             `yaml:"log_level" validate:"omitempty,oneof=debug info warn warning error DEBUG INFO WARN WARNING ERROR"`
	LogPath         string             `yaml:"log_path"`
}

// NewDataIngestion creates an unconfigured workflow
func NewDataIngestion() component.Component {
	return &DataIngestion{}
}

// Kind implements component.Component
func (w *DataIngestion) Kind() string { return DataIngestionKind }

// Variables implements component.Component
func (w *DataIngestion) Variables() map[string]any {
	return map[string]any{
		"format":           w.Format,
		"target_db":        w.TargetDB,
		"target_output":    w.TargetOutput,
		"compression":      w.Compression,
		"partition_cols":   w.PartitionCols,
		"write_mode":       w.WriteMode,
		"schema_evolution": w.SchemaEvolution,
		"parser":           w.Parser,
		"retain_cols":      w.RetainCols,
		"chains":           w.Chains,
		"validation":       w.Validation,
		"log_level":        w.LogLevel,
		"log_path":         w.LogPath,
	}
}

// Validate checks the write mode early so a bad config fails before parsing
func (w *DataIngestion) Validate() error {
	if w.WriteMode != "" {
		if _, err := output.ParseMode(w.WriteMode); err != nil {
			return err
		}
	}
	return nil
}

// Run executes the workflow. A run id is attached to ctx when absent.
func (w *DataIngestion) Run(ctx context.Context) (result *tabular.Table, err error) {
	ctx = infrastructure.EnsureTraceID(ctx)
	rt, closeLog, err := runScope(w.Runtime(), w.LogLevel, w.LogPath)
	if err != nil {
		return nil, err
	}
	defer closeLog()
	logger := rt.ComponentLogger(DataIngestionKind)

	start := time.Now()
	ctx, span := rt.Tracer.Start(ctx, "workflow.run",
		trace.WithAttributes(
			attribute.String("workflow.kind", DataIngestionKind),
			attribute.String("workflow.format", w.Format),
			attribute.String("run.id", infrastructure.GetTraceID(ctx)),
		))
	defer func() {
		rt.Metrics.RecordWorkflowRun(ctx, DataIngestionKind, time.Since(start), err == nil)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.ErrorContext(ctx, "workflow failed", slog.String("error", err.Error()))
		}
		span.End()
	}()

	logger.InfoContext(ctx, "workflow started", slog.String("format", w.Format))

	t, err := parseSource(ctx, rt, w.Parser)
	if err != nil {
		return nil, err
	}

	if len(w.Chains) > 0 {
		logger.InfoContext(ctx, "entering chain", slog.Int("steps", len(w.Chains)))
		c, err := chain.Create(w.Chains)
		if err != nil {
			return nil, err
		}
		if _, t, err = chain.NewProcessor(rt).Execute(ctx, c, t); err != nil {
			return nil, err
		}
	}

	if len(w.RetainCols) > 0 {
		if t, err = t.Select(w.RetainCols...); err != nil {
			return nil, apperrors.NewConfigError("cannot retain columns", err).WithContext("columns", w.RetainCols)
		}
	}

	var sch *schema.Schema
	if w.Validation != nil && w.Validation.Schemas != nil {
		sch = w.Validation.Schemas
		if t, err = schema.Apply(ctx, rt, sch, t); err != nil {
			return nil, err
		}
	}

	switch w.Format {
	case FormatDF:
		logger.InfoContext(ctx, "workflow completed", slog.Int("rows", t.NumRows()), slog.Int("columns", t.NumCols()))
		return t, nil
	case FormatCSV, FormatParquet:
		if err := w.persist(ctx, rt, sch, t); err != nil {
			return nil, err
		}
		logger.InfoContext(ctx, "workflow completed",
			slog.Int("rows", t.NumRows()),
			slog.Duration("duration", time.Since(start)))
		return t, nil
	default:
		return nil, apperrors.NewNotImplementedError(fmt.Sprintf("output format %q", w.Format))
	}
}

func (w *DataIngestion) persist(ctx context.Context, rt *component.Runtime, sch *schema.Schema, t *tabular.Table) error {
	opts := output.Options{
		FileType:        w.Format,
		FileDB:          w.TargetDB,
		FilePath:        w.TargetOutput,
		PartitionCols:   w.PartitionCols,
		Compression:     w.Compression,
		WriteMode:       w.WriteMode,
		SchemaEvolution: w.SchemaEvolution,
	}
	if sch != nil {
		opts.PrimaryKeys = sch.PrimaryKeys()
		if len(opts.PartitionCols) == 0 {
			opts.PartitionCols = sch.PartitionColumns()
		}
	}

	writer, err := output.NewFileWriter(t, opts, rt.HiveRoot)
	if err != nil {
		return err
	}
	return writer.WithRuntime(rt).Save(ctx)
}

// parseSource resolves the parser config and extracts its table
func parseSource(ctx context.Context, rt *component.Runtime, cfg yaml.MapSlice) (*tabular.Table, error) {
	if rt.Resolver == nil {
		return nil, apperrors.NewConfigError("workflow runtime has no resolver", nil)
	}
	comp, err := rt.Resolver.Resolve(ctx, component.Config(cfg))
	if err != nil {
		return nil, fmt.Errorf("parser: %w", err)
	}
	parser, ok := comp.(component.Parser)
	if !ok {
		return nil, apperrors.NewUnsupportedComponentError(comp.Kind())
	}
	rt.ComponentLogger(comp.Kind()).InfoContext(ctx, "parsing source")
	t, err := parser.Parse(ctx)
	if err != nil {
		return nil, fmt.Errorf("parser %s: %w", comp.Kind(), err)
	}
	return t, nil
}

// runScope returns a copy of rt whose logger honors the run's log level and path
func runScope(rt *component.Runtime, level, path string) (*component.Runtime, func() error, error) {
	scoped := *rt
	if scoped.Tracer == nil {
		scoped.Tracer = component.DefaultRuntime().Tracer
	}
	if level == "" && path == "" {
		return &scoped, func() error { return nil }, nil
	}

	logger, closeLog, err := infrastructure.NewRunLogger(level, path)
	if err != nil {
		return nil, nil, apperrors.NewConfigError("cannot open run log", err).WithContext("log_path", path)
	}
	scoped.Logger = logger
	return &scoped, closeLog, nil
}
