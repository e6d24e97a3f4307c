package workflows

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"dfolks/internal/component"
	"dfolks/internal/config"
	"dfolks/internal/dataprocessing"
	apperrors "dfolks/internal/errors"
	"dfolks/internal/exporter"
	"dfolks/internal/infrastructure"
	"dfolks/internal/schema"
	"dfolks/internal/tabular"
	"dfolks/internal/transformers"
)

// DataExtractorKind is registered in the workflow namespace
const DataExtractorKind = "DataExtractor"

// cacheDir is the hive subdirectory holding extractor snapshots
const cacheDir = "cache"

// TableSource locates a persisted table and how it joins onto the running result
type TableSource struct {
	TargetDB   string         `yaml:"target_db"`
	TargetPath string         `yaml:"target_path" validate:"required"`
	JoinType   string         `yaml:"join_type" validate:"omitempty,oneof=inner left right outer"`
	JoinKeys   []string       `yaml:"join_keys"`
	Schemas    *schema.Schema `yaml:"schemas"`
}

// DataExtractor assembles an analysis table from persisted tables in the hive
type DataExtractor struct {
	component.Base `yaml:"-"`

	BaseDF        TableSource              `yaml:"base_df"`
	JoinDFs       []TableSource            `yaml:"join_dfs" validate:"dive"`
	FillnaData    []transformers.FillValue `yaml:"fillna_data" validate:"dive"`
	Filters       []Filter                 `yaml:"filters" validate:"dive"`
	SchemaFinalDF *schema.Definition       `yaml:"schema_final_df"`
	SaveFinalDF   bool                     `yaml:"save_final_df"`

	cachePath string
}

// NewDataExtractor creates an unconfigured workflow
func NewDataExtractor() component.Component {
	return &DataExtractor{}
}

// Kind implements component.Component
func (e *DataExtractor) Kind() string { return DataExtractorKind }

// Variables implements component.Component
func (e *DataExtractor) Variables() map[string]any {
	return map[string]any{
		"base_df":         e.BaseDF,
		"join_dfs":        e.JoinDFs,
		"fillna_data":     e.FillnaData,
		"filters":         e.Filters,
		"schema_final_df": e.SchemaFinalDF,
		"save_final_df":   e.SaveFinalDF,
	}
}

// CachePath returns the snapshot written by the last Run, if any
func (e *DataExtractor) CachePath() string {
	return e.cachePath
}

// Run loads the base table, joins the others onto it, fills and filters the
// result, validates it and optionally snapshots it to the cache directory.
func (e *DataExtractor) Run(ctx context.Context) (result *tabular.Table, err error) {
	ctx = infrastructure.EnsureTraceID(ctx)
	rt, closeLog, err := runScope(e.Runtime(), "", "")
	if err != nil {
		return nil, err
	}
	defer closeLog()
	logger := rt.ComponentLogger(DataExtractorKind)

	start := time.Now()
	ctx, span := rt.Tracer.Start(ctx, "workflow.run",
		trace.WithAttributes(
			attribute.String("workflow.kind", DataExtractorKind),
			attribute.Int("workflow.joins", len(e.JoinDFs)),
		))
	defer func() {
		rt.Metrics.RecordWorkflowRun(ctx, DataExtractorKind, time.Since(start), err == nil)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.ErrorContext(ctx, "extraction failed", slog.String("error", err.Error()))
		}
		span.End()
	}()

	t, err := e.load(ctx, rt, e.BaseDF)
	if err != nil {
		return nil, fmt.Errorf("base_df: %w", err)
	}

	for i, src := range e.JoinDFs {
		if len(src.JoinKeys) == 0 {
			logger.WarnContext(ctx, "join skipped, no join keys", slog.String("path", src.TargetPath))
			continue
		}
		other, err := e.load(ctx, rt, src)
		if err != nil {
			return nil, fmt.Errorf("join_dfs[%d]: %w", i, err)
		}
		how := tabular.JoinType(src.JoinType)
		if how == "" {
			how = tabular.InnerJoin
		}
		if t, err = tabular.Join(t, other, src.JoinKeys, how); err != nil {
			return nil, apperrors.NewConfigError(fmt.Sprintf("join_dfs[%d]: join failed", i), err).
				WithContext("join_keys", src.JoinKeys)
		}
		logger.InfoContext(ctx, "table joined",
			slog.String("path", src.TargetPath),
			slog.String("join_type", string(how)),
			slog.Int("rows", t.NumRows()))
	}

	if len(e.FillnaData) > 0 {
		if t, err = transformers.FillNulls(t, e.FillnaData); err != nil {
			return nil, err
		}
	}

	if t, err = applyFilters(t, e.Filters); err != nil {
		return nil, err
	}

	if e.SchemaFinalDF != nil && e.SchemaFinalDF.Schemas != nil {
		if t, err = schema.Apply(ctx, rt, e.SchemaFinalDF.Schemas, t); err != nil {
			return nil, err
		}
	}

	if e.SaveFinalDF {
		if err := e.snapshot(ctx, rt, t); err != nil {
			return nil, err
		}
	}

	logger.InfoContext(ctx, "extraction completed",
		slog.Int("rows", t.NumRows()),
		slog.Int("columns", t.NumCols()),
		slog.Duration("duration", time.Since(start)))
	return t, nil
}

// sourcePath places a source under the hive when it names a database,
// and under the project root when its path is relative
func sourcePath(rt *component.Runtime, src TableSource) string {
	if src.TargetDB != "" {
		return filepath.Join(rt.HiveRoot, src.TargetDB, src.TargetPath)
	}
	if !filepath.IsAbs(src.TargetPath) && rt.ProjectRoot != "" {
		return filepath.Join(rt.ProjectRoot, src.TargetPath)
	}
	return src.TargetPath
}

func (e *DataExtractor) load(ctx context.Context, rt *component.Runtime, src TableSource) (*tabular.Table, error) {
	path := sourcePath(rt, src)

	var t *tabular.Table
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		t, err = dataprocessing.ReadCSV(path, dataprocessing.ReadOptions{})
	case ".parquet":
		t, err = dataprocessing.ReadParquet(path)
	default:
		return nil, apperrors.NewNotImplementedError(fmt.Sprintf("loading %s", filepath.Base(path)))
	}
	if err != nil {
		return nil, err
	}

	if src.Schemas != nil {
		return conform(ctx, rt, src.Schemas, t)
	}
	return t, nil
}

// conform coerces the declared columns of t and keeps the undeclared ones as they are
func conform(ctx context.Context, rt *component.Runtime, s *schema.Schema, t *tabular.Table) (*tabular.Table, error) {
	checked, err := schema.Apply(ctx, rt, s, t)
	if err != nil {
		return nil, err
	}
	out := t
	for _, spec := range s.Columns() {
		values, _ := checked.Column(spec.OutputName())
		if out, err = out.SetColumn(spec.Name, values); err != nil {
			return nil, err
		}
	}
	renames := make(map[string]string)
	for _, spec := range s.Columns() {
		if spec.OutputName() != spec.Name {
			renames[spec.Name] = spec.OutputName()
		}
	}
	if len(renames) == 0 {
		return out, nil
	}
	if out, err = out.Rename(renames); err != nil {
		return nil, apperrors.NewParameterValidationError("schema", err.Error(), err)
	}
	return out, nil
}

// snapshot writes t to <hive>/cache/cache_dataprep_<timestamp>.csv
func (e *DataExtractor) snapshot(ctx context.Context, rt *component.Runtime, t *tabular.Table) error {
	dir := filepath.Join(rt.HiveRoot, cacheDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperrors.NewStorageError("cannot create cache directory", err).WithContext("path", dir)
	}
	name := config.CacheFilePrefix + time.Now().Format(config.CacheTimestampFormat) + ".csv"
	path := filepath.Join(dir, name)

	w := exporter.NewCSVWriter(rt.ComponentLogger("csv_writer"))
	if err := w.WriteTable(path, t, exporter.WriteOptions{}); err != nil {
		return err
	}
	e.cachePath = path
	rt.ComponentLogger(DataExtractorKind).InfoContext(ctx, "snapshot cached", slog.String("path", path))
	return nil
}
