package output

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"dfolks/internal/component"
	"dfolks/internal/dataprocessing"
	apperrors "dfolks/internal/errors"
	"dfolks/internal/exporter"
	"dfolks/internal/infrastructure"
	"dfolks/internal/tabular"
)

// Write modes
const (
	ModeOverwrite   = "overwrite"
	ModeAppend      = "append"
	ModeIncremental = "incremental"
	ModeUpsert      = "upsert"
	ModeArchive     = "archive"
)

// File types
const (
	FileTypeCSV     = "csv"
	FileTypeParquet = "parquet"
)

var (
	// Modes lists the accepted write modes
	Modes = []string{ModeOverwrite, ModeAppend, ModeIncremental, ModeUpsert, ModeArchive}
	// FileTypes lists the accepted output formats
	FileTypes = []string{FileTypeCSV, FileTypeParquet}
)

// Options describes where and how a table is persisted
type Options struct {
	FileType        string   `yaml:"file_type"`
	FileDB          string   `yaml:"file_db"`
	FilePath        string   `yaml:"file_path"`
	PrimaryKeys     []string `yaml:"primary_keys"`
	PartitionCols   []string `yaml:"partition_cols"`
	Compression     string   `yaml:"compression"`
	WriteMode       string   `yaml:"write_mode"`
	SchemaEvolution bool     `yaml:"schema_evolution"`
}

// FileWriter reconciles a table with the persisted one at its target and rewrites the target
type FileWriter struct {
	table    *tabular.Table
	opts     Options
	hiveRoot string

	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *infrastructure.PipelineMetrics
}

// NewFileWriter creates a writer for t. Empty mode and file type default to overwrite and csv.
func NewFileWriter(t *tabular.Table, opts Options, hiveRoot string) (*FileWriter, error) {
	if t == nil {
		return nil, apperrors.NewConfigError("file writer requires a table", nil)
	}
	w := &FileWriter{
		table:    t,
		opts:     opts,
		hiveRoot: hiveRoot,
		logger:   infrastructure.WithComponent(nil, "file_writer"),
		tracer:   otel.Tracer(infrastructure.MeterName),
		metrics:  infrastructure.NoopPipelineMetrics(),
	}
	if w.opts.WriteMode == "" {
		w.opts.WriteMode = ModeOverwrite
	}
	if w.opts.FileType == "" {
		w.opts.FileType = FileTypeCSV
	}
	if err := w.SetMode(w.opts.WriteMode); err != nil {
		return nil, err
	}
	if err := w.SetFileType(w.opts.FileType); err != nil {
		return nil, err
	}
	if w.opts.FileType == FileTypeParquet {
		if _, err := exporter.CompressionOption(w.opts.Compression); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// WithRuntime routes logs, spans and metrics through rt
func (w *FileWriter) WithRuntime(rt *component.Runtime) *FileWriter {
	if rt == nil {
		return w
	}
	if rt.Logger != nil {
		w.logger = rt.ComponentLogger("file_writer")
	}
	if rt.Tracer != nil {
		w.tracer = rt.Tracer
	}
	if rt.Metrics != nil {
		w.metrics = rt.Metrics
	}
	return w
}

// Options returns the effective options
func (w *FileWriter) Options() Options {
	return w.opts
}

// SetMode selects the write mode, case-insensitively
func (w *FileWriter) SetMode(mode string) error {
	m, err := ParseMode(mode)
	if err != nil {
		return err
	}
	w.opts.WriteMode = m
	return nil
}

// SetFileType selects the output format, case-insensitively
func (w *FileWriter) SetFileType(fileType string) error {
	ft, err := ParseFileType(fileType)
	if err != nil {
		return err
	}
	w.opts.FileType = ft
	return nil
}

// ParseMode lower-cases and checks a write mode
func ParseMode(mode string) (string, error) {
	m := strings.ToLower(strings.TrimSpace(mode))
	for _, known := range Modes {
		if m == known {
			return m, nil
		}
	}
	return "", apperrors.NewParameterValidationError("write_mode",
		fmt.Sprintf("unsupported mode %q, choose from %v", mode, Modes), nil)
}

// ParseFileType lower-cases and checks a file type
func ParseFileType(fileType string) (string, error) {
	ft := strings.ToLower(strings.TrimSpace(fileType))
	for _, known := range FileTypes {
		if ft == known {
			return ft, nil
		}
	}
	return "", apperrors.NewParameterValidationError("file_type",
		fmt.Sprintf("unsupported file type %q, choose from %v", fileType, FileTypes), nil)
}

// ResolvePath returns hiveRoot/file_db/file_path when a db is set, creating the db folder,
// or file_path as given otherwise
func (w *FileWriter) ResolvePath() (string, error) {
	switch {
	case w.opts.FileDB != "":
		if w.opts.FilePath == "" {
			return "", apperrors.NewConfigError(
				fmt.Sprintf("file_path is required to store into db %q", w.opts.FileDB), nil)
		}
		if w.hiveRoot == "" {
			return "", apperrors.NewConfigError("hive root is not configured", nil)
		}
		folder := filepath.Join(w.hiveRoot, w.opts.FileDB)
		if _, err := os.Stat(folder); err != nil {
			if err := os.MkdirAll(folder, 0755); err != nil {
				return "", apperrors.NewStorageError(fmt.Sprintf("failed to create %s", folder), err)
			}
			w.logger.Info("Folder created", slog.String("folder", folder))
		}
		return filepath.Join(folder, w.opts.FilePath), nil
	case w.opts.FilePath != "":
		return w.opts.FilePath, nil
	default:
		return "", apperrors.NewConfigError("either file_db or file_path should be provided", nil)
	}
}

// Save reconciles the table with the persisted one according to the write mode and
// rewrites the target. Nothing is written when any check fails.
func (w *FileWriter) Save(ctx context.Context) (err error) {
	start := time.Now()
	mode := w.opts.WriteMode

	ctx, span := w.tracer.Start(ctx, "output.save", trace.WithAttributes(
		attribute.String("write_mode", mode),
		attribute.String("file_type", w.opts.FileType),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	path, err := w.ResolvePath()
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.String("path", path))

	result, err := w.reconcile(ctx, path)
	if err != nil {
		w.logger.ErrorContext(ctx, "save failed",
			slog.String("path", path),
			slog.String("write_mode", mode),
			slog.String("error", err.Error()))
		return err
	}

	if err := w.persist(ctx, path, result); err != nil {
		return err
	}

	w.metrics.RecordWrite(ctx, w.opts.FileType, mode, result.NumRows(), time.Since(start))
	w.logger.InfoContext(ctx, "table saved",
		slog.String("path", path),
		slog.String("write_mode", mode),
		slog.Int("rows", result.NumRows()),
		slog.Int("columns", result.NumCols()))
	return nil
}

// reconcile computes the table to persist without touching the target
func (w *FileWriter) reconcile(ctx context.Context, path string) (*tabular.Table, error) {
	mode := w.opts.WriteMode
	pks := w.opts.PrimaryKeys
	incoming := w.table

	switch mode {
	case ModeArchive:
		return nil, apperrors.NewNotImplementedError("write mode " + ModeArchive).WithContext("path", path)
	case ModeIncremental, ModeUpsert:
		if len(pks) == 0 {
			return nil, apperrors.NewConfigError(
				fmt.Sprintf("write mode %q requires primary_keys", mode), nil).WithContext("mode", mode)
		}
	}

	reconciling := mode == ModeAppend || mode == ModeIncremental || mode == ModeUpsert
	missingNew := missingColumns(incoming, pks)
	if reconciling && len(missingNew) > 0 && !w.opts.SchemaEvolution {
		return nil, apperrors.NewPrimaryKeyMismatchError("new", missingNew, path)
	}
	if mode == ModeUpsert && len(missingNew) == 0 {
		if err := checkDuplicateKeys(incoming, pks); err != nil {
			return nil, err
		}
	}

	if mode == ModeOverwrite || !dataprocessing.Exists(path) {
		return incoming, nil
	}

	existing, err := w.load(path)
	if err != nil {
		return nil, err
	}
	w.logger.DebugContext(ctx, "loaded existing table",
		slog.String("path", path),
		slog.Int("rows", existing.NumRows()))

	if missing := missingColumns(existing, pks); len(missing) > 0 {
		return nil, apperrors.NewPrimaryKeyMismatchError("existing", missing, path)
	}

	if w.opts.SchemaEvolution {
		existing, incoming = alignColumns(existing, incoming)
		if mode == ModeUpsert && len(missingNew) > 0 {
			if err := checkDuplicateKeys(incoming, pks); err != nil {
				return nil, err
			}
		}
	}

	switch mode {
	case ModeAppend:
		return tabular.Concat(existing, incoming), nil
	case ModeIncremental:
		index, err := tabular.BuildKeyIndex(existing, pks)
		if err != nil {
			return nil, err
		}
		keyOf, err := tabular.KeyFunc(incoming, pks)
		if err != nil {
			return nil, err
		}
		fresh := incoming.Filter(func(r int) bool { return !index.Contains(keyOf(r)) })
		w.logger.DebugContext(ctx, "incremental rows", slog.Int("new_rows", fresh.NumRows()))
		return tabular.Concat(existing, fresh), nil
	case ModeUpsert:
		index, err := tabular.BuildKeyIndex(incoming, pks)
		if err != nil {
			return nil, err
		}
		keyOf, err := tabular.KeyFunc(existing, pks)
		if err != nil {
			return nil, err
		}
		kept := existing.Filter(func(r int) bool { return !index.Contains(keyOf(r)) })
		return tabular.Concat(kept, incoming), nil
	default:
		return incoming, nil
	}
}

func (w *FileWriter) load(path string) (*tabular.Table, error) {
	var (
		t   *tabular.Table
		err error
	)
	if w.opts.FileType == FileTypeParquet {
		t, err = dataprocessing.ReadParquet(path)
	} else {
		t, err = dataprocessing.ReadCSV(path, dataprocessing.ReadOptions{})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load existing table: %w", err)
	}
	return t, nil
}

func (w *FileWriter) persist(ctx context.Context, path string, t *tabular.Table) error {
	if w.opts.FileType == FileTypeParquet {
		return exporter.NewParquetWriter(w.logger).WriteTable(path, t, exporter.ParquetOptions{
			Compression:   w.opts.Compression,
			PartitionCols: w.opts.PartitionCols,
		})
	}
	if len(w.opts.PartitionCols) > 0 || w.opts.Compression != "" {
		w.logger.WarnContext(ctx, "partition_cols and compression are ignored for csv output",
			slog.String("path", path))
	}
	return exporter.NewCSVWriter(w.logger).WriteTable(path, t, exporter.WriteOptions{})
}

func missingColumns(t *tabular.Table, names []string) []string {
	var missing []string
	for _, n := range names {
		if !t.HasColumn(n) {
			missing = append(missing, n)
		}
	}
	return missing
}

func checkDuplicateKeys(t *tabular.Table, pks []string) error {
	dups, err := tabular.DuplicateRows(t, pks)
	if err != nil {
		return err
	}
	if len(dups) > 0 {
		return apperrors.NewDuplicateKeyError(pks, len(dups))
	}
	return nil
}

// alignColumns gives both tables the union of columns: the existing order, then new-only columns
func alignColumns(existing, incoming *tabular.Table) (*tabular.Table, *tabular.Table) {
	order := existing.Columns()
	for _, name := range incoming.Columns() {
		if !existing.HasColumn(name) {
			order = append(order, name)
		}
	}
	return withColumns(existing, order), withColumns(incoming, order)
}

func withColumns(t *tabular.Table, order []string) *tabular.Table {
	out := t
	for _, name := range order {
		if !out.HasColumn(name) {
			if widened, err := out.SetColumn(name, make([]any, t.NumRows())); err == nil {
				out = widened
			}
		}
	}
	return out.Reorder(order)
}
