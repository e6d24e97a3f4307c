package exporter

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/parquet-go/parquet-go"

	apperrors "dfolks/internal/errors"
	"dfolks/internal/tabular"
)

const (
	// ColumnsMetadataKey stores the original column order and kinds in the file footer
	ColumnsMetadataKey = "dfolks.columns"
	// PartFileName is the file written inside each partition directory
	PartFileName = "part-0.parquet"
	// DefaultCompression applies when no codec is configured
	DefaultCompression = "snappy"
)

// CompressionCodecs lists the accepted compression names
var CompressionCodecs = []string{"snappy", "gzip", "zstd", "brotli", "lz4", "none"}

// ColumnMeta describes one column of a persisted table
type ColumnMeta struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// DecodeColumnMeta parses the ColumnsMetadataKey footer value
func DecodeColumnMeta(value string) ([]ColumnMeta, error) {
	var meta []ColumnMeta
	if err := json.Unmarshal([]byte(value), &meta); err != nil {
		return nil, fmt.Errorf("invalid column metadata: %w", err)
	}
	return meta, nil
}

// ParquetOptions configures parquet output
type ParquetOptions struct {
	Compression   string
	PartitionCols []string
}

// ParquetWriter persists tables as parquet files or hive-partitioned directories
type ParquetWriter struct {
	logger *slog.Logger
}

// NewParquetWriter creates a new parquet writer instance
func NewParquetWriter(logger *slog.Logger) *ParquetWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ParquetWriter{logger: logger}
}

// CompressionOption maps a codec name onto a writer option
func CompressionOption(name string) (parquet.WriterOption, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "snappy":
		return parquet.Compression(&parquet.Snappy), nil
	case "gzip":
		return parquet.Compression(&parquet.Gzip), nil
	case "zstd":
		return parquet.Compression(&parquet.Zstd), nil
	case "brotli":
		return parquet.Compression(&parquet.Brotli), nil
	case "lz4":
		return parquet.Compression(&parquet.Lz4Raw), nil
	case "none", "uncompressed":
		return parquet.Compression(&parquet.Uncompressed), nil
	default:
		return nil, apperrors.NewParameterValidationError("compression",
			fmt.Sprintf("unsupported compression %q, expected one of %v", name, CompressionCodecs), nil)
	}
}

// WriteTable replaces path with t. With partition columns, path becomes a directory
// of col=value/part-0.parquet files whose bodies omit the partition columns.
func (w *ParquetWriter) WriteTable(path string, t *tabular.Table, options ParquetOptions) error {
	if t.NumCols() == 0 {
		return apperrors.NewStorageError(fmt.Sprintf("cannot write %s: table has no columns", path), nil)
	}
	codec, err := CompressionOption(options.Compression)
	if err != nil {
		return err
	}

	meta := make([]ColumnMeta, 0, t.NumCols())
	for _, name := range t.Columns() {
		meta = append(meta, ColumnMeta{Name: name, Kind: storedKind(t.ColumnKind(name)).String()})
	}
	encoded, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode column metadata: %w", err)
	}
	opts := []parquet.WriterOption{codec, parquet.KeyValueMetadata(ColumnsMetadataKey, string(encoded))}

	w.logger.Info("Writing parquet output",
		slog.String("file_path", path),
		slog.Int("record_count", t.NumRows()),
		slog.String("compression", options.Compression),
		slog.Any("partition_cols", options.PartitionCols))

	if len(options.PartitionCols) == 0 {
		return replaceFile(path, func(out io.Writer) error {
			return encodeParquet(out, t, opts)
		})
	}

	for _, col := range options.PartitionCols {
		if !t.HasColumn(col) {
			return apperrors.NewConfigError(fmt.Sprintf("partition column %q not found in table", col), nil).
				WithContext("path", path)
		}
	}
	if len(options.PartitionCols) == t.NumCols() {
		return apperrors.NewConfigError("partition columns cannot cover every column", nil).
			WithContext("path", path)
	}

	return replaceDir(path, func(dir string) error {
		return w.writePartitions(dir, t, options.PartitionCols, opts)
	})
}

func (w *ParquetWriter) writePartitions(dir string, t *tabular.Table, cols []string, opts []parquet.WriterOption) error {
	groups := make(map[string][]int)
	var order []string
	for r := 0; r < t.NumRows(); r++ {
		segments := make([]string, len(cols))
		for i, col := range cols {
			segments[i] = partitionSegment(col, t.Value(r, col))
		}
		rel := filepath.Join(segments...)
		if _, ok := groups[rel]; !ok {
			order = append(order, rel)
		}
		groups[rel] = append(groups[rel], r)
	}
	sort.Strings(order)

	body := t.Drop(cols...)
	for _, rel := range order {
		target := filepath.Join(dir, rel, PartFileName)
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("failed to create partition %s: %w", rel, err)
		}
		part := body.Take(groups[rel])
		f, err := os.Create(target)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", target, err)
		}
		if err := encodeParquet(f, part, opts); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to close %s: %w", target, err)
		}
		w.logger.Debug("Wrote partition",
			slog.String("partition", rel),
			slog.Int("record_count", part.NumRows()))
	}
	return nil
}

// storedKind maps a column kind onto the physical type used in the file
func storedKind(k tabular.Kind) tabular.Kind {
	if k == tabular.KindNull {
		return tabular.KindString
	}
	return k
}

func leafFor(k tabular.Kind) parquet.Node {
	switch k {
	case tabular.KindInt:
		return parquet.Int(64)
	case tabular.KindFloat:
		return parquet.Leaf(parquet.DoubleType)
	case tabular.KindBool:
		return parquet.Leaf(parquet.BooleanType)
	case tabular.KindTime:
		return parquet.Timestamp(parquet.Nanosecond)
	default:
		return parquet.String()
	}
}

func encodeParquet(out io.Writer, t *tabular.Table, opts []parquet.WriterOption) error {
	names := t.Columns()
	kinds := make(map[string]tabular.Kind, len(names))
	group := make(parquet.Group, len(names))
	for _, name := range names {
		kinds[name] = storedKind(t.ColumnKind(name))
		group[name] = parquet.Optional(leafFor(kinds[name]))
	}
	schema := parquet.NewSchema("table", group)

	// Group fields are laid out by name, not by table order
	leaves := schema.Columns()
	leafNames := make([]string, len(leaves))
	for i, path := range leaves {
		leafNames[i] = path[0]
	}

	writer := parquet.NewWriter(out, append([]parquet.WriterOption{schema}, opts...)...)
	rows := make([]parquet.Row, 0, t.NumRows())
	for r := 0; r < t.NumRows(); r++ {
		row := make(parquet.Row, len(leaves))
		for i, name := range leafNames {
			v := t.Value(r, name)
			row[i] = cellValue(v, kinds[name]).Level(0, definitionLevel(v), i)
		}
		rows = append(rows, row)
	}
	if _, err := writer.WriteRows(rows); err != nil {
		writer.Close()
		return apperrors.NewStorageError("failed to write parquet rows", err)
	}
	if err := writer.Close(); err != nil {
		return apperrors.NewStorageError("failed to finalize parquet file", err)
	}
	return nil
}

func definitionLevel(v any) int {
	if v == nil {
		return 0
	}
	return 1
}

func cellValue(v any, k tabular.Kind) parquet.Value {
	if v == nil {
		return parquet.NullValue()
	}
	switch k {
	case tabular.KindInt:
		if i, ok := tabular.ToInt(v); ok {
			return parquet.Int64Value(i)
		}
	case tabular.KindFloat:
		if f, ok := tabular.ToFloat(v); ok {
			return parquet.DoubleValue(f)
		}
	case tabular.KindBool:
		if b, ok := tabular.ToBool(v); ok {
			return parquet.BooleanValue(b)
		}
	case tabular.KindTime:
		if ts, ok := tabular.ToTime(v); ok {
			return parquet.Int64Value(ts.UTC().UnixNano())
		}
	}
	return parquet.ByteArrayValue([]byte(tabular.FormatValue(v)))
}
