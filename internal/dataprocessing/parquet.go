package dataprocessing

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	apperrors "dfolks/internal/errors"
	"dfolks/internal/exporter"
	"dfolks/internal/tabular"
)

const readBatchSize = 256

// ReadParquet reads a parquet file, or a hive-partitioned directory of parquet files.
// Partition values found in col=value directory names are restored as columns.
func ReadParquet(path string) (*tabular.Table, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, apperrors.NewFileNotFoundError(path)
	}
	if !info.IsDir() {
		table, meta, err := readParquetFile(path)
		if err != nil {
			return nil, err
		}
		return applyColumnMeta(table, meta), nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && p != path && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".parquet") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to scan %s", path), err)
	}

	var (
		parts      []*tabular.Table
		meta       []exporter.ColumnMeta
		partitions []string
	)
	for _, file := range files {
		part, fileMeta, err := readParquetFile(file)
		if err != nil {
			return nil, err
		}
		if meta == nil {
			meta = fileMeta
		}

		rel, err := filepath.Rel(path, filepath.Dir(file))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve partition of %s: %w", file, err)
		}
		if rel != "." {
			for _, segment := range strings.Split(rel, string(filepath.Separator)) {
				column, value, ok := exporter.ParsePartitionSegment(segment)
				if !ok {
					continue
				}
				if !contains(partitions, column) {
					partitions = append(partitions, column)
				}
				values := make([]any, part.NumRows())
				for i := range values {
					values[i] = value
				}
				if part, err = part.SetColumn(column, values); err != nil {
					return nil, fmt.Errorf("failed to restore partition column %q: %w", column, err)
				}
			}
		}
		parts = append(parts, part)
	}

	table := tabular.Concat(parts...)
	for _, column := range partitions {
		if hasMeta(meta, column) {
			continue
		}
		values, _ := table.Column(column)
		inferred := make([]any, len(values))
		for i, v := range values {
			if s, ok := v.(string); ok {
				inferred[i] = tabular.InferValue(s)
			}
		}
		if table, err = table.SetColumn(column, inferred); err != nil {
			return nil, err
		}
	}
	return applyColumnMeta(table, meta), nil
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func hasMeta(meta []exporter.ColumnMeta, name string) bool {
	for _, m := range meta {
		if m.Name == name {
			return true
		}
	}
	return false
}

func readParquetFile(path string) (*tabular.Table, []exporter.ColumnMeta, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, apperrors.NewFileNotFoundError(path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, nil, apperrors.NewParsingError(fmt.Sprintf("failed to open parquet file %s", path), err)
	}

	var meta []exporter.ColumnMeta
	if value, ok := pf.Lookup(exporter.ColumnsMetadataKey); ok {
		if meta, err = exporter.DecodeColumnMeta(value); err != nil {
			return nil, nil, apperrors.NewParsingError(path, err)
		}
	}
	kinds := make(map[string]tabular.Kind, len(meta))
	for _, m := range meta {
		kinds[m.Name] = tabular.ParseKind(m.Kind)
	}

	leaves := pf.Schema().Columns()
	names := make([]string, len(leaves))
	for i, leaf := range leaves {
		names[i] = strings.Join(leaf, ".")
	}
	data := make([][]any, len(names))

	buf := make([]parquet.Row, readBatchSize)
	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				cells := make([]any, len(names))
				for _, v := range row {
					col := v.Column()
					if col < 0 || col >= len(names) {
						continue
					}
					cells[col] = fromParquet(v, kinds[names[col]])
				}
				for c := range names {
					data[c] = append(data[c], cells[c])
				}
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				rows.Close()
				return nil, nil, apperrors.NewParsingError(fmt.Sprintf("failed to read rows of %s", path), err)
			}
		}
		if err := rows.Close(); err != nil {
			return nil, nil, apperrors.NewParsingError(fmt.Sprintf("failed to close rows of %s", path), err)
		}
	}

	cols := make([]tabular.Column, len(names))
	for c, name := range names {
		if data[c] == nil {
			data[c] = []any{}
		}
		cols[c] = tabular.Column{Name: name, Values: data[c]}
	}
	table, err := tabular.FromColumns(cols...)
	if err != nil {
		return nil, nil, apperrors.NewParsingError(path, err)
	}
	return table, meta, nil
}

func fromParquet(v parquet.Value, kind tabular.Kind) any {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		if kind == tabular.KindTime {
			return time.Unix(0, v.Int64()).UTC()
		}
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	default:
		return string(v.ByteArray())
	}
}

// applyColumnMeta restores the persisted column order and casts restored partition values
func applyColumnMeta(t *tabular.Table, meta []exporter.ColumnMeta) *tabular.Table {
	if len(meta) == 0 {
		return t
	}
	order := make([]string, 0, len(meta))
	for _, m := range meta {
		order = append(order, m.Name)
		values, ok := t.Column(m.Name)
		if !ok {
			continue
		}
		cast := make([]any, len(values))
		for i, v := range values {
			cast[i] = castTo(v, tabular.ParseKind(m.Kind))
		}
		if out, err := t.SetColumn(m.Name, cast); err == nil {
			t = out
		}
	}
	return t.Reorder(order)
}

func castTo(v any, kind tabular.Kind) any {
	if v == nil {
		return nil
	}
	switch kind {
	case tabular.KindInt:
		if i, ok := tabular.ToInt(v); ok {
			return i
		}
	case tabular.KindFloat:
		if f, ok := tabular.ToFloat(v); ok {
			return f
		}
	case tabular.KindBool:
		if b, ok := tabular.ToBool(v); ok {
			return b
		}
	case tabular.KindTime:
		if ts, ok := tabular.ToTime(v); ok {
			return ts
		}
	case tabular.KindString:
		return tabular.ToString(v)
	}
	return v
}
