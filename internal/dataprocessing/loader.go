package dataprocessing

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "dfolks/internal/errors"
	"dfolks/internal/tabular"
)

// FlatFileSuffixes lists the suffixes LoadFlatFile understands
var FlatFileSuffixes = []string{".csv", ".tsv", ".txt", ".xlsx", ".parquet"}

// IsFlatFile reports whether path has a supported suffix
func IsFlatFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range FlatFileSuffixes {
		if ext == s {
			return true
		}
	}
	return false
}

// LoadFlatFile loads a single file by suffix
func LoadFlatFile(path string, options ReadOptions) (*tabular.Table, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, apperrors.NewFileNotFoundError(path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".csv", ".txt":
		return ReadCSV(path, options)
	case ".tsv":
		if options.Separator == 0 || options.Separator == ',' {
			options.Separator = '\t'
		}
		return ReadCSV(path, options)
	case ".xlsx":
		return ReadExcel(path)
	case ".parquet":
		return ReadParquet(path)
	default:
		return nil, apperrors.NewNotImplementedError(fmt.Sprintf("loading %q files", ext)).
			WithContext("path", path)
	}
}

// LoadDirectory loads every supported file in dir, in name order, and stacks them
func LoadDirectory(dir string, options ReadOptions) (*tabular.Table, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperrors.NewFileNotFoundError(dir)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !IsFlatFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	tables := make([]*tabular.Table, 0, len(names))
	for _, name := range names {
		table, err := LoadFlatFile(filepath.Join(dir, name), options)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", name, err)
		}
		tables = append(tables, table)
	}

	slog.Info("Loaded directory",
		slog.String("dir", dir),
		slog.Int("file_count", len(tables)))
	return tabular.Concat(tables...), nil
}

// LoadTable loads a persisted table: CSV, or parquet as a file or partitioned directory.
// Any other suffix is unsupported.
func LoadTable(path string) (*tabular.Table, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, apperrors.NewFileNotFoundError(path)
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".parquet" || info.IsDir():
		return ReadParquet(path)
	case ext == ".csv":
		return ReadCSV(path, ReadOptions{})
	default:
		return nil, apperrors.NewNotImplementedError(fmt.Sprintf("loading %q files", ext)).
			WithContext("path", path)
	}
}

// Exists reports whether a persisted table is present at path
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
