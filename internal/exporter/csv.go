package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"

	"dfolks/internal/tabular"
)

// CSVWriter persists tables as delimited text
type CSVWriter struct {
	logger *slog.Logger
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{logger: logger}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Separator rune
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteTable replaces filePath with t: a header row, then one record per row, no index column
func (w *CSVWriter) WriteTable(filePath string, t *tabular.Table, options WriteOptions) error {
	w.logger.Info("Writing CSV file",
		slog.String("file_path", filePath),
		slog.Int("record_count", t.NumRows()),
		slog.Int("column_count", t.NumCols()))

	return replaceFile(filePath, func(out io.Writer) error {
		return writeCSV(out, t, options)
	})
}

// Encode writes t as CSV to out without touching the filesystem
func Encode(out io.Writer, t *tabular.Table, options WriteOptions) error {
	return writeCSV(out, t, options)
}

func writeCSV(out io.Writer, t *tabular.Table, options WriteOptions) error {
	if options.BOMPrefix {
		if _, err := out.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(out)
	if options.Separator != 0 {
		writer.Comma = options.Separator
	}

	if err := writer.Write(t.Columns()); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for i := 0; i < t.NumRows(); i++ {
		if err := writer.Write(formatRecord(t.Row(i))); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
