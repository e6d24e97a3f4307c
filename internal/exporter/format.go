package exporter

import (
	"net/url"
	"strings"

	"dfolks/internal/tabular"
)

// NullPartition names the directory holding rows whose partition value is null
const NullPartition = "__HIVE_DEFAULT_PARTITION__"

// formatRecord renders one row for text output
func formatRecord(row []any) []string {
	record := make([]string, len(row))
	for i, v := range row {
		record[i] = tabular.FormatValue(v)
	}
	return record
}

// partitionSegment renders a col=value directory name
func partitionSegment(column string, v any) string {
	if v == nil {
		return column + "=" + NullPartition
	}
	return column + "=" + url.PathEscape(tabular.FormatValue(v))
}

// ParsePartitionSegment splits a col=value directory name; ok is false for other names.
// The value is the unescaped text, or nil for the null partition.
func ParsePartitionSegment(segment string) (column string, value any, ok bool) {
	column, raw, found := strings.Cut(segment, "=")
	if !found || column == "" {
		return "", nil, false
	}
	if raw == NullPartition {
		return column, nil, true
	}
	text, err := url.PathUnescape(raw)
	if err != nil {
		text = raw
	}
	return column, text, true
}
