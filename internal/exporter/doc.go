// Package exporter persists tables to disk.
//
// CSVWriter writes a header row followed by one record per table row, without
// an index column. ParquetWriter writes a single parquet file, or a hive layout
// of col=value/part-0.parquet directories when partition columns are given.
//
// Every write is a whole-file rewrite: output goes to a temp file (or directory)
// next to the target and is renamed over it once complete, so readers never see
// a partially written table.
package exporter
