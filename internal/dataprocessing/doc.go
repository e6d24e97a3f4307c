// Package dataprocessing loads tables from flat files.
//
// Delimited text is decoded through golang.org/x/text (UTF-8 with or without a
// BOM, UTF-16, Shift_JIS, EUC-JP) and cell types are inferred. Workbooks are
// read from their first sheet with excelize. Parquet is read either as a single
// file or as a hive-partitioned directory written by the exporter package, in
// which case the persisted column order and kinds are restored.
//
// Usage:
//
//	table, err := dataprocessing.LoadFlatFile("prices.csv", dataprocessing.ReadOptions{Encoding: "shift_jis"})
//	if err != nil {
//	    return err
//	}
package dataprocessing
