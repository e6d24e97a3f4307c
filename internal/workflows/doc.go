// Package workflows contains the top-level runnable components.
//
// DataIngestion moves data from a parser through a chain and a schema into a
// returned table or a persisted file. DataExtractor reads persisted tables back
// from the hive, joins and filters them, and can snapshot the result to the cache.
package workflows
