// Package parsers provides the data source components of a workflow.
//
// SimpleParser reads flat files from disk, SQLParser runs a query through
// database/sql and HTTPParser pulls JSON records from a remote endpoint with
// a minimum interval between calls. All of them return a *tabular.Table.
package parsers
