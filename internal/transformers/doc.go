// Package transformers holds the built-in chain steps that reshape a table:
// column cleanup, null handling, deduplication and standard scaling.
package transformers
