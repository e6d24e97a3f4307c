// Package catalog lists every built-in component and builds the registry that
// resolves them.
package catalog

import (
	"fmt"

	"dfolks/internal/output"
	"dfolks/internal/parsers"
	"dfolks/internal/registry"
	"dfolks/internal/schema"
	"dfolks/internal/transformers"
	"dfolks/internal/workflows"
)

// Entry binds a kind to its namespace and constructor
type Entry struct {
	Namespace registry.Namespace
	Kind      string
	Factory   registry.Factory
}

// Entries is the static list of built-in components, in registration order
var Entries = []Entry{
	{registry.Plain, schema.ValidatorKind, schema.NewValidator},
	{registry.Plain, output.SaveFileKind, output.NewSaveFile},

	{registry.Plain, parsers.SimpleParserKind, parsers.NewSimpleParser},
	{registry.Plain, parsers.SQLParserKind, parsers.NewSQLParser},
	{registry.Plain, parsers.HTTPParserKind, parsers.NewHTTPParser},

	{registry.Plain, transformers.RemoveNanColsKind, transformers.NewRemoveNanCols},
	{registry.Plain, transformers.FillNaKind, transformers.NewFillNa},
	{registry.Plain, transformers.ReplaceNanStrKind, transformers.NewReplaceNanStr},
	{registry.Plain, transformers.DropDuplicatesKind, transformers.NewDropDuplicates},
	{registry.Plain, transformers.RenameColumnsKind, transformers.NewRenameColumns},
	{registry.Plain, transformers.SelectColumnsKind, transformers.NewSelectColumns},
	{registry.Transformer, transformers.StandardScalerKind, transformers.NewStandardScaler},

	{registry.Workflow, workflows.DataIngestionKind, workflows.NewDataIngestion},
	{registry.Workflow, workflows.DataExtractorKind, workflows.NewDataExtractor},
}

// Register adds every entry to reg
func Register(reg *registry.Registry) error {
	for _, e := range Entries {
		if err := reg.Register(e.Namespace, e.Kind, e.Factory); err != nil {
			return fmt.Errorf("register %s/%s: %w", e.Namespace, e.Kind, err)
		}
	}
	return nil
}

// NewRegistry builds a frozen registry holding every built-in component
func NewRegistry(opts registry.Options) (*registry.Registry, error) {
	reg := registry.New(opts)
	if err := Register(reg); err != nil {
		return nil, err
	}
	reg.Freeze()
	return reg, nil
}
