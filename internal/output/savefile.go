package output

import (
	"context"

	"dfolks/internal/component"
	"dfolks/internal/tabular"
)

// SaveFileKind is the registered kind of the file sink
const SaveFileKind = "SaveFile"

// SaveFile persists its input table and passes it through unchanged
type SaveFile struct {
	component.Base `yaml:"-"`

	Options `yaml:",inline"`
}

// NewSaveFile creates an unconfigured sink
func NewSaveFile() component.Component {
	return &SaveFile{}
}

// Kind implements component.Component
func (s *SaveFile) Kind() string { return SaveFileKind }

// Variables implements component.Component
func (s *SaveFile) Variables() map[string]any {
	return map[string]any{
		"file_type":        s.FileType,
		"file_db":          s.FileDB,
		"file_path":        s.FilePath,
		"primary_keys":     s.PrimaryKeys,
		"partition_cols":   s.PartitionCols,
		"compression":      s.Compression,
		"write_mode":       s.WriteMode,
		"schema_evolution": s.SchemaEvolution,
	}
}

// Validate checks mode, file type and compression at bind time
func (s *SaveFile) Validate() error {
	w, err := NewFileWriter(tabular.New(), s.Options, "")
	if err != nil {
		return err
	}
	s.Options = w.Options()
	return nil
}

// Transform writes t to the configured target and returns it
func (s *SaveFile) Transform(ctx context.Context, t *tabular.Table) (*tabular.Table, error) {
	rt := s.Runtime()
	w, err := NewFileWriter(t, s.Options, rt.HiveRoot)
	if err != nil {
		return nil, err
	}
	if err := w.WithRuntime(rt).Save(ctx); err != nil {
		return nil, err
	}
	return t, nil
}
