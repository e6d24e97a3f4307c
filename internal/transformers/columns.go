package transformers

import (
	"context"
	"fmt"

	"dfolks/internal/component"
	apperrors "dfolks/internal/errors"
	"dfolks/internal/tabular"
)

const (
	RenameColumnsKind = "RenameColumnsTransformer"
	SelectColumnsKind = "SelectColumnsTransformer"
)

// RenameColumnsTransformer renames columns per an old-to-new mapping
type RenameColumnsTransformer struct {
	component.Base `yaml:"-"`

	Columns map[string]string `yaml:"columns" validate:"required,min=1"`
}

// NewRenameColumns creates an empty transformer
func NewRenameColumns() component.Component {
	return &RenameColumnsTransformer{}
}

// Kind implements component.Component
func (r *RenameColumnsTransformer) Kind() string { return RenameColumnsKind }

// Variables implements component.Component
func (r *RenameColumnsTransformer) Variables() map[string]any {
	return map[string]any{"columns": r.Columns}
}

// Transform applies the mapping; every source column must exist
func (r *RenameColumnsTransformer) Transform(_ context.Context, t *tabular.Table) (*tabular.Table, error) {
	for old := range r.Columns {
		if !t.HasColumn(old) {
			return nil, apperrors.NewConfigError(fmt.Sprintf("cannot rename unknown column %q", old), nil).
				WithContext("column", old)
		}
	}
	out, err := t.Rename(r.Columns)
	if err != nil {
		return nil, apperrors.NewParameterValidationError(RenameColumnsKind, err.Error(), err)
	}
	return out, nil
}

// SelectColumnsTransformer keeps the listed columns in the listed order
type SelectColumnsTransformer struct {
	component.Base `yaml:"-"`

	Columns []string `yaml:"columns" validate:"required,min=1"`
}

// NewSelectColumns creates an empty transformer
func NewSelectColumns() component.Component {
	return &SelectColumnsTransformer{}
}

// Kind implements component.Component
func (s *SelectColumnsTransformer) Kind() string { return SelectColumnsKind }

// Variables implements component.Component
func (s *SelectColumnsTransformer) Variables() map[string]any {
	return map[string]any{"columns": s.Columns}
}

// Transform selects the columns
func (s *SelectColumnsTransformer) Transform(_ context.Context, t *tabular.Table) (*tabular.Table, error) {
	out, err := t.Select(s.Columns...)
	if err != nil {
		return nil, apperrors.NewConfigError("cannot select columns", err).WithContext("columns", s.Columns)
	}
	return out, nil
}
