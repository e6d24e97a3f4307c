package schema

import (
	"context"
	"errors"
	"log/slog"

	"dfolks/internal/component"
	apperrors "dfolks/internal/errors"
	"dfolks/internal/tabular"
)

// ValidatorKind is the registered kind of the chain-step schema validator
const ValidatorKind = "Validator"

// Definition is the {schemas: ...} wrapper used wherever a schema is configured
type Definition struct {
	Schemas *Schema `yaml:"schemas" validate:"required"`
}

// Validator applies a schema as a transform-only chain step
type Validator struct {
	component.Base `yaml:"-"`

	Schemas *Schema `yaml:"schemas" validate:"required"`
}

// NewValidator creates an empty validator component
func NewValidator() component.Component {
	return &Validator{}
}

// Kind implements component.Component
func (v *Validator) Kind() string { return ValidatorKind }

// Variables implements component.Component
func (v *Validator) Variables() map[string]any {
	return map[string]any{"schemas": v.Schemas}
}

// Transform validates t against the schema
func (v *Validator) Transform(ctx context.Context, t *tabular.Table) (*tabular.Table, error) {
	return Apply(ctx, v.Runtime(), v.Schemas, t)
}

// Apply validates t against s, logging the outcome and counting violations
func Apply(ctx context.Context, rt *component.Runtime, s *Schema, t *tabular.Table) (*tabular.Table, error) {
	logger := rt.ComponentLogger(ValidatorKind)
	logger.InfoContext(ctx, "validating table",
		slog.Int("declared_columns", s.Len()),
		slog.Int("input_columns", t.NumCols()),
		slog.Int("rows", t.NumRows()))

	out, err := s.Validate(t)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.Type == apperrors.ErrTypeSchemaViolation {
			column, _ := appErr.Context["column"].(string)
			constraint, _ := appErr.Context["constraint"].(string)
			rt.Metrics.RecordSchemaViolation(ctx, column, constraint)
		}
		logger.ErrorContext(ctx, "validation failed", slog.String("error", err.Error()))
		return nil, err
	}

	logger.InfoContext(ctx, "validated table",
		slog.Int("columns", out.NumCols()),
		slog.Int("rows", out.NumRows()))
	return out, nil
}
