package transformers

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"dfolks/internal/component"
	apperrors "dfolks/internal/errors"
	"dfolks/internal/tabular"
)

// StandardScalerKind is registered in the transformer namespace
const StandardScalerKind = "StandardScalerTransformer"

// columnStats are the statistics learned by Fit for one column
type columnStats struct {
	mean  float64
	scale float64
}

// StandardScalerTransformer centers and scales numeric columns.
// Nulls are skipped when fitting and stay null when transforming.
type StandardScalerTransformer struct {
	component.Base `yaml:"-"`

	Columns  []string `yaml:"columns"`
	WithMean *bool    `yaml:"with_mean"`
	WithStd  *bool    `yaml:"with_std"`

	stats map[string]columnStats
}

// NewStandardScaler creates an unfitted scaler
func NewStandardScaler() component.Component {
	return &StandardScalerTransformer{}
}

// Kind implements component.Component
func (s *StandardScalerTransformer) Kind() string { return StandardScalerKind }

// Variables implements component.Component
func (s *StandardScalerTransformer) Variables() map[string]any {
	return map[string]any{
		"columns":   s.Columns,
		"with_mean": s.withMean(),
		"with_std":  s.withStd(),
	}
}

func (s *StandardScalerTransformer) withMean() bool { return s.WithMean == nil || *s.WithMean }
func (s *StandardScalerTransformer) withStd() bool  { return s.WithStd == nil || *s.WithStd }

// Fitted reports whether Fit has completed
func (s *StandardScalerTransformer) Fitted() bool {
	return s.stats != nil
}

// targets returns the configured columns, or every numeric column of t
func (s *StandardScalerTransformer) targets(t *tabular.Table) []string {
	if len(s.Columns) > 0 {
		return s.Columns
	}
	var cols []string
	for _, name := range t.Columns() {
		switch t.ColumnKind(name) {
		case tabular.KindInt, tabular.KindFloat:
			cols = append(cols, name)
		}
	}
	return cols
}

// Fit learns the mean and population standard deviation of each target column
func (s *StandardScalerTransformer) Fit(ctx context.Context, t *tabular.Table) error {
	stats := make(map[string]columnStats)
	for _, name := range s.targets(t) {
		values, ok := t.Column(name)
		if !ok {
			return apperrors.NewConfigError(fmt.Sprintf("cannot scale unknown column %q", name), nil).
				WithContext("column", name)
		}

		var sum, sumSq float64
		n := 0
		for i, v := range values {
			if v == nil {
				continue
			}
			f, ok := tabular.ToFloat(v)
			if !ok {
				return apperrors.NewConfigError(
					fmt.Sprintf("column %q row %d is not numeric: %v", name, i, v), nil).
					WithContext("column", name)
			}
			sum += f
			sumSq += f * f
			n++
		}

		st := columnStats{scale: 1}
		if n > 0 {
			mean := sum / float64(n)
			variance := sumSq/float64(n) - mean*mean
			if variance < 0 {
				variance = 0
			}
			if s.withMean() {
				st.mean = mean
			}
			if std := math.Sqrt(variance); s.withStd() && std > 0 {
				st.scale = std
			}
		}
		stats[name] = st
	}

	s.stats = stats
	s.Runtime().ComponentLogger(StandardScalerKind).DebugContext(ctx, "scaler fitted",
		slog.Int("columns", len(stats)))
	return nil
}

// Transform scales the fitted columns
func (s *StandardScalerTransformer) Transform(_ context.Context, t *tabular.Table) (*tabular.Table, error) {
	return s.apply(t, func(v float64, st columnStats) float64 { return (v - st.mean) / st.scale })
}

// InverseTransform restores the original scale of the fitted columns
func (s *StandardScalerTransformer) InverseTransform(_ context.Context, t *tabular.Table) (*tabular.Table, error) {
	return s.apply(t, func(v float64, st columnStats) float64 { return v*st.scale + st.mean })
}

func (s *StandardScalerTransformer) apply(t *tabular.Table, fn func(float64, columnStats) float64) (*tabular.Table, error) {
	if !s.Fitted() {
		return nil, apperrors.NewConfigError("StandardScalerTransformer must be fitted before transforming", nil)
	}

	names := s.Columns
	if len(names) == 0 {
		for _, name := range t.Columns() {
			if _, ok := s.stats[name]; ok {
				names = append(names, name)
			}
		}
	}

	out := t
	for _, name := range names {
		st, ok := s.stats[name]
		if !ok {
			return nil, apperrors.NewConfigError(fmt.Sprintf("column %q was not seen by Fit", name), nil).
				WithContext("column", name)
		}
		values, ok := t.Column(name)
		if !ok {
			return nil, apperrors.NewConfigError(fmt.Sprintf("cannot scale unknown column %q", name), nil).
				WithContext("column", name)
		}
		scaled := make([]any, len(values))
		for i, v := range values {
			f, ok := tabular.ToFloat(v)
			if !ok {
				continue
			}
			scaled[i] = fn(f, st)
		}
		var err error
		if out, err = out.SetColumn(name, scaled); err != nil {
			return nil, err
		}
	}
	return out, nil
}
