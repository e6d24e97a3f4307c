package transformers

import (
	"context"
	"fmt"
	"log/slog"

	"dfolks/internal/component"
	apperrors "dfolks/internal/errors"
	"dfolks/internal/tabular"
)

const (
	RemoveNanColsKind   = "RemoveNanColsTransformer"
	FillNaKind          = "FillNaTransformer"
	ReplaceNanStrKind   = "ReplaceNanStrTransformer"
	DropDuplicatesKind  = "DropDuplicatesTransformer"
	defaultNanThreshold = 0.5
)

// DefaultNanStrings are the text cells treated as missing by ReplaceNanStrTransformer
var DefaultNanStrings = []string{"", "nan", "NaN", "-", "N/A"}

// RemoveNanColsTransformer drops columns whose null ratio reaches the threshold
type RemoveNanColsTransformer struct {
	component.Base `yaml:"-"`

	Threshold *float64 `yaml:"threshold" validate:"omitempty,gt=0,lte=1"`
}

// NewRemoveNanCols creates the transformer with the default threshold
func NewRemoveNanCols() component.Component {
	return &RemoveNanColsTransformer{}
}

// Kind implements component.Component
func (r *RemoveNanColsTransformer) Kind() string { return RemoveNanColsKind }

// Variables implements component.Component
func (r *RemoveNanColsTransformer) Variables() map[string]any {
	return map[string]any{"threshold": r.threshold()}
}

func (r *RemoveNanColsTransformer) threshold() float64 {
	if r.Threshold == nil {
		return defaultNanThreshold
	}
	return *r.Threshold
}

// Transform keeps the columns whose null ratio is below the threshold.
// A table without rows is returned unchanged.
func (r *RemoveNanColsTransformer) Transform(ctx context.Context, t *tabular.Table) (*tabular.Table, error) {
	if t.NumRows() == 0 {
		return t, nil
	}

	threshold := r.threshold()
	var dropped []string
	for _, name := range t.Columns() {
		ratio := float64(t.NullCount(name)) / float64(t.NumRows())
		if ratio >= threshold {
			dropped = append(dropped, name)
		}
	}

	if len(dropped) > 0 {
		r.Runtime().ComponentLogger(RemoveNanColsKind).InfoContext(ctx, "dropping sparse columns",
			slog.Any("columns", dropped),
			slog.Float64("threshold", threshold))
	}
	return t.Drop(dropped...), nil
}

// FillValue is the replacement for nulls in one column
type FillValue struct {
	Column string `yaml:"column" validate:"required"`
	Value  any    `yaml:"value"`
}

// FillNaTransformer replaces nulls with a constant per column
type FillNaTransformer struct {
	component.Base `yaml:"-"`

	Values []FillValue `yaml:"values" validate:"required,min=1,dive"`
}

// NewFillNa creates an empty transformer
func NewFillNa() component.Component {
	return &FillNaTransformer{}
}

// Kind implements component.Component
func (f *FillNaTransformer) Kind() string { return FillNaKind }

// Variables implements component.Component
func (f *FillNaTransformer) Variables() map[string]any {
	return map[string]any{"values": f.Values}
}

// Transform fills every configured column; a column absent from t is an error
func (f *FillNaTransformer) Transform(_ context.Context, t *tabular.Table) (*tabular.Table, error) {
	return FillNulls(t, f.Values)
}

// FillNulls replaces the nulls of each listed column with its value
func FillNulls(t *tabular.Table, fills []FillValue) (*tabular.Table, error) {
	out := t
	for _, fill := range fills {
		values, ok := out.Column(fill.Column)
		if !ok {
			return nil, apperrors.NewConfigError(fmt.Sprintf("cannot fill nulls of unknown column %q", fill.Column), nil).
				WithContext("column", fill.Column)
		}
		filled := make([]any, len(values))
		for i, v := range values {
			if v == nil {
				v = fill.Value
			}
			filled[i] = v
		}
		var err error
		if out, err = out.SetColumn(fill.Column, filled); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ReplaceNanStrTransformer turns placeholder strings into nulls
type ReplaceNanStrTransformer struct {
	component.Base `yaml:"-"`

	Values []string `yaml:"values"`
}

// NewReplaceNanStr creates the transformer with the default placeholders
func NewReplaceNanStr() component.Component {
	return &ReplaceNanStrTransformer{}
}

// Kind implements component.Component
func (r *ReplaceNanStrTransformer) Kind() string { return ReplaceNanStrKind }

// Variables implements component.Component
func (r *ReplaceNanStrTransformer) Variables() map[string]any {
	return map[string]any{"values": r.placeholders()}
}

func (r *ReplaceNanStrTransformer) placeholders() []string {
	if len(r.Values) == 0 {
		return DefaultNanStrings
	}
	return r.Values
}

// Transform nulls out matching string cells in every column
func (r *ReplaceNanStrTransformer) Transform(_ context.Context, t *tabular.Table) (*tabular.Table, error) {
	match := make(map[string]bool)
	for _, s := range r.placeholders() {
		match[s] = true
	}

	out := t
	for _, name := range t.Columns() {
		values, _ := t.Column(name)
		var replaced []any
		for i, v := range values {
			s, ok := v.(string)
			if !ok || !match[s] {
				continue
			}
			if replaced == nil {
				replaced = make([]any, len(values))
				copy(replaced, values)
			}
			replaced[i] = nil
		}
		if replaced == nil {
			continue
		}
		var err error
		if out, err = out.SetColumn(name, replaced); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DropDuplicatesTransformer keeps the first row of each key tuple
type DropDuplicatesTransformer struct {
	component.Base `yaml:"-"`

	Subset []string `yaml:"subset"`
}

// NewDropDuplicates creates a transformer that compares whole rows
func NewDropDuplicates() component.Component {
	return &DropDuplicatesTransformer{}
}

// Kind implements component.Component
func (d *DropDuplicatesTransformer) Kind() string { return DropDuplicatesKind }

// Variables implements component.Component
func (d *DropDuplicatesTransformer) Variables() map[string]any {
	return map[string]any{"subset": d.Subset}
}

// Transform removes later occurrences of a key tuple; an empty subset means every column
func (d *DropDuplicatesTransformer) Transform(ctx context.Context, t *tabular.Table) (*tabular.Table, error) {
	subset := d.Subset
	if len(subset) == 0 {
		subset = t.Columns()
	}

	dups, err := tabular.DuplicateRows(t, subset)
	if err != nil {
		return nil, apperrors.NewConfigError("cannot drop duplicates", err).WithContext("subset", subset)
	}
	if len(dups) == 0 {
		return t, nil
	}

	drop := make(map[int]bool, len(dups))
	for _, r := range dups {
		drop[r] = true
	}
	d.Runtime().ComponentLogger(DropDuplicatesKind).InfoContext(ctx, "dropping duplicate rows",
		slog.Int("rows", len(dups)))
	return t.Filter(func(row int) bool { return !drop[row] }), nil
}
