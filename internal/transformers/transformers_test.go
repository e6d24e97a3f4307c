package transformers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dfolks/internal/component"
	apperrors "dfolks/internal/errors"
	"dfolks/internal/registry"
	"dfolks/internal/resolver"
	"dfolks/internal/tabular"
)

func newResolver(t *testing.T) *resolver.Resolver {
	t.Helper()
	reg := registry.New(registry.Options{})
	require.NoError(t, reg.Register(registry.Transformer, StandardScalerKind, NewStandardScaler))
	for kind, factory := range map[string]registry.Factory{
		RemoveNanColsKind:  NewRemoveNanCols,
		FillNaKind:         NewFillNa,
		ReplaceNanStrKind:  NewReplaceNanStr,
		DropDuplicatesKind: NewDropDuplicates,
		RenameColumnsKind:  NewRenameColumns,
		SelectColumnsKind:  NewSelectColumns,
	} {
		require.NoError(t, reg.Register(registry.Plain, kind, factory))
	}
	reg.Freeze()
	return resolver.New(reg, component.DefaultRuntime())
}

func transform(t *testing.T, cfg string, in *tabular.Table) (*tabular.Table, error) {
	t.Helper()
	c, err := newResolver(t).Resolve(context.Background(), cfg)
	require.NoError(t, err)
	step, ok := c.(component.Transformable)
	require.True(t, ok)
	if f, ok := c.(component.Fittable); ok {
		require.NoError(t, f.Fit(context.Background(), in))
	}
	return step.Transform(context.Background(), in)
}

func TestRemoveNanCols(t *testing.T) {
	in := tabular.MustFromColumns(
		tabular.NewColumn("A", 1, 2, 3, nil),
		tabular.NewColumn("B", 1, nil, 3, nil),
		tabular.NewColumn("C", nil, nil, 3, nil),
	)

	tests := []struct {
		name string
		cfg  string
		want []string
	}{
		{name: "default threshold", cfg: "kind: RemoveNanColsTransformer\n", want: []string{"A"}},
		{name: "lenient threshold", cfg: "kind: RemoveNanColsTransformer\nthreshold: 0.8\n", want: []string{"A", "B", "C"}},
		{name: "strict threshold", cfg: "kind: RemoveNanColsTransformer\nthreshold: 0.25\n", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := transform(t, tt.cfg, in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Columns())
			assert.Equal(t, 4, out.NumRows())
		})
	}

	empty := tabular.New("A", "B")
	out, err := transform(t, "kind: RemoveNanColsTransformer\n", empty)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, out.Columns())

	_, err = newResolver(t).Resolve(context.Background(), "kind: RemoveNanColsTransformer\nthreshold: 1.5\n")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParameterValidation))
}

func TestFillNa(t *testing.T) {
	in := tabular.MustFromColumns(
		tabular.NewColumn("code", "A", nil, "C"),
		tabular.NewColumn("volume", 10, nil, nil),
	)

	out, err := transform(t, "kind: FillNaTransformer\nvalues:\n- column: code\n  value: UNKNOWN\n- column: volume\n  value: 0\n", in)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"A", int64(10)}, {"UNKNOWN", int64(0)}, {"C", int64(0)}}, out.Records())
	assert.Equal(t, 2, in.NullCount("volume"))

	_, err = transform(t, "kind: FillNaTransformer\nvalues:\n- column: price\n  value: 0\n", in)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}

func TestReplaceNanStr(t *testing.T) {
	in := tabular.MustFromColumns(
		tabular.NewColumn("code", "A", "nan", "-", "N/A"),
		tabular.NewColumn("note", "ok", "NaN", "", "missing"),
		tabular.NewColumn("volume", 1, 2, 3, 4),
	)

	out, err := transform(t, "kind: ReplaceNanStrTransformer\n", in)
	require.NoError(t, err)
	assert.Equal(t, [][]any{
		{"A", "ok", int64(1)},
		{nil, nil, int64(2)},
		{nil, nil, int64(3)},
		{nil, "missing", int64(4)},
	}, out.Records())

	out, err = transform(t, "kind: ReplaceNanStrTransformer\nvalues: [missing]\n", in)
	require.NoError(t, err)
	assert.Equal(t, []any{"ok", "NaN", "", nil}, mustColumn(t, out, "note"))
}

func TestDropDuplicates(t *testing.T) {
	in := tabular.MustFromColumns(
		tabular.NewColumn("code", "A", "A", "B", "A"),
		tabular.NewColumn("day", 1, 1, 1, 2),
		tabular.NewColumn("close", 1.0, 1.0, 3.0, 4.0),
	)

	out, err := transform(t, "kind: DropDuplicatesTransformer\n", in)
	require.NoError(t, err)
	assert.Equal(t, 3, out.NumRows())

	out, err = transform(t, "kind: DropDuplicatesTransformer\nsubset: [code]\n", in)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"A", int64(1), 1.0}, {"B", int64(1), 3.0}}, out.Records())

	_, err = transform(t, "kind: DropDuplicatesTransformer\nsubset: [missing]\n", in)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}

func TestRenameAndSelect(t *testing.T) {
	in := tabular.MustFromColumns(
		tabular.NewColumn("Code", "A"),
		tabular.NewColumn("Close", 1.5),
		tabular.NewColumn("Volume", 10),
	)

	out, err := transform(t, "kind: RenameColumnsTransformer\ncolumns:\n  Code: code\n  Close: close\n", in)
	require.NoError(t, err)
	assert.Equal(t, []string{"code", "close", "Volume"}, out.Columns())

	_, err = transform(t, "kind: RenameColumnsTransformer\ncolumns:\n  Code: Volume\n", in)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParameterValidation))

	_, err = transform(t, "kind: RenameColumnsTransformer\ncolumns:\n  Open: open\n", in)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))

	out, err = transform(t, "kind: SelectColumnsTransformer\ncolumns: [Volume, Code]\n", in)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(10), "A"}}, out.Records())

	_, err = transform(t, "kind: SelectColumnsTransformer\ncolumns: [Open]\n", in)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}

func TestStandardScaler(t *testing.T) {
	in := tabular.MustFromColumns(
		tabular.NewColumn("code", "A", "B", "C", "D"),
		tabular.NewColumn("close", 1.0, 2.0, 3.0, 4.0),
		tabular.NewColumn("volume", 10, 10, nil, 10),
	)

	scaler := NewStandardScaler().(*StandardScalerTransformer)
	_, err := scaler.Transform(context.Background(), in)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))

	require.NoError(t, scaler.Fit(context.Background(), in))
	out, err := scaler.Transform(context.Background(), in)
	require.NoError(t, err)

	closes := mustColumn(t, out, "close")
	// mean 2.5, population std sqrt(1.25)
	want := []float64{-1.3416407865, -0.4472135955, 0.4472135955, 1.3416407865}
	for i, w := range want {
		assert.InDelta(t, w, closes[i], 1e-9)
	}
	assert.Equal(t, []any{0.0, 0.0, nil, 0.0}, mustColumn(t, out, "volume"))
	assert.Equal(t, []any{"A", "B", "C", "D"}, mustColumn(t, out, "code"))

	restored, err := scaler.InverseTransform(context.Background(), out)
	require.NoError(t, err)
	for i, v := range mustColumn(t, restored, "close") {
		assert.InDelta(t, float64(i+1), v, 1e-9)
	}
}

func TestStandardScalerOptions(t *testing.T) {
	in := tabular.MustFromColumns(
		tabular.NewColumn("close", 1.0, 3.0),
		tabular.NewColumn("open", 5.0, 7.0),
	)

	out, err := transform(t, "kind: StandardScalerTransformer\ncolumns: [close]\nwith_std: false\n", in)
	require.NoError(t, err)
	assert.Equal(t, []any{-1.0, 1.0}, mustColumn(t, out, "close"))
	assert.Equal(t, []any{5.0, 7.0}, mustColumn(t, out, "open"))

	out, err = transform(t, "kind: StandardScalerTransformer\nwith_mean: false\n", in)
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 3.0}, mustColumn(t, out, "close"))
	assert.Equal(t, []any{5.0, 7.0}, mustColumn(t, out, "open"))

	scaler := NewStandardScaler().(*StandardScalerTransformer)
	scaler.Columns = []string{"code"}
	err = scaler.Fit(context.Background(), tabular.MustFromColumns(tabular.NewColumn("code", "A")))
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}

func mustColumn(t *testing.T, table *tabular.Table, name string) []any {
	t.Helper()
	values, ok := table.Column(name)
	require.True(t, ok, name)
	return values
}
