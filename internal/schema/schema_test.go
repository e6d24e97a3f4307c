package schema

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	"dfolks/internal/component"
	apperrors "dfolks/internal/errors"
	"dfolks/internal/tabular"
)

func mustParse(t *testing.T, text string) *Schema {
	t.Helper()
	var s Schema
	require.NoError(t, yaml.Unmarshal([]byte(text), &s))
	return &s
}

func TestParseTypes(t *testing.T) {
	tests := []struct {
		name   string
		family Family
		ok     bool
	}{
		{"int", FamilyInt, true},
		{"Int64", FamilyInt, true},
		{"float64", FamilyFloat, true},
		{"datetime64[ns]", FamilyDate, true},
		{"date", FamilyDate, true},
		{"str", FamilyString, true},
		{"boolean", FamilyBool, true},
		{"decimal", FamilyString, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := ParseType(tt.name)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.family, f)
			}
		})
	}
}

func TestUnmarshalKeepsOrderAndKeys(t *testing.T) {
	s := mustParse(t, `
code:
  type: str
  primary_key: true
  new_column: company_code
date:
  type: date
  partition_key: true
  nullable: false
amount:
  type: float
  unique: true
`)
	assert.Equal(t, []string{"code", "date", "amount"}, s.Names())
	assert.Equal(t, []string{"company_code"}, s.PrimaryKeys())
	assert.Equal(t, []string{"date"}, s.PartitionColumns())

	cols := s.Columns()
	assert.True(t, cols[0].IsNullable())
	assert.False(t, cols[1].IsNullable())
	assert.Equal(t, FamilyDate, cols[1].Family())

	out, err := yaml.Marshal(s)
	require.NoError(t, err)
	again := mustParse(t, string(out))
	assert.Equal(t, s.Names(), again.Names())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input any
	}{
		{"unknown type", "a:\n  type: decimal\n"},
		{"missing type", "a:\n  nullable: false\n"},
		{"unknown descriptor key", "a:\n  type: int\n  nulable: false\n"},
		{"not a mapping", []string{"a", "b"}},
		{"no columns", yaml.MapSlice{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := tt.input
			if text, ok := input.(string); ok {
				var raw yaml.MapSlice
				require.NoError(t, yaml.Unmarshal([]byte(text), &raw))
				input = raw
			}
			_, err := Parse(input)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParameterValidation), err.Error())
		})
	}
}

func TestValidateStrictness(t *testing.T) {
	s := mustParse(t, "A:\n  type: int\nB:\n  type: str\n")

	tables := []*tabular.Table{
		tabular.MustFromColumns(
			tabular.NewColumn("A", 1, 2),
			tabular.NewColumn("B", "x", "y"),
			tabular.NewColumn("C", 1.5, 2.5),
		),
		tabular.MustFromColumns(
			tabular.NewColumn("C", "drop"),
			tabular.NewColumn("B", "b"),
			tabular.NewColumn("A", "7"),
			tabular.NewColumn("D", true),
		),
	}

	for _, in := range tables {
		out, err := s.Validate(in)
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B"}, out.Columns())
		assert.Equal(t, in.NumRows(), out.NumRows())
	}
}

func TestValidateCoercion(t *testing.T) {
	s := mustParse(t, `
id:
  type: int
price:
  type: float
traded_on:
  type: date
flag:
  type: bool
label:
  type: str
`)
	in := tabular.MustFromColumns(
		tabular.NewColumn("id", "1", 2.0, "x", 3.5),
		tabular.NewColumn("price", "10.5", "n/a", 3, nil),
		tabular.NewColumn("traded_on", "2024-01-05", "not a date", "2024/02/01", nil),
		tabular.NewColumn("flag", "true", "0", false, nil),
		tabular.NewColumn("label", 1, "a", 2.5, nil),
		tabular.NewColumn("date", "1999-01-01", "1999-01-01", "1999-01-01", "1999-01-01"),
	)

	out, err := s.Validate(in)
	require.NoError(t, err)

	id, _ := out.Column("id")
	assert.Equal(t, []any{int64(1), int64(2), nil, nil}, id)

	price, _ := out.Column("price")
	assert.Equal(t, []any{10.5, nil, 3.0, nil}, price)

	dates, _ := out.Column("traded_on")
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), dates[0])
	assert.Nil(t, dates[1])
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), dates[2])

	flag, _ := out.Column("flag")
	assert.Equal(t, []any{true, false, false, nil}, flag)

	label, _ := out.Column("label")
	assert.Equal(t, []any{"1", "a", "2.5", nil}, label)

	assert.False(t, out.HasColumn("date"))
}

func TestValidateViolations(t *testing.T) {
	tests := []struct {
		name       string
		schema     string
		table      *tabular.Table
		column     string
		constraint string
	}{
		{
			name:       "missing column",
			schema:     "a:\n  type: int\nb:\n  type: int\n",
			table:      tabular.MustFromColumns(tabular.NewColumn("a", 1)),
			column:     "b",
			constraint: "required",
		},
		{
			name:       "not nullable after coercion",
			schema:     "a:\n  type: int\n  nullable: false\n",
			table:      tabular.MustFromColumns(tabular.NewColumn("a", "1", "oops")),
			column:     "a",
			constraint: "nullable",
		},
		{
			name:       "unique",
			schema:     "a:\n  type: str\n  unique: true\n",
			table:      tabular.MustFromColumns(tabular.NewColumn("a", "x", "y", "x")),
			column:     "a",
			constraint: "unique",
		},
		{
			name:       "bad bool",
			schema:     "a:\n  type: bool\n",
			table:      tabular.MustFromColumns(tabular.NewColumn("a", "maybe")),
			column:     "a",
			constraint: "type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mustParse(t, tt.schema).Validate(tt.table)
			require.Error(t, err)

			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperrors.ErrTypeSchemaViolation, appErr.Type)
			assert.Equal(t, tt.column, appErr.Context["column"])
			assert.Equal(t, tt.constraint, appErr.Context["constraint"])
		})
	}
}

func TestUniqueIgnoresNulls(t *testing.T) {
	s := mustParse(t, "a:\n  type: float\n  unique: true\n")
	out, err := s.Validate(tabular.MustFromColumns(tabular.NewColumn("a", nil, 1.5, nil, "bad")))
	require.NoError(t, err)
	assert.Equal(t, 3, out.NullCount("a"))
}

func TestDuplicateRowsReportsOriginalPositions(t *testing.T) {
	s := mustParse(t, "a:\n  type: int\n  unique: true\n")
	_, err := s.Validate(tabular.MustFromColumns(tabular.NewColumn("a", nil, 1, nil, 1)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rows [3]")
}

func TestValidateRenamesLast(t *testing.T) {
	s := mustParse(t, "Code:\n  type: str\n  new_column: code\n  unique: true\nValue:\n  type: int\n")
	out, err := s.Validate(tabular.MustFromColumns(
		tabular.NewColumn("Value", "1", "2"),
		tabular.NewColumn("Code", "a", "b"),
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"code", "Value"}, out.Columns())
}

func TestValidateRenameCollision(t *testing.T) {
	s := mustParse(t, "a:\n  type: int\n  new_column: b\nb:\n  type: int\n")
	_, err := s.Validate(tabular.MustFromColumns(tabular.NewColumn("a", 1), tabular.NewColumn("b", 2)))
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParameterValidation))
}

func TestValidatorComponent(t *testing.T) {
	v := NewValidator().(*Validator)
	v.Schemas = mustParse(t, "a:\n  type: int\n")
	v.SetRuntime(component.DefaultRuntime())

	var _ component.Transformable = v
	_, isFittable := interface{}(v).(component.Fittable)
	assert.False(t, isFittable)
	assert.Equal(t, ValidatorKind, v.Kind())

	out, err := v.Transform(context.Background(), tabular.MustFromColumns(
		tabular.NewColumn("a", "5"),
		tabular.NewColumn("b", "drop"),
	))
	require.NoError(t, err)
	assert.Equal(t, []any{int64(5)}, out.Records()[0])

	_, err = v.Transform(context.Background(), tabular.MustFromColumns(tabular.NewColumn("b", 1)))
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSchemaViolation))
}

func TestDefinitionDecoding(t *testing.T) {
	var def Definition
	require.NoError(t, yaml.UnmarshalStrict([]byte("schemas:\n  x:\n    type: int\n    primary_key: true\n"), &def))
	require.NotNil(t, def.Schemas)
	assert.Equal(t, []string{"x"}, def.Schemas.PrimaryKeys())
}
