package schema

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"

	apperrors "dfolks/internal/errors"
	"dfolks/internal/tabular"
)

// maxSampleRows bounds the row indices quoted in a violation message
const maxSampleRows = 5

// ColumnSpec describes one declared column
type ColumnSpec struct {
	Name         string `yaml:"-"`
	Type         string `yaml:"type"`
	Nullable     *bool  `yaml:"nullable,omitempty"`
	Unique       bool   `yaml:"unique,omitempty"`
	NewColumn    string `yaml:"new_column,omitempty"`
	PrimaryKey   bool   `yaml:"primary_key,omitempty"`
	PartitionKey bool   `yaml:"partition_key,omitempty"`

	family Family
}

// IsNullable reports the nullable flag; undeclared means true
func (c ColumnSpec) IsNullable() bool {
	return c.Nullable == nil || *c.Nullable
}

// OutputName is the column name after renames
func (c ColumnSpec) OutputName() string {
	if c.NewColumn != "" {
		return c.NewColumn
	}
	return c.Name
}

// Family returns the resolved type family
func (c ColumnSpec) Family() Family {
	return c.family
}

// Schema is an ordered set of column specs
type Schema struct {
	columns []ColumnSpec
}

// New builds a schema from specs, resolving their types
func New(specs ...ColumnSpec) (*Schema, error) {
	s := &Schema{}
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if spec.Name == "" {
			return nil, apperrors.NewParameterValidationError("schema", "column name cannot be empty", nil)
		}
		if seen[spec.Name] {
			return nil, apperrors.NewParameterValidationError("schema", fmt.Sprintf("column %q declared twice", spec.Name), nil)
		}
		seen[spec.Name] = true

		if spec.Type == "" {
			return nil, apperrors.NewParameterValidationError("schema", fmt.Sprintf("column %q has no type", spec.Name), nil)
		}
		family, ok := ParseType(spec.Type)
		if !ok {
			return nil, apperrors.NewParameterValidationError("schema",
				fmt.Sprintf("column %q has unknown type %q", spec.Name, spec.Type), nil)
		}
		spec.family = family
		s.columns = append(s.columns, spec)
	}
	return s, nil
}

// Parse decodes a schema from any mapping of column name to descriptor
func Parse(v any) (*Schema, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, apperrors.NewParameterValidationError("schema", "schema cannot be encoded", err)
	}
	var s Schema
	if err := yaml.UnmarshalStrict(data, &s); err != nil {
		if apperrors.TypeOf(err) != "" {
			return nil, err
		}
		return nil, apperrors.NewParameterValidationError("schema", err.Error(), err)
	}
	return &s, nil
}

// UnmarshalYAML decodes a column mapping, keeping declaration order
func (s *Schema) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var ms yaml.MapSlice
	if err := unmarshal(&ms); err != nil {
		return err
	}
	if len(ms) == 0 {
		return apperrors.NewParameterValidationError("schema", "schema declares no columns", nil)
	}

	specs := make([]ColumnSpec, 0, len(ms))
	for _, item := range ms {
		name := fmt.Sprint(item.Key)
		data, err := yaml.Marshal(item.Value)
		if err != nil {
			return err
		}
		var spec ColumnSpec
		if err := yaml.UnmarshalStrict(data, &spec); err != nil {
			return fmt.Errorf("column %q: %w", name, err)
		}
		spec.Name = name
		specs = append(specs, spec)
	}

	parsed, err := New(specs...)
	if err != nil {
		return err
	}
	*s = *parsed
	return nil
}

// MarshalYAML encodes the schema as an ordered column mapping
func (s Schema) MarshalYAML() (interface{}, error) {
	ms := make(yaml.MapSlice, 0, len(s.columns))
	for _, c := range s.columns {
		ms = append(ms, yaml.MapItem{Key: c.Name, Value: c})
	}
	return ms, nil
}

// Columns returns the specs in declaration order
func (s *Schema) Columns() []ColumnSpec {
	out := make([]ColumnSpec, len(s.columns))
	copy(out, s.columns)
	return out
}

// Len returns the number of declared columns
func (s *Schema) Len() int {
	return len(s.columns)
}

// Names returns the declared (pre-rename) column names
func (s *Schema) Names() []string {
	names := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = c.Name
	}
	return names
}

// PrimaryKeys returns the post-rename names of primary-key columns
func (s *Schema) PrimaryKeys() []string {
	var keys []string
	for _, c := range s.columns {
		if c.PrimaryKey {
			keys = append(keys, c.OutputName())
		}
	}
	return keys
}

// PartitionColumns returns the post-rename names of partition columns
func (s *Schema) PartitionColumns() []string {
	var cols []string
	for _, c := range s.columns {
		if c.PartitionKey {
			cols = append(cols, c.OutputName())
		}
	}
	return cols
}

// Validate coerces, restricts and checks t against the schema, then applies renames.
// Unparsable numeric and date cells become null rather than failing.
func (s *Schema) Validate(t *tabular.Table) (*tabular.Table, error) {
	cols := make([]tabular.Column, 0, len(s.columns))
	for _, spec := range s.columns {
		values, ok := t.Column(spec.Name)
		if !ok {
			return nil, apperrors.NewSchemaViolationError(spec.Name, "required", "column is missing from the table")
		}
		coerced, err := coerce(spec, values)
		if err != nil {
			return nil, err
		}
		cols = append(cols, tabular.Column{Name: spec.Name, Values: coerced})
	}

	out, err := tabular.FromColumns(cols...)
	if err != nil {
		return nil, err
	}

	for _, spec := range s.columns {
		if spec.IsNullable() {
			continue
		}
		if rows := nullRows(out, spec.Name); len(rows) > 0 {
			return nil, apperrors.NewSchemaViolationError(spec.Name, "nullable",
				fmt.Sprintf("%d null values at rows %s", len(rows), sample(rows)))
		}
	}

	for _, spec := range s.columns {
		if !spec.Unique {
			continue
		}
		if rows := duplicateRows(out, spec.Name); len(rows) > 0 {
			return nil, apperrors.NewSchemaViolationError(spec.Name, "unique",
				fmt.Sprintf("%d duplicated values at rows %s", len(rows), sample(rows)))
		}
	}

	renames := make(map[string]string)
	for _, spec := range s.columns {
		if spec.NewColumn != "" && spec.NewColumn != spec.Name {
			renames[spec.Name] = spec.NewColumn
		}
	}
	if len(renames) > 0 {
		renamed, err := out.Rename(renames)
		if err != nil {
			return nil, apperrors.NewParameterValidationError("schema", err.Error(), err)
		}
		out = renamed
	}

	return out, nil
}

func coerce(spec ColumnSpec, values []any) ([]any, error) {
	out := make([]any, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		switch spec.family {
		case FamilyInt:
			if n, ok := tabular.ToInt(v); ok {
				out[i] = n
			}
		case FamilyFloat:
			if f, ok := tabular.ToFloat(v); ok {
				out[i] = f
			}
		case FamilyDate:
			if ts, ok := tabular.ToTime(v); ok {
				out[i] = ts
			}
		case FamilyBool:
			b, ok := tabular.ToBool(v)
			if !ok {
				return nil, apperrors.NewSchemaViolationError(spec.Name, "type",
					fmt.Sprintf("row %d: %q is not a %s", i, tabular.FormatValue(v), spec.Type))
			}
			out[i] = b
		default:
			out[i] = tabular.ToString(v)
		}
	}
	return out, nil
}

func nullRows(t *tabular.Table, name string) []int {
	values, _ := t.Column(name)
	var rows []int
	for i, v := range values {
		if v == nil {
			rows = append(rows, i)
		}
	}
	return rows
}

// duplicateRows returns rows repeating an earlier non-null value
func duplicateRows(t *tabular.Table, name string) []int {
	values, _ := t.Column(name)
	nonNull := t.Filter(func(r int) bool { return values[r] != nil })
	positions := make([]int, 0, nonNull.NumRows())
	for i, v := range values {
		if v != nil {
			positions = append(positions, i)
		}
	}

	dups, err := tabular.DuplicateRows(nonNull, []string{name})
	if err != nil {
		return nil
	}
	rows := make([]int, len(dups))
	for i, d := range dups {
		rows[i] = positions[d]
	}
	sort.Ints(rows)
	return rows
}

func sample(rows []int) string {
	n := len(rows)
	if n > maxSampleRows {
		n = maxSampleRows
	}
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprint(rows[i])
	}
	out := "[" + strings.Join(parts, ", ")
	if len(rows) > n {
		out += ", ..."
	}
	return out + "]"
}
