package workflows

import (
	"fmt"
	"strings"

	apperrors "dfolks/internal/errors"
	"dfolks/internal/tabular"
)

// Filter operators
const (
	OpEq      = "=="
	OpNe      = "!="
	OpGt      = ">"
	OpGe      = ">="
	OpLt      = "<"
	OpLe      = "<="
	OpIn      = "in"
	OpNotNull = "notnull"
	OpIsNull  = "isnull"
)

// Filter keeps the rows whose column satisfies op against value
type Filter struct {
	Column string `yaml:"column" validate:"required"`
	Op     string `yaml:"op" validate:"required,oneof=== != > >= < <= in notnull isnull"`
	Value  any    `yaml:"value"`
}

// predicate compiles the filter into a row test over t
func (f Filter) predicate(t *tabular.Table) (func(row int) bool, error) {
	values, ok := t.Column(f.Column)
	if !ok {
		return nil, apperrors.NewConfigError(fmt.Sprintf("cannot filter on unknown column %q", f.Column), nil).
			WithContext("column", f.Column)
	}

	switch f.Op {
	case OpIsNull:
		return func(r int) bool { return values[r] == nil }, nil
	case OpNotNull:
		return func(r int) bool { return values[r] != nil }, nil
	case OpIn:
		list, ok := f.Value.([]any)
		if !ok {
			return nil, apperrors.NewConfigError(fmt.Sprintf("filter %q on %q needs a list value", f.Op, f.Column), nil)
		}
		candidates := make([]any, 0, len(list))
		for _, v := range list {
			if v = tabular.Normalize(v); v != nil {
				candidates = append(candidates, v)
			}
		}
		return func(r int) bool {
			if values[r] == nil {
				return false
			}
			for _, c := range candidates {
				if n, ok := compareValues(values[r], c); ok && n == 0 {
					return true
				}
			}
			return false
		}, nil
	}

	target := tabular.Normalize(f.Value)
	return func(r int) bool {
		v := values[r]
		if v == nil || target == nil {
			if f.Op == OpNe {
				return v != target
			}
			return f.Op == OpEq && v == target
		}
		c, ok := compareValues(v, target)
		if !ok {
			return f.Op == OpNe
		}
		switch f.Op {
		case OpEq:
			return c == 0
		case OpNe:
			return c != 0
		case OpGt:
			return c > 0
		case OpGe:
			return c >= 0
		case OpLt:
			return c < 0
		case OpLe:
			return c <= 0
		}
		return false
	}, nil
}

// compareValues orders a against b numerically, by time, by bool or as text,
// in that order of preference. ok is false when the values are not comparable.
func compareValues(a, b any) (int, bool) {
	ka, kb := tabular.KindOf(a), tabular.KindOf(b)
	numeric := func(k tabular.Kind) bool { return k == tabular.KindInt || k == tabular.KindFloat }

	switch {
	case numeric(ka) || numeric(kb):
		x, okA := tabular.ToFloat(a)
		y, okB := tabular.ToFloat(b)
		if !okA || !okB {
			return 0, false
		}
		return cmp(x < y, x > y), true
	case ka == tabular.KindTime || kb == tabular.KindTime:
		x, okA := tabular.ToTime(a)
		y, okB := tabular.ToTime(b)
		if !okA || !okB {
			return 0, false
		}
		return cmp(x.Before(y), x.After(y)), true
	case ka == tabular.KindBool || kb == tabular.KindBool:
		x, okA := tabular.ToBool(a)
		y, okB := tabular.ToBool(b)
		if !okA || !okB {
			return 0, false
		}
		return cmp(!x && y, x && !y), true
	default:
		return strings.Compare(tabular.FormatValue(a), tabular.FormatValue(b)), true
	}
}

func cmp(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}

// applyFilters keeps the rows passing every filter
func applyFilters(t *tabular.Table, filters []Filter) (*tabular.Table, error) {
	if len(filters) == 0 {
		return t, nil
	}
	preds := make([]func(int) bool, len(filters))
	for i, f := range filters {
		p, err := f.predicate(t)
		if err != nil {
			return nil, err
		}
		preds[i] = p
	}
	return t.Filter(func(row int) bool {
		for _, p := range preds {
			if !p(row) {
				return false
			}
		}
		return true
	}), nil
}
