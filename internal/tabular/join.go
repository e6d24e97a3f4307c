package tabular

import "fmt"

// JoinType selects which unmatched rows a join keeps
type JoinType string

const (
	InnerJoin JoinType = "inner"
	LeftJoin  JoinType = "left"
	RightJoin JoinType = "right"
	OuterJoin JoinType = "outer"
)

// Suffixes appended to non-key columns present on both sides of a join
const (
	LeftSuffix  = "_x"
	RightSuffix = "_y"
)

// Join merges left and right on the key columns. The result has the left columns
// followed by the right non-key columns. Matches follow left row order, then right
// row order; right and outer joins append unmatched right rows at the end.
func Join(left, right *Table, on []string, how JoinType) (*Table, error) {
	if len(on) == 0 {
		return nil, fmt.Errorf("join requires at least one key column")
	}
	leftKey, err := KeyFunc(left, on)
	if err != nil {
		return nil, fmt.Errorf("left side: %w", err)
	}
	rightKey, err := KeyFunc(right, on)
	if err != nil {
		return nil, fmt.Errorf("right side: %w", err)
	}

	isKey := make(map[string]bool, len(on))
	for _, k := range on {
		isKey[k] = true
	}

	// Output column layout
	var names []string
	var rightCols []string
	for _, n := range left.names {
		if !isKey[n] && right.HasColumn(n) {
			names = append(names, n+LeftSuffix)
		} else {
			names = append(names, n)
		}
	}
	for _, n := range right.names {
		if isKey[n] {
			continue
		}
		rightCols = append(rightCols, n)
		if left.HasColumn(n) {
			names = append(names, n+RightSuffix)
		} else {
			names = append(names, n)
		}
	}

	buckets := make(map[string][]int, right.nrows)
	for r := 0; r < right.nrows; r++ {
		k := rightKey(r)
		buckets[k] = append(buckets[k], r)
	}

	// -1 marks a missing side
	var leftRows, rightRows []int
	matched := make([]bool, right.nrows)
	for l := 0; l < left.nrows; l++ {
		hits := buckets[leftKey(l)]
		if len(hits) == 0 {
			if how == LeftJoin || how == OuterJoin {
				leftRows = append(leftRows, l)
				rightRows = append(rightRows, -1)
			}
			continue
		}
		for _, r := range hits {
			matched[r] = true
			if how == RightJoin {
				continue
			}
			leftRows = append(leftRows, l)
			rightRows = append(rightRows, r)
		}
	}

	switch how {
	case InnerJoin, LeftJoin, OuterJoin:
	case RightJoin:
		// Right joins follow right row order
		leftRows, rightRows = nil, nil
		leftIndex := make(map[string][]int, left.nrows)
		for l := 0; l < left.nrows; l++ {
			k := leftKey(l)
			leftIndex[k] = append(leftIndex[k], l)
		}
		for r := 0; r < right.nrows; r++ {
			hits := leftIndex[rightKey(r)]
			if len(hits) == 0 {
				leftRows = append(leftRows, -1)
				rightRows = append(rightRows, r)
				continue
			}
			for _, l := range hits {
				leftRows = append(leftRows, l)
				rightRows = append(rightRows, r)
			}
		}
	default:
		return nil, fmt.Errorf("unknown join type %q", how)
	}

	if how == OuterJoin {
		for r := 0; r < right.nrows; r++ {
			if !matched[r] {
				leftRows = append(leftRows, -1)
				rightRows = append(rightRows, r)
			}
		}
	}

	out := New(names...)
	if len(out.names) != len(names) {
		return nil, fmt.Errorf("join produces duplicate columns: %v", names)
	}
	out.nrows = len(leftRows)
	for c, n := range left.names {
		src := left.data[c]
		var keySrc []any
		if isKey[n] {
			keySrc, _ = right.Column(n)
		}
		values := make([]any, out.nrows)
		for i, l := range leftRows {
			switch {
			case l >= 0:
				values[i] = src[l]
			case keySrc != nil:
				values[i] = keySrc[rightRows[i]]
			}
		}
		out.data[c] = values
	}
	for c, n := range rightCols {
		src, _ := right.Column(n)
		values := make([]any, out.nrows)
		for i, r := range rightRows {
			if r >= 0 {
				values[i] = src[r]
			}
		}
		out.data[len(left.names)+c] = values
	}
	return out, nil
}
