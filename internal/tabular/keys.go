package tabular

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
)

// KeyFunc returns a function producing the canonical key tuple of a row over cols
func KeyFunc(t *Table, cols []string) (func(row int) string, error) {
	columns := make([][]any, len(cols))
	for i, name := range cols {
		values, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("key column %q not found", name)
		}
		columns[i] = values
	}
	return func(row int) string {
		if len(columns) == 1 {
			return keyText(columns[0][row])
		}
		// len:field for each field
		var b strings.Builder
		for _, col := range columns {
			part := keyText(col[row])
			b.WriteString(strconv.Itoa(len(part)))
			b.WriteByte(':')
			b.WriteString(part)
		}
		return b.String()
	}, nil
}

// KeyIndex is a set of key tuples bucketed by xxh3 hash
type KeyIndex struct {
	buckets map[uint64][]string
	size    int
}

// NewKeyIndex creates an empty index
func NewKeyIndex() *KeyIndex {
	return &KeyIndex{buckets: make(map[uint64][]string)}
}

// Add inserts key and reports whether it was new
func (k *KeyIndex) Add(key string) bool {
	h := xxh3.HashString(key)
	for _, existing := range k.buckets[h] {
		if existing == key {
			return false
		}
	}
	k.buckets[h] = append(k.buckets[h], key)
	k.size++
	return true
}

// Contains reports whether key is in the index
func (k *KeyIndex) Contains(key string) bool {
	for _, existing := range k.buckets[xxh3.HashString(key)] {
		if existing == key {
			return true
		}
	}
	return false
}

// Len returns the number of distinct keys
func (k *KeyIndex) Len() int { return k.size }

// BuildKeyIndex indexes every row of t over cols
func BuildKeyIndex(t *Table, cols []string) (*KeyIndex, error) {
	keyOf, err := KeyFunc(t, cols)
	if err != nil {
		return nil, err
	}
	idx := NewKeyIndex()
	for r := 0; r < t.NumRows(); r++ {
		idx.Add(keyOf(r))
	}
	return idx, nil
}

// DuplicateRows returns the rows whose key tuple already appeared in an earlier row
func DuplicateRows(t *Table, cols []string) ([]int, error) {
	keyOf, err := KeyFunc(t, cols)
	if err != nil {
		return nil, err
	}
	idx := NewKeyIndex()
	var dups []int
	for r := 0; r < t.NumRows(); r++ {
		if !idx.Add(keyOf(r)) {
			dups = append(dups, r)
		}
	}
	return dups, nil
}
