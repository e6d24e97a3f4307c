package tabular

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyFuncTreatsNumericFormsAlike(t *testing.T) {
	a := MustFromColumns(NewColumn("id", 1), NewColumn("code", "7203"))
	b := MustFromColumns(NewColumn("id", 1.0), NewColumn("code", "7203"))

	keyA, err := KeyFunc(a, []string{"id", "code"})
	require.NoError(t, err)
	keyB, err := KeyFunc(b, []string{"id", "code"})
	require.NoError(t, err)

	assert.Equal(t, keyA(0), keyB(0))

	_, err = KeyFunc(a, []string{"missing"})
	assert.Error(t, err)
}

func TestKeyIndex(t *testing.T) {
	idx := NewKeyIndex()
	assert.True(t, idx.Add("a"))
	assert.False(t, idx.Add("a"))
	assert.True(t, idx.Add("b"))
	assert.True(t, idx.Contains("b"))
	assert.False(t, idx.Contains("c"))
	assert.Equal(t, 2, idx.Len())
}

func TestDuplicateRows(t *testing.T) {
	tbl := MustFromColumns(
		NewColumn("id", 1, 2, 1, 3, 2),
		NewColumn("date", "d1", "d1", "d1", "d1", "d2"),
	)

	dups, err := DuplicateRows(tbl, []string{"id"})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, dups)

	dups, err = DuplicateRows(tbl, []string{"id", "date"})
	require.NoError(t, err)
	assert.Equal(t, []int{2}, dups)
}

func TestNullKeysDifferFromEmptyString(t *testing.T) {
	tbl := MustFromColumns(NewColumn("k", nil, ""))
	dups, err := DuplicateRows(tbl, []string{"k"})
	require.NoError(t, err)
	assert.Empty(t, dups)
}

func TestCompositeKeysKeepFieldBoundaries(t *testing.T) {
	tbl := MustFromColumns(
		NewColumn("a", "a\x1fb", "a", "a:1"),
		NewColumn("b", "c", "b\x1fc", "x"),
	)
	dups, err := DuplicateRows(tbl, []string{"a", "b"})
	require.NoError(t, err)
	assert.Empty(t, dups)

	keyOf, err := KeyFunc(tbl, []string{"a", "b"})
	require.NoError(t, err)
	assert.NotEqual(t, keyOf(0), keyOf(1))
}
