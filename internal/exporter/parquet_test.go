package exporter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "dfolks/internal/errors"
	"dfolks/internal/tabular"
)

func TestCompressionOption(t *testing.T) {
	for _, name := range append(CompressionCodecs, "", "SNAPPY", "uncompressed") {
		t.Run("codec "+name, func(t *testing.T) {
			opt, err := CompressionOption(name)
			require.NoError(t, err)
			assert.NotNil(t, opt)
		})
	}

	_, err := CompressionOption("lzo")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParameterValidation))
}

func TestParquetWriter_SingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "prices.parquet")
	writer := NewParquetWriter(testLogger())

	for _, codec := range CompressionCodecs {
		require.NoError(t, writer.WriteTable(path, sampleTable(), ParquetOptions{Compression: codec}), codec)
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.False(t, info.IsDir())
		assert.Greater(t, info.Size(), int64(0))
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestParquetWriter_Partitioned(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices")
	table := tabular.MustFromColumns(
		tabular.NewColumn("code", "A", "B", "A", nil),
		tabular.NewColumn("price", 1.0, 2.0, 3.0, 4.0),
	)
	writer := NewParquetWriter(testLogger())

	require.NoError(t, writer.WriteTable(path, table, ParquetOptions{PartitionCols: []string{"code"}}))

	for _, segment := range []string{"code=A", "code=B", "code=" + NullPartition} {
		_, err := os.Stat(filepath.Join(path, segment, PartFileName))
		assert.NoError(t, err, segment)
	}

	// A rewrite replaces the whole directory
	smaller := tabular.MustFromColumns(
		tabular.NewColumn("code", "C"),
		tabular.NewColumn("price", 5.0),
	)
	require.NoError(t, writer.WriteTable(path, smaller, ParquetOptions{PartitionCols: []string{"code"}}))
	entries, err := os.ReadDir(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "code=C", entries[0].Name())
}

func TestParquetWriter_Errors(t *testing.T) {
	dir := t.TempDir()
	writer := NewParquetWriter(testLogger())
	table := tabular.MustFromColumns(tabular.NewColumn("code", "A"))

	tests := []struct {
		name    string
		table   *tabular.Table
		options ParquetOptions
		errType apperrors.ErrorType
	}{
		{name: "no columns", table: tabular.New(), errType: apperrors.ErrTypeStorage},
		{name: "bad codec", table: table, options: ParquetOptions{Compression: "lzo"}, errType: apperrors.ErrTypeParameterValidation},
		{name: "unknown partition", table: table, options: ParquetOptions{PartitionCols: []string{"x"}}, errType: apperrors.ErrTypeConfig},
		{name: "partition covers all", table: table, options: ParquetOptions{PartitionCols: []string{"code"}}, errType: apperrors.ErrTypeConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".parquet")
			err := writer.WriteTable(path, tt.table, tt.options)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, tt.errType), err.Error())
			_, statErr := os.Stat(path)
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}
