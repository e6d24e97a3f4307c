package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "dfolks/internal/errors"
	"dfolks/internal/registry"
)

func TestNewRegistry(t *testing.T) {
	reg, err := NewRegistry(registry.Options{})
	require.NoError(t, err)

	assert.True(t, reg.Frozen())
	assert.Equal(t, len(Entries), reg.Count())
	assert.Equal(t, []string{"StandardScalerTransformer"}, reg.Kinds(registry.Transformer))
	assert.Equal(t, []string{"DataIngestion", "DataExtractor"}, reg.Kinds(registry.Workflow))

	for _, e := range Entries {
		ns, factory, err := reg.Lookup(e.Kind)
		require.NoError(t, err, e.Kind)
		assert.Equal(t, e.Namespace, ns)
		assert.Equal(t, e.Kind, factory().Kind())
	}
}

func TestRegisterTwice(t *testing.T) {
	reg := registry.New(registry.Options{})
	require.NoError(t, Register(reg))

	err := Register(reg)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeDuplicateRegistration))

	lenient := registry.New(registry.Options{AllowOverwrite: true})
	require.NoError(t, Register(lenient))
	require.NoError(t, Register(lenient))
	assert.Equal(t, len(Entries), lenient.Count())
}
