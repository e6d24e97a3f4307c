package chain_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dfolks/internal/chain"
	"dfolks/internal/component"
	apperrors "dfolks/internal/errors"
	"dfolks/internal/registry"
	"dfolks/internal/resolver"
	"dfolks/internal/tabular"
)

// appender writes its kind into the "log" column of every row
type appender struct {
	kind string
	Tag  string `yaml:"tag"`
}

func (a *appender) Kind() string              { return a.kind }
func (a *appender) Variables() map[string]any { return map[string]any{"tag": a.Tag} }

func (a *appender) Transform(_ context.Context, t *tabular.Table) (*tabular.Table, error) {
	values, _ := t.Column("log")
	out := make([]any, len(values))
	for i, v := range values {
		s, _ := v.(string)
		if s != "" {
			s += ","
		}
		out[i] = s + a.kind
	}
	return t.SetColumn("log", out)
}

// counter records the order of its lifecycle calls
type counter struct {
	calls []string
}

func (c *counter) Kind() string              { return "Counter" }
func (c *counter) Variables() map[string]any { return map[string]any{} }

func (c *counter) Fit(context.Context, *tabular.Table) error {
	c.calls = append(c.calls, "fit")
	return nil
}

func (c *counter) Transform(_ context.Context, t *tabular.Table) (*tabular.Table, error) {
	c.calls = append(c.calls, "transform")
	return t, nil
}

// inert exposes neither Transform nor Fit
type inert struct{}

func (inert) Kind() string              { return "Inert" }
func (inert) Variables() map[string]any { return nil }

type failing struct{}

func (failing) Kind() string              { return "Failing" }
func (failing) Variables() map[string]any { return nil }
func (failing) Transform(context.Context, *tabular.Table) (*tabular.Table, error) {
	return nil, errors.New("boom")
}

func newProcessor(t *testing.T) *chain.Processor {
	t.Helper()
	reg := registry.New(registry.Options{})
	for _, kind := range []string{"A", "B", "C"} {
		kind := kind
		require.NoError(t, reg.Register(registry.Plain, kind, func() component.Component { return &appender{kind: kind} }))
	}
	require.NoError(t, reg.Register(registry.Transformer, "Counter", func() component.Component { return &counter{} }))
	require.NoError(t, reg.Register(registry.Plain, "Inert", func() component.Component { return inert{} }))
	require.NoError(t, reg.Register(registry.Plain, "Failing", func() component.Component { return failing{} }))
	reg.Freeze()

	r := resolver.New(reg, component.DefaultRuntime())
	return chain.NewProcessor(r.Runtime())
}

func input() *tabular.Table {
	return tabular.MustFromColumns(
		tabular.NewColumn("id", int64(1), int64(2)),
		tabular.NewColumn("log", "", ""),
	)
}

func kinds(order ...string) []any {
	out := make([]any, len(order))
	for i, k := range order {
		out[i] = map[string]any{"kind": k}
	}
	return out
}

func TestCreate(t *testing.T) {
	c, err := chain.Create(kinds("A", "B"))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	_, err = chain.Create([]any{map[string]any{"kind": "A"}, "kind: B"})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeInvalidChainElement))
	assert.Contains(t, err.Error(), "element 1")

	_, err = chain.Create([]any{42})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeInvalidChainElement))

	empty, err := chain.Create(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
}

func TestExecuteOrdering(t *testing.T) {
	p := newProcessor(t)

	orders := [][]string{
		{"A", "B", "C"}, {"A", "C", "B"}, {"B", "A", "C"},
		{"B", "C", "A"}, {"C", "A", "B"}, {"C", "B", "A"},
	}

	for _, order := range orders {
		t.Run(strings.Join(order, ""), func(t *testing.T) {
			c, err := chain.Create(kinds(order...))
			require.NoError(t, err)

			in := input()
			instances, out, err := p.Execute(context.Background(), c, in)
			require.NoError(t, err)

			assert.Len(t, instances, 3)
			want := strings.Join(order, ",")
			assert.Equal(t, want, out.Value(0, "log"))
			assert.Equal(t, want, out.Value(1, "log"))
			assert.Equal(t, "", in.Value(0, "log"))
		})
	}
}

func TestExecuteCapabilityDispatch(t *testing.T) {
	p := newProcessor(t)

	c, err := chain.Create(kinds("Counter", "A"))
	require.NoError(t, err)

	instances, _, err := p.Execute(context.Background(), c, input())
	require.NoError(t, err)

	ctr, ok := instances["Counter"].(*counter)
	require.True(t, ok)
	assert.Equal(t, []string{"fit", "transform"}, ctr.calls)

	_, isFittable := instances["A"].(component.Fittable)
	assert.False(t, isFittable)
}

func TestExecuteDuplicateKindKeepsLast(t *testing.T) {
	p := newProcessor(t)

	c, err := chain.Create([]any{
		map[string]any{"kind": "A", "tag": "first"},
		map[string]any{"kind": "B"},
		map[string]any{"kind": "A", "tag": "second"},
	})
	require.NoError(t, err)

	instances, out, err := p.Execute(context.Background(), c, input())
	require.NoError(t, err)

	assert.Len(t, instances, 2)
	assert.Equal(t, "second", instances["A"].Variables()["tag"])
	assert.Equal(t, "A,B,A", out.Value(0, "log"))
}

func TestExecuteFailures(t *testing.T) {
	p := newProcessor(t)

	tests := []struct {
		name    string
		steps   []any
		errType apperrors.ErrorType
		contain string
	}{
		{name: "unsupported component", steps: kinds("A", "Inert"), errType: apperrors.ErrTypeUnsupportedComponent, contain: "chain step 1 (Inert)"},
		{name: "unknown kind", steps: kinds("Missing"), errType: apperrors.ErrTypeUnknownDiscriminator},
		{name: "missing kind", steps: []any{map[string]any{"tag": "x"}}, errType: apperrors.ErrTypeMissingDiscriminator},
		{name: "step error", steps: kinds("Failing", "A"), contain: "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := chain.Create(tt.steps)
			require.NoError(t, err)

			instances, out, err := p.Execute(context.Background(), c, input())
			require.Error(t, err)
			assert.Nil(t, instances)
			assert.Nil(t, out)
			if tt.errType != "" {
				assert.True(t, apperrors.IsType(err, tt.errType), err.Error())
			}
			if tt.contain != "" {
				assert.Contains(t, err.Error(), tt.contain)
			}
		})
	}
}

func TestExecuteEmptyChain(t *testing.T) {
	p := newProcessor(t)
	c, err := chain.Create(nil)
	require.NoError(t, err)

	in := input()
	instances, out, err := p.Execute(context.Background(), c, in)
	require.NoError(t, err)
	assert.Empty(t, instances)
	assert.Same(t, in, out)
}

func TestExecuteWithoutResolver(t *testing.T) {
	p := chain.NewProcessor(component.DefaultRuntime())
	c, err := chain.Create(kinds("A"))
	require.NoError(t, err)

	_, _, err = p.Execute(context.Background(), c, input())
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}
