package domain_test

import (
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompose(t *testing.T) {
	parent := domain.Function{Name: "hasProject"}
	child := domain.Function{Name: "isDirty"}

	t.Run("Both Present", func(t *testing.T) {
		got := domain.Compose(parent, child)
		assert.Equal(t, domain.And{Operands: []domain.Condition{parent, child}}, got)
	})

	t.Run("Only Parent", func(t *testing.T) {
		assert.Equal(t, parent, domain.Compose(parent, nil))
	})

	t.Run("Only Child", func(t *testing.T) {
		assert.Equal(t, child, domain.Compose(nil, child))
	})

	t.Run("Neither", func(t *testing.T) {
		assert.Nil(t, domain.Compose(nil, nil))
	})
}

func TestConstructors(t *testing.T) {
	a := domain.Function{Name: "a"}
	b := domain.Function{Name: "b"}

	_, err := domain.NewAnd()
	assert.ErrorIs(t, err, domain.ErrInvalidCondition)

	_, err = domain.NewOr()
	assert.ErrorIs(t, err, domain.ErrInvalidCondition)

	_, err = domain.NewNot(a, b)
	assert.ErrorIs(t, err, domain.ErrInvalidCondition)

	_, err = domain.NewNot()
	assert.ErrorIs(t, err, domain.ErrInvalidCondition)

	not, err := domain.NewNot(a)
	require.NoError(t, err)
	assert.Equal(t, domain.Not{Operand: a}, not)

	or, err := domain.NewOr(a, b)
	require.NoError(t, err)
	assert.Equal(t, "a or b", or.String())
}

func TestCondition_String(t *testing.T) {
	cond := domain.And{Operands: []domain.Condition{
		domain.Function{Name: "os", Params: map[string]string{"value": "linux"}},
		domain.Not{Operand: domain.Or{Operands: []domain.Condition{
			domain.Function{Name: "a"},
			domain.True,
		}}},
	}}

	assert.Equal(t, `os(value="linux") and not (a or true)`, cond.String())
}

func TestFunctionNames(t *testing.T) {
	cond := domain.And{Operands: []domain.Condition{
		domain.Function{Name: "a"},
		domain.Not{Operand: domain.Function{Name: "b"}},
		domain.Or{Operands: []domain.Condition{domain.Function{Name: "a"}, domain.False}},
	}}

	assert.Equal(t, []string{"a", "b"}, domain.FunctionNames(cond))
	assert.Empty(t, domain.FunctionNames(nil))
}
