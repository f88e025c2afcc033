package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/arbor/internal/condparse"
	"github.com/aretw0/arbor/pkg/domain"
)

// BuildComplex interprets one element of a ComplexCondition block.
// Malformed elements are reported and yield Literal(false): the subtree they
// gate becomes hidden, never unconditionally visible.
func (e *Engine) BuildComplex(ctx context.Context, elem *domain.NodeDescription, moduleID string) domain.Condition {
	switch elem.NodeName {
	case domain.NodeNameOr, domain.NodeNameAnd, domain.NodeNameNot:
		ops := make([]domain.Condition, 0, len(elem.Children))
		for i := range elem.Children {
			ops = append(ops, e.BuildComplex(ctx, &elem.Children[i], moduleID))
		}

		if elem.NodeName == domain.NodeNameNot {
			cond, err := domain.NewNot(ops...)
			if err != nil {
				e.report(ctx, fmt.Sprintf("Invalid complex condition element '%s'. 'Not' condition can only have one parameter.", elem.NodeName), moduleID, err, false)
				return domain.False
			}
			return cond
		}

		switch len(ops) {
		case 0:
			return domain.True
		case 1:
			return ops[0]
		}
		if elem.NodeName == domain.NodeNameOr {
			return domain.Or{Operands: ops}
		}
		return domain.And{Operands: ops}

	case domain.NodeNameCondition:
		return functionCondition(elem)
	}

	e.report(ctx, fmt.Sprintf("Invalid complex condition element '%s'.", elem.NodeName), moduleID, domain.ErrInvalidCondition, false)
	return domain.False
}

// elementCondition computes the predicate of a Condition element: a parsed
// expression for the literal-expression kind, an opaque function otherwise.
func (e *Engine) elementCondition(ctx context.Context, elem *domain.NodeDescription, moduleID string) domain.Condition {
	if elem.ID == domain.ExpressionConditionID {
		return e.parseExpression(ctx, elem.Attribute(domain.ExpressionAttribute), moduleID)
	}
	return functionCondition(elem)
}

// parseExpression parses an inline expression, failing closed.
func (e *Engine) parseExpression(ctx context.Context, expr, moduleID string) domain.Condition {
	cond, err := condparse.Parse(expr)
	if err != nil {
		e.report(ctx, fmt.Sprintf("Invalid condition expression '%s'.", expr), moduleID, err, false)
		return domain.False
	}
	return cond
}

func functionCondition(elem *domain.NodeDescription) domain.Condition {
	fn := domain.Function{Name: elem.ID}
	if len(elem.Attributes) > 0 {
		fn.Params = make(map[string]string, len(elem.Attributes))
		for k, v := range elem.Attributes {
			fn.Params[k] = v
		}
	}
	return fn
}
