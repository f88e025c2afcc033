// Package condparse turns inline condition expressions into domain conditions.
//
// The grammar is the boolean subset of expr-lang:
//
//	hasFile and not (readOnly or locked)
//	platform("linux") || os == "darwin"
//
// Identifiers and calls become Function predicates, comparisons against a
// literal become a Function with a "value" parameter.
package condparse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

// ValueParam is the parameter name used for comparison operands.
const ValueParam = "value"

// Parse parses an inline condition expression.
func Parse(input string) (domain.Condition, error) {
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("%w: empty expression", domain.ErrInvalidCondition)
	}
	tree, err := parser.Parse(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCondition, err)
	}
	return convert(tree.Node)
}

func convert(node ast.Node) (domain.Condition, error) {
	switch n := node.(type) {
	case *ast.BoolNode:
		return domain.Literal{Value: n.Value}, nil

	case *ast.IdentifierNode:
		return domain.Function{Name: n.Value}, nil

	case *ast.MemberNode:
		name, err := dottedName(n)
		if err != nil {
			return nil, err
		}
		return domain.Function{Name: name}, nil

	case *ast.CallNode:
		return convertCall(n)

	case *ast.UnaryNode:
		switch n.Operator {
		case "not", "!":
			operand, err := convert(n.Node)
			if err != nil {
				return nil, err
			}
			return domain.Not{Operand: operand}, nil
		}
		return nil, fmt.Errorf("%w: unsupported operator %q", domain.ErrInvalidCondition, n.Operator)

	case *ast.BinaryNode:
		return convertBinary(n)
	}
	return nil, fmt.Errorf("%w: unsupported expression %q", domain.ErrInvalidCondition, node.String())
}

func convertBinary(n *ast.BinaryNode) (domain.Condition, error) {
	switch n.Operator {
	case "and", "&&", "or", "||":
		left, err := convert(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := convert(n.Right)
		if err != nil {
			return nil, err
		}
		if n.Operator == "and" || n.Operator == "&&" {
			return flatten(domain.And{}, left, right), nil
		}
		return flatten(domain.Or{}, left, right), nil

	case "==", "!=":
		name, err := predicateName(n.Left)
		if err != nil {
			return nil, err
		}
		value, err := literal(n.Right)
		if err != nil {
			return nil, err
		}
		var cond domain.Condition = domain.Function{Name: name, Params: map[string]string{ValueParam: value}}
		if n.Operator == "!=" {
			cond = domain.Not{Operand: cond}
		}
		return cond, nil
	}
	return nil, fmt.Errorf("%w: unsupported operator %q", domain.ErrInvalidCondition, n.Operator)
}

// flatten merges nested operands of the same combinator: a and b and c is
// parsed as (a and b) and c, but reads as one And with three operands.
func flatten(kind domain.Condition, left, right domain.Condition) domain.Condition {
	var ops []domain.Condition
	for _, c := range []domain.Condition{left, right} {
		switch v := c.(type) {
		case domain.And:
			if _, ok := kind.(domain.And); ok {
				ops = append(ops, v.Operands...)
				continue
			}
		case domain.Or:
			if _, ok := kind.(domain.Or); ok {
				ops = append(ops, v.Operands...)
				continue
			}
		}
		ops = append(ops, c)
	}
	if _, ok := kind.(domain.And); ok {
		return domain.And{Operands: ops}
	}
	return domain.Or{Operands: ops}
}

func convertCall(n *ast.CallNode) (domain.Condition, error) {
	name, err := predicateName(n.Callee)
	if err != nil {
		return nil, err
	}
	fn := domain.Function{Name: name}
	if len(n.Arguments) > 0 {
		fn.Params = make(map[string]string, len(n.Arguments))
		for i, arg := range n.Arguments {
			v, err := literal(arg)
			if err != nil {
				return nil, err
			}
			fn.Params[strconv.Itoa(i)] = v
		}
	}
	return fn, nil
}

func predicateName(node ast.Node) (string, error) {
	switch n := node.(type) {
	case *ast.IdentifierNode:
		return n.Value, nil
	case *ast.MemberNode:
		return dottedName(n)
	}
	return "", fmt.Errorf("%w: expected a predicate name, got %q", domain.ErrInvalidCondition, node.String())
}

func dottedName(n *ast.MemberNode) (string, error) {
	base, err := predicateName(n.Node)
	if err != nil {
		return "", err
	}
	prop, ok := n.Property.(*ast.StringNode)
	if !ok {
		return "", fmt.Errorf("%w: unsupported member access %q", domain.ErrInvalidCondition, n.String())
	}
	return base + "." + prop.Value, nil
}

func literal(node ast.Node) (string, error) {
	switch n := node.(type) {
	case *ast.StringNode:
		return n.Value, nil
	case *ast.IntegerNode:
		return strconv.Itoa(n.Value), nil
	case *ast.FloatNode:
		return strconv.FormatFloat(n.Value, 'f', -1, 64), nil
	case *ast.BoolNode:
		return strconv.FormatBool(n.Value), nil
	case *ast.IdentifierNode:
		return n.Value, nil
	}
	return "", fmt.Errorf("%w: expected a literal, got %q", domain.ErrInvalidCondition, node.String())
}
