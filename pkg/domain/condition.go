package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Condition is a boolean predicate gating the visibility of a tree node.
// Arbor only builds and composes conditions; evaluating them against live
// state is the host's job.
//
// The set of variants is closed: Literal, Function, And, Or and Not.
type Condition interface {
	fmt.Stringer
	condition()
}

// Literal is a constant condition.
type Literal struct {
	Value bool
}

// Function is an opaque predicate identified by name, evaluated later by the host.
type Function struct {
	Name   string
	Params map[string]string
}

// And is satisfied when every operand is satisfied.
type And struct {
	Operands []Condition
}

// Or is satisfied when at least one operand is satisfied.
type Or struct {
	Operands []Condition
}

// Not negates exactly one operand.
type Not struct {
	Operand Condition
}

func (Literal) condition()  {}
func (Function) condition() {}
func (And) condition()      {}
func (Or) condition()       {}
func (Not) condition()      {}

var (
	// True is the vacuously satisfied condition.
	True Condition = Literal{Value: true}
	// False hides everything it gates.
	False Condition = Literal{Value: false}
)

// NewAnd combines operands with a logical AND. At least one operand is required.
func NewAnd(operands ...Condition) (Condition, error) {
	if len(operands) == 0 {
		return nil, fmt.Errorf("%w: 'And' requires at least one operand", ErrInvalidCondition)
	}
	return And{Operands: operands}, nil
}

// NewOr combines operands with a logical OR. At least one operand is required.
func NewOr(operands ...Condition) (Condition, error) {
	if len(operands) == 0 {
		return nil, fmt.Errorf("%w: 'Or' requires at least one operand", ErrInvalidCondition)
	}
	return Or{Operands: operands}, nil
}

// NewNot negates a single operand. Any other operand count is an error.
func NewNot(operands ...Condition) (Condition, error) {
	if len(operands) != 1 {
		return nil, fmt.Errorf("%w: 'Not' condition can only have one parameter, got %d", ErrInvalidCondition, len(operands))
	}
	return Not{Operand: operands[0]}, nil
}

// Compose gates child under parent.
// The result is And(parent, child) when both are present, otherwise whichever
// one is present. A nil result means "always visible".
func Compose(parent, child Condition) Condition {
	switch {
	case parent != nil && child != nil:
		return And{Operands: []Condition{parent, child}}
	case parent != nil:
		return parent
	default:
		return child
	}
}

func (l Literal) String() string {
	return strconv.FormatBool(l.Value)
}

func (f Function) String() string {
	if len(f.Params) == 0 {
		return f.Name
	}
	keys := make([]string, 0, len(f.Params))
	for k := range f.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys) // Deterministic order
	args := make([]string, 0, len(keys))
	for _, k := range keys {
		args = append(args, fmt.Sprintf("%s=%q", k, f.Params[k]))
	}
	return fmt.Sprintf("%s(%s)", f.Name, strings.Join(args, ", "))
}

func (a And) String() string {
	return joinOperands(a.Operands, " and ")
}

func (o Or) String() string {
	return joinOperands(o.Operands, " or ")
}

func (n Not) String() string {
	if n.Operand == nil {
		return "not ()"
	}
	return "not " + wrap(n.Operand)
}

func joinOperands(ops []Condition, sep string) string {
	parts := make([]string, 0, len(ops))
	for _, op := range ops {
		parts = append(parts, wrap(op))
	}
	return strings.Join(parts, sep)
}

// wrap parenthesizes compound operands so String output stays unambiguous.
func wrap(c Condition) string {
	switch c.(type) {
	case And, Or:
		return "(" + c.String() + ")"
	default:
		return c.String()
	}
}

// FunctionNames lists, in first-seen order, the names of every Function
// predicate reachable from c. Hosts use it to index nodes by the predicates
// that can change their visibility.
func FunctionNames(c Condition) []string {
	var names []string
	seen := make(map[string]bool)
	var visit func(Condition)
	visit = func(c Condition) {
		switch v := c.(type) {
		case Function:
			if !seen[v.Name] {
				seen[v.Name] = true
				names = append(names, v.Name)
			}
		case And:
			for _, op := range v.Operands {
				visit(op)
			}
		case Or:
			for _, op := range v.Operands {
				visit(op)
			}
		case Not:
			visit(v.Operand)
		}
	}
	visit(c)
	return names
}
