package condparse_test

import (
	"testing"

	"github.com/aretw0/arbor/internal/condparse"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  domain.Condition
	}{
		{
			name:  "Identifier",
			input: "hasFile",
			want:  domain.Function{Name: "hasFile"},
		},
		{
			name:  "Literal",
			input: "false",
			want:  domain.False,
		},
		{
			name:  "Negation",
			input: "not readOnly",
			want:  domain.Not{Operand: domain.Function{Name: "readOnly"}},
		},
		{
			name:  "Bang Negation",
			input: "!readOnly",
			want:  domain.Not{Operand: domain.Function{Name: "readOnly"}},
		},
		{
			name:  "Flattened And",
			input: "a and b && c",
			want: domain.And{Operands: []domain.Condition{
				domain.Function{Name: "a"},
				domain.Function{Name: "b"},
				domain.Function{Name: "c"},
			}},
		},
		{
			name:  "Precedence",
			input: "a or b and c",
			want: domain.Or{Operands: []domain.Condition{
				domain.Function{Name: "a"},
				domain.And{Operands: []domain.Condition{
					domain.Function{Name: "b"},
					domain.Function{Name: "c"},
				}},
			}},
		},
		{
			name:  "Call",
			input: `platform("linux", 2)`,
			want: domain.Function{Name: "platform", Params: map[string]string{
				"0": "linux",
				"1": "2",
			}},
		},
		{
			name:  "Comparison",
			input: `os == "darwin"`,
			want:  domain.Function{Name: "os", Params: map[string]string{"value": "darwin"}},
		},
		{
			name:  "Negated Comparison On Member",
			input: `env.mode != "debug"`,
			want: domain.Not{Operand: domain.Function{
				Name:   "env.mode",
				Params: map[string]string{"value": "debug"},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := condparse.Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	for _, input := range []string{"", "   ", "a and (", "1 + 2", "a > 3"} {
		t.Run(input, func(t *testing.T) {
			_, err := condparse.Parse(input)
			assert.ErrorIs(t, err, domain.ErrInvalidCondition)
		})
	}
}
