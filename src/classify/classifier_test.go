package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResultValid(t *testing.T) {
	raw := `{"is_deductible": true, "deduction_score": 0.92, "deduction_percent": 100, "deductible_reason": "ordinary business supply"}`

	res, err := ParseResult([]byte(raw))

	require.NoError(t, err)
	assert.True(t, res.IsDeductible)
	assert.Equal(t, 0.92, res.DeductionScore)
	assert.Equal(t, 100.0, res.DeductionPercent)
	assert.Equal(t, "ordinary business supply", res.DeductibleReason)
}

func TestParseResultTrimsReason(t *testing.T) {
	raw := `{"is_deductible": false, "deduction_score": 0.8, "deduction_percent": 0, "deductible_reason": "  personal expense  "}`

	res, err := ParseResult([]byte(raw))

	require.NoError(t, err)
	assert.Equal(t, "personal expense", res.DeductibleReason)
}

func TestParseResultRejectsMalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `the transaction is deductible`},
		{"json array", `[1, 2, 3]`},
		{"missing is_deductible", `{"deduction_score": 0.9, "deduction_percent": 100, "deductible_reason": "x"}`},
		{"is_deductible wrong type", `{"is_deductible": "yes", "deduction_score": 0.9, "deduction_percent": 100, "deductible_reason": "x"}`},
		{"missing score", `{"is_deductible": true, "deduction_percent": 100, "deductible_reason": "x"}`},
		{"score above one", `{"is_deductible": true, "deduction_score": 1.2, "deduction_percent": 100, "deductible_reason": "x"}`},
		{"score negative", `{"is_deductible": true, "deduction_score": -0.1, "deduction_percent": 100, "deductible_reason": "x"}`},
		{"score wrong type", `{"is_deductible": true, "deduction_score": "high", "deduction_percent": 100, "deductible_reason": "x"}`},
		{"percent above hundred", `{"is_deductible": true, "deduction_score": 0.9, "deduction_percent": 150, "deductible_reason": "x"}`},
		{"percent negative", `{"is_deductible": true, "deduction_score": 0.9, "deduction_percent": -5, "deductible_reason": "x"}`},
		{"missing reason", `{"is_deductible": true, "deduction_score": 0.9, "deduction_percent": 100}`},
		{"empty reason", `{"is_deductible": true, "deduction_score": 0.9, "deduction_percent": 100, "deductible_reason": ""}`},
		{"whitespace reason", `{"is_deductible": true, "deduction_score": 0.9, "deduction_percent": 100, "deductible_reason": "   "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ParseResult([]byte(tt.raw))
			assert.Nil(t, res)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}
