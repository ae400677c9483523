package sandbox

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securebank/txwatch/internal/domain"
)

func TestScorer_Score(t *testing.T) {
	tests := []struct {
		name       string
		amount     string
		status     domain.Status
		score      int
		violations []string
	}{
		{"small transfer", "100", domain.StatusApproved, 3, []string{}},
		{"just below threshold", "1499.99", domain.StatusApproved, 49, []string{}},
		{"at threshold", "1500", domain.StatusSuspicious, 50, []string{ViolationAmountThreshold}},
		{"double threshold", "3000", domain.StatusSuspicious, 100, []string{ViolationAmountThreshold}},
		{"score caps at 100", "90000", domain.StatusSuspicious, 100, []string{ViolationAmountThreshold}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Scorer{}.Score(decimal.RequireFromString(tt.amount))
			require.NoError(t, err)
			assert.Equal(t, tt.status, v.Status)
			assert.Equal(t, tt.score, v.RiskScore)
			assert.Equal(t, tt.violations, v.Violations)
		})
	}
}

func TestScorer_NonPositive(t *testing.T) {
	for _, amount := range []string{"0", "-5"} {
		_, err := Scorer{}.Score(decimal.RequireFromString(amount))
		assert.ErrorIs(t, err, ErrNonPositiveAmount, amount)
	}
}

func TestScorer_CustomThreshold(t *testing.T) {
	s := Scorer{Threshold: decimal.NewFromInt(100)}

	v, err := s.Score(decimal.NewFromInt(99))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, v.Status)

	v, err = s.Score(decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuspicious, v.Status)
}
