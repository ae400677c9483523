package sandbox

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/securebank/txwatch/internal/domain"
)

// DefaultAmountThreshold is the amount at or above which a transfer is held
// for analyst review.
var DefaultAmountThreshold = decimal.NewFromInt(1500)

const ViolationAmountThreshold = "AMOUNT_THRESHOLD"

var ErrNonPositiveAmount = errors.New("amount must be positive")

var hundred = decimal.NewFromInt(100)

// Scorer applies the amount rule. The risk score grows linearly with the
// amount, reaching 50 at the threshold and capping at 100.
type Scorer struct {
	Threshold decimal.Decimal
}

func (s Scorer) threshold() decimal.Decimal {
	if s.Threshold.IsPositive() {
		return s.Threshold
	}
	return DefaultAmountThreshold
}

func (s Scorer) Score(amount decimal.Decimal) (domain.Verdict, error) {
	if !amount.IsPositive() {
		return domain.Verdict{}, ErrNonPositiveAmount
	}

	limit := s.threshold()
	score := amount.Mul(decimal.NewFromInt(50)).Div(limit).Floor()
	if score.GreaterThan(hundred) {
		score = hundred
	}

	v := domain.Verdict{
		Status:     domain.StatusApproved,
		RiskScore:  int(score.IntPart()),
		Violations: []string{},
	}
	if amount.GreaterThanOrEqual(limit) {
		v.Status = domain.StatusSuspicious
		v.Violations = append(v.Violations, ViolationAmountThreshold)
	}
	return v, nil
}
