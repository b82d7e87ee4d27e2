// Package predictive produces advisory portfolio signals. Output is
// recorded on the evaluation for reporting and never feeds the
// decision or compliance stages.
package predictive

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/opensource-finance/merlin/internal/domain"
)

const annualMargin = 0.04

// Generate computes the advisory signals from the feature vector, the
// composite score, and the decided loan terms. When no amount was
// approved the requested amount is used.
func Generate(fv *domain.FeatureVector, creditScore int, dec *domain.Decision) *domain.PredictiveSignals {
	amount := dec.ApprovedAmount
	if amount == 0 {
		amount = fv.LoanAmount
	}

	return &domain.PredictiveSignals{
		AltDefaultProbability:    altDefaultProbability(creditScore),
		CustomerLifetimeValue:    lifetimeValue(amount, fv.IncomeStability, fv.LoanTenure),
		EarlyRepaymentLikelihood: earlyRepayment(fv),
	}
}

// altDefaultProbability maps the composite score through a logistic
// curve centered at 600 into the [0.1,10] percent band.
func altDefaultProbability(creditScore int) float64 {
	logistic := 1 / (1 + math.Exp(-(600-float64(creditScore))/120))
	pd := 0.1 + logistic*(10-0.1)
	return math.Round(pd*100) / 100
}

func lifetimeValue(amount, incomeStability float64, tenureMonths int) float64 {
	clv := amount * (1 + incomeStability/100) * (float64(tenureMonths) / 12) * annualMargin
	rounded, _ := decimal.NewFromFloat(clv).Round(0).Float64()
	return rounded
}

func earlyRepayment(fv *domain.FeatureVector) float64 {
	likelihood := fv.SavingsRate*0.8 + fv.RepaymentCapacity*0.4
	if likelihood < 0 {
		return 0
	}
	if likelihood > 100 {
		return 100
	}
	return likelihood
}
