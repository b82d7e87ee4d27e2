package predictive

import (
	"math"
	"testing"

	"github.com/opensource-finance/merlin/internal/domain"
)

func TestAltDefaultProbabilityBand(t *testing.T) {
	for _, score := range []int{300, 500, 600, 750, 1000} {
		pd := altDefaultProbability(score)
		if pd < 0.1 || pd > 10 {
			t.Errorf("altDefaultProbability(%d) = %v, out of [0.1,10]", score, pd)
		}
	}

	// The curve is centered at 600: midpoint ≈ 5.05.
	if pd := altDefaultProbability(600); math.Abs(pd-5.05) > 0.01 {
		t.Errorf("altDefaultProbability(600) = %v, want 5.05", pd)
	}

	// Monotonically decreasing in score.
	if altDefaultProbability(800) >= altDefaultProbability(400) {
		t.Error("higher score must mean lower alternative PD")
	}
}

func TestLifetimeValueUsesApprovedAmount(t *testing.T) {
	fv := &domain.FeatureVector{LoanAmount: 200000, IncomeStability: 50, LoanTenure: 24}
	dec := &domain.Decision{Recommendation: domain.RecommendationApproved, ApprovedAmount: 100000}

	signals := Generate(fv, 700, dec)
	// 100000 × 1.5 × 2 × 0.04 = 12000
	if signals.CustomerLifetimeValue != 12000 {
		t.Errorf("CLV = %v, want 12000", signals.CustomerLifetimeValue)
	}
}

func TestLifetimeValueFallsBackToRequested(t *testing.T) {
	fv := &domain.FeatureVector{LoanAmount: 200000, IncomeStability: 50, LoanTenure: 12}
	dec := &domain.Decision{Recommendation: domain.RecommendationDeclined}

	signals := Generate(fv, 450, dec)
	// 200000 × 1.5 × 1 × 0.04 = 12000
	if signals.CustomerLifetimeValue != 12000 {
		t.Errorf("CLV = %v, want 12000", signals.CustomerLifetimeValue)
	}
}

func TestEarlyRepaymentClamps(t *testing.T) {
	signals := Generate(&domain.FeatureVector{SavingsRate: 90, RepaymentCapacity: 90}, 700, &domain.Decision{})
	if signals.EarlyRepaymentLikelihood != 100 {
		t.Errorf("likelihood = %v, want clamp at 100", signals.EarlyRepaymentLikelihood)
	}

	signals = Generate(&domain.FeatureVector{SavingsRate: 25, RepaymentCapacity: 50}, 700, &domain.Decision{})
	if signals.EarlyRepaymentLikelihood != 40 {
		t.Errorf("likelihood = %v, want 40", signals.EarlyRepaymentLikelihood)
	}
}
