// Package decision applies the ordered eligibility gates and, on
// approval, derives pricing, approved amount, and EMI. Gate order is a
// contract: evaluation stops at the first failing gate, so a record
// failing several thresholds declines for the earliest reason only.
package decision

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/opensource-finance/merlin/internal/domain"
	"github.com/opensource-finance/merlin/internal/features"
)

const (
	baseRate        = 12.0
	minRate         = 8.0
	maxRate         = 20.0
	absoluteMaxLoan = 5000000.0
	minLoan         = 10000.0
	firstLoanCap    = 50000.0
)

// riskCaps limit the approved amount per risk level.
var riskCaps = map[string]float64{
	domain.RiskVeryLow:  5000000,
	domain.RiskLow:      2000000,
	domain.RiskMedium:   1000000,
	domain.RiskHigh:     500000,
	domain.RiskVeryHigh: 200000,
}

// Decide runs the gate sequence. creditScore is the composite score
// from the scoring stage; gate 6 inspects the bureau score on the
// feature vector instead, where 0 means "no bureau record".
func Decide(creditScore int, risk *domain.RiskReport, fv *domain.FeatureVector, policy domain.PolicyConfig) *domain.Decision {
	// Gate 1: composite score floor.
	if creditScore < policy.MinCreditScore {
		return declined("Credit score below the minimum threshold")
	}

	// Gate 2: debt burden.
	if fv.DTIRatio > policy.MaxDTI {
		return declined("Debt-to-income ratio exceeds the maximum allowed")
	}

	// Gate 3: default risk.
	if risk.ProbabilityOfDefault > policy.MaxPD {
		return declined("Estimated probability of default exceeds the risk appetite")
	}

	// Gate 4: repayment headroom.
	if fv.RepaymentCapacity < policy.MinRepaymentCapacity {
		return declined("Insufficient repayment capacity after existing obligations")
	}

	// Gate 5: marginal score with unstable income.
	if creditScore < 600 && fv.IncomeStability < 50 {
		return &domain.Decision{
			Recommendation: domain.RecommendationManualReview,
			Reasons:        []string{"Marginal credit score combined with unstable income"},
			Conditions:     []string{"Submit income and identity documentation for manual verification"},
		}
	}

	// Gate 6: thin file. No bureau score and no credit history routes
	// to review unless alternative signals are strong enough for a
	// capped first loan.
	if fv.BureauScore == 0 && fv.CreditHistoryMonths == 0 {
		if fv.DigitalScore >= 40 && fv.TrustScore >= 50 {
			return approve(creditScore, risk, fv, firstLoanCap,
				[]string{"First loan capped pending repayment track record"})
		}
		return &domain.Decision{
			Recommendation: domain.RecommendationManualReview,
			Reasons:        []string{"No credit history and insufficient alternative-data signals"},
			Conditions: []string{
				"First loan capped pending repayment track record",
				"Mandatory video KYC verification",
				"Enhanced income verification required",
			},
		}
	}

	// Gate 7: approve with risk-based conditions.
	var conditions []string
	switch risk.RiskLevel {
	case domain.RiskHigh, domain.RiskVeryHigh:
		conditions = append(conditions,
			"Fortnightly collection schedule applies",
			"Interest rate includes a risk premium")
	case domain.RiskMedium:
		conditions = append(conditions, "Quarterly account review applies")
	}
	if fv.LoanToIncomeRatio > 200 {
		conditions = append(conditions, "Income verification required before disbursal")
	}

	return approve(creditScore, risk, fv, absoluteMaxLoan, conditions)
}

func declined(reason string) *domain.Decision {
	return &domain.Decision{
		Recommendation: domain.RecommendationDeclined,
		Reasons:        []string{reason},
	}
}

func approve(creditScore int, risk *domain.RiskReport, fv *domain.FeatureVector, hardCap float64, conditions []string) *domain.Decision {
	rate := interestRate(creditScore, risk.RiskLevel)
	amount := approvedAmount(fv, risk.RiskLevel, hardCap)
	emi := features.EMI(amount, rate, fv.LoanTenure)

	return &domain.Decision{
		Recommendation: domain.RecommendationApproved,
		Reasons:        []string{"All eligibility criteria satisfied"},
		Conditions:     conditions,
		ApprovedAmount: amount,
		InterestRate:   rate,
		TenureMonths:   fv.LoanTenure,
		EMI:            emi,
	}
}

// interestRate prices from a 12% base, rewarded by composite score and
// loaded by risk level, clamped to [8,20].
func interestRate(creditScore int, riskLevel string) float64 {
	rate := baseRate

	switch {
	case creditScore >= 800:
		rate -= 2
	case creditScore >= 700:
		rate -= 1
	case creditScore >= 650:
		rate -= 0.5
	case creditScore < 550:
		rate += 2
	}

	switch riskLevel {
	case domain.RiskVeryLow:
		rate -= 0.5
	case domain.RiskMedium:
		rate += 1
	case domain.RiskHigh:
		rate += 2
	case domain.RiskVeryHigh:
		rate += 3
	}

	if rate < minRate {
		rate = minRate
	}
	if rate > maxRate {
		rate = maxRate
	}
	return rate
}

// approvedAmount takes the tightest of the requested amount, the
// risk-level cap, the DTI haircut, the affordability cap, and the
// absolute maximum, floored at the minimum ticket size.
func approvedAmount(fv *domain.FeatureVector, riskLevel string, hardCap float64) float64 {
	amount := math.Min(fv.LoanAmount, absoluteMaxLoan)
	amount = math.Min(amount, hardCap)

	if riskCap, ok := riskCaps[riskLevel]; ok {
		amount = math.Min(amount, riskCap)
	}

	if fv.DTIRatio > 50 {
		amount = math.Min(amount, 0.6*fv.LoanAmount)
	}

	affordability := fv.MonthlyIncome * (fv.RepaymentCapacity / 100) * 3
	if affordability > 0 {
		amount = math.Min(amount, affordability)
	}

	if amount < minLoan {
		amount = minLoan
	}

	rounded, _ := decimal.NewFromFloat(amount).Round(0).Float64()
	return rounded
}
