// Package risk computes default-risk quantities (PD, LGD, EAD,
// expected loss) and the categorical risk level for an application.
package risk

import (
	"math"

	"github.com/opensource-finance/merlin/internal/domain"
)

const (
	minPD = 0.1
	maxPD = 10.0
)

// segmentProfile is the baseline risk for a borrower segment.
type segmentProfile struct {
	BasePD     float64
	Volatility string
}

// segmentTable holds baseline PD and income volatility per segment.
// Externalized as data so policy tuning never touches the assessor.
var segmentTable = map[string]segmentProfile{
	domain.SegmentFarmer:            {BasePD: 1.8, Volatility: "high"},
	domain.SegmentWomanEntrepreneur: {BasePD: 1.2, Volatility: "low"},
	domain.SegmentSalaried:          {BasePD: 0.8, Volatility: "low"},
	domain.SegmentSelfEmployed:      {BasePD: 1.5, Volatility: "medium"},
	domain.SegmentSmallBusiness:     {BasePD: 1.6, Volatility: "medium"},
}

var defaultSegmentProfile = segmentProfile{BasePD: 1.5, Volatility: "medium"}

// riskFactorRules are independent checks; each match adds one factor.
var riskFactorRules = []struct {
	check    func(fv *domain.FeatureVector) bool
	factor   string
	severity string
}{
	{func(fv *domain.FeatureVector) bool { return fv.DTIRatio > 40 },
		"High debt-to-income ratio", domain.SeverityHigh},
	{func(fv *domain.FeatureVector) bool { return !fv.HasBureauScore() },
		"No formal credit bureau history", domain.SeverityMedium},
	{func(fv *domain.FeatureVector) bool { return fv.BounceEvents > 0 },
		"Payment bounce events on record", domain.SeverityHigh},
	{func(fv *domain.FeatureVector) bool { return fv.RepaymentCapacity < 30 },
		"Limited repayment capacity", domain.SeverityHigh},
	{func(fv *domain.FeatureVector) bool { return fv.IncomeStability < 50 },
		"Unstable income pattern", domain.SeverityMedium},
	{func(fv *domain.FeatureVector) bool { return fv.LoanToIncomeRatio > 200 },
		"Loan amount high relative to annual income", domain.SeverityMedium},
}

// Assess produces the risk report. The composite credit score is
// re-passed from the scoring stage, never re-derived here.
func Assess(fv *domain.FeatureVector, creditScore int, segment string, loanAmount float64) *domain.RiskReport {
	pd := probabilityOfDefault(fv, creditScore)
	lgd := lossGivenDefault(fv.CollateralCoverage)
	ead := loanAmount
	el := (pd / 100) * lgd * ead
	level := riskLevel(pd, fv.DTIRatio)

	return &domain.RiskReport{
		ProbabilityOfDefault: pd,
		LossGivenDefault:     lgd,
		ExposureAtDefault:    ead,
		ExpectedLoss:         el,
		RiskLevel:            level,
		RiskScore:            riskScore(pd, fv),
		SegmentRisk:          segmentRisk(segment, loanAmount),
		RiskFactors:          riskFactors(fv),
		MitigationStrategies: mitigations(fv, level),
	}
}

func probabilityOfDefault(fv *domain.FeatureVector, creditScore int) float64 {
	pd := 0.5
	pd -= 0.4 * float64(creditScore) / 1000

	switch {
	case fv.DTIRatio > 50:
		pd += 0.3
	case fv.DTIRatio > 35:
		pd += 0.15
	case fv.DTIRatio < 20:
		pd -= 0.1
	}

	pd -= 0.2 * fv.RepaymentCapacity / 100
	pd -= 0.15 * fv.IncomeStability / 100
	pd += 0.2 * float64(fv.BounceEvents)

	switch {
	case fv.TransactionFrequency >= 30:
		pd -= 0.1
	case fv.TransactionFrequency >= 15:
		pd -= 0.05
	}

	if pd < minPD {
		pd = minPD
	}
	if pd > maxPD {
		pd = maxPD
	}
	return pd
}

// lossGivenDefault steps down with collateral coverage, from fully
// uncollateralized (0.65) to fully covered (0.10).
func lossGivenDefault(coverage float64) float64 {
	switch {
	case coverage >= 1.0:
		return 0.10
	case coverage >= 0.75:
		return 0.25
	case coverage >= 0.50:
		return 0.35
	case coverage >= 0.25:
		return 0.50
	default:
		return 0.65
	}
}

// riskLevel is a joint threshold on PD and DTI, strictly ordered,
// first match wins.
func riskLevel(pd, dti float64) string {
	switch {
	case pd < 0.5 && dti < 30:
		return domain.RiskVeryLow
	case pd < 1.0 && dti < 40:
		return domain.RiskLow
	case pd < 2.0 && dti < 50:
		return domain.RiskMedium
	case pd < 4.0:
		return domain.RiskHigh
	default:
		return domain.RiskVeryHigh
	}
}

func riskScore(pd float64, fv *domain.FeatureVector) float64 {
	score := 50.0
	score -= math.Min(40, 4*pd)
	score -= math.Min(20, 0.5*math.Max(0, fv.DTIRatio-30))
	score += math.Min(15, 0.15*fv.RepaymentCapacity)
	score += math.Min(10, 0.10*fv.IncomeStability)

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

func segmentRisk(segment string, loanAmount float64) domain.SegmentRisk {
	profile, ok := segmentTable[segment]
	if !ok {
		profile = defaultSegmentProfile
	}

	basePD := profile.BasePD
	switch {
	case loanAmount >= 1000000:
		basePD += 0.2
	case loanAmount >= 500000:
		basePD += 0.1
	case loanAmount < 100000:
		basePD -= 0.1
	}

	return domain.SegmentRisk{
		Segment:    segment,
		BasePD:     basePD,
		Volatility: profile.Volatility,
	}
}

func riskFactors(fv *domain.FeatureVector) []domain.RiskFactor {
	var factors []domain.RiskFactor
	for _, rule := range riskFactorRules {
		if rule.check(fv) {
			factors = append(factors, domain.RiskFactor{Factor: rule.factor, Severity: rule.severity})
		}
	}
	return factors
}

func mitigations(fv *domain.FeatureVector, level string) []string {
	var out []string
	if fv.DTIRatio > 40 {
		out = append(out, "Restructure existing obligations before disbursal")
	}
	if !fv.HasBureauScore() {
		out = append(out, "Use alternative-data verification and a reduced first loan")
	}
	if fv.BounceEvents > 0 {
		out = append(out, "Require auto-debit mandate with penalty awareness")
	}
	if fv.RepaymentCapacity < 30 {
		out = append(out, "Offer a longer tenure to reduce the installment burden")
	}
	if fv.IncomeStability < 50 {
		out = append(out, "Align the collection schedule with income seasonality")
	}
	if fv.LoanToIncomeRatio > 200 {
		out = append(out, "Phase disbursement against verified milestones")
	}
	if level == domain.RiskHigh || level == domain.RiskVeryHigh {
		out = append(out, "Assign to early-delinquency monitoring from the first installment")
	}
	return out
}
