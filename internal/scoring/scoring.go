// Package scoring computes the composite credit score. The score
// blends bureau data with alternative signals so thin-file borrowers
// still receive a usable score instead of an automatic floor.
package scoring

import (
	"math"

	"github.com/opensource-finance/merlin/internal/domain"
)

const (
	baseScore       = 500
	minScore        = 300
	maxScore        = 1000
	bureauReference = 750
)

// recommendationRules are checked independently, in presentation
// order. Every matching message is emitted.
var recommendationRules = []struct {
	check   func(fv *domain.FeatureVector, score int) bool
	message string
}{
	{func(fv *domain.FeatureVector, _ int) bool { return fv.DTIRatio > 40 },
		"Reduce existing debt obligations before taking on a new loan"},
	{func(fv *domain.FeatureVector, _ int) bool { return fv.SavingsRate < 10 },
		"Build a regular savings habit to strengthen the financial profile"},
	{func(fv *domain.FeatureVector, _ int) bool { return fv.DigitalScore < 40 },
		"Increase digital transaction activity to build a verifiable footprint"},
	{func(fv *domain.FeatureVector, _ int) bool { return !fv.HasBureauScore() },
		"Establish a formal credit history with a small starter credit line"},
	{func(fv *domain.FeatureVector, _ int) bool { return fv.RepaymentCapacity < 30 },
		"Consider a smaller loan amount or longer tenure to ease repayment"},
	{func(_ *domain.FeatureVector, score int) bool { return score < 600 },
		"Improve the overall credit profile before applying for larger amounts"},
}

var componentOrder = []string{
	"creditHistory",
	"incomeStability",
	"repaymentCapacity",
	"savings",
	"dtiInverse",
	"digital",
	"trust",
	"psychometric",
}

// Score computes the composite credit score report from a feature
// vector.
func Score(fv *domain.FeatureVector) *domain.ScoringReport {
	components := map[string]float64{
		"creditHistory":     creditHistoryComponent(fv),
		"incomeStability":   math.Min(150, 1.5*fv.IncomeStability),
		"repaymentCapacity": math.Min(150, 1.5*fv.RepaymentCapacity),
		"savings":           math.Min(100, math.Max(0, 2*fv.SavingsRate)),
		"dtiInverse":        math.Max(0, 100-fv.DTIRatio),
		"digital":           math.Min(100, fv.DigitalScore),
		"trust":             math.Min(50, 0.5*fv.TrustScore),
		"psychometric":      math.Min(50, 0.5*fv.PsychometricScore),
	}

	// Fixed summation order keeps the float total identical across runs.
	total := float64(baseScore)
	for _, name := range componentOrder {
		total += components[name]
	}

	switch {
	case fv.TransactionFrequency >= 40:
		total += 20
	case fv.TransactionFrequency >= 20:
		total += 10
	}

	total -= 30 * float64(fv.BounceEvents)

	switch {
	case fv.LoanToIncomeRatio > 300:
		total -= 50
	case fv.LoanToIncomeRatio > 200:
		total -= 25
	}

	score := int(math.Round(total))
	if score < minScore {
		score = minScore
	}
	if score > maxScore {
		score = maxScore
	}

	return &domain.ScoringReport{
		CreditScore:        score,
		Category:           category(score),
		RiskLabel:          riskLabel(score),
		Confidence:         confidence(fv),
		ComponentBreakdown: components,
		Recommendations:    recommendations(fv, score),
	}
}

// creditHistoryComponent scales the bureau score against a 750
// reference, or falls back to history length plus alternative signals
// for thin-file borrowers.
func creditHistoryComponent(fv *domain.FeatureVector) float64 {
	if fv.HasBureauScore() {
		return 150 * math.Min(1, float64(fv.BureauScore)/bureauReference)
	}

	component := 80.0
	switch {
	case fv.CreditHistoryMonths >= 24:
		component += 30
	case fv.CreditHistoryMonths >= 12:
		component += 20
	case fv.CreditHistoryMonths >= 6:
		component += 10
	}
	component += 0.25*fv.DigitalScore + 0.15*fv.TrustScore
	return math.Min(150, component)
}

func category(score int) string {
	switch {
	case score >= 800:
		return domain.CategoryExcellent
	case score >= 700:
		return domain.CategoryGood
	case score >= 600:
		return domain.CategoryFair
	case score >= 500:
		return domain.CategoryBelowAverage
	default:
		return domain.CategoryPoor
	}
}

func riskLabel(score int) string {
	switch {
	case score >= 750:
		return "Low"
	case score >= 650:
		return "Moderate"
	case score >= 550:
		return "High"
	default:
		return "Very High"
	}
}

// confidence reflects how much verifiable signal backed the score,
// independent of the score itself.
func confidence(fv *domain.FeatureVector) int {
	c := 0
	if fv.HasBureauScore() {
		c += 30
	}
	if fv.CreditHistoryMonths >= 12 {
		c += 20
	}
	if fv.DigitalScore > 60 {
		c += 20
	}
	if fv.IncomeStability > 70 {
		c += 15
	}
	if fv.TransactionFrequency > 30 {
		c += 15
	}
	if c > 100 {
		c = 100
	}
	return c
}

func recommendations(fv *domain.FeatureVector, score int) []string {
	var recs []string
	for _, rule := range recommendationRules {
		if rule.check(fv, score) {
			recs = append(recs, rule.message)
		}
	}
	if len(recs) == 0 {
		recs = []string{"Financial profile is strong; maintain current habits"}
	}
	return recs
}
