// Package features derives the flat feature vector the scoring, risk,
// and decision stages consume. Every function here is a pure transform
// of its inputs.
package features

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/opensource-finance/merlin/internal/domain"
)

// ReferenceAnnualRate is the annual interest rate (percent) used to
// estimate the requested EMI before pricing has run.
const ReferenceAnnualRate = 12.0

// EMI computes the equated monthly installment for a principal at an
// annual percentage rate over a number of months, rounded half away
// from zero to the whole unit. Returns 0 when principal or months is 0.
func EMI(principal, annualRatePct float64, months int) float64 {
	if principal == 0 || months == 0 {
		return 0
	}
	if annualRatePct == 0 {
		return round(principal / float64(months))
	}
	r := annualRatePct / 12 / 100
	factor := math.Pow(1+r, float64(months))
	return round(principal * r * factor / (factor - 1))
}

func round(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(0).Float64()
	return f
}

// Derive builds a FeatureVector from a validated borrower record.
func Derive(rec *domain.BorrowerRecord) *domain.FeatureVector {
	income := rec.Financial.MonthlyIncome
	expenses := rec.Financial.MonthlyExpenses
	existingEMI := rec.Financial.ExistingEMI
	loanAmount := rec.Financial.LoanAmountRequested
	tenure := rec.Financial.LoanTenureMonths

	requestedEMI := EMI(loanAmount, ReferenceAnnualRate, tenure)

	fv := &domain.FeatureVector{
		Age:                 rec.Personal.Age,
		Segment:             deriveSegment(rec),
		MonthlyIncome:       income,
		MonthlyExpenses:     expenses,
		ExistingEMI:         existingEMI,
		Savings:             rec.Financial.Savings,
		LoanAmount:          loanAmount,
		LoanTenure:          tenure,
		RequestedEMI:        requestedEMI,
		CreditHistoryMonths: rec.Credit.CreditHistoryMonths,
		PsychometricScore:   rec.Alternative.PsychometricScore,
	}

	if rec.Credit.CibilScore != nil {
		fv.BureauScore = *rec.Credit.CibilScore
	}

	// Ratios. DTI saturates at 100 for zero income.
	if income > 0 {
		fv.DTIRatio = clamp(100*(existingEMI+requestedEMI)/income, 0, 100)
		fv.SavingsRate = clamp(100*(income-expenses-existingEMI)/income, 0, 100)
		fv.LoanToIncomeRatio = 100 * loanAmount / (income * 12)
	} else {
		fv.DTIRatio = 100
	}

	available := income - expenses - existingEMI
	if available > 0 && income > 0 {
		fv.RepaymentCapacity = clamp(100*(available-requestedEMI)/income, 0, 100)
	}

	if loanAmount > 0 {
		fv.CollateralCoverage = rec.Financial.Savings / loanAmount
	}

	summary := rec.ExternalSummary
	if summary != nil {
		fv.TransactionFrequency = summary.BankTransactionFrequency
		fv.UPITransactionCount = summary.UPITransactionCount
		fv.BounceEvents = summary.BounceEvents
	}

	fv.DigitalScore = digitalScore(rec, summary)
	fv.IncomeStability = incomeStability(summary)
	fv.TrustScore = trustScore(rec)

	return fv
}

// digitalScore rewards observed digital activity when a verified
// summary exists, otherwise falls back to the borrower-reported score.
func digitalScore(rec *domain.BorrowerRecord, s *domain.FinancialSummary) float64 {
	if s == nil {
		return clamp(rec.Alternative.DigitalScore, 0, 100)
	}

	score := 30.0
	switch {
	case s.UPITransactionCount >= 50:
		score += 30
	case s.UPITransactionCount >= 20:
		score += 20
	case s.UPITransactionCount >= 5:
		score += 10
	}
	switch {
	case s.BankTransactionFrequency >= 40:
		score += 25
	case s.BankTransactionFrequency >= 20:
		score += 15
	case s.BankTransactionFrequency >= 10:
		score += 8
	}
	switch {
	case s.BounceEvents == 0:
		score += 15
	case s.BounceEvents <= 2:
		score += 5
	}
	return clamp(score, 0, 100)
}

func incomeStability(s *domain.FinancialSummary) float64 {
	score := 50.0
	if s == nil {
		return score
	}

	switch {
	case s.AccountAgeMonths >= 36:
		score += 20
	case s.AccountAgeMonths >= 24:
		score += 15
	case s.AccountAgeMonths >= 12:
		score += 10
	}
	switch {
	case s.BankTransactionFrequency >= 40:
		score += 15
	case s.BankTransactionFrequency >= 20:
		score += 10
	}
	return clamp(score, 0, 100)
}

func trustScore(rec *domain.BorrowerRecord) float64 {
	score := 50.0
	if rec.Alternative.FPOMembership {
		score += 10
	}
	if rec.Alternative.BusinessRegistration {
		score += 15
	}
	if rec.Alternative.UtilityPaymentConsistency >= 80 {
		score += 5
	}
	if rec.Alternative.RentPaymentConsistency >= 80 {
		score += 8
	}
	return clamp(score, 0, 100)
}

func deriveSegment(rec *domain.BorrowerRecord) string {
	occupation := strings.ToLower(rec.Personal.Occupation)
	switch {
	case strings.Contains(occupation, "farmer"):
		return domain.SegmentFarmer
	case strings.EqualFold(rec.Personal.Gender, "female") &&
		strings.EqualFold(rec.Personal.EmploymentType, "Self-Employed"):
		return domain.SegmentWomanEntrepreneur
	case strings.EqualFold(rec.Personal.EmploymentType, "Employed"):
		return domain.SegmentSalaried
	case rec.Alternative.BusinessRegistration:
		return domain.SegmentSmallBusiness
	default:
		return domain.SegmentSelfEmployed
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
