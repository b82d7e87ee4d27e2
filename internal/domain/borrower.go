// Package domain defines the core types and interfaces for Merlin.
package domain

import (
	"time"
)

// RawApplication is the untyped intake payload as submitted by the
// borrower. Field values may be strings, numbers, booleans, or absent.
// It is transient: the collector normalizes it into a BorrowerRecord
// and the raw form is not retained past intake.
type RawApplication map[string]any

// BorrowerRecord is the typed, defaulted borrower snapshot. It is
// created once per application by the collector and never mutated.
type BorrowerRecord struct {
	Personal    PersonalInfo    `json:"personal"`
	Financial   FinancialInfo   `json:"financial"`
	Credit      CreditInfo      `json:"credit"`
	Alternative AlternativeData `json:"alternative"`

	// ExternalSummary is the verified summary from the account
	// aggregator collaborator, when one was fetched. Nil means the
	// borrower has no verified banking data; feature derivation falls
	// back to documented defaults.
	ExternalSummary *FinancialSummary `json:"externalFinancialSummary,omitempty"`
}

// PersonalInfo holds identity and demographic fields.
type PersonalInfo struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Age            int    `json:"age"`
	Gender         string `json:"gender"`
	Mobile         string `json:"mobile"`
	State          string `json:"state"`
	LocationTier   string `json:"locationTier"`
	Occupation     string `json:"occupation"`
	EmploymentType string `json:"employmentType"`
	Education      string `json:"education"`
}

// FinancialInfo holds declared (unverified) financial fields.
type FinancialInfo struct {
	MonthlyIncome       float64 `json:"monthlyIncome"`
	MonthlyExpenses     float64 `json:"monthlyExpenses"`
	Savings             float64 `json:"savings"`
	ExistingLoans       int     `json:"existingLoans"`
	ExistingEMI         float64 `json:"existingEmi"`
	LoanAmountRequested float64 `json:"loanAmountRequested"`
	LoanTenureMonths    int     `json:"loanTenureMonths"`
	LoanPurpose         string  `json:"loanPurpose"`
}

// CreditInfo holds bureau data. CibilScore is nil when the borrower has
// no bureau record; a stored 0 also means "no score available" per the
// CIBIL convention, never a low score.
type CreditInfo struct {
	CibilScore          *int `json:"cibilScore"`
	CreditHistoryMonths int  `json:"creditHistoryMonths"`
}

// AlternativeData holds borrower-reported alternative credit signals.
// Consistency figures are percentages in [0,100].
type AlternativeData struct {
	DigitalScore              float64 `json:"digitalScore"`
	PsychometricScore         float64 `json:"psychometricScore"`
	FPOMembership             bool    `json:"fpoMembership"`
	BusinessRegistration      bool    `json:"businessRegistration"`
	UtilityPaymentConsistency float64 `json:"utilityPaymentConsistency"`
	RentPaymentConsistency    float64 `json:"rentPaymentConsistency"`
}

// FinancialSummary is the fixed-shape verified summary returned by the
// account aggregator collaborator. A "not yet banked" borrower gets an
// all-zero summary with Banked=false.
type FinancialSummary struct {
	Banked                    bool    `json:"banked"`
	AvgMonthlyIncomeVerified  float64 `json:"avgMonthlyIncomeVerified"`
	AvgMonthlyExpenseVerified float64 `json:"avgMonthlyExpenseVerified"`
	BankTransactionFrequency  int     `json:"bankTransactionFrequency"`
	UtilityPaymentConsistency float64 `json:"utilityPaymentConsistency"`
	UPITransactionCount       int     `json:"upiTransactionCount"`
	BounceEvents              int     `json:"bounceEvents"`
	AccountAgeMonths          int     `json:"accountAgeMonths"`
}

// ValidationResult is the outcome of borrower-record validation.
// Errors carries every violated rule, not just the first.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Application is the stored intake record for the audit trail.
type Application struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenantId"`
	BorrowerID string         `json:"borrowerId"`
	Raw        RawApplication `json:"raw"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Borrower segments used by segment-level risk adjustment.
const (
	SegmentFarmer            = "farmer"
	SegmentWomanEntrepreneur = "women_entrepreneur"
	SegmentSalaried          = "salaried"
	SegmentSelfEmployed      = "self_employed"
	SegmentSmallBusiness     = "small_business"
)
