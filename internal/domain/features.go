package domain

// FeatureVector is the flat set of derived features consumed by the
// scoring, risk, decision, and compliance stages. It is derived fresh
// per run and never mutated after creation.
//
// Percentage-like fields are clamped to [0,100] except
// LoanToIncomeRatio, which stays unclamped because the leverage
// penalties key off 200% and 300%.
type FeatureVector struct {
	// Demographics
	Age     int    `json:"age"`
	Segment string `json:"segment"`

	// Declared financials
	MonthlyIncome   float64 `json:"monthlyIncome"`
	MonthlyExpenses float64 `json:"monthlyExpenses"`
	ExistingEMI     float64 `json:"existingEmi"`
	Savings         float64 `json:"savings"`

	// Loan request
	LoanAmount   float64 `json:"loanAmount"`
	LoanTenure   int     `json:"loanTenure"`
	RequestedEMI float64 `json:"requestedEmi"`

	// Ratios
	DTIRatio           float64 `json:"dtiRatio"`
	SavingsRate        float64 `json:"savingsRate"`
	RepaymentCapacity  float64 `json:"repaymentCapacity"`
	LoanToIncomeRatio  float64 `json:"loanToIncomeRatio"`
	CollateralCoverage float64 `json:"collateralCoverage"`

	// Bureau
	BureauScore         int `json:"creditScore"`
	CreditHistoryMonths int `json:"creditHistory"`

	// Alternative / behavioral
	DigitalScore      float64 `json:"digitalScore"`
	TrustScore        float64 `json:"trustScore"`
	PsychometricScore float64 `json:"psychometricScore"`
	IncomeStability   float64 `json:"incomeStability"`

	// Verified banking signals (zero without a financial summary)
	TransactionFrequency int `json:"transactionFrequency"`
	UPITransactionCount  int `json:"upiTransactionCount"`
	BounceEvents         int `json:"bounceEvents"`
}

// HasBureauScore reports whether a bureau score exists. A stored 0
// means "no score available" per the CIBIL convention.
func (f *FeatureVector) HasBureauScore() bool {
	return f.BureauScore > 0
}

// ToMap flattens the vector for overlay rule activation.
func (f *FeatureVector) ToMap() map[string]any {
	return map[string]any{
		"age":                   f.Age,
		"segment":               f.Segment,
		"monthly_income":        f.MonthlyIncome,
		"monthly_expenses":      f.MonthlyExpenses,
		"existing_emi":          f.ExistingEMI,
		"savings":               f.Savings,
		"loan_amount":           f.LoanAmount,
		"loan_tenure":           f.LoanTenure,
		"requested_emi":         f.RequestedEMI,
		"dti_ratio":             f.DTIRatio,
		"savings_rate":          f.SavingsRate,
		"repayment_capacity":    f.RepaymentCapacity,
		"loan_to_income":        f.LoanToIncomeRatio,
		"collateral_coverage":   f.CollateralCoverage,
		"bureau_score":          f.BureauScore,
		"credit_history":        f.CreditHistoryMonths,
		"digital_score":         f.DigitalScore,
		"trust_score":           f.TrustScore,
		"psychometric_score":    f.PsychometricScore,
		"income_stability":      f.IncomeStability,
		"transaction_frequency": f.TransactionFrequency,
		"upi_transaction_count": f.UPITransactionCount,
		"bounce_events":         f.BounceEvents,
	}
}
