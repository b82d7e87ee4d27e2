// Package compliance re-checks a decision against the regulatory rule
// set. Violations flag the decision for follow-up; they never gate it.
package compliance

import "github.com/opensource-finance/merlin/internal/domain"

// disclosures is the fixed statement list attached to every report.
// Length and order are part of the contract.
var disclosures = []string{
	"All-in cost of the loan including the effective annual percentage rate has been disclosed",
	"Processing fee is charged upfront and is non-refundable",
	"Credit-linked insurance is optional and not a condition of sanction",
	"Prepayment is allowed without penalty after 6 paid EMIs",
	"Late payment attracts a charge as per the sanction letter",
}

// Check evaluates the feature set and decision against the regulatory
// rules. Every rule is checked independently.
func Check(fv *domain.FeatureVector, dec *domain.Decision) *domain.ComplianceReport {
	var violations []domain.ComplianceViolation

	if fv.Age < 25 && fv.CreditHistoryMonths == 0 {
		violations = append(violations, domain.ComplianceViolation{
			Guideline: "KYC Master Direction",
			Issue:     "Young borrower with no credit history",
			Action:    "Complete enhanced due-diligence verification before disbursal",
		})
	}

	if fv.DTIRatio > 60 {
		violations = append(violations, domain.ComplianceViolation{
			Guideline: "Responsible lending guideline",
			Issue:     "Debt burden exceeds 60% of monthly income",
			Action:    "Reassess loan amount against the borrower's total obligations",
		})
	}

	if !fv.HasBureauScore() && fv.IncomeStability < 50 {
		violations = append(violations, domain.ComplianceViolation{
			Guideline: "Alternative-data underwriting guideline",
			Issue:     "No bureau record and insufficient income documentation",
			Action:    "Collect additional income proof before relying on alternative data",
		})
	}

	report := &domain.ComplianceReport{
		IsCompliant: len(violations) == 0,
		Violations:  violations,
		Disclosures: make([]string, len(disclosures)),
	}
	copy(report.Disclosures, disclosures)
	return report
}
