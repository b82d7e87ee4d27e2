package decision

import (
	"testing"

	"github.com/opensource-finance/merlin/internal/domain"
)

func healthyVector() *domain.FeatureVector {
	return &domain.FeatureVector{
		BureauScore:         720,
		CreditHistoryMonths: 36,
		MonthlyIncome:       40000,
		LoanAmount:          50000,
		LoanTenure:          24,
		DTIRatio:            25,
		RepaymentCapacity:   50,
		IncomeStability:     75,
		DigitalScore:        70,
		TrustScore:          65,
		LoanToIncomeRatio:   10.4,
	}
}

func lowRisk() *domain.RiskReport {
	return &domain.RiskReport{ProbabilityOfDefault: 0.8, RiskLevel: domain.RiskLow}
}

func TestApproval(t *testing.T) {
	dec := Decide(720, lowRisk(), healthyVector(), domain.DefaultPolicy())

	if dec.Recommendation != domain.RecommendationApproved {
		t.Fatalf("expected approval, got %s (%v)", dec.Recommendation, dec.Reasons)
	}
	if dec.ApprovedAmount != 50000 {
		t.Errorf("approved amount = %v, want requested 50000", dec.ApprovedAmount)
	}
	// score 720 → −1; Low risk → +0: 11.0
	if dec.InterestRate != 11.0 {
		t.Errorf("interest rate = %v, want 11.0", dec.InterestRate)
	}
	if dec.TenureMonths != 24 {
		t.Errorf("tenure = %d, want 24", dec.TenureMonths)
	}
	if dec.EMI <= 0 {
		t.Error("expected a positive EMI on approval")
	}
}

func TestGateOrderShortCircuits(t *testing.T) {
	// Both the score gate and the DTI gate fail; only the score reason
	// may surface.
	fv := healthyVector()
	fv.DTIRatio = 80

	dec := Decide(450, lowRisk(), fv, domain.DefaultPolicy())
	if dec.Recommendation != domain.RecommendationDeclined {
		t.Fatalf("expected decline, got %s", dec.Recommendation)
	}
	if len(dec.Reasons) != 1 {
		t.Fatalf("expected a single reason, got %v", dec.Reasons)
	}
	if dec.Reasons[0] != "Credit score below the minimum threshold" {
		t.Errorf("expected the credit-score reason, got %q", dec.Reasons[0])
	}
}

func TestDeclineGates(t *testing.T) {
	cases := []struct {
		name       string
		score      int
		mutateFV   func(*domain.FeatureVector)
		mutateRisk func(*domain.RiskReport)
		wantReason string
	}{
		{"dti", 720, func(fv *domain.FeatureVector) { fv.DTIRatio = 65 }, nil,
			"Debt-to-income ratio exceeds the maximum allowed"},
		{"pd", 720, nil, func(r *domain.RiskReport) { r.ProbabilityOfDefault = 7.5 },
			"Estimated probability of default exceeds the risk appetite"},
		{"repayment capacity", 720, func(fv *domain.FeatureVector) { fv.RepaymentCapacity = 10 }, nil,
			"Insufficient repayment capacity after existing obligations"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fv := healthyVector()
			risk := lowRisk()
			if tc.mutateFV != nil {
				tc.mutateFV(fv)
			}
			if tc.mutateRisk != nil {
				tc.mutateRisk(risk)
			}

			dec := Decide(tc.score, risk, fv, domain.DefaultPolicy())
			if dec.Recommendation != domain.RecommendationDeclined {
				t.Fatalf("expected decline, got %s", dec.Recommendation)
			}
			if dec.Reasons[0] != tc.wantReason {
				t.Errorf("reason = %q, want %q", dec.Reasons[0], tc.wantReason)
			}
			if dec.ApprovedAmount != 0 || dec.EMI != 0 {
				t.Error("declined decision must carry no loan terms")
			}
		})
	}
}

func TestMarginalScoreUnstableIncomeGoesToReview(t *testing.T) {
	fv := healthyVector()
	fv.IncomeStability = 40

	dec := Decide(580, lowRisk(), fv, domain.DefaultPolicy())
	if dec.Recommendation != domain.RecommendationManualReview {
		t.Fatalf("expected manual review, got %s", dec.Recommendation)
	}
	if len(dec.Conditions) != 1 {
		t.Errorf("expected a documentation condition, got %v", dec.Conditions)
	}
}

func TestThinFileApprovalBoundary(t *testing.T) {
	fv := healthyVector()
	fv.BureauScore = 0
	fv.CreditHistoryMonths = 0
	fv.DigitalScore = 45
	fv.TrustScore = 55

	dec := Decide(620, lowRisk(), fv, domain.DefaultPolicy())
	if dec.Recommendation != domain.RecommendationApproved {
		t.Fatalf("expected capped approval, got %s (%v)", dec.Recommendation, dec.Reasons)
	}
	if dec.ApprovedAmount > 50000 {
		t.Errorf("first loan must be capped at 50000, got %v", dec.ApprovedAmount)
	}
	if len(dec.Conditions) == 0 || dec.Conditions[0] != "First loan capped pending repayment track record" {
		t.Errorf("expected capped first-loan condition, got %v", dec.Conditions)
	}
}

func TestThinFileWeakSignalsGoToReview(t *testing.T) {
	fv := healthyVector()
	fv.BureauScore = 0
	fv.CreditHistoryMonths = 0
	fv.DigitalScore = 30
	fv.TrustScore = 55

	dec := Decide(620, lowRisk(), fv, domain.DefaultPolicy())
	if dec.Recommendation != domain.RecommendationManualReview {
		t.Fatalf("expected manual review, got %s", dec.Recommendation)
	}

	foundKYC := false
	for _, c := range dec.Conditions {
		if c == "Mandatory video KYC verification" {
			foundKYC = true
		}
	}
	if !foundKYC {
		t.Errorf("expected mandatory video KYC condition, got %v", dec.Conditions)
	}
}

func TestInterestRateClamps(t *testing.T) {
	// Best case: score ≥800 (−2) and Very Low risk (−0.5) → 9.5.
	if got := interestRate(820, domain.RiskVeryLow); got != 9.5 {
		t.Errorf("best-case rate = %v, want 9.5", got)
	}
	// Worst case: score <550 (+2) and Very High risk (+3) → 17.
	if got := interestRate(540, domain.RiskVeryHigh); got != 17 {
		t.Errorf("worst-case rate = %v, want 17", got)
	}
}

func TestApprovedAmountCaps(t *testing.T) {
	fv := healthyVector()
	fv.LoanAmount = 3000000
	fv.MonthlyIncome = 500000
	fv.RepaymentCapacity = 80

	// Medium risk caps at 1,000,000 despite affordability headroom.
	dec := Decide(720, &domain.RiskReport{ProbabilityOfDefault: 1.5, RiskLevel: domain.RiskMedium}, fv, domain.DefaultPolicy())
	if dec.ApprovedAmount != 1000000 {
		t.Errorf("approved amount = %v, want risk cap 1000000", dec.ApprovedAmount)
	}
}

func TestApprovedAmountAffordabilityCap(t *testing.T) {
	fv := healthyVector()
	fv.LoanAmount = 500000
	fv.MonthlyIncome = 20000
	fv.RepaymentCapacity = 40

	dec := Decide(720, lowRisk(), fv, domain.DefaultPolicy())
	// 20000 × 0.40 × 3 = 24000
	if dec.ApprovedAmount != 24000 {
		t.Errorf("approved amount = %v, want affordability cap 24000", dec.ApprovedAmount)
	}
}

func TestApprovedAmountFloor(t *testing.T) {
	fv := healthyVector()
	fv.LoanAmount = 15000
	fv.MonthlyIncome = 8000
	fv.RepaymentCapacity = 20

	dec := Decide(720, lowRisk(), fv, domain.DefaultPolicy())
	// Affordability cap 8000×0.2×3 = 4800 is below the 10,000 floor.
	if dec.ApprovedAmount != 10000 {
		t.Errorf("approved amount = %v, want floor 10000", dec.ApprovedAmount)
	}
}

func TestHighRiskConditions(t *testing.T) {
	dec := Decide(720, &domain.RiskReport{ProbabilityOfDefault: 3, RiskLevel: domain.RiskHigh}, healthyVector(), domain.DefaultPolicy())
	if dec.Recommendation != domain.RecommendationApproved {
		t.Fatalf("expected approval, got %s", dec.Recommendation)
	}
	if len(dec.Conditions) != 2 {
		t.Fatalf("expected two high-risk conditions, got %v", dec.Conditions)
	}
	if dec.Conditions[0] != "Fortnightly collection schedule applies" {
		t.Errorf("unexpected first condition: %q", dec.Conditions[0])
	}
}

func TestIncomeVerificationCondition(t *testing.T) {
	fv := healthyVector()
	fv.LoanToIncomeRatio = 250

	dec := Decide(720, lowRisk(), fv, domain.DefaultPolicy())
	found := false
	for _, c := range dec.Conditions {
		if c == "Income verification required before disbursal" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected income verification condition, got %v", dec.Conditions)
	}
}
