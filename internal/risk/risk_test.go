package risk

import (
	"math"
	"testing"

	"github.com/opensource-finance/merlin/internal/domain"
)

func solidVector() *domain.FeatureVector {
	return &domain.FeatureVector{
		BureauScore:          740,
		DTIRatio:             18,
		RepaymentCapacity:    60,
		IncomeStability:      80,
		TransactionFrequency: 35,
		CollateralCoverage:   0.6,
	}
}

func TestPDBounds(t *testing.T) {
	cases := []struct {
		name  string
		fv    *domain.FeatureVector
		score int
	}{
		{"strong", solidVector(), 900},
		{"weak", &domain.FeatureVector{DTIRatio: 90, BounceEvents: 6}, 300},
		{"empty", &domain.FeatureVector{}, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			report := Assess(tc.fv, tc.score, domain.SegmentSelfEmployed, 100000)
			if report.ProbabilityOfDefault < 0.1 || report.ProbabilityOfDefault > 10 {
				t.Errorf("PD %v out of [0.1,10]", report.ProbabilityOfDefault)
			}
			if report.RiskScore < 0 || report.RiskScore > 100 {
				t.Errorf("risk score %v out of [0,100]", report.RiskScore)
			}
		})
	}
}

func TestPDFloorsForStrongProfile(t *testing.T) {
	report := Assess(solidVector(), 900, domain.SegmentSalaried, 100000)
	if report.ProbabilityOfDefault != 0.1 {
		t.Errorf("PD = %v, want floor 0.1", report.ProbabilityOfDefault)
	}
}

func TestPDWeakProfile(t *testing.T) {
	fv := &domain.FeatureVector{DTIRatio: 60, BounceEvents: 3}
	report := Assess(fv, 400, domain.SegmentSelfEmployed, 100000)
	// 0.5 − 0.16 + 0.3 + 0.6 = 1.24
	if math.Abs(report.ProbabilityOfDefault-1.24) > 0.001 {
		t.Errorf("PD = %v, want 1.24", report.ProbabilityOfDefault)
	}
}

func TestLGDSteps(t *testing.T) {
	cases := []struct {
		coverage float64
		want     float64
	}{
		{1.2, 0.10},
		{1.0, 0.10},
		{0.8, 0.25},
		{0.6, 0.35},
		{0.3, 0.50},
		{0.1, 0.65},
		{0, 0.65},
	}

	for _, tc := range cases {
		if got := lossGivenDefault(tc.coverage); got != tc.want {
			t.Errorf("LGD(%v) = %v, want %v", tc.coverage, got, tc.want)
		}
	}
}

func TestExpectedLoss(t *testing.T) {
	fv := solidVector()
	report := Assess(fv, 900, domain.SegmentSalaried, 200000)

	if report.ExposureAtDefault != 200000 {
		t.Errorf("EAD = %v, want full loan amount", report.ExposureAtDefault)
	}
	want := (report.ProbabilityOfDefault / 100) * report.LossGivenDefault * 200000
	if math.Abs(report.ExpectedLoss-want) > 0.001 {
		t.Errorf("EL = %v, want %v", report.ExpectedLoss, want)
	}
}

func TestRiskLevelOrdering(t *testing.T) {
	cases := []struct {
		name string
		pd   float64
		dti  float64
		want string
	}{
		{"very low", 0.3, 20, domain.RiskVeryLow},
		{"low pd but high dti skips very low", 0.3, 35, domain.RiskLow},
		{"low", 0.8, 35, domain.RiskLow},
		{"medium", 1.5, 45, domain.RiskMedium},
		{"high", 3.0, 70, domain.RiskHigh},
		{"very high", 5.0, 70, domain.RiskVeryHigh},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := riskLevel(tc.pd, tc.dti); got != tc.want {
				t.Errorf("riskLevel(%v, %v) = %q, want %q", tc.pd, tc.dti, got, tc.want)
			}
		})
	}
}

func TestSegmentRiskTable(t *testing.T) {
	cases := []struct {
		segment        string
		loanAmount     float64
		wantPD         float64
		wantVolatility string
	}{
		{domain.SegmentFarmer, 200000, 1.8, "high"},
		{domain.SegmentWomanEntrepreneur, 200000, 1.2, "low"},
		{domain.SegmentSalaried, 200000, 0.8, "low"},
		{domain.SegmentSmallBusiness, 200000, 1.6, "medium"},
		{"unknown_segment", 200000, 1.5, "medium"},
		{domain.SegmentFarmer, 1200000, 2.0, "high"}, // large loan +0.2
		{domain.SegmentFarmer, 600000, 1.9, "high"},  // mid loan +0.1
		{domain.SegmentFarmer, 50000, 1.7, "high"},   // small loan -0.1
	}

	for _, tc := range cases {
		sr := segmentRisk(tc.segment, tc.loanAmount)
		if math.Abs(sr.BasePD-tc.wantPD) > 0.0001 {
			t.Errorf("segmentRisk(%q, %v).BasePD = %v, want %v", tc.segment, tc.loanAmount, sr.BasePD, tc.wantPD)
		}
		if sr.Volatility != tc.wantVolatility {
			t.Errorf("segmentRisk(%q).Volatility = %q, want %q", tc.segment, sr.Volatility, tc.wantVolatility)
		}
	}
}

func TestRiskFactors(t *testing.T) {
	fv := &domain.FeatureVector{
		DTIRatio:          55,
		BounceEvents:      2,
		RepaymentCapacity: 10,
		IncomeStability:   40,
		LoanToIncomeRatio: 250,
	}
	report := Assess(fv, 400, domain.SegmentSelfEmployed, 100000)
	if len(report.RiskFactors) != 6 {
		t.Fatalf("expected 6 risk factors, got %d: %v", len(report.RiskFactors), report.RiskFactors)
	}
	if report.RiskFactors[0].Factor != "High debt-to-income ratio" || report.RiskFactors[0].Severity != domain.SeverityHigh {
		t.Errorf("unexpected first factor: %+v", report.RiskFactors[0])
	}

	clean := Assess(solidVector(), 900, domain.SegmentSalaried, 100000)
	if len(clean.RiskFactors) != 0 {
		t.Errorf("expected no risk factors for a clean profile, got %v", clean.RiskFactors)
	}
}

func TestMitigationsIncludeMonitoringForHighRisk(t *testing.T) {
	fv := &domain.FeatureVector{DTIRatio: 60, BounceEvents: 3}
	report := Assess(fv, 300, domain.SegmentSelfEmployed, 100000)

	found := false
	for _, m := range report.MitigationStrategies {
		if m == "Assign to early-delinquency monitoring from the first installment" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected monitoring mitigation for level %s, got %v", report.RiskLevel, report.MitigationStrategies)
	}
}
