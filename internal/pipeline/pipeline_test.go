package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/opensource-finance/merlin/internal/domain"
	"github.com/opensource-finance/merlin/internal/overlay"
	"github.com/opensource-finance/merlin/internal/provider"
)

func testRaw() domain.RawApplication {
	return domain.RawApplication{
		"id":                  "bor-100",
		"name":                "Ravi Kumar",
		"age":                 34,
		"mobile":              "9876543210",
		"occupation":          "shopkeeper",
		"monthlyIncome":       30000.0,
		"monthlyExpenses":     12000.0,
		"savings":             60000.0,
		"existingEmi":         1000.0,
		"loanAmountRequested": 100000.0,
		"loanTenureMonths":    24,
		"cibilScore":          720,
		"creditHistoryMonths": 36,
		"digitalScore":        70.0,
	}
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	engine, err := NewEngine(domain.DefaultPolicy(), opts...)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return engine
}

func TestUnderwriteReturnsAllReports(t *testing.T) {
	engine := newTestEngine(t)

	eval, err := engine.Underwrite(context.Background(), &Request{
		TenantID: "tenant-001",
		Raw:      testRaw(),
	})
	if err != nil {
		t.Fatalf("underwrite failed: %v", err)
	}

	if eval.ID == "" || eval.BorrowerID != "bor-100" {
		t.Errorf("unexpected identifiers: id=%q borrower=%q", eval.ID, eval.BorrowerID)
	}
	if eval.Decision.Recommendation != domain.RecommendationApproved {
		t.Errorf("expected approval, got %s (%v)", eval.Decision.Recommendation, eval.Decision.Reasons)
	}
	if eval.Scoring.CreditScore < 300 || eval.Scoring.CreditScore > 1000 {
		t.Errorf("score %d out of bounds", eval.Scoring.CreditScore)
	}
	if eval.Risk.ProbabilityOfDefault < 0.1 || eval.Risk.ProbabilityOfDefault > 10 {
		t.Errorf("PD %v out of bounds", eval.Risk.ProbabilityOfDefault)
	}
	if len(eval.Compliance.Disclosures) != 5 {
		t.Errorf("expected 5 disclosures, got %d", len(eval.Compliance.Disclosures))
	}
	if eval.Signals.CustomerLifetimeValue <= 0 {
		t.Error("expected positive lifetime value signal")
	}
	if eval.Metadata.EngineVersion != Version {
		t.Errorf("metadata version = %q, want %q", eval.Metadata.EngineVersion, Version)
	}
}

func TestUnderwriteIdempotent(t *testing.T) {
	engine := newTestEngine(t)

	run := func() *domain.Evaluation {
		eval, err := engine.Underwrite(context.Background(), &Request{
			TenantID: "tenant-001",
			Raw:      testRaw(),
			Summary:  &domain.FinancialSummary{Banked: true, BankTransactionFrequency: 25, AccountAgeMonths: 30, UPITransactionCount: 40},
		})
		if err != nil {
			t.Fatalf("underwrite failed: %v", err)
		}
		return eval
	}

	first := run()
	second := run()

	// IDs and timings differ between runs; the four reports must not.
	for name, pair := range map[string][2]any{
		"decision":   {first.Decision, second.Decision},
		"scoring":    {first.Scoring, second.Scoring},
		"risk":       {first.Risk, second.Risk},
		"compliance": {first.Compliance, second.Compliance},
	} {
		a, err := json.Marshal(pair[0])
		if err != nil {
			t.Fatalf("marshal %s: %v", name, err)
		}
		b, err := json.Marshal(pair[1])
		if err != nil {
			t.Fatalf("marshal %s: %v", name, err)
		}
		if !bytes.Equal(a, b) {
			t.Errorf("%s report differs between identical runs:\n%s\n%s", name, a, b)
		}
	}
}

func TestUnderwriteValidationAbortsWithAllErrors(t *testing.T) {
	engine := newTestEngine(t)

	raw := testRaw()
	raw["age"] = 16
	raw["mobile"] = "123"

	eval, err := engine.Underwrite(context.Background(), &Request{Raw: raw})
	if eval != nil {
		t.Error("no evaluation may be returned on validation failure")
	}

	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Errors) != 2 {
		t.Errorf("expected 2 violations, got %v", verr.Errors)
	}
}

func TestUnderwriteProviderFailure(t *testing.T) {
	failing := provider.Func(func(ctx context.Context, borrowerID string) (*domain.FinancialSummary, error) {
		return nil, fmt.Errorf("aggregator unreachable")
	})
	engine := newTestEngine(t, WithProvider(failing))

	eval, err := engine.Underwrite(context.Background(), &Request{Raw: testRaw()})
	if eval != nil {
		t.Error("no partial evaluation may be returned on dependency failure")
	}
	if !errors.Is(err, domain.ErrDependency) {
		t.Errorf("expected dependency error, got %v", err)
	}
}

func TestUnderwriteUsesProviderSummary(t *testing.T) {
	summaries := map[string]*domain.FinancialSummary{
		"bor-100": {Banked: true, UPITransactionCount: 55, BankTransactionFrequency: 45, AccountAgeMonths: 40},
	}
	engine := newTestEngine(t, WithProvider(provider.NewStatic(summaries)))

	eval, err := engine.Underwrite(context.Background(), &Request{Raw: testRaw()})
	if err != nil {
		t.Fatalf("underwrite failed: %v", err)
	}
	// Verified activity replaces the reported digital score.
	if eval.Features.DigitalScore != 100 {
		t.Errorf("digital score = %v, want 100 from summary", eval.Features.DigitalScore)
	}
	if eval.Features.TransactionFrequency != 45 {
		t.Errorf("transaction frequency = %v, want 45", eval.Features.TransactionFrequency)
	}
}

func TestNewEngineRejectsInvalidPolicy(t *testing.T) {
	bad := domain.DefaultPolicy()
	bad.MaxPD = 50

	_, err := NewEngine(bad)
	var cerr *domain.ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestUnderwriteRejectsInvalidRequestPolicy(t *testing.T) {
	engine := newTestEngine(t)

	bad := domain.DefaultPolicy()
	bad.MinCreditScore = 200

	_, err := engine.Underwrite(context.Background(), &Request{Raw: testRaw(), Policy: &bad})
	var cerr *domain.ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfigurationError for request policy, got %v", err)
	}
}

func TestUnderwritePerRequestPolicy(t *testing.T) {
	engine := newTestEngine(t)

	strict := domain.DefaultPolicy()
	strict.MinCreditScore = 990

	eval, err := engine.Underwrite(context.Background(), &Request{Raw: testRaw(), Policy: &strict})
	if err != nil {
		t.Fatalf("underwrite failed: %v", err)
	}
	if eval.Decision.Recommendation == domain.RecommendationApproved && eval.Scoring.CreditScore < 990 {
		t.Errorf("strict policy ignored: score %d approved", eval.Scoring.CreditScore)
	}
}

func TestOverlayFlagsNeverAlterRecommendation(t *testing.T) {
	ov, err := overlay.NewEngine()
	if err != nil {
		t.Fatalf("failed to create overlay engine: %v", err)
	}
	defer ov.Close()
	ov.LoadRule(&domain.OverlayRule{
		ID:          "always-flag",
		Name:        "Always flag",
		Description: "fires on every application",
		Expression:  "dti_ratio >= 0.0",
		Severity:    domain.SeverityCritical,
		Enabled:     true,
	})

	plain := newTestEngine(t)
	flagged := newTestEngine(t, WithOverlay(ov))

	base, err := plain.Underwrite(context.Background(), &Request{Raw: testRaw()})
	if err != nil {
		t.Fatalf("underwrite failed: %v", err)
	}
	withFlags, err := flagged.Underwrite(context.Background(), &Request{Raw: testRaw()})
	if err != nil {
		t.Fatalf("underwrite failed: %v", err)
	}

	if len(withFlags.OverlayFlags) != 1 {
		t.Fatalf("expected 1 overlay flag, got %v", withFlags.OverlayFlags)
	}
	if withFlags.Decision.Recommendation != base.Decision.Recommendation {
		t.Errorf("overlay flags changed recommendation from %s to %s",
			base.Decision.Recommendation, withFlags.Decision.Recommendation)
	}
}

func TestThinFileBoundaryEndToEnd(t *testing.T) {
	raw := testRaw()
	delete(raw, "cibilScore")
	raw["creditHistoryMonths"] = 0
	raw["digitalScore"] = 45.0
	raw["fpoMembership"] = true // trust 50 + 10 = 60

	engine := newTestEngine(t)

	eval, err := engine.Underwrite(context.Background(), &Request{Raw: raw})
	if err != nil {
		t.Fatalf("underwrite failed: %v", err)
	}
	if eval.Decision.Recommendation != domain.RecommendationApproved {
		t.Fatalf("expected capped approval for strong alternative signals, got %s (%v)",
			eval.Decision.Recommendation, eval.Decision.Reasons)
	}
	if eval.Decision.ApprovedAmount > 50000 {
		t.Errorf("first loan must be capped at 50000, got %v", eval.Decision.ApprovedAmount)
	}

	raw["digitalScore"] = 30.0
	eval, err = engine.Underwrite(context.Background(), &Request{Raw: raw})
	if err != nil {
		t.Fatalf("underwrite failed: %v", err)
	}
	if eval.Decision.Recommendation != domain.RecommendationManualReview {
		t.Fatalf("expected manual review for weak alternative signals, got %s", eval.Decision.Recommendation)
	}

	foundKYC := false
	for _, c := range eval.Decision.Conditions {
		if c == "Mandatory video KYC verification" {
			foundKYC = true
		}
	}
	if !foundKYC {
		t.Errorf("expected video KYC condition, got %v", eval.Decision.Conditions)
	}
}
