package collector

import (
	"testing"

	"github.com/opensource-finance/merlin/internal/domain"
)

func validRaw() domain.RawApplication {
	return domain.RawApplication{
		"id":                  "bor-001",
		"name":                "Asha Devi",
		"age":                 32,
		"mobile":              "9876543210",
		"state":               "Maharashtra",
		"occupation":          "farmer",
		"monthlyIncome":       25000.0,
		"monthlyExpenses":     15000.0,
		"savings":             50000.0,
		"existingEmi":         2000.0,
		"loanAmountRequested": 100000.0,
		"loanTenureMonths":    24,
		"cibilScore":          720,
		"creditHistoryMonths": 36,
	}
}

func TestCollectDefaults(t *testing.T) {
	rec := Collect(domain.RawApplication{}, nil)

	if rec.Personal.Name != "N/A" {
		t.Errorf("expected default name N/A, got %q", rec.Personal.Name)
	}
	if rec.Personal.Age != 0 {
		t.Errorf("expected default age 0, got %d", rec.Personal.Age)
	}
	if rec.Personal.State != "Unknown" {
		t.Errorf("expected default state Unknown, got %q", rec.Personal.State)
	}
	if rec.Personal.EmploymentType != "Self-Employed" {
		t.Errorf("expected default employment type, got %q", rec.Personal.EmploymentType)
	}
	if rec.Financial.LoanTenureMonths != 12 {
		t.Errorf("expected default tenure 12, got %d", rec.Financial.LoanTenureMonths)
	}
	if rec.Financial.LoanPurpose != "Others" {
		t.Errorf("expected default loan purpose, got %q", rec.Financial.LoanPurpose)
	}
	if rec.Credit.CibilScore != nil {
		t.Errorf("expected nil cibil score, got %v", *rec.Credit.CibilScore)
	}
	if rec.Personal.ID == "" {
		t.Error("expected generated borrower id")
	}
}

func TestCollectTypeCoercion(t *testing.T) {
	raw := domain.RawApplication{
		"age":           "45",
		"monthlyIncome": "18000.50",
		"fpoMembership": "true",
		"savings":       "not-a-number",
	}

	rec := Collect(raw, nil)

	if rec.Personal.Age != 45 {
		t.Errorf("expected coerced age 45, got %d", rec.Personal.Age)
	}
	if rec.Financial.MonthlyIncome != 18000.50 {
		t.Errorf("expected coerced income 18000.50, got %v", rec.Financial.MonthlyIncome)
	}
	if !rec.Alternative.FPOMembership {
		t.Error("expected fpo membership true")
	}
	// Malformed numeric input coerces to zero, never errors.
	if rec.Financial.Savings != 0 {
		t.Errorf("expected malformed savings to coerce to 0, got %v", rec.Financial.Savings)
	}
}

func TestCollectZeroCibilMeansNoScore(t *testing.T) {
	raw := validRaw()
	raw["cibilScore"] = 0

	rec := Collect(raw, nil)
	if rec.Credit.CibilScore != nil {
		t.Errorf("cibil score 0 must be treated as no score, got %v", *rec.Credit.CibilScore)
	}

	raw["cibilScore"] = 720
	rec = Collect(raw, nil)
	if rec.Credit.CibilScore == nil || *rec.Credit.CibilScore != 720 {
		t.Errorf("expected cibil score 720, got %v", rec.Credit.CibilScore)
	}
}

func TestCollectAttachesSummary(t *testing.T) {
	summary := &domain.FinancialSummary{Banked: true, UPITransactionCount: 60}
	rec := Collect(validRaw(), summary)

	if rec.ExternalSummary == nil || rec.ExternalSummary.UPITransactionCount != 60 {
		t.Error("expected external summary attached unmodified")
	}
}

func TestValidateAcceptsValidRecord(t *testing.T) {
	rec := Collect(validRaw(), nil)

	res := Validate(rec)
	if !res.Valid {
		t.Fatalf("expected valid record, got errors: %v", res.Errors)
	}
	if len(res.Errors) != 0 {
		t.Errorf("expected no errors, got %v", res.Errors)
	}
}

func TestValidateCollectsAllViolations(t *testing.T) {
	raw := validRaw()
	raw["age"] = 16
	raw["mobile"] = "123"

	res := Validate(Collect(raw, nil))
	if res.Valid {
		t.Fatal("expected invalid record")
	}
	if len(res.Errors) != 2 {
		t.Fatalf("expected exactly 2 errors, got %d: %v", len(res.Errors), res.Errors)
	}
	if res.Errors[0] != "age must be between 18 and 75" {
		t.Errorf("unexpected first error: %q", res.Errors[0])
	}
	if res.Errors[1] != "mobile number must be exactly 10 digits" {
		t.Errorf("unexpected second error: %q", res.Errors[1])
	}
}

func TestValidateMobileRequiresDigitsOnly(t *testing.T) {
	// 10-character strings that parse as numbers but are not 10 digits.
	cases := []string{"12345.6789", "-123456789", "+912345678", "98765 4321"}

	for _, mobile := range cases {
		t.Run(mobile, func(t *testing.T) {
			raw := validRaw()
			raw["mobile"] = mobile

			res := Validate(Collect(raw, nil))
			if res.Valid {
				t.Fatalf("mobile %q accepted, want rejection", mobile)
			}
			if len(res.Errors) != 1 || res.Errors[0] != "mobile number must be exactly 10 digits" {
				t.Errorf("expected mobile error, got %v", res.Errors)
			}
		})
	}
}

func TestValidateBounds(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(domain.RawApplication)
		wantErr string
	}{
		{"age too high", func(r domain.RawApplication) { r["age"] = 80 }, "age must be between 18 and 75"},
		{"zero income", func(r domain.RawApplication) { r["monthlyIncome"] = 0 }, "monthly income must be positive"},
		{"loan too small", func(r domain.RawApplication) { r["loanAmountRequested"] = 500 }, "loan amount must be between 1,000 and 5,000,000"},
		{"loan too large", func(r domain.RawApplication) { r["loanAmountRequested"] = 6000000 }, "loan amount must be between 1,000 and 5,000,000"},
		{"tenure too short", func(r domain.RawApplication) { r["loanTenureMonths"] = 3 }, "loan tenure must be between 6 and 60 months"},
		{"tenure too long", func(r domain.RawApplication) { r["loanTenureMonths"] = 72 }, "loan tenure must be between 6 and 60 months"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := validRaw()
			tc.mutate(raw)

			res := Validate(Collect(raw, nil))
			if res.Valid {
				t.Fatal("expected invalid record")
			}
			if len(res.Errors) != 1 || res.Errors[0] != tc.wantErr {
				t.Errorf("expected [%q], got %v", tc.wantErr, res.Errors)
			}
		})
	}
}
