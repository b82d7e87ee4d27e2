// Package collector normalizes raw application input into a typed
// borrower record and validates it against intake bounds.
package collector

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/opensource-finance/merlin/internal/domain"
)

var validate = validator.New()

// intakeBounds mirrors the validated subset of a borrower record.
// Validation runs against this struct so every violation is collected
// in one pass.
type intakeBounds struct {
	Age           int     `validate:"gte=18,lte=75"`
	Mobile        string  `validate:"len=10,number"`
	MonthlyIncome float64 `validate:"gt=0"`
	LoanAmount    float64 `validate:"gte=1000,lte=5000000"`
	LoanTenure    int     `validate:"gte=6,lte=60"`
}

// One fixed message per field, independent of which tag failed.
var boundMessages = map[string]string{
	"Age":           "age must be between 18 and 75",
	"Mobile":        "mobile number must be exactly 10 digits",
	"MonthlyIncome": "monthly income must be positive",
	"LoanAmount":    "loan amount must be between 1,000 and 5,000,000",
	"LoanTenure":    "loan tenure must be between 6 and 60 months",
}

var boundOrder = []string{"Age", "Mobile", "MonthlyIncome", "LoanAmount", "LoanTenure"}

// Collect normalizes a raw application into a BorrowerRecord. Every
// field gets an explicit default; malformed numeric input coerces to
// zero rather than failing the stage. The optional summary is attached
// unmodified.
func Collect(raw domain.RawApplication, summary *domain.FinancialSummary) *domain.BorrowerRecord {
	rec := &domain.BorrowerRecord{
		Personal: domain.PersonalInfo{
			ID:             getString(raw, "id", uuid.New().String()),
			Name:           getString(raw, "name", "N/A"),
			Age:            getInt(raw, "age", 0),
			Gender:         getString(raw, "gender", "Not Specified"),
			Mobile:         getString(raw, "mobile", ""),
			State:          getString(raw, "state", "Unknown"),
			LocationTier:   getString(raw, "locationTier", "3"),
			Occupation:     getString(raw, "occupation", "Unknown"),
			EmploymentType: getString(raw, "employmentType", "Self-Employed"),
			Education:      getString(raw, "education", "High School"),
		},
		Financial: domain.FinancialInfo{
			MonthlyIncome:       getFloat(raw, "monthlyIncome", 0),
			MonthlyExpenses:     getFloat(raw, "monthlyExpenses", 0),
			Savings:             getFloat(raw, "savings", 0),
			ExistingLoans:       getInt(raw, "existingLoans", 0),
			ExistingEMI:         getFloat(raw, "existingEmi", 0),
			LoanAmountRequested: getFloat(raw, "loanAmountRequested", 0),
			LoanTenureMonths:    getInt(raw, "loanTenureMonths", 12),
			LoanPurpose:         getString(raw, "loanPurpose", "Others"),
		},
		Credit: domain.CreditInfo{
			CreditHistoryMonths: getInt(raw, "creditHistoryMonths", 0),
		},
		Alternative: domain.AlternativeData{
			DigitalScore:              getFloat(raw, "digitalScore", 0),
			PsychometricScore:         getFloat(raw, "psychometricScore", 0),
			FPOMembership:             getBool(raw, "fpoMembership"),
			BusinessRegistration:      getBool(raw, "businessRegistration"),
			UtilityPaymentConsistency: getFloat(raw, "utilityPaymentConsistency", 0),
			RentPaymentConsistency:    getFloat(raw, "rentPaymentConsistency", 0),
		},
		ExternalSummary: summary,
	}

	// CIBIL uses 0 for "no score available", so only a positive value
	// counts as a bureau score.
	if score := getInt(raw, "cibilScore", 0); score > 0 {
		rec.Credit.CibilScore = &score
	}

	return rec
}

// Validate checks a borrower record against intake bounds and returns
// every violation together. Records failing validation must not
// proceed into feature engineering.
func Validate(rec *domain.BorrowerRecord) domain.ValidationResult {
	bounds := intakeBounds{
		Age:           rec.Personal.Age,
		Mobile:        rec.Personal.Mobile,
		MonthlyIncome: rec.Financial.MonthlyIncome,
		LoanAmount:    rec.Financial.LoanAmountRequested,
		LoanTenure:    rec.Financial.LoanTenureMonths,
	}

	err := validate.Struct(bounds)
	if err == nil {
		return domain.ValidationResult{Valid: true}
	}

	failed := make(map[string]bool)
	for _, ve := range err.(validator.ValidationErrors) {
		failed[ve.StructField()] = true
	}

	var errs []string
	for _, field := range boundOrder {
		if failed[field] {
			errs = append(errs, boundMessages[field])
		}
	}
	return domain.ValidationResult{Valid: false, Errors: errs}
}

func getString(raw domain.RawApplication, key, def string) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return def
	}
	switch s := v.(type) {
	case string:
		if strings.TrimSpace(s) == "" {
			return def
		}
		return s
	default:
		return def
	}
}

func getInt(raw domain.RawApplication, key string, def int) int {
	v, ok := raw[key]
	if !ok || v == nil {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0
		}
		return parsed
	default:
		return def
	}
}

func getFloat(raw domain.RawApplication, key string, def float64) float64 {
	v, ok := raw[key]
	if !ok || v == nil {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return def
	}
}

func getBool(raw domain.RawApplication, key string) bool {
	v, ok := raw[key]
	if !ok || v == nil {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(strings.TrimSpace(b), "true") || b == "1" || strings.EqualFold(b, "yes")
	case float64:
		return b != 0
	case int:
		return b != 0
	default:
		return false
	}
}
