package domain

import (
	"time"
)

// Recommendation values produced by the decision engine.
const (
	RecommendationApproved     = "approved"
	RecommendationDeclined     = "declined"
	RecommendationManualReview = "manual_review"
)

// Score categories for the composite 300-1000 score.
const (
	CategoryExcellent    = "Excellent"
	CategoryGood         = "Good"
	CategoryFair         = "Fair"
	CategoryBelowAverage = "Below Average"
	CategoryPoor         = "Poor"
)

// Risk levels produced by the risk assessor, strictly ordered.
const (
	RiskVeryLow  = "Very Low"
	RiskLow      = "Low"
	RiskMedium   = "Medium"
	RiskHigh     = "High"
	RiskVeryHigh = "Very High"
)

// ScoringReport is the credit scorer's output. CreditScore is always
// within [300,1000]; RiskLabel is the scorer's coarse label, distinct
// from the risk assessor's RiskLevel.
type ScoringReport struct {
	CreditScore        int                `json:"creditScore"`
	Category           string             `json:"category"`
	RiskLabel          string             `json:"riskLevel"`
	Confidence         int                `json:"confidence"`
	ComponentBreakdown map[string]float64 `json:"componentBreakdown"`
	Recommendations    []string           `json:"recommendations"`
}

// RiskFactor is a single flagged risk condition.
type RiskFactor struct {
	Factor   string `json:"factor"`
	Severity string `json:"severity"` // "high" or "medium"
}

// SegmentRisk is the segment-level risk adjustment result.
type SegmentRisk struct {
	Segment    string  `json:"segment"`
	BasePD     float64 `json:"basePd"`
	Volatility string  `json:"volatility"`
}

// RiskReport is the risk assessor's output. ProbabilityOfDefault and
// LossGivenDefault are percentages; ExposureAtDefault and ExpectedLoss
// are currency amounts.
type RiskReport struct {
	ProbabilityOfDefault float64      `json:"probabilityOfDefault"`
	LossGivenDefault     float64      `json:"lossGivenDefault"`
	ExposureAtDefault    float64      `json:"exposureAtDefault"`
	ExpectedLoss         float64      `json:"expectedLoss"`
	RiskLevel            string       `json:"riskLevel"`
	RiskScore            float64      `json:"riskScore"`
	SegmentRisk          SegmentRisk  `json:"segmentRisk"`
	RiskFactors          []RiskFactor `json:"riskFactors"`
	MitigationStrategies []string     `json:"mitigationStrategies"`
}

// Decision is the decision engine's output. ApprovedAmount,
// InterestRate, TenureMonths, and EMI are populated only when the
// recommendation is approved.
type Decision struct {
	Recommendation string   `json:"recommendation"`
	Reasons        []string `json:"reasons"`
	Conditions     []string `json:"conditions"`

	ApprovedAmount float64 `json:"approvedAmount,omitempty"`
	InterestRate   float64 `json:"interestRate,omitempty"`
	TenureMonths   int     `json:"tenureMonths,omitempty"`
	EMI            float64 `json:"emi,omitempty"`
}

// ComplianceViolation records a breached guideline and the action it
// requires. Violations flag a decision; they never gate it.
type ComplianceViolation struct {
	Guideline string `json:"guideline"`
	Issue     string `json:"issue"`
	Action    string `json:"action"`
}

// ComplianceReport is the compliance checker's output. Disclosures are
// a fixed, order-preserving list emitted on every report.
type ComplianceReport struct {
	IsCompliant bool                  `json:"isCompliant"`
	Violations  []ComplianceViolation `json:"violations,omitempty"`
	Disclosures []string              `json:"disclosures"`
}

// PredictiveSignals are advisory estimates computed off the same
// feature vector. They inform reporting and never gate the decision.
type PredictiveSignals struct {
	AltDefaultProbability   float64 `json:"altDefaultProbability"`
	CustomerLifetimeValue   float64 `json:"customerLifetimeValue"`
	EarlyRepaymentLikelihood float64 `json:"earlyRepaymentLikelihood"`
}

// OverlayFlag is a triggered lender-defined overlay rule. Flags are
// recorded for review; the gate sequence remains the only decision path.
type OverlayFlag struct {
	RuleID   string `json:"ruleId"`
	Name     string `json:"name"`
	Severity string `json:"severity"`
	Reason   string `json:"reason"`
}

// EvaluationMetadata records per-stage processing timings.
type EvaluationMetadata struct {
	TraceID       string `json:"traceId"`
	CollectMs     int64  `json:"collectMs"`
	FeaturesMs    int64  `json:"featuresMs"`
	ScoringMs     int64  `json:"scoringMs"`
	RiskMs        int64  `json:"riskMs"`
	DecisionMs    int64  `json:"decisionMs"`
	ComplianceMs  int64  `json:"complianceMs"`
	TotalMs       int64  `json:"totalMs"`
	EngineVersion string `json:"engineVersion"`
}

// Evaluation bundles everything one pipeline run produced, so downstream
// consumers (UI, audit log) need no re-computation. Produced once per
// run; immutable.
type Evaluation struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenantId"`
	ApplicationID string    `json:"applicationId"`
	BorrowerID    string    `json:"borrowerId"`
	Timestamp     time.Time `json:"timestamp"`

	Features   FeatureVector     `json:"features"`
	Scoring    ScoringReport     `json:"scoring"`
	Risk       RiskReport        `json:"risk"`
	Decision   Decision          `json:"decision"`
	Compliance ComplianceReport  `json:"compliance"`
	Signals    PredictiveSignals `json:"signals"`

	OverlayFlags []OverlayFlag `json:"overlayFlags,omitempty"`

	Metadata EvaluationMetadata `json:"metadata"`
}
