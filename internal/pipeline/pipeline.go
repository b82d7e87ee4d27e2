// Package pipeline orchestrates the underwriting stages: collect,
// derive features, score, assess risk, decide, check compliance. Each
// stage is a pure function; the engine owns sequencing, tracing, and
// the error taxonomy.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/merlin/internal/collector"
	"github.com/opensource-finance/merlin/internal/compliance"
	"github.com/opensource-finance/merlin/internal/decision"
	"github.com/opensource-finance/merlin/internal/domain"
	"github.com/opensource-finance/merlin/internal/features"
	"github.com/opensource-finance/merlin/internal/overlay"
	"github.com/opensource-finance/merlin/internal/predictive"
	"github.com/opensource-finance/merlin/internal/risk"
	"github.com/opensource-finance/merlin/internal/scoring"
)

// Version identifies the decisioning logic revision stamped on every
// evaluation.
const Version = "1.0.0"

// Engine runs the underwriting pipeline. Safe for concurrent use:
// stage functions are pure and the engine holds no per-run state.
type Engine struct {
	policy   domain.PolicyConfig
	provider domain.FinancialDataProvider
	overlay  *overlay.Engine
	tracer   trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithProvider sets the financial data collaborator used to fetch
// verified summaries when the request does not carry one.
func WithProvider(p domain.FinancialDataProvider) Option {
	return func(e *Engine) { e.provider = p }
}

// WithOverlay attaches the advisory overlay rule engine.
func WithOverlay(o *overlay.Engine) Option {
	return func(e *Engine) { e.overlay = o }
}

// NewEngine validates the policy and builds a pipeline engine. An
// invalid policy fails construction before any application can run.
func NewEngine(policy domain.PolicyConfig, opts ...Option) (*Engine, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		policy: policy,
		tracer: otel.Tracer("merlin-pipeline"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Request is one underwriting invocation.
type Request struct {
	TenantID      string
	ApplicationID string

	// Raw is the intake payload.
	Raw domain.RawApplication

	// Policy overrides the engine policy for this run (per-tenant
	// thresholds). Nil uses the engine default.
	Policy *domain.PolicyConfig

	// Summary short-circuits the financial data fetch. Nil means the
	// engine's provider is consulted, if one is configured.
	Summary *domain.FinancialSummary
}

// Underwrite runs the full pipeline for one application. On success
// the returned evaluation carries all four reports plus the advisory
// signals, so downstream consumers never re-compute.
//
// Error taxonomy: *domain.ValidationError when intake validation
// fails, an error wrapping domain.ErrDependency when the financial
// data fetch fails, *domain.ConfigurationError for a bad per-request
// policy. No partial evaluation is ever returned alongside an error.
func (e *Engine) Underwrite(ctx context.Context, req *Request) (*domain.Evaluation, error) {
	ctx, span := e.tracer.Start(ctx, "pipeline.underwrite")
	defer span.End()

	started := time.Now()

	policy := e.policy
	if req.Policy != nil {
		if err := req.Policy.Validate(); err != nil {
			return nil, err
		}
		policy = *req.Policy
	}

	// Collect.
	collectStart := time.Now()
	rec := collector.Collect(req.Raw, req.Summary)
	if rec.ExternalSummary == nil && e.provider != nil {
		summary, err := e.fetchSummary(ctx, rec.Personal.ID)
		if err != nil {
			return nil, err
		}
		rec.ExternalSummary = summary
	}
	if result := collector.Validate(rec); !result.Valid {
		return nil, &domain.ValidationError{Errors: result.Errors}
	}
	collectMs := time.Since(collectStart).Milliseconds()

	// Features.
	featuresStart := time.Now()
	fv := e.runFeatures(ctx, rec)
	featuresMs := time.Since(featuresStart).Milliseconds()

	// Score.
	scoringStart := time.Now()
	scoringReport := e.runScoring(ctx, fv)
	scoringMs := time.Since(scoringStart).Milliseconds()

	// Risk.
	riskStart := time.Now()
	riskReport := e.runRisk(ctx, fv, scoringReport.CreditScore)
	riskMs := time.Since(riskStart).Milliseconds()

	// Decide.
	decisionStart := time.Now()
	dec := e.runDecision(ctx, scoringReport.CreditScore, riskReport, fv, policy)
	decisionMs := time.Since(decisionStart).Milliseconds()

	// Compliance.
	complianceStart := time.Now()
	complianceReport := e.runCompliance(ctx, fv, dec)
	complianceMs := time.Since(complianceStart).Milliseconds()

	// Advisory outputs. Neither feeds back into the decision.
	signals := predictive.Generate(fv, scoringReport.CreditScore, dec)

	var flags []domain.OverlayFlag
	if e.overlay != nil {
		flags = e.overlay.Evaluate(fv, dec.Recommendation)
	}

	eval := &domain.Evaluation{
		ID:            uuid.New().String(),
		TenantID:      req.TenantID,
		ApplicationID: req.ApplicationID,
		BorrowerID:    rec.Personal.ID,
		Timestamp:     time.Now().UTC(),
		Features:      *fv,
		Scoring:       *scoringReport,
		Risk:          *riskReport,
		Decision:      *dec,
		Compliance:    *complianceReport,
		Signals:       *signals,
		OverlayFlags:  flags,
		Metadata: domain.EvaluationMetadata{
			TraceID:       span.SpanContext().TraceID().String(),
			CollectMs:     collectMs,
			FeaturesMs:    featuresMs,
			ScoringMs:     scoringMs,
			RiskMs:        riskMs,
			DecisionMs:    decisionMs,
			ComplianceMs:  complianceMs,
			TotalMs:       time.Since(started).Milliseconds(),
			EngineVersion: Version,
		},
	}
	return eval, nil
}

func (e *Engine) fetchSummary(ctx context.Context, borrowerID string) (*domain.FinancialSummary, error) {
	ctx, span := e.tracer.Start(ctx, "pipeline.fetch_summary")
	defer span.End()

	summary, err := e.provider.FetchSummary(ctx, borrowerID)
	if err != nil {
		return nil, fmt.Errorf("financial data fetch for %s: %w: %w", borrowerID, domain.ErrDependency, err)
	}
	return summary, nil
}

func (e *Engine) runFeatures(ctx context.Context, rec *domain.BorrowerRecord) *domain.FeatureVector {
	_, span := e.tracer.Start(ctx, "pipeline.features")
	defer span.End()
	return features.Derive(rec)
}

func (e *Engine) runScoring(ctx context.Context, fv *domain.FeatureVector) *domain.ScoringReport {
	_, span := e.tracer.Start(ctx, "pipeline.scoring")
	defer span.End()
	return scoring.Score(fv)
}

func (e *Engine) runRisk(ctx context.Context, fv *domain.FeatureVector, creditScore int) *domain.RiskReport {
	_, span := e.tracer.Start(ctx, "pipeline.risk")
	defer span.End()
	return risk.Assess(fv, creditScore, fv.Segment, fv.LoanAmount)
}

func (e *Engine) runDecision(ctx context.Context, creditScore int, riskReport *domain.RiskReport, fv *domain.FeatureVector, policy domain.PolicyConfig) *domain.Decision {
	_, span := e.tracer.Start(ctx, "pipeline.decision")
	defer span.End()
	return decision.Decide(creditScore, riskReport, fv, policy)
}

func (e *Engine) runCompliance(ctx context.Context, fv *domain.FeatureVector, dec *domain.Decision) *domain.ComplianceReport {
	_, span := e.tracer.Start(ctx, "pipeline.compliance")
	defer span.End()
	return compliance.Check(fv, dec)
}

// Policy returns the engine's default policy.
func (e *Engine) Policy() domain.PolicyConfig {
	return e.policy
}
