// Package overlay provides the CEL-based advisory rule engine. Lender
// rules run after the gate sequence and only raise review flags; they
// never change the recommendation.
package overlay

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/merlin/internal/domain"
)

// Engine compiles and evaluates lender overlay rules.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.OverlayRule
	Program cel.Program
}

// NewEngine creates an overlay rule engine. Expressions see the flat
// feature map variables plus the decision recommendation.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("features", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("recommendation", cel.StringType),
		cel.Variable("age", cel.IntType),
		cel.Variable("segment", cel.StringType),
		cel.Variable("monthly_income", cel.DoubleType),
		cel.Variable("monthly_expenses", cel.DoubleType),
		cel.Variable("existing_emi", cel.DoubleType),
		cel.Variable("savings", cel.DoubleType),
		cel.Variable("loan_amount", cel.DoubleType),
		cel.Variable("loan_tenure", cel.IntType),
		cel.Variable("requested_emi", cel.DoubleType),
		cel.Variable("dti_ratio", cel.DoubleType),
		cel.Variable("savings_rate", cel.DoubleType),
		cel.Variable("repayment_capacity", cel.DoubleType),
		cel.Variable("loan_to_income", cel.DoubleType),
		cel.Variable("collateral_coverage", cel.DoubleType),
		cel.Variable("bureau_score", cel.IntType),
		cel.Variable("credit_history", cel.IntType),
		cel.Variable("digital_score", cel.DoubleType),
		cel.Variable("trust_score", cel.DoubleType),
		cel.Variable("psychometric_score", cel.DoubleType),
		cel.Variable("income_stability", cel.DoubleType),
		cel.Variable("transaction_frequency", cel.IntType),
		cel.Variable("upi_transaction_count", cel.IntType),
		cel.Variable("bounce_events", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
	}, nil
}

// ValidateRule compiles a rule without loading it.
func (e *Engine) ValidateRule(cfg *domain.OverlayRule) error {
	if cfg == nil {
		return fmt.Errorf("overlay rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.OverlayRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled
	return nil
}

// LoadRules compiles and loads every enabled rule.
func (e *Engine) LoadRules(configs []*domain.OverlayRule) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules atomically replaces the loaded rule set. Enables
// hot-reloading from the repository.
func (e *Engine) ReloadRules(configs []*domain.OverlayRule) error {
	newRules := make(map[string]*CompiledRule)

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules
	return nil
}

// Evaluate runs every loaded rule against the feature vector and the
// decision recommendation. Flags come back ordered by rule ID so
// evaluations are reproducible.
func (e *Engine) Evaluate(fv *domain.FeatureVector, recommendation string) []domain.OverlayFlag {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil
	}

	sort.Slice(rules, func(i, j int) bool {
		return rules[i].Config.ID < rules[j].Config.ID
	})

	activation := fv.ToMap()
	activation["features"] = fv.ToMap()
	activation["recommendation"] = recommendation

	var flags []domain.OverlayFlag
	for _, rule := range rules {
		out, _, err := rule.Program.Eval(activation)
		if err != nil {
			continue
		}
		if triggered, ok := out.(types.Bool); ok && bool(triggered) {
			flags = append(flags, domain.OverlayFlag{
				RuleID:   rule.Config.ID,
				Name:     rule.Config.Name,
				Severity: rule.Config.Severity,
				Reason:   rule.Config.Description,
			})
		}
	}
	return flags
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// LoadedRules returns the currently loaded rule configurations.
func (e *Engine) LoadedRules() []*domain.OverlayRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.OverlayRule, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Config)
	}
	return rules
}

// Close clears the loaded rule set.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(cfg *domain.OverlayRule) (*CompiledRule, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile overlay rule %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("overlay rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for overlay rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
