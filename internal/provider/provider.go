// Package provider supplies FinancialDataProvider implementations for
// the account aggregator boundary.
package provider

import (
	"context"
	"fmt"

	"github.com/opensource-finance/merlin/internal/domain"
)

// Func adapts a plain function to the FinancialDataProvider interface.
type Func func(ctx context.Context, borrowerID string) (*domain.FinancialSummary, error)

func (f Func) FetchSummary(ctx context.Context, borrowerID string) (*domain.FinancialSummary, error) {
	return f(ctx, borrowerID)
}

// Static serves per-borrower fixtures. Borrowers without a fixture get
// the not-yet-banked summary. Used in tests and demo deployments.
type Static struct {
	Summaries map[string]*domain.FinancialSummary
}

func NewStatic(summaries map[string]*domain.FinancialSummary) *Static {
	return &Static{Summaries: summaries}
}

func (s *Static) FetchSummary(ctx context.Context, borrowerID string) (*domain.FinancialSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch summary for %s: %w", borrowerID, domain.ErrDependency)
	}
	if summary, ok := s.Summaries[borrowerID]; ok {
		return summary, nil
	}
	return NotYetBanked(), nil
}

// NotYetBanked returns the zero-valued summary for borrowers without
// verified banking data.
func NotYetBanked() *domain.FinancialSummary {
	return &domain.FinancialSummary{Banked: false}
}
