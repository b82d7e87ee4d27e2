package domain

import "context"

// FinancialDataProvider resolves a borrower's verified financial
// summary from an external source (bank aggregator, bureau feed).
// Implementations return ErrDependency-wrapped errors on transport
// failures, and a summary with Banked=false for unbanked borrowers.
type FinancialDataProvider interface {
	FetchSummary(ctx context.Context, borrowerID string) (*FinancialSummary, error)
}
