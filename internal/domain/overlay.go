package domain

import "time"

// Overlay rule severities.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// OverlayRule is a lender-defined advisory rule evaluated against the
// feature vector after the gate sequence. Expression is a boolean CEL
// expression over the feature variables; a true result raises an
// OverlayFlag on the evaluation. Flags never change the recommendation.
type OverlayRule struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenantId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Expression  string    `json:"expression"`
	Severity    string    `json:"severity"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
