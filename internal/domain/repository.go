package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Application operations
	SaveApplication(ctx context.Context, tenantID string, app *Application) error
	GetApplication(ctx context.Context, tenantID string, appID string) (*Application, error)

	// Evaluation results
	SaveEvaluation(ctx context.Context, tenantID string, eval *Evaluation) error
	GetEvaluation(ctx context.Context, tenantID string, evalID string) (*Evaluation, error)
	ListEvaluationsByBorrower(ctx context.Context, tenantID string, borrowerID string, since time.Time) ([]*Evaluation, error)

	// Overlay rule operations
	SaveOverlayRule(ctx context.Context, tenantID string, rule *OverlayRule) error
	GetOverlayRule(ctx context.Context, tenantID string, ruleID string) (*OverlayRule, error)
	ListOverlayRules(ctx context.Context, tenantID string) ([]*OverlayRule, error)
	DeleteOverlayRule(ctx context.Context, tenantID string, ruleID string) error

	// Tenant policy operations
	SavePolicy(ctx context.Context, tenantID string, policy *PolicyConfig) error
	GetPolicy(ctx context.Context, tenantID string) (*PolicyConfig, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
