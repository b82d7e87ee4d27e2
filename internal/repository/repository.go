// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/merlin/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveApplication stores an intake application with tenant isolation.
func (r *SQLRepository) SaveApplication(ctx context.Context, tenantID string, app *domain.Application) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	raw, _ := json.Marshal(app.Raw)

	query := `
		INSERT INTO applications (
			id, tenant_id, borrower_id, raw, created_at
		) VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		app.ID, tenantID, app.BorrowerID, string(raw), app.CreatedAt,
	)
	return err
}

// GetApplication retrieves an application by ID with tenant isolation.
func (r *SQLRepository) GetApplication(ctx context.Context, tenantID string, appID string) (*domain.Application, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, borrower_id, raw, created_at
		FROM applications
		WHERE tenant_id = ? AND id = ?
	`

	var app domain.Application
	var raw string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, appID).Scan(
		&app.ID, &app.TenantID, &app.BorrowerID, &raw, &app.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if raw != "" {
		json.Unmarshal([]byte(raw), &app.Raw)
	}

	return &app, nil
}

// SaveEvaluation stores an evaluation with tenant isolation. The
// reports are stored as JSON columns so the audit trail carries the
// complete decision context without re-computation.
func (r *SQLRepository) SaveEvaluation(ctx context.Context, tenantID string, eval *domain.Evaluation) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	features, _ := json.Marshal(eval.Features)
	scoring, _ := json.Marshal(eval.Scoring)
	risk, _ := json.Marshal(eval.Risk)
	decision, _ := json.Marshal(eval.Decision)
	compliance, _ := json.Marshal(eval.Compliance)
	signals, _ := json.Marshal(eval.Signals)
	flags, _ := json.Marshal(eval.OverlayFlags)
	metadata, _ := json.Marshal(eval.Metadata)

	query := `
		INSERT INTO evaluations (
			id, tenant_id, application_id, borrower_id, recommendation,
			credit_score, timestamp, features, scoring, risk, decision,
			compliance, signals, overlay_flags, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		eval.ID, tenantID, eval.ApplicationID, eval.BorrowerID,
		eval.Decision.Recommendation, eval.Scoring.CreditScore, eval.Timestamp,
		string(features), string(scoring), string(risk), string(decision),
		string(compliance), string(signals), string(flags), string(metadata),
	)
	return err
}

// GetEvaluation retrieves an evaluation by ID with tenant isolation.
func (r *SQLRepository) GetEvaluation(ctx context.Context, tenantID string, evalID string) (*domain.Evaluation, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, application_id, borrower_id, timestamp,
			   features, scoring, risk, decision, compliance, signals,
			   overlay_flags, metadata
		FROM evaluations
		WHERE tenant_id = ? AND id = ?
	`

	eval, err := scanEvaluation(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, evalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return eval, err
}

// ListEvaluationsByBorrower retrieves a borrower's evaluations since a
// point in time, newest first.
func (r *SQLRepository) ListEvaluationsByBorrower(ctx context.Context, tenantID string, borrowerID string, since time.Time) ([]*domain.Evaluation, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, application_id, borrower_id, timestamp,
			   features, scoring, risk, decision, compliance, signals,
			   overlay_flags, metadata
		FROM evaluations
		WHERE tenant_id = ? AND borrower_id = ? AND timestamp >= ?
		ORDER BY timestamp DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, borrowerID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var evals []*domain.Evaluation
	for rows.Next() {
		eval, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		evals = append(evals, eval)
	}

	return evals, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvaluation(s scanner) (*domain.Evaluation, error) {
	var eval domain.Evaluation
	var features, scoring, risk, decision, compliance, signals, flags, metadata string

	err := s.Scan(
		&eval.ID, &eval.TenantID, &eval.ApplicationID, &eval.BorrowerID, &eval.Timestamp,
		&features, &scoring, &risk, &decision, &compliance, &signals,
		&flags, &metadata,
	)
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(features), &eval.Features)
	json.Unmarshal([]byte(scoring), &eval.Scoring)
	json.Unmarshal([]byte(risk), &eval.Risk)
	json.Unmarshal([]byte(decision), &eval.Decision)
	json.Unmarshal([]byte(compliance), &eval.Compliance)
	json.Unmarshal([]byte(signals), &eval.Signals)
	json.Unmarshal([]byte(flags), &eval.OverlayFlags)
	json.Unmarshal([]byte(metadata), &eval.Metadata)

	return &eval, nil
}

// SaveOverlayRule stores an overlay rule with tenant isolation.
func (r *SQLRepository) SaveOverlayRule(ctx context.Context, tenantID string, rule *domain.OverlayRule) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO overlay_rules (
			id, tenant_id, name, description, expression, severity, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			severity = excluded.severity,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description,
		rule.Expression, rule.Severity, enabled,
		now, now,
	)
	return err
}

// GetOverlayRule retrieves an enabled overlay rule with tenant isolation.
func (r *SQLRepository) GetOverlayRule(ctx context.Context, tenantID string, ruleID string) (*domain.OverlayRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, expression, severity, enabled, created_at, updated_at
		FROM overlay_rules
		WHERE tenant_id = ? AND id = ? AND enabled = 1
	`

	var rule domain.OverlayRule
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID).Scan(
		&rule.ID, &rule.TenantID, &rule.Name, &rule.Description,
		&rule.Expression, &rule.Severity, &enabled,
		&rule.CreatedAt, &rule.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rule.Enabled = enabled == 1
	return &rule, nil
}

// ListOverlayRules retrieves all enabled overlay rules for a tenant.
func (r *SQLRepository) ListOverlayRules(ctx context.Context, tenantID string) ([]*domain.OverlayRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, expression, severity, enabled, created_at, updated_at
		FROM overlay_rules
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.OverlayRule
	for rows.Next() {
		var rule domain.OverlayRule
		var enabled int

		if err := rows.Scan(
			&rule.ID, &rule.TenantID, &rule.Name, &rule.Description,
			&rule.Expression, &rule.Severity, &enabled,
			&rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, err
		}

		rule.Enabled = enabled == 1
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// DeleteOverlayRule soft-deletes an overlay rule by setting enabled = 0.
func (r *SQLRepository) DeleteOverlayRule(ctx context.Context, tenantID string, ruleID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		UPDATE overlay_rules
		SET enabled = 0, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), tenantID, ruleID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// SavePolicy stores a tenant's policy thresholds.
func (r *SQLRepository) SavePolicy(ctx context.Context, tenantID string, policy *domain.PolicyConfig) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	thresholds, _ := json.Marshal(policy)
	now := time.Now().UTC()

	query := `
		INSERT INTO policies (tenant_id, thresholds, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET
			thresholds = excluded.thresholds,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query), tenantID, string(thresholds), now)
	return err
}

// GetPolicy retrieves a tenant's policy thresholds.
func (r *SQLRepository) GetPolicy(ctx context.Context, tenantID string) (*domain.PolicyConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `SELECT thresholds FROM policies WHERE tenant_id = ?`

	var thresholds string
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID).Scan(&thresholds)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var policy domain.PolicyConfig
	if err := json.Unmarshal([]byte(thresholds), &policy); err != nil {
		return nil, fmt.Errorf("failed to parse policy thresholds: %w", err)
	}
	return &policy, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
