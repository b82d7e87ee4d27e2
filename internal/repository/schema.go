package repository

// Schema definitions for the Merlin database.
// Compatible with both SQLite and PostgreSQL.

// AllSchemas returns the DDL statements run at startup.
func AllSchemas() []string {
	return []string{
		applicationsSchema,
		evaluationsSchema,
		overlayRulesSchema,
		policiesSchema,
	}
}

const applicationsSchema = `
CREATE TABLE IF NOT EXISTS applications (
	id          TEXT NOT NULL PRIMARY KEY,
	tenant_id   TEXT NOT NULL,
	borrower_id TEXT NOT NULL,
	raw         TEXT,
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_applications_tenant ON applications (tenant_id);
CREATE INDEX IF NOT EXISTS idx_applications_borrower ON applications (tenant_id, borrower_id);
`

const evaluationsSchema = `
CREATE TABLE IF NOT EXISTS evaluations (
	id             TEXT NOT NULL PRIMARY KEY,
	tenant_id      TEXT NOT NULL,
	application_id TEXT NOT NULL,
	borrower_id    TEXT NOT NULL,
	recommendation TEXT NOT NULL,
	credit_score   INTEGER NOT NULL,
	timestamp      TIMESTAMP NOT NULL,
	features       TEXT,
	scoring        TEXT,
	risk           TEXT,
	decision       TEXT,
	compliance     TEXT,
	signals        TEXT,
	overlay_flags  TEXT,
	metadata       TEXT
);
CREATE INDEX IF NOT EXISTS idx_evaluations_tenant ON evaluations (tenant_id);
CREATE INDEX IF NOT EXISTS idx_evaluations_borrower ON evaluations (tenant_id, borrower_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_evaluations_recommendation ON evaluations (tenant_id, recommendation);
`

const overlayRulesSchema = `
CREATE TABLE IF NOT EXISTS overlay_rules (
	id          TEXT NOT NULL,
	tenant_id   TEXT NOT NULL,
	name        TEXT NOT NULL,
	description TEXT,
	expression  TEXT NOT NULL,
	severity    TEXT NOT NULL,
	enabled     INTEGER NOT NULL DEFAULT 1,
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL,
	PRIMARY KEY (id, tenant_id)
);
CREATE INDEX IF NOT EXISTS idx_overlay_rules_tenant ON overlay_rules (tenant_id, enabled);
`

const policiesSchema = `
CREATE TABLE IF NOT EXISTS policies (
	tenant_id  TEXT NOT NULL PRIMARY KEY,
	thresholds TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
`
