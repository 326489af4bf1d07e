package migration

import (
	"context"

	"veripipe/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createEventTables(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create event tables")
	}

	if err := r.createMetricTables(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create metric tables")
	}

	if err := r.createQATables(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create qa tables")
	}

	if err := r.createRealtimeTables(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create realtime tables")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createEventTables(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS call_events (
			event_id UUID PRIMARY KEY,
			session_id TEXT NOT NULL,
			subject_id TEXT NOT NULL,
			event_type VARCHAR(50) NOT NULL,
			timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
			metadata JSONB,
			verified BOOLEAN DEFAULT TRUE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS subject_profiles (
			subject_id TEXT PRIMARY KEY,
			preferred_story_length DECIMAL DEFAULT 300.0,
			attention_span_score DECIMAL DEFAULT 5.0,
			trust_score DECIMAL DEFAULT 1.0,
			last_validated TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS story_performance (
			story_id BIGINT PRIMARY KEY,
			title TEXT NOT NULL,
			total_requests BIGINT DEFAULT 0,
			total_completions BIGINT DEFAULT 0,
			avg_completion_rate DECIMAL DEFAULT 0.0,
			quality_score DECIMAL DEFAULT 0.0,
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createMetricTables(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS system_health (
			metric_name TEXT NOT NULL,
			metric_value DOUBLE PRECISION NOT NULL,
			timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
			interface_type VARCHAR(50) NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS validation_log (
			validation_id UUID PRIMARY KEY,
			data_type VARCHAR(50) NOT NULL,
			data_id TEXT NOT NULL,
			validation_result BOOLEAN,
			confidence_score DOUBLE PRECISION,
			errors JSONB,
			timestamp TIMESTAMP WITH TIME ZONE NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createQATables(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS qa_test_results (
			result_id UUID PRIMARY KEY,
			test_id TEXT NOT NULL,
			test_name TEXT NOT NULL,
			status VARCHAR(20) NOT NULL,
			execution_time DOUBLE PRECISION,
			message TEXT,
			details JSONB,
			severity VARCHAR(20),
			interface_type VARCHAR(50),
			retry_attempt INTEGER DEFAULT 0,
			timestamp TIMESTAMP WITH TIME ZONE NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS qa_reports (
			report_id UUID PRIMARY KEY,
			test_suite TEXT NOT NULL,
			total_tests INTEGER,
			passed_tests INTEGER,
			failed_tests INTEGER,
			error_tests INTEGER,
			skipped_tests INTEGER,
			quality_score DOUBLE PRECISION,
			execution_time DOUBLE PRECISION,
			timestamp TIMESTAMP WITH TIME ZONE NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS qa_remediation_log (
			action_id UUID PRIMARY KEY,
			issue_type TEXT NOT NULL,
			issue_description TEXT,
			remediation_action TEXT,
			success BOOLEAN,
			timestamp TIMESTAMP WITH TIME ZONE NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createRealtimeTables(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS realtime_alerts (
			alert_id UUID PRIMARY KEY,
			level VARCHAR(20) NOT NULL,
			title TEXT NOT NULL,
			message TEXT NOT NULL,
			interface VARCHAR(50) NOT NULL,
			metadata JSONB,
			timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
			acknowledged BOOLEAN DEFAULT FALSE,
			resolved_at TIMESTAMP WITH TIME ZONE
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS verification_events (
			id BIGSERIAL PRIMARY KEY,
			event_id UUID NOT NULL,
			data_type VARCHAR(50) NOT NULL,
			data_payload JSONB NOT NULL,
			verification_status VARCHAR(20) NOT NULL,
			confidence_score DOUBLE PRECISION,
			processing_time_ms DOUBLE PRECISION,
			timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
			alerts_triggered JSONB
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS realtime_metrics (
			metric_name TEXT NOT NULL,
			metric_value DOUBLE PRECISION NOT NULL,
			timestamp TIMESTAMP WITH TIME ZONE NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_events_session ON call_events(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_verified ON call_events(verified)`,
		`CREATE INDEX IF NOT EXISTS idx_events_created ON call_events(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_health_interface ON system_health(interface_type)`,
		`CREATE INDEX IF NOT EXISTS idx_health_timestamp ON system_health(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_validation_type ON validation_log(data_type)`,
		`CREATE INDEX IF NOT EXISTS idx_qa_results_test ON qa_test_results(test_id)`,
		`CREATE INDEX IF NOT EXISTS idx_qa_results_status ON qa_test_results(status)`,
		`CREATE INDEX IF NOT EXISTS idx_qa_results_timestamp ON qa_test_results(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_level ON realtime_alerts(level)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_timestamp ON realtime_alerts(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_verification_status ON verification_events(verification_status)`,
		`CREATE INDEX IF NOT EXISTS idx_verification_event ON verification_events(event_id)`,
		`CREATE INDEX IF NOT EXISTS idx_rt_metrics_name ON realtime_metrics(metric_name)`,
	}

	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
