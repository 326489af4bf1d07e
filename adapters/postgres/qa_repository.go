package postgres

import (
	"context"
	"time"

	"veripipe/models"
	"veripipe/ports"

	"github.com/jmoiron/sqlx"
)

// QARepositoryImpl implements QARepository for PostgreSQL
type QARepositoryImpl struct {
	db *sqlx.DB
}

// NewQARepository creates a new PostgreSQL QA repository
func NewQARepository(db *sqlx.DB) ports.QARepository {
	return &QARepositoryImpl{db: db}
}

// InsertReport persists the report row and every attached TestResult in one
// transaction so a partially visible suite run can never be read back.
func (r *QARepositoryImpl) InsertReport(ctx context.Context, report models.QualityReport) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO qa_reports (report_id, test_suite, total_tests, passed_tests, failed_tests, error_tests, skipped_tests, quality_score, execution_time, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, report.ReportID, report.TestSuite, report.TotalTests, report.PassedTests, report.FailedTests,
		report.ErrorTests, report.SkippedTests, report.QualityScore, report.ExecutionTime, report.Timestamp)
	if err != nil {
		return err
	}

	for _, result := range report.Results {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO qa_test_results (result_id, test_id, test_name, status, execution_time, message, details, severity, interface_type, retry_attempt, timestamp)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, result.ResultID, result.TestID, result.TestName, result.Status, result.ExecutionTime,
			result.Message, result.Details, result.Severity, result.Interface, result.RetryAttempt, result.Timestamp)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// InsertRemediation logs one remediation attempt with its outcome
func (r *QARepositoryImpl) InsertRemediation(ctx context.Context, record models.RemediationRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO qa_remediation_log (action_id, issue_type, issue_description, remediation_action, success, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, record.ActionID, record.IssueType, record.Description, record.Action, record.Success, record.Timestamp)
	return err
}

// StatusCounts returns test result counts per status after the cutoff
func (r *QARepositoryImpl) StatusCounts(ctx context.Context, since time.Time) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*) AS count
		FROM qa_test_results
		WHERE timestamp > $1
		GROUP BY status
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// LatestReport returns the most recent quality report, or (nil, nil) when
// none has been stored yet
func (r *QARepositoryImpl) LatestReport(ctx context.Context) (*models.QualityReport, error) {
	var report models.QualityReport
	err := r.db.GetContext(ctx, &report, `
		SELECT report_id, test_suite, total_tests, passed_tests, failed_tests, error_tests, skipped_tests, quality_score, execution_time, timestamp
		FROM qa_reports
		ORDER BY timestamp DESC
		LIMIT 1
	`)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &report, nil
}

// RemediationStats returns (attempts, successes) after the cutoff
func (r *QARepositoryImpl) RemediationStats(ctx context.Context, since time.Time) (int64, int64, error) {
	var row struct {
		Attempts  int64 `db:"total_attempts"`
		Successes int64 `db:"successful"`
	}
	err := r.db.GetContext(ctx, &row, `
		SELECT
			COUNT(*) AS total_attempts,
			COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0) AS successful
		FROM qa_remediation_log
		WHERE timestamp > $1
	`, since)
	if err != nil {
		return 0, 0, err
	}
	return row.Attempts, row.Successes, nil
}
