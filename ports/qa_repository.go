package ports

import (
	"context"
	"time"

	"veripipe/models"
)

// QARepository persists quality test results, reports and the remediation
// log. InsertReport writes the report row and every attached TestResult in
// one transaction.
type QARepository interface {
	InsertReport(ctx context.Context, report models.QualityReport) error
	InsertRemediation(ctx context.Context, record models.RemediationRecord) error

	StatusCounts(ctx context.Context, since time.Time) (map[string]int64, error)
	LatestReport(ctx context.Context) (*models.QualityReport, error)

	// RemediationStats returns (attempts, successes) after the cutoff.
	RemediationStats(ctx context.Context, since time.Time) (int64, int64, error)
}
