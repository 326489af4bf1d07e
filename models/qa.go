package models

import (
	"time"

	"github.com/google/uuid"
)

// TestSeverity ranks the impact of a quality test failure
type TestSeverity string

const (
	SeverityLow      TestSeverity = "low"
	SeverityMedium   TestSeverity = "medium"
	SeverityHigh     TestSeverity = "high"
	SeverityCritical TestSeverity = "critical"
)

// TestStatus is the outcome of one quality test execution
type TestStatus string

const (
	TestPassed  TestStatus = "passed"
	TestFailed  TestStatus = "failed"
	TestError   TestStatus = "error"
	TestSkipped TestStatus = "skipped"
)

// TestResult records one execution attempt sequence of a quality test
type TestResult struct {
	ResultID      uuid.UUID    `json:"result_id" db:"result_id"`
	TestID        string       `json:"test_id" db:"test_id"`
	TestName      string       `json:"test_name" db:"test_name"`
	Status        TestStatus   `json:"status" db:"status"`
	ExecutionTime float64      `json:"execution_time" db:"execution_time"`
	Message       string       `json:"message" db:"message"`
	Details       JSONBMap     `json:"details" db:"details"`
	Severity      TestSeverity `json:"severity" db:"severity"`
	Interface     string       `json:"interface_type" db:"interface_type"`
	RetryAttempt  int          `json:"retry_attempt" db:"retry_attempt"`
	Timestamp     time.Time    `json:"timestamp" db:"timestamp"`
}

// QualityReport summarizes one suite run
type QualityReport struct {
	ReportID      uuid.UUID    `json:"report_id" db:"report_id"`
	TestSuite     string       `json:"test_suite" db:"test_suite"`
	TotalTests    int          `json:"total_tests" db:"total_tests"`
	PassedTests   int          `json:"passed_tests" db:"passed_tests"`
	FailedTests   int          `json:"failed_tests" db:"failed_tests"`
	ErrorTests    int          `json:"error_tests" db:"error_tests"`
	SkippedTests  int          `json:"skipped_tests" db:"skipped_tests"`
	ExecutionTime float64      `json:"execution_time" db:"execution_time"`
	QualityScore  float64      `json:"quality_score" db:"quality_score"`
	Results       []TestResult `json:"results" db:"-"`
	Timestamp     time.Time    `json:"timestamp" db:"timestamp"`
}

// SuccessRate returns the fraction of tests that passed
func (r QualityReport) SuccessRate() float64 {
	if r.TotalTests == 0 {
		return 0.0
	}
	return float64(r.PassedTests) / float64(r.TotalTests)
}

// RemediationRecord logs one automated remediation attempt and its outcome
type RemediationRecord struct {
	ActionID    uuid.UUID `json:"action_id" db:"action_id"`
	IssueType   string    `json:"issue_type" db:"issue_type"`
	Description string    `json:"issue_description" db:"issue_description"`
	Action      string    `json:"remediation_action" db:"remediation_action"`
	Success     bool      `json:"success" db:"success"`
	Timestamp   time.Time `json:"timestamp" db:"timestamp"`
}

// QASummary is the read-side rollup of recent QA activity
type QASummary struct {
	LatestQualityScore     float64            `json:"latest_quality_score"`
	LatestReportTime       *time.Time         `json:"latest_report_time,omitempty"`
	StatusCounts24h        map[string]int64   `json:"test_results_24h"`
	TestsRegistered        int                `json:"total_tests_registered"`
	ContinuousRunning      bool               `json:"continuous_qa_running"`
	RemediationAttempts    int64              `json:"remediation_attempts_24h"`
	SuccessfulRemediations int64              `json:"successful_remediations_24h"`
	LastUpdated            time.Time          `json:"last_updated"`
}
