package models

import "time"

// Validity thresholds. Both are fixed constants; the QA harness scores
// severity separately and neither supersedes the other.
const (
	MinSuccessRate = 0.95
	MinConfidence  = 0.80
)

// ValidationReport is the verdict of a single validate() call. Derived,
// never persisted mutably.
type ValidationReport struct {
	Interface    string    `json:"interface"`
	DataType     string    `json:"data_type"`
	TotalChecks  int       `json:"total_checks"`
	PassedChecks int       `json:"passed_checks"`
	FailedChecks int       `json:"failed_checks"`
	Confidence   float64   `json:"confidence_score"`
	Errors       []string  `json:"errors"`
	Warnings     []string  `json:"warnings"`
	Timestamp    time.Time `json:"timestamp"`
}

// SuccessRate returns the fraction of checks that passed
func (r ValidationReport) SuccessRate() float64 {
	if r.TotalChecks == 0 {
		return 0.0
	}
	return float64(r.PassedChecks) / float64(r.TotalChecks)
}

// IsValid reports whether the payload passed validation. Both thresholds
// must hold.
func (r ValidationReport) IsValid() bool {
	return r.SuccessRate() >= MinSuccessRate && r.Confidence >= MinConfidence
}

// SystemValidationReport aggregates per-interface validation verdicts plus
// the cross-interface consistency check into one system-wide view.
type SystemValidationReport struct {
	Reports            map[string]ValidationReport `json:"interface_reports"`
	OverallSuccessRate float64                     `json:"overall_success_rate"`
	OverallConfidence  float64                     `json:"overall_confidence"`
	Healthy            bool                        `json:"is_system_healthy"`
	Level              string                      `json:"validation_level"`
	GeneratedAt        time.Time                   `json:"generated_at"`
}
