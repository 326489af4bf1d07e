package models

import (
	"time"

	"github.com/google/uuid"
)

// AlertLevel ranks alert severity
type AlertLevel string

const (
	AlertInfo     AlertLevel = "info"
	AlertWarning  AlertLevel = "warning"
	AlertError    AlertLevel = "error"
	AlertCritical AlertLevel = "critical"
)

// AlertState is the lifecycle state of a raised alert. Transitions are
// monotonic: TRIGGERED -> ACKNOWLEDGED -> RESOLVED.
type AlertState string

const (
	AlertTriggered    AlertState = "TRIGGERED"
	AlertAcknowledged AlertState = "ACKNOWLEDGED"
	AlertResolved     AlertState = "RESOLVED"
)

// Alert is a raised threshold condition with a defined lifecycle
type Alert struct {
	AlertID      uuid.UUID  `json:"alert_id" db:"alert_id"`
	Level        AlertLevel `json:"level" db:"level"`
	Title        string     `json:"title" db:"title"`
	Message      string     `json:"message" db:"message"`
	Interface    string     `json:"interface" db:"interface"`
	Metadata     JSONBMap   `json:"metadata" db:"metadata"`
	Timestamp    time.Time  `json:"timestamp" db:"timestamp"`
	State        AlertState `json:"state" db:"-"`
	Acknowledged bool       `json:"acknowledged" db:"acknowledged"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
}

// VerificationStatus is the outcome of a realtime verification pass
type VerificationStatus string

const (
	VerificationVerified VerificationStatus = "verified"
	VerificationPending  VerificationStatus = "pending"
	VerificationFailed   VerificationStatus = "failed"
	VerificationTimeout  VerificationStatus = "timeout"
)

// VerificationEvent is one fast-path verdict, possibly superseded by a
// deep-path record carrying the same event id. Status is set exactly once;
// a correction produces a new record referencing the same EventID.
type VerificationEvent struct {
	EventID         uuid.UUID          `json:"event_id" db:"event_id"`
	DataType        string             `json:"data_type" db:"data_type"`
	Payload         JSONBMap           `json:"payload" db:"data_payload"`
	Status          VerificationStatus `json:"status" db:"verification_status"`
	Confidence      float64            `json:"confidence_score" db:"confidence_score"`
	ProcessingMs    float64            `json:"processing_time_ms" db:"processing_time_ms"`
	Timestamp       time.Time          `json:"timestamp" db:"timestamp"`
	AlertsTriggered StringList         `json:"alerts_triggered" db:"alerts_triggered"`
}

// VerificationMetrics is the rolling read-side aggregate for a time window
type VerificationMetrics struct {
	WindowMinutes       int       `json:"time_window_minutes"`
	TotalVerifications  int       `json:"total_verifications"`
	Successful          int       `json:"successful_verifications"`
	Failed              int       `json:"failed_verifications"`
	SuccessRate         float64   `json:"success_rate"`
	AvgProcessingMs     float64   `json:"avg_processing_time_ms"`
	AvgConfidence       float64   `json:"avg_confidence_score"`
	AlertsTriggered     int       `json:"alerts_triggered"`
	LastUpdated         time.Time `json:"last_updated"`
}

// SystemStatus is the composite health verdict exposed outward
type SystemStatus struct {
	OverallHealth    float64   `json:"overall_health"`
	VerificationRate float64   `json:"verification_rate"`
	QualityScore     float64   `json:"quality_score"`
	ActiveAlerts     int       `json:"active_alerts"`
	LastCheck        time.Time `json:"last_check"`
}

// IsHealthy reports whether the composite health clears the 0.9 floor
func (s SystemStatus) IsHealthy() bool {
	return s.OverallHealth >= 0.9
}
