package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of interaction an event records
type EventType string

const (
	EventCallStart  EventType = "call_start"
	EventStoryBegin EventType = "story_begin"
	EventPause      EventType = "pause"
	EventSkip       EventType = "skip"
	EventReplay     EventType = "replay"
	EventCompletion EventType = "completion"
	EventCallEnd    EventType = "call_end"
)

// KnownEventTypes lists every event type the pipeline accepts
var KnownEventTypes = []EventType{
	EventCallStart, EventStoryBegin, EventPause, EventSkip,
	EventReplay, EventCompletion, EventCallEnd,
}

// IsKnownEventType reports whether t is one of the accepted event types
func IsKnownEventType(t EventType) bool {
	for _, known := range KnownEventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Event is a single interaction event. Immutable once flushed; Verified is
// set exactly once, before persistence.
type Event struct {
	EventID   uuid.UUID `json:"event_id" db:"event_id"`
	SessionID string    `json:"session_id" db:"session_id"`
	SubjectID string    `json:"subject_id" db:"subject_id"`
	EventType EventType `json:"event_type" db:"event_type"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Metadata  JSONBMap  `json:"metadata" db:"metadata"`
	Verified  bool      `json:"verified" db:"verified"`
}

// Metric is one system health sample. Append-only, never mutated.
type Metric struct {
	Name      string    `json:"name" db:"metric_name"`
	Value     float64   `json:"value" db:"metric_value"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Interface string    `json:"interface" db:"interface_type"`
}

// ValidationRecord is one audit-trail entry for a validation verdict
type ValidationRecord struct {
	ValidationID uuid.UUID  `json:"validation_id" db:"validation_id"`
	DataType     string     `json:"data_type" db:"data_type"`
	DataID       string     `json:"data_id" db:"data_id"`
	IsValid      bool       `json:"is_valid" db:"validation_result"`
	Confidence   float64    `json:"confidence_score" db:"confidence_score"`
	Errors       StringList `json:"errors" db:"errors"`
	Timestamp    time.Time  `json:"timestamp" db:"timestamp"`
}

// SubjectProfile holds per-subject behavior state used for orphan detection
// and trust scoring
type SubjectProfile struct {
	SubjectID        string    `json:"subject_id" db:"subject_id"`
	PreferredLength  float64   `json:"preferred_story_length" db:"preferred_story_length"`
	AttentionSpan    float64   `json:"attention_span_score" db:"attention_span_score"`
	TrustScore       float64   `json:"trust_score" db:"trust_score"`
	LastValidatedAt  time.Time `json:"last_validated" db:"last_validated"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// StoryPerformance aggregates request/completion counters per story
type StoryPerformance struct {
	StoryID          int64     `json:"story_id" db:"story_id"`
	Title            string    `json:"title" db:"title"`
	TotalRequests    int64     `json:"total_requests" db:"total_requests"`
	TotalCompletions int64     `json:"total_completions" db:"total_completions"`
	CompletionRate   float64   `json:"avg_completion_rate" db:"avg_completion_rate"`
	QualityScore     float64   `json:"quality_score" db:"quality_score"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// HealthSummary aggregates metrics and validation logs over a trailing window
type HealthSummary struct {
	InterfaceHealth       map[string]float64 `json:"interface_health"`
	ValidationRate        float64            `json:"validation_rate"`
	AverageConfidence     float64            `json:"average_confidence"`
	EventVerificationRate float64            `json:"event_verification_rate"`
	LastUpdated           time.Time          `json:"last_updated"`
}

// IntegrityReport summarizes a durable-store consistency scan
type IntegrityReport struct {
	DatabaseConsistency bool      `json:"database_consistency"`
	OrphanedEvents      int64     `json:"orphaned_events"`
	ValidationCoverage  float64   `json:"validation_coverage"`
	LastVerified        time.Time `json:"last_verified"`
}
