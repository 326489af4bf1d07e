package eventstore

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"veripipe/internal/errors"
	"veripipe/models"
	"veripipe/ports"
)

// Validator produces a verdict for a payload on a named interface. The
// validation engine satisfies this; the store depends on the interface so
// the two can be wired in either order at startup.
type Validator interface {
	Validate(ctx context.Context, interfaceType string, payload map[string]interface{}) models.ValidationReport
}

// Store is the buffered ingestion layer for events and health metrics.
// Events accumulate in memory and flush to the repository in one
// transaction once the buffer reaches the configured threshold. A failed
// flush keeps the buffer intact; nothing is dropped.
type Store struct {
	events        ports.EventRepository
	metrics       ports.MetricRepository
	validationLog ports.ValidationLogRepository
	profiles      ports.ProfileRepository
	stories       ports.StoryPerformanceRepository

	flushThreshold    int
	validationEnabled bool

	mu        sync.Mutex
	buffer    []models.Event
	validator Validator
}

// New builds a store over its repositories. The validator is attached
// separately via SetValidator because the engine needs the store first.
func New(
	events ports.EventRepository,
	metrics ports.MetricRepository,
	validationLog ports.ValidationLogRepository,
	profiles ports.ProfileRepository,
	stories ports.StoryPerformanceRepository,
	flushThreshold int,
	validationEnabled bool,
) *Store {
	if flushThreshold <= 0 {
		flushThreshold = 50
	}
	return &Store{
		events:            events,
		metrics:           metrics,
		validationLog:     validationLog,
		profiles:          profiles,
		stories:           stories,
		flushThreshold:    flushThreshold,
		validationEnabled: validationEnabled,
		buffer:            make([]models.Event, 0, flushThreshold),
	}
}

// SetValidator wires the validation engine in. Call once during startup,
// before the first TrackEvent.
func (s *Store) SetValidator(v Validator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validator = v
}

// TrackEvent validates and buffers one interaction event. The verified
// flag is set exactly once, here, before the event ever reaches storage.
// A full buffer triggers a flush; a flush failure is logged and retried
// on the next trigger rather than surfaced to the producer.
func (s *Store) TrackEvent(ctx context.Context, sessionID, subjectID string, eventType models.EventType, metadata map[string]interface{}) error {
	if sessionID == "" || subjectID == "" {
		return errors.InvalidInput("session_id and subject_id are required")
	}
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	event := models.Event{
		EventID:   uuid.New(),
		SessionID: sessionID,
		SubjectID: subjectID,
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Metadata:  models.JSONBMap(metadata),
		Verified:  true,
	}

	s.mu.Lock()
	validator := s.validator
	s.mu.Unlock()

	if s.validationEnabled && validator != nil {
		payload := map[string]interface{}{
			"session_id": sessionID,
			"subject_id": subjectID,
			"event_type": string(eventType),
			"timestamp":  event.Timestamp.Format(time.RFC3339),
			"metadata":   metadata,
			"data_type":  "interaction_event",
		}
		report := validator.Validate(ctx, "events", payload)
		event.Verified = report.IsValid()
		s.logValidation(ctx, event, report)
	}

	s.mu.Lock()
	s.buffer = append(s.buffer, event)
	shouldFlush := len(s.buffer) >= s.flushThreshold
	s.mu.Unlock()

	if shouldFlush {
		if err := s.Flush(ctx); err != nil {
			log.Printf("[EventStore] Flush failed, buffer retained: %v", err)
		}
	}

	if err := s.TrackSystemHealth(ctx, "event_tracked", 1.0, "events"); err != nil {
		log.Printf("[EventStore] Failed to record event_tracked: %v", err)
	}
	return nil
}

// Flush persists the whole buffer in one transaction. The buffer is
// cleared only after the write succeeds; on failure it is left untouched
// for the next attempt. A successful flush records the batch's
// verification rate.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.buffer) == 0 {
		return nil
	}

	if err := s.events.InsertEvents(ctx, s.buffer); err != nil {
		return errors.StorageError("failed to flush event buffer", err)
	}

	verified := 0
	for _, event := range s.buffer {
		if event.Verified {
			verified++
		}
	}
	rate := float64(verified) / float64(len(s.buffer))
	flushed := len(s.buffer)
	s.buffer = s.buffer[:0]

	if err := s.metrics.Insert(ctx, models.Metric{
		Name:      "event_verification_rate",
		Value:     rate,
		Timestamp: time.Now().UTC(),
		Interface: "events",
	}); err != nil {
		log.Printf("[EventStore] Failed to record verification rate: %v", err)
	}

	log.Printf("[EventStore] Flushed %d events (%.0f%% verified)", flushed, rate*100)
	return nil
}

// Buffered returns the current in-memory buffer length
func (s *Store) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffer)
}

// TrackSystemHealth appends one metric sample. The write either fully
// lands or the error surfaces to the caller.
func (s *Store) TrackSystemHealth(ctx context.Context, metricName string, value float64, interfaceType string) error {
	err := s.metrics.Insert(ctx, models.Metric{
		Name:      metricName,
		Value:     value,
		Timestamp: time.Now().UTC(),
		Interface: interfaceType,
	})
	if err != nil {
		return errors.StorageError("failed to record health metric "+metricName, err)
	}
	return nil
}

// HealthSummary aggregates metrics and validation logs over a trailing
// window. Zero window means the default last hour.
func (s *Store) HealthSummary(ctx context.Context, window time.Duration) (models.HealthSummary, error) {
	if window <= 0 {
		window = time.Hour
	}
	since := time.Now().UTC().Add(-window)

	summary := models.HealthSummary{
		InterfaceHealth:       map[string]float64{},
		ValidationRate:        1.0,
		AverageConfidence:     1.0,
		EventVerificationRate: 1.0,
		LastUpdated:           time.Now().UTC(),
	}

	averages, err := s.metrics.InterfaceAverages(ctx, since)
	if err != nil {
		return summary, errors.StorageError("failed to aggregate interface health", err)
	}
	summary.InterfaceHealth = averages

	valid, total, avgConfidence, err := s.validationLog.Stats(ctx, since)
	if err != nil {
		return summary, errors.StorageError("failed to aggregate validation stats", err)
	}
	if total > 0 {
		summary.ValidationRate = float64(valid) / float64(total)
	}
	summary.AverageConfidence = avgConfidence

	verified, totalEvents, err := s.events.VerificationCounts(ctx, since)
	if err != nil {
		return summary, errors.StorageError("failed to aggregate event verification", err)
	}
	if totalEvents > 0 {
		summary.EventVerificationRate = float64(verified) / float64(totalEvents)
	}

	return summary, nil
}

// VerifyIntegrity scans durable storage for orphaned events and computes
// validation coverage. It reports ratios and never raises; a storage
// failure shows up as database_consistency=false.
func (s *Store) VerifyIntegrity(ctx context.Context) models.IntegrityReport {
	report := models.IntegrityReport{
		DatabaseConsistency: true,
		ValidationCoverage:  1.0,
		LastVerified:        time.Now().UTC(),
	}

	orphaned, err := s.events.CountOrphaned(ctx)
	if err != nil {
		log.Printf("[EventStore] Integrity scan failed on orphan count: %v", err)
		report.DatabaseConsistency = false
		return report
	}
	report.OrphanedEvents = orphaned

	verified, total, err := s.events.CoverageCounts(ctx)
	if err != nil {
		log.Printf("[EventStore] Integrity scan failed on coverage: %v", err)
		report.DatabaseConsistency = false
		return report
	}
	if total > 0 {
		report.ValidationCoverage = float64(verified) / float64(total)
	}

	return report
}

// UpdateStoryPerformance folds one story request into the per-story
// rollup counters
func (s *Store) UpdateStoryPerformance(ctx context.Context, storyID int64, title string, completed bool) error {
	perf, err := s.stories.Get(ctx, storyID)
	if err != nil {
		return errors.StorageError("failed to load story performance", err)
	}
	if perf == nil {
		perf = &models.StoryPerformance{StoryID: storyID, Title: title}
	}

	perf.TotalRequests++
	if completed {
		perf.TotalCompletions++
	}
	perf.CompletionRate = float64(perf.TotalCompletions) / float64(perf.TotalRequests)
	perf.QualityScore = perf.CompletionRate * 1.2
	if perf.QualityScore > 1.0 {
		perf.QualityScore = 1.0
	}
	perf.UpdatedAt = time.Now().UTC()

	if err := s.stories.Save(ctx, perf); err != nil {
		return errors.StorageError("failed to save story performance", err)
	}
	return nil
}

// TrustScore returns a subject's accumulated trust score, defaulting to
// 1.0 for unknown subjects
func (s *Store) TrustScore(ctx context.Context, subjectID string) (float64, error) {
	profile, err := s.profiles.Get(ctx, subjectID)
	if err != nil {
		return 0, errors.StorageError("failed to load subject profile", err)
	}
	if profile == nil {
		return 1.0, nil
	}
	return profile.TrustScore, nil
}

// UpsertProfile writes a subject profile, stamping the update time
func (s *Store) UpsertProfile(ctx context.Context, profile *models.SubjectProfile) error {
	profile.UpdatedAt = time.Now().UTC()
	if err := s.profiles.Upsert(ctx, profile); err != nil {
		return errors.StorageError("failed to upsert subject profile", err)
	}
	return nil
}

// logValidation appends the verdict to the audit trail. Failures are
// logged; they never block event ingestion.
func (s *Store) logValidation(ctx context.Context, event models.Event, report models.ValidationReport) {
	record := models.ValidationRecord{
		ValidationID: uuid.New(),
		DataType:     "interaction_event",
		DataID:       event.EventID.String(),
		IsValid:      report.IsValid(),
		Confidence:   report.Confidence,
		Errors:       models.StringList(report.Errors),
		Timestamp:    time.Now().UTC(),
	}
	if err := s.validationLog.Insert(ctx, record); err != nil {
		log.Printf("[EventStore] Failed to log validation result: %v", err)
	}
}
