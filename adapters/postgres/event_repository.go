package postgres

import (
	"context"
	"time"

	"veripipe/models"
	"veripipe/ports"

	"github.com/jmoiron/sqlx"
)

// EventRepositoryImpl implements EventRepository for PostgreSQL
type EventRepositoryImpl struct {
	db *sqlx.DB
}

// NewEventRepository creates a new PostgreSQL event repository
func NewEventRepository(db *sqlx.DB) ports.EventRepository {
	return &EventRepositoryImpl{db: db}
}

// InsertEvents writes the whole batch inside one transaction. Either every
// event lands or none do, so a failed flush leaves nothing half-written.
func (r *EventRepositoryImpl) InsertEvents(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, event := range events {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO call_events (event_id, session_id, subject_id, event_type, timestamp, metadata, verified)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, event.EventID, event.SessionID, event.SubjectID, event.EventType, event.Timestamp, event.Metadata, event.Verified)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// VerificationCounts returns (verified, total) for events created after the cutoff
func (r *EventRepositoryImpl) VerificationCounts(ctx context.Context, since time.Time) (int64, int64, error) {
	var row struct {
		Verified int64 `db:"verified_events"`
		Total    int64 `db:"total_events"`
	}
	err := r.db.GetContext(ctx, &row, `
		SELECT
			COALESCE(SUM(CASE WHEN verified THEN 1 ELSE 0 END), 0) AS verified_events,
			COUNT(*) AS total_events
		FROM call_events
		WHERE created_at > $1
	`, since)
	if err != nil {
		return 0, 0, err
	}
	return row.Verified, row.Total, nil
}

// CountOrphaned counts events whose subject has no profile row
func (r *EventRepositoryImpl) CountOrphaned(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM call_events ce
		LEFT JOIN subject_profiles sp ON ce.subject_id = sp.subject_id
		WHERE sp.subject_id IS NULL
	`)
	return count, err
}

// CoverageCounts returns (verified, total) across all stored events
func (r *EventRepositoryImpl) CoverageCounts(ctx context.Context) (int64, int64, error) {
	var row struct {
		Verified int64 `db:"verified_events"`
		Total    int64 `db:"total_events"`
	}
	err := r.db.GetContext(ctx, &row, `
		SELECT
			COALESCE(SUM(CASE WHEN verified THEN 1 ELSE 0 END), 0) AS verified_events,
			COUNT(*) AS total_events
		FROM call_events
	`)
	if err != nil {
		return 0, 0, err
	}
	return row.Verified, row.Total, nil
}

// ProfileRepositoryImpl implements ProfileRepository for PostgreSQL
type ProfileRepositoryImpl struct {
	db *sqlx.DB
}

// NewProfileRepository creates a new PostgreSQL profile repository
func NewProfileRepository(db *sqlx.DB) ports.ProfileRepository {
	return &ProfileRepositoryImpl{db: db}
}

// Get retrieves a subject profile, or (nil, nil) when none exists
func (r *ProfileRepositoryImpl) Get(ctx context.Context, subjectID string) (*models.SubjectProfile, error) {
	var profile models.SubjectProfile
	err := r.db.GetContext(ctx, &profile, `
		SELECT subject_id, preferred_story_length, attention_span_score, trust_score, last_validated, updated_at
		FROM subject_profiles
		WHERE subject_id = $1
	`, subjectID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// Upsert creates or replaces a subject profile
func (r *ProfileRepositoryImpl) Upsert(ctx context.Context, profile *models.SubjectProfile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subject_profiles (subject_id, preferred_story_length, attention_span_score, trust_score, last_validated, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (subject_id) DO UPDATE SET
			preferred_story_length = EXCLUDED.preferred_story_length,
			attention_span_score = EXCLUDED.attention_span_score,
			trust_score = EXCLUDED.trust_score,
			updated_at = NOW()
	`, profile.SubjectID, profile.PreferredLength, profile.AttentionSpan, profile.TrustScore)
	return err
}

// StoryPerformanceRepositoryImpl implements StoryPerformanceRepository for PostgreSQL
type StoryPerformanceRepositoryImpl struct {
	db *sqlx.DB
}

// NewStoryPerformanceRepository creates a new PostgreSQL story performance repository
func NewStoryPerformanceRepository(db *sqlx.DB) ports.StoryPerformanceRepository {
	return &StoryPerformanceRepositoryImpl{db: db}
}

// Get retrieves rollup counters for a story, or (nil, nil) when none exist
func (r *StoryPerformanceRepositoryImpl) Get(ctx context.Context, storyID int64) (*models.StoryPerformance, error) {
	var perf models.StoryPerformance
	err := r.db.GetContext(ctx, &perf, `
		SELECT story_id, title, total_requests, total_completions, avg_completion_rate, quality_score, updated_at
		FROM story_performance
		WHERE story_id = $1
	`, storyID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &perf, nil
}

// Save upserts rollup counters for a story
func (r *StoryPerformanceRepositoryImpl) Save(ctx context.Context, perf *models.StoryPerformance) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO story_performance (story_id, title, total_requests, total_completions, avg_completion_rate, quality_score, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (story_id) DO UPDATE SET
			total_requests = EXCLUDED.total_requests,
			total_completions = EXCLUDED.total_completions,
			avg_completion_rate = EXCLUDED.avg_completion_rate,
			quality_score = EXCLUDED.quality_score,
			updated_at = NOW()
	`, perf.StoryID, perf.Title, perf.TotalRequests, perf.TotalCompletions, perf.CompletionRate, perf.QualityScore)
	return err
}
