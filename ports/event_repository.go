package ports

import (
	"context"
	"time"

	"veripipe/models"
)

// EventRepository persists interaction events. InsertEvents must write the
// whole batch in one transaction: either every event lands or none do.
type EventRepository interface {
	InsertEvents(ctx context.Context, events []models.Event) error

	// VerificationCounts returns (verified, total) for events created after
	// the cutoff.
	VerificationCounts(ctx context.Context, since time.Time) (int64, int64, error)

	// CountOrphaned counts events whose subject has no profile row.
	CountOrphaned(ctx context.Context) (int64, error)

	// CoverageCounts returns (verified, total) across all stored events.
	CoverageCounts(ctx context.Context) (int64, int64, error)
}

// ProfileRepository reads and writes per-subject behavior profiles
type ProfileRepository interface {
	Get(ctx context.Context, subjectID string) (*models.SubjectProfile, error)
	Upsert(ctx context.Context, profile *models.SubjectProfile) error
}

// StoryPerformanceRepository maintains per-story rollup counters. The only
// in-place counter updates in the schema live here.
type StoryPerformanceRepository interface {
	Get(ctx context.Context, storyID int64) (*models.StoryPerformance, error)
	Save(ctx context.Context, perf *models.StoryPerformance) error
}
