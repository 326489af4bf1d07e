package eventstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veripipe/internal/validation"
	"veripipe/models"
)

type fakeEventRepo struct {
	inserted   [][]models.Event
	failInsert error
	orphaned   int64
	verified   int64
	total      int64
}

func (f *fakeEventRepo) InsertEvents(_ context.Context, events []models.Event) error {
	if f.failInsert != nil {
		return f.failInsert
	}
	batch := make([]models.Event, len(events))
	copy(batch, events)
	f.inserted = append(f.inserted, batch)
	return nil
}

func (f *fakeEventRepo) VerificationCounts(_ context.Context, _ time.Time) (int64, int64, error) {
	return f.verified, f.total, nil
}

func (f *fakeEventRepo) CountOrphaned(_ context.Context) (int64, error) {
	return f.orphaned, nil
}

func (f *fakeEventRepo) CoverageCounts(_ context.Context) (int64, int64, error) {
	return f.verified, f.total, nil
}

type fakeMetricRepo struct {
	metrics []models.Metric
}

func (f *fakeMetricRepo) Insert(_ context.Context, metric models.Metric) error {
	f.metrics = append(f.metrics, metric)
	return nil
}

func (f *fakeMetricRepo) InterfaceAverages(_ context.Context, _ time.Time) (map[string]float64, error) {
	return map[string]float64{"phone": 0.97}, nil
}

func (f *fakeMetricRepo) find(name string) *models.Metric {
	for i := range f.metrics {
		if f.metrics[i].Name == name {
			return &f.metrics[i]
		}
	}
	return nil
}

type fakeValidationLogRepo struct {
	records []models.ValidationRecord
}

func (f *fakeValidationLogRepo) Insert(_ context.Context, record models.ValidationRecord) error {
	f.records = append(f.records, record)
	return nil
}

func (f *fakeValidationLogRepo) Stats(_ context.Context, _ time.Time) (int64, int64, float64, error) {
	return 9, 10, 0.92, nil
}

type fakeProfileRepo struct {
	profiles map[string]*models.SubjectProfile
}

func (f *fakeProfileRepo) Get(_ context.Context, subjectID string) (*models.SubjectProfile, error) {
	return f.profiles[subjectID], nil
}

func (f *fakeProfileRepo) Upsert(_ context.Context, profile *models.SubjectProfile) error {
	if f.profiles == nil {
		f.profiles = map[string]*models.SubjectProfile{}
	}
	f.profiles[profile.SubjectID] = profile
	return nil
}

type fakeStoryRepo struct {
	stories map[int64]*models.StoryPerformance
}

func (f *fakeStoryRepo) Get(_ context.Context, storyID int64) (*models.StoryPerformance, error) {
	return f.stories[storyID], nil
}

func (f *fakeStoryRepo) Save(_ context.Context, perf *models.StoryPerformance) error {
	if f.stories == nil {
		f.stories = map[int64]*models.StoryPerformance{}
	}
	f.stories[perf.StoryID] = perf
	return nil
}

type storeFixture struct {
	store    *Store
	events   *fakeEventRepo
	metrics  *fakeMetricRepo
	logs     *fakeValidationLogRepo
	profiles *fakeProfileRepo
	stories  *fakeStoryRepo
}

func newFixture(flushThreshold int, validationEnabled bool) *storeFixture {
	f := &storeFixture{
		events:   &fakeEventRepo{},
		metrics:  &fakeMetricRepo{},
		logs:     &fakeValidationLogRepo{},
		profiles: &fakeProfileRepo{},
		stories:  &fakeStoryRepo{},
	}
	f.store = New(f.events, f.metrics, f.logs, f.profiles, f.stories, flushThreshold, validationEnabled)
	if validationEnabled {
		engine := validation.NewEngine(validation.DefaultRules(), validation.LevelStandard, f.store)
		f.store.SetValidator(engine)
	}
	return f
}

func TestFlushClearsBufferAndRecordsRate(t *testing.T) {
	f := newFixture(100, true)
	ctx := context.Background()

	// three clean events plus one story_begin missing its story_id
	require.NoError(t, f.store.TrackEvent(ctx, "session12345", "subject12345", models.EventCallStart, nil))
	require.NoError(t, f.store.TrackEvent(ctx, "session12345", "subject12345", models.EventPause, nil))
	require.NoError(t, f.store.TrackEvent(ctx, "session12345", "subject12345", models.EventCallEnd, nil))
	require.NoError(t, f.store.TrackEvent(ctx, "session12345", "subject12345", models.EventStoryBegin, map[string]interface{}{}))
	require.Equal(t, 4, f.store.Buffered())

	require.NoError(t, f.store.Flush(ctx))

	assert.Equal(t, 0, f.store.Buffered())
	require.Len(t, f.events.inserted, 1)
	assert.Len(t, f.events.inserted[0], 4)

	metric := f.metrics.find("event_verification_rate")
	require.NotNil(t, metric)
	assert.InDelta(t, 0.75, metric.Value, 1e-9)
}

func TestFlushFailureRetainsBuffer(t *testing.T) {
	f := newFixture(100, false)
	ctx := context.Background()

	require.NoError(t, f.store.TrackEvent(ctx, "session12345", "subject12345", models.EventCallStart, nil))
	require.NoError(t, f.store.TrackEvent(ctx, "session12345", "subject12345", models.EventCallEnd, nil))

	f.events.failInsert = errors.New("connection reset")
	err := f.store.Flush(ctx)
	require.Error(t, err)
	assert.Equal(t, 2, f.store.Buffered(), "buffer must survive a failed flush")

	// next attempt succeeds and drains it
	f.events.failInsert = nil
	require.NoError(t, f.store.Flush(ctx))
	assert.Equal(t, 0, f.store.Buffered())
	require.Len(t, f.events.inserted, 1)
	assert.Len(t, f.events.inserted[0], 2)
}

func TestTrackEventFlushesAtThreshold(t *testing.T) {
	f := newFixture(3, false)
	ctx := context.Background()

	require.NoError(t, f.store.TrackEvent(ctx, "session12345", "subject12345", models.EventCallStart, nil))
	require.NoError(t, f.store.TrackEvent(ctx, "session12345", "subject12345", models.EventPause, nil))
	assert.Empty(t, f.events.inserted)

	require.NoError(t, f.store.TrackEvent(ctx, "session12345", "subject12345", models.EventCallEnd, nil))
	assert.Equal(t, 0, f.store.Buffered())
	require.Len(t, f.events.inserted, 1)
	assert.Len(t, f.events.inserted[0], 3)
}

func TestStoryBeginWithoutStoryID(t *testing.T) {
	f := newFixture(100, true)
	ctx := context.Background()

	require.NoError(t, f.store.TrackEvent(ctx, "session12345", "subject12345", models.EventStoryBegin, map[string]interface{}{
		"position": 1,
	}))

	require.Len(t, f.logs.records, 1)
	record := f.logs.records[0]
	assert.False(t, record.IsValid)
	assert.InDelta(t, 0.8, record.Confidence, 1e-9)
	assert.Contains(t, record.Errors, "Missing story_id in story_begin event")

	require.NoError(t, f.store.Flush(ctx))
	require.Len(t, f.events.inserted, 1)
	assert.False(t, f.events.inserted[0][0].Verified)
}

func TestTrackEventRequiresIdentifiers(t *testing.T) {
	f := newFixture(100, false)

	err := f.store.TrackEvent(context.Background(), "", "subject12345", models.EventCallStart, nil)
	assert.Error(t, err)
	assert.Equal(t, 0, f.store.Buffered())
}

func TestHealthSummaryAggregates(t *testing.T) {
	f := newFixture(100, false)
	f.events.verified = 47
	f.events.total = 50

	summary, err := f.store.HealthSummary(context.Background(), 0)
	require.NoError(t, err)

	assert.InDelta(t, 0.9, summary.ValidationRate, 1e-9)
	assert.InDelta(t, 0.92, summary.AverageConfidence, 1e-9)
	assert.InDelta(t, 0.94, summary.EventVerificationRate, 1e-9)
	assert.Equal(t, 0.97, summary.InterfaceHealth["phone"])
}

func TestVerifyIntegrity(t *testing.T) {
	f := newFixture(100, false)
	f.events.orphaned = 2
	f.events.verified = 90
	f.events.total = 100

	report := f.store.VerifyIntegrity(context.Background())

	assert.True(t, report.DatabaseConsistency)
	assert.Equal(t, int64(2), report.OrphanedEvents)
	assert.InDelta(t, 0.9, report.ValidationCoverage, 1e-9)
}

func TestUpdateStoryPerformance(t *testing.T) {
	f := newFixture(100, false)
	ctx := context.Background()

	require.NoError(t, f.store.UpdateStoryPerformance(ctx, 7, "The Brave Fox", true))
	require.NoError(t, f.store.UpdateStoryPerformance(ctx, 7, "The Brave Fox", false))

	perf := f.stories.stories[7]
	require.NotNil(t, perf)
	assert.Equal(t, int64(2), perf.TotalRequests)
	assert.Equal(t, int64(1), perf.TotalCompletions)
	assert.InDelta(t, 0.5, perf.CompletionRate, 1e-9)
	assert.InDelta(t, 0.6, perf.QualityScore, 1e-9)

	// quality score saturates at 1.0
	require.NoError(t, f.store.UpdateStoryPerformance(ctx, 9, "Moonlight", true))
	assert.Equal(t, 1.0, f.stories.stories[9].QualityScore)
}

func TestTrustScoreDefaultsForUnknownSubject(t *testing.T) {
	f := newFixture(100, false)

	score, err := f.store.TrustScore(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)

	require.NoError(t, f.store.UpsertProfile(context.Background(), &models.SubjectProfile{
		SubjectID:  "subject12345",
		TrustScore: 0.4,
	}))
	score, err = f.store.TrustScore(context.Background(), "subject12345")
	require.NoError(t, err)
	assert.Equal(t, 0.4, score)
}
