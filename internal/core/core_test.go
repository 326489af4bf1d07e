package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veripipe/internal/config"
	"veripipe/internal/eventstore"
	"veripipe/internal/qa"
	"veripipe/internal/validation"
	"veripipe/internal/verify"
	"veripipe/models"
)

type memEventRepo struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *memEventRepo) InsertEvents(_ context.Context, events []models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

func (r *memEventRepo) VerificationCounts(context.Context, time.Time) (int64, int64, error) {
	return 0, 0, nil
}

func (r *memEventRepo) CountOrphaned(context.Context) (int64, error) { return 0, nil }

func (r *memEventRepo) CoverageCounts(context.Context) (int64, int64, error) { return 0, 0, nil }

func (r *memEventRepo) stored() []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Event(nil), r.events...)
}

type memMetricRepo struct{ mu sync.Mutex }

func (r *memMetricRepo) Insert(context.Context, models.Metric) error { return nil }

func (r *memMetricRepo) InterfaceAverages(context.Context, time.Time) (map[string]float64, error) {
	return map[string]float64{}, nil
}

type memValidationLogRepo struct{}

func (memValidationLogRepo) Insert(context.Context, models.ValidationRecord) error { return nil }

func (memValidationLogRepo) Stats(context.Context, time.Time) (int64, int64, float64, error) {
	return 0, 0, 0, nil
}

type memProfileRepo struct{}

func (memProfileRepo) Get(context.Context, string) (*models.SubjectProfile, error) {
	return nil, nil
}

func (memProfileRepo) Upsert(context.Context, *models.SubjectProfile) error { return nil }

type memStoryRepo struct{}

func (memStoryRepo) Get(context.Context, int64) (*models.StoryPerformance, error) {
	return nil, nil
}

func (memStoryRepo) Save(context.Context, *models.StoryPerformance) error { return nil }

type memAlertRepo struct{}

func (memAlertRepo) Insert(context.Context, models.Alert) error { return nil }

func (memAlertRepo) MarkAcknowledged(context.Context, string) error { return nil }

func (memAlertRepo) MarkResolved(context.Context, string, time.Time) error { return nil }

type memVerificationRepo struct{}

func (memVerificationRepo) InsertEvent(context.Context, models.VerificationEvent) error {
	return nil
}

func (memVerificationRepo) InsertMetricSnapshot(context.Context, string, float64, time.Time) error {
	return nil
}

type memQARepo struct{}

func (memQARepo) InsertReport(context.Context, models.QualityReport) error { return nil }

func (memQARepo) InsertRemediation(context.Context, models.RemediationRecord) error { return nil }

func (memQARepo) StatusCounts(context.Context, time.Time) (map[string]int64, error) {
	return map[string]int64{}, nil
}

func (memQARepo) LatestReport(context.Context) (*models.QualityReport, error) { return nil, nil }

func (memQARepo) RemediationStats(context.Context, time.Time) (int64, int64, error) {
	return 0, 0, nil
}

type coreFixture struct {
	core   *Core
	events *memEventRepo
	store  *eventstore.Store
}

func newCoreFixture(t *testing.T) *coreFixture {
	t.Helper()

	events := &memEventRepo{}
	store := eventstore.New(events, &memMetricRepo{}, memValidationLogRepo{},
		memProfileRepo{}, memStoryRepo{}, 100, true)

	engine := validation.NewEngine(nil, validation.LevelStandard, store)
	store.SetValidator(engine)

	harness := qa.NewHarness(memQARepo{}, store, time.Millisecond)
	verifier := verify.New(config.VerifierConfig{}, engine, store,
		memAlertRepo{}, memVerificationRepo{}, harness, nil, nil,
		prometheus.NewRegistry())

	return &coreFixture{
		core:   New(store, engine, harness, verifier),
		events: events,
		store:  store,
	}
}

func TestVerifyDataCombinesBothPaths(t *testing.T) {
	fx := newCoreFixture(t)
	ctx := context.Background()

	verdict := fx.core.VerifyPhoneCall(ctx, "session12345", "+15551234567", 120)

	assert.True(t, verdict.Verified)
	assert.True(t, verdict.ValidationPassed)
	assert.Equal(t, 1.0, verdict.Confidence)
	assert.Empty(t, verdict.Errors)
}

func TestVerifyDataTakesLowerConfidence(t *testing.T) {
	fx := newCoreFixture(t)
	ctx := context.Background()

	// Passes the fast path (session present, duration fine) but fails the
	// phone rule set on the malformed number.
	verdict := fx.core.VerifyPhoneCall(ctx, "session12345", "not-a-phone", 120)

	assert.True(t, verdict.Verified)
	assert.False(t, verdict.ValidationPassed)
	assert.InDelta(t, 2.0/3.0, verdict.Confidence, 1e-9)
	assert.Contains(t, verdict.Errors, "Invalid phone number format")
}

func TestVerifyDataFailedFastPath(t *testing.T) {
	fx := newCoreFixture(t)
	ctx := context.Background()

	verdict := fx.core.VerifyData(ctx, "phone", "phone_call", map[string]interface{}{
		"phone_number":     "+15551234567",
		"duration_seconds": 120.0,
	})

	assert.False(t, verdict.Verified)
	assert.Equal(t, 0.0, verdict.Confidence)
}

func TestVerifyDataTracksVerificationEvent(t *testing.T) {
	fx := newCoreFixture(t)
	ctx := context.Background()

	fx.core.VerifyStory(ctx, "A long and gentle story about friendly dinosaurs going on a picnic together in the sunny valley.", 6, []string{"dinosaurs"})

	require.NoError(t, fx.store.Flush(ctx))
	stored := fx.events.stored()
	require.Len(t, stored, 1)
	assert.Equal(t, models.EventType("ai_verification"), stored[0].EventType)
	assert.Equal(t, "system", stored[0].SessionID)
	assert.Equal(t, "system", stored[0].SubjectID)
}

func TestStartStopLifecycle(t *testing.T) {
	fx := newCoreFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fx.core.Start(ctx, time.Hour)
	verdict := fx.core.VerifyPhoneCall(ctx, "session12345", "+15551234567", 60)
	assert.True(t, verdict.Verified)
	fx.core.Stop(context.Background())
}
