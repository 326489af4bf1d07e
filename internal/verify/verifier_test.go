package verify

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
	"veripipe/internal/validation"
	"veripipe/models"
)

type fakeAlertRepo struct {
	mu       sync.Mutex
	inserted []models.Alert
	acked    []string
	resolved []string
}

func (f *fakeAlertRepo) Insert(_ context.Context, alert models.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, alert)
	return nil
}

func (f *fakeAlertRepo) MarkAcknowledged(_ context.Context, alertID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, alertID)
	return nil
}

func (f *fakeAlertRepo) MarkResolved(_ context.Context, alertID string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved = append(f.resolved, alertID)
	return nil
}

func (f *fakeAlertRepo) byName(title string) []models.Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Alert
	for _, alert := range f.inserted {
		if alert.Title == title {
			out = append(out, alert)
		}
	}
	return out
}

type fakeVerificationRepo struct {
	mu        sync.Mutex
	events    []models.VerificationEvent
	snapshots map[string]float64
}

func (f *fakeVerificationRepo) InsertEvent(_ context.Context, event models.VerificationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeVerificationRepo) InsertMetricSnapshot(_ context.Context, name string, value float64, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snapshots == nil {
		f.snapshots = map[string]float64{}
	}
	f.snapshots[name] = value
	return nil
}

func (f *fakeVerificationRepo) eventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func (f *fakeVerificationRepo) lastEvent() models.VerificationEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[len(f.events)-1]
}

type fakeNotifier struct {
	mu     sync.Mutex
	alerts []models.Alert
}

func (f *fakeNotifier) Notify(_ context.Context, alert models.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alert)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}

// minimal event repositories so the verifier can carry a real store

type nullEventRepo struct{}

func (nullEventRepo) InsertEvents(_ context.Context, _ []models.Event) error { return nil }
func (nullEventRepo) VerificationCounts(_ context.Context, _ time.Time) (int64, int64, error) {
	return 0, 0, nil
}
func (nullEventRepo) CountOrphaned(_ context.Context) (int64, error) { return 0, nil }
func (nullEventRepo) CoverageCounts(_ context.Context) (int64, int64, error) {
	return 0, 0, nil
}

type nullMetricRepo struct{}

func (nullMetricRepo) Insert(_ context.Context, _ models.Metric) error { return nil }
func (nullMetricRepo) InterfaceAverages(_ context.Context, _ time.Time) (map[string]float64, error) {
	return map[string]float64{}, nil
}

type nullValidationLogRepo struct{}

func (nullValidationLogRepo) Insert(_ context.Context, _ models.ValidationRecord) error { return nil }
func (nullValidationLogRepo) Stats(_ context.Context, _ time.Time) (int64, int64, float64, error) {
	return 0, 0, 1.0, nil
}

type nullProfileRepo struct{}

func (nullProfileRepo) Get(_ context.Context, _ string) (*models.SubjectProfile, error) {
	return nil, nil
}
func (nullProfileRepo) Upsert(_ context.Context, _ *models.SubjectProfile) error { return nil }

type nullStoryRepo struct{}

func (nullStoryRepo) Get(_ context.Context, _ int64) (*models.StoryPerformance, error) {
	return nil, nil
}
func (nullStoryRepo) Save(_ context.Context, _ *models.StoryPerformance) error { return nil }

type verifierFixture struct {
	verifier *Verifier
	alerts   *fakeAlertRepo
	events   *fakeVerificationRepo
	critical *fakeNotifier
	errs     *fakeNotifier
}

func newVerifierFixture(t *testing.T, cfg config.VerifierConfig) *verifierFixture {
	t.Helper()
	store := eventstore.New(nullEventRepo{}, nullMetricRepo{}, nullValidationLogRepo{},
		nullProfileRepo{}, nullStoryRepo{}, 1000, false)
	engine := validation.NewEngine(validation.DefaultRules(), validation.LevelStandard, nil)

	f := &verifierFixture{
		alerts:   &fakeAlertRepo{},
		events:   &fakeVerificationRepo{},
		critical: &fakeNotifier{},
		errs:     &fakeNotifier{},
	}
	f.verifier = New(cfg, engine, store, f.alerts, f.events, nil,
		f.critical, f.errs, prometheus.NewRegistry())
	return f
}

func TestFastPathPhoneCall(t *testing.T) {
	f := newVerifierFixture(t, config.VerifierConfig{})

	event := f.verifier.VerifyRealtime(context.Background(), "phone_call", map[string]interface{}{
		"session_id":       "session12345",
		"duration_seconds": 120.0,
	})
	assert.Equal(t, models.VerificationVerified, event.Status)
	assert.Equal(t, 1.0, event.Confidence)
	assert.Empty(t, event.AlertsTriggered)

	event = f.verifier.VerifyRealtime(context.Background(), "phone_call", map[string]interface{}{
		"duration_seconds": 120.0,
	})
	assert.Equal(t, models.VerificationFailed, event.Status)
	assert.Equal(t, 0.0, event.Confidence)
	assert.Contains(t, []string(event.AlertsTriggered), "missing_session_id")
}

func TestFastPathHeuristicMultipliers(t *testing.T) {
	f := newVerifierFixture(t, config.VerifierConfig{})
	ctx := context.Background()

	long := f.verifier.VerifyRealtime(ctx, "phone_call", map[string]interface{}{
		"session_id":       "session12345",
		"duration_seconds": 2400.0,
	})
	assert.Equal(t, models.VerificationVerified, long.Status)
	assert.InDelta(t, 0.8, long.Confidence, 1e-9)
	assert.Contains(t, []string(long.AlertsTriggered), "call_duration_excessive")

	short := f.verifier.VerifyRealtime(ctx, "story_generation", map[string]interface{}{
		"story_content": "too short",
	})
	assert.Equal(t, models.VerificationFailed, short.Status)
	assert.InDelta(t, 0.3, short.Confidence, 1e-9)

	unsafe := f.verifier.VerifyRealtime(ctx, "story_generation", map[string]interface{}{
		"story_content": "A long enough story about a scary forest where nothing bad actually happens to anyone at all.",
	})
	assert.Equal(t, models.VerificationVerified, unsafe.Status)
	assert.InDelta(t, 0.5, unsafe.Confidence, 1e-9)
	assert.Contains(t, []string(unsafe.AlertsTriggered), "potential_unsafe_content")
}

func TestFastPathRegistrationSchema(t *testing.T) {
	f := newVerifierFixture(t, config.VerifierConfig{})
	ctx := context.Background()

	ok := f.verifier.VerifyRealtime(ctx, "user_registration", map[string]interface{}{
		"child_name":   "Emma",
		"child_age":    6.0,
		"parent_phone": "+15551234567",
	})
	assert.Equal(t, models.VerificationVerified, ok.Status)
	assert.Equal(t, 1.0, ok.Confidence)

	missing := f.verifier.VerifyRealtime(ctx, "user_registration", map[string]interface{}{
		"child_name": "Emma",
	})
	assert.Equal(t, models.VerificationFailed, missing.Status)
	assert.Equal(t, 0.0, missing.Confidence)
	assert.Contains(t, []string(missing.AlertsTriggered), "missing_required_fields")

	tooOld := f.verifier.VerifyRealtime(ctx, "user_registration", map[string]interface{}{
		"child_name":   "Sam",
		"child_age":    15.0,
		"parent_phone": "+15551234567",
	})
	assert.Equal(t, models.VerificationVerified, tooOld.Status)
	assert.InDelta(t, 0.7, tooOld.Confidence, 1e-9)
	assert.Contains(t, []string(tooOld.AlertsTriggered), "age_out_of_range")
}

func TestQueueOverflowReturnsTimeout(t *testing.T) {
	f := newVerifierFixture(t, config.VerifierConfig{QueueCapacity: 2})
	ctx := context.Background()

	payload := map[string]interface{}{"session_id": "session12345"}
	// no workers running, so two calls fill the queue
	f.verifier.VerifyRealtime(ctx, "phone_call", payload)
	f.verifier.VerifyRealtime(ctx, "phone_call", payload)

	event := f.verifier.VerifyRealtime(ctx, "phone_call", payload)
	assert.Equal(t, models.VerificationTimeout, event.Status)
	assert.Equal(t, 0.0, event.Confidence)
	assert.Equal(t, models.StringList{"queue_overflow"}, event.AlertsTriggered)

	overflow := f.alerts.byName("Queue Overflow")
	require.Len(t, overflow, 1)
	assert.Equal(t, models.AlertCritical, overflow[0].Level)
	assert.Contains(t, overflow[0].Message, "2/2")
}

func TestAlertLifecycle(t *testing.T) {
	f := newVerifierFixture(t, config.VerifierConfig{QueueCapacity: 1})
	ctx := context.Background()

	payload := map[string]interface{}{"session_id": "session12345"}
	f.verifier.VerifyRealtime(ctx, "phone_call", payload)
	f.verifier.VerifyRealtime(ctx, "phone_call", payload) // overflow -> alert

	active := f.verifier.ActiveAlerts()
	require.Len(t, active, 1)
	alertID := active[0].AlertID.String()
	assert.Equal(t, models.AlertTriggered, active[0].State)

	assert.False(t, f.verifier.Acknowledge(ctx, "no-such-alert"))

	require.True(t, f.verifier.Acknowledge(ctx, alertID))
	active = f.verifier.ActiveAlerts()
	require.Len(t, active, 1)
	assert.Equal(t, models.AlertAcknowledged, active[0].State)
	assert.True(t, active[0].Acknowledged)

	require.True(t, f.verifier.Resolve(ctx, alertID))
	assert.Empty(t, f.verifier.ActiveAlerts())

	// RESOLVED is terminal
	assert.False(t, f.verifier.Resolve(ctx, alertID))
	assert.False(t, f.verifier.Acknowledge(ctx, alertID))

	assert.Equal(t, []string{alertID}, f.alerts.acked)
	assert.Equal(t, []string{alertID}, f.alerts.resolved)
}

func TestDeepPathPersistsAuthoritativeResult(t *testing.T) {
	f := newVerifierFixture(t, config.VerifierConfig{QueueCapacity: 10})
	ctx := context.Background()

	f.verifier.Start(ctx)
	defer f.verifier.Stop()

	// fast path passes (session present), deep path fails the full rule set
	event := f.verifier.VerifyRealtime(ctx, "phone_call", map[string]interface{}{
		"session_id":       "session12345",
		"phone_number":     "not-a-phone",
		"duration_seconds": 120.0,
	})
	assert.Equal(t, models.VerificationVerified, event.Status)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if f.events.eventCount() > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.Positive(t, f.events.eventCount())

	deep := f.events.lastEvent()
	assert.Equal(t, event.EventID, deep.EventID, "deep record supersedes the same event id")
	assert.Equal(t, models.VerificationFailed, deep.Status)
	assert.Less(t, deep.Confidence, 1.0)

	deadline = time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(f.alerts.byName("Verification Failure")) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NotEmpty(t, f.alerts.byName("Verification Failure"))
}

func TestErrorAlertsRouteToErrorSink(t *testing.T) {
	f := newVerifierFixture(t, config.VerifierConfig{QueueCapacity: 10})
	ctx := context.Background()

	f.verifier.Start(ctx)
	defer f.verifier.Stop()

	// invalid database payload via deep path raises an error-level alert
	f.verifier.VerifyRealtime(ctx, "user_registration", map[string]interface{}{
		"child_name":   "Emma",
		"child_age":    6.0,
		"parent_phone": "+15551234567",
	})

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if f.errs.count() > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.Positive(t, f.errs.count(), "error-level alerts go to the error sink")
	assert.Zero(t, f.critical.count())
}

func TestVerificationMetricsWindow(t *testing.T) {
	f := newVerifierFixture(t, config.VerifierConfig{QueueCapacity: 100})
	ctx := context.Background()

	good := map[string]interface{}{"session_id": "session12345"}
	bad := map[string]interface{}{}
	f.verifier.VerifyRealtime(ctx, "phone_call", good)
	f.verifier.VerifyRealtime(ctx, "phone_call", good)
	f.verifier.VerifyRealtime(ctx, "phone_call", good)
	f.verifier.VerifyRealtime(ctx, "phone_call", bad)

	metrics := f.verifier.VerificationMetrics(5)
	assert.Equal(t, 4, metrics.TotalVerifications)
	assert.Equal(t, 3, metrics.Successful)
	assert.Equal(t, 1, metrics.Failed)
	assert.InDelta(t, 0.75, metrics.SuccessRate, 1e-9)

	empty := f.verifier.VerificationMetrics(0)
	assert.Equal(t, 60, empty.WindowMinutes)
}

func TestStatusComposite(t *testing.T) {
	f := newVerifierFixture(t, config.VerifierConfig{QueueCapacity: 100})
	ctx := context.Background()

	good := map[string]interface{}{"session_id": "session12345"}
	f.verifier.VerifyRealtime(ctx, "phone_call", good)
	f.verifier.VerifyRealtime(ctx, "phone_call", good)

	status := f.verifier.Status(ctx)
	assert.Equal(t, 1.0, status.VerificationRate)
	assert.Equal(t, 1.0, status.QualityScore)
	assert.Equal(t, 1.0, status.OverallHealth)
	assert.True(t, status.IsHealthy())
	// the overflow-free run leaves no active alerts
	assert.Zero(t, status.ActiveAlerts)
}

func TestCollectMetricsSnapshots(t *testing.T) {
	f := newVerifierFixture(t, config.VerifierConfig{QueueCapacity: 100})
	ctx := context.Background()

	f.verifier.VerifyRealtime(ctx, "phone_call", map[string]interface{}{"session_id": "session12345"})
	f.verifier.collectMetrics(ctx)

	f.events.mu.Lock()
	defer f.events.mu.Unlock()
	assert.Contains(t, f.events.snapshots, "verification_queue_size")
	assert.Contains(t, f.events.snapshots, "verification_success_rate")
	assert.Equal(t, 1.0, f.events.snapshots["verification_success_rate"])
}

func TestRenderTemplate(t *testing.T) {
	msg := renderTemplate("Queue at {queue_size}/{max_size}", map[string]interface{}{
		"queue_size": 900,
		"max_size":   1000,
	})
	assert.Equal(t, "Queue at 900/1000", msg)

	// unmatched placeholders stay put
	msg = renderTemplate("value {missing}", map[string]interface{}{})
	assert.Equal(t, "value {missing}", msg)
}
