package verify

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/sync/semaphore"

	"veripipe/internal/config"
	"veripipe/internal/eventstore"
	"veripipe/internal/validation"
	"veripipe/models"
	"veripipe/ports"
)

// interfaceMap routes a data type to the rule interface the deep path
// validates against
var interfaceMap = map[string]string{
	"phone_call":           "phone",
	"story_generation":     "ai",
	"user_registration":    "database",
	"analytics_event":      "analytics",
	"business_transaction": "business",
}

// verificationTask is one queued deep-verification unit
type verificationTask struct {
	eventID   uuid.UUID
	dataType  string
	payload   map[string]interface{}
	startTime time.Time
}

// QAStatusProvider supplies the QA rollup for composite system status
type QAStatusProvider interface {
	Summary(ctx context.Context) (models.QASummary, error)
}

// Verifier is the dual-path verification and alerting engine. The fast
// path answers synchronously from heuristics; background workers run the
// authoritative deep validation, dispatch alerts and snapshot metrics.
type Verifier struct {
	engine *validation.Engine
	store  *eventstore.Store
	alerts ports.AlertRepository
	events ports.VerificationRepository
	qa     QAStatusProvider

	criticalNotifier ports.Notifier
	errorNotifier    ports.Notifier

	verifyQueue chan verificationTask
	alertQueue  chan models.Alert
	deepSem     *semaphore.Weighted

	registrationSchema *jsonschema.Schema
	metrics            *promMetrics
	history            *history

	mu               sync.RWMutex
	active           map[string]*models.Alert
	lastVerification time.Time
	running          bool
	stopCh           chan struct{}
	wg               sync.WaitGroup

	metricsInterval time.Duration
}

// New builds a verifier. qa, criticalNotifier and errorNotifier may be
// nil; reg is the Prometheus registerer (use a fresh registry in tests).
func New(
	cfg config.VerifierConfig,
	engine *validation.Engine,
	store *eventstore.Store,
	alerts ports.AlertRepository,
	events ports.VerificationRepository,
	qa QAStatusProvider,
	criticalNotifier ports.Notifier,
	errorNotifier ports.Notifier,
	reg prometheus.Registerer,
) *Verifier {
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 1000
	}
	if cfg.AlertQueueCapacity <= 0 {
		cfg.AlertQueueCapacity = 500
	}
	if cfg.MetricsInterval <= 0 {
		cfg.MetricsInterval = 10 * time.Second
	}
	if cfg.DeepWorkerWeight <= 0 {
		cfg.DeepWorkerWeight = 4
	}

	return &Verifier{
		engine:             engine,
		store:              store,
		alerts:             alerts,
		events:             events,
		qa:                 qa,
		criticalNotifier:   criticalNotifier,
		errorNotifier:      errorNotifier,
		verifyQueue:        make(chan verificationTask, cfg.QueueCapacity),
		alertQueue:         make(chan models.Alert, cfg.AlertQueueCapacity),
		deepSem:            semaphore.NewWeighted(cfg.DeepWorkerWeight),
		registrationSchema: compileRegistrationSchema(),
		metrics:            newPromMetrics(reg),
		history:            newHistory(1000),
		active:             make(map[string]*models.Alert),
		metricsInterval:    cfg.MetricsInterval,
	}
}

// Start launches the deep-verification, alert and metrics workers
func (v *Verifier) Start(ctx context.Context) {
	v.mu.Lock()
	if v.running {
		v.mu.Unlock()
		log.Printf("[Verifier] Already running")
		return
	}
	v.running = true
	v.stopCh = make(chan struct{})
	v.mu.Unlock()

	v.wg.Add(3)
	go v.verificationWorker(ctx)
	go v.alertWorker(ctx)
	go v.metricsWorker(ctx)
	log.Printf("[Verifier] Realtime verification started")
}

// Stop signals the workers and waits for them to drain their current
// wait. All blocking waits are bounded, so stopping is prompt.
func (v *Verifier) Stop() {
	v.mu.Lock()
	if !v.running {
		v.mu.Unlock()
		return
	}
	v.running = false
	close(v.stopCh)
	v.mu.Unlock()

	v.wg.Wait()
	log.Printf("[Verifier] Realtime verification stopped")
}

// VerifyRealtime runs the fast path and enqueues deep verification. The
// caller always gets an immediate structured verdict; a full queue yields
// status timeout with a queue_overflow alert instead of blocking.
func (v *Verifier) VerifyRealtime(ctx context.Context, dataType string, payload map[string]interface{}) models.VerificationEvent {
	start := time.Now()
	eventID := uuid.New()

	task := verificationTask{
		eventID:   eventID,
		dataType:  dataType,
		payload:   payload,
		startTime: start,
	}

	select {
	case v.verifyQueue <- task:
	default:
		v.triggerAlert(ctx, "queue_overflow", "system", map[string]interface{}{
			"queue_size": len(v.verifyQueue),
			"max_size":   cap(v.verifyQueue),
		})

		event := models.VerificationEvent{
			EventID:         eventID,
			DataType:        dataType,
			Payload:         models.JSONBMap(payload),
			Status:          models.VerificationTimeout,
			Confidence:      0.0,
			ProcessingMs:    float64(time.Since(start).Microseconds()) / 1000.0,
			Timestamp:       time.Now().UTC(),
			AlertsTriggered: models.StringList{"queue_overflow"},
		}
		v.history.add(event)
		v.metrics.verificationsTotal.WithLabelValues(string(event.Status)).Inc()
		return event
	}

	quick := v.quickValidate(dataType, payload)

	status := models.VerificationVerified
	if quick.failed {
		status = models.VerificationFailed
	}
	event := models.VerificationEvent{
		EventID:         eventID,
		DataType:        dataType,
		Payload:         models.JSONBMap(payload),
		Status:          status,
		Confidence:      quick.confidence,
		ProcessingMs:    float64(time.Since(start).Microseconds()) / 1000.0,
		Timestamp:       time.Now().UTC(),
		AlertsTriggered: models.StringList(quick.alerts),
	}
	v.history.add(event)
	v.metrics.verificationsTotal.WithLabelValues(string(status)).Inc()

	for _, name := range quick.alerts {
		v.triggerAlert(ctx, name, dataType, map[string]interface{}{
			"event_id":         eventID.String(),
			"confidence_score": quick.confidence,
			"actual_time":      event.ProcessingMs,
			"threshold":        alertRules["response_time_threshold"].Threshold,
		})
	}

	return event
}

// verificationWorker drains the deep-verification queue. The 1-second
// poll keeps shutdown cooperative; per-task work runs under a weighted
// semaphore so slow validations cannot pile up unboundedly.
func (v *Verifier) verificationWorker(ctx context.Context) {
	defer v.wg.Done()
	for {
		select {
		case <-v.stopCh:
			return
		case <-ctx.Done():
			return
		case task := <-v.verifyQueue:
			if err := v.deepSem.Acquire(ctx, 1); err != nil {
				return
			}
			v.wg.Add(1)
			go func(task verificationTask) {
				defer v.wg.Done()
				defer v.deepSem.Release(1)
				v.deepVerify(ctx, task)
			}(task)
		case <-time.After(time.Second):
		}
	}
}

// deepVerify runs the full rule set and persists the authoritative
// verification record. A storage failure is logged; the worker loop
// never dies over one bad unit of work.
func (v *Verifier) deepVerify(ctx context.Context, task verificationTask) {
	interfaceType, ok := interfaceMap[task.dataType]
	if !ok {
		interfaceType = "database"
	}

	report := v.engine.Validate(ctx, interfaceType, task.payload)

	status := models.VerificationVerified
	if !report.IsValid() {
		status = models.VerificationFailed
	}
	event := models.VerificationEvent{
		EventID:      task.eventID,
		DataType:     task.dataType,
		Payload:      models.JSONBMap(task.payload),
		Status:       status,
		Confidence:   report.Confidence,
		ProcessingMs: float64(time.Since(task.startTime).Microseconds()) / 1000.0,
		Timestamp:    time.Now().UTC(),
	}

	if err := v.events.InsertEvent(ctx, event); err != nil {
		log.Printf("[Verifier] Failed to persist verification event %s: %v", task.eventID, err)
	}
	v.history.add(event)
	v.metrics.verificationsTotal.WithLabelValues(string(status)).Inc()

	if !report.IsValid() {
		v.triggerAlert(ctx, "verification_failure", interfaceType, map[string]interface{}{
			"event_id":   task.eventID.String(),
			"confidence": report.Confidence,
			"errors":     []string(report.Errors),
		})
	}
}

// triggerAlert raises an alert by rule name. The alert is persisted and
// added to the active set unconditionally; only the live notification
// enqueue is allowed to drop when the alert queue is full.
func (v *Verifier) triggerAlert(ctx context.Context, name, interfaceType string, details map[string]interface{}) {
	rule, ok := alertRules[name]
	if !ok {
		log.Printf("[Verifier] Unknown alert type: %s", name)
		return
	}

	alert := models.Alert{
		AlertID:   uuid.New(),
		Level:     rule.Level,
		Title:     alertTitle(name),
		Message:   renderTemplate(rule.Template, details),
		Interface: interfaceType,
		Metadata:  models.JSONBMap(details),
		Timestamp: time.Now().UTC(),
		State:     models.AlertTriggered,
	}

	v.mu.Lock()
	stored := alert
	v.active[alert.AlertID.String()] = &stored
	v.mu.Unlock()

	if err := v.alerts.Insert(ctx, alert); err != nil {
		log.Printf("[Verifier] Failed to persist alert %s: %v", alert.AlertID, err)
	}
	v.metrics.alertsTotal.WithLabelValues(string(alert.Level)).Inc()

	select {
	case v.alertQueue <- alert:
	default:
		// dispatch dropped; the alert is already durable and active
		log.Printf("[Verifier] Alert queue full, dropping dispatch for %s", alert.Title)
	}

	log.Printf("[Verifier] Alert triggered: %s - %s", alert.Title, alert.Message)
}

// alertWorker drains the alert queue and fans out to the level-specific
// notification sinks
func (v *Verifier) alertWorker(ctx context.Context) {
	defer v.wg.Done()
	for {
		select {
		case <-v.stopCh:
			return
		case <-ctx.Done():
			return
		case alert := <-v.alertQueue:
			v.dispatchAlert(ctx, alert)
		case <-time.After(time.Second):
		}
	}
}

// dispatchAlert notifies the sink for the alert level. Dispatch failures
// never affect persistence or lifecycle state.
func (v *Verifier) dispatchAlert(ctx context.Context, alert models.Alert) {
	var sink ports.Notifier
	var metricName string
	switch alert.Level {
	case models.AlertCritical:
		sink = v.criticalNotifier
		metricName = "critical_alert_triggered"
	case models.AlertError:
		sink = v.errorNotifier
		metricName = "error_alert_triggered"
	default:
		return
	}

	if sink != nil {
		if err := sink.Notify(ctx, alert); err != nil {
			log.Printf("[Verifier] Alert dispatch failed for %s: %v", alert.AlertID, err)
		}
	}
	if err := v.store.TrackSystemHealth(ctx, metricName, 1.0, "realtime_verification"); err != nil {
		log.Printf("[Verifier] Failed to track %s: %v", metricName, err)
	}
}

// metricsWorker snapshots queue depths, active alerts and rolling
// verification statistics every interval
func (v *Verifier) metricsWorker(ctx context.Context) {
	defer v.wg.Done()
	ticker := time.NewTicker(v.metricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-v.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			v.collectMetrics(ctx)
		}
	}
}

// collectMetrics publishes the current snapshot to storage, the event
// store and Prometheus
func (v *Verifier) collectMetrics(ctx context.Context) {
	now := time.Now().UTC()
	recent := v.history.since(now.Add(-5 * time.Minute))
	successRate, avgProcessing, avgConfidence := windowStats(recent)

	v.mu.RLock()
	activeCount := len(v.active)
	v.mu.RUnlock()

	snapshot := map[string]float64{
		"verification_queue_size":   float64(len(v.verifyQueue)),
		"alert_queue_size":          float64(len(v.alertQueue)),
		"active_alerts":             float64(activeCount),
		"verification_success_rate": successRate,
		"avg_processing_time_ms":    avgProcessing,
		"avg_confidence_score":      avgConfidence,
	}

	v.metrics.verificationQueueDepth.Set(snapshot["verification_queue_size"])
	v.metrics.alertQueueDepth.Set(snapshot["alert_queue_size"])
	v.metrics.activeAlerts.Set(snapshot["active_alerts"])
	v.metrics.successRate.Set(successRate)
	v.metrics.avgProcessingMs.Set(avgProcessing)
	v.metrics.avgConfidence.Set(avgConfidence)

	for name, value := range snapshot {
		if err := v.events.InsertMetricSnapshot(ctx, name, value, now); err != nil {
			log.Printf("[Verifier] Failed to store metric %s: %v", name, err)
		}
		if err := v.store.TrackSystemHealth(ctx, name, value, "realtime_verification"); err != nil {
			log.Printf("[Verifier] Failed to track metric %s: %v", name, err)
		}
	}
}

// Acknowledge transitions an active alert from TRIGGERED to ACKNOWLEDGED.
// Unknown or already-resolved alerts return false.
func (v *Verifier) Acknowledge(ctx context.Context, alertID string) bool {
	v.mu.Lock()
	alert, ok := v.active[alertID]
	if !ok {
		v.mu.Unlock()
		return false
	}
	alert.State = models.AlertAcknowledged
	alert.Acknowledged = true
	v.mu.Unlock()

	if err := v.alerts.MarkAcknowledged(ctx, alertID); err != nil {
		log.Printf("[Verifier] Failed to persist acknowledgement for %s: %v", alertID, err)
	}
	log.Printf("[Verifier] Alert acknowledged: %s", alertID)
	return true
}

// Resolve transitions an alert to RESOLVED and removes it from the
// active set. RESOLVED is terminal; a second resolve returns false.
func (v *Verifier) Resolve(ctx context.Context, alertID string) bool {
	v.mu.Lock()
	_, ok := v.active[alertID]
	if !ok {
		v.mu.Unlock()
		return false
	}
	delete(v.active, alertID)
	v.mu.Unlock()

	if err := v.alerts.MarkResolved(ctx, alertID, time.Now().UTC()); err != nil {
		log.Printf("[Verifier] Failed to persist resolution for %s: %v", alertID, err)
	}
	log.Printf("[Verifier] Alert resolved: %s", alertID)
	return true
}

// ActiveAlerts returns a snapshot copy of the unresolved alerts
func (v *Verifier) ActiveAlerts() []models.Alert {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]models.Alert, 0, len(v.active))
	for _, alert := range v.active {
		out = append(out, *alert)
	}
	return out
}

// VerificationMetrics aggregates the recent history over a window in
// minutes (default 60)
func (v *Verifier) VerificationMetrics(windowMinutes int) models.VerificationMetrics {
	if windowMinutes <= 0 {
		windowMinutes = 60
	}
	cutoff := time.Now().UTC().Add(-time.Duration(windowMinutes) * time.Minute)
	events := v.history.since(cutoff)

	metrics := models.VerificationMetrics{
		WindowMinutes: windowMinutes,
		LastUpdated:   time.Now().UTC(),
	}
	if len(events) == 0 {
		return metrics
	}

	successRate, avgProcessing, avgConfidence := windowStats(events)
	successful := 0
	alerts := 0
	for _, event := range events {
		if event.Status == models.VerificationVerified {
			successful++
		}
		alerts += len(event.AlertsTriggered)
	}

	metrics.TotalVerifications = len(events)
	metrics.Successful = successful
	metrics.Failed = len(events) - successful
	metrics.SuccessRate = successRate
	metrics.AvgProcessingMs = avgProcessing
	metrics.AvgConfidence = avgConfidence
	metrics.AlertsTriggered = alerts
	return metrics
}

// Status builds the composite health verdict from event-store health, the
// rolling verification rate and the latest QA score. Unavailable inputs
// degrade the aggregate instead of failing the call.
func (v *Verifier) Status(ctx context.Context) models.SystemStatus {
	status := models.SystemStatus{LastCheck: time.Now().UTC()}

	verification := v.VerificationMetrics(60)
	if verification.TotalVerifications > 0 {
		status.VerificationRate = verification.SuccessRate
	} else {
		status.VerificationRate = 1.0
	}

	qualityScore := 1.0
	if v.qa != nil {
		if summary, err := v.qa.Summary(ctx); err != nil {
			log.Printf("[Verifier] QA summary unavailable: %v", err)
		} else if summary.LatestReportTime != nil {
			qualityScore = summary.LatestQualityScore
		}
	}
	status.QualityScore = qualityScore

	v.mu.RLock()
	status.ActiveAlerts = len(v.active)
	v.mu.RUnlock()

	status.OverallHealth = (status.VerificationRate + status.QualityScore) / 2
	return status
}

// QueueDepths reports the current queue occupancy (verification, alert)
func (v *Verifier) QueueDepths() (int, int) {
	return len(v.verifyQueue), len(v.alertQueue)
}

// Running reports whether the background workers are active
func (v *Verifier) Running() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.running
}
