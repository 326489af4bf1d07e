package verify

import (
	"sync"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"veripipe/models"
)

// promMetrics exposes the verifier's live state to Prometheus
type promMetrics struct {
	verificationQueueDepth prometheus.Gauge
	alertQueueDepth        prometheus.Gauge
	activeAlerts           prometheus.Gauge
	successRate            prometheus.Gauge
	avgProcessingMs        prometheus.Gauge
	avgConfidence          prometheus.Gauge
	verificationsTotal     *prometheus.CounterVec
	alertsTotal            *prometheus.CounterVec
}

func newPromMetrics(reg prometheus.Registerer) *promMetrics {
	factory := promauto.With(reg)
	return &promMetrics{
		verificationQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "veripipe_verification_queue_depth",
			Help: "Current depth of the deep-verification queue.",
		}),
		alertQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "veripipe_alert_queue_depth",
			Help: "Current depth of the alert dispatch queue.",
		}),
		activeAlerts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "veripipe_active_alerts",
			Help: "Number of unresolved alerts.",
		}),
		successRate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "veripipe_verification_success_rate",
			Help: "Rolling 5-minute verification success rate.",
		}),
		avgProcessingMs: factory.NewGauge(prometheus.GaugeOpts{
			Name: "veripipe_verification_avg_processing_ms",
			Help: "Rolling 5-minute mean verification latency in milliseconds.",
		}),
		avgConfidence: factory.NewGauge(prometheus.GaugeOpts{
			Name: "veripipe_verification_avg_confidence",
			Help: "Rolling 5-minute mean confidence score.",
		}),
		verificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "veripipe_verifications_total",
			Help: "Verification verdicts by status.",
		}, []string{"status"}),
		alertsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "veripipe_alerts_total",
			Help: "Alerts raised by level.",
		}, []string{"level"}),
	}
}

// history is a bounded, concurrency-safe log of recent verification
// events, used for rolling window aggregates
type history struct {
	mu     sync.Mutex
	events []models.VerificationEvent
	max    int
}

func newHistory(max int) *history {
	if max <= 0 {
		max = 1000
	}
	return &history{max: max}
}

func (h *history) add(event models.VerificationEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	if len(h.events) > h.max {
		h.events = h.events[len(h.events)-h.max:]
	}
}

// since returns a snapshot of events newer than the cutoff
func (h *history) since(cutoff time.Time) []models.VerificationEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]models.VerificationEvent, 0, len(h.events))
	for _, event := range h.events {
		if event.Timestamp.After(cutoff) {
			out = append(out, event)
		}
	}
	return out
}

// windowStats aggregates a window of verification events. Empty windows
// yield zeroes.
func windowStats(events []models.VerificationEvent) (successRate, avgProcessingMs, avgConfidence float64) {
	if len(events) == 0 {
		return 0, 0, 0
	}

	processing := make([]float64, 0, len(events))
	confidences := make([]float64, 0, len(events))
	successes := 0
	for _, event := range events {
		if event.Status == models.VerificationVerified {
			successes++
		}
		processing = append(processing, event.ProcessingMs)
		confidences = append(confidences, event.Confidence)
	}

	successRate = float64(successes) / float64(len(events))
	avgProcessingMs, _ = stats.Mean(processing)
	avgConfidence, _ = stats.Mean(confidences)
	return successRate, avgProcessingMs, avgConfidence
}
