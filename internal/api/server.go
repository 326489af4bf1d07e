package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"veripipe/internal/core"
	"veripipe/internal/eventstore"
	"veripipe/internal/qa"
	"veripipe/internal/verify"
)

// Server is the thin read-mostly HTTP surface over the pipeline. All
// endpoints are safe to call concurrently with ingestion.
type Server struct {
	router   *chi.Mux
	core     *core.Core
	store    *eventstore.Store
	harness  *qa.Harness
	verifier *verify.Verifier
}

// NewServer wires up the routes. gatherer backs the Prometheus endpoint;
// pass prometheus.DefaultGatherer in production.
func NewServer(c *core.Core, store *eventstore.Store, harness *qa.Harness, verifier *verify.Verifier, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		core:     c,
		store:    store,
		harness:  harness,
		verifier: verifier,
	}

	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/status", s.handleStatus)
	s.router.Get("/api/alerts", s.handleActiveAlerts)
	s.router.Post("/api/alerts/{id}/ack", s.handleAcknowledge)
	s.router.Post("/api/alerts/{id}/resolve", s.handleResolve)
	s.router.Get("/api/verification/metrics", s.handleVerificationMetrics)
	s.router.Get("/api/qa/summary", s.handleQASummary)
	s.router.Post("/api/verify", s.handleVerify)
	s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return s
}

// Handler exposes the router for the HTTP server
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleHealth returns the event-store health summary for a trailing
// window (default one hour). A storage failure degrades to an error
// marker rather than failing the response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	window := time.Hour
	if raw := r.URL.Query().Get("window_minutes"); raw != "" {
		if minutes, err := strconv.Atoi(raw); err == nil && minutes > 0 {
			window = time.Duration(minutes) * time.Minute
		}
	}

	summary, err := s.store.HealthSummary(r.Context(), window)
	if err != nil {
		log.Printf("[API] Health summary degraded: %v", err)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "error",
			"summary": summary,
		})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.verifier.Status(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"overall_health":    status.OverallHealth,
		"verification_rate": status.VerificationRate,
		"quality_score":     status.QualityScore,
		"active_alerts":     status.ActiveAlerts,
		"is_healthy":        status.IsHealthy(),
		"last_check":        status.LastCheck,
	})
}

func (s *Server) handleActiveAlerts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.verifier.ActiveAlerts())
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	alertID := chi.URLParam(r, "id")
	if !s.verifier.Acknowledge(r.Context(), alertID) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown or resolved alert"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	alertID := chi.URLParam(r, "id")
	if !s.verifier.Resolve(r.Context(), alertID) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown or resolved alert"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

func (s *Server) handleVerificationMetrics(w http.ResponseWriter, r *http.Request) {
	window := 60
	if raw := r.URL.Query().Get("window_minutes"); raw != "" {
		if minutes, err := strconv.Atoi(raw); err == nil {
			window = minutes
		}
	}
	writeJSON(w, http.StatusOK, s.verifier.VerificationMetrics(window))
}

func (s *Server) handleQASummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.harness.Summary(r.Context())
	if err != nil {
		log.Printf("[API] QA summary degraded: %v", err)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "error",
			"summary": summary,
		})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// verifyRequest is the producer-facing composite verification request
type verifyRequest struct {
	Interface string                 `json:"interface"`
	DataType  string                 `json:"data_type"`
	Payload   map[string]interface{} `json:"payload"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Interface == "" || req.DataType == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "interface and data_type are required"})
		return
	}
	if req.Payload == nil {
		req.Payload = map[string]interface{}{}
	}

	verdict := s.core.VerifyData(r.Context(), req.Interface, req.DataType, req.Payload)
	writeJSON(w, http.StatusOK, verdict)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}
