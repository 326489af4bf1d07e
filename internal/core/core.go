package core

import (
	"context"
	"log"
	"time"

	"veripipe/internal/eventstore"
	"veripipe/internal/qa"
	"veripipe/internal/validation"
	"veripipe/internal/verify"
	"veripipe/models"
)

// Verdict is the composite result returned to producers: the fast
// realtime verdict combined with the full rule-set validation.
type Verdict struct {
	Verified         bool      `json:"verified"`
	ValidationPassed bool      `json:"validation_passed"`
	Confidence       float64   `json:"confidence"`
	Errors           []string  `json:"errors"`
	Timestamp        time.Time `json:"timestamp"`
}

// Core ties the pipeline components together behind one entry point.
// Constructed once at startup; no ambient globals.
type Core struct {
	store    *eventstore.Store
	engine   *validation.Engine
	harness  *qa.Harness
	verifier *verify.Verifier
}

func New(store *eventstore.Store, engine *validation.Engine, harness *qa.Harness, verifier *verify.Verifier) *Core {
	return &Core{store: store, engine: engine, harness: harness, verifier: verifier}
}

// Start launches the background workers: realtime verification plus the
// continuous QA loop
func (c *Core) Start(ctx context.Context, qaInterval time.Duration) {
	c.verifier.Start(ctx)
	c.harness.StartContinuous(ctx, qaInterval)
	log.Printf("[Core] Trust-but-verify pipeline started")
}

// Stop shuts the workers down cooperatively and flushes any buffered
// events
func (c *Core) Stop(ctx context.Context) {
	c.harness.StopContinuous()
	c.verifier.Stop()
	if err := c.store.Flush(ctx); err != nil {
		log.Printf("[Core] Final flush failed: %v", err)
	}
	log.Printf("[Core] Trust-but-verify pipeline stopped")
}

// VerifyData runs a payload through both paths and tracks the
// verification as an interaction event. The combined confidence is the
// lower of the two verdicts.
func (c *Core) VerifyData(ctx context.Context, interfaceType, dataType string, payload map[string]interface{}) Verdict {
	realtime := c.verifier.VerifyRealtime(ctx, dataType, payload)
	validationReport := c.engine.Validate(ctx, interfaceType, payload)

	sessionID := stringOr(payload, "session_id", "system")
	subjectID := stringOr(payload, "subject_id", "system")
	eventType := models.EventType(interfaceType + "_verification")
	if err := c.store.TrackEvent(ctx, sessionID, subjectID, eventType, map[string]interface{}{
		"data_type": dataType,
	}); err != nil {
		log.Printf("[Core] Failed to track verification event: %v", err)
	}

	confidence := realtime.Confidence
	if validationReport.Confidence < confidence {
		confidence = validationReport.Confidence
	}

	return Verdict{
		Verified:         realtime.Status == models.VerificationVerified,
		ValidationPassed: validationReport.IsValid(),
		Confidence:       confidence,
		Errors:           validationReport.Errors,
		Timestamp:        time.Now().UTC(),
	}
}

// VerifyPhoneCall is a producer convenience wrapper around VerifyData
func (c *Core) VerifyPhoneCall(ctx context.Context, sessionID, phone string, durationSeconds float64) Verdict {
	return c.VerifyData(ctx, "phone", "phone_call", map[string]interface{}{
		"session_id":       sessionID,
		"phone_number":     phone,
		"duration_seconds": durationSeconds,
	})
}

// VerifyStory is a producer convenience wrapper around VerifyData
func (c *Core) VerifyStory(ctx context.Context, content string, age float64, interests []string) Verdict {
	return c.VerifyData(ctx, "ai", "story_generation", map[string]interface{}{
		"story_content":   content,
		"child_age":       age,
		"child_interests": interests,
	})
}

func stringOr(payload map[string]interface{}, key, fallback string) string {
	if s, ok := payload[key].(string); ok && s != "" {
		return s
	}
	return fallback
}
