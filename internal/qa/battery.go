package qa

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"veripipe/internal/eventstore"
	"veripipe/internal/validation"
	"veripipe/models"
)

// RegisterDefaults installs the built-in test battery and its remediation
// actions. db may be nil when running without durable storage; the
// connectivity tests then report skipped-equivalent failures.
func RegisterDefaults(h *Harness, engine *validation.Engine, store *eventstore.Store, db *sqlx.DB) {
	tests := []QualityTest{
		{
			ID:          "phone_config_validity",
			Name:        "Phone Configuration Validity",
			Description: "Verify the phone interface rule set accepts a known-good call record",
			Interface:   "phone",
			Severity:    models.SeverityCritical,
			RetryCount:  0,
			Enabled:     true,
			Check:       phoneConfigCheck(engine),
		},
		{
			ID:          "phone_call_simulation",
			Name:        "Phone Call Simulation",
			Description: "Simulate a call workflow end-to-end through event tracking",
			Interface:   "phone",
			Severity:    models.SeverityHigh,
			RetryCount:  2,
			Enabled:     true,
			Check:       callSimulationCheck(store),
		},
		{
			ID:          "database_connectivity",
			Name:        "Database Connectivity",
			Description: "Verify database connection and required tables",
			Interface:   "database",
			Severity:    models.SeverityCritical,
			RetryCount:  3,
			Enabled:     true,
			Check:       connectivityCheck(db),
		},
		{
			ID:          "database_integrity",
			Name:        "Database Integrity",
			Description: "Verify stored events are consistent and validation coverage holds",
			Interface:   "database",
			Severity:    models.SeverityHigh,
			RetryCount:  1,
			Enabled:     true,
			Check:       integrityCheck(store),
		},
		{
			ID:          "ai_story_generation",
			Name:        "AI Story Generation",
			Description: "Validate a synthetic generated story against the ai rule set",
			Interface:   "ai",
			Severity:    models.SeverityHigh,
			RetryCount:  1,
			Enabled:     true,
			Check:       storyGenerationCheck(engine),
		},
		{
			ID:          "ai_content_safety",
			Name:        "AI Content Safety",
			Description: "Verify the safety rules accept safe content and reject unsafe content",
			Interface:   "ai",
			Severity:    models.SeverityCritical,
			RetryCount:  0,
			Enabled:     true,
			Check:       contentSafetyCheck(engine),
		},
		{
			ID:          "analytics_data_flow",
			Name:        "Analytics Data Flow",
			Description: "Verify the analytics pipeline keeps verification rates healthy",
			Interface:   "analytics",
			Severity:    models.SeverityMedium,
			RetryCount:  1,
			Enabled:     true,
			Check:       dataFlowCheck(store),
		},
		{
			ID:          "business_rules_compliance",
			Name:        "Business Rules Compliance",
			Description: "Verify freemium limits and revenue consistency rules are enforced",
			Interface:   "business",
			Severity:    models.SeverityHigh,
			RetryCount:  0,
			Enabled:     true,
			Check:       businessRulesCheck(engine),
		},
	}

	for _, test := range tests {
		if err := h.RegisterTest(test); err != nil {
			// only possible with a nil check function, which would be a bug here
			panic(err)
		}
	}

	h.RegisterRemediation("database_connectivity", func(ctx context.Context) (bool, string) {
		if db == nil {
			return false, "No database handle available for reconnection"
		}
		if err := db.PingContext(ctx); err != nil {
			return false, fmt.Sprintf("Reconnection ping failed: %v", err)
		}
		return true, "Database connection re-established via ping"
	})
	h.RegisterRemediation("phone_config_validity", func(_ context.Context) (bool, string) {
		return false, "Phone configuration remediation requires manual intervention"
	})
	h.RegisterRemediation("ai_content_safety", func(_ context.Context) (bool, string) {
		return false, "Content safety remediation requires manual review"
	})
}

func phoneConfigCheck(engine *validation.Engine) CheckFunc {
	return func(ctx context.Context) CheckResult {
		report := engine.Validate(ctx, "phone", map[string]interface{}{
			"data_type":        "call_record",
			"phone_number":     "+15551234567",
			"duration_seconds": 120.0,
			"session_id":       "qasession0001",
		})
		details := map[string]interface{}{
			"total_checks":     report.TotalChecks,
			"confidence_score": report.Confidence,
		}
		if report.TotalChecks == 0 {
			return Failed("No phone validation rules registered", details)
		}
		if !report.IsValid() {
			return Failed(fmt.Sprintf("Known-good call record rejected: %v", report.Errors), details)
		}
		return Ok("Phone configuration valid", details)
	}
}

func callSimulationCheck(store *eventstore.Store) CheckFunc {
	return func(ctx context.Context) CheckResult {
		sessionID := "qasim" + uuid.NewString()[:8]
		subjectID := uuid.NewString()

		steps := []struct {
			eventType models.EventType
			metadata  map[string]interface{}
		}{
			{models.EventCallStart, map[string]interface{}{"phone_number": "+15551234567", "simulated": true}},
			{models.EventStoryBegin, map[string]interface{}{"story_id": 1, "story_title": "Test Story"}},
			{models.EventCompletion, map[string]interface{}{"duration_seconds": 300}},
		}
		for _, step := range steps {
			if err := store.TrackEvent(ctx, sessionID, subjectID, step.eventType, step.metadata); err != nil {
				return Retryable(fmt.Errorf("tracking %s: %w", step.eventType, err))
			}
		}

		return Ok("Phone call simulation successful", map[string]interface{}{
			"session_id":     sessionID,
			"events_tracked": len(steps),
		})
	}
}

func connectivityCheck(db *sqlx.DB) CheckFunc {
	return func(ctx context.Context) CheckResult {
		if db == nil {
			return Failed("No database handle configured", nil)
		}

		var one int
		if err := db.GetContext(ctx, &one, "SELECT 1"); err != nil {
			return Retryable(fmt.Errorf("probe query: %w", err))
		}

		var tables int
		err := db.GetContext(ctx, &tables, `
			SELECT COUNT(*) FROM information_schema.tables
			WHERE table_name IN ('call_events', 'story_performance')`)
		if err != nil {
			return Retryable(fmt.Errorf("table check: %w", err))
		}

		details := map[string]interface{}{
			"tables_found":    tables,
			"expected_tables": 2,
		}
		if tables < 2 {
			return Failed("Required database tables missing", details)
		}
		return Ok("Database connectivity successful", details)
	}
}

func integrityCheck(store *eventstore.Store) CheckFunc {
	return func(ctx context.Context) CheckResult {
		report := store.VerifyIntegrity(ctx)
		details := map[string]interface{}{
			"database_consistency": report.DatabaseConsistency,
			"orphaned_events":      report.OrphanedEvents,
			"validation_coverage":  report.ValidationCoverage,
		}
		if !report.DatabaseConsistency {
			return Failed("Database consistency issues detected", details)
		}
		if report.ValidationCoverage < 0.9 {
			return Failed(fmt.Sprintf("Validation coverage too low: %.2f", report.ValidationCoverage), details)
		}
		return Ok("Database integrity verified", details)
	}
}

func storyGenerationCheck(engine *validation.Engine) CheckFunc {
	return func(ctx context.Context) CheckResult {
		story := "Once upon a time, there was a brave little girl named Emma who loved animals. " +
			"She wandered the meadow greeting every rabbit and deer she met, and when the sun set " +
			"she told her new friends a gentle goodnight story before walking home under the stars."

		report := engine.Validate(ctx, "ai", map[string]interface{}{
			"story_content":           story,
			"child_age":               6.0,
			"child_interests":         []string{"animals", "adventure"},
			"generation_time_seconds": 2.5,
		})

		details := map[string]interface{}{
			"story_length":      len(story),
			"validation_passed": report.IsValid(),
			"confidence_score":  report.Confidence,
		}
		if !report.IsValid() {
			return Failed(fmt.Sprintf("Generated story failed validation: %v", report.Errors), details)
		}
		return Ok("AI story generation successful", details)
	}
}

func contentSafetyCheck(engine *validation.Engine) CheckFunc {
	return func(ctx context.Context) CheckResult {
		longSafeSuffix := " The friends played together all afternoon, sharing snacks and stories, " +
			"and everyone went home happy and sleepy after a wonderful day outside in the sunshine."
		scenarios := []struct {
			content    string
			shouldPass bool
		}{
			{"A happy story about friendship." + longSafeSuffix, true},
			{"A violent and scary story with death everywhere." + longSafeSuffix, false},
			{"Contact me at phone number 555-1234 right away." + longSafeSuffix, false},
			{"A magical adventure with unicorns and rainbows." + longSafeSuffix, true},
		}

		passed := 0
		details := map[string]interface{}{}
		for i, scenario := range scenarios {
			report := engine.Validate(ctx, "ai", map[string]interface{}{
				"story_content": scenario.content,
				"child_age":     6.0,
			})
			ok := report.IsValid() == scenario.shouldPass
			if ok {
				passed++
			}
			details[fmt.Sprintf("scenario_%d", i)] = map[string]interface{}{
				"expected_pass": scenario.shouldPass,
				"actual_pass":   report.IsValid(),
			}
		}

		rate := float64(passed) / float64(len(scenarios))
		details["success_rate"] = rate
		if rate < 0.75 {
			return Failed(fmt.Sprintf("Content safety success rate too low: %.2f", rate), details)
		}
		return Ok("AI content safety verification successful", details)
	}
}

func dataFlowCheck(store *eventstore.Store) CheckFunc {
	return func(ctx context.Context) CheckResult {
		summary, err := store.HealthSummary(ctx, 0)
		if err != nil {
			return Retryable(fmt.Errorf("health summary: %w", err))
		}

		details := map[string]interface{}{
			"event_verification_rate": summary.EventVerificationRate,
			"validation_rate":         summary.ValidationRate,
		}
		if summary.EventVerificationRate < 0.95 {
			return Failed(fmt.Sprintf("Verification rate too low: %.2f", summary.EventVerificationRate), details)
		}
		return Ok("Analytics data flow healthy", details)
	}
}

func businessRulesCheck(engine *validation.Engine) CheckFunc {
	return func(ctx context.Context) CheckResult {
		within := map[string]interface{}{
			"monthly_usage":              9.0,
			"conversion_probability":     0.15,
			"monthly_revenue":            100.0,
			"subscriber_count":           5.0,
			"average_subscription_price": 20.0,
		}
		withinReport := engine.Validate(ctx, "business", within)

		overLimit := map[string]interface{}{}
		for k, v := range within {
			overLimit[k] = v
		}
		overLimit["monthly_usage"] = 11.0
		overLimitReport := engine.Validate(ctx, "business", overLimit)

		details := map[string]interface{}{
			"freemium_validation":   withinReport.IsValid(),
			"over_limit_validation": !overLimitReport.IsValid(),
		}
		if !withinReport.IsValid() {
			return Failed("In-limit business payload rejected", details)
		}
		if overLimitReport.IsValid() {
			return Failed("Over-limit business payload accepted", details)
		}
		return Ok("Business rules compliance verified", details)
	}
}
