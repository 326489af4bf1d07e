package validation

import (
	"context"
	"fmt"
	"log"
	"time"

	"veripipe/models"
)

// HealthRecorder receives validation health metrics as a side effect of
// each validation run. The event store satisfies this.
type HealthRecorder interface {
	TrackSystemHealth(ctx context.Context, metricName string, value float64, interfaceType string) error
}

// Engine evaluates registered rules against interface payloads and produces
// weighted confidence verdicts. Safe for concurrent use; rules are immutable
// after construction.
type Engine struct {
	rules    RuleSet
	level    Level
	recorder HealthRecorder
}

// NewEngine builds an engine over a rule set. recorder may be nil during
// bootstrap; use SetRecorder once the event store exists.
func NewEngine(rules RuleSet, level Level, recorder HealthRecorder) *Engine {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Engine{rules: rules, level: level, recorder: recorder}
}

// SetRecorder wires the health metric sink. Called once during startup,
// before any validation runs.
func (e *Engine) SetRecorder(recorder HealthRecorder) {
	e.recorder = recorder
}

// Validate runs every applicable rule for an interface against a payload.
// A rule whose predicate returns an error counts as a failure same as a
// clean false; the error text is surfaced in the report.
func (e *Engine) Validate(ctx context.Context, interfaceType string, payload map[string]interface{}) models.ValidationReport {
	report := models.ValidationReport{
		Interface: interfaceType,
		DataType:  stringAt(payload, "data_type"),
		Errors:    []string{},
		Warnings:  []string{},
		Timestamp: time.Now().UTC(),
	}
	if report.DataType == "" {
		report.DataType = "unknown"
	}

	var totalWeight, passedWeight float64
	for _, rule := range e.rules[interfaceType] {
		if !e.applies(rule) {
			continue
		}

		report.TotalChecks++
		totalWeight += rule.Weight

		passed, err := evaluateRule(rule, payload)
		if err != nil {
			report.FailedChecks++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: Validation error - %v", rule.Name, err))
			continue
		}
		if !passed {
			report.FailedChecks++
			report.Errors = append(report.Errors, rule.Message)
			continue
		}

		report.PassedChecks++
		passedWeight += rule.Weight
	}

	if totalWeight > 0 {
		report.Confidence = passedWeight / totalWeight
	} else {
		report.Confidence = 1.0
	}

	e.record(ctx, interfaceType+"_validation_rate", report.SuccessRate(), interfaceType)
	e.record(ctx, interfaceType+"_confidence_score", report.Confidence, interfaceType)

	return report
}

// applies checks rule strictness against the engine level. Basic rules
// always run.
func (e *Engine) applies(rule Rule) bool {
	level, err := ParseLevel(rule.Level)
	if err != nil {
		log.Printf("[Validation] Rule %s has invalid level %q, skipping", rule.Name, rule.Level)
		return false
	}
	return level == LevelBasic || level <= e.level
}

// ValidateCross checks consistency between payloads captured from different
// interfaces for the same session. Zero comparable pairs yields a clean
// report with confidence 1.0.
func (e *Engine) ValidateCross(ctx context.Context, dataSets map[string]map[string]interface{}) models.ValidationReport {
	report := models.ValidationReport{
		Interface: "cross_interface",
		DataType:  "consistency_check",
		Errors:    []string{},
		Warnings:  []string{},
		Timestamp: time.Now().UTC(),
	}

	if db, okDB := dataSets["database"]; okDB {
		if analytics, okA := dataSets["analytics"]; okA {
			report.TotalChecks++
			if stringAt(db, "subject_id") == stringAt(analytics, "subject_id") {
				report.PassedChecks++
			} else {
				report.Errors = append(report.Errors, "Subject ID mismatch between database and analytics")
			}

			report.TotalChecks++
			dbCount, _ := floatAt(db, "story_count", 0)
			aCount, _ := floatAt(analytics, "story_count", 0)
			diff := dbCount - aCount
			if diff < 0 {
				diff = -diff
			}
			if diff <= 1 {
				report.PassedChecks++
			} else {
				report.Errors = append(report.Errors,
					fmt.Sprintf("Story count mismatch: DB=%.0f, Analytics=%.0f", dbCount, aCount))
			}
		}

		if phone, okP := dataSets["phone"]; okP {
			report.TotalChecks++
			phoneSession := stringAt(phone, "session_id")
			dbSession := stringAt(db, "session_id")
			switch {
			case phoneSession == "" || dbSession == "":
				report.Warnings = append(report.Warnings, "Missing session ID in cross-interface validation")
			case phoneSession == dbSession:
				report.PassedChecks++
			default:
				report.Errors = append(report.Errors, "Session ID mismatch between phone and database")
			}
		}
	}

	report.FailedChecks = report.TotalChecks - report.PassedChecks
	if report.TotalChecks > 0 {
		report.Confidence = float64(report.PassedChecks) / float64(report.TotalChecks)
	} else {
		report.Confidence = 1.0
	}
	return report
}

// SystemReport validates every supplied interface payload plus their
// cross-interface consistency and rolls the results into one summary.
func (e *Engine) SystemReport(ctx context.Context, dataSources map[string]map[string]interface{}) models.SystemValidationReport {
	summary := models.SystemValidationReport{
		Reports:     make(map[string]models.ValidationReport),
		Level:       e.level.String(),
		GeneratedAt: time.Now().UTC(),
	}

	var totalConfidence float64
	var interfaceCount, totalChecks, passedChecks int
	for interfaceType, payload := range dataSources {
		if _, ok := e.rules[interfaceType]; !ok {
			continue
		}
		report := e.Validate(ctx, interfaceType, payload)
		summary.Reports[interfaceType] = report

		totalConfidence += report.Confidence
		totalChecks += report.TotalChecks
		passedChecks += report.PassedChecks
		interfaceCount++
	}

	summary.Reports["cross_interface"] = e.ValidateCross(ctx, dataSources)

	if interfaceCount > 0 {
		summary.OverallConfidence = totalConfidence / float64(interfaceCount)
	}
	if totalChecks > 0 {
		summary.OverallSuccessRate = float64(passedChecks) / float64(totalChecks)
	}
	summary.Healthy = summary.OverallSuccessRate >= models.MinSuccessRate &&
		summary.OverallConfidence >= models.MinConfidence
	return summary
}

// record forwards a health metric to the recorder. Recorder failures are
// logged, never propagated into the validation verdict.
func (e *Engine) record(ctx context.Context, name string, value float64, interfaceType string) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.TrackSystemHealth(ctx, name, value, interfaceType); err != nil {
		log.Printf("[Validation] Failed to record %s: %v", name, err)
	}
}
