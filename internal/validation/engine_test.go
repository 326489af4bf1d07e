package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veripipe/models"
)

type recordedMetric struct {
	name          string
	value         float64
	interfaceType string
}

type fakeRecorder struct {
	metrics []recordedMetric
}

func (f *fakeRecorder) TrackSystemHealth(_ context.Context, name string, value float64, interfaceType string) error {
	f.metrics = append(f.metrics, recordedMetric{name, value, interfaceType})
	return nil
}

func validPhonePayload() map[string]interface{} {
	return map[string]interface{}{
		"data_type":        "call_record",
		"phone_number":     "+15551234567",
		"duration_seconds": 120.0,
		"session_id":       "session12345",
	}
}

func TestValidatePassingPayload(t *testing.T) {
	recorder := &fakeRecorder{}
	engine := NewEngine(DefaultRules(), LevelStandard, recorder)

	report := engine.Validate(context.Background(), "phone", validPhonePayload())

	assert.Equal(t, report.TotalChecks, report.PassedChecks)
	assert.Equal(t, 1.0, report.Confidence)
	assert.True(t, report.IsValid())
	assert.Empty(t, report.Errors)
}

func TestValidateConfidenceBounds(t *testing.T) {
	engine := NewEngine(DefaultRules(), LevelParanoid, nil)

	payloads := []map[string]interface{}{
		validPhonePayload(),
		{},
		{"phone_number": "bad", "duration_seconds": -1.0, "session_id": "x"},
		{"duration_seconds": "not a number"},
	}
	for _, payload := range payloads {
		report := engine.Validate(context.Background(), "phone", payload)
		assert.GreaterOrEqual(t, report.Confidence, 0.0)
		assert.LessOrEqual(t, report.Confidence, 1.0)
	}
}

func TestValidateWeightedConfidence(t *testing.T) {
	rules := RuleSet{
		"test": {
			{Name: "heavy", Interface: "test", Weight: 3.0, Level: "standard",
				Kind: CheckRequiredField, Params: p("field", "always_missing"), Message: "heavy failed"},
			{Name: "light", Interface: "test", Weight: 1.0, Level: "standard",
				Kind: CheckRequiredField, Params: p("field", "present"), Message: "light failed"},
		},
	}
	engine := NewEngine(rules, LevelStandard, nil)

	report := engine.Validate(context.Background(), "test", map[string]interface{}{"present": "yes"})

	require.Equal(t, 2, report.TotalChecks)
	assert.Equal(t, 1, report.PassedChecks)
	assert.InDelta(t, 0.25, report.Confidence, 1e-9)
	assert.Contains(t, report.Errors, "heavy failed")
}

func TestValidateErrorCountsAsFailure(t *testing.T) {
	rules := RuleSet{
		"test": {
			{Name: "range_check", Interface: "test", Weight: 2.0, Level: "standard",
				Kind: CheckNumericRange, Params: p("field", "value", "min", 0.0, "max", 1.0),
				Message: "range failed"},
			{Name: "id_check", Interface: "test", Weight: 2.0, Level: "standard",
				Kind: CheckMinIDLength, Params: p("field", "id", "min", 3.0),
				Message: "id failed"},
		},
	}
	engine := NewEngine(rules, LevelStandard, nil)

	report := engine.Validate(context.Background(), "test", map[string]interface{}{
		"value": "garbage",
		"id":    "abcdef",
	})

	// the errored rule's weight still counts in the total
	assert.Equal(t, 1, report.FailedChecks)
	assert.InDelta(t, 0.5, report.Confidence, 1e-9)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "range_check: Validation error -")
}

func TestValidateLevelFiltering(t *testing.T) {
	engine := NewEngine(DefaultRules(), LevelStandard, nil)
	standard := engine.Validate(context.Background(), "phone", validPhonePayload())

	strict := NewEngine(DefaultRules(), LevelStrict, nil)
	strictReport := strict.Validate(context.Background(), "phone", validPhonePayload())

	assert.Greater(t, strictReport.TotalChecks, standard.TotalChecks,
		"strict level should run additional rules")
}

func TestValidateBasicRulesAlwaysApply(t *testing.T) {
	engine := NewEngine(DefaultRules(), LevelBasic, nil)

	report := engine.Validate(context.Background(), "events", map[string]interface{}{
		"session_id": "session12345",
		"subject_id": "subject12345",
		"event_type": "pause",
		"timestamp":  "2026-09-01T10:00:00Z",
	})

	assert.Equal(t, 5, report.TotalChecks)
	assert.Equal(t, 1.0, report.Confidence)
}

func TestValidateUnknownInterface(t *testing.T) {
	engine := NewEngine(DefaultRules(), LevelStandard, nil)

	report := engine.Validate(context.Background(), "telepathy", map[string]interface{}{})

	assert.Equal(t, 0, report.TotalChecks)
	assert.Equal(t, 1.0, report.Confidence)
	assert.False(t, report.IsValid(), "zero checks means zero success rate")
}

func TestValidateRecordsHealthMetrics(t *testing.T) {
	recorder := &fakeRecorder{}
	engine := NewEngine(DefaultRules(), LevelStandard, recorder)

	engine.Validate(context.Background(), "phone", validPhonePayload())

	require.Len(t, recorder.metrics, 2)
	assert.Equal(t, "phone_validation_rate", recorder.metrics[0].name)
	assert.Equal(t, "phone_confidence_score", recorder.metrics[1].name)
	assert.Equal(t, "phone", recorder.metrics[0].interfaceType)
}

func TestValidityThresholdBoundaries(t *testing.T) {
	tests := []struct {
		name       string
		passed     int
		total      int
		confidence float64
		want       bool
	}{
		{"both at threshold", 95, 100, 0.80, true},
		{"confidence below", 95, 100, 0.79, false},
		{"rate below", 94, 100, 0.90, false},
		{"both above", 100, 100, 1.0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := models.ValidationReport{
				TotalChecks:  tt.total,
				PassedChecks: tt.passed,
				FailedChecks: tt.total - tt.passed,
				Confidence:   tt.confidence,
			}
			assert.Equal(t, tt.want, report.IsValid())
		})
	}
}

func TestValidateCrossConsistency(t *testing.T) {
	engine := NewEngine(DefaultRules(), LevelStandard, nil)

	report := engine.ValidateCross(context.Background(), map[string]map[string]interface{}{
		"database": {
			"subject_id":  "subject-1",
			"story_count": 5.0,
			"session_id":  "session12345",
		},
		"analytics": {
			"subject_id":  "subject-1",
			"story_count": 6.0,
		},
		"phone": {
			"session_id": "session12345",
		},
	})

	assert.Equal(t, 3, report.TotalChecks)
	assert.Equal(t, 3, report.PassedChecks)
	assert.Equal(t, 1.0, report.Confidence)
}

func TestValidateCrossMismatch(t *testing.T) {
	engine := NewEngine(DefaultRules(), LevelStandard, nil)

	report := engine.ValidateCross(context.Background(), map[string]map[string]interface{}{
		"database":  {"subject_id": "subject-1", "story_count": 5.0, "session_id": "sessionAAA"},
		"analytics": {"subject_id": "subject-2", "story_count": 9.0},
		"phone":     {"session_id": "sessionBBB"},
	})

	assert.Equal(t, 3, report.FailedChecks)
	assert.Equal(t, 0.0, report.Confidence)
	assert.Len(t, report.Errors, 3)
}

func TestValidateCrossMissingSessionWarns(t *testing.T) {
	engine := NewEngine(DefaultRules(), LevelStandard, nil)

	report := engine.ValidateCross(context.Background(), map[string]map[string]interface{}{
		"database": {"subject_id": "subject-1"},
		"phone":    {},
	})

	assert.Contains(t, report.Warnings, "Missing session ID in cross-interface validation")
}

func TestSystemReport(t *testing.T) {
	engine := NewEngine(DefaultRules(), LevelStandard, nil)

	summary := engine.SystemReport(context.Background(), map[string]map[string]interface{}{
		"phone": validPhonePayload(),
		"business": {
			"monthly_usage":          5.0,
			"conversion_probability": 0.2,
		},
	})

	require.Contains(t, summary.Reports, "phone")
	require.Contains(t, summary.Reports, "business")
	require.Contains(t, summary.Reports, "cross_interface")
	assert.Equal(t, "standard", summary.Level)
	assert.True(t, summary.Healthy)
}

func TestParseLevelOrdering(t *testing.T) {
	basic, err := ParseLevel("basic")
	require.NoError(t, err)
	paranoid, err := ParseLevel("paranoid")
	require.NoError(t, err)
	assert.Less(t, basic, paranoid)

	_, err = ParseLevel("extreme")
	assert.Error(t, err)
}
