package verify

import (
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// registrationSchema screens user_registration payloads on the fast path.
// The deep path still runs the full database rule set afterwards.
const registrationSchema = `{
	"type": "object",
	"required": ["child_name", "child_age", "parent_phone"],
	"properties": {
		"child_name": {"type": "string", "minLength": 1},
		"child_age": {"type": "number"},
		"parent_phone": {"type": "string", "minLength": 1}
	}
}`

func compileRegistrationSchema() *jsonschema.Schema {
	return jsonschema.MustCompileString("user_registration.json", registrationSchema)
}

var fastUnsafeWords = []string{"violence", "scary", "death"}

// fastResult is the immediate verdict from the synchronous heuristics
type fastResult struct {
	failed     bool
	confidence float64
	alerts     []string
}

// quickValidate runs bounded-latency, type-specific heuristics. It never
// touches storage; the authoritative verdict comes from the deep path.
func (v *Verifier) quickValidate(dataType string, payload map[string]interface{}) fastResult {
	result := fastResult{confidence: 1.0}

	switch dataType {
	case "phone_call":
		if stringField(payload, "session_id") == "" {
			result.failed = true
			result.confidence = 0.0
			result.alerts = append(result.alerts, "missing_session_id")
		}
		if numField(payload, "duration_seconds") > 1800 {
			result.alerts = append(result.alerts, "call_duration_excessive")
			result.confidence *= 0.8
		}

	case "story_generation":
		content := stringField(payload, "story_content")
		if len(content) < 50 {
			result.failed = true
			result.confidence = 0.3
			result.alerts = append(result.alerts, "story_too_short")
		}
		lower := strings.ToLower(content)
		for _, word := range fastUnsafeWords {
			if strings.Contains(lower, word) {
				result.alerts = append(result.alerts, "potential_unsafe_content")
				result.confidence *= 0.5
				break
			}
		}

	case "user_registration":
		if err := v.registrationSchema.Validate(payload); err != nil {
			result.failed = true
			result.confidence = 0.0
			result.alerts = append(result.alerts, "missing_required_fields")
		}
		age := numField(payload, "child_age")
		if age < 2 || age > 12 {
			result.alerts = append(result.alerts, "age_out_of_range")
			result.confidence *= 0.7
		}
	}

	v.mu.Lock()
	if !v.lastVerification.IsZero() {
		gap := time.Since(v.lastVerification).Milliseconds()
		if float64(gap) > alertRules["response_time_threshold"].Threshold {
			result.alerts = append(result.alerts, "response_time_threshold")
		}
	}
	v.lastVerification = time.Now()
	v.mu.Unlock()

	if !result.failed && result.confidence < alertRules["confidence_score_low"].Threshold {
		result.alerts = append(result.alerts, "confidence_score_low")
	}

	return result
}

func stringField(payload map[string]interface{}, key string) string {
	s, _ := payload[key].(string)
	return s
}

func numField(payload map[string]interface{}, key string) float64 {
	switch n := payload[key].(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
