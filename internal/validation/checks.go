package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"veripipe/models"
)

var (
	phoneDigits  = regexp.MustCompile(`[^\d+]`)
	phonePattern = regexp.MustCompile(`^\+?1?\d{10,15}$`)
	uuidPattern  = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	alnumPattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

	// harmfulPatterns screens generated content for leaked contact details
	// and unsafe themes
	harmfulPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)personal\s+information`),
		regexp.MustCompile(`(?i)contact\s+details`),
		regexp.MustCompile(`(?i)address`),
		regexp.MustCompile(`(?i)phone\s+number`),
		regexp.MustCompile(`(?i)violent`),
		regexp.MustCompile(`(?i)inappropriate`),
	}

	strictUnsafeWords = []string{"violence", "scary", "frightening", "death", "kill"}
	severeUnsafeWords = []string{"violence", "death", "kill"}

	// validTransitions encodes the logical ordering of interaction events
	validTransitions = map[string][]string{
		"call_start":   {"registration", "story_begin", "call_end"},
		"registration": {"story_begin", "call_end"},
		"story_begin":  {"pause", "skip", "completion", "call_end"},
		"pause":        {"story_begin", "skip", "completion", "call_end"},
		"skip":         {"story_begin", "call_end"},
		"completion":   {"story_begin", "call_end"},
		"replay":       {"story_begin", "completion", "call_end"},
	}
)

// evaluateRule runs one rule predicate against a payload. A returned error
// counts as a failure at the call site; it never propagates further.
func evaluateRule(rule Rule, payload map[string]interface{}) (bool, error) {
	switch rule.Kind {
	case CheckRequiredField:
		v, ok := payload[param[string](rule, "field")]
		return ok && v != nil && v != "", nil

	case CheckStringLength:
		s := stringAt(payload, param[string](rule, "field"))
		min := int(paramFloat(rule, "min", 0))
		max := int(paramFloat(rule, "max", 1<<31))
		return len(s) >= min && len(s) <= max, nil

	case CheckNumericRange:
		v, err := floatAt(payload, param[string](rule, "field"), paramFloat(rule, "default", 0))
		if err != nil {
			return false, err
		}
		return v >= paramFloat(rule, "min", 0) && v <= paramFloat(rule, "max", 0), nil

	case CheckMaxValue:
		v, err := floatAt(payload, param[string](rule, "field"), 0)
		if err != nil {
			return false, err
		}
		return v <= paramFloat(rule, "max", 0), nil

	case CheckPhoneFormat:
		return validPhone(stringAt(payload, param[string](rule, "field"))), nil

	case CheckUUIDFormat:
		if !uuidPattern.MatchString(stringAt(payload, param[string](rule, "field"))) {
			return false, nil
		}
		if companion := param[string](rule, "companion_phone_field"); companion != "" {
			return validPhone(stringAt(payload, companion)), nil
		}
		return true, nil

	case CheckSessionIDFormat:
		s := stringAt(payload, param[string](rule, "field"))
		return len(s) >= 10 && alnumPattern.MatchString(s), nil

	case CheckTimestampFormat:
		s := stringAt(payload, param[string](rule, "field"))
		if _, err := time.Parse(time.RFC3339, s); err == nil {
			return true, nil
		}
		_, err := time.Parse("2006-01-02T15:04:05", s)
		return err == nil, nil

	case CheckPatternAbsent:
		s := stringAt(payload, param[string](rule, "field"))
		if s == "" {
			return false, nil
		}
		for _, pattern := range harmfulPatterns {
			if pattern.MatchString(s) {
				return false, nil
			}
		}
		return true, nil

	case CheckAgeAppropriate:
		return ageAppropriate(rule, payload)

	case CheckInterestMatch:
		return interestMatch(rule, payload)

	case CheckEventSequence:
		return logicalSequence(rule, payload)

	case CheckEventTypeKnown:
		s := stringAt(payload, param[string](rule, "field"))
		return models.IsKnownEventType(models.EventType(s)), nil

	case CheckMetadataField:
		if stringAt(payload, param[string](rule, "type_field")) != param[string](rule, "when") {
			return true, nil
		}
		meta, ok := payload["metadata"].(map[string]interface{})
		if !ok {
			return false, nil
		}
		_, present := meta[param[string](rule, "require")]
		return present, nil

	case CheckMinIDLength:
		s := stringAt(payload, param[string](rule, "field"))
		return len(s) >= int(paramFloat(rule, "min", 0)), nil

	case CheckRevenueBalance:
		return revenueConsistent(rule, payload)
	}

	return false, fmt.Errorf("unknown check kind %q", rule.Kind)
}

func ageAppropriate(rule Rule, payload map[string]interface{}) (bool, error) {
	content := strings.ToLower(stringAt(payload, param[string](rule, "content_field")))
	age, err := floatAt(payload, param[string](rule, "age_field"), 5)
	if err != nil {
		return false, err
	}

	switch {
	case age <= 5:
		for _, word := range strictUnsafeWords {
			if strings.Contains(content, word) {
				return false, nil
			}
		}
		return true, nil
	case age <= 8:
		for _, word := range severeUnsafeWords {
			if strings.Contains(content, word) {
				return false, nil
			}
		}
		return true, nil
	default:
		return len(content) > 0, nil
	}
}

func interestMatch(rule Rule, payload map[string]interface{}) (bool, error) {
	content := strings.ToLower(stringAt(payload, param[string](rule, "content_field")))
	raw, ok := payload[param[string](rule, "interests_field")]
	if !ok || content == "" {
		// nothing to compare against
		return true, nil
	}

	interests, err := stringSlice(raw)
	if err != nil {
		return false, err
	}
	if len(interests) == 0 {
		return true, nil
	}

	for _, interest := range interests {
		if strings.Contains(content, strings.ToLower(interest)) {
			return true, nil
		}
	}
	return false, nil
}

func logicalSequence(rule Rule, payload map[string]interface{}) (bool, error) {
	raw, ok := payload[param[string](rule, "field")]
	if !ok {
		return true, nil
	}
	events, err := stringSlice(raw)
	if err != nil {
		return false, err
	}

	for i := 0; i+1 < len(events); i++ {
		allowed, known := validTransitions[events[i]]
		if !known {
			continue
		}
		next := events[i+1]
		found := false
		for _, candidate := range allowed {
			if candidate == next {
				found = true
				break
			}
		}
		if !found {
			return false, nil
		}
	}
	return true, nil
}

func revenueConsistent(rule Rule, payload map[string]interface{}) (bool, error) {
	revenue, err := floatAt(payload, param[string](rule, "revenue_field"), 0)
	if err != nil {
		return false, err
	}
	count, err := floatAt(payload, param[string](rule, "count_field"), 0)
	if err != nil {
		return false, err
	}
	price, err := floatAt(payload, param[string](rule, "price_field"), 0)
	if err != nil {
		return false, err
	}

	if count == 0 || price == 0 {
		return revenue == 0, nil
	}

	expected := count * price
	diff := revenue - expected
	if diff < 0 {
		diff = -diff
	}
	return diff/expected <= paramFloat(rule, "tolerance", 0.05), nil
}

func validPhone(phone string) bool {
	if phone == "" {
		return false
	}
	clean := phoneDigits.ReplaceAllString(phone, "")
	return phonePattern.MatchString(clean)
}

// param reads a typed parameter from a rule, zero value when absent
func param[T any](rule Rule, key string) T {
	var zero T
	v, ok := rule.Params[key]
	if !ok {
		return zero
	}
	typed, ok := v.(T)
	if !ok {
		return zero
	}
	return typed
}

func paramFloat(rule Rule, key string, fallback float64) float64 {
	v, ok := rule.Params[key]
	if !ok {
		return fallback
	}
	f, err := toFloat(v)
	if err != nil {
		return fallback
	}
	return f
}

func stringAt(payload map[string]interface{}, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// floatAt reads a numeric payload field, falling back when absent. A present
// but non-numeric value is an evaluation error, which the engine records as
// a rule failure.
func floatAt(payload map[string]interface{}, key string, fallback float64) (float64, error) {
	v, ok := payload[key]
	if !ok || v == nil {
		return fallback, nil
	}
	return toFloat(v)
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected numeric value, got %T", v)
	}
}

func stringSlice(v interface{}) ([]string, error) {
	switch items := v.(type) {
	case []string:
		return items, nil
	case []interface{}:
		out := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string list element, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected string list, got %T", v)
	}
}
