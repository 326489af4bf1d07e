package validation

import (
	"os"

	"veripipe/internal/errors"

	"gopkg.in/yaml.v3"
)

// Level is the enforcement strictness of a rule. A rule applies when its
// level is at or below the engine's configured level; basic rules always
// apply.
type Level int

const (
	LevelBasic Level = iota
	LevelStandard
	LevelStrict
	LevelParanoid
)

var levelNames = map[string]Level{
	"basic":    LevelBasic,
	"standard": LevelStandard,
	"strict":   LevelStrict,
	"paranoid": LevelParanoid,
}

// ParseLevel maps a level name to its ordinal
func ParseLevel(name string) (Level, error) {
	level, ok := levelNames[name]
	if !ok {
		return LevelBasic, errors.InvalidInput("unknown validation level: " + name)
	}
	return level, nil
}

func (l Level) String() string {
	switch l {
	case LevelBasic:
		return "basic"
	case LevelStandard:
		return "standard"
	case LevelStrict:
		return "strict"
	case LevelParanoid:
		return "paranoid"
	}
	return "unknown"
}

// CheckKind selects the evaluator for a rule. Rules are data, not closures,
// so they can be unit-tested and loaded from a file.
type CheckKind string

const (
	CheckRequiredField   CheckKind = "required_field"
	CheckStringLength    CheckKind = "string_length_range"
	CheckNumericRange    CheckKind = "numeric_range"
	CheckMaxValue        CheckKind = "max_value"
	CheckPhoneFormat     CheckKind = "phone_format"
	CheckUUIDFormat      CheckKind = "uuid_format"
	CheckSessionIDFormat CheckKind = "session_id_format"
	CheckTimestampFormat CheckKind = "timestamp_format"
	CheckPatternAbsent   CheckKind = "pattern_absent"
	CheckAgeAppropriate  CheckKind = "age_appropriate"
	CheckInterestMatch   CheckKind = "interest_match"
	CheckEventSequence   CheckKind = "event_sequence"
	CheckEventTypeKnown  CheckKind = "event_type_known"
	CheckMetadataField   CheckKind = "metadata_field_for_type"
	CheckMinIDLength     CheckKind = "min_id_length"
	CheckRevenueBalance  CheckKind = "revenue_consistency"
)

// Rule is a single validation rule, registered at startup and immutable
// afterwards
type Rule struct {
	Name      string                 `yaml:"name"`
	Interface string                 `yaml:"interface"`
	Weight    float64                `yaml:"weight"`
	Level     string                 `yaml:"level"`
	Kind      CheckKind              `yaml:"kind"`
	Params    map[string]interface{} `yaml:"params"`
	Message   string                 `yaml:"message"`
}

// RuleSet groups rules by interface
type RuleSet map[string][]Rule

// ruleFile is the YAML layout of an external rule-set file
type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads a YAML rule-set file. Weight defaults to 1.0, level to
// standard.
func LoadRules(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read rules file %s", path)
	}

	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "failed to parse rules file")
	}

	set := make(RuleSet)
	for _, rule := range file.Rules {
		if rule.Name == "" || rule.Interface == "" || rule.Kind == "" {
			return nil, errors.InvalidInput("rule requires name, interface and kind")
		}
		if rule.Weight <= 0 {
			rule.Weight = 1.0
		}
		if rule.Level == "" {
			rule.Level = "standard"
		}
		if _, err := ParseLevel(rule.Level); err != nil {
			return nil, err
		}
		set[rule.Interface] = append(set[rule.Interface], rule)
	}
	return set, nil
}

// DefaultRules returns the built-in rule set covering every producer
// interface plus the internal events interface used by the event store.
func DefaultRules() RuleSet {
	rules := []Rule{
		// phone interface
		{Name: "valid_phone_number", Interface: "phone", Weight: 1.0, Level: "standard",
			Kind: CheckPhoneFormat, Params: p("field", "phone_number"),
			Message: "Invalid phone number format"},
		{Name: "call_duration_reasonable", Interface: "phone", Weight: 1.0, Level: "standard",
			Kind: CheckNumericRange, Params: p("field", "duration_seconds", "min", 5.0, "max", 1800.0),
			Message: "Call duration outside reasonable range"},
		{Name: "session_id_format", Interface: "phone", Weight: 1.0, Level: "standard",
			Kind: CheckSessionIDFormat, Params: p("field", "session_id"),
			Message: "Invalid session ID format"},
		{Name: "audio_quality_check", Interface: "phone", Weight: 1.0, Level: "strict",
			Kind: CheckNumericRange, Params: p("field", "audio_quality_score", "min", 0.7, "max", 1.0, "default", 1.0),
			Message: "Audio quality below acceptable threshold"},

		// database interface
		{Name: "subject_id_format", Interface: "database", Weight: 1.0, Level: "standard",
			Kind: CheckUUIDFormat, Params: p("field", "subject_id"),
			Message: "Invalid subject ID format"},
		{Name: "child_age_range", Interface: "database", Weight: 1.0, Level: "standard",
			Kind: CheckNumericRange, Params: p("field", "age", "min", 2.0, "max", 12.0),
			Message: "Child age outside valid range (2-12)"},
		{Name: "story_content_length", Interface: "database", Weight: 1.0, Level: "standard",
			Kind: CheckStringLength, Params: p("field", "content", "min", 100.0, "max", 5000.0),
			Message: "Story content length invalid"},
		{Name: "timestamp_format", Interface: "database", Weight: 1.0, Level: "standard",
			Kind: CheckTimestampFormat, Params: p("field", "created_at"),
			Message: "Invalid timestamp format"},
		{Name: "foreign_key_integrity", Interface: "database", Weight: 1.0, Level: "strict",
			Kind: CheckUUIDFormat, Params: p("field", "subject_id", "companion_phone_field", "parent_phone"),
			Message: "Foreign key constraint violation"},

		// ai interface
		{Name: "story_age_appropriate", Interface: "ai", Weight: 2.0, Level: "standard",
			Kind: CheckAgeAppropriate, Params: p("content_field", "story_content", "age_field", "child_age"),
			Message: "Story content not age-appropriate"},
		{Name: "content_safety", Interface: "ai", Weight: 3.0, Level: "standard",
			Kind: CheckPatternAbsent, Params: p("field", "story_content"),
			Message: "Content safety violation detected"},
		{Name: "personalization_accuracy", Interface: "ai", Weight: 1.0, Level: "standard",
			Kind: CheckInterestMatch, Params: p("content_field", "story_content", "interests_field", "child_interests"),
			Message: "Personalization accuracy below threshold"},
		{Name: "response_time_acceptable", Interface: "ai", Weight: 1.0, Level: "standard",
			Kind: CheckMaxValue, Params: p("field", "generation_time_seconds", "max", 10.0),
			Message: "AI response time exceeds acceptable limit"},

		// analytics interface
		{Name: "metric_value_range", Interface: "analytics", Weight: 1.0, Level: "standard",
			Kind: CheckNumericRange, Params: p("field", "metric_value", "min", 0.0, "max", 1.0),
			Message: "Metric value outside valid range"},
		{Name: "event_sequence_logical", Interface: "analytics", Weight: 1.0, Level: "standard",
			Kind: CheckEventSequence, Params: p("field", "event_sequence"),
			Message: "Illogical event sequence detected"},
		{Name: "completion_rate_realistic", Interface: "analytics", Weight: 1.0, Level: "standard",
			Kind: CheckNumericRange, Params: p("field", "completion_rate", "min", 0.0, "max", 1.0),
			Message: "Completion rate outside realistic range"},

		// business interface
		{Name: "freemium_usage_limit", Interface: "business", Weight: 1.0, Level: "standard",
			Kind: CheckMaxValue, Params: p("field", "monthly_usage", "max", 10.0),
			Message: "Freemium usage limit exceeded"},
		{Name: "conversion_rate_realistic", Interface: "business", Weight: 1.0, Level: "standard",
			Kind: CheckNumericRange, Params: p("field", "conversion_probability", "min", 0.0, "max", 1.0),
			Message: "Conversion probability outside realistic range"},
		{Name: "revenue_calculation_accurate", Interface: "business", Weight: 1.0, Level: "strict",
			Kind: CheckRevenueBalance, Params: p("revenue_field", "monthly_revenue", "count_field", "subscriber_count", "price_field", "average_subscription_price", "tolerance", 0.05),
			Message: "Revenue calculation inconsistency"},

		// events interface: five weight-1.0 rules so any single failure
		// lowers confidence by exactly 0.2
		{Name: "valid_session_id", Interface: "events", Weight: 1.0, Level: "basic",
			Kind: CheckMinIDLength, Params: p("field", "session_id", "min", 10.0),
			Message: "Invalid session_id"},
		{Name: "valid_subject_id", Interface: "events", Weight: 1.0, Level: "basic",
			Kind: CheckMinIDLength, Params: p("field", "subject_id", "min", 10.0),
			Message: "Invalid subject_id"},
		{Name: "known_event_type", Interface: "events", Weight: 1.0, Level: "basic",
			Kind: CheckEventTypeKnown, Params: p("field", "event_type"),
			Message: "Invalid event_type"},
		{Name: "story_id_present", Interface: "events", Weight: 1.0, Level: "basic",
			Kind: CheckMetadataField, Params: p("type_field", "event_type", "when", "story_begin", "require", "story_id"),
			Message: "Missing story_id in story_begin event"},
		{Name: "timestamp_present", Interface: "events", Weight: 1.0, Level: "basic",
			Kind: CheckRequiredField, Params: p("field", "timestamp"),
			Message: "Missing event timestamp"},
	}

	set := make(RuleSet)
	for _, rule := range rules {
		set[rule.Interface] = append(set[rule.Interface], rule)
	}
	return set
}

func p(kv ...interface{}) map[string]interface{} {
	params := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		params[kv[i].(string)] = kv[i+1]
	}
	return params
}
