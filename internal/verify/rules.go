package verify

import (
	"fmt"
	"strings"

	"veripipe/models"
)

// AlertRule defines one static alerting condition. The message template
// uses {name} placeholders filled from the trigger context.
type AlertRule struct {
	Threshold float64
	Level     models.AlertLevel
	Template  string
}

// alertRules is the static rule table. Triggering an alert name not in
// this table is a no-op beyond a log line.
var alertRules = map[string]AlertRule{
	"response_time_threshold": {
		Threshold: 5000,
		Level:     models.AlertWarning,
		Template:  "Response time exceeded {threshold}ms: {actual_time}ms",
	},
	"verification_failure": {
		Threshold: 1,
		Level:     models.AlertError,
		Template:  "Deep verification failed for {event_id} (confidence {confidence})",
	},
	"verification_failure_rate": {
		Threshold: 0.05,
		Level:     models.AlertError,
		Template:  "Verification failure rate too high: {failure_rate}%",
	},
	"confidence_score_low": {
		Threshold: 0.7,
		Level:     models.AlertWarning,
		Template:  "Low confidence score detected: {confidence_score}",
	},
	"queue_overflow": {
		Threshold: 900,
		Level:     models.AlertCritical,
		Template:  "Processing queue near capacity: {queue_size}/{max_size}",
	},
	"database_connection_failure": {
		Threshold: 1,
		Level:     models.AlertCritical,
		Template:  "Database connection failure detected",
	},
	"ai_generation_timeout": {
		Threshold: 30000,
		Level:     models.AlertError,
		Template:  "AI generation timeout: {duration}ms",
	},
}

// renderTemplate substitutes {key} placeholders from the context map.
// Unmatched placeholders are left as-is.
func renderTemplate(template string, context map[string]interface{}) string {
	out := template
	for key, value := range context {
		out = strings.ReplaceAll(out, "{"+key+"}", formatValue(value))
	}
	return out
}

func formatValue(v interface{}) string {
	switch n := v.(type) {
	case float64:
		return fmt.Sprintf("%.2f", n)
	case float32:
		return fmt.Sprintf("%.2f", n)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// alertTitle derives a display title from the rule name, e.g.
// "queue_overflow" becomes "Queue Overflow"
func alertTitle(name string) string {
	words := strings.Split(name, "_")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
