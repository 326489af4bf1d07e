// Package testkit generates synthetic producer traffic for exercising the
// verification pipeline without live phone, AI or billing systems. All
// generation is seeded, so fixtures are reproducible across runs.
package testkit

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GeneratorConfig configures the synthetic traffic generator
type GeneratorConfig struct {
	SubjectCount    int     `json:"subject_count"`
	StoriesPerCall  int     `json:"stories_per_call"`
	MalformedRate   float64 `json:"malformed_rate"`
	UnsafeStoryRate float64 `json:"unsafe_story_rate"`
	Seed            int64   `json:"seed"`
}

// DefaultGeneratorConfig returns sensible defaults for local simulation
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		SubjectCount:    50,
		StoriesPerCall:  2,
		MalformedRate:   0.05,
		UnsafeStoryRate: 0.02,
		Seed:            42,
	}
}

// Record is one synthetic producer submission: the interface it targets,
// the data type tag and the payload as a producer would submit it.
type Record struct {
	Interface string
	DataType  string
	Payload   map[string]interface{}
}

// TrafficGenerator produces seeded synthetic sessions spanning every
// producer interface.
type TrafficGenerator struct {
	config GeneratorConfig
	rng    *rand.Rand
}

func NewTrafficGenerator(config GeneratorConfig) *TrafficGenerator {
	if config.SubjectCount <= 0 {
		config.SubjectCount = 1
	}
	if config.StoriesPerCall <= 0 {
		config.StoriesPerCall = 1
	}
	return &TrafficGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

var childNames = []string{"Maya", "Leo", "Sofia", "Ethan", "Amara", "Noah", "Lily", "Kai"}

var interestPool = []string{"dinosaurs", "space", "animals", "pirates", "dragons", "robots", "ocean", "forest"}

// Generate produces the full synthetic traffic set: one journey per subject
func (g *TrafficGenerator) Generate() []Record {
	var records []Record
	for i := 0; i < g.config.SubjectCount; i++ {
		records = append(records, g.GenerateJourney()...)
	}
	return records
}

// GenerateJourney produces one subject's complete journey: registration,
// a phone call, story generations during the call, then the analytics and
// business records the call produces downstream.
func (g *TrafficGenerator) GenerateJourney() []Record {
	subjectID := uuid.New().String()
	sessionID := g.sessionID()
	age := float64(2 + g.rng.Intn(11))
	interests := g.pickInterests(2)

	records := []Record{
		g.registration(subjectID, sessionID, age),
		g.phoneCall(sessionID),
	}

	for i := 0; i < g.config.StoriesPerCall; i++ {
		records = append(records, g.story(age, interests))
	}

	records = append(records, g.analytics(subjectID, sessionID))
	if g.rng.Float64() < 0.3 {
		records = append(records, g.businessTransaction())
	}
	return records
}

// phoneCall produces a phone_call payload. A malformed draw drops the
// session ID, which the fast path rejects outright.
func (g *TrafficGenerator) phoneCall(sessionID string) Record {
	payload := map[string]interface{}{
		"data_type":        "phone_call",
		"phone_number":     g.phoneNumber(),
		"duration_seconds": 30.0 + g.rng.Float64()*600.0,
		"session_id":       sessionID,
	}
	if g.rng.Float64() < g.config.MalformedRate {
		delete(payload, "session_id")
	}
	return Record{Interface: "phone", DataType: "phone_call", Payload: payload}
}

// story produces a story_generation payload tuned to pass the ai rule set,
// with malformed and unsafe variants drawn at the configured rates.
func (g *TrafficGenerator) story(age float64, interests []string) Record {
	content := g.storyContent(interests)
	switch {
	case g.rng.Float64() < g.config.UnsafeStoryRate:
		content = "The knight fought with great violence until the dragon fell."
	case g.rng.Float64() < g.config.MalformedRate:
		content = "Too short."
	}

	return Record{
		Interface: "ai",
		DataType:  "story_generation",
		Payload: map[string]interface{}{
			"data_type":               "story_generation",
			"story_content":           content,
			"child_age":               age,
			"child_interests":         toInterfaceSlice(interests),
			"generation_time_seconds": 1.0 + g.rng.Float64()*4.0,
		},
	}
}

// registration produces a user_registration payload carrying both the
// fast-path required fields and the database interface rule fields.
func (g *TrafficGenerator) registration(subjectID, sessionID string, age float64) Record {
	payload := map[string]interface{}{
		"data_type":    "user_registration",
		"subject_id":   subjectID,
		"session_id":   sessionID,
		"child_name":   childNames[g.rng.Intn(len(childNames))],
		"child_age":    age,
		"age":          age,
		"parent_phone": g.phoneNumber(),
		"content":      g.storyContent(nil),
		"created_at":   time.Now().UTC().Format(time.RFC3339),
	}
	if g.rng.Float64() < g.config.MalformedRate {
		delete(payload, "parent_phone")
	}
	return Record{Interface: "database", DataType: "user_registration", Payload: payload}
}

func (g *TrafficGenerator) analytics(subjectID, sessionID string) Record {
	sequence := []interface{}{"call_start", "registration", "story_begin", "completion", "call_end"}
	if g.rng.Float64() < g.config.MalformedRate {
		sequence = []interface{}{"completion", "call_start"}
	}
	return Record{
		Interface: "analytics",
		DataType:  "analytics_event",
		Payload: map[string]interface{}{
			"data_type":       "analytics_event",
			"subject_id":      subjectID,
			"session_id":      sessionID,
			"metric_value":    g.rng.Float64(),
			"completion_rate": 0.5 + g.rng.Float64()*0.5,
			"event_sequence":  sequence,
		},
	}
}

func (g *TrafficGenerator) businessTransaction() Record {
	subscribers := float64(10 + g.rng.Intn(90))
	price := 9.99
	return Record{
		Interface: "business",
		DataType:  "business_transaction",
		Payload: map[string]interface{}{
			"data_type":                  "business_transaction",
			"monthly_usage":              float64(g.rng.Intn(10)),
			"conversion_probability":     g.rng.Float64(),
			"monthly_revenue":            subscribers * price,
			"subscriber_count":           subscribers,
			"average_subscription_price": price,
		},
	}
}

func (g *TrafficGenerator) sessionID() string {
	return fmt.Sprintf("session%08x", g.rng.Uint32())
}

func (g *TrafficGenerator) phoneNumber() string {
	return fmt.Sprintf("+1555%07d", g.rng.Intn(10000000))
}

// storyContent builds a story long enough for the content-length rules and
// mentioning each interest so personalization checks pass.
func (g *TrafficGenerator) storyContent(interests []string) string {
	var b strings.Builder
	b.WriteString("Once upon a time there was a curious child who loved adventures. ")
	for _, interest := range interests {
		fmt.Fprintf(&b, "Today the adventure was all about %s, and it was wonderful. ", interest)
	}
	b.WriteString("Every page brought a new friendly surprise, and the journey ended happily at home.")
	return b.String()
}

func (g *TrafficGenerator) pickInterests(count int) []string {
	picked := make([]string, 0, count)
	seen := make(map[string]bool)
	for len(picked) < count {
		interest := interestPool[g.rng.Intn(len(interestPool))]
		if seen[interest] {
			continue
		}
		seen[interest] = true
		picked = append(picked, interest)
	}
	return picked
}

func toInterfaceSlice(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
