package testkit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veripipe/internal/validation"
)

func TestGeneratorIsDeterministic(t *testing.T) {
	config := DefaultGeneratorConfig()
	config.SubjectCount = 5

	first := NewTrafficGenerator(config).Generate()
	second := NewTrafficGenerator(config).Generate()

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Interface, second[i].Interface)
		assert.Equal(t, first[i].DataType, second[i].DataType)
	}
}

func TestJourneyShape(t *testing.T) {
	config := DefaultGeneratorConfig()
	config.MalformedRate = 0
	config.UnsafeStoryRate = 0
	config.StoriesPerCall = 3

	journey := NewTrafficGenerator(config).GenerateJourney()

	// registration, call, three stories, analytics; business is probabilistic
	require.GreaterOrEqual(t, len(journey), 6)
	assert.Equal(t, "database", journey[0].Interface)
	assert.Equal(t, "phone", journey[1].Interface)
	for i := 2; i < 5; i++ {
		assert.Equal(t, "story_generation", journey[i].DataType)
	}
}

func TestCleanTrafficPassesValidation(t *testing.T) {
	config := DefaultGeneratorConfig()
	config.SubjectCount = 10
	config.MalformedRate = 0
	config.UnsafeStoryRate = 0

	engine := validation.NewEngine(nil, validation.LevelStandard, nil)
	records := NewTrafficGenerator(config).Generate()
	require.NotEmpty(t, records)

	for _, record := range records {
		report := engine.Validate(context.Background(), record.Interface, record.Payload)
		assert.True(t, report.IsValid(),
			"clean %s payload should validate: %v", record.DataType, report.Errors)
	}
}

func TestMalformedRateInjectsDefects(t *testing.T) {
	config := DefaultGeneratorConfig()
	config.SubjectCount = 100
	config.MalformedRate = 0.5
	config.UnsafeStoryRate = 0.5

	engine := validation.NewEngine(nil, validation.LevelStandard, nil)
	records := NewTrafficGenerator(config).Generate()

	invalid := 0
	for _, record := range records {
		if !engine.Validate(context.Background(), record.Interface, record.Payload).IsValid() {
			invalid++
		}
	}
	assert.Greater(t, invalid, 0, "high defect rates should produce invalid payloads")
}
