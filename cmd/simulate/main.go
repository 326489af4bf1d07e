package main

import (
	"context"
	"flag"
	"log"

	"veripipe/internal/testkit"
	"veripipe/internal/validation"
)

// simulate runs seeded synthetic traffic through the validation engine
// offline and prints per-interface pass rates. Useful for tuning rule sets
// before deploying them.
func main() {
	subjects := flag.Int("subjects", 50, "number of synthetic subjects")
	malformed := flag.Float64("malformed", 0.05, "fraction of payloads with injected defects")
	unsafe := flag.Float64("unsafe", 0.02, "fraction of stories with unsafe content")
	seed := flag.Int64("seed", 42, "generator seed")
	level := flag.String("level", "standard", "validation level")
	rulesFile := flag.String("rules", "", "optional YAML rule set file")
	flag.Parse()

	parsedLevel, err := validation.ParseLevel(*level)
	if err != nil {
		log.Fatalf("Invalid validation level: %v", err)
	}

	var rules validation.RuleSet
	if *rulesFile != "" {
		rules, err = validation.LoadRules(*rulesFile)
		if err != nil {
			log.Fatalf("Failed to load rules: %v", err)
		}
	}
	engine := validation.NewEngine(rules, parsedLevel, nil)

	config := testkit.DefaultGeneratorConfig()
	config.SubjectCount = *subjects
	config.MalformedRate = *malformed
	config.UnsafeStoryRate = *unsafe
	config.Seed = *seed

	records := testkit.NewTrafficGenerator(config).Generate()
	log.Printf("Generated %d synthetic payloads across %d subjects", len(records), *subjects)

	type tally struct{ total, valid int }
	tallies := make(map[string]*tally)

	ctx := context.Background()
	for _, record := range records {
		report := engine.Validate(ctx, record.Interface, record.Payload)
		counts, ok := tallies[record.Interface]
		if !ok {
			counts = &tally{}
			tallies[record.Interface] = counts
		}
		counts.total++
		if report.IsValid() {
			counts.valid++
		}
	}

	for interfaceType, counts := range tallies {
		log.Printf("%-10s %4d payloads, %5.1f%% valid",
			interfaceType, counts.total, 100*float64(counts.valid)/float64(counts.total))
	}
}
