package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"veripipe/adapters/postgres"
	"veripipe/internal/config"
	"veripipe/internal/eventstore"
	"veripipe/internal/qa"
	"veripipe/internal/validation"
)

// qarun executes the QA battery once and exits non-zero when the run
// does not meet the quality floor. Intended for CI and cron.
func main() {
	interfaceFilter := flag.String("interface", "", "only run tests for this interface")
	suiteName := flag.String("suite", "manual_qa", "suite name recorded with the report")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	store := eventstore.New(
		postgres.NewEventRepository(db),
		postgres.NewMetricRepository(db),
		postgres.NewValidationLogRepository(db),
		postgres.NewProfileRepository(db),
		postgres.NewStoryPerformanceRepository(db),
		cfg.EventStore.FlushThreshold,
		cfg.EventStore.ValidationEnabled,
	)

	level, err := validation.ParseLevel(cfg.Validation.Level)
	if err != nil {
		log.Fatalf("Invalid validation level: %v", err)
	}
	engine := validation.NewEngine(nil, level, store)
	store.SetValidator(engine)

	harness := qa.NewHarness(postgres.NewQARepository(db), store, cfg.QA.RetryBackoff)
	qa.RegisterDefaults(harness, engine, store, db)

	report, err := harness.RunSuite(context.Background(), *suiteName, *interfaceFilter)
	if err != nil {
		log.Fatalf("QA suite failed to run: %v", err)
	}

	log.Printf("Suite %s: %d/%d passed, quality score %.2f",
		report.TestSuite, report.PassedTests, report.TotalTests, report.QualityScore)

	if report.QualityScore < 0.8 {
		log.Printf("Quality score below 0.8 floor")
		os.Exit(1)
	}
}
