package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"veripipe/adapters/notify"
	"veripipe/adapters/postgres"
	"veripipe/internal/api"
	"veripipe/internal/config"
	"veripipe/internal/core"
	"veripipe/internal/errors"
	"veripipe/internal/eventstore"
	"veripipe/internal/migration"
	"veripipe/internal/qa"
	"veripipe/internal/validation"
	"veripipe/internal/verify"
	"veripipe/ports"
)

// initDatabase connects to PostgreSQL and brings the schema up to date
func initDatabase(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	migrator := migration.NewRunner()
	if err := migrator.Run(context.Background(), db); err != nil {
		return nil, errors.Wrap(err, "database migration failed")
	}

	return db, nil
}

// buildEngine assembles the validation engine from configuration, loading
// a YAML rule set when one is configured and falling back to the built-in
// rules otherwise.
func buildEngine(cfg *config.Config, recorder validation.HealthRecorder) (*validation.Engine, error) {
	level, err := validation.ParseLevel(cfg.Validation.Level)
	if err != nil {
		return nil, err
	}

	var rules validation.RuleSet
	if cfg.Validation.RulesFile != "" {
		rules, err = validation.LoadRules(cfg.Validation.RulesFile)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load validation rules")
		}
		log.Printf("[Main] Loaded validation rules from %s", cfg.Validation.RulesFile)
	}

	return validation.NewEngine(rules, level, recorder), nil
}

func buildNotifier(webhookURL, channel string) ports.Notifier {
	if webhookURL != "" {
		return notify.NewWebhookNotifier(webhookURL)
	}
	return notify.NewLogNotifier(channel)
}

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer db.Close()

	// Repositories
	eventRepo := postgres.NewEventRepository(db)
	metricRepo := postgres.NewMetricRepository(db)
	validationLogRepo := postgres.NewValidationLogRepository(db)
	profileRepo := postgres.NewProfileRepository(db)
	storyRepo := postgres.NewStoryPerformanceRepository(db)
	alertRepo := postgres.NewAlertRepository(db)
	verificationRepo := postgres.NewVerificationRepository(db)
	qaRepo := postgres.NewQARepository(db)

	// Event store first: it doubles as the health recorder for the
	// validation engine, which it in turn uses as its validator.
	store := eventstore.New(
		eventRepo, metricRepo, validationLogRepo, profileRepo, storyRepo,
		cfg.EventStore.FlushThreshold, cfg.EventStore.ValidationEnabled,
	)

	engine, err := buildEngine(cfg, store)
	if err != nil {
		log.Fatalf("Failed to build validation engine: %v", err)
	}
	store.SetValidator(engine)

	harness := qa.NewHarness(qaRepo, store, cfg.QA.RetryBackoff)
	qa.RegisterDefaults(harness, engine, store, db)

	verifier := verify.New(
		cfg.Verifier, engine, store, alertRepo, verificationRepo, harness,
		buildNotifier(cfg.Notify.CriticalWebhookURL, "critical"),
		buildNotifier(cfg.Notify.ErrorWebhookURL, "error"),
		prometheus.DefaultRegisterer,
	)

	pipeline := core.New(store, engine, harness, verifier)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pipeline.Start(ctx, cfg.QA.Interval)

	server := api.NewServer(pipeline, store, harness, verifier, prometheus.DefaultGatherer)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: server.Handler(),
	}

	go func() {
		log.Printf("[Main] Starting veripipe server on port %s", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[Main] Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Main] HTTP shutdown error: %v", err)
	}
	cancel()
	pipeline.Stop(shutdownCtx)
	log.Println("[Main] Shutdown complete")
}
