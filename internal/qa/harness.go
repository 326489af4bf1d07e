package qa

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"veripipe/internal/errors"
	"veripipe/models"
	"veripipe/ports"
)

// checkOutcome is the variant tag of a CheckResult
type checkOutcome int

const (
	outcomeOk checkOutcome = iota
	outcomeFailed
	outcomeRetryable
)

// CheckResult is the explicit outcome of one check invocation. Only the
// Retryable variant triggers the retry/backoff loop; a clean Failed is
// deterministic and recorded immediately.
type CheckResult struct {
	outcome checkOutcome
	message string
	details map[string]interface{}
	err     error
}

// Ok marks a passing check
func Ok(message string, details map[string]interface{}) CheckResult {
	return CheckResult{outcome: outcomeOk, message: message, details: details}
}

// Failed marks a deterministic failure, never retried
func Failed(message string, details map[string]interface{}) CheckResult {
	return CheckResult{outcome: outcomeFailed, message: message, details: details}
}

// Retryable marks a transient error worth retrying with backoff
func Retryable(err error) CheckResult {
	return CheckResult{outcome: outcomeRetryable, err: err}
}

// CheckFunc executes one quality test probe
type CheckFunc func(ctx context.Context) CheckResult

// QualityTest is one registered synthetic test
type QualityTest struct {
	ID          string
	Name        string
	Description string
	Interface   string
	Severity    models.TestSeverity
	RetryCount  int
	Enabled     bool
	Check       CheckFunc
}

// RemediationFunc attempts to fix the cause of a critical test failure and
// reports whether it succeeded
type RemediationFunc func(ctx context.Context) (bool, string)

// HealthRecorder receives QA health metrics
type HealthRecorder interface {
	TrackSystemHealth(ctx context.Context, metricName string, value float64, interfaceType string) error
}

// Harness holds the test registry, runs suites with retry and backoff,
// scores results, and dispatches remediation for critical failures.
type Harness struct {
	repo     ports.QARepository
	recorder HealthRecorder

	mu           sync.Mutex
	tests        map[string]QualityTest
	remediations map[string]RemediationFunc
	running      bool
	stopCh       chan struct{}

	backoffBase time.Duration
	sleep       func(time.Duration)
}

// NewHarness builds an empty harness. backoffBase scales the exponential
// retry delay; zero means one second.
func NewHarness(repo ports.QARepository, recorder HealthRecorder, backoffBase time.Duration) *Harness {
	if backoffBase <= 0 {
		backoffBase = time.Second
	}
	return &Harness{
		repo:         repo,
		recorder:     recorder,
		tests:        make(map[string]QualityTest),
		remediations: make(map[string]RemediationFunc),
		backoffBase:  backoffBase,
		sleep:        time.Sleep,
	}
}

// RegisterTest adds a test to the registry. Re-registration with the same
// id overwrites the previous definition.
func (h *Harness) RegisterTest(test QualityTest) error {
	if test.ID == "" || test.Check == nil {
		return errors.InvalidInput("quality test requires an id and a check function")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tests[test.ID] = test
	return nil
}

// RegisterRemediation maps a test id to its automated fix
func (h *Harness) RegisterRemediation(testID string, action RemediationFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remediations[testID] = action
}

// SetEnabled toggles a registered test. Returns false for unknown ids.
func (h *Harness) SetEnabled(testID string, enabled bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	test, ok := h.tests[testID]
	if !ok {
		return false
	}
	test.Enabled = enabled
	h.tests[testID] = test
	return true
}

// RunSuite executes every enabled test sequentially, persists the report
// with all attempt results in one transaction, and dispatches remediation
// for critical failures. interfaceFilter narrows the selection; empty
// means all interfaces.
func (h *Harness) RunSuite(ctx context.Context, suiteName, interfaceFilter string) (models.QualityReport, error) {
	selected := h.selectTests(interfaceFilter)

	report := models.QualityReport{
		ReportID:   uuid.New(),
		TestSuite:  suiteName,
		TotalTests: len(selected),
		Timestamp:  time.Now().UTC(),
	}

	suiteStart := time.Now()
	finalStatuses := make(map[string]models.TestStatus, len(selected))
	for _, test := range selected {
		attempts, final := h.executeTest(ctx, test)
		report.Results = append(report.Results, attempts...)
		finalStatuses[test.ID] = final

		switch final {
		case models.TestPassed:
			report.PassedTests++
		case models.TestFailed:
			report.FailedTests++
		case models.TestError:
			report.ErrorTests++
		case models.TestSkipped:
			report.SkippedTests++
		}
	}
	report.ExecutionTime = time.Since(suiteStart).Seconds()
	report.QualityScore = scoreSuite(report, selected, finalStatuses)

	if err := h.repo.InsertReport(ctx, report); err != nil {
		return report, errors.StorageError("failed to persist quality report", err)
	}

	h.remediate(ctx, selected, finalStatuses)

	log.Printf("[QA] Suite %s: %d/%d passed, quality score %.3f",
		suiteName, report.PassedTests, report.TotalTests, report.QualityScore)
	return report, nil
}

// executeTest runs one test with the retry/backoff loop. Every attempt
// produces a TestResult. Only Retryable outcomes are retried; exhausting
// the retry budget yields a final status of error.
func (h *Harness) executeTest(ctx context.Context, test QualityTest) ([]models.TestResult, models.TestStatus) {
	var attempts []models.TestResult

	for attempt := 0; attempt <= test.RetryCount; attempt++ {
		start := time.Now()
		result := runCheck(ctx, test.Check)
		elapsed := time.Since(start).Seconds()

		record := models.TestResult{
			ResultID:      uuid.New(),
			TestID:        test.ID,
			TestName:      test.Name,
			ExecutionTime: elapsed,
			Severity:      test.Severity,
			Interface:     test.Interface,
			RetryAttempt:  attempt,
			Timestamp:     time.Now().UTC(),
		}

		switch result.outcome {
		case outcomeOk:
			record.Status = models.TestPassed
			record.Message = result.message
			record.Details = models.JSONBMap(result.details)
			return append(attempts, record), models.TestPassed
		case outcomeFailed:
			record.Status = models.TestFailed
			record.Message = result.message
			record.Details = models.JSONBMap(result.details)
			return append(attempts, record), models.TestFailed
		case outcomeRetryable:
			record.Status = models.TestError
			record.Message = fmt.Sprintf("Test execution error: %v", result.err)
			attempts = append(attempts, record)
			if attempt < test.RetryCount {
				h.sleep(h.backoffBase * time.Duration(1<<attempt))
			}
		}
	}

	return attempts, models.TestError
}

// runCheck invokes the check function, converting a panic into a
// Retryable outcome so a misbehaving probe never kills the suite.
func runCheck(ctx context.Context, check CheckFunc) (result CheckResult) {
	defer func() {
		if r := recover(); r != nil {
			result = Retryable(fmt.Errorf("check panic: %v", r))
		}
	}()
	return check(ctx)
}

// scoreSuite computes the quality score: passed/total, then halved for
// every critical failure and multiplied by 0.8 for every high-severity
// failure. Multipliers compound.
func scoreSuite(report models.QualityReport, tests []QualityTest, finalStatuses map[string]models.TestStatus) float64 {
	if report.TotalTests == 0 {
		return 0.0
	}
	score := float64(report.PassedTests) / float64(report.TotalTests)
	for _, test := range tests {
		status := finalStatuses[test.ID]
		if status != models.TestFailed && status != models.TestError {
			continue
		}
		switch test.Severity {
		case models.SeverityCritical:
			score *= 0.5
		case models.SeverityHigh:
			score *= 0.8
		}
	}
	return score
}

// remediate dispatches registered remediation actions for critical
// failures. Every attempt is logged with its outcome; unmapped test ids
// are skipped.
func (h *Harness) remediate(ctx context.Context, tests []QualityTest, finalStatuses map[string]models.TestStatus) {
	for _, test := range tests {
		status := finalStatuses[test.ID]
		if test.Severity != models.SeverityCritical {
			continue
		}
		if status != models.TestFailed && status != models.TestError {
			continue
		}

		h.mu.Lock()
		action, ok := h.remediations[test.ID]
		h.mu.Unlock()
		if !ok {
			continue
		}

		success, description := action(ctx)
		record := models.RemediationRecord{
			ActionID:    uuid.New(),
			IssueType:   test.ID,
			Description: fmt.Sprintf("Critical test %s finished with status %s", test.Name, status),
			Action:      description,
			Success:     success,
			Timestamp:   time.Now().UTC(),
		}
		if err := h.repo.InsertRemediation(ctx, record); err != nil {
			log.Printf("[QA] Failed to log remediation for %s: %v", test.ID, err)
		}
		if !success {
			log.Printf("[QA] Remediation for %s did not resolve the issue: %s", test.ID, description)
		}
	}
}

// selectTests snapshots the enabled tests in deterministic id order
func (h *Harness) selectTests(interfaceFilter string) []QualityTest {
	h.mu.Lock()
	defer h.mu.Unlock()

	selected := make([]QualityTest, 0, len(h.tests))
	for _, test := range h.tests {
		if !test.Enabled {
			continue
		}
		if interfaceFilter != "" && test.Interface != interfaceFilter {
			continue
		}
		selected = append(selected, test)
	}
	sort.Slice(selected, func(i, j int) bool { return selected[i].ID < selected[j].ID })
	return selected
}

// StartContinuous launches the periodic QA loop. A loop-level failure
// pauses five minutes before the next iteration; per-test retries are
// handled inside RunSuite.
func (h *Harness) StartContinuous(ctx context.Context, interval time.Duration) {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.stopCh = make(chan struct{})
	stopCh := h.stopCh
	h.mu.Unlock()

	go h.continuousLoop(ctx, interval, stopCh)
	log.Printf("[QA] Continuous QA started (interval %s)", interval)
}

func (h *Harness) continuousLoop(ctx context.Context, interval time.Duration, stopCh chan struct{}) {
	for {
		wait := interval
		report, err := h.RunSuite(ctx, "continuous_qa", "")
		if err != nil {
			log.Printf("[QA] Continuous run failed: %v", err)
			wait = 5 * time.Minute
		} else {
			h.publishMetrics(ctx, report)
			if report.QualityScore < 0.8 {
				log.Printf("[QA] Quality score below threshold: %.3f", report.QualityScore)
			}
		}

		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// StopContinuous signals the loop to exit after its current iteration
func (h *Harness) StopContinuous() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return
	}
	h.running = false
	close(h.stopCh)
	log.Printf("[QA] Continuous QA stopped")
}

func (h *Harness) publishMetrics(ctx context.Context, report models.QualityReport) {
	if h.recorder == nil {
		return
	}
	if err := h.recorder.TrackSystemHealth(ctx, "qa_quality_score", report.QualityScore, "qa"); err != nil {
		log.Printf("[QA] Failed to publish quality score: %v", err)
	}
	if err := h.recorder.TrackSystemHealth(ctx, "qa_test_success_rate", report.SuccessRate(), "qa"); err != nil {
		log.Printf("[QA] Failed to publish success rate: %v", err)
	}
}

// Summary builds the read-side QA rollup over the last 24 hours
func (h *Harness) Summary(ctx context.Context) (models.QASummary, error) {
	since := time.Now().UTC().Add(-24 * time.Hour)

	summary := models.QASummary{
		StatusCounts24h: map[string]int64{},
		LastUpdated:     time.Now().UTC(),
	}

	h.mu.Lock()
	summary.TestsRegistered = len(h.tests)
	summary.ContinuousRunning = h.running
	h.mu.Unlock()

	counts, err := h.repo.StatusCounts(ctx, since)
	if err != nil {
		return summary, errors.StorageError("failed to aggregate test status counts", err)
	}
	summary.StatusCounts24h = counts

	latest, err := h.repo.LatestReport(ctx)
	if err != nil {
		return summary, errors.StorageError("failed to load latest quality report", err)
	}
	if latest != nil {
		summary.LatestQualityScore = latest.QualityScore
		summary.LatestReportTime = &latest.Timestamp
	}

	attempts, successes, err := h.repo.RemediationStats(ctx, since)
	if err != nil {
		return summary, errors.StorageError("failed to aggregate remediation stats", err)
	}
	summary.RemediationAttempts = attempts
	summary.SuccessfulRemediations = successes

	return summary, nil
}
