package ports

import (
	"context"
	"time"

	"veripipe/models"
)

// MetricRepository appends system health samples and aggregates them.
// Rows are append-only; a write either fully lands or surfaces an error.
type MetricRepository interface {
	Insert(ctx context.Context, metric models.Metric) error

	// InterfaceAverages returns the mean metric value per interface for
	// samples after the cutoff.
	InterfaceAverages(ctx context.Context, since time.Time) (map[string]float64, error)
}

// ValidationLogRepository keeps the validation audit trail
type ValidationLogRepository interface {
	Insert(ctx context.Context, record models.ValidationRecord) error

	// Stats returns (valid, total, average confidence) for records after
	// the cutoff.
	Stats(ctx context.Context, since time.Time) (int64, int64, float64, error)
}
