package ports

import (
	"context"
	"time"

	"veripipe/models"
)

// AlertRepository persists alerts and their lifecycle transitions. Only the
// acknowledged and resolved_at columns are ever updated in place.
type AlertRepository interface {
	Insert(ctx context.Context, alert models.Alert) error
	MarkAcknowledged(ctx context.Context, alertID string) error
	MarkResolved(ctx context.Context, alertID string, at time.Time) error
}

// VerificationRepository persists verification events and realtime metric
// snapshots
type VerificationRepository interface {
	InsertEvent(ctx context.Context, event models.VerificationEvent) error
	InsertMetricSnapshot(ctx context.Context, name string, value float64, at time.Time) error
}
