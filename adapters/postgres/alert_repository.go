package postgres

import (
	"context"
	"time"

	"veripipe/models"
	"veripipe/ports"

	"github.com/jmoiron/sqlx"
)

// AlertRepositoryImpl implements AlertRepository for PostgreSQL
type AlertRepositoryImpl struct {
	db *sqlx.DB
}

// NewAlertRepository creates a new PostgreSQL alert repository
func NewAlertRepository(db *sqlx.DB) ports.AlertRepository {
	return &AlertRepositoryImpl{db: db}
}

// Insert persists a freshly triggered alert
func (r *AlertRepositoryImpl) Insert(ctx context.Context, alert models.Alert) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO realtime_alerts (alert_id, level, title, message, interface, metadata, timestamp, acknowledged)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, alert.AlertID, alert.Level, alert.Title, alert.Message, alert.Interface, alert.Metadata, alert.Timestamp, alert.Acknowledged)
	return err
}

// MarkAcknowledged flips the acknowledged flag. This and MarkResolved are
// the only in-place updates on the alerts table.
func (r *AlertRepositoryImpl) MarkAcknowledged(ctx context.Context, alertID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE realtime_alerts SET acknowledged = TRUE WHERE alert_id = $1
	`, alertID)
	return err
}

// MarkResolved stamps resolved_at
func (r *AlertRepositoryImpl) MarkResolved(ctx context.Context, alertID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE realtime_alerts SET resolved_at = $2 WHERE alert_id = $1
	`, alertID, at)
	return err
}

// VerificationRepositoryImpl implements VerificationRepository for PostgreSQL
type VerificationRepositoryImpl struct {
	db *sqlx.DB
}

// NewVerificationRepository creates a new PostgreSQL verification repository
func NewVerificationRepository(db *sqlx.DB) ports.VerificationRepository {
	return &VerificationRepositoryImpl{db: db}
}

// InsertEvent appends a verification event. The same event_id may appear
// twice: the deep-path record supersedes the fast-path one by insertion
// order, never by update.
func (r *VerificationRepositoryImpl) InsertEvent(ctx context.Context, event models.VerificationEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO verification_events (event_id, data_type, data_payload, verification_status, confidence_score, processing_time_ms, timestamp, alerts_triggered)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, event.EventID, event.DataType, event.Payload, event.Status, event.Confidence, event.ProcessingMs, event.Timestamp, event.AlertsTriggered)
	return err
}

// InsertMetricSnapshot appends one realtime metric sample
func (r *VerificationRepositoryImpl) InsertMetricSnapshot(ctx context.Context, name string, value float64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO realtime_metrics (metric_name, metric_value, timestamp)
		VALUES ($1, $2, $3)
	`, name, value, at)
	return err
}
