package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"veripipe/models"
	"veripipe/ports"

	"github.com/jmoiron/sqlx"
)

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// MetricRepositoryImpl implements MetricRepository for PostgreSQL
type MetricRepositoryImpl struct {
	db *sqlx.DB
}

// NewMetricRepository creates a new PostgreSQL metric repository
func NewMetricRepository(db *sqlx.DB) ports.MetricRepository {
	return &MetricRepositoryImpl{db: db}
}

// Insert appends one health metric sample
func (r *MetricRepositoryImpl) Insert(ctx context.Context, metric models.Metric) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO system_health (metric_name, metric_value, timestamp, interface_type)
		VALUES ($1, $2, $3, $4)
	`, metric.Name, metric.Value, metric.Timestamp, metric.Interface)
	return err
}

// InterfaceAverages returns the mean metric value per interface after the cutoff
func (r *MetricRepositoryImpl) InterfaceAverages(ctx context.Context, since time.Time) (map[string]float64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT interface_type, AVG(metric_value) AS avg_health
		FROM system_health
		WHERE timestamp > $1
		GROUP BY interface_type
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	averages := make(map[string]float64)
	for rows.Next() {
		var iface string
		var avg float64
		if err := rows.Scan(&iface, &avg); err != nil {
			return nil, err
		}
		averages[iface] = avg
	}
	return averages, rows.Err()
}

// ValidationLogRepositoryImpl implements ValidationLogRepository for PostgreSQL
type ValidationLogRepositoryImpl struct {
	db *sqlx.DB
}

// NewValidationLogRepository creates a new PostgreSQL validation log repository
func NewValidationLogRepository(db *sqlx.DB) ports.ValidationLogRepository {
	return &ValidationLogRepositoryImpl{db: db}
}

// Insert appends one validation audit record
func (r *ValidationLogRepositoryImpl) Insert(ctx context.Context, record models.ValidationRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO validation_log (validation_id, data_type, data_id, validation_result, confidence_score, errors, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, record.ValidationID, record.DataType, record.DataID, record.IsValid, record.Confidence, record.Errors, record.Timestamp)
	return err
}

// Stats returns (valid, total, average confidence) for records after the cutoff
func (r *ValidationLogRepositoryImpl) Stats(ctx context.Context, since time.Time) (int64, int64, float64, error) {
	var row struct {
		Valid         int64           `db:"valid_count"`
		Total         int64           `db:"total_count"`
		AvgConfidence sql.NullFloat64 `db:"avg_confidence"`
	}
	err := r.db.GetContext(ctx, &row, `
		SELECT
			COALESCE(SUM(CASE WHEN validation_result THEN 1 ELSE 0 END), 0) AS valid_count,
			COUNT(*) AS total_count,
			AVG(confidence_score) AS avg_confidence
		FROM validation_log
		WHERE timestamp > $1
	`, since)
	if err != nil {
		return 0, 0, 0, err
	}

	avg := 1.0
	if row.AvgConfidence.Valid {
		avg = row.AvgConfidence.Float64
	}
	return row.Valid, row.Total, avg, nil
}
