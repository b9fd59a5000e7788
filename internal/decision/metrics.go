package decision

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// Metric types recorded each cycle.
const (
	MetricQueueDepth     = "queue_depth"
	MetricPublishedTotal = "published_total"
	MetricFailedTotal    = "failed_total"
	MetricCandidateScore = "candidate_score"
)

// Metrics records and aggregates performance samples in the shared task
// database. Reads compose windowed averages; writes are fire-and-forget from
// the engine's perspective.
type Metrics struct {
	db *sql.DB
}

// NewMetrics wraps the shared database handle.
func NewMetrics(db *sql.DB) *Metrics {
	return &Metrics{db: db}
}

// Record stores one sample.
func (m *Metrics) Record(ctx context.Context, metricType string, value float64) error {
	query := sq.Insert("performance_metrics").
		Columns("metric_type", "value", "recorded_at").
		Values(metricType, value, time.Now().UTC().Format(time.RFC3339Nano))
	if _, err := query.RunWith(m.db).ExecContext(ctx); err != nil {
		return fmt.Errorf("record metric %s: %w", metricType, err)
	}
	return nil
}

// WindowAverage returns the mean of a metric over the trailing window. The
// second return is false when no samples fall inside the window.
func (m *Metrics) WindowAverage(ctx context.Context, metricType string, window time.Duration) (float64, bool, error) {
	cutoff := time.Now().UTC().Add(-window).Format(time.RFC3339Nano)
	query := sq.Select("AVG(value)", "COUNT(1)").
		From("performance_metrics").
		Where(sq.Eq{"metric_type": metricType}).
		Where(sq.GtOrEq{"recorded_at": cutoff})

	var avg sql.NullFloat64
	var count int
	if err := query.RunWith(m.db).QueryRowContext(ctx).Scan(&avg, &count); err != nil {
		return 0, false, fmt.Errorf("window average %s: %w", metricType, err)
	}
	if count == 0 || !avg.Valid {
		return 0, false, nil
	}
	return avg.Float64, true, nil
}

// PruneBefore deletes samples older than the cutoff so the table stays
// bounded.
func (m *Metrics) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := sq.Delete("performance_metrics").
		Where(sq.Lt{"recorded_at": cutoff.UTC().Format(time.RFC3339Nano)})
	res, err := query.RunWith(m.db).ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("prune metrics: %w", err)
	}
	return res.RowsAffected()
}
