package db

import (
	"context"
	"time"

	"railrisk/internal/types"
)

// SnapshotRepository stores the daily rows of weekly forecasts in
// forecast_snapshots, one row per route and forecast date.
type SnapshotRepository struct {
	db DBTX
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(db DBTX) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Upsert writes a snapshot, replacing the route's earlier forecast for the
// same date. An existing accuracy score is kept.
func (r *SnapshotRepository) Upsert(ctx context.Context, s types.DailySnapshot) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO forecast_snapshots
			(route_id, forecast_date, probability, status, confidence, reasons, provenance, computed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (route_id, forecast_date) DO UPDATE SET
			probability = EXCLUDED.probability,
			status      = EXCLUDED.status,
			confidence  = EXCLUDED.confidence,
			reasons     = EXCLUDED.reasons,
			provenance  = EXCLUDED.provenance,
			computed_at = EXCLUDED.computed_at`,
		s.RouteID,
		s.ForecastDate,
		s.Probability,
		string(s.Status),
		string(s.Confidence),
		s.Reasons,
		string(s.Provenance),
		s.ComputedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert forecast snapshot", err)
	}
	return nil
}

// ListByRoute returns the route's snapshots with forecast dates in
// [from, to), oldest first.
func (r *SnapshotRepository) ListByRoute(ctx context.Context, routeID string, from, to time.Time) ([]types.DailySnapshot, error) {
	rows, err := r.db.Query(ctx,
		`SELECT route_id, forecast_date, probability, status, confidence,
			reasons, provenance, accuracy_score, computed_at
		 FROM forecast_snapshots
		 WHERE route_id = $1 AND forecast_date >= $2 AND forecast_date < $3
		 ORDER BY forecast_date ASC`,
		routeID, from, to,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query forecast snapshots", err)
	}
	defer rows.Close()

	var out []types.DailySnapshot
	for rows.Next() {
		var (
			s          types.DailySnapshot
			status     string
			confidence string
			provenance string
		)
		if err := rows.Scan(
			&s.RouteID,
			&s.ForecastDate,
			&s.Probability,
			&status,
			&confidence,
			&s.Reasons,
			&provenance,
			&s.AccuracyScore,
			&s.ComputedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan forecast snapshot", err)
		}
		s.Status = types.OperationStatus(status)
		s.Confidence = types.ConfidenceLevel(confidence)
		s.Provenance = types.Provenance(provenance)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating forecast snapshots", err)
	}
	return out, nil
}

// SetAccuracy stores the graded accuracy of a past snapshot. It reports
// false when no snapshot exists for the route and date.
func (r *SnapshotRepository) SetAccuracy(ctx context.Context, routeID string, date time.Time, score int) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE forecast_snapshots
		 SET accuracy_score = $3
		 WHERE route_id = $1 AND forecast_date = $2`,
		routeID, date, score,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to store accuracy score", err)
	}
	return tag.RowsAffected() > 0, nil
}
