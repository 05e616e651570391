package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"railrisk/internal/types"
)

// OfficialRecord is one stored operator announcement.
type OfficialRecord struct {
	RouteID      string
	Status       types.OfficialStatus
	Cause        string
	Text         string
	DelayMinutes *int
	Resumption   *time.Time
	ObservedAt   time.Time
}

// OfficialHistoryRepository stores official announcements in
// official_status_history. The history feeds the suspension-trend adjustment
// and the accuracy scoring of past forecasts.
type OfficialHistoryRepository struct {
	db DBTX
}

// NewOfficialHistoryRepository creates a new OfficialHistoryRepository.
func NewOfficialHistoryRepository(db DBTX) *OfficialHistoryRepository {
	return &OfficialHistoryRepository{db: db}
}

// Record inserts one announcement. An identical row for the same observation
// time is ignored.
func (r *OfficialHistoryRepository) Record(ctx context.Context, rec OfficialRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO official_status_history
			(route_id, status, cause, details, delay_minutes, resumption_at, observed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT DO NOTHING`,
		rec.RouteID,
		string(rec.Status),
		rec.Cause,
		rec.Text,
		rec.DelayMinutes,
		rec.Resumption,
		rec.ObservedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record official status", err)
	}
	return nil
}

// ListSince returns the route's announcements observed at or after since,
// newest first, as engine signals.
func (r *OfficialHistoryRepository) ListSince(ctx context.Context, routeID string, since time.Time) ([]types.OfficialStatusSignal, error) {
	rows, err := r.db.Query(ctx,
		`SELECT status, details, resumption_at, observed_at
		 FROM official_status_history
		 WHERE route_id = $1 AND observed_at >= $2
		 ORDER BY observed_at DESC`,
		routeID, since,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query official history", err)
	}
	defer rows.Close()

	var out []types.OfficialStatusSignal
	for rows.Next() {
		var (
			status     string
			details    string
			resumption *time.Time
			observed   time.Time
		)
		if err := rows.Scan(&status, &details, &resumption, &observed); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan official history row", err)
		}
		out = append(out, types.OfficialStatusSignal{
			Status:         types.OfficialStatus(status),
			RawText:        details,
			UpdatedAt:      &observed,
			ResumptionTime: resumption,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating official history", err)
	}
	return out, nil
}

// OutcomeOn returns the most severe status recorded for the route on the
// day [from, from+24h). ok is false when nothing was recorded.
func (r *OfficialHistoryRepository) OutcomeOn(ctx context.Context, routeID string, from time.Time) (types.OfficialStatus, bool, error) {
	var status string
	err := r.db.QueryRow(ctx,
		`SELECT status
		 FROM official_status_history
		 WHERE route_id = $1 AND observed_at >= $2 AND observed_at < $3
		 ORDER BY CASE status
			WHEN 'cancelled' THEN 5
			WHEN 'suspended' THEN 4
			WHEN 'partial' THEN 3
			WHEN 'delay' THEN 2
			ELSE 1 END DESC
		 LIMIT 1`,
		routeID, from, from.Add(24*time.Hour),
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, types.NewAppError(types.ErrCodeInternalDB, "failed to query official outcome", err)
	}
	return types.OfficialStatus(status), true, nil
}

// DeleteBefore removes announcements observed before cutoff.
func (r *OfficialHistoryRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM official_status_history WHERE observed_at < $1`, cutoff)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to purge official history", err)
	}
	return int(tag.RowsAffected()), nil
}
