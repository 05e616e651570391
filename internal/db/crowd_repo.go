package db

import (
	"context"
	"time"

	"railrisk/internal/types"
)

// CrowdWindow is how far back rider reports count toward the aggregate.
const CrowdWindow = 15 * time.Minute

// CrowdReportRepository stores rider reports in crowd_reports.
type CrowdReportRepository struct {
	db DBTX
}

// NewCrowdReportRepository creates a new CrowdReportRepository.
func NewCrowdReportRepository(db DBTX) *CrowdReportRepository {
	return &CrowdReportRepository{db: db}
}

// Insert stores one report.
func (r *CrowdReportRepository) Insert(ctx context.Context, routeID string, kind types.ReportType, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO crowd_reports (route_id, report_type, reported_at)
		 VALUES ($1, $2, $3)`,
		routeID, string(kind), at,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert crowd report", err)
	}
	return nil
}

// Aggregate counts the route's reports per bucket over the CrowdWindow
// ending at now.
func (r *CrowdReportRepository) Aggregate(ctx context.Context, routeID string, now time.Time) (types.CrowdsourcedAggregate, error) {
	var agg types.CrowdsourcedAggregate
	err := r.db.QueryRow(ctx,
		`SELECT
			COUNT(*) FILTER (WHERE report_type = 'stopped'),
			COUNT(*) FILTER (WHERE report_type = 'delayed'),
			COUNT(*) FILTER (WHERE report_type = 'crowded'),
			COUNT(*) FILTER (WHERE report_type = 'resumed')
		 FROM crowd_reports
		 WHERE route_id = $1 AND reported_at > $2 AND reported_at <= $3`,
		routeID, now.Add(-CrowdWindow), now,
	).Scan(&agg.Stopped, &agg.Delayed, &agg.Crowded, &agg.Resumed)
	if err != nil {
		return types.CrowdsourcedAggregate{}, types.NewAppError(types.ErrCodeInternalDB, "failed to aggregate crowd reports", err)
	}
	return agg, nil
}

// DeleteBefore removes reports older than cutoff and returns how many went.
func (r *CrowdReportRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM crowd_reports WHERE reported_at < $1`, cutoff)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to purge crowd reports", err)
	}
	return int(tag.RowsAffected()), nil
}
