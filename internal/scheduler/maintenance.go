package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Retention periods. Official history outlives the gatherer's read window
// so accuracy scoring and trends always have data.
const (
	CrowdReportRetention     = 7 * 24 * time.Hour
	OfficialHistoryRetention = 180 * 24 * time.Hour
)

// Purger deletes rows older than a cutoff.
type Purger interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// CleanupService purges rider reports and official history past retention.
type CleanupService struct {
	reports Purger
	history Purger
	logger  *slog.Logger
}

func NewCleanupService(reports, history Purger, logger *slog.Logger) *CleanupService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupService{reports: reports, history: history, logger: logger}
}

// PurgeCrowdReports removes reports older than now-retention.
func (c *CleanupService) PurgeCrowdReports(ctx context.Context, now time.Time, retention time.Duration) (int, error) {
	return c.purge(ctx, c.reports, "crowd reports", now.Add(-retention))
}

// PurgeOfficialHistory removes announcements older than now-retention.
func (c *CleanupService) PurgeOfficialHistory(ctx context.Context, now time.Time, retention time.Duration) (int, error) {
	return c.purge(ctx, c.history, "official history", now.Add(-retention))
}

func (c *CleanupService) purge(ctx context.Context, p Purger, what string, cutoff time.Time) (int, error) {
	count, err := p.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting old %s: %w", what, err)
	}

	if count > 0 {
		c.logger.InfoContext(ctx, "purged old "+what,
			"count", count,
			"cutoff", cutoff.Format(time.RFC3339),
		)
	}
	return count, nil
}
