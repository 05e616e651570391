package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"railrisk/internal/queue"
	"railrisk/internal/types"
)

// JobEnqueuer is satisfied by *queue.JobProducer.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, req queue.JobRequest) (*types.ForecastJobMessage, error)
}

// Handler routes one MaintenancePayload to its task.
type Handler struct {
	Jobs    JobEnqueuer
	Cleanup *CleanupService
	Clock   types.Clock
	Logger  *slog.Logger
}

// Handle runs the payload's task and returns a one-line summary.
func (h *Handler) Handle(ctx context.Context, payload MaintenancePayload) (string, error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := h.Clock
	if clock == nil {
		clock = types.RealClock{}
	}

	now := clock.Now().UTC()
	if payload.ReferenceTime != nil {
		now = payload.ReferenceTime.UTC()
	}

	task := string(payload.Task)
	logger.InfoContext(ctx, "scheduler invoked",
		"task", task,
		"reference_time", now.Format(time.RFC3339),
	)
	if payload.Task == "" {
		return "", fmt.Errorf("empty task type in maintenance payload")
	}

	items, err := h.dispatch(ctx, payload.Task, now)
	if err != nil {
		logger.ErrorContext(ctx, "task execution failed",
			"task", task,
			"error", err,
		)
		return "", fmt.Errorf("task %s failed: %w", task, err)
	}

	result := fmt.Sprintf("task %s complete: %d items processed", task, items)
	logger.InfoContext(ctx, result, "task", task, "items", items)
	return result, nil
}

func (h *Handler) dispatch(ctx context.Context, task TaskType, now time.Time) (int, error) {
	switch task {
	case TaskEnqueueForecast:
		return h.enqueue(ctx, types.JobActionForecast, 0)
	case TaskEnqueueScore:
		// Yesterday is the most recent day with a complete official record.
		return h.enqueue(ctx, types.JobActionScore, 1)
	case TaskEnqueueCrawl:
		return h.enqueue(ctx, types.JobActionCrawl, 0)
	case TaskPurgeReports:
		return h.Cleanup.PurgeCrowdReports(ctx, now, CrowdReportRetention)
	case TaskPurgeHistory:
		return h.Cleanup.PurgeOfficialHistory(ctx, now, OfficialHistoryRetention)
	default:
		return 0, fmt.Errorf("unknown task type %q", task)
	}
}

// enqueue sends one job covering every route.
func (h *Handler) enqueue(ctx context.Context, action types.ForecastJobAction, days int) (int, error) {
	if _, err := h.Jobs.Enqueue(ctx, queue.JobRequest{
		Action: action,
		Days:   days,
		Reason: "schedule",
	}); err != nil {
		return 0, err
	}
	return 1, nil
}
