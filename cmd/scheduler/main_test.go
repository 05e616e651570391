package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"railrisk/internal/queue"
	"railrisk/internal/scheduler"
	"railrisk/internal/types"
)

type stubJobs struct{ err error }

func (s stubJobs) Enqueue(_ context.Context, req queue.JobRequest) (*types.ForecastJobMessage, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &types.ForecastJobMessage{JobID: "job_local", Action: req.Action}, nil
}

type stubPurger struct{}

func (stubPurger) DeleteBefore(context.Context, time.Time) (int, error) { return 3, nil }

func TestRunLocal(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name  string
		input string
		jobs  stubJobs
		want  int
	}{
		{"enqueue crawl", `{"task":"enqueue_crawl"}`, stubJobs{}, 0},
		{"purge reports", `{"task":"purge_reports","reference_time":"2026-01-20T06:00:00Z"}`, stubJobs{}, 0},
		{"bad json", `{"task":`, stubJobs{}, 1},
		{"unknown task", `{"task":"rebuild_tiles"}`, stubJobs{}, 1},
		{"queue down", `{"task":"enqueue_forecast"}`, stubJobs{err: errors.New("sqs unavailable")}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &scheduler.Handler{
				Jobs:    tt.jobs,
				Cleanup: scheduler.NewCleanupService(stubPurger{}, stubPurger{}, logger),
				Clock:   types.FixedClock(time.Date(2026, 1, 20, 3, 0, 0, 0, time.UTC)),
				Logger:  logger,
			}
			if got := runLocal(context.Background(), h, strings.NewReader(tt.input), logger); got != tt.want {
				t.Errorf("runLocal() = %d, want %d", got, tt.want)
			}
		})
	}
}
