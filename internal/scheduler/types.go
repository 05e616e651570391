// Package scheduler implements the scheduled tasks of railrisk.
//
// EventBridge rules invoke the scheduler Lambda with a MaintenancePayload.
// The TaskType selects either a job to enqueue for the forecast worker or a
// retention purge run directly against the database.
package scheduler

import "time"

// TaskType identifies which scheduled task an EventBridge event runs.
type TaskType string

const (
	TaskEnqueueForecast TaskType = "enqueue_forecast"
	TaskEnqueueScore    TaskType = "enqueue_score"
	TaskEnqueueCrawl    TaskType = "enqueue_crawl"
	TaskPurgeReports    TaskType = "purge_reports"
	TaskPurgeHistory    TaskType = "purge_history"
)

// MaintenancePayload is the JSON payload sent by EventBridge:
//
//	{
//	  "task": "enqueue_crawl",
//	  "reference_time": "2026-01-20T06:00:00Z"  // optional
//	}
type MaintenancePayload struct {
	Task TaskType `json:"task"`
	// ReferenceTime overrides "now" for manual invocation and backfills.
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
}
