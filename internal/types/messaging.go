package types

import "time"

// ForecastJobAction selects what the forecast worker does with a job.
type ForecastJobAction string

const (
	// JobActionForecast computes and stores the weekly forecast for a route.
	JobActionForecast ForecastJobAction = "forecast"
	// JobActionScore grades stored snapshots against recorded official outcomes.
	JobActionScore ForecastJobAction = "score"
	// JobActionCrawl records the operator's current announcements into the
	// official status history.
	JobActionCrawl ForecastJobAction = "crawl"
)

// ForecastJobMessage is the SQS payload consumed by the forecast worker.
// JSON tags use snake_case to match the HTTP API.
type ForecastJobMessage struct {
	JobID       string            `json:"job_id"`
	TraceID     string            `json:"trace_id"`
	Action      ForecastJobAction `json:"action"`
	RouteIDs    []string          `json:"route_ids"`
	Days        int               `json:"days"`
	RequestedAt time.Time         `json:"requested_at"`
}
