package types

import "time"

// DailySnapshot is one stored day of a weekly forecast.
type DailySnapshot struct {
	RouteID       string          `json:"route_id"`
	ForecastDate  time.Time       `json:"forecast_date"`
	Probability   int             `json:"probability"`
	Status        OperationStatus `json:"status"`
	Confidence    ConfidenceLevel `json:"confidence"`
	Reasons       []string        `json:"reasons"`
	Provenance    Provenance      `json:"provenance"`
	AccuracyScore *int            `json:"accuracy_score"`
	ComputedAt    time.Time       `json:"computed_at"`
}

// ResponseMeta contains non-blocking metadata returned with API responses.
type ResponseMeta struct {
	Warnings []string `json:"warnings,omitempty"`
}
