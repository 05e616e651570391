package external

import (
	"context"

	"railrisk/internal/types"
)

// WeatherProvider fetches hourly weather for the area a route runs through.
type WeatherProvider interface {
	// Hourly returns consecutive hourly observations ordered by time,
	// starting at local midnight today and covering days days.
	Hourly(ctx context.Context, routeID string, days int) ([]types.WeatherObservation, error)
}

// OfficialStatusProvider fetches the operator's current status announcements.
type OfficialStatusProvider interface {
	// Statuses returns the latest signal per route ID. Routes without an
	// announcement are absent and callers treat them as normal service.
	Statuses(ctx context.Context) (map[string]types.OfficialStatusSignal, error)
}
