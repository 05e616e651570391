package prediction

import (
	"context"
	"time"

	"railrisk/internal/types"
)

// weeklyHour is the local hour each daily forecast is evaluated at.
const weeklyHour = 12

// WeeklyInput is an hourly forecast spanning several days for one route.
// Official and Crowd describe the present and only apply to today.
type WeeklyInput struct {
	RouteID         string
	RouteName       string
	Days            int
	Hours           []types.WeatherObservation
	Official        *types.OfficialStatusSignal
	Crowd           *types.CrowdsourcedAggregate
	OfficialHistory []types.OfficialStatusSignal
}

// Weekly predicts each day at local noon, starting today. Days whose noon
// hour is missing from the forecast are skipped.
func (e *Engine) Weekly(ctx context.Context, in WeeklyInput) ([]types.PredictionResult, error) {
	if len(in.Hours) == 0 {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidInput, "hourly forecast is required", nil)
	}
	loc := e.tun.Location
	now := e.clock.Now()
	y, m, d := now.In(loc).Date()

	// Every day shares the same read-only context list.
	anchor := types.WeatherObservation{SurroundingHours: in.Hours}

	out := make([]types.PredictionResult, 0, in.Days)
	for day := 0; day < in.Days; day++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		noon := time.Date(y, m, d+day, weeklyHour, 0, 0, 0, loc)
		obs, ok := anchor.HourAt(noon)
		if !ok {
			continue
		}
		obs.SurroundingHours = in.Hours

		pi := types.PredictionInput{
			RouteID:         in.RouteID,
			RouteName:       in.RouteName,
			Target:          noon,
			Weather:         &obs,
			OfficialHistory: in.OfficialHistory,
		}
		if day == 0 {
			pi.Official = in.Official
			pi.Crowd = in.Crowd
		}
		res, err := e.Predict(ctx, pi, PredictOptions{})
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, nil
}
