package prediction

import (
	"context"
	"time"

	"railrisk/internal/types"
)

// trend re-runs the pipeline for the hours around the target on the same
// local day. The target point reuses target. Neighbouring hours get the
// target's surrounding hours as context, so near-real-time is still judged
// against now and not against the neighbouring hour.
func (e *Engine) trend(ctx context.Context, in types.PredictionInput, profile types.RouteVulnerabilityProfile,
	now time.Time, target *types.PredictionResult) ([]types.TrendPoint, *types.TimeShiftSuggestion) {
	radius := e.tun.TrendRadius
	targetDay := in.Target.In(e.tun.Location).Day()
	points := make([]types.TrendPoint, 0, 2*radius+1)

	var shift *types.TimeShiftSuggestion
	for off := -radius; off <= radius; off++ {
		at := in.Target.Add(time.Duration(off) * time.Hour)
		if at.In(e.tun.Location).Day() != targetDay {
			continue
		}
		if off == 0 {
			points = append(points, types.TrendPoint{
				Time:        in.Target,
				Risk:        target.Probability,
				WeatherIcon: Icon(*in.Weather),
				IsTarget:    true,
			})
			continue
		}

		obs, ok := in.Weather.HourAt(at)
		if !ok {
			continue
		}
		neighbour := in
		neighbour.Target = at
		neighbour.Weather = withContext(obs, *in.Weather)
		risk := e.run(ctx, neighbour, profile, now).Probability

		points = append(points, types.TrendPoint{Time: at, Risk: risk, WeatherIcon: Icon(obs)})

		reduction := target.Probability - risk
		if shift == nil && reduction >= e.tun.TimeShiftReduction {
			shift = &types.TimeShiftSuggestion{Time: at, Risk: risk, Reduction: reduction}
		}
	}
	return points, shift
}

// withContext returns a copy of obs whose surrounding hours are the target's
// own context plus the target hour itself.
func withContext(obs, target types.WeatherObservation) *types.WeatherObservation {
	ctxHours := make([]types.WeatherObservation, 0, len(target.SurroundingHours)+1)
	for _, h := range target.SurroundingHours {
		if h.Time.Equal(obs.Time) {
			continue
		}
		ctxHours = append(ctxHours, h)
	}
	stripped := target
	stripped.SurroundingHours = nil
	ctxHours = append(ctxHours, stripped)

	obs.SurroundingHours = ctxHours
	return &obs
}

// Icon picks the display icon for an hour: snow, then rain, then wind.
func Icon(w types.WeatherObservation) types.WeatherIcon {
	switch {
	case w.Snowfall > 0:
		return types.IconSnow
	case w.Precipitation >= 0.5:
		return types.IconRain
	case w.WindSpeed >= 10:
		return types.IconWind
	default:
		return types.IconClear
	}
}
