package inference

import (
	"time"

	"railrisk/internal/types"
)

// NumFeatures is the width of the model input vector.
const NumFeatures = 11

// Defaults used when the weather source omits a value.
const (
	defaultPressure  = 1013.0
	defaultGustRatio = 1.5
)

// Features is the model input in training column order. Do not reorder.
type Features struct {
	RouteCode      float64 `json:"route_code"`
	Month          float64 `json:"month"`
	WindSpeed      float64 `json:"wind_speed"`
	WindDirection  float64 `json:"wind_direction"`
	WindGust       float64 `json:"wind_gust"`
	Snowfall       float64 `json:"snowfall"`
	SnowDepth      float64 `json:"snow_depth"`
	Temperature    float64 `json:"temperature"`
	Pressure       float64 `json:"pressure"`
	WindChange     float64 `json:"wind_change"`
	PressureChange float64 `json:"pressure_change"`
}

// Vector returns the features as the model's input row.
func (f Features) Vector() [NumFeatures]float64 {
	return [NumFeatures]float64{
		f.RouteCode,
		f.Month,
		f.WindSpeed,
		f.WindDirection,
		f.WindGust,
		f.Snowfall,
		f.SnowDepth,
		f.Temperature,
		f.Pressure,
		f.WindChange,
		f.PressureChange,
	}
}

// BuildFeatures derives the model input for the observation at in.Target.
// Routes unknown to the model are encoded as route 0. Wind change looks one
// hour ahead and pressure change one hour back through the surrounding
// hours; both are 0 when the neighbouring hour is missing.
func BuildFeatures(w types.WeatherObservation, target time.Time, profile types.RouteVulnerabilityProfile, loc *time.Location) Features {
	if loc == nil {
		loc = time.UTC
	}
	f := Features{
		RouteCode:     float64(max(profile.MLRouteCode, 0)),
		Month:         float64(target.In(loc).Month()),
		WindSpeed:     w.WindSpeed,
		WindDirection: valueOr(w.WindDirection, 0),
		WindGust:      valueOr(w.WindGust, w.WindSpeed*defaultGustRatio),
		Snowfall:      w.Snowfall,
		SnowDepth:     valueOr(w.SnowDepth, 0),
		Temperature:   valueOr(w.Temperature, 0),
		Pressure:      valueOr(w.Pressure, defaultPressure),
	}

	if next, ok := w.HourAt(target.Add(time.Hour)); ok && next.Time.After(w.Time) {
		f.WindChange = next.WindSpeed - w.WindSpeed
	}
	if prev, ok := w.HourAt(target.Add(-time.Hour)); ok && prev.Time.Before(w.Time) && w.Pressure != nil && prev.Pressure != nil {
		f.PressureChange = *w.Pressure - *prev.Pressure
	}
	return f
}

// valueOr treats a zero reading like a missing one, matching how the
// training data was prepared.
func valueOr(p *float64, def float64) float64 {
	if p == nil || *p == 0 {
		return def
	}
	return *p
}
