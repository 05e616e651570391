package inference

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"railrisk/internal/types"
)

func TestBuildFeatures_Defaults(t *testing.T) {
	target := time.Date(2026, 2, 28, 23, 30, 0, 0, time.UTC) // March 1st in JST
	w := types.WeatherObservation{Time: target, WindSpeed: 12, Snowfall: 1.5}

	f := BuildFeatures(w, target, types.RouteVulnerabilityProfile{MLRouteCode: -1}, jst)

	assert.Equal(t, Features{
		RouteCode: 0,
		Month:     3,
		WindSpeed: 12,
		WindGust:  18,
		Snowfall:  1.5,
		Pressure:  1013,
	}, f)
}

func TestBuildFeatures_NeighbourHours(t *testing.T) {
	target := time.Date(2026, 1, 10, 6, 0, 0, 0, jst)
	w := types.WeatherObservation{
		Time:          target,
		WindSpeed:     10,
		WindGust:      types.Ptr(22.0),
		WindDirection: types.Ptr(270.0),
		SnowDepth:     types.Ptr(40.0),
		Temperature:   types.Ptr(-6.0),
		Pressure:      types.Ptr(990.0),
		SurroundingHours: []types.WeatherObservation{
			{Time: target.Add(-time.Hour), WindSpeed: 8, Pressure: types.Ptr(994.0)},
			{Time: target.Add(time.Hour), WindSpeed: 16, Pressure: types.Ptr(987.0)},
		},
	}

	f := BuildFeatures(w, target, types.RouteVulnerabilityProfile{MLRouteCode: 7}, jst)

	assert.Equal(t, 7.0, f.RouteCode)
	assert.Equal(t, 1.0, f.Month)
	assert.Equal(t, 22.0, f.WindGust)
	assert.Equal(t, 270.0, f.WindDirection)
	assert.Equal(t, 40.0, f.SnowDepth)
	assert.Equal(t, -6.0, f.Temperature)
	assert.Equal(t, 6.0, f.WindChange)
	assert.Equal(t, -4.0, f.PressureChange)
}

func TestFeaturesVector_Order(t *testing.T) {
	f := Features{
		RouteCode: 1, Month: 2, WindSpeed: 3, WindDirection: 4, WindGust: 5, Snowfall: 6,
		SnowDepth: 7, Temperature: 8, Pressure: 9, WindChange: 10, PressureChange: 11,
	}
	assert.Equal(t, [NumFeatures]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, f.Vector())
}
