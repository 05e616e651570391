package prediction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"railrisk/internal/types"
)

func TestEngine_TrendSuggestsCalmerHour(t *testing.T) {
	target := time.Date(2026, 1, 20, 12, 0, 0, 0, jst)
	w := types.WeatherObservation{Time: target, WindSpeed: 25, WindGust: types.Ptr(30.0)}
	w.SurroundingHours = []types.WeatherObservation{
		{Time: target.Add(-2 * time.Hour), WindSpeed: 25},
		{Time: target.Add(-time.Hour), WindSpeed: 25},
		calm(target.Add(time.Hour)),
		calm(target.Add(2 * time.Hour)),
	}

	res, err := newTestEngine(target.Add(-24*time.Hour)).Predict(context.Background(), types.PredictionInput{
		RouteID: "hakodate-main",
		Target:  target,
		Weather: &w,
	}, PredictOptions{IncludeTrend: true})
	require.NoError(t, err)

	assert.Equal(t, 85, res.Probability)
	require.Len(t, res.Trend, 5)
	for i, p := range res.Trend {
		assert.True(t, p.Time.Equal(target.Add(time.Duration(i-2)*time.Hour)), "point %d at %s", i, p.Time)
		assert.Equal(t, i == 2, p.IsTarget)
	}
	assert.Equal(t, 85, res.Trend[2].Risk)
	assert.Equal(t, types.IconWind, res.Trend[0].WeatherIcon)
	assert.Equal(t, types.IconClear, res.Trend[3].WeatherIcon)
	assert.Less(t, res.Trend[3].Risk, 20)

	require.NotNil(t, res.TimeShift)
	assert.True(t, res.TimeShift.Time.Equal(target.Add(time.Hour)))
	assert.Equal(t, res.Trend[3].Risk, res.TimeShift.Risk)
	assert.Equal(t, 85-res.Trend[3].Risk, res.TimeShift.Reduction)
}

func TestEngine_TrendStaysOnTargetDay(t *testing.T) {
	target := time.Date(2026, 1, 20, 23, 0, 0, 0, jst)
	w := calm(target)
	for _, off := range []int{-2, -1, 1, 2} {
		w.SurroundingHours = append(w.SurroundingHours, calm(target.Add(time.Duration(off)*time.Hour)))
	}

	res, err := newTestEngine(target).Predict(context.Background(), types.PredictionInput{
		RouteID: "hakodate-main",
		Target:  target,
		Weather: &w,
	}, PredictOptions{IncludeTrend: true})
	require.NoError(t, err)

	require.Len(t, res.Trend, 3)
	assert.True(t, res.Trend[2].IsTarget)
	assert.Nil(t, res.TimeShift)
}

func TestEngine_TrendSkipsMissingHours(t *testing.T) {
	target := time.Date(2026, 8, 3, 12, 0, 0, 0, jst)
	w := calm(target)
	w.SurroundingHours = []types.WeatherObservation{calm(target.Add(time.Hour))}

	res, err := newTestEngine(target).Predict(context.Background(), types.PredictionInput{
		Target:  target,
		Weather: &w,
	}, PredictOptions{IncludeTrend: true})
	require.NoError(t, err)
	assert.Len(t, res.Trend, 2)
}

func TestIcon(t *testing.T) {
	tests := []struct {
		name string
		w    types.WeatherObservation
		want types.WeatherIcon
	}{
		{"snow beats wind", types.WeatherObservation{Snowfall: 0.5, WindSpeed: 20}, types.IconSnow},
		{"rain", types.WeatherObservation{Precipitation: 0.5}, types.IconRain},
		{"drizzle is not rain", types.WeatherObservation{Precipitation: 0.4}, types.IconClear},
		{"wind", types.WeatherObservation{WindSpeed: 10}, types.IconWind},
		{"clear", types.WeatherObservation{WindSpeed: 9.9}, types.IconClear},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Icon(tt.w))
		})
	}
}
