package prediction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"railrisk/internal/types"
)

func TestSuspensionCause(t *testing.T) {
	assert.Equal(t, CauseDeer, SuspensionCause(types.WeatherObservation{Snowfall: 8}, "鹿と衝突したため"))
	assert.Equal(t, CauseDeer, SuspensionCause(types.WeatherObservation{}, "エゾシカと接触"))
	assert.Equal(t, CauseHeavySnow, SuspensionCause(types.WeatherObservation{Snowfall: 3, WindSpeed: 25}, ""))
	assert.Equal(t, CauseStrongWind, SuspensionCause(types.WeatherObservation{WindSpeed: 20, Precipitation: 40}, ""))
	assert.Equal(t, CauseHeavyRain, SuspensionCause(types.WeatherObservation{Precipitation: 30}, ""))
	assert.Equal(t, CauseWeather, SuspensionCause(types.WeatherObservation{WindSpeed: 5}, ""))
}

func TestHeuristicRecovery(t *testing.T) {
	day := func(hour int) time.Time { return time.Date(2026, 1, 12, hour, 0, 0, 0, jst) }
	tests := []struct {
		name    string
		current types.WeatherObservation
		next    []types.WeatherObservation
		cause   string
		at      time.Time
		want    float64
	}{
		{
			name:    "easing wind",
			current: types.WeatherObservation{WindSpeed: 26},
			next:    []types.WeatherObservation{{WindSpeed: 10}, {WindSpeed: 10}, {WindSpeed: 10}},
			cause:   CauseStrongWind,
			at:      day(14),
			want:    3,
		},
		{
			name:  "deer strike at night",
			cause: CauseDeer,
			at:    day(21),
			want:  2.5,
		},
		{
			name:    "worsening snow overnight",
			current: types.WeatherObservation{Snowfall: 6},
			next:    []types.WeatherObservation{{Snowfall: 8}, {Snowfall: 8}, {Snowfall: 8}},
			cause:   CauseHeavySnow,
			at:      day(3),
			want:    11,
		},
		{
			name:    "everything improving",
			current: types.WeatherObservation{WindSpeed: 26, Snowfall: 3},
			next:    []types.WeatherObservation{{WindSpeed: 10, Snowfall: 1}},
			cause:   CauseHeavySnow,
			at:      day(14),
			want:    2,
		},
		{
			name:    "morning rush priority",
			current: types.WeatherObservation{WindSpeed: 21},
			cause:   CauseStrongWind,
			at:      day(8),
			want:    0.5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HeuristicRecovery(tt.current, tt.next, tt.cause, tt.at)
			assert.Equal(t, tt.want, got.Hours)
			assert.Equal(t, recommendation(tt.want), got.Recommendation)
			assert.NotEmpty(t, got.Reasons)
		})
	}
}

func TestRecommendation(t *testing.T) {
	assert.Contains(t, recommendation(12), "12 hours or more")
	assert.Contains(t, recommendation(6), "6 hours or more")
	assert.Contains(t, recommendation(3), "every 30 minutes")
	assert.Contains(t, recommendation(0.5), "resume soon")
}

func TestScale(t *testing.T) {
	assert.Equal(t, types.ScaleLarge, Scale(85, nil))
	assert.Equal(t, types.ScaleMedium, Scale(70, nil))
	assert.Equal(t, types.ScaleLocal, Scale(69, nil))
	assert.Equal(t, types.ScaleMedium, Scale(99, &types.HistoricalMatch{Scale: types.ScaleMedium}))
	assert.Equal(t, types.ScaleLocal, Scale(40, &types.HistoricalMatch{}))
}
