package external

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"railrisk/internal/types"
)

const openMeteoFixture = `{
  "latitude": 42.77,
  "longitude": 141.69,
  "utc_offset_seconds": 32400,
  "timezone": "Asia/Tokyo",
  "hourly": {
    "time": ["2026-01-20T00:00", "2026-01-20T01:00", "2026-01-20T02:00"],
    "temperature_2m": [-3.5, -4.0, null],
    "precipitation": [0.0, 32.0, 1.0],
    "wind_speed_10m": [5.2, 24.1, 8.0],
    "wind_gusts_10m": [9.0, 38.0, null],
    "snow_depth": [0.42, 0.45, null],
    "weather_code": [3, 95, 71],
    "snowfall": [0.0, 1.2, 4.5],
    "winddirection_10m": [320, 300, 290],
    "pressure_msl": [1002.1, 996.4, 994.0]
  }
}`

func newTestWeatherClient(t *testing.T, serverURL string) *WeatherClient {
	t.Helper()
	base := NewBaseClient(
		&http.Client{Timeout: 5 * time.Second},
		"test-weather",
		noRetry,
		"RailRisk-Test/1.0",
		WithSleepFunc(noopSleep),
		WithUpstreamCode(types.ErrCodeUpstreamWeather),
	)
	return NewWeatherClientWithBase(base, WeatherClientConfig{BaseURL: serverURL})
}

func TestWeatherClient_Hourly(t *testing.T) {
	var query map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/forecast", r.URL.Path)
		query = map[string]string{}
		for k := range r.URL.Query() {
			query[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(openMeteoFixture))
	}))
	defer server.Close()

	hours, err := newTestWeatherClient(t, server.URL).Hourly(context.Background(), "jr-hokkaido.chitose", 3)
	require.NoError(t, err)
	require.Len(t, hours, 3)

	assert.Equal(t, "42.7752", query["latitude"])
	assert.Equal(t, "141.6922", query["longitude"])
	assert.Equal(t, "ms", query["wind_speed_unit"])
	assert.Equal(t, "3", query["forecast_days"])
	assert.Equal(t, "Asia/Tokyo", query["timezone"])
	assert.Equal(t, hourlyVariables, query["hourly"])

	jst := time.FixedZone("", 9*60*60)
	first := hours[0]
	assert.True(t, first.Time.Equal(time.Date(2026, 1, 20, 0, 0, 0, 0, jst)))
	assert.Equal(t, 5.2, first.WindSpeed)
	require.NotNil(t, first.SnowDepth)
	assert.InDelta(t, 42.0, *first.SnowDepth, 1e-9, "snow depth is converted to cm")
	assert.Empty(t, first.Warnings)

	storm := hours[1]
	assert.True(t, storm.HasWarning(types.WarningStorm))
	assert.True(t, storm.HasWarning(types.WarningHeavyRain))
	assert.True(t, storm.HasWarning(types.WarningThunder))
	assert.False(t, storm.HasWarning(types.WarningHeavySnow))
	assert.Equal(t, 38.0, storm.Gust())

	last := hours[2]
	assert.Nil(t, last.Temperature)
	assert.Nil(t, last.WindGust)
	assert.Nil(t, last.SnowDepth)
	assert.True(t, last.HasWarning(types.WarningHeavySnow))
}

func TestWeatherClient_UnknownRouteUsesSapporo(t *testing.T) {
	var lat string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lat = r.URL.Query().Get("latitude")
		w.Write([]byte(`{"utc_offset_seconds":32400,"hourly":{"time":[]}}`))
	}))
	defer server.Close()

	hours, err := newTestWeatherClient(t, server.URL).Hourly(context.Background(), "yamanote", 99)
	require.NoError(t, err)
	assert.Empty(t, hours)
	assert.Equal(t, "43.0621", lat)
}

func TestWeatherClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, ""},
		{"bad request", http.StatusBadRequest, `{"error":true,"reason":"bad"}`},
		{"malformed body", http.StatusOK, `{"hourly":`},
		{"malformed time", http.StatusOK, `{"hourly":{"time":["yesterday"]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestWeatherClient(t, server.URL).Hourly(context.Background(), "chitose", 1)
			require.Error(t, err)
			var appErr *types.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, types.ErrCodeUpstreamWeather, appErr.Code)
		})
	}
}

func TestRouteLocation(t *testing.T) {
	loc, ok := RouteLocation("JR-Hokkaido.Soya")
	assert.True(t, ok)
	assert.Equal(t, 44.9167, loc.Latitude)

	loc, ok = RouteLocation("unknown")
	assert.False(t, ok)
	assert.Equal(t, defaultLocation, loc)
}

func TestObservationAt(t *testing.T) {
	start := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)
	hours := make([]types.WeatherObservation, 48)
	for i := range hours {
		hours[i] = types.WeatherObservation{Time: start.Add(time.Duration(i) * time.Hour), WindSpeed: float64(i)}
	}

	obs, ok := ObservationAt(hours, start.Add(20*time.Hour+25*time.Minute))
	require.True(t, ok)
	assert.Equal(t, 20.0, obs.WindSpeed)
	require.Len(t, obs.SurroundingHours, SurroundingBefore+SurroundingAfter)
	assert.Equal(t, 8.0, obs.SurroundingHours[0].WindSpeed)
	assert.Equal(t, 44.0, obs.SurroundingHours[len(obs.SurroundingHours)-1].WindSpeed)

	edge, ok := ObservationAt(hours, start.Add(2*time.Hour))
	require.True(t, ok)
	assert.Len(t, edge.SurroundingHours, 2+SurroundingAfter)

	_, ok = ObservationAt(hours, start.Add(72*time.Hour))
	assert.False(t, ok)
	assert.Nil(t, hours[20].SurroundingHours, "input hours are not modified")
}
