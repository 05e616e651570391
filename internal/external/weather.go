package external

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"railrisk/internal/types"
)

const (
	openMeteoAPIBase = "https://api.open-meteo.com"
	weatherProvider  = "weather"

	hourlyVariables = "temperature_2m,precipitation,wind_speed_10m,wind_gusts_10m,snow_depth,weather_code,snowfall,winddirection_10m,pressure_msl"

	// SurroundingBefore and SurroundingAfter bound the hours attached to a
	// target hour as context. The trailing side covers the resumption
	// lookahead.
	SurroundingBefore = 12
	SurroundingAfter  = 24

	maxForecastDays = 16
)

// Warning thresholds applied to each hourly record.
const (
	stormWindThreshold     = 23.0 // m/s
	heavyRainThreshold     = 30.0 // mm/h
	heavySnowThreshold     = 4.0  // cm/h
	thunderWeatherCodeFrom = 95
)

// Location is a representative point on a route.
type Location struct {
	Latitude  float64
	Longitude float64
}

// defaultLocation is central Sapporo.
var defaultLocation = Location{Latitude: 43.0621, Longitude: 141.3544}

var routeLocations = map[string]Location{
	"hakodate-main": {43.0621, 141.3544},
	"chitose":       {42.7752, 141.6922},
	"gakuentoshi":   {43.2167, 141.3500},
	"muroran":       {42.3150, 140.9736},
	"hidaka":        {42.4833, 142.0500},
	"soya":          {44.9167, 142.0333},
	"rumoi":         {43.9500, 141.6333},
	"sekihoku":      {43.7706, 143.8964},
	"senmo":         {43.3333, 145.5833},
	"nemuro":        {43.0167, 144.3833},
	"furano":        {43.3500, 142.3833},
	"sekisho":       {43.0621, 142.7500},
}

// RouteLocation returns the point whose weather stands in for routeID.
// Unknown routes fall back to Sapporo.
func RouteLocation(routeID string) (Location, bool) {
	key := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(routeID)), "jr-hokkaido.")
	loc, ok := routeLocations[key]
	if !ok {
		return defaultLocation, false
	}
	return loc, true
}

// WeatherClientConfig holds the configuration for creating a WeatherClient.
type WeatherClientConfig struct {
	BaseURL  string // Override for testing; defaults to openMeteoAPIBase
	Timezone string // IANA zone the hourly times are returned in
	Logger   *slog.Logger
}

// openMeteoResponse mirrors the subset of the forecast response railrisk
// reads. Entries may be null when the model has no value for an hour.
type openMeteoResponse struct {
	UTCOffsetSeconds int `json:"utc_offset_seconds"`
	Hourly           struct {
		Time          []string   `json:"time"`
		Temperature   []*float64 `json:"temperature_2m"`
		Precipitation []*float64 `json:"precipitation"`
		WindSpeed     []*float64 `json:"wind_speed_10m"`
		WindGusts     []*float64 `json:"wind_gusts_10m"`
		SnowDepth     []*float64 `json:"snow_depth"`
		WeatherCode   []*float64 `json:"weather_code"`
		Snowfall      []*float64 `json:"snowfall"`
		WindDirection []*float64 `json:"winddirection_10m"`
		Pressure      []*float64 `json:"pressure_msl"`
	} `json:"hourly"`
}

// WeatherClient implements WeatherProvider against the Open-Meteo forecast
// API through BaseClient.
type WeatherClient struct {
	base     *BaseClient
	baseURL  string
	timezone string
	logger   *slog.Logger
}

// NewWeatherClient creates a WeatherClient. The httpClient timeout bounds a
// single attempt.
func NewWeatherClient(httpClient *http.Client, cfg WeatherClientConfig) *WeatherClient {
	base := NewBaseClient(
		httpClient,
		"open-meteo",
		DefaultRetryPolicy(),
		userAgent,
		WithUpstreamCode(types.ErrCodeUpstreamWeather),
		WithLogger(cfg.Logger),
	)
	return NewWeatherClientWithBase(base, cfg)
}

// NewWeatherClientWithBase creates a WeatherClient around a pre-configured
// BaseClient.
func NewWeatherClientWithBase(base *BaseClient, cfg WeatherClientConfig) *WeatherClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openMeteoAPIBase
	}
	tz := cfg.Timezone
	if tz == "" {
		tz = "Asia/Tokyo"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &WeatherClient{
		base:     base,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		timezone: tz,
		logger:   logger,
	}
}

// Hourly fetches days of hourly forecast for routeID, starting at local
// midnight today. Snow depth is converted from metres to centimetres and
// warnings are derived per hour from the thresholds above.
func (c *WeatherClient) Hourly(ctx context.Context, routeID string, days int) ([]types.WeatherObservation, error) {
	days = max(1, min(days, maxForecastDays))
	loc, _ := RouteLocation(routeID)

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', 4, 64))
	q.Set("hourly", hourlyVariables)
	q.Set("timezone", c.timezone)
	q.Set("wind_speed_unit", "ms")
	q.Set("forecast_days", strconv.Itoa(days))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/forecast?"+q.Encode(), nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create weather request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, wrapError(types.ErrCodeUpstreamWeather, weatherProvider, "Hourly", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		appErr := statusError(types.ErrCodeUpstreamWeather, weatherProvider, "Hourly", resp)
		c.logger.ErrorContext(ctx, "weather API error",
			"route_id", routeID,
			"status_code", resp.StatusCode,
			"error", appErr.Err,
		)
		return nil, appErr
	}

	var body openMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamWeather, "failed to decode weather response", err)
	}

	hours, err := body.observations(areaName(routeID))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamWeather, "malformed weather response", err)
	}

	c.logger.DebugContext(ctx, "weather fetched",
		"route_id", routeID,
		"hours", len(hours),
	)
	return hours, nil
}

func (r openMeteoResponse) observations(area string) ([]types.WeatherObservation, error) {
	h := r.Hourly
	zone := time.FixedZone("", r.UTCOffsetSeconds)

	out := make([]types.WeatherObservation, 0, len(h.Time))
	for i, raw := range h.Time {
		at, err := time.ParseInLocation("2006-01-02T15:04", raw, zone)
		if err != nil {
			return nil, fmt.Errorf("hour %d: %w", i, err)
		}
		obs := types.WeatherObservation{
			Time:          at,
			WindSpeed:     valueAt(h.WindSpeed, i),
			WindGust:      pointerAt(h.WindGusts, i),
			WindDirection: pointerAt(h.WindDirection, i),
			Snowfall:      valueAt(h.Snowfall, i),
			Precipitation: valueAt(h.Precipitation, i),
			Temperature:   pointerAt(h.Temperature, i),
			Pressure:      pointerAt(h.Pressure, i),
			WeatherCode:   int(valueAt(h.WeatherCode, i)),
		}
		if depth := pointerAt(h.SnowDepth, i); depth != nil {
			obs.SnowDepth = types.Ptr(*depth * 100)
		}
		obs.Warnings = deriveWarnings(obs, area)
		out = append(out, obs)
	}
	return out, nil
}

// deriveWarnings approximates the meteorological warnings in force from the
// hourly values, since the forecast API does not publish them.
func deriveWarnings(w types.WeatherObservation, area string) []types.WeatherWarning {
	var out []types.WeatherWarning
	if w.WindSpeed >= stormWindThreshold {
		out = append(out, types.WeatherWarning{Kind: types.WarningStorm, Area: area, Text: "暴風警報"})
	}
	if w.Precipitation >= heavyRainThreshold {
		out = append(out, types.WeatherWarning{Kind: types.WarningHeavyRain, Area: area, Text: "大雨警報"})
	}
	if w.Snowfall >= heavySnowThreshold {
		out = append(out, types.WeatherWarning{Kind: types.WarningHeavySnow, Area: area, Text: "大雪警報"})
	}
	if w.WeatherCode >= thunderWeatherCodeFrom {
		out = append(out, types.WeatherWarning{Kind: types.WarningThunder, Area: area, Text: "雷注意報"})
	}
	return out
}

func areaName(routeID string) string {
	if _, ok := RouteLocation(routeID); ok {
		return routeID
	}
	return "北海道"
}

// ObservationAt returns the hour containing target with its neighbouring
// hours attached as SurroundingHours.
func ObservationAt(hours []types.WeatherObservation, target time.Time) (types.WeatherObservation, bool) {
	want := target.Truncate(time.Hour)
	idx := -1
	for i, h := range hours {
		if h.Time.Truncate(time.Hour).Equal(want) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return types.WeatherObservation{}, false
	}

	obs := hours[idx]
	lo := max(0, idx-SurroundingBefore)
	hi := min(len(hours), idx+SurroundingAfter+1)
	obs.SurroundingHours = make([]types.WeatherObservation, 0, hi-lo-1)
	for i := lo; i < hi; i++ {
		if i == idx {
			continue
		}
		h := hours[i]
		h.SurroundingHours = nil
		obs.SurroundingHours = append(obs.SurroundingHours, h)
	}
	return obs, true
}

func valueAt(xs []*float64, i int) float64 {
	if p := pointerAt(xs, i); p != nil {
		return *p
	}
	return 0
}

func pointerAt(xs []*float64, i int) *float64 {
	if i >= len(xs) || xs[i] == nil {
		return nil
	}
	v := *xs[i]
	return &v
}

// Compile-time interface compliance check.
var _ WeatherProvider = (*WeatherClient)(nil)
