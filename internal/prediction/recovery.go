package prediction

import (
	"fmt"
	"math"
	"strings"
	"time"

	"railrisk/internal/types"
)

// Suspension causes reported in PredictionResult.SuspensionReason.
const (
	CauseHeavySnow  = "heavy snow"
	CauseStrongWind = "strong wind"
	CauseHeavyRain  = "heavy rain"
	CauseWeather    = "weather conditions"
	CauseDeer       = "deer collision"
	CauseOfficial   = "official announcement"
)

// SuspensionCause names the dominant cause for the given weather. Snow wins
// over wind, wind over rain. Official text mentioning a deer strike takes
// precedence over weather.
func SuspensionCause(w types.WeatherObservation, officialText string) string {
	switch {
	case strings.Contains(officialText, "シカ") || strings.Contains(officialText, "鹿"):
		return CauseDeer
	case w.Snowfall >= 3:
		return CauseHeavySnow
	case w.WindSpeed >= 20:
		return CauseStrongWind
	case w.Precipitation >= 30:
		return CauseHeavyRain
	default:
		return CauseWeather
	}
}

type weatherTrend int

const (
	trendStable weatherTrend = iota
	trendImproving
	trendWorsening
)

// RecoveryEstimate is the fallback recovery guess used when no safe window
// is found in the hourly forecast.
type RecoveryEstimate struct {
	Hours          float64
	Recommendation string
	Reasons        []string
}

// HeuristicRecovery estimates hours until recovery from current conditions,
// the trend over the next three hours and the local time of day.
func HeuristicRecovery(current types.WeatherObservation, next []types.WeatherObservation, cause string, localNow time.Time) RecoveryEstimate {
	wind, snow, rain := current.WindSpeed, current.Snowfall, current.Precipitation
	hour := localNow.Hour()
	base := 1.0
	var reasons []string

	switch {
	case cause == CauseDeer:
		base = 1.5
		reasons = append(reasons, "Deer strikes usually need 1 to 2 hours of inspection")
		if hour >= 20 || hour <= 5 {
			base += 1
			reasons = append(reasons, "Night-time site checks take longer")
		}
	case snow >= 5:
		base = 6
		reasons = append(reasons, fmt.Sprintf("Very heavy snow (%.1f cm/h); clearing cannot keep up", snow))
	case snow >= 3:
		base = 3
		reasons = append(reasons, fmt.Sprintf("Heavy snow (%.1f cm/h) needs repeated clearing", snow))
	case wind >= 30:
		base = 6
		reasons = append(reasons, fmt.Sprintf("Service cannot resume until %.1f m/s winds ease", wind))
	case wind >= 25:
		base = 3
		reasons = append(reasons, fmt.Sprintf("Waiting for %.1f m/s winds to drop", wind))
	case rain >= 50:
		base = 4
		reasons = append(reasons, fmt.Sprintf("Track inspection after %.1f mm/h rain", rain))
	case rain >= 30:
		base = 2
		reasons = append(reasons, fmt.Sprintf("Rainfall limit exceeded (%.1f mm/h)", rain))
	case wind >= 20 || snow >= 2:
		base = 1.5
		reasons = append(reasons, "Weather is likely to disrupt the timetable")
	}

	if len(next) > 3 {
		next = next[:3]
	}
	windTrend, snowTrend := analyzeTrend(current, next)
	switch {
	case windTrend == trendImproving && snowTrend == trendImproving:
		base *= 0.7
		reasons = append(reasons, "Weather improves over the next 3 hours")
	case windTrend == trendWorsening || snowTrend == trendWorsening:
		base *= 1.5
		reasons = append(reasons, "Weather worsens over the next 3 hours")
	}

	switch {
	case hour < 5:
		base += 2
		reasons = append(reasons, "Overnight crews are limited")
	case hour >= 7 && hour < 9:
		base--
		reasons = append(reasons, "Rush-hour recovery is prioritised")
	case hour >= 17 && hour < 19:
		base -= 0.5
		reasons = append(reasons, "Rush-hour recovery is prioritised")
	}

	hours := math.Max(0.5, math.Round(base*2)/2)
	return RecoveryEstimate{Hours: hours, Recommendation: recommendation(hours), Reasons: reasons}
}

func analyzeTrend(current types.WeatherObservation, next []types.WeatherObservation) (wind, snow weatherTrend) {
	if len(next) == 0 {
		return trendStable, trendStable
	}
	var sum, maxSnow float64
	for _, h := range next {
		sum += h.WindSpeed
		maxSnow = math.Max(maxSnow, h.Snowfall)
	}
	return compareTrend(sum/float64(len(next)), current.WindSpeed), compareTrend(maxSnow, current.Snowfall)
}

func compareTrend(future, now float64) weatherTrend {
	switch {
	case future < now*0.8:
		return trendImproving
	case future > now*1.2:
		return trendWorsening
	default:
		return trendStable
	}
}

func recommendation(hours float64) string {
	switch {
	case hours >= 12:
		return "Recovery is likely to take 12 hours or more. Use a bus or rental car."
	case hours >= 6:
		return "Recovery may take 6 hours or more. Consider alternative transport if you are in a hurry."
	case hours >= 3:
		return "Recovery will take a few hours. Check the operator's status page every 30 minutes."
	default:
		return "Service is likely to resume soon. Wait at the station or nearby."
	}
}

// Scale classifies the expected size of a suspension.
func Scale(p int, precedent *types.HistoricalMatch) types.SuspensionScale {
	if precedent != nil && precedent.Scale != "" {
		return precedent.Scale
	}
	switch {
	case p >= 85:
		return types.ScaleLarge
	case p >= 70:
		return types.ScaleMedium
	default:
		return types.ScaleLocal
	}
}
