package prediction

import (
	"time"

	"railrisk/internal/types"
)

// precedent is a recorded weather pattern together with how the network
// responded to it.
type precedent struct {
	match   types.HistoricalMatch
	matches func(c patternConditions) bool
}

type patternConditions struct {
	wind          float64
	effectiveGust float64
	snowfall      float64
	rain          float64
	month         time.Month
	hour          int
}

// Ordered by severity; the first hit wins.
var precedents = []precedent{
	{
		match: types.HistoricalMatch{
			ID:                   "explosive-cyclogenesis",
			Label:                "Explosive cyclone (Dec 2014 type)",
			ResultedInSuspension: true,
			Confidence:           1,
			TypicalDurationHours: 24,
			Scale:                types.ScaleLarge,
			RecoveryTendency:     types.RecoverySlow,
			Advice:               "Network-wide stoppage lasted days in 2014; whiteout conditions. Do not travel.",
		},
		matches: func(c patternConditions) bool { return c.effectiveGust >= 35 },
	},
	{
		match: types.HistoricalMatch{
			ID:                   "typhoon-multi-hit",
			Label:                "Successive typhoons, record rain (Aug 2016 type)",
			ResultedInSuspension: true,
			Confidence:           1,
			TypicalDurationHours: 72,
			Scale:                types.ScaleLarge,
			RecoveryTendency:     types.RecoverySlow,
			Advice:               "Washouts closed several lines for months in 2016. Expect long outages after the rain stops.",
		},
		matches: func(c patternConditions) bool {
			return c.rain >= 40 || (c.month >= time.August && c.month <= time.October && c.rain >= 25)
		},
	},
	{
		match: types.HistoricalMatch{
			ID:                   "record-intense-snow",
			Label:                "Short burst of record snow (Dec 2016 type)",
			ResultedInSuspension: true,
			Confidence:           1,
			TypicalDurationHours: 12,
			Scale:                types.ScaleLarge,
			RecoveryTendency:     types.RecoveryFast,
			Advice:               "Snow clearing falls behind during the burst; service returns within hours of the peak.",
		},
		matches: func(c patternConditions) bool { return c.snowfall >= 10 },
	},
	{
		match: types.HistoricalMatch{
			ID:                   "disaster-snow-sapporo",
			Label:                "Disaster-level snow around Sapporo (Feb 2022 type)",
			ResultedInSuspension: true,
			Confidence:           1,
			TypicalDurationHours: 48,
			Scale:                types.ScaleLarge,
			RecoveryTendency:     types.RecoverySlow,
			Advice:               "All Sapporo-area trains stopped for two days in 2022. Arrange alternatives early.",
		},
		matches: func(c patternConditions) bool { return c.snowfall >= 5 },
	},
	{
		match: types.HistoricalMatch{
			ID:                   "heavy-wind-low-pressure",
			Label:                "Storm from a deepening low (Feb 2023 type)",
			ResultedInSuspension: true,
			Confidence:           1,
			TypicalDurationHours: 6,
			Scale:                types.ScaleLarge,
			RecoveryTendency:     types.RecoverySlow,
			Advice:               "Gusts above 25 m/s have stopped service until the peak passed.",
		},
		matches: func(c patternConditions) bool { return c.effectiveGust >= 25 || c.wind >= 20 },
	},
	{
		match: types.HistoricalMatch{
			ID:                   "spring-storm",
			Label:                "Spring storm with rapid snowmelt",
			ResultedInSuspension: true,
			Confidence:           1,
			TypicalDurationHours: 4,
			Scale:                types.ScaleMedium,
			RecoveryTendency:     types.RecoveryFast,
			Advice:               "Debris on overhead lines and soft ground cause sudden partial cancellations.",
		},
		matches: func(c patternConditions) bool {
			return c.month >= time.March && c.month <= time.May && c.effectiveGust >= 20
		},
	},
	{
		match: types.HistoricalMatch{
			ID:                   "autumn-deer-collision",
			Label:                "Autumn deer collision season",
			ResultedInSuspension: false,
			Confidence:           1,
			TypicalDurationHours: 2,
			Scale:                types.ScaleLocal,
			RecoveryTendency:     types.RecoveryFast,
			Advice:               "Evening deer strikes peak in October to December; expect 30 to 120 minute delays.",
		},
		matches: func(c patternConditions) bool {
			return c.month >= time.October && c.month <= time.December && c.hour >= 16 && c.hour <= 20
		},
	},
	{
		match: types.HistoricalMatch{
			ID:                   "night-snow-removal",
			Label:                "Planned stoppage for overnight snow clearing",
			ResultedInSuspension: true,
			Confidence:           1,
			TypicalDurationHours: 12,
			Scale:                types.ScaleMedium,
			RecoveryTendency:     types.RecoveryNextDay,
			Advice:               "Last trains may be brought forward to clear snow. Travel early in the evening.",
		},
		matches: func(c patternConditions) bool { return c.snowfall >= 3 },
	},
}

// MatchPrecedent returns the most severe historical pattern matching the
// weather at local time t, or nil.
func MatchPrecedent(w types.WeatherObservation, local time.Time, tun Tunables) *types.HistoricalMatch {
	c := patternConditions{
		wind:          w.WindSpeed,
		effectiveGust: effectiveGust(w, tun.Gust),
		snowfall:      w.Snowfall,
		rain:          w.Precipitation,
		month:         local.Month(),
		hour:          local.Hour(),
	}
	for _, p := range precedents {
		if p.matches(c) {
			m := p.match
			return &m
		}
	}
	return nil
}

// effectiveGust caps implausible gusts reported against a light mean wind.
func effectiveGust(w types.WeatherObservation, g GustTunables) float64 {
	gust := w.Gust()
	if w.WindSpeed < g.UnstableMeanBelow && gust > w.WindSpeed*g.UnstableRatio {
		return min(gust, max(w.WindSpeed*g.UnstableRatio, g.UnstableMeanBelow))
	}
	return gust
}
