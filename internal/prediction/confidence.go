package prediction

import (
	"fmt"
	"math"
)

// FilterInput is what the confidence filter needs to judge whether a
// mid-band probability is backed by real weather.
type FilterInput struct {
	Probability    int
	Score          float64
	WindSpeed      float64
	Gust           float64
	Snowfall       float64
	OfficialNormal bool
	NearRealTime   bool
}

// FilterResult reports the adjusted probability.
type FilterResult struct {
	Probability int
	Suppressed  bool
	Reason      string
}

// ConfidenceFilter suppresses mid-band probabilities that rest on weak weather
// evidence. Two bands apply: a wide, aggressive one when the operator reports
// normal service for a near-real-time target, and a narrow, mild one otherwise.
func ConfidenceFilter(in FilterInput, f FilterTunables) FilterResult {
	weak := in.WindSpeed < f.WeakWind && in.Gust < f.WeakGust && in.Snowfall < f.WeakSnowfall
	if !weak {
		return FilterResult{Probability: in.Probability}
	}

	p := in.Probability
	if in.OfficialNormal && in.NearRealTime &&
		p >= f.OfficialBandLow && p < f.OfficialBandHigh && in.Score < f.OfficialMaxScore {
		return FilterResult{
			Probability: int(math.Round(float64(p) * f.OfficialRatio)),
			Suppressed:  true,
			Reason:      weakReason("official normal", in),
		}
	}
	if p >= f.DefaultBandLow && p < f.DefaultBandHigh && in.Score < f.DefaultMaxScore {
		return FilterResult{
			Probability: int(math.Round(float64(p) * f.DefaultRatio)),
			Suppressed:  true,
			Reason:      weakReason("weak weather signal", in),
		}
	}
	return FilterResult{Probability: p}
}

func weakReason(cause string, in FilterInput) string {
	return fmt.Sprintf("%s (wind %.1f m/s, gust %.1f m/s, snow %.1f cm/h)", cause, in.WindSpeed, in.Gust, in.Snowfall)
}
