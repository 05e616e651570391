package prediction

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"railrisk/internal/types"
)

// ResumptionEstimator searches hourly forecasts for the first contiguous safe
// window and adds a mobilization buffer scaled by storm severity.
type ResumptionEstimator struct {
	tun ResumptionTunables
	loc *time.Location
}

// NewResumptionEstimator returns an estimator over the given tunables.
func NewResumptionEstimator(tun Tunables) *ResumptionEstimator {
	return &ResumptionEstimator{tun: tun.Resume, loc: tun.Location}
}

// Estimate scans hours, which must begin at the search origin ("now" for a
// running suspension, the target hour otherwise). Hours beyond the lookahead
// horizon are ignored. A nil EstimatedResumption means no window was found.
func (r *ResumptionEstimator) Estimate(hours []types.WeatherObservation) types.ResumptionEstimate {
	t := r.tun
	hs := append([]types.WeatherObservation(nil), hours...)
	sort.SliceStable(hs, func(i, j int) bool { return hs[i].Time.Before(hs[j].Time) })
	if len(hs) > 0 && t.LookaheadHours > 0 {
		horizon := hs[0].Time.Add(time.Duration(t.LookaheadHours) * time.Hour)
		n := sort.Search(len(hs), func(i int) bool { return !hs[i].Time.Before(horizon) })
		hs = hs[:n]
	}

	window := t.WindowHours
	var peakFall float64
	for _, h := range hs {
		peakFall = math.Max(peakFall, h.Snowfall)
	}
	if peakFall >= t.HeavySnowfall {
		window = t.HeavySnowWindowHours
	}

	start := r.findWindow(hs, window)
	if start < 0 {
		return types.ResumptionEstimate{
			WindowHours: window,
			Reason: fmt.Sprintf("no %dh window with wind < %.0f m/s, gust < %.0f m/s and snowfall < %.0f cm/h within %dh",
				window, t.SafeWind, t.SafeGust, t.SafeSnowfall, t.LookaheadHours),
		}
	}

	// Severity is judged over everything up to and including the window start.
	var peakWind, peakGust, peakDepth, peakSnow float64
	for _, h := range hs[:start+1] {
		peakWind = math.Max(peakWind, h.WindSpeed)
		peakGust = math.Max(peakGust, h.Gust())
		peakDepth = math.Max(peakDepth, h.Depth())
		peakSnow = math.Max(peakSnow, h.Snowfall)
	}

	windPart := math.Max(0, peakWind-t.SafeWind) * t.WindCoef
	var stormPart float64
	if peakGust >= t.ViolentGust {
		stormPart = t.ViolentGustHours
	}
	clearPart := math.Max(0, peakDepth-t.DepthSafe) * t.DepthCoef
	buffer := roundUpHours(t.InspectionHours+windPart+stormPart+clearPart, t.RoundTo)

	windowStart := hs[start].Time
	resume := windowStart.Add(time.Duration(buffer * float64(time.Hour)))

	var b strings.Builder
	fmt.Fprintf(&b, "peak wind %.1f m/s, gust %.1f m/s, snowfall %.1f cm/h, snow depth %.0f cm; ",
		peakWind, peakGust, peakSnow, peakDepth)
	fmt.Fprintf(&b, "safe for %dh from %s; ", window, windowStart.In(r.loc).Format("15:04"))
	fmt.Fprintf(&b, "buffer %.2fh = inspection %.2fh + wind %.2fh + storm %.2fh + clearing %.2fh",
		buffer, t.InspectionHours, windPart, stormPart, clearPart)

	return types.ResumptionEstimate{
		EstimatedResumption: &resume,
		SafetyWindowStart:   &windowStart,
		RequiredBufferHours: buffer,
		WindowHours:         window,
		Reason:              b.String(),
	}
}

// findWindow returns the index of the first run of n consecutive safe hours,
// or -1. A gap in the hourly sequence breaks a run.
func (r *ResumptionEstimator) findWindow(hs []types.WeatherObservation, n int) int {
	if n <= 0 {
		return -1
	}
	run := 0
	for i, h := range hs {
		if !r.safe(h) || (run > 0 && h.Time.Sub(hs[i-1].Time) != time.Hour) {
			run = 0
			if !r.safe(h) {
				continue
			}
		}
		run++
		if run == n {
			return i - n + 1
		}
	}
	return -1
}

func (r *ResumptionEstimator) safe(h types.WeatherObservation) bool {
	return h.WindSpeed < r.tun.SafeWind && h.Gust() < r.tun.SafeGust && h.Snowfall < r.tun.SafeSnowfall
}

func roundUpHours(h float64, step time.Duration) float64 {
	if step <= 0 {
		return h
	}
	s := step.Hours()
	return math.Ceil(h/s-1e-9) * s
}
