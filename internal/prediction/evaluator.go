package prediction

import (
	"fmt"
	"math"
	"sort"
	"time"

	"railrisk/internal/types"
)

// EvalInput is everything the factor table looks at for one instant.
// Official must already be normalized and trusted; stale signals are dropped
// by the caller.
type EvalInput struct {
	Profile      types.RouteVulnerabilityProfile
	Weather      *types.WeatherObservation
	Official     *types.OfficialStatusSignal
	Crowd        *types.CrowdsourcedAggregate
	Precedent    *types.HistoricalMatch
	Target       time.Time
	Now          time.Time
	NearRealTime bool
}

type factor struct {
	name string
	// scaled factors are multiplied by the route vulnerability multiplier.
	scaled bool
	eval   func(in EvalInput, w types.WeatherObservation, t Tunables) (types.RiskReason, bool)
}

// Evaluator scores the weighted factor table.
type Evaluator struct {
	tun     Tunables
	factors []factor
}

// NewEvaluator builds an evaluator over the given tunables.
func NewEvaluator(tun Tunables) *Evaluator {
	return &Evaluator{tun: tun, factors: factorTable()}
}

// Evaluate returns the raw risk score with its weighted reasons, ordered by
// priority ascending then weight descending. Raising wind or snowfall while
// holding everything else fixed never lowers the score.
func (e *Evaluator) Evaluate(in EvalInput) types.RiskEvaluationResult {
	var w types.WeatherObservation
	if in.Weather != nil {
		w = *in.Weather
	}
	mult := in.Profile.VulnerabilityMultiplier
	if mult <= 0 {
		mult = 1
	}

	var (
		score   float64
		reasons []types.RiskReason
	)
	for _, f := range e.factors {
		r, ok := f.eval(in, w, e.tun)
		if !ok || r.Weight <= 0 {
			continue
		}
		if f.scaled {
			r.Weight = math.Round(r.Weight * mult)
		}
		score += r.Weight
		reasons = append(reasons, r)
	}

	local := in.Target.In(e.tun.Location)
	if isWinter(local.Month()) {
		winter := math.Round(e.tun.Winter.Base + (mult-e.tun.Winter.Pivot)*e.tun.Winter.Coef)
		if winter > 0 {
			score += winter
			if score < 8 {
				reasons = append(reasons, types.RiskReason{
					Text:     "Winter season: baseline risk from cold and snow",
					Weight:   winter,
					Priority: 11,
				})
			}
		}
	}

	if in.Weather != nil {
		if c, ok := compoundRisk(w, in.Profile, e.tun.Compound); ok {
			score += c.Weight
			reasons = append(reasons, c)
		}
	}

	critical := 0
	for _, r := range reasons {
		if r.Priority <= e.tun.Compound.CriticalPriority {
			critical++
		}
	}
	if critical >= e.tun.Compound.CriticalCount {
		score *= e.tun.Compound.CriticalMultiplier
	}

	sortReasons(reasons)

	return types.RiskEvaluationResult{
		Score:           score,
		Reasons:         reasons,
		HasRealTimeData: hasRealTimeData(in, e.tun),
	}
}

func hasRealTimeData(in EvalInput, t Tunables) bool {
	if in.Official != nil && in.Official.Status != types.OfficialNormal {
		return true
	}
	return in.Crowd != nil && in.Crowd.Total() >= t.ConsensusMinReports
}

func sortReasons(rs []types.RiskReason) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Priority != rs[j].Priority {
			return rs[i].Priority < rs[j].Priority
		}
		return rs[i].Weight > rs[j].Weight
	})
}

func isWinter(m time.Month) bool {
	return m >= time.November || m <= time.March
}

func compoundRisk(w types.WeatherObservation, p types.RouteVulnerabilityProfile, c CompoundTunables) (types.RiskReason, bool) {
	if p.WindThreshold <= 0 || p.SnowThreshold <= 0 {
		return types.RiskReason{}, false
	}
	wr := w.WindSpeed / p.WindThreshold
	sr := w.Snowfall / p.SnowThreshold
	if wr < c.Ratio || sr < c.Ratio {
		return types.RiskReason{}, false
	}
	score := math.Min(math.Round(c.Base*wr*sr), c.Max)
	if wr >= 1 && sr >= 1 {
		score += c.Bonus
	}
	return types.RiskReason{
		Text:     "Wind and snow together: blizzard conditions likely",
		Weight:   score,
		Priority: 5,
	}, true
}

func factorTable() []factor {
	return []factor{
		{name: "official", eval: officialFactor},
		{name: "storm_warning", scaled: true, eval: stormWarningFactor},
		{name: "heavy_snow_warning", scaled: true, eval: heavySnowWarningFactor},
		{name: "heavy_rain_warning", scaled: true, eval: warningFactor(types.WarningHeavyRain, 3, "Heavy rain warning in effect",
			func(t Tunables) float64 { return t.Warnings.HeavyRain })},
		{name: "thunder", scaled: true, eval: warningFactor(types.WarningThunder, 11, "Thunderstorm advisory in effect",
			func(t Tunables) float64 { return t.Warnings.Thunder })},
		{name: "wind", scaled: true, eval: windFactor},
		{name: "gust", scaled: true, eval: gustFactor},
		{name: "snowfall", scaled: true, eval: snowfallFactor},
		{name: "snow_surge", scaled: true, eval: snowSurgeFactor},
		{name: "snow_depth", scaled: true, eval: snowDepthFactor},
		{name: "drift", scaled: true, eval: driftFactor},
		{name: "wet_snow", scaled: true, eval: wetSnowFactor},
		{name: "planned_clearing", scaled: true, eval: plannedClearingFactor},
		{name: "rain", scaled: true, eval: rainFactor},
		{name: "cold", scaled: true, eval: coldFactor},
		{name: "pressure", scaled: true, eval: pressureFactor},
		{name: "deer", eval: deerFactor},
		{name: "precedent", eval: precedentFactor},
	}
}

func officialFactor(in EvalInput, _ types.WeatherObservation, t Tunables) (types.RiskReason, bool) {
	if in.Official == nil || !in.NearRealTime {
		return types.RiskReason{}, false
	}
	var base float64
	switch in.Official.Status {
	case types.OfficialSuspended:
		base = t.Official.SuspendedWeight
	case types.OfficialPartial:
		base = t.Official.PartialWeight
	case types.OfficialDelay:
		base = t.Official.DelayWeight
	default:
		return types.RiskReason{}, false
	}
	text := in.Official.StatusText
	if text == "" {
		text = "delays or suspensions reported by the operator"
	}
	return types.RiskReason{
		Text:     "Official: " + text,
		Weight:   math.Round(base * RecencyWeight(in.Official.UpdatedAt, in.Now)),
		Priority: 0,
	}, true
}

// RecencyWeight discounts official data by age. A missing timestamp counts
// as half-trusted.
func RecencyWeight(updatedAt *time.Time, now time.Time) float64 {
	if updatedAt == nil {
		return 0.5
	}
	age := now.Sub(*updatedAt)
	switch {
	case age <= 5*time.Minute:
		return 1.0
	case age <= 15*time.Minute:
		return 0.9
	case age <= 30*time.Minute:
		return 0.75
	case age <= 60*time.Minute:
		return 0.5
	default:
		return 0.3
	}
}

func stormWarningFactor(_ EvalInput, w types.WeatherObservation, t Tunables) (types.RiskReason, bool) {
	if !w.HasWarning(types.WarningStorm) {
		return types.RiskReason{}, false
	}
	weight := t.Warnings.Storm
	if w.WindSpeed >= t.Wind.StormWindSpeed || effectiveGust(w, t.Gust) >= t.Gust.StormGust {
		weight = t.Warnings.StormSevere
	}
	return types.RiskReason{Text: "Storm warning in effect", Weight: weight, Priority: 1}, true
}

func heavySnowWarningFactor(_ EvalInput, w types.WeatherObservation, t Tunables) (types.RiskReason, bool) {
	if !w.HasWarning(types.WarningHeavySnow) {
		return types.RiskReason{}, false
	}
	weight := t.Warnings.HeavySnow
	if w.Snowfall >= t.Snow.DisasterFall {
		weight = t.Warnings.HeavySnowSevere
	}
	return types.RiskReason{Text: "Heavy snow warning in effect", Weight: weight, Priority: 2}, true
}

func warningFactor(kind types.WarningKind, priority int, text string, weight func(Tunables) float64) func(EvalInput, types.WeatherObservation, Tunables) (types.RiskReason, bool) {
	return func(_ EvalInput, w types.WeatherObservation, t Tunables) (types.RiskReason, bool) {
		if !w.HasWarning(kind) {
			return types.RiskReason{}, false
		}
		return types.RiskReason{Text: text, Weight: weight(t), Priority: priority}, true
	}
}

func safeDirection(in EvalInput, w types.WeatherObservation) bool {
	return w.WindDirection != nil && in.Profile.InSafeDirection(*w.WindDirection)
}

func windFactor(in EvalInput, w types.WeatherObservation, t Tunables) (types.RiskReason, bool) {
	ws := w.WindSpeed
	wt := t.Wind
	var r types.RiskReason
	switch {
	case ws >= in.Profile.WindThreshold:
		r = types.RiskReason{
			Text: fmt.Sprintf("Wind %.1f m/s forecast, at or above the %.0f m/s operating limit",
				ws, in.Profile.WindThreshold),
			Weight:   wt.StrongBase + math.Min((ws-in.Profile.WindThreshold)*wt.StrongCoef, wt.StrongMaxBonus),
			Priority: 4,
		}
	case ws >= wt.ModerateMin:
		r = types.RiskReason{
			Text:     fmt.Sprintf("Wind %.1f m/s forecast; trains may run at reduced speed", ws),
			Weight:   wt.ModerateBase + math.Round((ws-wt.ModerateMin)*wt.ModerateCoef),
			Priority: 7,
		}
	case ws >= wt.LightMin:
		r = types.RiskReason{
			Text:     fmt.Sprintf("Wind %.1f m/s; minor impact possible", ws),
			Weight:   wt.LightScore,
			Priority: 10,
		}
	default:
		return r, false
	}
	if safeDirection(in, w) {
		r.Weight = math.Round(r.Weight * wt.SafeDirectionMultiplier)
	}
	return r, true
}

func gustFactor(in EvalInput, w types.WeatherObservation, t Tunables) (types.RiskReason, bool) {
	g := t.Gust
	gust := w.Gust()
	if gust < g.Danger {
		return types.RiskReason{}, false
	}
	var r types.RiskReason
	if w.WindSpeed < g.UnstableMeanBelow && gust > w.WindSpeed*g.UnstableRatio {
		eff := math.Min(gust, w.WindSpeed*g.UnstableRatio)
		r = types.RiskReason{
			Text:     fmt.Sprintf("Gusts to %.1f m/s forecast (unsteady model output)", gust),
			Weight:   g.Base + math.Min(math.Max(0, eff-g.Danger), g.MaxBonus)*g.UnstableScale,
			Priority: 6,
		}
	} else {
		r = types.RiskReason{
			Text:     fmt.Sprintf("Gusts to %.1f m/s forecast; brief stoppages possible", gust),
			Weight:   g.Base + math.Min(gust-g.Danger, g.MaxBonus),
			Priority: 6,
		}
	}
	if safeDirection(in, w) {
		r.Weight = math.Round(r.Weight * t.Wind.SafeDirectionMultiplier)
	}
	return r, true
}

func snowfallFactor(in EvalInput, w types.WeatherObservation, t Tunables) (types.RiskReason, bool) {
	s := w.Snowfall
	st := t.Snow
	switch {
	case s >= in.Profile.SnowThreshold:
		weight := st.HeavyBase + math.Min((s-in.Profile.SnowThreshold)*st.HeavyCoef, st.HeavyMaxBonus)
		if s >= st.RecordFall {
			weight = math.Max(weight, st.RecordScore)
		} else if s >= st.DisasterFall {
			weight = math.Max(weight, st.DisasterScore)
		}
		return types.RiskReason{
			Text:     fmt.Sprintf("Snowfall %.1f cm/h forecast; clearing work will cause delays", s),
			Weight:   weight,
			Priority: 5,
		}, true
	case s >= st.ModerateMin:
		return types.RiskReason{
			Text:     fmt.Sprintf("Snowfall %.1f cm/h forecast; delays possible", s),
			Weight:   math.Min(st.ModerateBase+math.Round((s-st.ModerateMin)*st.ModerateCoef), st.HeavyBase),
			Priority: 8,
		}, true
	case s >= st.LightMin:
		return types.RiskReason{
			Text:     fmt.Sprintf("Snowfall %.1f cm/h; minor impact possible", s),
			Weight:   st.LightScore,
			Priority: 10,
		}, true
	}
	return types.RiskReason{}, false
}

func snowSurgeFactor(in EvalInput, w types.WeatherObservation, t Tunables) (types.RiskReason, bool) {
	if w.SnowDepth == nil || in.Weather == nil {
		return types.RiskReason{}, false
	}
	prev, ok := in.Weather.HourAt(w.Time.Add(-time.Hour))
	if !ok || prev.SnowDepth == nil {
		return types.RiskReason{}, false
	}
	change := *w.SnowDepth - *prev.SnowDepth
	if change < t.Snow.SurgeMin {
		return types.RiskReason{}, false
	}
	return types.RiskReason{
		Text:     fmt.Sprintf("Snow depth rising %.0f cm/h; trains may get stuck", change),
		Weight:   t.Snow.SurgeBase + (change-t.Snow.SurgeMin)*t.Snow.SurgeCoef,
		Priority: 4,
	}, true
}

func snowDepthFactor(_ EvalInput, w types.WeatherObservation, t Tunables) (types.RiskReason, bool) {
	st := t.Snow
	depth := w.Depth()
	if depth < st.DepthModerate || w.Snowfall < st.DepthActiveSnowfall {
		return types.RiskReason{}, false
	}
	weight := st.DepthModerateScore
	if depth >= st.DepthCritical {
		weight = st.DepthCriticalScore
	}
	return types.RiskReason{
		Text:     fmt.Sprintf("Deep snow (%.0f cm) with snow still falling; snow removal may stop trains", depth),
		Weight:   weight,
		Priority: 3,
	}, true
}

func driftFactor(_ EvalInput, w types.WeatherObservation, t Tunables) (types.RiskReason, bool) {
	st := t.Snow
	if w.Temperature == nil || *w.Temperature > st.DriftTemp || w.Depth() < st.DriftDepth || w.WindSpeed < st.DriftWind {
		return types.RiskReason{}, false
	}
	return types.RiskReason{
		Text:     fmt.Sprintf("Dry snow on the ground with %.1f m/s wind; drifting snow likely", w.WindSpeed),
		Weight:   math.Min(st.DriftBase+(w.WindSpeed-st.DriftWind)*st.DriftCoef, st.DriftMax),
		Priority: 5,
	}, true
}

func wetSnowFactor(_ EvalInput, w types.WeatherObservation, t Tunables) (types.RiskReason, bool) {
	st := t.Snow
	if w.Temperature == nil || *w.Temperature < st.WetTempMin || *w.Temperature > st.WetTempMax || w.Snowfall < st.WetMin {
		return types.RiskReason{}, false
	}
	return types.RiskReason{
		Text:     fmt.Sprintf("Wet snow near %.0f°C; points and overhead lines may ice up", *w.Temperature),
		Weight:   math.Min(st.WetBase+(w.Snowfall-st.WetMin)*st.WetCoef, st.WetMax),
		Priority: 6,
	}, true
}

func plannedClearingFactor(in EvalInput, w types.WeatherObservation, t Tunables) (types.RiskReason, bool) {
	st := t.Snow
	local := in.Target.In(t.Location)
	m := local.Month()
	if (m != time.January && m != time.February) || local.Weekday() != time.Saturday ||
		local.Hour() < st.PlannedClearingHour || w.Depth() < st.PlannedClearingDepth {
		return types.RiskReason{}, false
	}
	return types.RiskReason{
		Text:     "Winter Saturday night: planned snow clearing may cancel late trains",
		Weight:   st.PlannedClearingScore,
		Priority: 5,
	}, true
}

func rainFactor(_ EvalInput, w types.WeatherObservation, t Tunables) (types.RiskReason, bool) {
	r := w.Precipitation
	rt := t.Rain
	switch {
	case r >= rt.HeavyMin:
		return types.RiskReason{
			Text:     fmt.Sprintf("Precipitation %.1f mm/h forecast", r),
			Weight:   rt.HeavyBase + math.Min(math.Round((r-rt.HeavyMin)*rt.HeavyCoef), rt.HeavyMaxBonus),
			Priority: 6,
		}, true
	case r >= rt.ModerateMin:
		return types.RiskReason{
			Text:     fmt.Sprintf("Precipitation %.1f mm/h; reduced visibility", r),
			Weight:   rt.ModerateBase + math.Round(r*rt.ModerateCoef),
			Priority: 9,
		}, true
	}
	return types.RiskReason{}, false
}

func coldFactor(_ EvalInput, w types.WeatherObservation, t Tunables) (types.RiskReason, bool) {
	if w.Temperature == nil || *w.Temperature > t.Cold.Threshold {
		return types.RiskReason{}, false
	}
	return types.RiskReason{
		Text:     fmt.Sprintf("Severe cold (%.0f°C); frozen points possible", *w.Temperature),
		Weight:   math.Min(t.Cold.Base+(t.Cold.Threshold-*w.Temperature)*t.Cold.Coef, t.Cold.Max),
		Priority: 9,
	}, true
}

func pressureFactor(in EvalInput, w types.WeatherObservation, t Tunables) (types.RiskReason, bool) {
	if w.Pressure == nil || in.Weather == nil {
		return types.RiskReason{}, false
	}
	prev, ok := in.Weather.HourAt(w.Time.Add(-time.Duration(t.Pressure.LookbackHours) * time.Hour))
	if !ok || prev.Pressure == nil {
		return types.RiskReason{}, false
	}
	drop := *prev.Pressure - *w.Pressure
	if drop < t.Pressure.DropMin {
		return types.RiskReason{}, false
	}
	return types.RiskReason{
		Text:     fmt.Sprintf("Pressure fell %.1f hPa in %dh; a deepening low is approaching", drop, t.Pressure.LookbackHours),
		Weight:   math.Min(t.Pressure.DropBase+(drop-t.Pressure.DropMin)*t.Pressure.DropCoef, t.Pressure.DropMax),
		Priority: 7,
	}, true
}

func deerFactor(in EvalInput, _ types.WeatherObservation, t Tunables) (types.RiskReason, bool) {
	if !in.Profile.HasDeerRisk {
		return types.RiskReason{}, false
	}
	local := in.Target.In(t.Location)
	m := local.Month()
	if m < t.Deer.FromMonth && m > t.Deer.ToMonth {
		return types.RiskReason{}, false
	}
	if h := local.Hour(); h < t.Deer.EveningStart && h > t.Deer.MorningEnd {
		return types.RiskReason{}, false
	}
	return types.RiskReason{
		Text:     "Deer collision season and hours",
		Weight:   t.Deer.Score,
		Priority: 8,
	}, true
}

func precedentFactor(in EvalInput, _ types.WeatherObservation, t Tunables) (types.RiskReason, bool) {
	p := in.Precedent
	if p == nil || !p.ResultedInSuspension {
		return types.RiskReason{}, false
	}
	conf := p.Confidence
	if conf <= 0 || conf > 1 {
		conf = 1
	}
	return types.RiskReason{
		Text:     "Historical precedent: " + p.Label,
		Weight:   math.Round(t.PrecedentBonus * conf),
		Priority: 5,
	}, true
}
