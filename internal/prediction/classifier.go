package prediction

import (
	"fmt"
	"time"

	"railrisk/internal/types"
)

// ClassifyInput is the filtered probability plus the official context that
// may override it.
type ClassifyInput struct {
	Probability int
	// Official is normalized and trusted; nil when absent or stale.
	Official     *types.OfficialStatusSignal
	Kind         OfficialTextKind
	NearRealTime bool
	// SameDay reports whether target and now fall on the same local date.
	SameDay   bool
	Target    time.Time
	SnowDepth float64
}

// Classification is the discrete status and the flags that explain it.
type Classification struct {
	Status               types.OperationStatus
	Probability          int
	IsCurrentlySuspended bool
	IsPartialSuspension  bool
	PartialText          *string
	IsOfficialOverride   bool
	AllDay               bool
	PostResumption       bool
	// Reason is the official explanation to show first, if any.
	Reason string
}

// Classifier maps probabilities and official context onto a status.
type Classifier struct {
	tun Tunables
}

// NewClassifier returns a classifier over the given tunables.
func NewClassifier(tun Tunables) *Classifier {
	return &Classifier{tun: tun}
}

// Classify applies official overrides, then the probability bands.
func (c *Classifier) Classify(in ClassifyInput) Classification {
	out := Classification{Probability: clamp(in.Probability, 0, 100)}
	off := in.Official
	bs := c.tun.BaseState

	if off != nil && (in.NearRealTime || in.SameDay) {
		switch in.Kind {
		case TextPartial:
			out.Probability = clamp(out.Probability, bs.PartialFloor, bs.PartialMax)
			out.Status = types.StatusPartial
			out.IsPartialSuspension = true
			out.PartialText = types.Ptr(off.Text())
			out.Reason = "Official: some trains are cancelled or delayed"
			return out

		case TextAllDay:
			// A near-real-time target may fall on the next local date.
			out.Probability = 100
			out.Status = types.StatusSuspended
			out.IsCurrentlySuspended = in.NearRealTime
			out.IsOfficialOverride = true
			out.AllDay = true
			out.Reason = "Official announcement: " + off.Text()
			return out

		case TextSuspended:
			// A suspension in force now wins over any announced resumption
			// time, including one that has already passed.
			if in.NearRealTime {
				out.Probability = 100
				out.Status = types.StatusSuspended
				out.IsCurrentlySuspended = true
				out.IsOfficialOverride = true
				out.Reason = "Official: service is currently suspended"
				if off.ResumptionTime != nil {
					out.Reason = fmt.Sprintf("Official: service is currently suspended, resumption expected around %s",
						off.ResumptionTime.In(c.tun.Location).Format("15:04"))
				}
				return out
			}
			if off.ResumptionTime != nil {
				return c.afterResumption(in, out)
			}

		default:
			if off.Status == types.OfficialDelay && in.NearRealTime {
				out.Probability = clamp(out.Probability, bs.DelayFloor, bs.DelayMax)
				out.Status = atLeast(c.Band(out.Probability), types.StatusDelayed)
				out.Reason = "Official: trains are running late"
				return out
			}
		}
	}

	out.Status = c.Band(out.Probability)
	return out
}

// afterResumption handles a later target against a suspension with an
// announced resumption time.
func (c *Classifier) afterResumption(in ClassifyInput, out Classification) Classification {
	bs := c.tun.BaseState
	res := *in.Official.ResumptionTime
	local := res.In(c.tun.Location).Format("15:04")

	if in.Target.Before(res) {
		out.Probability = 100
		out.Status = types.StatusSuspended
		out.IsOfficialOverride = true
		out.Reason = fmt.Sprintf("Official: service suspended, resumption expected around %s", local)
		return out
	}

	chaos := bs.ChaosWindow
	if in.SnowDepth >= bs.DeepSnowDepth {
		chaos = bs.DeepSnowChaos
	}
	if !in.Target.After(res.Add(chaos)) {
		out.Probability = max(out.Probability, bs.ChaosFloor)
		out.Status = atLeast(c.Band(out.Probability), types.StatusDelayed)
		out.PostResumption = true
		out.Reason = fmt.Sprintf("Official: service resumes around %s; heavy disruption expected for %.0fh after", local, chaos.Hours())
		return out
	}

	out.Probability = max(out.Probability, bs.AfterChaosFloor)
	out.Status = c.Band(out.Probability)
	out.Reason = fmt.Sprintf("Official: service resumed around %s; residual delays possible", local)
	return out
}

// Band maps a probability onto the configured status bands.
func (c *Classifier) Band(p int) types.OperationStatus {
	b := c.tun.Bands
	switch {
	case p >= b.Suspended:
		return types.StatusSuspended
	case p >= b.Delayed:
		return types.StatusDelayed
	case p >= b.Caution:
		return types.StatusCaution
	default:
		return types.StatusNormal
	}
}

// CapInput is the context for the probability ceiling.
type CapInput struct {
	Official       *types.OfficialStatusSignal
	Kind           OfficialTextKind
	NearRealTime   bool
	Gust           float64
	Snowfall       float64
	Consensus      types.CrowdConsensus
	ConsensusCount int
}

// MaxProbability returns the ceiling for the weather-derived probability.
// A normal official status only caps near-real-time targets; it says nothing
// about tomorrow's storm.
func (c *Classifier) MaxProbability(in CapInput) int {
	caps := c.tun.Caps
	limit := caps.NoOfficial
	if in.Official != nil && in.NearRealTime {
		switch {
		case in.Kind == TextPartial:
			limit = caps.Partial
		case in.Kind == TextSuspended || in.Kind == TextAllDay:
			limit = caps.Suspended
		case in.Official.Status == types.OfficialDelay:
			limit = caps.Delay
		case in.Official.Status == types.OfficialNormal:
			limit = caps.OfficialNormal
			if in.Gust >= caps.SevereGust || in.Snowfall >= caps.SevereSnowfall {
				limit = caps.OfficialNormalSevere
			}
		}
	}
	if in.NearRealTime && in.Consensus == types.ConsensusStopped && in.ConsensusCount >= caps.UserConsensusReports {
		limit = max(limit, caps.UserConsensus)
	}
	return limit
}

// Impact grades the probability for display.
func Impact(p int) types.WeatherImpact {
	switch {
	case p >= 60:
		return types.ImpactSevere
	case p >= 30:
		return types.ImpactModerate
	case p >= 10:
		return types.ImpactMinor
	default:
		return types.ImpactNone
	}
}

// Confidence grades the evidence behind a result.
func Confidence(p, factors int, realTime bool) types.ConfidenceLevel {
	switch {
	case realTime && factors >= 2, factors >= 3, p >= 60:
		return types.ConfidenceHigh
	case factors >= 1, p >= 30:
		return types.ConfidenceMedium
	default:
		return types.ConfidenceLow
	}
}

func downgrade(c types.ConfidenceLevel) types.ConfidenceLevel {
	switch c {
	case types.ConfidenceHigh:
		return types.ConfidenceMedium
	default:
		return types.ConfidenceLow
	}
}

var severity = map[types.OperationStatus]int{
	types.StatusNormal:    0,
	types.StatusCaution:   1,
	types.StatusDelayed:   2,
	types.StatusPartial:   3,
	types.StatusSuspended: 4,
}

func atLeast(s, floor types.OperationStatus) types.OperationStatus {
	if severity[s] < severity[floor] {
		return floor
	}
	return s
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
