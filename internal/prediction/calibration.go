package prediction

import (
	"fmt"
	"math"
	"time"

	"railrisk/internal/types"
)

// CalibrationInput compares what the operator reports now with what the
// rules would have predicted for now.
type CalibrationInput struct {
	Probability    int
	Official       types.OfficialStatusSignal
	Kind           OfficialTextKind
	TheoreticalNow int
	// GustNow and SnowfallNow describe the current hour, not the target.
	GustNow     float64
	SnowfallNow float64
	Now         time.Time
	Target      time.Time
}

// CalibrationResult is the corrected probability. Override is set when the
// operator's current state moved the forecast by more than OverrideDelta.
type CalibrationResult struct {
	Probability int
	Adjustment  float64
	Override    bool
	Reason      *types.RiskReason
}

// Calibrate shifts a near-future probability by the gap between the
// operator's actual state and the theoretical risk now, decayed by the hours
// between now and the target. Outside the calibration horizon it is a no-op.
func Calibrate(in CalibrationInput, t CalibrationTunables) CalibrationResult {
	out := CalibrationResult{Probability: in.Probability}
	hours := in.Target.Sub(in.Now).Hours()
	if hours < t.FromHours || hours > t.ToHours {
		return out
	}

	actual := actualRisk(in.Official, in.Kind)
	decayBase := t.Decay
	if actual == 100 {
		decayBase = t.SuspendedDecay
	}
	delta := float64(actual - in.TheoreticalNow)
	out.Adjustment = delta * math.Pow(decayBase, math.Max(0, hours))
	out.Probability = int(math.Floor(math.Min(math.Max(float64(in.Probability)+out.Adjustment, 0), 100)))
	out.Override = math.Abs(out.Adjustment) > t.OverrideDelta

	extreme := in.GustNow >= t.ExtremeGust || in.SnowfallNow >= t.ExtremeSnowfall
	if extreme && out.Adjustment < 0 && out.Probability < t.ExtremeFloor {
		out.Probability = t.ExtremeFloor
	}

	if math.Abs(out.Adjustment) > t.ReasonThreshold {
		text := fmt.Sprintf("Operator reports normal service now; adjusted from the %d%% forecast", in.Probability)
		if out.Adjustment > 0 {
			text = fmt.Sprintf("Operator reports disruption now; raised from the %d%% forecast", in.Probability)
		}
		out.Reason = &types.RiskReason{Text: text, Weight: math.Abs(out.Adjustment), Priority: 0}
	}
	return out
}

func actualRisk(s types.OfficialStatusSignal, kind OfficialTextKind) int {
	switch {
	case kind == TextSuspended || kind == TextAllDay:
		return 100
	case kind == TextPartial || s.Status == types.OfficialDelay:
		return 50
	default:
		return 0
	}
}
