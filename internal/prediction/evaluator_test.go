package prediction

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"railrisk/internal/types"
)

func mustProfile(t *testing.T, id string) types.RouteVulnerabilityProfile {
	t.Helper()
	p, ok := LookupProfile(id)
	require.True(t, ok, "profile %q", id)
	return p
}

func findReason(rs []types.RiskReason, prefix string) (types.RiskReason, bool) {
	for _, r := range rs {
		if strings.HasPrefix(r.Text, prefix) {
			return r, true
		}
	}
	return types.RiskReason{}, false
}

func TestEvaluator_MonotonicInWindAndSnow(t *testing.T) {
	tun := DefaultTunables()
	e := NewEvaluator(tun)
	target := time.Date(2026, 1, 14, 14, 0, 0, 0, jst)

	for _, id := range []string{"hakodate-main", "chitose", "soya", "senmo"} {
		profile := mustProfile(t, id)
		score := func(wind, snow float64, gust *float64) float64 {
			w := types.WeatherObservation{Time: target, WindSpeed: wind, Snowfall: snow, WindGust: gust}
			return e.Evaluate(EvalInput{
				Profile:   profile,
				Weather:   &w,
				Precedent: MatchPrecedent(w, target.In(tun.Location), tun),
				Target:    target,
				Now:       target,
			}).Score
		}

		for _, gust := range []*float64{nil, types.Ptr(30.0)} {
			prev := -1.0
			for wind := 0.0; wind <= 40; wind += 0.5 {
				s := score(wind, 2, gust)
				require.GreaterOrEqual(t, s, prev, "%s: wind %.1f", id, wind)
				prev = s
			}
		}

		prev := -1.0
		for snow := 0.0; snow <= 15; snow += 0.25 {
			s := score(10, snow, nil)
			require.GreaterOrEqual(t, s, prev, "%s: snow %.2f", id, snow)
			prev = s
		}
	}
}

func TestEvaluator_ReasonsOrderedBySeverity(t *testing.T) {
	target := time.Date(2026, 1, 15, 14, 0, 0, 0, jst)
	w := types.WeatherObservation{Time: target, WindSpeed: 30, WindGust: types.Ptr(45.0), Snowfall: 8}

	res := NewEvaluator(DefaultTunables()).Evaluate(EvalInput{
		Profile: mustProfile(t, "hakodate-main"),
		Weather: &w,
		Target:  target,
		Now:     target,
	})

	require.NotEmpty(t, res.Reasons)
	for i := 1; i < len(res.Reasons); i++ {
		a, b := res.Reasons[i-1], res.Reasons[i]
		require.True(t, a.Priority < b.Priority || (a.Priority == b.Priority && a.Weight >= b.Weight),
			"reason %d (%s) out of order", i, b.Text)
	}
	assert.Contains(t, res.Reasons[0].Text, "Wind 30.0")
}

func TestEvaluator_CriticalFactorsMultiply(t *testing.T) {
	target := time.Date(2026, 7, 15, 14, 0, 0, 0, jst)
	w := types.WeatherObservation{
		Time:      target,
		WindSpeed: 25,
		Warnings:  []types.WeatherWarning{{Kind: types.WarningStorm}},
	}

	res := NewEvaluator(DefaultTunables()).Evaluate(EvalInput{
		Profile: mustProfile(t, "hakodate-main"),
		Weather: &w,
		Target:  target,
		Now:     target,
	})

	storm, ok := findReason(res.Reasons, "Storm warning")
	require.True(t, ok)
	assert.Equal(t, 100.0, storm.Weight, "wind at storm speed upgrades the warning")
	wind, ok := findReason(res.Reasons, "Wind 25.0")
	require.True(t, ok)
	assert.Equal(t, 65.0, wind.Weight)
	assert.InDelta(t, (100+65)*1.5, res.Score, 1e-9)
}

func TestEvaluator_SafeWindDirection(t *testing.T) {
	target := time.Date(2026, 7, 15, 14, 0, 0, 0, jst)
	profile := mustProfile(t, "chitose")
	weight := func(dir float64) float64 {
		w := types.WeatherObservation{Time: target, WindSpeed: 20, WindDirection: types.Ptr(dir)}
		res := NewEvaluator(DefaultTunables()).Evaluate(EvalInput{Profile: profile, Weather: &w, Target: target, Now: target})
		r, ok := findReason(res.Reasons, "Wind 20.0")
		require.True(t, ok)
		return r.Weight
	}

	assert.Equal(t, 90.0, weight(180))
	assert.Equal(t, 27.0, weight(355))
	assert.Equal(t, 27.0, weight(5))
}

func TestEvaluator_OfficialOnlyNearRealTime(t *testing.T) {
	target := time.Date(2026, 7, 15, 14, 0, 0, 0, jst)
	w := calm(target)
	updated := target.Add(-10 * time.Minute)
	in := EvalInput{
		Profile:  mustProfile(t, "hakodate-main"),
		Weather:  &w,
		Official: &types.OfficialStatusSignal{Status: types.OfficialDelay, UpdatedAt: &updated},
		Target:   target,
		Now:      target,
	}
	e := NewEvaluator(DefaultTunables())

	res := e.Evaluate(in)
	_, ok := findReason(res.Reasons, "Official:")
	assert.False(t, ok)

	in.NearRealTime = true
	res = e.Evaluate(in)
	r, ok := findReason(res.Reasons, "Official:")
	require.True(t, ok)
	assert.Equal(t, 0, r.Priority)
	assert.Equal(t, 14.0, r.Weight, "15 discounted to 0.9 for a 10 minute old signal")
	assert.True(t, res.HasRealTimeData)
}

func TestEvaluator_WinterBaseline(t *testing.T) {
	target := time.Date(2026, 1, 15, 14, 0, 0, 0, jst)
	w := calm(target)

	res := NewEvaluator(DefaultTunables()).Evaluate(EvalInput{
		Profile: mustProfile(t, "hakodate-main"),
		Weather: &w,
		Target:  target,
		Now:     target,
	})

	assert.Equal(t, 6.0, res.Score)
	require.Len(t, res.Reasons, 1)
	assert.Equal(t, 11, res.Reasons[0].Priority)
	assert.False(t, res.HasRealTimeData)
}

func TestEvaluator_TrendFactors(t *testing.T) {
	target := time.Date(2026, 7, 15, 14, 0, 0, 0, jst)
	w := types.WeatherObservation{
		Time:      target,
		Pressure:  types.Ptr(1000.0),
		SnowDepth: types.Ptr(20.0),
		SurroundingHours: []types.WeatherObservation{
			{Time: target.Add(-3 * time.Hour), Pressure: types.Ptr(1006.0)},
			{Time: target.Add(-time.Hour), SnowDepth: types.Ptr(15.0)},
		},
	}

	res := NewEvaluator(DefaultTunables()).Evaluate(EvalInput{
		Profile: mustProfile(t, "hakodate-main"),
		Weather: &w,
		Target:  target,
		Now:     target,
	})

	p, ok := findReason(res.Reasons, "Pressure fell 6.0 hPa in 3h")
	require.True(t, ok)
	assert.Equal(t, 14.0, p.Weight)
	s, ok := findReason(res.Reasons, "Snow depth rising 5 cm/h")
	require.True(t, ok)
	assert.Equal(t, 25.0, s.Weight)
}

func TestEvaluator_DeerSeason(t *testing.T) {
	profile := mustProfile(t, "gakuentoshi")
	e := NewEvaluator(DefaultTunables())
	tests := []struct {
		name   string
		target time.Time
		want   bool
	}{
		{"november evening", time.Date(2026, 11, 5, 18, 0, 0, 0, jst), true},
		{"january early morning", time.Date(2026, 1, 5, 5, 0, 0, 0, jst), true},
		{"november midday", time.Date(2026, 11, 5, 12, 0, 0, 0, jst), false},
		{"june evening", time.Date(2026, 6, 5, 18, 0, 0, 0, jst), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := calm(tt.target)
			res := e.Evaluate(EvalInput{Profile: profile, Weather: &w, Target: tt.target, Now: tt.target})
			_, ok := findReason(res.Reasons, "Deer collision")
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestRecencyWeight(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time { return types.Ptr(now.Add(-d)) }

	assert.Equal(t, 0.5, RecencyWeight(nil, now))
	assert.Equal(t, 1.0, RecencyWeight(at(5*time.Minute), now))
	assert.Equal(t, 0.9, RecencyWeight(at(15*time.Minute), now))
	assert.Equal(t, 0.75, RecencyWeight(at(30*time.Minute), now))
	assert.Equal(t, 0.5, RecencyWeight(at(time.Hour), now))
	assert.Equal(t, 0.3, RecencyWeight(at(2*time.Hour), now))
}
