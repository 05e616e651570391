package prediction

import (
	"fmt"
	"math"
	"time"

	"railrisk/internal/types"
)

// HistorySummary condenses past official signals for one route.
type HistorySummary struct {
	SuspensionRate float64 // percent of signals that were suspensions
	Trend          types.HistoryTrend
	AvgPerWeek     float64
	Total          int
}

// SummarizeHistory computes the suspension rate and its recent trend. The
// trend compares the last TrendWindow against the weekly average before it.
func SummarizeHistory(hist []types.OfficialStatusSignal, now time.Time, t HistoryTunables) (HistorySummary, bool) {
	if len(hist) == 0 {
		return HistorySummary{}, false
	}

	var (
		suspended, recent int
		oldest            = now
	)
	for _, s := range hist {
		isSusp := s.Status.Normalize() == types.OfficialSuspended
		if isSusp {
			suspended++
		}
		if s.UpdatedAt == nil {
			continue
		}
		if s.UpdatedAt.Before(oldest) {
			oldest = *s.UpdatedAt
		}
		if isSusp && now.Sub(*s.UpdatedAt) <= t.TrendWindow {
			recent++
		}
	}

	weeks := math.Max(now.Sub(oldest).Hours()/(24*7), 1)
	sum := HistorySummary{
		SuspensionRate: float64(suspended) / float64(len(hist)) * 100,
		Trend:          types.TrendStable,
		AvgPerWeek:     math.Round(float64(suspended)/weeks*10) / 10,
		Total:          len(hist),
	}

	if weeks > 1 {
		prior := float64(suspended-recent) / math.Max(weeks-1, 1)
		switch {
		case recent >= 2 && float64(recent) > prior*1.5:
			sum.Trend = types.TrendIncreasing
		case float64(recent) < prior*0.5:
			sum.Trend = types.TrendDecreasing
		}
	}
	return sum, true
}

// ApplyHistory blends the probability with the historical suspension rate
// and nudges it by the trend. The result never exceeds limit.
func ApplyHistory(p, limit int, h HistorySummary, t HistoryTunables) (int, []types.RiskReason) {
	if h.SuspensionRate == 0 {
		return p, nil
	}
	adjusted := float64(p)*(1-t.Weight) + h.SuspensionRate*t.Weight

	var reasons []types.RiskReason
	switch h.Trend {
	case types.TrendIncreasing:
		p = min(int(math.Round(adjusted))+t.IncreasingBonus, limit)
		reasons = append(reasons, types.RiskReason{
			Text:     fmt.Sprintf("Suspensions on this route are increasing (%.1f per week)", h.AvgPerWeek),
			Priority: 9,
		})
	case types.TrendDecreasing:
		p = max(int(math.Round(adjusted))-t.DecreasingPenalty, 0)
	default:
		p = int(math.Round(adjusted))
		if h.SuspensionRate > t.DisplayRate {
			reasons = append(reasons, types.RiskReason{
				Text:     fmt.Sprintf("Recent suspension rate %.1f%% (%d reports)", h.SuspensionRate, h.Total),
				Priority: 9,
			})
		}
	}
	return clamp(p, 0, limit), reasons
}
