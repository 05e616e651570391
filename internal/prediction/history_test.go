package prediction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"railrisk/internal/types"
)

func signalAt(status types.OfficialStatus, at time.Time) types.OfficialStatusSignal {
	return types.OfficialStatusSignal{Status: status, UpdatedAt: &at}
}

func TestSummarizeHistory_Increasing(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, jst)
	tun := DefaultTunables().History
	day := 24 * time.Hour
	hist := []types.OfficialStatusSignal{
		signalAt(types.OfficialSuspended, now.Add(-1*day)),
		signalAt(types.OfficialSuspended, now.Add(-2*day)),
		signalAt(types.OfficialCancelled, now.Add(-3*day)),
		signalAt(types.OfficialSuspended, now.Add(-4*day)),
		signalAt(types.OfficialNormal, now.Add(-14*day)),
		signalAt(types.OfficialNormal, now.Add(-20*day)),
		signalAt(types.OfficialNormal, now.Add(-25*day)),
		signalAt(types.OfficialNormal, now.Add(-28*day)),
	}

	sum, ok := SummarizeHistory(hist, now, tun)
	require.True(t, ok)
	assert.Equal(t, 50.0, sum.SuspensionRate)
	assert.Equal(t, types.TrendIncreasing, sum.Trend)
	assert.Equal(t, 1.0, sum.AvgPerWeek)
	assert.Equal(t, 8, sum.Total)

	p, reasons := ApplyHistory(40, 85, sum, tun)
	assert.Equal(t, 46, p)
	require.Len(t, reasons, 1)
	assert.Contains(t, reasons[0].Text, "increasing (1.0 per week)")

	capped, _ := ApplyHistory(90, 80, sum, tun)
	assert.Equal(t, 80, capped)
}

func TestSummarizeHistory_Decreasing(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, jst)
	tun := DefaultTunables().History
	day := 24 * time.Hour
	hist := []types.OfficialStatusSignal{
		signalAt(types.OfficialSuspended, now.Add(-21*day)),
		signalAt(types.OfficialSuspended, now.Add(-22*day)),
		signalAt(types.OfficialSuspended, now.Add(-23*day)),
		signalAt(types.OfficialSuspended, now.Add(-28*day)),
		signalAt(types.OfficialNormal, now.Add(-1*day)),
		signalAt(types.OfficialNormal, now.Add(-1*day)),
		signalAt(types.OfficialNormal, now.Add(-2*day)),
		signalAt(types.OfficialNormal, now.Add(-2*day)),
	}

	sum, ok := SummarizeHistory(hist, now, tun)
	require.True(t, ok)
	assert.Equal(t, types.TrendDecreasing, sum.Trend)

	p, reasons := ApplyHistory(40, 85, sum, tun)
	assert.Equal(t, 41, p)
	assert.Empty(t, reasons)
}

func TestSummarizeHistory_ShortWindowIsStable(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, jst)
	tun := DefaultTunables().History
	day := 24 * time.Hour
	hist := []types.OfficialStatusSignal{
		signalAt(types.OfficialSuspended, now.Add(-1*day)),
		signalAt(types.OfficialSuspended, now.Add(-2*day)),
		signalAt(types.OfficialNormal, now.Add(-2*day)),
		signalAt(types.OfficialNormal, now.Add(-3*day)),
	}

	sum, ok := SummarizeHistory(hist, now, tun)
	require.True(t, ok)
	assert.Equal(t, types.TrendStable, sum.Trend)

	p, reasons := ApplyHistory(20, 85, sum, tun)
	assert.Equal(t, 28, p)
	require.Len(t, reasons, 1)
	assert.Equal(t, "Recent suspension rate 50.0% (4 reports)", reasons[0].Text)
}

func TestSummarizeHistory_Empty(t *testing.T) {
	_, ok := SummarizeHistory(nil, time.Now(), DefaultTunables().History)
	assert.False(t, ok)

	p, reasons := ApplyHistory(33, 85, HistorySummary{}, DefaultTunables().History)
	assert.Equal(t, 33, p)
	assert.Nil(t, reasons)
}
