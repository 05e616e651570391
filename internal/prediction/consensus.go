package prediction

import "railrisk/internal/types"

// Consensus returns the majority view of recent rider reports. Fewer than
// minReports reports yield ConsensusUnknown.
func Consensus(c types.CrowdsourcedAggregate, minReports int) types.CrowdConsensus {
	total := c.Total()
	if total == 0 || total < minReports {
		return types.ConsensusUnknown
	}
	share := func(n int) float64 { return float64(n) / float64(total) }
	switch {
	case share(c.Stopped) >= 0.5:
		return types.ConsensusStopped
	case share(c.Delayed+c.Stopped) >= 0.5:
		return types.ConsensusDelayed
	case share(c.Resumed+c.Crowded) >= 0.6:
		return types.ConsensusNormal
	default:
		return types.ConsensusUnknown
	}
}

func crowdStats(c *types.CrowdsourcedAggregate) *types.CrowdStats {
	if c == nil {
		return nil
	}
	return &types.CrowdStats{
		ReportCount: c.Total(),
		Stopped:     c.Stopped,
		Delayed:     c.Delayed,
		Crowded:     c.Crowded,
		Resumed:     c.Resumed,
	}
}
