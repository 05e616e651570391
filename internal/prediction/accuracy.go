package prediction

import (
	"math"

	"railrisk/internal/types"
)

// AccuracyScore grades a stored probability against the recorded outcome,
// 0 (badly wrong) to 100 (spot on). Delays are best predicted in the middle
// band; suspensions and normal days reward confident calls.
func AccuracyScore(probability int, outcome types.OfficialStatus) int {
	p := float64(probability)
	var score float64

	switch outcome.Normalize() {
	case types.OfficialSuspended, types.OfficialPartial:
		switch {
		case p >= 50:
			score = 100
		case p >= 30:
			score = 70 + (p-30)*1.5
		default:
			score = 20
		}
	case types.OfficialNormal:
		switch {
		case p <= 20:
			score = 100
		case p <= 50:
			score = 100 - (p-20)*2
		default:
			score = 10
		}
	case types.OfficialDelay:
		switch {
		case p >= 30 && p <= 70:
			score = 100
		case p < 30:
			score = 50 + p
		default:
			score = 80
		}
	default:
		score = 50
	}
	return clamp(int(math.Round(score)), 0, 100)
}
