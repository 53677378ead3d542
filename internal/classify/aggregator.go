package classify

import (
	"github.com/kodascan/whalewatch/internal/domain/model"
)

// phaseVote is one phase's directional contribution, already resolved to
// its own weight.
type phaseVote struct {
	Direction  model.Direction
	Weight     float64
	Confidence float64
}

// maxMultiSignalBonus caps the multi-vote bonus ((n-1)*0.08 for n
// votes, capped at 0.32).
const maxMultiSignalBonus = 0.32

// Aggregate implements the master confidence-stacking rule:
//
//	C_dir = 1 - Prod_{p : kind_p votes dir} (1 - w_p * c_p) * (1 + bonus)
//	bonus = (n - 1) * 0.08, n >= 2 votes, capped at 0.32
//
// It returns the winning direction and its stacked confidence. With no
// votes at all, it returns (DirectionOther, 0).
func Aggregate(votes []phaseVote) (model.Direction, float64) {
	byDirection := map[model.Direction][]phaseVote{}
	for _, v := range votes {
		byDirection[v.Direction] = append(byDirection[v.Direction], v)
	}

	var bestDir model.Direction = model.DirectionOther
	var bestConfidence float64

	for dir, group := range byDirection {
		if dir == model.DirectionOther {
			continue
		}
		confidence := stackedConfidence(group)
		if confidence > bestConfidence {
			bestConfidence = confidence
			bestDir = dir
		}
	}

	return bestDir, bestConfidence
}

func stackedConfidence(group []phaseVote) float64 {
	if len(group) == 0 {
		return 0
	}
	product := 1.0
	for _, v := range group {
		product *= 1 - v.Weight*v.Confidence
	}

	bonus := 0.0
	if n := len(group); n >= 2 {
		bonus = float64(n-1) * 0.08
		if bonus > maxMultiSignalBonus {
			bonus = maxMultiSignalBonus
		}
	}

	confidence := 1 - product*(1+bonus)
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}
