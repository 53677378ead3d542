package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kodascan/whalewatch/internal/domain/model"
)

func TestAggregate_TwoConcordantSellVotes(t *testing.T) {
	votes := []phaseVote{
		{Direction: model.DirectionSell, Weight: 0.65, Confidence: 0.50},
		{Direction: model.DirectionSell, Weight: 0.60, Confidence: 0.45},
	}
	dir, confidence := Aggregate(votes)
	assert.Equal(t, model.DirectionSell, dir)
	assert.InDelta(t, 0.4678, confidence, 0.001)
}

func TestAggregate_SingleVoteEqualsWeightedConfidence(t *testing.T) {
	votes := []phaseVote{{Direction: model.DirectionBuy, Weight: 0.65, Confidence: 0.90}}
	dir, confidence := Aggregate(votes)
	assert.Equal(t, model.DirectionBuy, dir)
	assert.InDelta(t, 0.585, confidence, 0.0001)
}

func TestAggregate_NoVotesReturnsOther(t *testing.T) {
	dir, confidence := Aggregate(nil)
	assert.Equal(t, model.DirectionOther, dir)
	assert.Equal(t, 0.0, confidence)
}

func TestAggregate_MonotonicityProperty(t *testing.T) {
	// Adding a concordant phase with (w, c>0) never decreases
	// the aggregated confidence for that direction.
	base := []phaseVote{{Direction: model.DirectionBuy, Weight: 0.5, Confidence: 0.4}}
	_, before := Aggregate(base)

	withExtra := append(base, phaseVote{Direction: model.DirectionBuy, Weight: 0.3, Confidence: 0.2})
	_, after := Aggregate(withExtra)

	assert.GreaterOrEqual(t, after, before)
}

func TestAggregate_ArgmaxAcrossDirections(t *testing.T) {
	votes := []phaseVote{
		{Direction: model.DirectionBuy, Weight: 0.65, Confidence: 0.90},
		{Direction: model.DirectionSell, Weight: 0.60, Confidence: 0.50},
	}
	dir, confidence := Aggregate(votes)
	assert.Equal(t, model.DirectionBuy, dir)
	assert.Greater(t, confidence, 0.5)
}

func TestAggregate_BonusCapsAtThreeConcordantVotes(t *testing.T) {
	votes := []phaseVote{
		{Direction: model.DirectionBuy, Weight: 0.5, Confidence: 0.5},
		{Direction: model.DirectionBuy, Weight: 0.5, Confidence: 0.5},
		{Direction: model.DirectionBuy, Weight: 0.5, Confidence: 0.5},
		{Direction: model.DirectionBuy, Weight: 0.5, Confidence: 0.5},
		{Direction: model.DirectionBuy, Weight: 0.5, Confidence: 0.5},
	}
	_, confidence := Aggregate(votes)
	assert.LessOrEqual(t, confidence, 1.0)
	assert.GreaterOrEqual(t, confidence, 0.0)
}
