package classify

import (
	"context"
	"fmt"

	"github.com/kodascan/whalewatch/internal/config"
	"github.com/kodascan/whalewatch/internal/domain/model"
)

// p1CEX is the first classification phase: it matches from/to against the known
// CEX hot-wallet set already resolved onto the enriched transfer's
// labels by the label provider.
type p1CEX struct{}

func NewP1CEX() Phase { return p1CEX{} }

func (p1CEX) Name() string { return "p1_cex" }

func (p1CEX) Weight(cfg config.ClassificationConfig) float64 { return cfg.WeightCEX }

const cexBaseConfidence = 0.90

func (p1CEX) Run(ctx context.Context, in Input) Result {
	from, to := in.Transfer.FromLabel, in.Transfer.ToLabel

	if from.IsCEX() && to.IsCEX() {
		if from.SameEntity(to) {
			return Result{Outcome: Skip, Evidence: fmt.Sprintf("CEX-internal move within %s", from.EntityName)}
		}
		return Result{
			Outcome:  Override,
			Kind:     model.KindTransfer,
			Evidence: fmt.Sprintf("internal transfer between %s and %s", from.EntityName, to.EntityName),
		}
	}

	if to.IsCEX() && isEOAOrUnknown(from) {
		return Result{
			Outcome:    Vote,
			Direction:  model.DirectionSell,
			Confidence: cexBaseConfidence,
			Evidence:   fmt.Sprintf("CEX deposit to %s", to.EntityName),
		}
	}

	if from.IsCEX() && isEOAOrUnknown(to) {
		return Result{
			Outcome:    Vote,
			Direction:  model.DirectionBuy,
			Confidence: cexBaseConfidence,
			Evidence:   fmt.Sprintf("CEX withdrawal from %s", from.EntityName),
		}
	}

	return abstain()
}

func isEOAOrUnknown(label model.AddressLabel) bool {
	return label.Kind == model.EntityEOA || label.Kind == model.EntityUnknown
}
