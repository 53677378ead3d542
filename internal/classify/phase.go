// Package classify runs an ordered pipeline of phases, each
// producing a discriminated result, combined by a master aggregator into
// a final Classification.
package classify

import (
	"context"
	"time"

	"github.com/kodascan/whalewatch/internal/config"
	"github.com/kodascan/whalewatch/internal/domain/model"
)

// Outcome discriminates what a phase decided. There is deliberately no
// "error" outcome that propagates — a phase that cannot complete reports
// Abstain instead; the aggregator never raises.
type Outcome int

const (
	// Abstain means the phase had nothing to contribute.
	Abstain Outcome = iota
	// Vote means the phase casts a directional confidence vote that the
	// aggregator stacks against votes from other phases.
	Vote
	// Override means the phase determined the final classification kind
	// directly (e.g. LIQUIDITY, STAKING), bypassing aggregation.
	Override
	// Skip means the event must be dropped entirely (CEX-internal move).
	Skip
)

// Result is one phase's contribution to classification.
type Result struct {
	Outcome    Outcome
	Direction  model.Direction          // meaningful when Outcome == Vote
	Confidence float64                  // the phase's own confidence c_p
	Kind       model.ClassificationKind // meaningful when Outcome == Override
	Evidence   string
	Tags       []string
}

func abstain() Result { return Result{Outcome: Abstain} }

// WhaleHistory is the subset of whale-registry state P4/P5 consult.
// Classify depends on this narrow interface rather than the registry
// package directly, so engine construction never creates an import
// cycle between the classifier and the registry.
type WhaleHistory interface {
	Lookup(address string) (model.WhaleStats, bool)
}

// MegaWhaleSource is the opt-in analytical backend signal consumed by
// the mega-whale phase. The real client lives outside this module.
type MegaWhaleSource interface {
	IsMegaWhale(ctx context.Context, address string) (bool, error)
}

// Input bundles everything a phase needs to evaluate one enriched
// transfer, including the blockchain-specific facts P3 decodes for P2.
type Input struct {
	Transfer model.EnrichedTransfer
	Facts    SwapFacts
	Now      time.Time
	Cfg      config.ClassificationConfig
}

// Phase is one stage of the classification pipeline.
type Phase interface {
	Name() string
	Weight(cfg config.ClassificationConfig) float64
	Run(ctx context.Context, in Input) Result
}
