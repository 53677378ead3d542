package classify

import (
	"context"
	"log/slog"
	"time"

	"github.com/kodascan/whalewatch/internal/config"
	"github.com/kodascan/whalewatch/internal/domain/model"
	"github.com/kodascan/whalewatch/internal/metrics"
	"github.com/kodascan/whalewatch/internal/tracing"
)

// comparableConfidenceEpsilon is how close two opposing-direction votes'
// confidences must be to count as "comparable" for the conflict-
// resolution edge case below.
const comparableConfidenceEpsilon = 0.05

// Engine runs the ordered phase pipeline and aggregates the result into
// a final model.Classification. An event moves through:
// Received -> Enriched -> PhaseRun*(abstain|result) -> Aggregated ->
// (ShouldSkip? DROP) -> Perspectivized -> Dedupped -> Stored|Suppressed.
type Engine struct {
	p1           Phase
	p2           Phase
	p3           *P3Blockchain
	p4           *p4Wallet
	p5           *p5MegaWhale
	cfg          config.ClassificationConfig
	phaseTimeout time.Duration
	logger       *slog.Logger
	nowFn        func() time.Time
}

// ClassifyOutcome is the engine's top-level result for one enriched transfer.
type ClassifyOutcome struct {
	Classification model.Classification
	WhaleAddress   string
	Skip           bool
}

func NewEngine(p3Client ReceiptClient, history WhaleHistory, megaWhale MegaWhaleSource, cfg config.ClassificationConfig, phaseTimeout time.Duration, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if phaseTimeout <= 0 {
		phaseTimeout = 8 * time.Second
	}
	p5, _ := NewP5MegaWhale(megaWhale, logger).(*p5MegaWhale)
	p4, _ := NewP4Wallet(history).(*p4Wallet)
	if cfg.DEXCoverageMode {
		logger.Warn("DEX coverage mode is not implemented; the DEX phase abstains unless a swap event is decoded")
	}
	return &Engine{
		p1:           NewP1CEX(),
		p2:           NewP2DEX(),
		p3:           NewP3Blockchain(p3Client, logger),
		p4:           p4,
		p5:           p5,
		cfg:          cfg,
		phaseTimeout: phaseTimeout,
		logger:       logger.With("component", "classify.engine"),
		nowFn:        time.Now,
	}
}

// Classify runs every phase over transfer and returns the aggregated
// outcome. It never returns an error: a phase that cannot complete
// abstains, and the engine proceeds with whatever the remaining phases
// produced.
func (e *Engine) Classify(ctx context.Context, transfer model.EnrichedTransfer) ClassifyOutcome {
	ctx, span := tracing.Tracer("classify").Start(ctx, "classify.Classify")
	defer span.End()

	now := e.nowFn()
	if !transfer.BlockTime.IsZero() {
		now = transfer.BlockTime
	}

	facts := e.p3.DecodeFacts(ctx, transfer.Chain, transfer.TxHash)
	in := Input{Transfer: transfer, Facts: facts, Now: now, Cfg: e.cfg}

	chain := string(transfer.Chain)

	r1 := e.runPhase(ctx, e.p1, in)
	switch r1.Outcome {
	case Skip:
		metrics.ClassificationSkipped.WithLabelValues(chain).Inc()
		return ClassifyOutcome{Skip: true}
	case Override:
		return e.finalizeOverride(transfer, r1)
	case Vote:
		if r1.Confidence >= e.cfg.CEXEarlyExit {
			metrics.ClassificationEarlyExits.WithLabelValues(chain, "p1_cex").Inc()
			return e.finalizeDirect(transfer, in, r1.Direction, r1.Confidence, []string{r1.Evidence})
		}
	}

	r2 := e.runPhase(ctx, e.p2, in)
	switch r2.Outcome {
	case Override:
		return e.finalizeOverride(transfer, r2)
	case Vote:
		if r2.Confidence >= e.cfg.DEXEarlyExit {
			metrics.ClassificationEarlyExits.WithLabelValues(chain, "p2_dex").Inc()
			return e.finalizeDirect(transfer, in, r2.Direction, r2.Confidence, []string{r2.Evidence})
		}
	}

	dir, confidence, evidence := e.resolveVotes(r1, r2, facts)
	if dir == model.DirectionOther {
		return e.finalizeFallbackTransfer(transfer, evidence)
	}

	// Aggregate-level early exit: a stacked confidence that already
	// clears the threshold skips the remaining optional signal (the
	// remote mega-whale lookup) entirely.
	if confidence >= e.cfg.EarlyExitConfidence {
		metrics.ClassificationEarlyExits.WithLabelValues(chain, "aggregate").Inc()
		return e.finalizeDirect(transfer, in, dir, confidence, evidence)
	}

	if e.p5 != nil {
		if r5 := e.p5.Vote(ctx, whaleAddressFor(transfer, dir), dir); r5.Outcome == Vote {
			// confidence already reflects P1+P2's combined weighting; fold
			// in P5's own weighted vote as one more concordant signal.
			votes := []phaseVote{
				{Direction: dir, Weight: 1.0, Confidence: confidence},
				{Direction: dir, Weight: e.p5.Weight(e.cfg), Confidence: r5.Confidence},
			}
			_, confidence = Aggregate(votes)
			evidence = append(evidence, r5.Evidence)
		}
	}

	return e.finalizeDirect(transfer, in, dir, confidence, evidence)
}

func (e *Engine) runPhase(ctx context.Context, p Phase, in Input) Result {
	phaseCtx, cancel := context.WithTimeout(ctx, e.phaseTimeout)
	defer cancel()

	chain := string(in.Transfer.Chain)
	start := e.nowFn()
	result := p.Run(phaseCtx, in)
	metrics.ClassificationPhaseLatency.WithLabelValues(chain, p.Name()).Observe(time.Since(start).Seconds())
	if phaseCtx.Err() != nil {
		metrics.ClassificationPhaseTimeouts.WithLabelValues(chain, p.Name()).Inc()
		return abstain()
	}
	if result.Outcome == Abstain {
		metrics.ClassificationPhaseAbstains.WithLabelValues(chain, p.Name()).Inc()
	}
	return result
}

// resolveVotes combines P1 and P2's votes. Edge case:
// "Conflicting CEX and DEX phases at comparable confidence -> prefer P3
// blockchain evidence when available; otherwise fall back to TRANSFER."
func (e *Engine) resolveVotes(r1, r2 Result, facts SwapFacts) (model.Direction, float64, []string) {
	var votes []phaseVote
	var evidence []string

	if r1.Outcome == Vote {
		votes = append(votes, phaseVote{Direction: r1.Direction, Weight: e.p1.Weight(e.cfg), Confidence: r1.Confidence})
		evidence = append(evidence, r1.Evidence)
	}
	if r2.Outcome == Vote {
		votes = append(votes, phaseVote{Direction: r2.Direction, Weight: e.p2.Weight(e.cfg), Confidence: r2.Confidence})
		evidence = append(evidence, r2.Evidence)
	}

	if r1.Outcome == Vote && r2.Outcome == Vote && r1.Direction != r2.Direction {
		if closeEnough(r1.Confidence, r2.Confidence) {
			if facts.Available {
				return r2.Direction, r2.Confidence, []string{r2.Evidence, "preferred decoded blockchain evidence over conflicting CEX signal"}
			}
			return model.DirectionOther, 0, []string{"conflicting CEX/DEX signals with no decoded blockchain evidence"}
		}
	}

	if len(votes) == 0 {
		return model.DirectionOther, 0, nil
	}

	dir, confidence := Aggregate(votes)
	return dir, confidence, evidence
}

func closeEnough(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= comparableConfidenceEpsilon
}

func (e *Engine) finalizeOverride(transfer model.EnrichedTransfer, r Result) ClassifyOutcome {
	c := model.NewClassification(r.Kind, 1.0)
	c = c.WithEvidence(r.Evidence)
	for _, tag := range r.Tags {
		c = c.WithTag(tag)
	}
	c = applyRiskTags(c, transfer)
	return ClassifyOutcome{Classification: c, WhaleAddress: whaleAddressFor(transfer, model.DirectionOther)}
}

func (e *Engine) finalizeFallbackTransfer(transfer model.EnrichedTransfer, evidence []string) ClassifyOutcome {
	c := model.NewClassification(model.KindTransfer, 0)
	for _, line := range evidence {
		c = c.WithEvidence(line)
	}
	c = applyRiskTags(c, transfer)
	return ClassifyOutcome{Classification: c, WhaleAddress: whaleAddressFor(transfer, model.DirectionOther)}
}

func (e *Engine) finalizeDirect(transfer model.EnrichedTransfer, in Input, dir model.Direction, confidence float64, evidence []string) ClassifyOutcome {
	whaleAddr := whaleAddressFor(transfer, dir)

	if e.p4 != nil {
		boost, boostEvidence := e.p4.Boost(whaleAddr, in)
		confidence += boost
		evidence = append(evidence, boostEvidence...)
	}
	if confidence > 1 {
		confidence = 1
	}

	kind := model.KindForConfidence(dir, confidence, e.cfg.HighConfidence, e.cfg.MediumConfidence)
	c := model.NewClassification(kind, confidence)
	for _, line := range evidence {
		c = c.WithEvidence(line)
	}
	c = applyRiskTags(c, transfer)

	metrics.ClassificationResultsTotal.WithLabelValues(string(transfer.Chain), string(kind)).Inc()
	return ClassifyOutcome{Classification: c, WhaleAddress: whaleAddr}
}

func applyRiskTags(c model.Classification, transfer model.EnrichedTransfer) model.Classification {
	if transfer.TokenRisk != "" {
		c = c.WithTag(transfer.TokenRisk)
	}
	if transfer.PriceMissing {
		c = c.WithTag("price_missing")
	}
	return c
}

// whaleAddressFor picks the whale-side address for boost/lookup purposes
// ahead of the full perspective transform: BUY means the acquirer
// (to_addr) is the whale; SELL/other defaults to from_addr, matching the
// same precedence the whale-perspective table encodes.
func whaleAddressFor(transfer model.EnrichedTransfer, dir model.Direction) string {
	if dir == model.DirectionBuy {
		return transfer.ToAddr
	}
	return transfer.FromAddr
}
