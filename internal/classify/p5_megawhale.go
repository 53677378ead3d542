package classify

import (
	"context"
	"log/slog"

	"github.com/kodascan/whalewatch/internal/config"
	"github.com/kodascan/whalewatch/internal/domain/model"
)

// p5MegaWhale casts an opt-in signal from an
// analytical backend that tags historically significant wallets. It is
// skipped entirely when source is nil (the feature is opt-in) or when
// an early exit already fired on P1/P2 alone.
type p5MegaWhale struct {
	source MegaWhaleSource
	logger *slog.Logger
}

func NewP5MegaWhale(source MegaWhaleSource, logger *slog.Logger) Phase {
	if logger == nil {
		logger = slog.Default()
	}
	return &p5MegaWhale{source: source, logger: logger.With("phase", "p5_megawhale")}
}

func (p *p5MegaWhale) Name() string { return "p5_megawhale" }

func (p *p5MegaWhale) Weight(cfg config.ClassificationConfig) float64 { return cfg.WeightMegaWhale }

// Run requires the engine's leading direction to know which way to cast
// its small pro-direction signal; it is invoked directly by the engine
// with that direction already resolved rather than through the generic
// Phase.Run signature, so Run itself always abstains.
func (p *p5MegaWhale) Run(ctx context.Context, in Input) Result { return abstain() }

// Vote casts P5's pro-direction signal for whaleAddress toward leading,
// the direction the aggregator currently favors from P1-P4 alone.
func (p *p5MegaWhale) Vote(ctx context.Context, whaleAddress string, leading model.Direction) Result {
	if p.source == nil || leading == model.DirectionOther {
		return abstain()
	}
	isMega, err := p.source.IsMegaWhale(ctx, whaleAddress)
	if err != nil {
		p.logger.Debug("mega-whale lookup failed; abstaining", "address", whaleAddress, "error", err)
		return abstain()
	}
	if !isMega {
		return abstain()
	}
	return Result{
		Outcome:    Vote,
		Direction:  leading,
		Confidence: 0.60,
		Evidence:   "historical mega-whale signal",
	}
}
