package classify

import (
	"context"
	"time"

	"github.com/kodascan/whalewatch/internal/config"
	"github.com/kodascan/whalewatch/internal/domain/model"
)

// p4Wallet contributes behavioral boosts from gas
// urgency, wallet history, and USD value. It never votes a direction of
// its own — it only contributes a confidence boost applied to the
// aggregator's winning direction — so Run always abstains; Boost is what
// the engine actually calls.
type p4Wallet struct {
	history WhaleHistory
}

func NewP4Wallet(history WhaleHistory) Phase {
	return &p4Wallet{history: history}
}

func (p *p4Wallet) Name() string { return "p4_wallet" }

func (p *p4Wallet) Weight(cfg config.ClassificationConfig) float64 { return cfg.WeightWallet }

func (p *p4Wallet) Run(ctx context.Context, in Input) Result { return abstain() }

// Boost computes the additive confidence boost and its evidence lines
// for in. whaleAddress is the address
// the boost is evaluated from the whale's perspective (the eventual
// whale-perspective address, not necessarily from_addr).
func (p *p4Wallet) Boost(whaleAddress string, in Input) (float64, []string) {
	var boost float64
	var evidence []string

	if in.Transfer.USDValue >= 100_000 {
		boost += 0.15
		evidence = append(evidence, "usd_value >= $100k")
	}

	// A known market-making desk on the sending side is firm flow, the
	// strongest behavioral signal this phase recognizes.
	if in.Transfer.FromLabel.Kind == model.EntityMarketMaker {
		boost += 0.20
		name := in.Transfer.FromLabel.EntityName
		if name == "" {
			name = "unknown desk"
		}
		evidence = append(evidence, "market maker activity: "+name)
	}

	if in.Transfer.GasPrice != nil {
		switch {
		case *in.Transfer.GasPrice >= 100:
			boost += 0.10
			evidence = append(evidence, "gas price >= 100 gwei")
		case *in.Transfer.GasPrice >= 50:
			boost += 0.05
			evidence = append(evidence, "gas price >= 50 gwei")
		}
	}

	if p.history != nil {
		if stats, ok := p.history.Lookup(whaleAddress); ok {
			if stats.IsProven {
				boost += 0.15
				evidence = append(evidence, "proven whale")
			} else if stats.IsActive(in.Now) {
				boost += 0.08
				evidence = append(evidence, "active whale (>=10 trades, <30d)")
			}
		}
	}

	if isPeakHour(in.Now) {
		boost += 0.04
		evidence = append(evidence, "peak-hour trading (UTC 13-21)")
	}

	return boost, evidence
}

// isPeakHour reports whether t falls within UTC 13:00-21:00 inclusive,
// the window whale desks trade most actively.
func isPeakHour(t time.Time) bool {
	hour := t.UTC().Hour()
	return hour >= 13 && hour <= 21
}
