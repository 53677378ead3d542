package classify

import (
	"context"
	"fmt"

	"github.com/kodascan/whalewatch/internal/config"
	"github.com/kodascan/whalewatch/internal/domain/model"
)

// p2DEX classifies DEX/protocol interactions
// from the swap facts P3 decoded. Token-to-router direction alone is
// never sufficient — this phase only classifies when it can decode an
// actual swap event or a known intent method.
type p2DEX struct{}

func NewP2DEX() Phase { return p2DEX{} }

func (p2DEX) Name() string { return "p2_dex" }

func (p2DEX) Weight(cfg config.ClassificationConfig) float64 { return cfg.WeightDEX }

func (p2DEX) Run(ctx context.Context, in Input) Result {
	from, to := in.Transfer.FromLabel, in.Transfer.ToLabel
	touchesDEX := from.Kind == model.EntityDEX || to.Kind == model.EntityDEX

	if !in.Facts.Available || !in.Facts.Success {
		if touchesDEX && in.Cfg.DEXCoverageMode {
			// Fundamentally unsound without a
			// decoded swap event; the mode is a documented no-op so an
			// operator enabling it does not silently change behavior.
		}
		return abstain()
	}

	switch in.Facts.Method {
	case MethodAddLiquidity, MethodRemoveLiquidity:
		return Result{
			Outcome:  Override,
			Kind:     model.KindLiquidity,
			Evidence: fmt.Sprintf("%s on DEX", in.Facts.Method),
		}

	case MethodStake:
		return Result{Outcome: Override, Kind: model.KindStaking, Evidence: "stake deposit"}

	case MethodUnstake:
		return Result{
			Outcome:  Override,
			Kind:     model.KindTransfer,
			Evidence: "unstake withdrawal",
			Tags:     []string{"unstaking"},
		}

	case MethodBridgeDeposit:
		return runBridgeRule(in)

	case MethodSwap:
		return runSwapRule(in)

	default:
		return abstain()
	}
}

func runSwapRule(in Input) Result {
	facts := in.Facts
	if len(facts.TokensIn) == 0 || len(facts.TokensOut) == 0 {
		return abstain()
	}

	inStable := allStable(facts.TokensIn)
	outStable := allStable(facts.TokensOut)

	switch {
	case inStable && !outStable:
		// spent a stable, acquired a non-stable: BUY.
		return Result{
			Outcome:    Vote,
			Direction:  model.DirectionBuy,
			Confidence: 0.85,
			Evidence:   "swap: stablecoin in, non-stable out",
		}
	case !inStable && outStable:
		// disposed of a non-stable for a stable: SELL.
		return Result{
			Outcome:    Vote,
			Direction:  model.DirectionSell,
			Confidence: 0.85,
			Evidence:   "swap: non-stable in, stablecoin out",
		}
	default:
		// crypto<->crypto: DEFI unless the low-cap heuristic asserts a
		// direction (low-cap inbound implies accumulation).
		if anyLowCap(facts.TokensOut) && !anyLowCap(facts.TokensIn) {
			return Result{
				Outcome:    Vote,
				Direction:  model.DirectionBuy,
				Confidence: 0.55,
				Evidence:   "swap: low-cap token acquired",
			}
		}
		return Result{Outcome: Override, Kind: model.KindDeFi, Evidence: "crypto-to-crypto swap"}
	}
}

func runBridgeRule(in Input) Result {
	if !in.Cfg.BridgeDirectionalRules {
		return abstain()
	}
	from, to := in.Transfer.FromLabel, in.Transfer.ToLabel
	chain := in.Transfer.Chain

	if to.Kind == model.EntityBridge && isL1(chain) {
		return Result{
			Outcome:    Vote,
			Direction:  model.DirectionBuy,
			Confidence: 0.70,
			Evidence:   "bridge deposit L1->L2",
		}
	}
	if from.Kind == model.EntityBridge && isL2(chain) {
		return Result{
			Outcome:    Vote,
			Direction:  model.DirectionSell,
			Confidence: 0.65,
			Evidence:   "bridge deposit L2->L1",
		}
	}
	return abstain()
}

func allStable(tokens []SwapToken) bool {
	for _, t := range tokens {
		if !t.IsStable {
			return false
		}
	}
	return len(tokens) > 0
}

func anyLowCap(tokens []SwapToken) bool {
	for _, t := range tokens {
		if t.LowMarketCap {
			return true
		}
	}
	return false
}

func isL1(chain model.Chain) bool {
	switch chain {
	case model.ChainEthereum, model.ChainBitcoin, model.ChainXRP, model.ChainSolana, model.ChainBSC:
		return true
	default:
		return false
	}
}

func isL2(chain model.Chain) bool {
	switch chain {
	case model.ChainArbitrum, model.ChainPolygon, model.ChainBase:
		return true
	default:
		return false
	}
}
