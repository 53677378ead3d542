package dedup

import (
	"time"

	"github.com/kodascan/whalewatch/internal/domain/model"
)

// Pattern names the near-duplicate category a match fell into
// when a pair of records matched.
type Pattern string

const (
	PatternMirror               Pattern = "mirror"
	PatternShadow               Pattern = "shadow"
	PatternCounterpartyMismatch Pattern = "counterparty_mismatch"
	PatternCEXFlagMismatch      Pattern = "cex_flag_mismatch"
)

// MatchConfig holds the matcher's tunables.
type MatchConfig struct {
	TimeWindow          time.Duration
	USDThreshold        float64
	PercentageThreshold float64
	SafeguardUSD        float64
}

// DefaultMatchConfig returns the production defaults: W=10s, $5 / 0.15%
// tolerance, $5M safeguard.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		TimeWindow:          10 * time.Second,
		USDThreshold:        5,
		PercentageThreshold: 0.0015,
		SafeguardUSD:        5_000_000,
	}
}

// Match reports whether a and b describe the same economic event, and
// under which pattern. It applies the time-window and USD-tolerance
// gates first, then the pattern list. Safeguards are checked separately
// by Safeguarded: a safeguarded pair may still "match" here.
func Match(cfg MatchConfig, a, b model.WhaleRecord) (Pattern, bool) {
	diff := a.BlockTime.Sub(b.BlockTime)
	if diff < 0 {
		diff = -diff
	}
	if diff > cfg.TimeWindow {
		return "", false
	}
	if !usdWithinTolerance(cfg, a.USDValue, b.USDValue) {
		return "", false
	}

	aSide := tradeSide(a.Classification)
	bSide := tradeSide(b.Classification)

	switch {
	case (aSide == sideBuy && bSide == sideSell) || (aSide == sideSell && bSide == sideBuy):
		return PatternMirror, true
	case aSide == sideTransfer && (bSide == sideBuy || bSide == sideSell),
		bSide == sideTransfer && (aSide == sideBuy || aSide == sideSell):
		return PatternShadow, true
	case aSide == bSide && aSide != sideOther && a.CounterpartyKind != b.CounterpartyKind:
		return PatternCounterpartyMismatch, true
	case aSide == bSide && aSide != sideOther && a.IsCEXTransaction != b.IsCEXTransaction:
		return PatternCEXFlagMismatch, true
	}
	return "", false
}

// SafeguardReason is why a matching pair was NOT suppressed.
type SafeguardReason string

const (
	SafeguardLargeValue SafeguardReason = "large_value"
	SafeguardProtocol   SafeguardReason = "protocol_interaction"
)

// Safeguarded reports whether the pair (a, b) is exempt from
// suppression: >$5M stays for the audit trail, and
// protocol interactions (DEFI/LIQUIDITY/BRIDGE/STAKING) are never
// collapsed.
func Safeguarded(cfg MatchConfig, a, b model.WhaleRecord) (SafeguardReason, bool) {
	if a.USDValue > cfg.SafeguardUSD || b.USDValue > cfg.SafeguardUSD {
		return SafeguardLargeValue, true
	}
	if isProtocolKind(a.Classification) || isProtocolKind(b.Classification) {
		return SafeguardProtocol, true
	}
	return "", false
}

func isProtocolKind(kind model.ClassificationKind) bool {
	switch kind {
	case model.KindDeFi, model.KindLiquidity, model.KindBridge, model.KindStaking:
		return true
	default:
		return false
	}
}

func usdWithinTolerance(cfg MatchConfig, a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	if diff <= cfg.USDThreshold {
		return true
	}
	max := a
	if b > max {
		max = b
	}
	if max <= 0 {
		return false
	}
	return diff/max <= cfg.PercentageThreshold
}

type side int

const (
	sideOther side = iota
	sideBuy
	sideSell
	sideTransfer
)

// tradeSide collapses a classification kind into the coarse side the
// pattern rules compare. MODERATE_* counts as its strong direction.
func tradeSide(kind model.ClassificationKind) side {
	switch kind {
	case model.KindBuy, model.KindModerateBuy:
		return sideBuy
	case model.KindSell, model.KindModerateSell:
		return sideSell
	case model.KindTransfer:
		return sideTransfer
	default:
		return sideOther
	}
}
