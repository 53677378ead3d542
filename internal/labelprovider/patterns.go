package labelprovider

import (
	"strings"

	"github.com/kodascan/whalewatch/internal/domain/model"
)

// matchTier is the confidence tier assigned by the kind-inference
// table: 0.95 for an exact entity match, 0.80 for a keyword match,
// 0.60 for a category heuristic.
type matchTier float64

const (
	tierExactEntity matchTier = 0.95
	tierKeyword     matchTier = 0.80
	tierCategory    matchTier = 0.60
)

// knownEntityNames is the exact-match tier: well-known CEX/bridge/lending
// brand names seen verbatim in an explorer's label string.
var knownEntityNames = []string{
	"binance", "coinbase", "kraken", "okx", "bybit", "huobi", "htx",
	"gate.io", "kucoin", "crypto.com", "bitfinex", "bitstamp", "gemini",
	"wormhole", "aave", "compound", "lido", "yearn",
	"wintermute", "jump trading", "dv trading", "alameda", "gsr markets",
}

// inferredLabel is the result of running the pattern table against a raw
// label string returned by the label store or a remote explorer.
type inferredLabel struct {
	Kind       model.EntityKind
	EntityName string
	Confidence float64
}

// inferKind resolves a raw label string through the prioritized pattern list:
// CEX names first, then DEX/bridge/lending/staking/yield/MEV keywords,
// then a weak category heuristic. The first match wins.
func inferKind(raw string) inferredLabel {
	lower := strings.ToLower(raw)
	if lower == "" {
		return inferredLabel{Kind: model.EntityUnknown, Confidence: 0}
	}

	for _, name := range knownEntityNames {
		if strings.Contains(lower, name) {
			return inferredLabel{Kind: kindForEntityName(name), EntityName: titleCase(name), Confidence: float64(tierExactEntity)}
		}
	}

	for _, rule := range keywordRules {
		for _, tok := range rule.tokens {
			if strings.Contains(lower, tok) {
				return inferredLabel{Kind: rule.kind, Confidence: float64(tierKeyword)}
			}
		}
	}

	for _, rule := range categoryRules {
		for _, tok := range rule.tokens {
			if strings.Contains(lower, tok) {
				return inferredLabel{Kind: rule.kind, Confidence: float64(tierCategory)}
			}
		}
	}

	return inferredLabel{Kind: model.EntityUnknown, Confidence: 0}
}

type keywordRule struct {
	tokens []string
	kind   model.EntityKind
}

// keywordRules are the 0.80-confidence tier: a recognizable structural
// keyword in the label string (e.g. "router", "bridge") even without a
// brand match.
var keywordRules = []keywordRule{
	{tokens: []string{"router", "swap", "aggregator", "exchange proxy"}, kind: model.EntityDEX},
	{tokens: []string{"bridge", "portal", "gateway"}, kind: model.EntityBridge},
	{tokens: []string{"lendingpool", "lending pool", "money market"}, kind: model.EntityLending},
	{tokens: []string{"staking", "validator", "deposit contract"}, kind: model.EntityStaking},
	{tokens: []string{"vault", "yield"}, kind: model.EntityYield},
	{tokens: []string{"flashbots", "mev", "searcher", "sandwich"}, kind: model.EntityMEV},
	{tokens: []string{"market maker", "market-making", "trading desk"}, kind: model.EntityMarketMaker},
	{tokens: []string{"tornado", "mixer"}, kind: model.EntityMixer},
}

// categoryRules are the weakest, 0.60-confidence tier: a generic word
// that only loosely implies a category.
var categoryRules = []keywordRule{
	{tokens: []string{"exchange", "wallet: hot"}, kind: model.EntityCEX},
	{tokens: []string{"dex", "decentralized exchange"}, kind: model.EntityDEX},
	{tokens: []string{"stake"}, kind: model.EntityStaking},
}

func kindForEntityName(name string) model.EntityKind {
	switch name {
	case "wormhole":
		return model.EntityBridge
	case "aave", "compound":
		return model.EntityLending
	case "lido":
		return model.EntityStaking
	case "yearn":
		return model.EntityYield
	case "wintermute", "jump trading", "dv trading", "alameda", "gsr markets":
		return model.EntityMarketMaker
	default:
		return model.EntityCEX
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	if r[0] >= 'a' && r[0] <= 'z' {
		r[0] -= 32
	}
	return string(r)
}
