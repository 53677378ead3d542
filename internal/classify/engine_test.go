package classify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kodascan/whalewatch/internal/config"
	"github.com/kodascan/whalewatch/internal/domain/model"
)

// offPeak avoids the UTC 13-21 peak-hour boost so assertions stay exact.
var offPeak = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func testClassificationConfig() config.ClassificationConfig {
	return config.ClassificationConfig{
		HighConfidence:      0.80,
		MediumConfidence:    0.60,
		EarlyExitConfidence: 0.85,
		CEXEarlyExit:        0.75,
		DEXEarlyExit:        0.70,
		WeightCEX:           0.65,
		WeightDEX:           0.60,
		WeightBlockchain:    0.50,
		WeightWallet:        0.45,
		WeightMegaWhale:     0.35,
	}
}

type stubReceipts struct {
	facts SwapFacts
	err   error
}

func (s stubReceipts) DecodeReceipt(context.Context, model.Chain, string) (SwapFacts, error) {
	return s.facts, s.err
}

type stubHistory struct {
	stats map[string]model.WhaleStats
}

func (s stubHistory) Lookup(address string) (model.WhaleStats, bool) {
	st, ok := s.stats[address]
	return st, ok
}

type stubMegaWhale struct {
	mega map[string]bool
	err  error
}

func (s stubMegaWhale) IsMegaWhale(_ context.Context, address string) (bool, error) {
	return s.mega[address], s.err
}

func enriched(fromKind, toKind model.EntityKind, fromEntity, toEntity string) model.EnrichedTransfer {
	return model.EnrichedTransfer{
		RawTransfer: model.RawTransfer{
			Chain:     model.ChainEthereum,
			TxHash:    "0xtx",
			BlockTime: offPeak,
			FromAddr:  "0xfrom",
			ToAddr:    "0xto",
			Symbol:    "USDC",
		},
		FromLabel: model.AddressLabel{Address: "0xfrom", Kind: fromKind, EntityName: fromEntity, Confidence: 0.95},
		ToLabel:   model.AddressLabel{Address: "0xto", Kind: toKind, EntityName: toEntity, Confidence: 0.95},
	}
}

func newEngine(receipts ReceiptClient, history WhaleHistory, mega MegaWhaleSource) *Engine {
	return NewEngine(receipts, history, mega, testClassificationConfig(), time.Second, nil)
}

func TestClassify_CEXWithdrawalIsBuy(t *testing.T) {
	e := newEngine(nil, nil, nil)
	tr := enriched(model.EntityCEX, model.EntityEOA, "Binance", "")
	tr.USDValue = 50_000

	out := e.Classify(context.Background(), tr)
	require.False(t, out.Skip)
	assert.Equal(t, model.KindBuy, out.Classification.Kind)
	assert.InDelta(t, 0.90, out.Classification.Confidence, 1e-9)
	assert.Equal(t, "0xto", out.WhaleAddress)
	assert.Contains(t, out.Classification.Evidence, "CEX withdrawal from Binance")
}

func TestClassify_CEXDepositWithGasUrgency(t *testing.T) {
	e := newEngine(nil, nil, nil)
	tr := enriched(model.EntityEOA, model.EntityCEX, "", "Coinbase")
	tr.USDValue = 30_000
	gas := int64(120)
	tr.GasPrice = &gas

	out := e.Classify(context.Background(), tr)
	assert.Equal(t, model.KindSell, out.Classification.Kind)
	assert.GreaterOrEqual(t, out.Classification.Confidence, 0.95)
	assert.LessOrEqual(t, out.Classification.Confidence, 1.0)
	assert.Equal(t, "0xfrom", out.WhaleAddress)
}

func TestClassify_SameEntityCEXSkips(t *testing.T) {
	e := newEngine(nil, nil, nil)
	out := e.Classify(context.Background(), enriched(model.EntityCEX, model.EntityCEX, "Binance", "Binance"))
	assert.True(t, out.Skip)
}

func TestClassify_DistinctCEXEntitiesAreInternalTransfer(t *testing.T) {
	e := newEngine(nil, nil, nil)
	out := e.Classify(context.Background(), enriched(model.EntityCEX, model.EntityCEX, "Binance", "Coinbase"))
	require.False(t, out.Skip)
	assert.Equal(t, model.KindTransfer, out.Classification.Kind)
}

func TestClassify_DecodedStableSwapIsBuy(t *testing.T) {
	receipts := stubReceipts{facts: SwapFacts{
		Available: true,
		Success:   true,
		Method:    MethodSwap,
		TokensIn:  []SwapToken{{Symbol: "USDC", IsStable: true}},
		TokensOut: []SwapToken{{Symbol: "WETH"}},
	}}
	e := newEngine(receipts, nil, nil)
	tr := enriched(model.EntityEOA, model.EntityDEX, "", "Uniswap")

	out := e.Classify(context.Background(), tr)
	require.False(t, out.Skip)
	assert.Equal(t, model.KindBuy, out.Classification.Kind)
	assert.GreaterOrEqual(t, out.Classification.Confidence, 0.80)
}

func TestClassify_LiquidityOverrideKeepsKind(t *testing.T) {
	receipts := stubReceipts{facts: SwapFacts{
		Available: true,
		Success:   true,
		Method:    MethodAddLiquidity,
	}}
	e := newEngine(receipts, nil, nil)
	tr := enriched(model.EntityEOA, model.EntityDEX, "", "Uniswap")
	tr.USDValue = 500_000 // boosts must not apply to non-directional kinds

	out := e.Classify(context.Background(), tr)
	assert.Equal(t, model.KindLiquidity, out.Classification.Kind)
}

func TestClassify_UndecodedDEXInteractionAbstains(t *testing.T) {
	// Token-to-router direction alone never classifies: with no decoded
	// facts and no CEX label, the result falls back to TRANSFER.
	e := newEngine(stubReceipts{err: errors.New("receipt unavailable")}, nil, nil)
	tr := enriched(model.EntityEOA, model.EntityDEX, "", "Uniswap")

	out := e.Classify(context.Background(), tr)
	assert.Equal(t, model.KindTransfer, out.Classification.Kind)
	assert.Less(t, out.Classification.Confidence, 0.60)
}

func TestClassify_LowCapSwapWithUSDBoostIsModerateBuy(t *testing.T) {
	// A lone 0.55-confidence low-cap swap vote stays below the DEX early
	// exit; weighted aggregation gives 0.60*0.55=0.33. The $100k boost
	// (+0.15) and peak-hour trading (+0.04) land at 0.52 -> still
	// TRANSFER. Adding gas urgency (+0.10) crosses into MODERATE_BUY.
	receipts := stubReceipts{facts: SwapFacts{
		Available: true,
		Success:   true,
		Method:    MethodSwap,
		TokensIn:  []SwapToken{{Symbol: "WETH"}},
		TokensOut: []SwapToken{{Symbol: "PEPE", LowMarketCap: true}},
	}}
	e := newEngine(receipts, nil, nil)
	tr := enriched(model.EntityEOA, model.EntityDEX, "", "Uniswap")
	tr.BlockTime = time.Date(2026, 5, 1, 15, 0, 0, 0, time.UTC)
	tr.USDValue = 150_000

	out := e.Classify(context.Background(), tr)
	assert.Equal(t, model.KindTransfer, out.Classification.Kind)

	gas := int64(100)
	tr.GasPrice = &gas
	tr.TxHash = "0xtx2"
	out = e.Classify(context.Background(), tr)
	assert.Equal(t, model.KindModerateBuy, out.Classification.Kind)
	assert.GreaterOrEqual(t, out.Classification.Confidence, 0.60)
	assert.Less(t, out.Classification.Confidence, 0.80)
}

func TestClassify_ProvenWhaleBoost(t *testing.T) {
	history := stubHistory{stats: map[string]model.WhaleStats{
		"0xfrom": {WhaleAddress: "0xfrom", TradeCount: 8, TotalUSD: 400_000, IsProven: true},
	}}
	e := newEngine(nil, history, nil)
	tr := enriched(model.EntityEOA, model.EntityCEX, "", "Coinbase")

	out := e.Classify(context.Background(), tr)
	// 0.90 base + 0.15 proven-whale boost, capped at 1.0.
	assert.InDelta(t, 1.0, out.Classification.Confidence, 1e-9)
	assert.Contains(t, out.Classification.Evidence, "proven whale")
}

func TestClassify_MegaWhaleSignalStacks(t *testing.T) {
	// The mega-whale vote only fires below the early-exit path, so use a
	// DEX swap vote (0.85 >= DEXEarlyExit) — force the stacking path with
	// a weaker low-cap vote instead.
	receipts := stubReceipts{facts: SwapFacts{
		Available: true,
		Success:   true,
		Method:    MethodSwap,
		TokensIn:  []SwapToken{{Symbol: "WETH"}},
		TokensOut: []SwapToken{{Symbol: "PEPE", LowMarketCap: true}},
	}}
	without := newEngine(receipts, nil, nil)
	with := newEngine(receipts, nil, stubMegaWhale{mega: map[string]bool{"0xto": true}})

	tr := enriched(model.EntityEOA, model.EntityDEX, "", "Uniswap")

	base := without.Classify(context.Background(), tr)
	boosted := with.Classify(context.Background(), tr)
	assert.Greater(t, boosted.Classification.Confidence, base.Classification.Confidence,
		"a concordant mega-whale vote must never decrease confidence")
}

func TestClassify_AggregateEarlyExitSkipsMegaWhaleLookup(t *testing.T) {
	receipts := stubReceipts{facts: SwapFacts{
		Available: true,
		Success:   true,
		Method:    MethodSwap,
		TokensIn:  []SwapToken{{Symbol: "WETH"}},
		TokensOut: []SwapToken{{Symbol: "PEPE", LowMarketCap: true}},
	}}
	mega := &countingMegaWhale{}
	cfg := testClassificationConfig()
	// Drop the aggregate gate below the low-cap vote's stacked
	// confidence (0.60*0.55 = 0.33) so it fires.
	cfg.EarlyExitConfidence = 0.30
	e := NewEngine(receipts, nil, mega, cfg, time.Second, nil)

	out := e.Classify(context.Background(), enriched(model.EntityEOA, model.EntityDEX, "", "Uniswap"))
	assert.NotEqual(t, model.KindUnknown, out.Classification.Kind)
	assert.Zero(t, mega.calls, "aggregate early exit must skip the remote mega-whale lookup")
}

func TestClassify_TunedKindThresholds(t *testing.T) {
	// With CLASSIFICATION_HIGH raised to 0.95, a plain 0.90 CEX deposit
	// lands in the MODERATE band instead of strong SELL.
	cfg := testClassificationConfig()
	cfg.HighConfidence = 0.95
	e := NewEngine(nil, nil, nil, cfg, time.Second, nil)

	out := e.Classify(context.Background(), enriched(model.EntityEOA, model.EntityCEX, "", "Coinbase"))
	assert.Equal(t, model.KindModerateSell, out.Classification.Kind)
}

type countingMegaWhale struct {
	calls int
}

func (c *countingMegaWhale) IsMegaWhale(context.Context, string) (bool, error) {
	c.calls++
	return true, nil
}

func TestClassify_MarketMakerSenderBoost(t *testing.T) {
	receipts := stubReceipts{facts: SwapFacts{
		Available: true,
		Success:   true,
		Method:    MethodSwap,
		TokensIn:  []SwapToken{{Symbol: "WETH"}},
		TokensOut: []SwapToken{{Symbol: "PEPE", LowMarketCap: true}},
	}}
	e := newEngine(receipts, nil, nil)

	// Same low-cap swap vote with and without a market-making desk on
	// the sending side: the desk adds a flat +0.20.
	plain := enriched(model.EntityEOA, model.EntityDEX, "", "Uniswap")
	desk := enriched(model.EntityMarketMaker, model.EntityDEX, "Wintermute", "Uniswap")

	base := e.Classify(context.Background(), plain)
	boosted := e.Classify(context.Background(), desk)
	assert.InDelta(t, 0.20, boosted.Classification.Confidence-base.Classification.Confidence, 1e-9)
	assert.Contains(t, boosted.Classification.Evidence, "market maker activity: Wintermute")
}

func TestClassify_ConfidenceAlwaysBounded(t *testing.T) {
	history := stubHistory{stats: map[string]model.WhaleStats{
		"0xfrom": {IsProven: true},
	}}
	e := newEngine(nil, history, nil)
	tr := enriched(model.EntityEOA, model.EntityCEX, "", "Coinbase")
	tr.USDValue = 5_000_000
	gas := int64(500)
	tr.GasPrice = &gas

	out := e.Classify(context.Background(), tr)
	assert.LessOrEqual(t, out.Classification.Confidence, 1.0)
	assert.GreaterOrEqual(t, out.Classification.Confidence, 0.0)
}

func TestClassify_RiskTagsCarryThrough(t *testing.T) {
	e := newEngine(nil, nil, nil)
	tr := enriched(model.EntityEOA, model.EntityCEX, "", "Coinbase")
	tr.TokenRisk = "scam_token"
	tr.PriceMissing = true

	out := e.Classify(context.Background(), tr)
	assert.True(t, out.Classification.HasTag("scam_token"))
	assert.True(t, out.Classification.HasTag("price_missing"))
	assert.False(t, out.Classification.ShouldAlert())
	// Tags never change the kind itself.
	assert.Equal(t, model.KindSell, out.Classification.Kind)
}
