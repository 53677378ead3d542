// Package priceresolver resolves a token symbol or address
// to a USD-per-unit price at a given time. Contract:
// price(symbol|token_addr, at_time) -> usd_per_unit | absent. Staleness
// budget is 120s.
package priceresolver

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kodascan/whalewatch/internal/metrics"
)

// stablecoins always price at 1.0.
var stablecoins = map[string]struct{}{
	"USDC": {}, "USDT": {}, "DAI": {}, "BUSD": {},
	"TUSD": {}, "FRAX": {}, "USDP": {}, "GUSD": {},
}

// PriceSource is an external price feed (oracle, exchange API, on-chain
// pool reader). The real client lives outside this module;
// only the contract matters here.
type PriceSource interface {
	Price(ctx context.Context, symbolOrAddr string) (float64, error)
}

// Config tunes the resolver's staleness tolerance.
type Config struct {
	StalenessBudget time.Duration
}

type observation struct {
	price      float64
	observedAt time.Time
}

// Resolver is the price lookup surface. It is safe for concurrent use.
type Resolver struct {
	cfg    Config
	source PriceSource
	mu     sync.RWMutex
	last   map[string]observation
	logger *slog.Logger
	nowFn  func() time.Time
}

// New constructs a Resolver. source may be nil, in which case only the
// stablecoin table and any previously observed prices (there will be
// none) resolve.
func New(cfg Config, source PriceSource, logger *slog.Logger) *Resolver {
	if cfg.StalenessBudget <= 0 {
		cfg.StalenessBudget = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		cfg:    cfg,
		source: source,
		last:   make(map[string]observation),
		logger: logger.With("component", "priceresolver"),
		nowFn:  time.Now,
	}
}

// Price resolves symbolOrAddr to a USD-per-unit price as of atTime. It
// returns ok=false when no fresh-enough price is known; callers must
// proceed with usd_value=0 and tag price_missing.
func (r *Resolver) Price(ctx context.Context, symbolOrAddr string, atTime time.Time) (float64, bool) {
	key := normalize(symbolOrAddr)
	if _, stable := stablecoins[key]; stable {
		return 1.0, true
	}

	if price, ok := r.cachedPrice(key, atTime); ok {
		return price, true
	}

	if r.source == nil {
		metrics.PriceMissingTotal.WithLabelValues(key).Inc()
		return 0, false
	}

	price, err := r.source.Price(ctx, key)
	if err != nil {
		r.logger.Warn("price source lookup failed", "symbol", key, "error", err)
		metrics.PriceMissingTotal.WithLabelValues(key).Inc()
		return 0, false
	}

	r.observe(key, price)
	return price, true
}

// USDValue resolves amount*price, returning (value, priceMissing).
// priceMissing=true means the caller must record usd_value=0 and tag
// the event price_missing rather than treat it as a hard error.
func (r *Resolver) USDValue(ctx context.Context, symbolOrAddr string, amount float64, atTime time.Time) (float64, bool) {
	price, ok := r.Price(ctx, symbolOrAddr, atTime)
	if !ok {
		return 0, true
	}
	return amount * price, false
}

// Observe records an externally-sourced price point (e.g. derived from a
// decoded swap's own exchange rate), so subsequent lookups for the same
// token can fall back to it within the staleness budget even if the
// price source itself is unavailable.
func (r *Resolver) Observe(symbolOrAddr string, price float64) {
	r.observe(normalize(symbolOrAddr), price)
}

func (r *Resolver) observe(key string, price float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last[key] = observation{price: price, observedAt: r.nowFn()}
}

func (r *Resolver) cachedPrice(key string, atTime time.Time) (float64, bool) {
	r.mu.RLock()
	obs, ok := r.last[key]
	r.mu.RUnlock()
	if !ok {
		return 0, false
	}
	if atTime.IsZero() {
		atTime = r.nowFn()
	}
	age := atTime.Sub(obs.observedAt)
	if age < 0 {
		age = -age
	}
	if age > r.cfg.StalenessBudget {
		return 0, false
	}
	return obs.price, true
}

// IsStablecoin reports whether symbolOrAddr is a recognized 1:1 USD
// stablecoin, per the built-in table.
func IsStablecoin(symbolOrAddr string) bool {
	_, ok := stablecoins[normalize(symbolOrAddr)]
	return ok
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
