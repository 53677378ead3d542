// Package labelprovider resolves an address to its known identity:
// a two-tier cache (sharded LRU + a persistent label store) in front of a
// rate-limited remote explorer lookup. Lookup never
// fails — any error collapses to model.Unknown.
package labelprovider

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kodascan/whalewatch/internal/addressindex"
	"github.com/kodascan/whalewatch/internal/cache"
	"github.com/kodascan/whalewatch/internal/domain/model"
	"github.com/kodascan/whalewatch/internal/metrics"
	"github.com/kodascan/whalewatch/internal/ratelimit"
	"github.com/kodascan/whalewatch/internal/store"
)

type cacheKey struct {
	Chain   model.Chain
	Address string
}

// RemoteLabel is the raw answer from an external explorer/labeling
// service before this package's pattern table resolves it to an
// EntityKind. The external client lives outside this module —
// only this data contract matters.
type RemoteLabel struct {
	RawLabel string
}

// RemoteLookup is the explorer client interface. Implementations are
// expected to be network clients; this package never assumes a
// particular transport.
type RemoteLookup interface {
	Lookup(ctx context.Context, chain model.Chain, address string) (RemoteLabel, error)
}

// Config tunes the provider's cache sizing and remote-lookup gating.
type Config struct {
	CacheCapacity    int
	TTL              time.Duration
	NegativeCacheTTL time.Duration
	RemoteRatePerSec float64
	BloomExpected    int
	BloomFPR         float64
}

// Provider is the label lookup surface: lookup(addr, chain) -> AddressLabel.
type Provider struct {
	cfg      Config
	static   map[cacheKey]model.AddressLabel
	staticMu sync.RWMutex
	lru      *cache.ShardedLRU[cacheKey, model.AddressLabel]
	negative *cache.LRU[cacheKey, struct{}]
	bloom    *addressindex.BloomFilter
	remote   RemoteLookup
	store    store.LabelRepository
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
	nowFn    func() time.Time
}

// New constructs a Provider. remote and labelStore may be nil (the
// provider degrades to builtin-registry-only resolution).
func New(cfg Config, remote RemoteLookup, labelStore store.LabelRepository, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RemoteRatePerSec <= 0 {
		cfg.RemoteRatePerSec = 5
	}

	p := &Provider{
		cfg:      cfg,
		static:   loadBuiltinRegistry(),
		lru:      cache.NewShardedLRU[cacheKey, model.AddressLabel](cfg.CacheCapacity, cfg.TTL, cacheKeyString),
		negative: cache.NewLRU[cacheKey, struct{}](cfg.CacheCapacity/4+1, cfg.NegativeCacheTTL),
		bloom:    addressindex.NewBloomFilter(cfg.BloomExpected, cfg.BloomFPR),
		remote:   remote,
		store:    labelStore,
		limiter:  ratelimit.New(cfg.RemoteRatePerSec),
		logger:   logger.With("component", "labelprovider"),
		nowFn:    time.Now,
	}
	for key := range p.static {
		p.bloom.Add(cacheKeyString(key))
	}
	return p
}

// Overlay merges operator-supplied entries on top of the embedded
// registry, higher-confidence entries winning ties broken by recency
// (the DEX-router hardcoded list and the
// remote-label list overlap ... higher-confidence label wins; ties
// broken by freshness").
func (p *Provider) Overlay(entries []OverlayEntry) {
	p.staticMu.Lock()
	defer p.staticMu.Unlock()
	now := p.nowFn()
	for _, e := range entries {
		key := cacheKey{Chain: e.Chain, Address: strings.ToLower(e.Address)}
		confidence := e.Confidence
		if confidence <= 0 {
			confidence = float64(tierExactEntity)
		}
		existing, ok := p.static[key]
		if ok && existing.Confidence > confidence {
			continue
		}
		p.static[key] = model.AddressLabel{
			Address:    key.Address,
			Chain:      e.Chain,
			Kind:       e.Kind,
			EntityName: e.EntityName,
			Confidence: confidence,
			UpdatedAt:  now,
		}
		p.bloom.Add(cacheKeyString(key))
	}
}

// Lookup resolves addr on chain. It never returns an error: any failure
// mode (cache miss + no remote configured, remote timeout, rate-limit
// wait cancelled) resolves to model.Unknown.
func (p *Provider) Lookup(ctx context.Context, chain model.Chain, addr string) model.AddressLabel {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if addr == "" {
		return model.Unknown(addr, chain)
	}
	key := cacheKey{Chain: chain, Address: addr}

	if label, ok := p.staticLookup(key); ok {
		return label
	}

	if _, negCached := p.negative.Get(key); negCached {
		return model.Unknown(addr, chain)
	}

	knownMaybe := p.bloom.MayContain(cacheKeyString(key))
	if knownMaybe {
		if label, ok := p.lru.Get(key); ok {
			metrics.LabelCacheHits.WithLabelValues(string(chain)).Inc()
			return label
		}
		metrics.LabelCacheMisses.WithLabelValues(string(chain)).Inc()

		if p.store != nil {
			if stored, err := p.store.Get(ctx, chain, addr); err == nil && stored != nil {
				p.lru.Put(key, *stored)
				return *stored
			}
		}
	}

	return p.remoteLookup(ctx, key)
}

func (p *Provider) staticLookup(key cacheKey) (model.AddressLabel, bool) {
	p.staticMu.RLock()
	defer p.staticMu.RUnlock()
	label, ok := p.static[key]
	return label, ok
}

func (p *Provider) remoteLookup(ctx context.Context, key cacheKey) model.AddressLabel {
	if p.remote == nil {
		p.negative.Put(key, struct{}{})
		return model.Unknown(key.Address, key.Chain)
	}

	if err := p.limiter.Wait(ctx, key.Chain); err != nil {
		p.negative.Put(key, struct{}{})
		return model.Unknown(key.Address, key.Chain)
	}

	metrics.LabelRemoteLookups.WithLabelValues(string(key.Chain)).Inc()
	remoteLabel, err := p.remote.Lookup(ctx, key.Chain, key.Address)
	if err != nil {
		metrics.LabelRemoteErrors.WithLabelValues(string(key.Chain)).Inc()
		p.logger.Warn("remote label lookup failed; negative-caching",
			"chain", key.Chain, "address", key.Address, "error", err)
		p.negative.Put(key, struct{}{})
		return model.Unknown(key.Address, key.Chain)
	}

	inferred := inferKind(remoteLabel.RawLabel)
	label := model.AddressLabel{
		Address:    key.Address,
		Chain:      key.Chain,
		Kind:       inferred.Kind,
		EntityName: inferred.EntityName,
		Confidence: inferred.Confidence,
		UpdatedAt:  p.nowFn(),
	}
	if inferred.Kind == model.EntityUnknown {
		p.negative.Put(key, struct{}{})
		return label
	}

	p.mergeIntoStore(ctx, label)
	p.lru.Put(key, label)
	p.bloom.Add(cacheKeyString(key))
	return label
}

// mergeIntoStore writes label to the persistent store, letting the store
// implementation's own upsert arbitrate confidence/freshness precedence
// (higher confidence wins, ties broken by freshness).
func (p *Provider) mergeIntoStore(ctx context.Context, label model.AddressLabel) {
	if p.store == nil {
		return
	}
	if err := p.store.Upsert(ctx, label); err != nil {
		p.logger.Warn("label store upsert failed", "address", label.Address, "error", err)
	}
}

func cacheKeyString(k cacheKey) string {
	return string(k.Chain) + "|" + k.Address
}
