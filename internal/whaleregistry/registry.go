// Package whaleregistry tracks cumulative per-wallet stats with
// a striped-lock map sharded by whale address, periodically snapshotted
// to a JSON file and rehydrated at startup.
package whaleregistry

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kodascan/whalewatch/internal/domain/model"
	"github.com/kodascan/whalewatch/internal/metrics"
)

const shardCount = 32

// Registry tracks WhaleStats per wallet. Observe and Lookup are safe
// for concurrent use; snapshotting reads a copy while writers proceed.
type Registry struct {
	shards       [shardCount]*shard
	snapshotPath string
	interval     time.Duration
	logger       *slog.Logger
}

type shard struct {
	mu    sync.RWMutex
	stats map[string]*model.WhaleStats
}

// New creates a registry that snapshots to snapshotPath every interval.
// If the snapshot file exists, the registry is rehydrated from it.
func New(snapshotPath string, interval time.Duration, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 60 * time.Second
	}
	r := &Registry{
		snapshotPath: snapshotPath,
		interval:     interval,
		logger:       logger.With("component", "whaleregistry"),
	}
	for i := range r.shards {
		r.shards[i] = &shard{stats: make(map[string]*model.WhaleStats)}
	}
	if err := r.rehydrate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) shard(address string) *shard {
	h := fnv.New32a()
	h.Write([]byte(address))
	return r.shards[int(h.Sum32())%shardCount]
}

// Observe folds one classified trade into the wallet's stats. Only
// directional classifications (BUY/SELL and their MODERATE_* variants)
// count toward trade volume; everything else just refreshes last_seen.
func (r *Registry) Observe(whaleAddress string, kind model.ClassificationKind, usd float64, tokenSymbol string, now time.Time) {
	if whaleAddress == "" {
		return
	}
	s := r.shard(whaleAddress)
	s.mu.Lock()
	defer s.mu.Unlock()

	stats, ok := s.stats[whaleAddress]
	if !ok {
		stats = &model.WhaleStats{
			WhaleAddress: whaleAddress,
			Tokens:       make(map[string]struct{}),
			FirstSeen:    now,
		}
		s.stats[whaleAddress] = stats
		metrics.WhaleRegistrySize.WithLabelValues().Inc()
	}
	stats.LastSeen = now

	if !isDirectional(kind) {
		return
	}
	stats.TradeCount++
	stats.TotalUSD += usd
	if tokenSymbol != "" {
		stats.Tokens[tokenSymbol] = struct{}{}
	}
	stats.UpdateProven()
	stats.RecomputeSmartMoneyScore()
}

// Lookup returns a copy of the wallet's current stats.
func (r *Registry) Lookup(whaleAddress string) (model.WhaleStats, bool) {
	s := r.shard(whaleAddress)
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats, ok := s.stats[whaleAddress]
	if !ok {
		return model.WhaleStats{}, false
	}
	out := *stats
	out.Tokens = stats.CloneTokens()
	return out, true
}

// Len returns the number of tracked wallets.
func (r *Registry) Len() int {
	total := 0
	for _, s := range r.shards {
		s.mu.RLock()
		total += len(s.stats)
		s.mu.RUnlock()
	}
	return total
}

// Run snapshots the registry every interval until ctx is done, then
// writes one final snapshot on the way out.
func (r *Registry) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := r.Snapshot(); err != nil {
				r.logger.Error("final registry snapshot failed", "error", err)
			}
			return ctx.Err()
		case <-ticker.C:
			if err := r.Snapshot(); err != nil {
				r.logger.Error("registry snapshot failed", "error", err)
			}
		}
	}
}

// snapshotEntry is the on-disk form of one wallet's stats.
type snapshotEntry struct {
	WhaleAddress    string    `json:"whale_address"`
	TradeCount      int64     `json:"trade_count"`
	TotalUSD        float64   `json:"total_usd"`
	Tokens          []string  `json:"tokens"`
	FirstSeen       time.Time `json:"first_seen"`
	LastSeen        time.Time `json:"last_seen"`
	SmartMoneyScore float64   `json:"smart_money_score"`
	IsProven        bool      `json:"is_proven"`
}

// Snapshot writes the full registry to the snapshot file atomically
// (write to temp, rename over).
func (r *Registry) Snapshot() error {
	if r.snapshotPath == "" {
		return nil
	}

	var entries []snapshotEntry
	for _, s := range r.shards {
		s.mu.RLock()
		for _, stats := range s.stats {
			tokens := make([]string, 0, len(stats.Tokens))
			for t := range stats.Tokens {
				tokens = append(tokens, t)
			}
			entries = append(entries, snapshotEntry{
				WhaleAddress:    stats.WhaleAddress,
				TradeCount:      stats.TradeCount,
				TotalUSD:        stats.TotalUSD,
				Tokens:          tokens,
				FirstSeen:       stats.FirstSeen,
				LastSeen:        stats.LastSeen,
				SmartMoneyScore: stats.SmartMoneyScore,
				IsProven:        stats.IsProven,
			})
		}
		s.mu.RUnlock()
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	tmp := r.snapshotPath + ".tmp"
	if err := os.MkdirAll(filepath.Dir(r.snapshotPath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, r.snapshotPath); err != nil {
		return err
	}
	metrics.WhaleRegistrySnapshotsTotal.WithLabelValues().Inc()
	return nil
}

func (r *Registry) rehydrate() error {
	if r.snapshotPath == "" {
		return nil
	}
	data, err := os.ReadFile(r.snapshotPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var entries []snapshotEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		// A corrupt snapshot should not prevent startup: start empty
		// and overwrite on the next snapshot tick.
		r.logger.Warn("snapshot file corrupt, starting with empty registry",
			"path", r.snapshotPath, "error", err)
		return nil
	}
	for _, e := range entries {
		tokens := make(map[string]struct{}, len(e.Tokens))
		for _, t := range e.Tokens {
			tokens[t] = struct{}{}
		}
		stats := &model.WhaleStats{
			WhaleAddress:    e.WhaleAddress,
			TradeCount:      e.TradeCount,
			TotalUSD:        e.TotalUSD,
			Tokens:          tokens,
			FirstSeen:       e.FirstSeen,
			LastSeen:        e.LastSeen,
			SmartMoneyScore: e.SmartMoneyScore,
			IsProven:        e.IsProven,
		}
		s := r.shard(e.WhaleAddress)
		s.mu.Lock()
		s.stats[e.WhaleAddress] = stats
		s.mu.Unlock()
		metrics.WhaleRegistrySize.WithLabelValues().Inc()
	}
	r.logger.Info("registry rehydrated from snapshot",
		"path", r.snapshotPath, "wallets", len(entries))
	return nil
}

func isDirectional(kind model.ClassificationKind) bool {
	switch kind {
	case model.KindBuy, model.KindSell, model.KindModerateBuy, model.KindModerateSell:
		return true
	default:
		return false
	}
}
