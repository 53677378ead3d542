// Package dedup implements the two-layer near-duplicate suppressor.
// Layer 1 is an in-memory sharded ring of recent records per
// (whale_address, token_symbol); layer 2 is a bounded lookback against
// recent storage.
package dedup

import (
	"context"
	"log/slog"

	"github.com/kodascan/whalewatch/internal/domain/event"
	"github.com/kodascan/whalewatch/internal/domain/model"
	"github.com/kodascan/whalewatch/internal/metrics"
	"github.com/kodascan/whalewatch/internal/store"
)

// Verdict is what the suppressor decided for an incoming record.
type Verdict int

const (
	// StoreNew: no near-duplicate found (or a safeguard fired); store
	// the incoming record normally.
	StoreNew Verdict = iota
	// SuppressIncoming: an existing record with >= confidence already
	// covers this economic event; drop the incoming one.
	SuppressIncoming
	// ReplaceExisting: the incoming record has strictly higher
	// confidence; overwrite the existing record in place and do not
	// store the incoming one as a separate row.
	ReplaceExisting
)

// Decision bundles the verdict with the matched record and audit event.
type Decision struct {
	Verdict  Verdict
	Existing *model.WhaleRecord
	Pattern  Pattern
	// Replacement is the merged record to write when Verdict is
	// ReplaceExisting: the incoming record's fields under the existing
	// record's (chain, tx_hash) key, preserving the earliest block_time.
	Replacement *model.WhaleRecord
	// Suppression is the structured audit event for SuppressIncoming
	// and ReplaceExisting verdicts.
	Suppression *event.SuppressionEvent
}

// Config holds the suppressor's tunables.
type Config struct {
	Match           MatchConfig
	L1RingSize      int
	L2LookbackLimit int
	ShardCount      int
}

// Suppressor is the two-layer near-duplicate detector. Check and
// Observe are safe for concurrent use across shards; within one whale
// shard the pipeline serializes calls, which is what gives L1 its
// read-after-write guarantee.
type Suppressor struct {
	cfg      Config
	l1       *memoryCache
	lookback store.DedupLookbackRepository
	logger   *slog.Logger
}

func New(cfg Config, lookback store.DedupLookbackRepository, logger *slog.Logger) *Suppressor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.L2LookbackLimit <= 0 {
		cfg.L2LookbackLimit = 200
	}
	return &Suppressor{
		cfg:      cfg,
		l1:       newMemoryCache(cfg.ShardCount, cfg.L1RingSize),
		lookback: lookback,
		logger:   logger.With("component", "dedup"),
	}
}

// Check runs the incoming record through both layers and returns the
// merge decision. A storage failure on L2 degrades to L1-only
// so a storage outage never blocks ingestion.
func (s *Suppressor) Check(ctx context.Context, incoming model.WhaleRecord) Decision {
	key := incoming.DedupGroupKey()

	if d, found := s.match(incoming, s.l1.candidates(key)); found {
		return d
	}

	if s.lookback != nil {
		since := incoming.BlockTime.Add(-s.cfg.Match.TimeWindow)
		recent, err := s.lookback.RecentByKey(ctx, key, since, s.cfg.L2LookbackLimit)
		if err != nil {
			metrics.DedupLookupFailures.WithLabelValues(string(incoming.Chain)).Inc()
			s.logger.Warn("dedup storage lookback failed, using memory cache only",
				"whale", incoming.WhaleAddress, "error", err)
		} else if d, found := s.match(incoming, recent); found {
			return d
		}
	}

	return Decision{Verdict: StoreNew}
}

// Observe records a stored (or replaced) record into the L1 cache so
// later arrivals in the same shard see it immediately, before the
// storage write lands.
func (s *Suppressor) Observe(rec model.WhaleRecord) {
	s.l1.add(rec)
}

// ApplyReplacement updates the L1 copy of a replaced record.
func (s *Suppressor) ApplyReplacement(rec model.WhaleRecord) {
	s.l1.replace(rec)
}

func (s *Suppressor) match(incoming model.WhaleRecord, candidates []model.WhaleRecord) (Decision, bool) {
	for i := range candidates {
		existing := candidates[i]
		if existing.Chain == incoming.Chain && existing.TxHash == incoming.TxHash {
			// Same transaction re-reported: the sink upsert already
			// handles hash-level idempotence.
			continue
		}
		pattern, ok := Match(s.cfg.Match, incoming, existing)
		if !ok {
			continue
		}
		if reason, guarded := Safeguarded(s.cfg.Match, incoming, existing); guarded {
			metrics.DedupSafeguardedTotal.WithLabelValues(string(incoming.Chain), string(reason)).Inc()
			s.logger.Info("near-duplicate match left intact by safeguard",
				"incoming", incoming.TxHash, "existing", existing.TxHash,
				"pattern", string(pattern), "reason", string(reason))
			continue
		}
		return s.decide(incoming, existing, pattern), true
	}
	return Decision{}, false
}

// decide applies the merge policy: keep the record with higher
// confidence; an incoming winner overwrites the existing row in place,
// preserving the earliest block_time.
func (s *Suppressor) decide(incoming, existing model.WhaleRecord, pattern Pattern) Decision {
	timeDiff := incoming.BlockTime.Sub(existing.BlockTime)
	if timeDiff < 0 {
		timeDiff = -timeDiff
	}
	usdDiff := incoming.USDValue - existing.USDValue
	if usdDiff < 0 {
		usdDiff = -usdDiff
	}

	metrics.DedupSuppressedTotal.WithLabelValues(string(incoming.Chain), string(pattern)).Inc()

	if incoming.Confidence > existing.Confidence {
		replacement := incoming
		replacement.Chain = existing.Chain
		replacement.TxHash = existing.TxHash
		if existing.BlockTime.Before(replacement.BlockTime) {
			replacement.BlockTime = existing.BlockTime
		}
		metrics.DedupMergedTotal.WithLabelValues(string(incoming.Chain)).Inc()
		return Decision{
			Verdict:     ReplaceExisting,
			Existing:    &existing,
			Pattern:     pattern,
			Replacement: &replacement,
			Suppression: &event.SuppressionEvent{
				IncomingHash: incoming.TxHash,
				ExistingHash: existing.TxHash,
				Reason:       "incoming record won on confidence, existing updated in place",
				Pattern:      string(pattern),
				TimeDiff:     timeDiff,
				USDDiff:      usdDiff,
			},
		}
	}

	return Decision{
		Verdict:  SuppressIncoming,
		Existing: &existing,
		Pattern:  pattern,
		Suppression: &event.SuppressionEvent{
			IncomingHash: incoming.TxHash,
			ExistingHash: existing.TxHash,
			Reason:       "existing record has equal or higher confidence",
			Pattern:      string(pattern),
			TimeDiff:     timeDiff,
			USDDiff:      usdDiff,
		},
	}
}
