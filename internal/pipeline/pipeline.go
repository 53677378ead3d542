// Package pipeline wires the stages together: supervised sources fan in
// to a bounded queue, an enrichment pool attaches labels and USD values,
// a classification pool runs the phase engine, sharded workers apply the
// whale-perspective transform and near-duplicate suppression, and a sink
// pool persists the survivors. Every queue is bounded; every stage is
// independently concurrent.
package pipeline

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kodascan/whalewatch/internal/classify"
	"github.com/kodascan/whalewatch/internal/config"
	"github.com/kodascan/whalewatch/internal/dedup"
	"github.com/kodascan/whalewatch/internal/domain/event"
	"github.com/kodascan/whalewatch/internal/domain/model"
	"github.com/kodascan/whalewatch/internal/labelprovider"
	"github.com/kodascan/whalewatch/internal/metrics"
	"github.com/kodascan/whalewatch/internal/perspective"
	"github.com/kodascan/whalewatch/internal/priceresolver"
	"github.com/kodascan/whalewatch/internal/sink"
	"github.com/kodascan/whalewatch/internal/store"
	"github.com/kodascan/whalewatch/internal/supervisor"
	"github.com/kodascan/whalewatch/internal/whaleregistry"
)

// Pipeline owns the full ingestion-to-storage flow.
type Pipeline struct {
	cfg        config.PipelineConfig
	sources    *supervisor.Supervisor
	labels     *labelprovider.Provider
	prices     *priceresolver.Resolver
	engine     *classify.Engine
	suppressor *dedup.Suppressor
	sink       *sink.Sink
	lookback   store.DedupLookbackRepository
	registry   *whaleregistry.Registry
	stats      *Stats
	logger     *slog.Logger
	nowFn      func() time.Time
}

func New(
	cfg config.PipelineConfig,
	sources *supervisor.Supervisor,
	labels *labelprovider.Provider,
	prices *priceresolver.Resolver,
	engine *classify.Engine,
	suppressor *dedup.Suppressor,
	snk *sink.Sink,
	lookback store.DedupLookbackRepository,
	registry *whaleregistry.Registry,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:        cfg,
		sources:    sources,
		labels:     labels,
		prices:     prices,
		engine:     engine,
		suppressor: suppressor,
		sink:       snk,
		lookback:   lookback,
		registry:   registry,
		stats:      &Stats{},
		logger:     logger.With("component", "pipeline"),
		nowFn:      time.Now,
	}
}

// Stats exposes the per-stage counters.
func (p *Pipeline) Stats() *Stats { return p.stats }

// storedOp is one write queued for the sink pool. replace routes the
// record through the in-place update path used by the dedup merge
// policy instead of a fresh upsert.
type storedOp struct {
	record  model.WhaleRecord
	replace bool
}

// Run starts every stage and blocks until the sources stop and the
// in-flight events drain. On shutdown, sources stop first; downstream
// stages get up to DrainTimeout to flush before their processing
// context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	shards := p.cfg.PerspectiveShardCount
	if shards <= 0 {
		shards = 32
	}

	raw := make(chan model.RawTransfer, p.cfg.FanInQueueSize)
	enriched := make(chan model.EnrichedTransfer, p.cfg.EnrichmentQueueSize)
	classified := make([]chan event.ClassifiedEvent, shards)
	for i := range classified {
		classified[i] = make(chan event.ClassifiedEvent, p.cfg.ClassificationQueueSize/shards+1)
	}
	stored := make(chan storedOp, p.cfg.StoredQueueSize)

	// procCtx outlives ctx by up to DrainTimeout so downstream stages
	// can flush queued events after the stop signal.
	procCtx, cancelProc := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelProc()
	drained := make(chan struct{})
	go func() {
		select {
		case <-drained:
			return
		case <-ctx.Done():
		}
		t := time.NewTimer(p.cfg.DrainTimeout)
		defer t.Stop()
		select {
		case <-drained:
		case <-t.C:
			p.logger.Warn("drain timeout exceeded, cancelling in-flight work")
			cancelProc()
		}
	}()

	g := new(errgroup.Group)

	g.Go(func() error {
		defer close(raw)
		err := p.sources.Run(ctx, raw)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		p.runPool(p.cfg.EnrichmentWorkers, 2, func() {
			for t := range raw {
				p.stats.Received.Add(1)
				metrics.IngestQueueDepth.WithLabelValues("fanin").Set(float64(len(raw)))
				enriched <- p.enrich(procCtx, t)
			}
		})
		close(enriched)
		return nil
	})

	g.Go(func() error {
		p.runPool(p.cfg.ClassificationWorkers, 4, func() {
			for t := range enriched {
				outcome := p.engine.Classify(procCtx, t)
				p.stats.Classified.Add(1)
				if outcome.Skip {
					p.stats.Dropped.Add(1)
					continue
				}
				ev := event.ClassifiedEvent{Transfer: t, Classification: outcome.Classification}
				classified[shardFor(outcome.WhaleAddress, t.FromAddr, shards)] <- ev
			}
		})
		for _, ch := range classified {
			close(ch)
		}
		return nil
	})

	g.Go(func() error {
		var wg sync.WaitGroup
		for i := 0; i < shards; i++ {
			wg.Add(1)
			go func(in <-chan event.ClassifiedEvent) {
				defer wg.Done()
				p.runShard(procCtx, in, stored)
			}(classified[i])
		}
		wg.Wait()
		close(stored)
		return nil
	})

	g.Go(func() error {
		p.runPool(p.cfg.SinkWorkers, 2, func() {
			for op := range stored {
				p.store(procCtx, op)
			}
		})
		close(drained)
		return nil
	})

	err := g.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// runPool runs fn on n workers and waits for all of them.
func (p *Pipeline) runPool(n, fallback int, fn func()) {
	if n <= 0 {
		n = fallback
	}
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}
	wg.Wait()
}

// enrich attaches labels and the USD value. Lookups carry their own
// deadlines; a timed-out or failed lookup leaves the field at its
// zero-information value and tags the record rather than blocking
// the event.
func (p *Pipeline) enrich(ctx context.Context, t model.RawTransfer) model.EnrichedTransfer {
	start := time.Now()
	defer func() {
		metrics.EnrichmentLatency.WithLabelValues(string(t.Chain)).Observe(time.Since(start).Seconds())
	}()

	out := model.EnrichedTransfer{RawTransfer: t}

	labelCtx, cancel := context.WithTimeout(ctx, p.cfg.LabelLookupTimeout)
	out.FromLabel = p.labels.Lookup(labelCtx, t.Chain, t.FromAddr)
	out.ToLabel = p.labels.Lookup(labelCtx, t.Chain, t.ToAddr)
	cancel()

	amount := parseAmount(t.Amount)
	if usd, missing := p.prices.USDValue(ctx, priceKey(t), amount, t.BlockTime); !missing {
		out.USDValue = usd
	} else {
		out.PriceMissing = true
		metrics.PriceMissingTotal.WithLabelValues(t.Symbol).Inc()
	}

	p.stats.Enriched.Add(1)
	return out
}

// runShard processes one whale shard serially: perspective transform,
// dedup check, then handoff to the sink queue. Serial processing per
// shard is what guarantees block-time ordering and L1 read-after-write
// within a (chain, whale_address) shard.
func (p *Pipeline) runShard(ctx context.Context, in <-chan event.ClassifiedEvent, stored chan<- storedOp) {
	for ev := range in {
		proj, ok := perspective.Project(ev.Transfer)
		if !ok {
			metrics.PerspectiveSkipped.WithLabelValues(string(ev.Transfer.Chain)).Inc()
			p.stats.Dropped.Add(1)
			continue
		}
		rec := perspective.BuildRecord(ev.Transfer, ev.Classification, proj, p.nowFn().UTC())

		decision := p.suppressor.Check(ctx, rec)
		switch decision.Verdict {
		case dedup.SuppressIncoming:
			p.stats.Suppressed.Add(1)
			p.logSuppression(decision.Suppression)
		case dedup.ReplaceExisting:
			p.stats.Suppressed.Add(1)
			p.logSuppression(decision.Suppression)
			p.suppressor.ApplyReplacement(*decision.Replacement)
			p.registry.Observe(rec.WhaleAddress, rec.Classification, rec.USDValue, rec.TokenSymbol, rec.BlockTime)
			stored <- storedOp{record: *decision.Replacement, replace: true}
		default:
			p.suppressor.Observe(rec)
			p.registry.Observe(rec.WhaleAddress, rec.Classification, rec.USDValue, rec.TokenSymbol, rec.BlockTime)
			stored <- storedOp{record: rec}
		}
	}
}

func (p *Pipeline) store(ctx context.Context, op storedOp) {
	var err error
	if op.replace {
		err = p.sink.Replace(ctx, p.lookback, op.record)
	} else {
		err = p.sink.Store(ctx, op.record)
	}
	if err != nil {
		p.stats.Errors.Add(1)
		p.logger.Error("sink write failed",
			"chain", string(op.record.Chain), "tx_hash", op.record.TxHash, "error", err)
		return
	}
	p.stats.Stored.Add(1)
}

func (p *Pipeline) logSuppression(ev *event.SuppressionEvent) {
	if ev == nil {
		return
	}
	p.logger.Info("near-duplicate suppressed",
		"incoming_hash", ev.IncomingHash,
		"existing_hash", ev.ExistingHash,
		"reason", ev.Reason,
		"pattern", ev.Pattern,
		"time_diff", ev.TimeDiff,
		"usd_diff", ev.USDDiff,
	)
}

// shardFor routes an event to its whale shard. Falls back to from_addr
// when the classification produced no whale-side address.
func shardFor(whaleAddr, fromAddr string, shards int) int {
	addr := whaleAddr
	if addr == "" {
		addr = fromAddr
	}
	h := fnv.New32a()
	h.Write([]byte(addr))
	return int(h.Sum32()) % shards
}

// parseAmount reads a decimal-string amount; an undecodable amount
// counts as zero rather than failing the event; downstream tolerates
// missing fields.
func parseAmount(raw string) float64 {
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}

// priceKey picks the resolver key for a transfer: symbol when known,
// token address otherwise.
func priceKey(t model.RawTransfer) string {
	if t.Symbol != "" {
		return t.Symbol
	}
	return t.TokenAddr
}
