package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// One CounterVec/HistogramVec/GaugeVec block per pipeline component,
// labelled by chain (and source_id/pattern where useful).

var (
	// Ingestion fan-in
	IngestEventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whalewatch",
		Subsystem: "ingest",
		Name:      "events_received_total",
		Help:      "Total raw transfers received from a source",
	}, []string{"chain", "source_id"})

	IngestDecodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whalewatch",
		Subsystem: "ingest",
		Name:      "decode_errors_total",
		Help:      "Total events dropped due to decode errors",
	}, []string{"chain", "source_id"})

	IngestDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whalewatch",
		Subsystem: "ingest",
		Name:      "dropped_total",
		Help:      "Total events dropped by a source's drop-oldest budget",
	}, []string{"chain", "source_id"})

	IngestQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "whalewatch",
		Subsystem: "ingest",
		Name:      "queue_depth",
		Help:      "Current depth of a bounded pipeline stage queue",
	}, []string{"stage"})

	// Enrichment / label provider
	LabelCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whalewatch",
		Subsystem: "labelprovider",
		Name:      "cache_hits_total",
		Help:      "Total address label cache hits",
	}, []string{"chain"})

	LabelCacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whalewatch",
		Subsystem: "labelprovider",
		Name:      "cache_misses_total",
		Help:      "Total address label cache misses",
	}, []string{"chain"})

	LabelRemoteLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whalewatch",
		Subsystem: "labelprovider",
		Name:      "remote_lookups_total",
		Help:      "Total remote explorer label lookups performed",
	}, []string{"chain"})

	LabelRemoteErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whalewatch",
		Subsystem: "labelprovider",
		Name:      "remote_errors_total",
		Help:      "Total remote explorer lookup failures (negative-cached)",
	}, []string{"chain"})

	LabelRateLimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whalewatch",
		Subsystem: "labelprovider",
		Name:      "rate_limit_waits_total",
		Help:      "Total times a remote label lookup waited for the rate limiter",
	}, []string{"chain"})

	PriceMissingTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whalewatch",
		Subsystem: "priceresolver",
		Name:      "missing_total",
		Help:      "Total enrichments that proceeded with usd_value=0 due to missing price",
	}, []string{"symbol"})

	EnrichmentLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "whalewatch",
		Subsystem: "enrichment",
		Name:      "duration_seconds",
		Help:      "Enrichment stage processing duration",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
	}, []string{"chain"})

	EnrichmentTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whalewatch",
		Subsystem: "enrichment",
		Name:      "timeouts_total",
		Help:      "Total enrichment lookups that exceeded their deadline",
	}, []string{"chain"})

	// Classification engine
	ClassificationPhaseLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "whalewatch",
		Subsystem: "classify",
		Name:      "phase_duration_seconds",
		Help:      "Per-phase classification duration",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 8},
	}, []string{"chain", "phase"})

	ClassificationPhaseAbstains = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whalewatch",
		Subsystem: "classify",
		Name:      "phase_abstains_total",
		Help:      "Total phase abstentions",
	}, []string{"chain", "phase"})

	ClassificationPhaseTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whalewatch",
		Subsystem: "classify",
		Name:      "phase_timeouts_total",
		Help:      "Total phases that exceeded the per-phase timeout budget",
	}, []string{"chain", "phase"})

	ClassificationResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whalewatch",
		Subsystem: "classify",
		Name:      "results_total",
		Help:      "Total classifications produced, by final kind",
	}, []string{"chain", "kind"})

	ClassificationEarlyExits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whalewatch",
		Subsystem: "classify",
		Name:      "early_exits_total",
		Help:      "Total classifications short-circuited by an early-exit threshold",
	}, []string{"chain", "phase"})

	ClassificationSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whalewatch",
		Subsystem: "classify",
		Name:      "skipped_total",
		Help:      "Total events dropped as CEX-internal moves",
	}, []string{"chain"})

	// Whale-perspective transform
	PerspectiveSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whalewatch",
		Subsystem: "perspective",
		Name:      "skipped_total",
		Help:      "Total transfers skipped by the whale-perspective transform (CEX-CEX)",
	}, []string{"chain"})

	// Near-duplicate suppressor
	DedupSuppressedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whalewatch",
		Subsystem: "dedup",
		Name:      "suppressed_total",
		Help:      "Total records suppressed as near-duplicates",
	}, []string{"chain", "pattern"})

	DedupSafeguardedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whalewatch",
		Subsystem: "dedup",
		Name:      "safeguarded_total",
		Help:      "Total matches that were NOT suppressed due to a safeguard",
	}, []string{"chain", "reason"})

	DedupLookupFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whalewatch",
		Subsystem: "dedup",
		Name:      "lookup_failures_total",
		Help:      "Total L2 storage lookback failures (fell back to L1-only)",
	}, []string{"chain"})

	DedupMergedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whalewatch",
		Subsystem: "dedup",
		Name:      "merged_total",
		Help:      "Total incoming records that replaced a lower-confidence existing record",
	}, []string{"chain"})

	// Sink
	SinkUpsertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whalewatch",
		Subsystem: "sink",
		Name:      "upserts_total",
		Help:      "Total successful WhaleRecord upserts",
	}, []string{"chain"})

	SinkRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whalewatch",
		Subsystem: "sink",
		Name:      "retries_total",
		Help:      "Total sink retry attempts after a transient failure",
	}, []string{"chain"})

	SinkDeadLettersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whalewatch",
		Subsystem: "sink",
		Name:      "dead_letters_total",
		Help:      "Total records written to the dead-letter queue after permanent failure",
	}, []string{"chain"})

	SinkUpsertLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "whalewatch",
		Subsystem: "sink",
		Name:      "upsert_duration_seconds",
		Help:      "Sink upsert duration including retries",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"chain"})

	// Whale registry
	WhaleRegistrySize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "whalewatch",
		Subsystem: "whaleregistry",
		Name:      "tracked_wallets",
		Help:      "Current number of wallets tracked by the whale registry",
	}, []string{})

	WhaleRegistrySnapshotsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whalewatch",
		Subsystem: "whaleregistry",
		Name:      "snapshots_total",
		Help:      "Total registry snapshots written to disk",
	}, []string{})

	// Supervisor
	SourceHealthStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "whalewatch",
		Subsystem: "supervisor",
		Name:      "source_health_status",
		Help:      "Source health status (0=UNKNOWN, 1=HEALTHY, 2=DEGRADED, 3=UNHEALTHY, 4=INACTIVE)",
	}, []string{"source_id"})

	SourceRestartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whalewatch",
		Subsystem: "supervisor",
		Name:      "restarts_total",
		Help:      "Total source restarts after failure",
	}, []string{"source_id"})

	SourceCircuitState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "whalewatch",
		Subsystem: "supervisor",
		Name:      "circuit_state",
		Help:      "Source circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"source_id"})

	// Alerts
	AlertsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whalewatch",
		Subsystem: "alert",
		Name:      "sent_total",
		Help:      "Total alerts sent",
	}, []string{"channel", "alert_type"})

	AlertsCooldownSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whalewatch",
		Subsystem: "alert",
		Name:      "cooldown_skipped_total",
		Help:      "Total alerts skipped due to cooldown",
	}, []string{"channel", "alert_type"})
)
