package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_AllVariablesNonNil(t *testing.T) {
	t.Parallel()

	vars := []struct {
		name string
		val  any
	}{
		{"IngestEventsReceived", IngestEventsReceived},
		{"IngestDecodeErrors", IngestDecodeErrors},
		{"IngestDropped", IngestDropped},
		{"IngestQueueDepth", IngestQueueDepth},
		{"LabelCacheHits", LabelCacheHits},
		{"LabelCacheMisses", LabelCacheMisses},
		{"LabelRemoteLookups", LabelRemoteLookups},
		{"LabelRemoteErrors", LabelRemoteErrors},
		{"LabelRateLimitWaits", LabelRateLimitWaits},
		{"PriceMissingTotal", PriceMissingTotal},
		{"EnrichmentLatency", EnrichmentLatency},
		{"EnrichmentTimeouts", EnrichmentTimeouts},
		{"ClassificationPhaseLatency", ClassificationPhaseLatency},
		{"ClassificationPhaseAbstains", ClassificationPhaseAbstains},
		{"ClassificationPhaseTimeouts", ClassificationPhaseTimeouts},
		{"ClassificationResultsTotal", ClassificationResultsTotal},
		{"ClassificationEarlyExits", ClassificationEarlyExits},
		{"ClassificationSkipped", ClassificationSkipped},
		{"PerspectiveSkipped", PerspectiveSkipped},
		{"DedupSuppressedTotal", DedupSuppressedTotal},
		{"DedupSafeguardedTotal", DedupSafeguardedTotal},
		{"DedupLookupFailures", DedupLookupFailures},
		{"DedupMergedTotal", DedupMergedTotal},
		{"SinkUpsertsTotal", SinkUpsertsTotal},
		{"SinkRetriesTotal", SinkRetriesTotal},
		{"SinkDeadLettersTotal", SinkDeadLettersTotal},
		{"SinkUpsertLatency", SinkUpsertLatency},
		{"WhaleRegistrySize", WhaleRegistrySize},
		{"WhaleRegistrySnapshotsTotal", WhaleRegistrySnapshotsTotal},
		{"SourceHealthStatus", SourceHealthStatus},
		{"SourceRestartsTotal", SourceRestartsTotal},
		{"SourceCircuitState", SourceCircuitState},
		{"AlertsSentTotal", AlertsSentTotal},
		{"AlertsCooldownSkipped", AlertsCooldownSkipped},
	}

	for _, v := range vars {
		assert.NotNil(t, v.val, "%s must not be nil", v.name)
	}
}

func TestMetrics_CountersIncrementWithoutPanicking(t *testing.T) {
	IngestEventsReceived.WithLabelValues("ethereum", "logstream-1").Inc()
	ClassificationResultsTotal.WithLabelValues("ethereum", "BUY").Inc()
	DedupSuppressedTotal.WithLabelValues("ethereum", "mirror").Inc()
	SinkUpsertsTotal.WithLabelValues("ethereum").Inc()
	WhaleRegistrySize.WithLabelValues().Set(42)
}
