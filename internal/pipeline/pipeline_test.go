package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kodascan/whalewatch/internal/alert"
	"github.com/kodascan/whalewatch/internal/classify"
	"github.com/kodascan/whalewatch/internal/config"
	"github.com/kodascan/whalewatch/internal/dedup"
	"github.com/kodascan/whalewatch/internal/domain/model"
	"github.com/kodascan/whalewatch/internal/ingest"
	"github.com/kodascan/whalewatch/internal/labelprovider"
	"github.com/kodascan/whalewatch/internal/priceresolver"
	"github.com/kodascan/whalewatch/internal/sink"
	"github.com/kodascan/whalewatch/internal/store"
	"github.com/kodascan/whalewatch/internal/supervisor"
	"github.com/kodascan/whalewatch/internal/whaleregistry"
)

const (
	binanceHot = "0x28c6c06298d514db089934071355e5743bf21d60"
	binanceTwo = "0x21a31ee1afc51d94c2efccaa2092ad1028285549"
	coinbase   = "0x71660c4005ba85c37ccec55d0c4493e66fe775d3"
)

// offPeak is outside UTC 13-21, so no peak-hour boost skews scenario
// confidences.
var offPeak = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

// fixedSource emits a scripted list of transfers, then idles until
// cancelled.
type fixedSource struct {
	name      string
	transfers []model.RawTransfer
}

func (s *fixedSource) Name() string { return s.name }

func (s *fixedSource) Run(ctx context.Context, out chan<- model.RawTransfer) error {
	for _, t := range s.transfers {
		t.SourceID = s.name
		select {
		case out <- t:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

// memRecordRepo is an in-memory WhaleRecordRepository with the
// max-confidence upsert contract.
type memRecordRepo struct {
	mu      sync.Mutex
	records map[model.RecordKey]model.WhaleRecord
}

func newMemRecordRepo() *memRecordRepo {
	return &memRecordRepo{records: make(map[model.RecordKey]model.WhaleRecord)}
}

func (m *memRecordRepo) Upsert(_ context.Context, rec model.WhaleRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.records[rec.Key()]
	if !ok || rec.Confidence >= existing.Confidence {
		m.records[rec.Key()] = rec
	}
	return !ok, nil
}

func (m *memRecordRepo) Get(_ context.Context, key model.RecordKey) (*model.WhaleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[key]; ok {
		return &rec, nil
	}
	return nil, nil
}

func (m *memRecordRepo) all() []model.WhaleRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.WhaleRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	return out
}

func (m *memRecordRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type staticPrices struct {
	prices map[string]float64
}

func (s *staticPrices) Price(_ context.Context, symbolOrAddr string) (float64, error) {
	if p, ok := s.prices[symbolOrAddr]; ok {
		return p, nil
	}
	return 0, errors.New("no price")
}

type failingRemote struct{}

func (failingRemote) Lookup(context.Context, model.Chain, string) (labelprovider.RemoteLabel, error) {
	return labelprovider.RemoteLabel{}, errors.New("explorer unreachable")
}

type failingPrices struct{}

func (failingPrices) Price(context.Context, string) (float64, error) {
	return 0, errors.New("price feed down")
}

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		FanInQueueSize:          64,
		EnrichmentWorkers:       2,
		EnrichmentQueueSize:     32,
		ClassificationWorkers:   2,
		ClassificationQueueSize: 32,
		PerspectiveShardCount:   8,
		StoredQueueSize:         32,
		SinkWorkers:             2,
		LabelLookupTimeout:      100 * time.Millisecond,
		ReceiptLookupTimeout:    100 * time.Millisecond,
		PhaseTimeout:            time.Second,
		DrainTimeout:            5 * time.Second,
	}
}

func buildPipeline(t *testing.T, sources []ingest.Source, prices priceresolver.PriceSource, remote labelprovider.RemoteLookup, repo store.WhaleRecordRepository) *Pipeline {
	t.Helper()

	labels := labelprovider.New(labelprovider.Config{
		CacheCapacity:    1024,
		TTL:              time.Hour,
		NegativeCacheTTL: time.Minute,
		RemoteRatePerSec: 100,
		BloomExpected:    10_000,
		BloomFPR:         0.001,
	}, remote, nil, nil)

	resolver := priceresolver.New(priceresolver.Config{StalenessBudget: 2 * time.Minute}, prices, nil)

	registry, err := whaleregistry.New(filepath.Join(t.TempDir(), "registry.json"), time.Minute, nil)
	require.NoError(t, err)

	classCfg := config.ClassificationConfig{
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
	engine := classify.NewEngine(nil, registry, nil, classCfg, time.Second, nil)

	suppressor := dedup.New(dedup.Config{
		Match:      dedup.DefaultMatchConfig(),
		L1RingSize: 50,
		ShardCount: 8,
	}, nil, nil)

	snk := sink.New(repo, nil, &alert.NoopAlerter{}, sink.DefaultRetryPolicy(), nil, nil)
	sup := supervisor.New(sources, nil, nil)

	return New(testPipelineConfig(), sup, labels, resolver, engine, suppressor, snk, nil, registry, nil)
}

func runPipeline(t *testing.T, p *Pipeline, waitFor func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	deadline := time.Now().Add(10 * time.Second)
	for !waitFor() {
		if time.Now().After(deadline) {
			cancel()
			<-done
			t.Fatal("pipeline never reached expected state")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(10 * time.Second):
		t.Fatal("pipeline did not drain after cancel")
	}
}

func TestPipeline_CEXWithdrawalStoredAsBuy(t *testing.T) {
	// Binance hot wallet -> EOA, 50k USDC at 20 gwei.
	gas := int64(20)
	repo := newMemRecordRepo()
	src := &fixedSource{name: "logstream-eth", transfers: []model.RawTransfer{{
		Chain:     model.ChainEthereum,
		TxHash:    "0xs1",
		BlockTime: offPeak,
		FromAddr:  binanceHot,
		ToAddr:    "0xabc0000000000000000000000000000000000123",
		Symbol:    "USDC",
		Amount:    "50000",
		GasPrice:  &gas,
	}}}
	p := buildPipeline(t, []ingest.Source{src}, &staticPrices{}, nil, repo)

	runPipeline(t, p, func() bool { return repo.count() == 1 })

	rec := repo.all()[0]
	assert.Equal(t, model.KindBuy, rec.Classification)
	assert.InDelta(t, 0.90, rec.Confidence, 1e-9)
	assert.Equal(t, "0xabc0000000000000000000000000000000000123", rec.WhaleAddress)
	assert.Equal(t, model.EntityCEX, rec.CounterpartyKind)
	assert.True(t, rec.IsCEXTransaction)
	assert.Equal(t, float64(50_000), rec.USDValue)
	assert.Contains(t, rec.Evidence, "CEX withdrawal from Binance")
	assert.Equal(t, "logstream-eth", rec.SourceID)
}

func TestPipeline_CEXDepositStoredAsSell(t *testing.T) {
	// EOA -> Coinbase, 10 ETH at $3k, 120 gwei.
	gas := int64(120)
	repo := newMemRecordRepo()
	src := &fixedSource{name: "alertfeed", transfers: []model.RawTransfer{{
		Chain:     model.ChainEthereum,
		TxHash:    "0xs2",
		BlockTime: offPeak,
		FromAddr:  "0xdef0000000000000000000000000000000000456",
		ToAddr:    coinbase,
		Symbol:    "ETH",
		Amount:    "10",
		GasPrice:  &gas,
	}}}
	p := buildPipeline(t, []ingest.Source{src}, &staticPrices{prices: map[string]float64{"ETH": 3000}}, nil, repo)

	runPipeline(t, p, func() bool { return repo.count() == 1 })

	rec := repo.all()[0]
	assert.Equal(t, model.KindSell, rec.Classification)
	assert.GreaterOrEqual(t, rec.Confidence, 0.95)
	assert.Equal(t, "0xdef0000000000000000000000000000000000456", rec.WhaleAddress)
	assert.Equal(t, model.EntityCEX, rec.CounterpartyKind)
	assert.Equal(t, float64(30_000), rec.USDValue)
}

func TestPipeline_InternalCEXMoveDropped(t *testing.T) {
	// Binance -> Binance plus one storable event to detect drain.
	repo := newMemRecordRepo()
	src := &fixedSource{name: "logstream-eth", transfers: []model.RawTransfer{
		{
			Chain:     model.ChainEthereum,
			TxHash:    "0xs3",
			BlockTime: offPeak,
			FromAddr:  binanceHot,
			ToAddr:    binanceTwo,
			Symbol:    "USDC",
			Amount:    "1000000",
		},
		{
			Chain:     model.ChainEthereum,
			TxHash:    "0xs3-follow",
			BlockTime: offPeak.Add(time.Minute),
			FromAddr:  binanceHot,
			ToAddr:    "0xabc0000000000000000000000000000000000123",
			Symbol:    "USDC",
			Amount:    "100",
		},
	}}
	p := buildPipeline(t, []ingest.Source{src}, &staticPrices{}, nil, repo)

	runPipeline(t, p, func() bool {
		return repo.count() == 1 && p.Stats().Dropped.Load() == 1
	})

	_, ok := repo.records[model.RecordKey{Chain: model.ChainEthereum, TxHash: "0xs3"}]
	assert.False(t, ok, "internal CEX move must not be stored")
	assert.EqualValues(t, 1, p.Stats().Dropped.Load())
}

func TestPipeline_SurvivesAllNetworkFailures(t *testing.T) {
	// Remote labels and prices both down; records still land
	// with UNKNOWN labels and the price_missing tag.
	repo := newMemRecordRepo()
	src := &fixedSource{name: "rpcparser", transfers: []model.RawTransfer{{
		Chain:     model.ChainEthereum,
		TxHash:    "0xp8",
		BlockTime: offPeak,
		FromAddr:  "0xaaa0000000000000000000000000000000000001",
		ToAddr:    "0xbbb0000000000000000000000000000000000002",
		Symbol:    "OBSCURE",
		Amount:    "42",
	}}}
	p := buildPipeline(t, []ingest.Source{src}, failingPrices{}, failingRemote{}, repo)

	runPipeline(t, p, func() bool { return repo.count() == 1 })

	rec := repo.all()[0]
	assert.Equal(t, model.KindTransfer, rec.Classification)
	assert.Zero(t, rec.USDValue)
	assert.Equal(t, "0xaaa0000000000000000000000000000000000001", rec.WhaleAddress)
}

func TestPipeline_MirrorDuplicateSuppressedEndToEnd(t *testing.T) {
	// Two sources report the same 100k USDC trade
	// from opposite perspectives within 3s; one record survives.
	repo := newMemRecordRepo()
	srcA := &fixedSource{name: "feed-a", transfers: []model.RawTransfer{{
		Chain:     model.ChainEthereum,
		TxHash:    "0xmirror-a",
		BlockTime: offPeak,
		FromAddr:  binanceHot,
		ToAddr:    "0xabc0000000000000000000000000000000000123",
		Symbol:    "USDC",
		Amount:    "100000",
	}}}
	// Same whale and token, mirror direction, 3s later. Labeling makes
	// this a deposit (SELL) while the first is a withdrawal (BUY).
	srcB := &fixedSource{name: "feed-b", transfers: []model.RawTransfer{{
		Chain:     model.ChainEthereum,
		TxHash:    "0xmirror-b",
		BlockTime: offPeak.Add(3 * time.Second),
		FromAddr:  "0xabc0000000000000000000000000000000000123",
		ToAddr:    coinbase,
		Symbol:    "USDC",
		Amount:    "100000",
	}}}
	p := buildPipeline(t, []ingest.Source{srcA, srcB}, &staticPrices{}, nil, repo)

	runPipeline(t, p, func() bool {
		return p.Stats().Stored.Load()+p.Stats().Suppressed.Load() >= 2
	})

	assert.Equal(t, 1, repo.count(), "mirror duplicate must collapse to one record")
	assert.EqualValues(t, 1, p.Stats().Suppressed.Load())
}

func TestParseAmount(t *testing.T) {
	assert.Equal(t, float64(0), parseAmount(""))
	assert.Equal(t, float64(0), parseAmount("bogus"))
	assert.Equal(t, 50_000.0, parseAmount("50000"))
	assert.Equal(t, 1.5, parseAmount("1.5"))
}
