package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kodascan/whalewatch/internal/domain/model"
)

var baseTime = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func record(tx string, kind model.ClassificationKind, usd, confidence float64, at time.Time) model.WhaleRecord {
	return model.WhaleRecord{
		TxHash:           tx,
		Chain:            model.ChainEthereum,
		BlockTime:        at,
		WhaleAddress:     "0xwhale",
		CounterpartyKind: model.EntityCEX,
		IsCEXTransaction: true,
		Classification:   kind,
		Confidence:       confidence,
		TokenSymbol:      "USDC",
		USDValue:         usd,
	}
}

func newTestSuppressor(lookback *fakeLookback) *Suppressor {
	cfg := Config{Match: DefaultMatchConfig(), L1RingSize: 50, ShardCount: 32}
	if lookback == nil {
		return New(cfg, nil, nil)
	}
	return New(cfg, lookback, nil)
}

type fakeLookback struct {
	records  []model.WhaleRecord
	err      error
	replaced []model.WhaleRecord
}

func (f *fakeLookback) RecentByKey(_ context.Context, key model.DedupKey, since time.Time, limit int) ([]model.WhaleRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.WhaleRecord
	for _, r := range f.records {
		if r.DedupGroupKey() == key && !r.BlockTime.Before(since) {
			out = append(out, r)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeLookback) Replace(_ context.Context, rec model.WhaleRecord) error {
	f.replaced = append(f.replaced, rec)
	return nil
}

func TestCheck_MirrorDuplicateSuppressed(t *testing.T) {
	// BUY at T, mirror SELL at T+3s, same whale/token/USD.
	s := newTestSuppressor(nil)
	existing := record("0xA", model.KindBuy, 100_000, 0.90, baseTime)
	s.Observe(existing)

	incoming := record("0xB", model.KindSell, 100_000, 0.80, baseTime.Add(3*time.Second))
	d := s.Check(context.Background(), incoming)

	require.Equal(t, SuppressIncoming, d.Verdict)
	assert.Equal(t, PatternMirror, d.Pattern)
	require.NotNil(t, d.Suppression)
	assert.Equal(t, "0xB", d.Suppression.IncomingHash)
	assert.Equal(t, "0xA", d.Suppression.ExistingHash)
	assert.Equal(t, 3*time.Second, d.Suppression.TimeDiff)
}

func TestCheck_SafeguardLargeValueStoresBoth(t *testing.T) {
	// Same mirror pattern but $6M; both records survive.
	s := newTestSuppressor(nil)
	s.Observe(record("0xA", model.KindBuy, 6_000_000, 0.90, baseTime))

	incoming := record("0xB", model.KindSell, 6_000_000, 0.80, baseTime.Add(3*time.Second))
	d := s.Check(context.Background(), incoming)
	assert.Equal(t, StoreNew, d.Verdict)
}

func TestCheck_ProtocolKindsNeverSuppressed(t *testing.T) {
	s := newTestSuppressor(nil)
	for _, kind := range []model.ClassificationKind{
		model.KindDeFi, model.KindLiquidity, model.KindBridge, model.KindStaking,
	} {
		s.Observe(record("0xA-"+string(kind), kind, 100_000, 0.90, baseTime))
		incoming := record("0xB-"+string(kind), model.KindTransfer, 100_000, 0.50, baseTime.Add(time.Second))
		d := s.Check(context.Background(), incoming)
		assert.Equal(t, StoreNew, d.Verdict, "kind=%s", kind)
	}
}

func TestCheck_OutsideWindowNotMatched(t *testing.T) {
	s := newTestSuppressor(nil)
	s.Observe(record("0xA", model.KindBuy, 100_000, 0.90, baseTime))

	incoming := record("0xB", model.KindSell, 100_000, 0.80, baseTime.Add(11*time.Second))
	d := s.Check(context.Background(), incoming)
	assert.Equal(t, StoreNew, d.Verdict)
}

func TestCheck_HigherConfidenceIncomingReplacesExisting(t *testing.T) {
	s := newTestSuppressor(nil)
	existing := record("0xA", model.KindTransfer, 100_000, 0.40, baseTime)
	s.Observe(existing)

	incoming := record("0xB", model.KindBuy, 100_001, 0.92, baseTime.Add(2*time.Second))
	d := s.Check(context.Background(), incoming)

	require.Equal(t, ReplaceExisting, d.Verdict)
	assert.Equal(t, PatternShadow, d.Pattern)
	require.NotNil(t, d.Replacement)
	// Replacement keeps the existing row's key and the earliest block time.
	assert.Equal(t, "0xA", d.Replacement.TxHash)
	assert.Equal(t, baseTime, d.Replacement.BlockTime)
	assert.Equal(t, model.KindBuy, d.Replacement.Classification)
	assert.Equal(t, 0.92, d.Replacement.Confidence)
}

func TestCheck_CounterpartyAndCEXFlagMismatch(t *testing.T) {
	s := newTestSuppressor(nil)
	a := record("0xA", model.KindBuy, 50_000, 0.90, baseTime)
	s.Observe(a)

	mismatch := record("0xB", model.KindBuy, 50_000, 0.70, baseTime.Add(time.Second))
	mismatch.CounterpartyKind = model.EntityDEX
	d := s.Check(context.Background(), mismatch)
	require.Equal(t, SuppressIncoming, d.Verdict)
	assert.Equal(t, PatternCounterpartyMismatch, d.Pattern)

	flag := record("0xC", model.KindBuy, 50_000, 0.70, baseTime.Add(time.Second))
	flag.IsCEXTransaction = false
	d = s.Check(context.Background(), flag)
	require.Equal(t, SuppressIncoming, d.Verdict)
	assert.Equal(t, PatternCEXFlagMismatch, d.Pattern)
}

func TestCheck_USDToleranceBands(t *testing.T) {
	s := newTestSuppressor(nil)
	s.Observe(record("0xA", model.KindBuy, 100_000, 0.90, baseTime))

	// Within $5 absolute tolerance.
	d := s.Check(context.Background(), record("0xB", model.KindSell, 100_004, 0.80, baseTime.Add(time.Second)))
	assert.Equal(t, SuppressIncoming, d.Verdict)

	// Within 0.15% relative tolerance ($100 on $100k).
	d = s.Check(context.Background(), record("0xC", model.KindSell, 100_100, 0.80, baseTime.Add(time.Second)))
	assert.Equal(t, SuppressIncoming, d.Verdict)

	// Beyond both tolerances.
	d = s.Check(context.Background(), record("0xD", model.KindSell, 101_000, 0.80, baseTime.Add(time.Second)))
	assert.Equal(t, StoreNew, d.Verdict)
}

func TestCheck_L2LookbackFindsStoredDuplicate(t *testing.T) {
	lookback := &fakeLookback{
		records: []model.WhaleRecord{record("0xA", model.KindBuy, 100_000, 0.90, baseTime)},
	}
	s := newTestSuppressor(lookback)

	incoming := record("0xB", model.KindSell, 100_000, 0.80, baseTime.Add(3*time.Second))
	d := s.Check(context.Background(), incoming)
	assert.Equal(t, SuppressIncoming, d.Verdict)
}

func TestCheck_L2FailureFallsBackToL1Only(t *testing.T) {
	lookback := &fakeLookback{err: errors.New("connection refused")}
	s := newTestSuppressor(lookback)

	// Nothing in L1: storage failure must degrade, not block or error.
	d := s.Check(context.Background(), record("0xB", model.KindSell, 100_000, 0.80, baseTime))
	assert.Equal(t, StoreNew, d.Verdict)

	// With the duplicate in L1, suppression still works under L2 failure.
	s.Observe(record("0xA", model.KindBuy, 100_000, 0.90, baseTime))
	d = s.Check(context.Background(), record("0xC", model.KindSell, 100_000, 0.80, baseTime.Add(time.Second)))
	assert.Equal(t, SuppressIncoming, d.Verdict)
}

func TestCheck_SameTxHashIsNotANearDuplicate(t *testing.T) {
	s := newTestSuppressor(nil)
	s.Observe(record("0xA", model.KindBuy, 100_000, 0.90, baseTime))

	// Re-report of the same hash is handled by upsert idempotence, not dedup.
	d := s.Check(context.Background(), record("0xA", model.KindSell, 100_000, 0.95, baseTime.Add(time.Second)))
	assert.Equal(t, StoreNew, d.Verdict)
}

func TestRecordRing_EvictsOldest(t *testing.T) {
	ring := newRecordRing(3)
	for i, tx := range []string{"0x1", "0x2", "0x3", "0x4"} {
		ring.add(record(tx, model.KindBuy, float64(i), 0.5, baseTime))
	}
	var seen []string
	ring.each(func(r *model.WhaleRecord) bool {
		seen = append(seen, r.TxHash)
		return true
	})
	assert.Len(t, seen, 3)
	assert.NotContains(t, seen, "0x1")
	assert.Contains(t, seen, "0x4")
}

func TestCleanup_DryRunCountsWithoutWriting(t *testing.T) {
	repo := &fakeCleanupRepo{records: []model.WhaleRecord{
		record("0xA", model.KindBuy, 100_000, 0.90, baseTime),
		record("0xB", model.KindSell, 100_000, 0.80, baseTime.Add(3*time.Second)),
	}}
	lookback := &fakeLookback{}

	report, err := Cleanup(context.Background(), DefaultMatchConfig(), repo, lookback, baseTime.Add(-time.Hour), 1000, true, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 1, report.Deleted)
	assert.Empty(t, repo.deleted)
	assert.Empty(t, lookback.replaced)
}

func TestCleanup_LiveDeletesLoserAndMergesWinner(t *testing.T) {
	repo := &fakeCleanupRepo{records: []model.WhaleRecord{
		record("0xA", model.KindTransfer, 100_000, 0.40, baseTime),
		record("0xB", model.KindBuy, 100_000, 0.92, baseTime.Add(2*time.Second)),
	}}
	lookback := &fakeLookback{}

	report, err := Cleanup(context.Background(), DefaultMatchConfig(), repo, lookback, baseTime.Add(-time.Hour), 1000, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deleted)
	assert.Equal(t, 1, report.Merged)
	require.Len(t, repo.deleted, 1)
	assert.Equal(t, "0xB", repo.deleted[0].TxHash)
	require.Len(t, lookback.replaced, 1)
	// The earlier row keeps its key but takes the winner's classification.
	assert.Equal(t, "0xA", lookback.replaced[0].TxHash)
	assert.Equal(t, model.KindBuy, lookback.replaced[0].Classification)
}

type fakeCleanupRepo struct {
	records []model.WhaleRecord
	deleted []model.RecordKey
}

func (f *fakeCleanupRepo) ListSince(_ context.Context, since time.Time, limit int) ([]model.WhaleRecord, error) {
	var out []model.WhaleRecord
	for _, r := range f.records {
		if !r.BlockTime.Before(since) {
			out = append(out, r)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeCleanupRepo) Delete(_ context.Context, key model.RecordKey) error {
	f.deleted = append(f.deleted, key)
	return nil
}
