// Package sink is the idempotent storage writer. Every
// record is upserted on (chain, tx_hash) with exponential-backoff
// retries; permanent failures land in the dead-letter queue with the
// original payload. Successful writes bump the in-memory sentiment
// counters and emit one line-delimited JSON audit event.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/kodascan/whalewatch/internal/alert"
	"github.com/kodascan/whalewatch/internal/domain/model"
	"github.com/kodascan/whalewatch/internal/metrics"
	"github.com/kodascan/whalewatch/internal/pipelineerr"
	"github.com/kodascan/whalewatch/internal/store"
	"github.com/kodascan/whalewatch/internal/tracing"
)

// RetryPolicy is the sink's backoff schedule: base 200ms, factor 2,
// cap 30s, max 5 attempts.
type RetryPolicy struct {
	Base        time.Duration
	Factor      float64
	Cap         time.Duration
	MaxAttempts int
}

// DefaultRetryPolicy returns the standard sink schedule.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Base: 200 * time.Millisecond, Factor: 2, Cap: 30 * time.Second, MaxAttempts: 5}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.Base
	for i := 0; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Factor)
		if d >= p.Cap {
			return p.Cap
		}
	}
	return d
}

// Sink writes whale records to storage.
type Sink struct {
	records    store.WhaleRecordRepository
	deadLetter store.DeadLetterRepository
	alerter    alert.Alerter
	policy     RetryPolicy
	sentiment  *SentimentCounters
	audit      *AuditWriter
	logger     *slog.Logger
	sleepFn    func(context.Context, time.Duration) error
}

func New(records store.WhaleRecordRepository, deadLetter store.DeadLetterRepository, alerter alert.Alerter, policy RetryPolicy, audit *AuditWriter, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	if alerter == nil {
		alerter = &alert.NoopAlerter{}
	}
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}
	return &Sink{
		records:    records,
		deadLetter: deadLetter,
		alerter:    alerter,
		policy:     policy,
		sentiment:  NewSentimentCounters(),
		audit:      audit,
		logger:     logger.With("component", "sink"),
		sleepFn:    sleepCtx,
	}
}

// Sentiment exposes the in-memory counters the sentiment aggregator reads.
func (s *Sink) Sentiment() *SentimentCounters { return s.sentiment }

// Store upserts rec, retrying transient failures. On permanent failure
// the record goes to the dead-letter queue and Store returns nil: the
// pipeline must stay live no matter how broken storage is.
func (s *Sink) Store(ctx context.Context, rec model.WhaleRecord) error {
	ctx, span := tracing.Tracer("sink").Start(ctx, "sink.Store")
	defer span.End()

	chain := string(rec.Chain)
	start := time.Now()
	defer func() {
		metrics.SinkUpsertLatency.WithLabelValues(chain).Observe(time.Since(start).Seconds())
	}()

	var lastErr error
	for attempt := 0; attempt < s.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			metrics.SinkRetriesTotal.WithLabelValues(chain).Inc()
			if err := s.sleepFn(ctx, s.policy.delay(attempt-1)); err != nil {
				return err
			}
		}

		_, err := s.records.Upsert(ctx, rec)
		if err == nil {
			metrics.SinkUpsertsTotal.WithLabelValues(chain).Inc()
			s.sentiment.Record(rec.TokenSymbol, rec.Classification)
			s.emitAudit(rec)
			return nil
		}
		lastErr = err

		if !pipelineerr.Classify(err).IsTransient() {
			break
		}
		s.logger.Warn("transient sink failure, retrying",
			"chain", chain, "tx_hash", rec.TxHash, "attempt", attempt+1, "error", err)
	}

	return s.toDeadLetter(ctx, rec, lastErr)
}

// Replace overwrites an existing record in place via the lookback
// repository semantics, retried the same way as Store. Used by the
// dedup merge policy when the incoming record wins.
func (s *Sink) Replace(ctx context.Context, lookback store.DedupLookbackRepository, rec model.WhaleRecord) error {
	chain := string(rec.Chain)
	var lastErr error
	for attempt := 0; attempt < s.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			metrics.SinkRetriesTotal.WithLabelValues(chain).Inc()
			if err := s.sleepFn(ctx, s.policy.delay(attempt-1)); err != nil {
				return err
			}
		}
		err := lookback.Replace(ctx, rec)
		if err == nil {
			s.emitAudit(rec)
			return nil
		}
		lastErr = err
		if !pipelineerr.Classify(err).IsTransient() {
			break
		}
	}
	return s.toDeadLetter(ctx, rec, lastErr)
}

func (s *Sink) toDeadLetter(ctx context.Context, rec model.WhaleRecord, cause error) error {
	metrics.SinkDeadLettersTotal.WithLabelValues(string(rec.Chain)).Inc()

	payload, err := json.Marshal(rec)
	if err != nil {
		payload = []byte(fmt.Sprintf(`{"tx_hash":%q,"marshal_error":%q}`, rec.TxHash, err.Error()))
	}
	entry := store.DeadLetterEntry{
		Chain:     rec.Chain,
		TxHash:    rec.TxHash,
		Payload:   payload,
		LastError: cause.Error(),
		FailedAt:  time.Now().UTC(),
	}
	if s.deadLetter != nil {
		if dlqErr := s.deadLetter.Write(ctx, entry); dlqErr != nil {
			s.logger.Error("dead-letter write failed, record lost",
				"chain", string(rec.Chain), "tx_hash", rec.TxHash,
				"cause", cause, "dlq_error", dlqErr)
			return dlqErr
		}
	}

	s.logger.Error("record dead-lettered after exhausting retries",
		"chain", string(rec.Chain), "tx_hash", rec.TxHash, "cause", cause)
	_ = s.alerter.Send(ctx, alert.Alert{
		Type:    alert.AlertTypeDeadLetter,
		Chain:   string(rec.Chain),
		Title:   "whale record dead-lettered",
		Message: cause.Error(),
		Fields:  map[string]string{"tx_hash": rec.TxHash, "token": rec.TokenSymbol},
	})
	return nil
}

func (s *Sink) emitAudit(rec model.WhaleRecord) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Emit(rec); err != nil {
		s.logger.Warn("audit event emission failed", "tx_hash", rec.TxHash, "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// AuditWriter emits one JSON line per stored record, the audit trail
// downstream consumers tail.
type AuditWriter struct {
	mu  sync.Mutex
	out io.Writer
}

func NewAuditWriter(out io.Writer) *AuditWriter {
	return &AuditWriter{out: out}
}

type auditEvent struct {
	Chain            string    `json:"chain"`
	TxHash           string    `json:"tx_hash"`
	BlockTime        time.Time `json:"block_time"`
	WhaleAddress     string    `json:"whale_address,omitempty"`
	Classification   string    `json:"classification"`
	Confidence       float64   `json:"confidence"`
	TokenSymbol      string    `json:"token_symbol"`
	USDValue         float64   `json:"usd_value"`
	IsCEXTransaction bool      `json:"is_cex_transaction"`
	SourceID         string    `json:"source_id"`
}

func (w *AuditWriter) Emit(rec model.WhaleRecord) error {
	line, err := json.Marshal(auditEvent{
		Chain:            string(rec.Chain),
		TxHash:           rec.TxHash,
		BlockTime:        rec.BlockTime,
		WhaleAddress:     rec.WhaleAddress,
		Classification:   string(rec.Classification),
		Confidence:       rec.Confidence,
		TokenSymbol:      rec.TokenSymbol,
		USDValue:         rec.USDValue,
		IsCEXTransaction: rec.IsCEXTransaction,
		SourceID:         rec.SourceID,
	})
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.out.Write(line); err != nil {
		return err
	}
	_, err = w.out.Write([]byte("\n"))
	return err
}
