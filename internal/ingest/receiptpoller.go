package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/kodascan/whalewatch/internal/domain/model"
	"github.com/kodascan/whalewatch/internal/store"
)

// ExplorerClient fetches confirmed transfers of a watched token list from
// a canonical block explorer. Constructing one (HTTP client, API key
// rotation, pagination) is not built here; only the contract
// matters here.
type ExplorerClient interface {
	// ConfirmedTransfers returns every confirmed transfer of a watched
	// token since sinceBlock (exclusive), oldest first, along with the
	// highest block number observed in the batch.
	ConfirmedTransfers(ctx context.Context, chain model.Chain, tokens []string, sinceBlock int64) ([]DecodedLogEvent, int64, error)
}

// ReceiptPollerSource implements the "chain receipt poller" source kind
// family: it polls the canonical block explorer for confirmed
// transfers of a watched token list since the last high-watermark.
type ReceiptPollerSource struct {
	name       string
	chain      model.Chain
	tokens     []string
	client     ExplorerClient
	watermarks store.HighWatermarkRepository
	interval   time.Duration
	logger     *slog.Logger
	nowFn      func() time.Time
}

func NewReceiptPollerSource(name string, chain model.Chain, tokens []string, client ExplorerClient, watermarks store.HighWatermarkRepository, interval time.Duration, logger *slog.Logger) *ReceiptPollerSource {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReceiptPollerSource{
		name:       name,
		chain:      chain,
		tokens:     tokens,
		client:     client,
		watermarks: watermarks,
		interval:   interval,
		logger:     logger.With("source", name),
		nowFn:      time.Now,
	}
}

func (s *ReceiptPollerSource) Name() string { return s.name }

func (s *ReceiptPollerSource) Run(ctx context.Context, out chan<- model.RawTransfer) error {
	since, err := s.loadWatermark(ctx)
	if err != nil {
		s.logger.Warn("failed to load watermark, starting from zero", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		events, highestBlock, err := s.client.ConfirmedTransfers(ctx, s.chain, s.tokens, since)
		if err != nil {
			s.logger.Warn("poll failed", "error", err)
		} else {
			for _, evt := range events {
				transfer := normalizeLogEvent(s.name, evt)
				select {
				case out <- transfer:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if highestBlock > since {
				since = highestBlock
				if err := s.persistWatermark(ctx, since); err != nil {
					s.logger.Warn("failed to persist watermark", "error", err)
				}
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *ReceiptPollerSource) loadWatermark(ctx context.Context) (int64, error) {
	if s.watermarks == nil {
		return 0, nil
	}
	wm, err := s.watermarks.Get(ctx, s.name)
	if err != nil {
		return 0, err
	}
	if wm == nil {
		return 0, nil
	}
	return wm.LastBlock, nil
}

func (s *ReceiptPollerSource) persistWatermark(ctx context.Context, block int64) error {
	if s.watermarks == nil {
		return nil
	}
	return s.watermarks.Set(ctx, store.Watermark{SourceID: s.name, LastBlock: block, LastTime: s.nowFn()})
}
