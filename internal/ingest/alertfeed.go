package ingest

import (
	"context"
	"log/slog"

	"github.com/kodascan/whalewatch/internal/domain/model"
)

// StreamTransport is the subset of the Redis Streams client the alert
// feed source needs: tailing reads with offset checkpointing. Both
// redis.Stream and redis.InMemoryStream satisfy this.
type StreamTransport interface {
	ReadJSON(ctx context.Context, streamName, lastID string, dst any) (string, error)
	LoadStreamCheckpoint(ctx context.Context, key string) (string, error)
	PersistStreamCheckpoint(ctx context.Context, key, value string) error
}

// AlertFeedSource implements the "large-value alert feed" source kind
// family: it subscribes to a firehose of pre-filtered whale
// transactions published by an upstream detector onto a Redis stream.
type AlertFeedSource struct {
	name          string
	stream        StreamTransport
	streamName    string
	checkpointKey string
	logger        *slog.Logger
}

func NewAlertFeedSource(name string, stream StreamTransport, streamName string, logger *slog.Logger) *AlertFeedSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertFeedSource{
		name:          name,
		stream:        stream,
		streamName:    streamName,
		checkpointKey: "whalewatch:checkpoint:" + name,
		logger:        logger.With("source", name),
	}
}

func (s *AlertFeedSource) Name() string { return s.name }

func (s *AlertFeedSource) Run(ctx context.Context, out chan<- model.RawTransfer) error {
	lastID, err := s.stream.LoadStreamCheckpoint(ctx, s.checkpointKey)
	if err != nil {
		s.logger.Warn("failed to load stream checkpoint, starting from head", "error", err)
	}

	for {
		var evt DecodedLogEvent
		id, err := s.stream.ReadJSON(ctx, s.streamName, lastID, &evt)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("alert feed read failed", "error", err)
			continue
		}

		transfer := normalizeLogEvent(s.name, evt)
		select {
		case out <- transfer:
		case <-ctx.Done():
			return ctx.Err()
		}

		lastID = id
		if err := s.stream.PersistStreamCheckpoint(ctx, s.checkpointKey, lastID); err != nil {
			s.logger.Warn("failed to persist stream checkpoint", "error", err)
		}
	}
}
