package ingest

import (
	"context"
	"log/slog"

	"github.com/kodascan/whalewatch/internal/domain/model"
)

// DecodedLogEvent is one push-transport message already decoded into
// wire fields by the transport client; LogStreamSource is responsible
// only for normalization, not decoding.
type DecodedLogEvent struct {
	Chain        model.Chain
	TxHash       string
	LogIndex     *int64
	BlockTime    int64 // unix seconds
	FromAddr     string
	ToAddr       string
	TokenAddr    string
	Symbol       string
	Amount       string
	Decimals     *int
	NativeValue  string
	GasPriceGwei *int64
}

// LogTransport abstracts the push transport a chain log stream
// subscribes to (e.g. a websocket, a gRPC stream). Constructing one is a
// not built here; only the contract matters.
type LogTransport interface {
	// Subscribe blocks, invoking handle for every decoded event until ctx
	// is done or the transport permanently fails.
	Subscribe(ctx context.Context, handle func(DecodedLogEvent)) error
}

// LogStreamSource implements the "chain log stream" source kind from
// it subscribes to transfer/swap events over a push transport
// and emits one RawTransfer per decoded event.
type LogStreamSource struct {
	name      string
	transport LogTransport
	logger    *slog.Logger
}

func NewLogStreamSource(name string, transport LogTransport, logger *slog.Logger) *LogStreamSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogStreamSource{name: name, transport: transport, logger: logger.With("source", name)}
}

func (s *LogStreamSource) Name() string { return s.name }

func (s *LogStreamSource) Run(ctx context.Context, out chan<- model.RawTransfer) error {
	return s.transport.Subscribe(ctx, func(evt DecodedLogEvent) {
		transfer := normalizeLogEvent(s.name, evt)
		select {
		case out <- transfer:
		case <-ctx.Done():
		}
	})
}

func normalizeLogEvent(sourceID string, evt DecodedLogEvent) model.RawTransfer {
	return model.RawTransfer{
		SourceID:    sourceID,
		Chain:       evt.Chain,
		TxHash:      evt.TxHash,
		LogIndex:    evt.LogIndex,
		BlockTime:   unixToTime(evt.BlockTime),
		FromAddr:    lowerAddr(evt.FromAddr),
		ToAddr:      lowerAddr(evt.ToAddr),
		TokenAddr:   lowerAddr(evt.TokenAddr),
		Symbol:      evt.Symbol,
		Amount:      evt.Amount,
		Decimals:    evt.Decimals,
		NativeValue: evt.NativeValue,
		GasPrice:    evt.GasPriceGwei,
	}
}
