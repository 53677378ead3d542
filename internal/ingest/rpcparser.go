package ingest

import (
	"context"
	"log/slog"

	"github.com/kodascan/whalewatch/internal/domain/model"
)

// KnownEventSignature enumerates the log event shapes the RPC parser
// recognizes.
type KnownEventSignature string

const (
	EventSwap                     KnownEventSignature = "Swap"
	EventTransfer                 KnownEventSignature = "Transfer"
	EventSwapExactTokensForTokens KnownEventSignature = "SwapExactTokensForTokens"
)

// RPCClient decodes a transaction's logs against the known event
// signature set. Constructing the actual JSON-RPC client is a Non-goal
// of this module; only the contract matters here.
type RPCClient interface {
	DecodeTransaction(ctx context.Context, chain model.Chain, txHash string) ([]DecodedLogEvent, error)
}

// RPCParserSource implements the "on-chain RPC parser" source kind from
// for a supplied tx_hash it decodes logs using known event
// signatures and emits one event per interesting log. Unlike the other
// three source kinds it is driven on demand rather than continuously;
// callers enqueue tx hashes via Submit.
type RPCParserSource struct {
	name   string
	chain  model.Chain
	client RPCClient
	queue  chan string
	logger *slog.Logger
}

func NewRPCParserSource(name string, chain model.Chain, client RPCClient, queueSize int, logger *slog.Logger) *RPCParserSource {
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RPCParserSource{
		name:   name,
		chain:  chain,
		client: client,
		queue:  make(chan string, queueSize),
		logger: logger.With("source", name),
	}
}

func (s *RPCParserSource) Name() string { return s.name }

// Submit enqueues a transaction hash for decoding. It blocks if the
// internal queue is full rather than drop silently.
func (s *RPCParserSource) Submit(ctx context.Context, txHash string) error {
	select {
	case s.queue <- txHash:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *RPCParserSource) Run(ctx context.Context, out chan<- model.RawTransfer) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case txHash, ok := <-s.queue:
			if !ok {
				return nil
			}
			events, err := s.client.DecodeTransaction(ctx, s.chain, txHash)
			if err != nil {
				s.logger.Warn("rpc decode failed", "tx_hash", txHash, "error", err)
				continue
			}
			for _, evt := range events {
				transfer := normalizeLogEvent(s.name, evt)
				select {
				case out <- transfer:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}
