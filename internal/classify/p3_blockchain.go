package classify

import (
	"context"
	"log/slog"

	"github.com/kodascan/whalewatch/internal/config"
	"github.com/kodascan/whalewatch/internal/domain/model"
)

// P3Blockchain decodes the transaction
// receipt into SwapFacts for P2 to consume. It never itself casts a
// directional vote — its weight is reserved for future use and applied
// only if a direct P3 classification rule is ever added.
type P3Blockchain struct {
	client ReceiptClient
	logger *slog.Logger
}

func NewP3Blockchain(client ReceiptClient, logger *slog.Logger) *P3Blockchain {
	if logger == nil {
		logger = slog.Default()
	}
	return &P3Blockchain{client: client, logger: logger.With("phase", "p3_blockchain")}
}

func (p *P3Blockchain) Name() string { return "p3_blockchain" }

func (p *P3Blockchain) Weight(cfg config.ClassificationConfig) float64 { return cfg.WeightBlockchain }

// Run always abstains from voting; DecodeFacts is what actually performs
// the receipt decode the engine calls before running P2.
func (p *P3Blockchain) Run(ctx context.Context, in Input) Result {
	return abstain()
}

// DecodeFacts fetches and decodes the receipt for in.Transfer, returning
// SwapFacts{Available: false} on any failure (missing receipt, decode
// error, or a nil client) rather than propagating an error: a missing or
// failed receipt means the phase abstains.
func (p *P3Blockchain) DecodeFacts(ctx context.Context, chain model.Chain, txHash string) SwapFacts {
	if p.client == nil {
		return SwapFacts{Available: false}
	}
	facts, err := p.client.DecodeReceipt(ctx, chain, txHash)
	if err != nil {
		p.logger.Debug("receipt decode failed; abstaining", "tx_hash", txHash, "error", err)
		return SwapFacts{Available: false}
	}
	return facts
}
