package model

import "time"

// RawTransfer is an ingested transfer as reported by exactly one source.
// (chain, tx_hash, log_index) uniquely identifies the underlying event
// across sources; a given RawTransfer is produced once and never mutated.
type RawTransfer struct {
	SourceID    string
	Chain       Chain
	TxHash      string
	LogIndex    *int64
	BlockTime   time.Time
	FromAddr    string
	ToAddr      string
	TokenAddr   string
	Symbol      string
	Amount      string // decimal string, base units already applied where known
	Decimals    *int
	NativeValue string // native-currency value if applicable (e.g. ETH amount for a gas-denominated transfer)
	GasPrice    *int64 // gwei
}

// Key returns the unique identity of the underlying on-chain event.
func (r RawTransfer) Key() TransferKey {
	return TransferKey{Chain: r.Chain, TxHash: r.TxHash, LogIndex: r.LogIndex}
}

// TransferKey is the natural key for a raw on-chain event.
type TransferKey struct {
	Chain    Chain
	TxHash   string
	LogIndex *int64
}
