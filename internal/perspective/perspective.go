// Package perspective implements the pure projection from a
// classified (from, to) transfer into the whale-perspective
// (whale, counterparty, counterparty_kind, direction) view. No I/O.
package perspective

import (
	"time"

	"github.com/kodascan/whalewatch/internal/domain/model"
)

// Projection is the result of the whale-perspective transform for one
// classified transfer.
type Projection struct {
	WhaleAddress        string
	CounterpartyAddress string
	CounterpartyKind    model.EntityKind
	IsCEXTransaction    bool
}

// Project collapses (from, to) into (whale, counterparty). The second
// return is false when the transfer
// must be skipped entirely (CEX-to-CEX move): no whale role exists on
// either side, so nothing is stored.
func Project(t model.EnrichedTransfer) (Projection, bool) {
	fromKind := t.FromLabel.Kind
	toKind := t.ToLabel.Kind

	if fromKind == model.EntityCEX && toKind == model.EntityCEX {
		return Projection{}, false
	}

	var whale, counterparty string
	var counterpartyKind model.EntityKind

	switch {
	case isProtocolSide(fromKind) && !isProtocolSide(toKind):
		// CEX/DEX -> wallet: the receiver is the whale.
		whale, counterparty, counterpartyKind = t.ToAddr, t.FromAddr, fromKind
	case !isProtocolSide(fromKind) && isProtocolSide(toKind):
		// wallet -> CEX/DEX: the sender is the whale.
		whale, counterparty, counterpartyKind = t.FromAddr, t.ToAddr, toKind
	case isProtocolSide(fromKind) && isProtocolSide(toKind):
		// Two protocol contracts with no wallet in between (e.g. a DEX
		// router paying out to a bridge). There is no whale role; treat
		// the sender side as primary so the record is still attributable.
		whale, counterparty, counterpartyKind = t.FromAddr, t.ToAddr, toKind
	default:
		// EOA -> EOA: sender is the whale by default.
		whale, counterparty, counterpartyKind = t.FromAddr, t.ToAddr, toKind
	}

	return Projection{
		WhaleAddress:        whale,
		CounterpartyAddress: counterparty,
		CounterpartyKind:    counterpartyKind,
		IsCEXTransaction:    counterpartyKind == model.EntityCEX,
	}, true
}

// BuildRecord assembles the stored WhaleRecord from an enriched
// transfer, its classification, and the projection. ingestedAt is
// stamped by the caller so tests can pin it.
func BuildRecord(t model.EnrichedTransfer, c model.Classification, p Projection, ingestedAt time.Time) model.WhaleRecord {
	return model.WhaleRecord{
		TxHash:              t.TxHash,
		Chain:               t.Chain,
		BlockTime:           t.BlockTime,
		WhaleAddress:        p.WhaleAddress,
		CounterpartyAddress: p.CounterpartyAddress,
		CounterpartyKind:    p.CounterpartyKind,
		IsCEXTransaction:    p.IsCEXTransaction,
		Classification:      c.Kind,
		Confidence:          c.Confidence,
		TokenSymbol:         t.Symbol,
		USDValue:            t.USDValue,
		FromLabel:           t.FromLabel.EntityName,
		ToLabel:             t.ToLabel.EntityName,
		Evidence:            c.Evidence,
		SourceID:            t.SourceID,
		IngestedAt:          ingestedAt,
	}
}

// isProtocolSide reports whether kind is an exchange or protocol
// contract that can never take the whale role.
func isProtocolSide(kind model.EntityKind) bool {
	switch kind {
	case model.EntityCEX, model.EntityDEX, model.EntityBridge,
		model.EntityLending, model.EntityStaking, model.EntityYield,
		model.EntityMixer, model.EntityMarketMaker:
		return true
	default:
		return false
	}
}
