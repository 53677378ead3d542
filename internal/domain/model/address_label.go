package model

import (
	"strings"
	"time"
)

// AddressLabel is the resolved identity of an address as known to the
// label provider at a point in time.
type AddressLabel struct {
	Address    string
	Chain      Chain
	Kind       EntityKind
	EntityName string
	Confidence float64
	UpdatedAt  time.Time
}

// Unknown returns the zero-information label for addr/chain.
func Unknown(addr string, chain Chain) AddressLabel {
	return AddressLabel{Address: addr, Chain: chain, Kind: EntityUnknown, Confidence: 0}
}

// IsCEX reports whether the label identifies a centralized exchange wallet.
func (l AddressLabel) IsCEX() bool { return l.Kind == EntityCEX }

// SameEntity reports whether two labels identify the same named entity
// (used for CEX-internal-move detection — same entity name, regardless
// of case, counts as the same entity).
func (l AddressLabel) SameEntity(other AddressLabel) bool {
	if l.EntityName == "" || other.EntityName == "" {
		return false
	}
	return strings.EqualFold(l.EntityName, other.EntityName)
}
