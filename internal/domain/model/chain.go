package model

// Chain identifies the source blockchain of a transfer.
type Chain string

const (
	ChainEthereum Chain = "ethereum"
	ChainPolygon  Chain = "polygon"
	ChainSolana   Chain = "solana"
	ChainBitcoin  Chain = "bitcoin"
	ChainXRP      Chain = "xrp"
	ChainArbitrum Chain = "arbitrum"
	ChainBSC      Chain = "bsc"
	ChainBase     Chain = "base"
)

func (c Chain) String() string { return string(c) }

// EntityKind classifies the known role of an address.
type EntityKind string

const (
	EntityCEX     EntityKind = "CEX"
	EntityDEX     EntityKind = "DEX"
	EntityBridge  EntityKind = "BRIDGE"
	EntityLending EntityKind = "LENDING"
	EntityStaking EntityKind = "STAKING"
	EntityYield   EntityKind = "YIELD"
	EntityMEV     EntityKind = "MEV"
	EntityMixer   EntityKind = "MIXER"
	// EntityMarketMaker marks known market-making / HFT desks. Their
	// flow is firm inventory rebalancing, not retail whale intent, so
	// they never take the whale role and their presence on the sending
	// side is a strong classification signal of its own.
	EntityMarketMaker EntityKind = "MARKET_MAKER"
	EntityWhale       EntityKind = "WHALE"
	EntityEOA         EntityKind = "EOA"
	EntityUnknown     EntityKind = "UNKNOWN"
)

func (k EntityKind) String() string { return string(k) }

// ClassificationKind is the final classification assigned to a transfer.
type ClassificationKind string

const (
	KindBuy          ClassificationKind = "BUY"
	KindSell         ClassificationKind = "SELL"
	KindTransfer     ClassificationKind = "TRANSFER"
	KindModerateBuy  ClassificationKind = "MODERATE_BUY"
	KindModerateSell ClassificationKind = "MODERATE_SELL"
	KindStaking      ClassificationKind = "STAKING"
	KindDeFi         ClassificationKind = "DEFI"
	KindBridge       ClassificationKind = "BRIDGE"
	KindLiquidity    ClassificationKind = "LIQUIDITY"
	KindUnknown      ClassificationKind = "UNKNOWN"
)

func (k ClassificationKind) String() string { return string(k) }

// IsModerate reports whether kind is one of the MODERATE_* variants.
func (k ClassificationKind) IsModerate() bool {
	return k == KindModerateBuy || k == KindModerateSell
}

// Direction is the coarse voting direction used by the phase aggregator.
type Direction string

const (
	DirectionBuy   Direction = "buy"
	DirectionSell  Direction = "sell"
	DirectionOther Direction = "other"
)
