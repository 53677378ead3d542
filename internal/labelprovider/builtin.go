package labelprovider

import (
	"strings"
	"time"

	"github.com/kodascan/whalewatch/internal/domain/model"
)

// builtinEntry is one row of the static hot-wallet registry embedded at
// build time: a static registry loaded at startup, overlayable by a
// config file, instead of mutable label lists scattered through source.
type builtinEntry struct {
	Chain      model.Chain
	Address    string
	Kind       model.EntityKind
	EntityName string
}

// builtinRegistry is a small seed set of well-known CEX hot wallets and
// DEX routers across the supported chains. It is not meant to be
// exhaustive (the remote explorer lookup and label store cover the long
// tail) but it answers the common CEX deposit/withdrawal cases with no
// network round trip.
var builtinRegistry = []builtinEntry{
	{model.ChainEthereum, "0x28c6c06298d514db089934071355e5743bf21d60", model.EntityCEX, "Binance"},
	{model.ChainEthereum, "0x21a31ee1afc51d94c2efccaa2092ad1028285549", model.EntityCEX, "Binance"},
	{model.ChainEthereum, "0x71660c4005ba85c37ccec55d0c4493e66fe775d3", model.EntityCEX, "Coinbase"},
	{model.ChainEthereum, "0x503828976d22510aad0201ac7ec88293211d23da", model.EntityCEX, "Coinbase"},
	{model.ChainEthereum, "0x2910543af39aba0cd09dbb2d50200b3e800a63d2", model.EntityCEX, "Kraken"},
	{model.ChainEthereum, "0xe93381fb4c4f14bda253907b18fad305d799241a", model.EntityCEX, "Huobi"},
	{model.ChainEthereum, "0x0d0707963952f2fba59dd06f2b425ace40b492fe", model.EntityCEX, "Gate.io"},
	{model.ChainEthereum, "0x7891b20c690605f4e370d6944c8a5dbfab847e4f", model.EntityDEX, "Uniswap V2: Router 2"},
	{model.ChainEthereum, "0xe592427a0aece92de3edee1f18e0157c05861564", model.EntityDEX, "Uniswap V3: Router"},
	{model.ChainEthereum, "0x1111111254eeb25477b68fb85ed929f73a960582", model.EntityDEX, "1inch: Aggregation Router V5"},
	{model.ChainEthereum, "0x3ee18b2214aff97000d974cf647e7c347e8fa585", model.EntityBridge, "Wormhole: Portal Token Bridge"},
	{model.ChainEthereum, "0x99c9fc46f92e8a1c0dec1b1747d010903e884be1", model.EntityBridge, "Arbitrum: L1 Gateway Router"},
	{model.ChainEthereum, "0x7d2768de32b0b80b7a3454c06bdac94a69ddc7a9", model.EntityLending, "Aave: LendingPool V2"},
	{model.ChainEthereum, "0x00000000219ab540356cbb839cbe05303d7705fa", model.EntityStaking, "Ethereum 2.0 Deposit Contract"},
	{model.ChainPolygon, "0xa5e0829caced8ffdd4de3c43696c57f7d7a678ff", model.EntityBridge, "Polygon: PoS Bridge"},
	{model.ChainSolana, "5tzfkih2gxcwwayhusgbczdlsy9zqfjsgp7gwiyuzqxj", model.EntityCEX, "Binance"},

	// Market-making / HFT desks. These addresses move firm inventory,
	// not whale intent, and get their own kind so classification can
	// boost on them and the perspective transform can keep them out of
	// the whale role.
	{model.ChainEthereum, "0x56178a0d5f301baf6cf3e1cd53d9863437345bf9", model.EntityMarketMaker, "Wintermute"},
	{model.ChainEthereum, "0x3ccdf48c5b8040526815e47322dfd0b524f390d9", model.EntityMarketMaker, "Wintermute"},
	{model.ChainEthereum, "0x0e5069514a3dd613350bab01b58fd850058e5ca4", model.EntityMarketMaker, "Wintermute"},
	{model.ChainEthereum, "0xf584f8728b874a6a5c7a8d4d387c9aae9172d621", model.EntityMarketMaker, "Jump Trading"},
	{model.ChainEthereum, "0x75e89d5979e4f6fba9f97c104c2f0afb3f1dcb88", model.EntityMarketMaker, "Alameda Research"},
	{model.ChainEthereum, "0x21b2be9090d1d319e67a981d42811ba5a4e9b35e", model.EntityMarketMaker, "DV Trading"},
	{model.ChainSolana, "5q544fkrfoe6tsebd7s8emxgtjyakttvhaw5q5pge4j1", model.EntityMarketMaker, "Binance MM"},
	{model.ChainSolana, "675kpx9mhtjs2zt1qfr1nyhuzelxfqm9h24wfsut1mp8", model.EntityMarketMaker, "Raydium MM"},
	{model.ChainSolana, "orcaektdk7lkz57vaayr9qensvepfiu6qemu1kektze", model.EntityMarketMaker, "Orca MM"},
	{model.ChainXRP, "rmj21ybvei7heznskh4srdv7rdqudraup", model.EntityMarketMaker, "XRP MM Desk"},
}

// loadBuiltinRegistry returns the embedded registry indexed by
// (chain, lowercased address), ready to seed the provider's LRU and bloom
// filter at construction time.
func loadBuiltinRegistry() map[cacheKey]model.AddressLabel {
	out := make(map[cacheKey]model.AddressLabel, len(builtinRegistry))
	now := time.Now()
	for _, e := range builtinRegistry {
		key := cacheKey{Chain: e.Chain, Address: strings.ToLower(e.Address)}
		out[key] = model.AddressLabel{
			Address:    key.Address,
			Chain:      e.Chain,
			Kind:       e.Kind,
			EntityName: e.EntityName,
			Confidence: 0.95,
			UpdatedAt:  now,
		}
	}
	return out
}

// OverlayEntry is one row of an operator-supplied YAML overlay file that
// extends or overrides the embedded registry without a rebuild.
type OverlayEntry struct {
	Chain      model.Chain      `yaml:"chain"`
	Address    string           `yaml:"address"`
	Kind       model.EntityKind `yaml:"kind"`
	EntityName string           `yaml:"entity_name"`
	Confidence float64          `yaml:"confidence"`
}
