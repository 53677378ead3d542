package model

// EnrichedTransfer is a RawTransfer augmented with USD value and address
// labels. A missing price never blocks enrichment: usd_value is 0 and
// PriceMissing is set instead.
type EnrichedTransfer struct {
	RawTransfer

	USDValue     float64
	PriceMissing bool
	FromLabel    AddressLabel
	ToLabel      AddressLabel
	TokenAgeDays *int
	TokenRisk    string // e.g. "scam_token", "" when unknown/clean
}

// IsStablecoinSymbol reports whether sym is one of the built-in stable
// assets the price resolver treats as pegged to 1 USD.
func IsStablecoinSymbol(sym string) bool {
	switch sym {
	case "USDC", "USDT", "DAI", "BUSD", "TUSD", "FRAX", "USDP", "GUSD":
		return true
	default:
		return false
	}
}
