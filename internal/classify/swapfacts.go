package classify

import (
	"context"

	"github.com/kodascan/whalewatch/internal/domain/model"
)

// SwapMethod enumerates the decoded intents P3 recognizes in a receipt,
// consumed by P2 to decide direction.
type SwapMethod string

const (
	MethodNone            SwapMethod = ""
	MethodSwap            SwapMethod = "swap"
	MethodAddLiquidity    SwapMethod = "addLiquidity"
	MethodRemoveLiquidity SwapMethod = "removeLiquidity"
	MethodBridgeDeposit   SwapMethod = "bridgeDeposit"
	MethodStake           SwapMethod = "stake"
	MethodUnstake         SwapMethod = "unstake"
)

// SwapToken is one leg of a decoded swap.
type SwapToken struct {
	Symbol       string
	Amount       float64
	IsStable     bool
	LowMarketCap bool // true when the token is recognized as a low-cap asset
}

// SwapFacts is what P3 decodes from a transaction receipt and hands to
// P2. Available is false when the receipt could not be fetched or the
// transaction failed; P2 must abstain on Swap/liquidity/bridge/staking
// classification in that case (it may still fall back to P1/other
// phases for a directional vote).
type SwapFacts struct {
	Available bool
	Success   bool
	Method    SwapMethod
	TokensIn  []SwapToken
	TokensOut []SwapToken
}

// ReceiptClient fetches and decodes a transaction's receipt/event logs.
// The actual RPC/explorer client lives outside this module; only the
// contract matters.
type ReceiptClient interface {
	DecodeReceipt(ctx context.Context, chain model.Chain, txHash string) (SwapFacts, error)
}
