package model

import "time"

// WhaleStats is the cumulative per-wallet view tracked by the whale
// registry.
type WhaleStats struct {
	WhaleAddress    string
	TradeCount      int64
	TotalUSD        float64
	Tokens          map[string]struct{}
	FirstSeen       time.Time
	LastSeen        time.Time
	SmartMoneyScore float64
	IsProven        bool
}

// provenTradeCount and provenTotalUSD are the proven-whale thresholds.
const (
	provenTradeCount = 5
	provenTotalUSD   = 250_000
)

// UpdateProven recomputes IsProven from the current stats.
func (s *WhaleStats) UpdateProven() {
	s.IsProven = s.TradeCount >= provenTradeCount && s.TotalUSD >= provenTotalUSD
}

// RecomputeSmartMoneyScore recomputes SmartMoneyScore:
// 0.5 + 0.2*I(trade_count>=20) + 0.2*I(total_usd>=1_000_000) + 0.1*I(|tokens|>=10).
func (s *WhaleStats) RecomputeSmartMoneyScore() {
	// Summed in tenths so that meeting every criterion yields exactly 1.0.
	tenths := 5
	if s.TradeCount >= 20 {
		tenths += 2
	}
	if s.TotalUSD >= 1_000_000 {
		tenths += 2
	}
	if len(s.Tokens) >= 10 {
		tenths++
	}
	s.SmartMoneyScore = float64(tenths) / 10
}

// IsActive reports whether the wallet is "active":
// at least 10 trades and last seen within 30 days of now.
func (s WhaleStats) IsActive(now time.Time) bool {
	return s.TradeCount >= 10 && now.Sub(s.LastSeen) < 30*24*time.Hour
}

// CloneTokens returns a copy of the tracked token set for safe external use.
func (s WhaleStats) CloneTokens() map[string]struct{} {
	out := make(map[string]struct{}, len(s.Tokens))
	for t := range s.Tokens {
		out[t] = struct{}{}
	}
	return out
}
