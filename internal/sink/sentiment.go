package sink

import (
	"sync"

	"github.com/kodascan/whalewatch/internal/domain/model"
)

// SentimentCounters tracks per-token buy/sell counts since process
// start. The SQL-based sentiment views are out of scope; these counters
// feed the CLI stats surface and the aggregator's warm path.
type SentimentCounters struct {
	mu     sync.RWMutex
	tokens map[string]*TokenSentiment
}

// TokenSentiment is the per-token tally.
type TokenSentiment struct {
	Buys  int64 `json:"buys"`
	Sells int64 `json:"sells"`
}

// BuyPct returns buys / (buys + sells), or 0 with no directional data.
func (t TokenSentiment) BuyPct() float64 {
	total := t.Buys + t.Sells
	if total == 0 {
		return 0
	}
	return float64(t.Buys) / float64(total)
}

func NewSentimentCounters() *SentimentCounters {
	return &SentimentCounters{tokens: make(map[string]*TokenSentiment)}
}

// Record tallies one stored classification. Only directional kinds
// move sentiment; MODERATE_* counts toward its direction.
func (s *SentimentCounters) Record(token string, kind model.ClassificationKind) {
	var buy, sell bool
	switch kind {
	case model.KindBuy, model.KindModerateBuy:
		buy = true
	case model.KindSell, model.KindModerateSell:
		sell = true
	default:
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[token]
	if !ok {
		t = &TokenSentiment{}
		s.tokens[token] = t
	}
	if buy {
		t.Buys++
	}
	if sell {
		t.Sells++
	}
}

// Snapshot returns a copy of every token's tally.
func (s *SentimentCounters) Snapshot() map[string]TokenSentiment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]TokenSentiment, len(s.tokens))
	for token, t := range s.tokens {
		out[token] = *t
	}
	return out
}
