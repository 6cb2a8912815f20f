package store

import (
	"sync"

	"github.com/segmentio/ksuid"

	"github.com/abdoElHodaky/clobcore/internal/domain"
)

// tradeRetentionPerMarket bounds the in-memory trade log. The hot log
// only needs to answer "recent trades" and the price-history buckets
// derived from them; anything older is simply dropped.
const tradeRetentionPerMarket = 10_000

// TradeStore is the in-memory trade log: immutable records, indexed by
// id, with an insertion-ordered list per market for recent-trade and
// OHLC-bucket queries.
type TradeStore struct {
	mu       sync.RWMutex
	trades   map[string]*domain.Trade
	byMarket map[string][]string // trade ids, oldest first
}

func NewTradeStore() *TradeStore {
	return &TradeStore{
		trades:   make(map[string]*domain.Trade),
		byMarket: make(map[string][]string),
	}
}

// Record assigns a tradeId and timestamp and appends the trade to its
// market's log, trimming the oldest entry once retention is exceeded.
func (s *TradeStore) Record(t domain.Trade, now int64) *domain.Trade {
	t.TradeID = ksuid.New().String()
	t.Timestamp = now

	s.mu.Lock()
	defer s.mu.Unlock()
	cp := t
	s.trades[cp.TradeID] = &cp

	ids := append(s.byMarket[cp.MarketID], cp.TradeID)
	if len(ids) > tradeRetentionPerMarket {
		evicted := ids[0]
		delete(s.trades, evicted)
		ids = ids[1:]
	}
	s.byMarket[cp.MarketID] = ids

	out := cp
	return &out
}

// RecordSettlement attaches a txHash to a previously recorded trade.
func (s *TradeStore) RecordSettlement(tradeID, txHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.trades[tradeID]; ok {
		t.TxHash = txHash
	}
}

// Recent returns up to limit trades for a market, most recent first.
func (s *TradeStore) Recent(marketID string, limit int) []*domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byMarket[marketID]
	if limit <= 0 || limit > len(ids) {
		limit = len(ids)
	}
	out := make([]*domain.Trade, 0, limit)
	for i := len(ids) - 1; i >= 0 && len(out) < limit; i-- {
		if t, ok := s.trades[ids[i]]; ok {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out
}

// Get returns a single trade by id.
func (s *TradeStore) Get(tradeID string) (*domain.Trade, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trades[tradeID]
	if !ok {
		return nil, false
	}
	cp := *t
	return &cp, true
}
