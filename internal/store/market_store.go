// Package store implements the hot order, market and trade stores. The
// durable mirror is internal/db/repositories; this package is the
// concurrency-safe in-memory layer every other component reads and writes
// through.
package store

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/abdoElHodaky/clobcore/internal/db/repositories"
	"github.com/abdoElHodaky/clobcore/internal/domain"
	exerrors "github.com/abdoElHodaky/clobcore/pkg/errors"
)

// MarketStore holds every market, mutated by admin actions and by the
// matching engine's price/volume updates.
type MarketStore struct {
	mu      sync.RWMutex
	markets map[string]*domain.Market

	mirror *repositories.MarketRepository
	logger *zap.Logger
}

func NewMarketStore(mirror *repositories.MarketRepository, logger *zap.Logger) *MarketStore {
	return &MarketStore{
		markets: make(map[string]*domain.Market),
		mirror:  mirror,
		logger:  logger,
	}
}

// AddMarket registers a new market after validating its invariants.
func (s *MarketStore) AddMarket(ctx context.Context, m *domain.Market) error {
	if err := m.Validate(); err != nil {
		return exerrors.Wrap(err, exerrors.InvalidArgument, "invalid market")
	}

	s.mu.Lock()
	if _, exists := s.markets[m.MarketID]; exists {
		s.mu.Unlock()
		return exerrors.New(exerrors.Conflict, "market already exists")
	}
	cp := *m
	s.markets[m.MarketID] = &cp
	s.mu.Unlock()

	if s.mirror != nil {
		if err := s.mirror.Upsert(ctx, &cp); err != nil {
			s.logger.Error("failed to persist market", zap.Error(err), zap.String("market_id", m.MarketID))
		}
	}
	return nil
}

// GetMarket returns a copy of a market, or (nil, false) if unknown.
func (s *MarketStore) GetMarket(marketID string) (*domain.Market, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.markets[marketID]
	if !ok {
		return nil, false
	}
	cp := *m
	return &cp, true
}

// GetAllMarkets returns a snapshot slice of every market.
func (s *MarketStore) GetAllMarkets() []*domain.Market {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Market, 0, len(s.markets))
	for _, m := range s.markets {
		cp := *m
		out = append(out, &cp)
	}
	return out
}

// OpenMarketIDs returns the IDs of every non-resolved market, the set the
// matching engine and the block-height monitor iterate each tick.
func (s *MarketStore) OpenMarketIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.markets))
	for id, m := range s.markets {
		if !m.Resolved {
			out = append(out, id)
		}
	}
	return out
}

// UpdateMarketPrices applies the post-trade price discovery step, the
// only mutation the matching engine performs on a market besides volume.
func (s *MarketStore) UpdateMarketPrices(ctx context.Context, marketID string, yesPrice, noPrice int64) error {
	s.mu.Lock()
	m, ok := s.markets[marketID]
	if !ok {
		s.mu.Unlock()
		return exerrors.New(exerrors.NotFound, "market not found")
	}
	m.YesPrice = yesPrice
	m.NoPrice = noPrice
	cp := *m
	s.mu.Unlock()

	if s.mirror != nil {
		if err := s.mirror.UpdatePrices(ctx, marketID, yesPrice, noPrice, cp.Volume24h); err != nil {
			s.logger.Error("failed to persist market prices", zap.Error(err), zap.String("market_id", marketID))
		}
	}
	return nil
}

// AddVolume accumulates 24h volume after a trade executes.
func (s *MarketStore) AddVolume(ctx context.Context, marketID string, tradeNotional int64) {
	s.mu.Lock()
	m, ok := s.markets[marketID]
	if !ok {
		s.mu.Unlock()
		return
	}
	m.Volume24h += tradeNotional
	yes, no, vol := m.YesPrice, m.NoPrice, m.Volume24h
	s.mu.Unlock()

	if s.mirror != nil {
		if err := s.mirror.UpdatePrices(ctx, marketID, yes, no, vol); err != nil {
			s.logger.Error("failed to persist market volume", zap.Error(err), zap.String("market_id", marketID))
		}
	}
}

// Resolve marks a market resolved with a final outcome.
func (s *MarketStore) Resolve(marketID string, outcome int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[marketID]
	if !ok {
		return exerrors.New(exerrors.NotFound, "market not found")
	}
	m.Resolved = true
	o := outcome
	m.Outcome = &o
	return nil
}

// RestoreMarkets reloads every market from the durable mirror. Called once
// at boot, before any order is restored or the matching engine starts.
func (s *MarketStore) RestoreMarkets(ctx context.Context) error {
	if s.mirror == nil {
		return nil
	}
	rows, err := s.mirror.FindAll(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range rows {
		s.markets[m.MarketID] = m
	}
	return nil
}
