package store

import (
	"context"
	"sort"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/clobcore/internal/db/repositories"
	"github.com/abdoElHodaky/clobcore/internal/domain"
	exerrors "github.com/abdoElHodaky/clobcore/pkg/errors"
)

const (
	orderLockTTL  = 5 * time.Second
	snapshotTTL   = 10 * time.Second
	snapshotPurge = 30 * time.Second
)

// bookKey identifies one (market, outcome token) book. A book holds both
// the bid side (BUY orders whose takerPositionId is this token) and the
// ask side (SELL orders whose makerPositionId is this token).
type bookKey struct {
	marketID   string
	positionID string
}

// bookEntry is the minimal sort key kept in a book's resting list; the
// authoritative order record lives in OrderStore.orders.
type bookEntry struct {
	orderID   string
	price     int64
	createdAt int64
}

type book struct {
	mu   sync.Mutex
	bids []bookEntry // desc price, asc createdAt
	asks []bookEntry // asc price, asc createdAt
}

// OrderStore is the hot, concurrency-safe order store: orders indexed by
// id/market/maker, plus a price-time sorted book per (marketId,
// outcomePositionId), mirrored to Postgres on every write.
type OrderStore struct {
	mu       sync.RWMutex
	orders   map[string]*domain.Order
	byMarket map[string]map[string]struct{}
	byMaker  map[string]map[string]struct{}

	booksMu sync.RWMutex
	books   map[bookKey]*book

	locks    *lockManager
	snapshot *cache.Cache

	mirror      *repositories.OrderRepository
	marketStore *MarketStore
	logger      *zap.Logger
}

func NewOrderStore(marketStore *MarketStore, mirror *repositories.OrderRepository, logger *zap.Logger) *OrderStore {
	return &OrderStore{
		orders:      make(map[string]*domain.Order),
		byMarket:    make(map[string]map[string]struct{}),
		byMaker:     make(map[string]map[string]struct{}),
		books:       make(map[bookKey]*book),
		locks:       newLockManager(orderLockTTL),
		snapshot:    cache.New(snapshotTTL, snapshotPurge),
		mirror:      mirror,
		marketStore: marketStore,
		logger:      logger,
	}
}

func (s *OrderStore) getOrCreateBook(key bookKey) *book {
	s.booksMu.RLock()
	b, ok := s.books[key]
	s.booksMu.RUnlock()
	if ok {
		return b
	}
	s.booksMu.Lock()
	defer s.booksMu.Unlock()
	if b, ok = s.books[key]; ok {
		return b
	}
	b = &book{}
	s.books[key] = b
	return b
}

func (s *OrderStore) invalidateSnapshot(marketID, positionID string) {
	s.snapshot.Delete(marketID + ":" + positionID)
}

// AddOrder validates, assigns an id, and atomically registers a new
// resting order: the order record, the market/maker indices and the
// sorted book entry, then persists the mirror row.
func (s *OrderStore) AddOrder(ctx context.Context, in domain.NewOrderInput) (*domain.Order, error) {
	if err := in.Validate(); err != nil {
		return nil, exerrors.Wrap(err, exerrors.InvalidArgument, "invalid order")
	}

	market, ok := s.marketStore.GetMarket(in.MarketID)
	if !ok {
		return nil, exerrors.New(exerrors.NotFound, "market not found")
	}
	if in.MakerPositionID != market.YesPositionID && in.MakerPositionID != market.NoPositionID {
		return nil, exerrors.New(exerrors.InvalidArgument, "makerPositionId does not belong to market")
	}
	if in.TakerPositionID != market.YesPositionID && in.TakerPositionID != market.NoPositionID {
		return nil, exerrors.New(exerrors.InvalidArgument, "takerPositionId does not belong to market")
	}

	now := time.Now().UnixMilli()
	order := &domain.Order{
		OrderID:         ksuid.New().String(),
		Maker:           in.Maker,
		MarketID:        in.MarketID,
		ConditionID:     in.ConditionID,
		MakerPositionID: in.MakerPositionID,
		TakerPositionID: in.TakerPositionID,
		Side:            in.Side,
		Price:           in.Price,
		Size:            in.Size,
		FilledSize:      0,
		RemainingSize:   in.Size,
		Status:          domain.OrderOpen,
		Salt:            in.Salt,
		Expiration:      in.Expiration,
		CreatedAt:       now,
		UpdatedAt:       now,
		Signature:       in.Signature,
		PublicKey:       in.PublicKey,
	}

	s.mu.Lock()
	s.orders[order.OrderID] = order
	if s.byMarket[order.MarketID] == nil {
		s.byMarket[order.MarketID] = make(map[string]struct{})
	}
	s.byMarket[order.MarketID][order.OrderID] = struct{}{}
	if s.byMaker[order.Maker] == nil {
		s.byMaker[order.Maker] = make(map[string]struct{})
	}
	s.byMaker[order.Maker][order.OrderID] = struct{}{}
	s.insertIntoBook(order)
	s.mu.Unlock()

	s.invalidateSnapshot(order.MarketID, order.BookPositionID())

	if s.mirror != nil {
		if err := s.mirror.Upsert(ctx, order); err != nil {
			s.logger.Error("failed to persist new order", zap.Error(err), zap.String("order_id", order.OrderID))
		}
	}

	cp := *order
	return &cp, nil
}

// GetOrder returns a copy of the order, or (nil, false) if unknown.
func (s *OrderStore) GetOrder(orderID string) (*domain.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, false
	}
	cp := *o
	return &cp, true
}

func (s *OrderStore) ordersByIndex(index map[string]struct{}) []*domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Order, 0, len(index))
	for id := range index {
		if o, ok := s.orders[id]; ok {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out
}

// GetMarketOrders returns every order ever placed on marketID.
func (s *OrderStore) GetMarketOrders(marketID string) []*domain.Order {
	s.mu.RLock()
	idx := s.byMarket[marketID]
	s.mu.RUnlock()
	if idx == nil {
		return nil
	}
	return s.ordersByIndex(idx)
}

// GetUserOrders returns every order placed by maker.
func (s *OrderStore) GetUserOrders(maker string) []*domain.Order {
	s.mu.RLock()
	idx := s.byMaker[maker]
	s.mu.RUnlock()
	if idx == nil {
		return nil
	}
	return s.ordersByIndex(idx)
}

// FillOrder applies a partial or full fill under the order's exclusive
// lock. A false, nil return means the caller should retry on the next
// tick (lock contention); a false, err return means the fill is invalid
// and must not be retried.
func (s *OrderStore) FillOrder(ctx context.Context, orderID string, fillSize int64) (bool, error) {
	holder := ksuid.New().String()
	lockKey := "order:" + orderID
	if !s.locks.TryLock(lockKey, holder) {
		return false, nil
	}
	defer s.locks.Unlock(lockKey, holder)

	s.mu.Lock()
	o, ok := s.orders[orderID]
	if !ok {
		s.mu.Unlock()
		return false, exerrors.New(exerrors.NotFound, "order not found")
	}
	if o.Status.IsTerminal() {
		s.mu.Unlock()
		return false, exerrors.New(exerrors.Conflict, "order is in a terminal state")
	}
	if fillSize <= 0 || fillSize > o.RemainingSize {
		s.mu.Unlock()
		return false, exerrors.New(exerrors.InvalidArgument, "fill size exceeds remaining size")
	}

	o.FilledSize += fillSize
	o.RemainingSize -= fillSize
	if o.RemainingSize == 0 {
		o.Status = domain.OrderFilled
	} else {
		o.Status = domain.OrderPartiallyFilled
	}
	o.UpdatedAt = time.Now().UnixMilli()
	cp := *o
	s.mu.Unlock()

	if cp.Status == domain.OrderFilled {
		s.removeFromBook(&cp)
	}
	s.invalidateSnapshot(cp.MarketID, cp.BookPositionID())

	if s.mirror != nil {
		if err := s.mirror.Upsert(ctx, &cp); err != nil {
			s.logger.Error("failed to persist filled order", zap.Error(err), zap.String("order_id", orderID))
		}
	}
	return true, nil
}

func (s *OrderStore) terminalTransition(ctx context.Context, orderID string, target domain.OrderStatus) (bool, error) {
	holder := ksuid.New().String()
	lockKey := "order:" + orderID
	if !s.locks.TryLock(lockKey, holder) {
		return false, nil
	}
	defer s.locks.Unlock(lockKey, holder)

	s.mu.Lock()
	o, ok := s.orders[orderID]
	if !ok {
		s.mu.Unlock()
		return false, nil
	}
	if o.Status.IsTerminal() {
		s.mu.Unlock()
		return false, nil
	}
	o.Status = target
	o.UpdatedAt = time.Now().UnixMilli()
	cp := *o
	s.mu.Unlock()

	s.removeFromBook(&cp)
	s.invalidateSnapshot(cp.MarketID, cp.BookPositionID())

	if s.mirror != nil {
		if err := s.mirror.Upsert(ctx, &cp); err != nil {
			s.logger.Error("failed to persist order transition", zap.Error(err), zap.String("order_id", orderID))
		}
	}
	return true, nil
}

// CancelOrder transitions orderID to CANCELLED. A second call on an
// already-terminal order returns false without altering state.
func (s *OrderStore) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	return s.terminalTransition(ctx, orderID, domain.OrderCancelled)
}

// ExpireOrder transitions orderID to EXPIRED.
func (s *OrderStore) ExpireOrder(ctx context.Context, orderID string) (bool, error) {
	return s.terminalTransition(ctx, orderID, domain.OrderExpired)
}

func isBuyLess(a, b bookEntry) bool {
	if a.price != b.price {
		return a.price > b.price // higher price first
	}
	return a.createdAt < b.createdAt
}

func isSellLess(a, b bookEntry) bool {
	if a.price != b.price {
		return a.price < b.price // lower price first
	}
	return a.createdAt < b.createdAt
}

func (s *OrderStore) insertIntoBook(o *domain.Order) {
	key := bookKey{marketID: o.MarketID, positionID: o.BookPositionID()}
	b := s.getOrCreateBook(key)
	entry := bookEntry{orderID: o.OrderID, price: o.Price, createdAt: o.CreatedAt}

	b.mu.Lock()
	defer b.mu.Unlock()
	if o.Side == domain.Buy {
		i := sort.Search(len(b.bids), func(i int) bool { return isBuyLess(entry, b.bids[i]) })
		b.bids = append(b.bids, bookEntry{})
		copy(b.bids[i+1:], b.bids[i:])
		b.bids[i] = entry
	} else {
		i := sort.Search(len(b.asks), func(i int) bool { return isSellLess(entry, b.asks[i]) })
		b.asks = append(b.asks, bookEntry{})
		copy(b.asks[i+1:], b.asks[i:])
		b.asks[i] = entry
	}
}

func (s *OrderStore) removeFromBook(o *domain.Order) {
	key := bookKey{marketID: o.MarketID, positionID: o.BookPositionID()}
	b := s.getOrCreateBook(key)

	b.mu.Lock()
	defer b.mu.Unlock()
	if o.Side == domain.Buy {
		b.bids = removeEntry(b.bids, o.OrderID)
	} else {
		b.asks = removeEntry(b.asks, o.OrderID)
	}
}

func removeEntry(entries []bookEntry, orderID string) []bookEntry {
	for i, e := range entries {
		if e.orderID == orderID {
			return append(entries[:i], entries[i+1:]...)
		}
	}
	return entries
}

// restingFrom maps sorted book entries to live, still-resting orders,
// defensively skipping any entry whose order has already turned terminal
// (a removal may not have landed yet) or vanished.
func (s *OrderStore) restingFrom(entries []bookEntry) []*domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Order, 0, len(entries))
	for _, e := range entries {
		o, ok := s.orders[e.orderID]
		if !ok || !o.Status.IsResting() {
			continue
		}
		cp := *o
		out = append(out, &cp)
	}
	return out
}

// RestingBids returns, for the book keyed by (marketId, positionId), the
// resting BUY orders sorted price-descending then time-ascending.
func (s *OrderStore) RestingBids(marketID, positionID string) []*domain.Order {
	b := s.getOrCreateBook(bookKey{marketID: marketID, positionID: positionID})
	b.mu.Lock()
	entries := append([]bookEntry(nil), b.bids...)
	b.mu.Unlock()
	return s.restingFrom(entries)
}

// RestingAsks returns the resting SELL orders sorted price-ascending then
// time-ascending.
func (s *OrderStore) RestingAsks(marketID, positionID string) []*domain.Order {
	b := s.getOrCreateBook(bookKey{marketID: marketID, positionID: positionID})
	b.mu.Lock()
	entries := append([]bookEntry(nil), b.asks...)
	b.mu.Unlock()
	return s.restingFrom(entries)
}

// GetOrderbook aggregates the resting bids/asks for (marketId, positionId)
// into price levels, served through the 10s snapshot cache.
func (s *OrderStore) GetOrderbook(marketID, positionID string) (*domain.Orderbook, error) {
	cacheKey := marketID + ":" + positionID
	if v, ok := s.snapshot.Get(cacheKey); ok {
		ob := v.(domain.Orderbook)
		return &ob, nil
	}

	bids := aggregate(s.RestingBids(marketID, positionID))
	asks := aggregate(s.RestingAsks(marketID, positionID))
	ob := domain.Orderbook{Bids: bids, Asks: asks}
	s.snapshot.Set(cacheKey, ob, cache.DefaultExpiration)
	return &ob, nil
}

// aggregate groups a price-sorted slice of orders into levels, preserving
// the incoming sort order.
func aggregate(orders []*domain.Order) []domain.OrderbookLevel {
	levels := make([]domain.OrderbookLevel, 0, len(orders))
	for _, o := range orders {
		if n := len(levels); n > 0 && levels[n-1].Price == o.Price {
			levels[n-1].Size += o.RemainingSize
			levels[n-1].OrderCount++
			continue
		}
		levels = append(levels, domain.OrderbookLevel{
			Price:      o.Price,
			Size:       o.RemainingSize,
			OrderCount: 1,
		})
	}
	return levels
}

// RestoreFromPersistence reloads every non-terminal order from the
// durable mirror and re-indexes it into the hot store and sorted books.
// Must complete before the matching engine is allowed to start.
func (s *OrderStore) RestoreFromPersistence(ctx context.Context) error {
	if s.mirror == nil {
		return nil
	}
	orders, err := s.mirror.FindNonTerminal(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	for _, o := range orders {
		s.orders[o.OrderID] = o
		if s.byMarket[o.MarketID] == nil {
			s.byMarket[o.MarketID] = make(map[string]struct{})
		}
		s.byMarket[o.MarketID][o.OrderID] = struct{}{}
		if s.byMaker[o.Maker] == nil {
			s.byMaker[o.Maker] = make(map[string]struct{})
		}
		s.byMaker[o.Maker][o.OrderID] = struct{}{}
	}
	s.mu.Unlock()

	for _, o := range orders {
		s.insertIntoBook(o)
	}
	return nil
}
