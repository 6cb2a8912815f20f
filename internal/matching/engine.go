// Package matching implements the continuous matching driver: a
// fixed-period tick that clears crossing orders per market with price-time
// priority and classifies each match as NORMAL, MINT or MERGE.
package matching

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/clobcore/internal/domain"
	"github.com/abdoElHodaky/clobcore/internal/pricing"
	"github.com/abdoElHodaky/clobcore/internal/store"
)

// mintMergeEpsilon is restated from domain.MintMergeEpsilon for readability
// at call sites.
const mintMergeEpsilon = domain.MintMergeEpsilon

// Settler dispatches a matched trade to the chain bridge. Implemented by
// internal/settlement.Bridge; matching only depends on this narrow seam so
// a best-effort failure never blocks the tick.
type Settler interface {
	Settle(ctx context.Context, trade *domain.Trade, maker, taker *domain.Order, fillAmount int64) (txid string, err error)
}

// TradePublisher fans out a trade event to subscribers (the live feed,
// downstream portfolio/oracle consumers). Implemented by internal/events.
type TradePublisher interface {
	PublishTrade(trade *domain.Trade) error
}

// Engine is the single periodic matching driver: one ticker, one
// non-reentrancy flag, one worker pool fanning ticks out across markets
// while keeping each market's two books serialized within a worker.
type Engine struct {
	marketStore *store.MarketStore
	orderStore  *store.OrderStore
	trades      *store.TradeStore
	settler     Settler
	publisher   TradePublisher
	logger      *zap.Logger

	pool     *ants.Pool
	interval time.Duration
	running  atomic.Bool
	metrics  *metrics
}

type Config struct {
	TickInterval time.Duration
}

func NewEngine(cfg Config, marketStore *store.MarketStore, orderStore *store.OrderStore, trades *store.TradeStore, settler Settler, publisher TradePublisher, reg prometheus.Registerer, logger *zap.Logger) (*Engine, error) {
	poolSize := runtime.GOMAXPROCS(0)
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	interval := cfg.TickInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	return &Engine{
		marketStore: marketStore,
		orderStore:  orderStore,
		trades:      trades,
		settler:     settler,
		publisher:   publisher,
		logger:      logger,
		pool:        pool,
		interval:    interval,
		metrics:     newMetrics(reg),
	}, nil
}

// Run drives the ticker until ctx is cancelled, draining the in-flight
// tick before returning so shutdown never strands a half-applied match.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	defer e.pool.Release()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !e.running.CompareAndSwap(false, true) {
				continue // previous tick still in flight, skip this one entirely
			}
			e.tick(ctx)
			e.running.Store(false)
		}
	}
}

func (e *Engine) tick(ctx context.Context) {
	start := time.Now()
	defer func() { e.metrics.tickDuration.Observe(time.Since(start).Seconds()) }()

	markets := e.marketStore.OpenMarketIDs()
	var wg sync.WaitGroup
	for _, marketID := range markets {
		marketID := marketID
		wg.Add(1)
		if err := e.pool.Submit(func() {
			defer wg.Done()
			e.matchMarket(ctx, marketID)
		}); err != nil {
			wg.Done()
			e.logger.Error("failed to submit market to matching pool", zap.Error(err), zap.String("market_id", marketID))
		}
	}
	wg.Wait()
}

// matchMarket clears both outcome books of one market for one tick. It is
// always invoked from a single worker pool slot per market, so everything
// below runs serialized for that market by construction.
func (e *Engine) matchMarket(ctx context.Context, marketID string) {
	market, ok := e.marketStore.GetMarket(marketID)
	if !ok {
		return
	}

	buyYes := e.orderStore.RestingBids(marketID, market.YesPositionID)
	sellYes := e.orderStore.RestingAsks(marketID, market.YesPositionID)
	buyNo := e.orderStore.RestingBids(marketID, market.NoPositionID)
	sellNo := e.orderStore.RestingAsks(marketID, market.NoPositionID)

	var lastYesPrice int64
	var tradeOccurred bool

	noteYes := func(p int64) { lastYesPrice = p; tradeOccurred = true }
	noteNo := func(p int64) { lastYesPrice = pricing.Scale - p; tradeOccurred = true }

	// NORMAL: BUY YES crossing SELL YES, and BUY NO crossing SELL NO: a
	// direct swap of one outcome token for its complement at the ask's
	// price, same-outcome on both legs.
	iYes, jYes := e.normalWalk(ctx, market, buyYes, sellYes, noteYes)
	iNo, jNo := e.normalWalk(ctx, market, buyNo, sellNo, noteNo)

	// MINT: the BUY YES and BUY NO orders left unmatched by the normal
	// walks are two buyers jointly funding a fresh YES+NO pair when their
	// prices sum to PRICE_SCALE within tolerance. A mint is a trade like
	// any other, so it notes a yes-normalized last price too.
	e.mintWalk(ctx, market, buyYes[iYes:], buyNo[iNo:], noteYes)

	// MERGE: the SELL YES and SELL NO orders left unmatched are two
	// sellers jointly burning a YES+NO pair back to collateral.
	e.mergeWalk(ctx, market, sellYes[jYes:], sellNo[jNo:], noteYes)

	if !tradeOccurred {
		return
	}

	// The mint/merge walks debit leftover YES orders in place without
	// advancing iYes/jYes, so rescan for the first order that still rests
	// rather than trusting the normal walk's pointers.
	bestBid, bestAsk := int64(0), int64(0)
	for _, o := range buyYes[iYes:] {
		if o.RemainingSize > 0 {
			bestBid = o.Price
			break
		}
	}
	for _, o := range sellYes[jYes:] {
		if o.RemainingSize > 0 {
			bestAsk = o.Price
			break
		}
	}
	yesPrice, noPrice := pricing.MidPrice(bestBid, bestAsk, lastYesPrice, market.YesPrice)
	if err := e.marketStore.UpdateMarketPrices(ctx, marketID, yesPrice, noPrice); err != nil {
		e.logger.Error("failed to update market prices", zap.Error(err), zap.String("market_id", marketID))
	}
}

// normalWalk clears a single outcome's bid/ask lists against each other.
// Returns the final (i, j) pointers so the caller can hand the untouched
// tail of the BUY side to the mint pass and of the ASK side to the merge
// pass.
func (e *Engine) normalWalk(ctx context.Context, market *domain.Market, bids, asks []*domain.Order, note func(int64)) (int, int) {
	i, j := 0, 0
	for i < len(bids) && j < len(asks) && bids[i].Price >= asks[j].Price {
		buy, sell := bids[i], asks[j]
		size := minInt64(buy.RemainingSize, sell.RemainingSize)
		price := sell.Price

		trade := domain.Trade{
			MarketID:        market.MarketID,
			ConditionID:     market.ConditionID,
			MakerPositionID: sell.MakerPositionID,
			TakerPositionID: buy.TakerPositionID,
			Maker:           sell.Maker,
			Taker:           buy.Maker,
			Price:           price,
			Size:            size,
			Side:            buy.Side,
			MakerOrderID:    sell.OrderID,
			TakerOrderID:    buy.OrderID,
			TradeType:       domain.TradeNormal,
		}
		e.settle(ctx, trade, sell, buy, size)
		note(price)

		buy.RemainingSize -= size
		sell.RemainingSize -= size
		if buy.RemainingSize == 0 {
			i++
		}
		if sell.RemainingSize == 0 {
			j++
		}
	}
	return i, j
}

// mintWalk pairs leftover BUY YES and BUY NO heads, both sorted
// price-descending. Advancing either pointer can only lower that side's
// price, so a head pair that undershoots tolerance (sum already too far
// below Scale) can never be rescued by advancing further and the walk
// stops. A head pair that overshoots can still be rescued deeper into
// either list, so instead of stopping we advance whichever head carries
// the higher price (the one more responsible for the excess), falling
// back to the other list once that one is exhausted. noteYes receives each
// trade's price normalized to the YES side.
func (e *Engine) mintWalk(ctx context.Context, market *domain.Market, buyYes, buyNo []*domain.Order, noteYes func(int64)) {
	i, j := 0, 0
	for i < len(buyYes) && j < len(buyNo) {
		a, b := buyYes[i], buyNo[j]
		diff := a.Price + b.Price - pricing.Scale
		if diff < -mintMergeEpsilon {
			break
		}
		if diff > mintMergeEpsilon {
			if (a.Price >= b.Price && i+1 < len(buyYes)) || j+1 >= len(buyNo) {
				i++
			} else {
				j++
			}
			continue
		}
		size := minInt64(a.RemainingSize, b.RemainingSize)
		maker, taker := olderFirst(a, b)

		trade := domain.Trade{
			MarketID:        market.MarketID,
			ConditionID:     market.ConditionID,
			MakerPositionID: maker.MakerPositionID,
			TakerPositionID: taker.TakerPositionID,
			Maker:           maker.Maker,
			Taker:           taker.Maker,
			Price:           maker.Price,
			Size:            size,
			Side:            taker.Side,
			MakerOrderID:    maker.OrderID,
			TakerOrderID:    taker.OrderID,
			TradeType:       domain.TradeMint,
		}
		e.settle(ctx, trade, maker, taker, size)
		if maker == a {
			noteYes(maker.Price)
		} else {
			noteYes(pricing.Scale - maker.Price)
		}

		a.RemainingSize -= size
		b.RemainingSize -= size
		if a.RemainingSize == 0 {
			i++
		}
		if b.RemainingSize == 0 {
			j++
		}
	}
}

// mergeWalk pairs leftover SELL YES and SELL NO heads, both sorted
// price-ascending. Advancing either pointer can only raise that side's
// price, so a head pair that overshoots tolerance (sum already too far
// above Scale) can never be rescued by advancing further and the walk
// stops. A head pair that undershoots can still be rescued deeper into
// either list, so instead of stopping we advance whichever head carries
// the lower price (the one more responsible for the shortfall), falling
// back to the other list once that one is exhausted. noteYes receives each
// trade's price normalized to the YES side.
func (e *Engine) mergeWalk(ctx context.Context, market *domain.Market, sellYes, sellNo []*domain.Order, noteYes func(int64)) {
	i, j := 0, 0
	for i < len(sellYes) && j < len(sellNo) {
		a, b := sellYes[i], sellNo[j]
		diff := a.Price + b.Price - pricing.Scale
		if diff > mintMergeEpsilon {
			break
		}
		if diff < -mintMergeEpsilon {
			if (a.Price <= b.Price && i+1 < len(sellYes)) || j+1 >= len(sellNo) {
				i++
			} else {
				j++
			}
			continue
		}
		size := minInt64(a.RemainingSize, b.RemainingSize)
		maker, taker := olderFirst(a, b)

		trade := domain.Trade{
			MarketID:        market.MarketID,
			ConditionID:     market.ConditionID,
			MakerPositionID: maker.MakerPositionID,
			TakerPositionID: taker.TakerPositionID,
			Maker:           maker.Maker,
			Taker:           taker.Maker,
			Price:           maker.Price,
			Size:            size,
			Side:            taker.Side,
			MakerOrderID:    maker.OrderID,
			TakerOrderID:    taker.OrderID,
			TradeType:       domain.TradeMerge,
		}
		e.settle(ctx, trade, maker, taker, size)
		if maker == a {
			noteYes(maker.Price)
		} else {
			noteYes(pricing.Scale - maker.Price)
		}

		a.RemainingSize -= size
		b.RemainingSize -= size
		if a.RemainingSize == 0 {
			i++
		}
		if b.RemainingSize == 0 {
			j++
		}
	}
}

// settle records the trade, fills both legs, and best-effort dispatches
// settlement and the trade event. A fill failure on either leg aborts this
// match only; the rest of the tick continues.
func (e *Engine) settle(ctx context.Context, trade domain.Trade, makerOrder, takerOrder *domain.Order, fillAmount int64) {
	recorded := e.trades.Record(trade, time.Now().UnixMilli())

	okMaker, errMaker := e.orderStore.FillOrder(ctx, makerOrder.OrderID, fillAmount)
	okTaker, errTaker := e.orderStore.FillOrder(ctx, takerOrder.OrderID, fillAmount)
	if errMaker != nil || errTaker != nil || !okMaker || !okTaker {
		if (errMaker == nil && !okMaker) || (errTaker == nil && !okTaker) {
			e.metrics.lockRetries.Inc()
		}
		e.logger.Warn("fill did not complete for both legs of a match, skipping its settlement and publish",
			zap.String("market_id", trade.MarketID),
			zap.String("maker_order_id", makerOrder.OrderID),
			zap.String("taker_order_id", takerOrder.OrderID),
			zap.Error(errMaker), zap.Error(errTaker))
		return
	}

	e.metrics.tradesTotal.WithLabelValues(string(trade.TradeType)).Inc()

	notional := trade.Price * fillAmount / pricing.Scale
	e.marketStore.AddVolume(ctx, trade.MarketID, notional)

	if e.settler != nil {
		txid, err := e.settler.Settle(ctx, recorded, makerOrder, takerOrder, fillAmount)
		if err != nil {
			e.metrics.settlementFailures.Inc()
			e.logger.Warn("settlement dispatch failed, trade remains recorded without a txHash",
				zap.String("trade_id", recorded.TradeID), zap.Error(err))
		} else if txid != "" {
			e.trades.RecordSettlement(recorded.TradeID, txid)
		}
	}

	if e.publisher != nil {
		if err := e.publisher.PublishTrade(recorded); err != nil {
			e.logger.Warn("failed to publish trade event", zap.String("trade_id", recorded.TradeID), zap.Error(err))
		}
	}
}

// olderFirst returns (maker, taker) ordered so the earlier-created order is
// the maker, matching the price-time-priority convention used when the
// counterparty isn't a literal resting ask.
func olderFirst(a, b *domain.Order) (maker, taker *domain.Order) {
	if a.CreatedAt <= b.CreatedAt {
		return a, b
	}
	return b, a
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
