// Package router implements the smart order router: a pure planner over
// the current orderbook snapshot, used both to preview a
// market order and to size the immediate sweep of a marketable limit order.
package router

import (
	"github.com/abdoElHodaky/clobcore/internal/domain"
	"github.com/abdoElHodaky/clobcore/internal/pricing"
	exerrors "github.com/abdoElHodaky/clobcore/pkg/errors"
)

// OrderbookSource is the narrow read seam the router needs; satisfied by
// *store.OrderStore.
type OrderbookSource interface {
	GetOrderbook(marketID, positionID string) (*domain.Orderbook, error)
}

// Request is the smart router's input.
type Request struct {
	MarketID    string
	PositionID  string // the outcome token being traded
	Side        domain.Side
	Size        int64
	OrderType   domain.OrderKind
	LimitPrice  int64 // only consulted for KindLimit
	MaxSlippage int64 // basis points; only consulted for KindMarket
}

// PlanExecution reads the orderbook snapshot for (marketId, positionId) and
// walks the counterparty side, producing a feasible multi-level execution
// plan or a reason it can't be filled. It performs no writes.
func PlanExecution(src OrderbookSource, req Request) (*domain.ExecutionPlan, error) {
	if req.Size <= 0 {
		return nil, exerrors.New(exerrors.InvalidArgument, "size must be >= 1")
	}

	book, err := src.GetOrderbook(req.MarketID, req.PositionID)
	if err != nil {
		return nil, err
	}

	var candidates []domain.OrderbookLevel
	if req.Side == domain.Buy {
		candidates = book.Asks // price ascending already
	} else {
		candidates = book.Bids // price descending already
	}

	plan := &domain.ExecutionPlan{
		OrderType: req.OrderType,
		TotalSize: req.Size,
		Levels:    make([]domain.PlanLevel, 0, len(candidates)),
	}
	if len(candidates) > 0 {
		plan.BestPrice = candidates[0].Price
	}

	var remaining = req.Size
	var cumulative, cost int64

	for _, level := range candidates {
		if remaining == 0 {
			break
		}
		if req.OrderType == domain.KindLimit {
			if req.Side == domain.Buy && level.Price > req.LimitPrice {
				break
			}
			if req.Side == domain.Sell && level.Price < req.LimitPrice {
				break
			}
		}

		fillAt := level.Size
		if fillAt > remaining {
			fillAt = remaining
		}
		cumulative += fillAt
		levelCost := level.Price * fillAt
		cost += levelCost
		plan.Levels = append(plan.Levels, domain.PlanLevel{
			Price:          level.Price,
			Size:           fillAt,
			CumulativeSize: cumulative,
			Cost:           levelCost,
		})
		remaining -= fillAt
		plan.WorstPrice = level.Price
	}

	plan.TotalCost = cost
	if cumulative > 0 {
		plan.AveragePrice = pricing.RoundHalfEven(cost, cumulative)
	}

	if cumulative < req.Size {
		plan.Feasible = false
		plan.Reason = "insufficient liquidity"
		return plan, nil
	}

	if plan.BestPrice > 0 {
		plan.SlippageBps = slippageBps(plan.AveragePrice, plan.BestPrice)
	}
	if req.OrderType == domain.KindMarket && req.MaxSlippage > 0 && plan.SlippageBps > req.MaxSlippage {
		plan.Feasible = false
		plan.Reason = "slippage exceeds max"
		return plan, nil
	}

	plan.Feasible = true
	return plan, nil
}

// slippageBps is |avg - best| / best expressed in basis points (1bp =
// 0.01%), rounded half to even. The plan's average price and mid-price
// discovery are the other places a finite rational is rounded.
func slippageBps(avgPrice, bestPrice int64) int64 {
	diff := avgPrice - bestPrice
	if diff < 0 {
		diff = -diff
	}
	return pricing.RoundHalfEven(diff*10_000, bestPrice)
}
