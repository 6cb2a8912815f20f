// Package domain holds the data model shared by the order store, matching
// engine, smart router and settlement bridge: markets, orders, trades and
// the derived views over them. It has no behavior beyond small invariant
// checks; the components that operate on these types own the logic.
package domain

import "github.com/abdoElHodaky/clobcore/internal/pricing"

// Side is which direction an order trades.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// OrderStatus is the lifecycle state of an Order.
type OrderStatus string

const (
	OrderOpen            OrderStatus = "OPEN"
	OrderPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderFilled          OrderStatus = "FILLED"
	OrderCancelled       OrderStatus = "CANCELLED"
	OrderExpired         OrderStatus = "EXPIRED"
)

// IsResting reports whether an order in this status belongs in the
// price-sorted book.
func (s OrderStatus) IsResting() bool {
	return s == OrderOpen || s == OrderPartiallyFilled
}

// IsTerminal reports whether an order in this status can never change
// again.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderFilled || s == OrderCancelled || s == OrderExpired
}

// OrderKind distinguishes limit orders (which rest on the book at their
// own price) from market orders (which the smart router plans and which
// are then placed on the book at the plan's worst price).
type OrderKind string

const (
	KindLimit  OrderKind = "LIMIT"
	KindMarket OrderKind = "MARKET"
)

// TradeType classifies a matched pair.
type TradeType string

const (
	TradeNormal TradeType = "NORMAL"
	TradeMint   TradeType = "MINT"
	TradeMerge  TradeType = "MERGE"
)

// MintMergeEpsilon is how close buy.price+sell.price must be to
// pricing.Scale for a crossing pair to be classified MINT/MERGE instead of
// NORMAL.
const MintMergeEpsilon int64 = 10_000

// Market is a single binary-outcome prediction market.
type Market struct {
	MarketID      string `json:"marketId"`
	ConditionID   string `json:"conditionId"` // 32 bytes, hex
	Question      string `json:"question"`
	Creator       string `json:"creator"`
	YesPositionID string `json:"yesPositionId"` // 32 bytes, hex
	NoPositionID  string `json:"noPositionId"`  // 32 bytes, hex
	YesPrice      int64  `json:"yesPrice"`
	NoPrice       int64  `json:"noPrice"`
	Volume24h     int64  `json:"volume24h"`
	CreatedAt     int64  `json:"createdAt"` // ms
	Resolved      bool   `json:"resolved"`
	Outcome       *int   `json:"outcome,omitempty"` // 0 or 1, once resolved
}

// Validate checks a Market's invariants.
func (m *Market) Validate() error {
	if m.MarketID == "" {
		return errMissing("marketId")
	}
	if len(m.ConditionID) != 64 {
		return errBadHex("conditionId", m.ConditionID)
	}
	if len(m.YesPositionID) != 64 || len(m.NoPositionID) != 64 {
		return errBadHex("positionId", "")
	}
	if m.YesPositionID == m.NoPositionID {
		return errInvariant("yesPositionId and noPositionId must differ")
	}
	if m.YesPrice+m.NoPrice != pricing.Scale {
		return errInvariant("yesPrice + noPrice must equal PRICE_SCALE")
	}
	if m.YesPrice < 0 || m.YesPrice > pricing.Scale {
		return errInvariant("yesPrice out of range")
	}
	return nil
}

// OutcomePositionID returns the position id for outcome 0 (yes) or 1 (no).
func (m *Market) OutcomePositionID(outcome int) string {
	if outcome == 0 {
		return m.YesPositionID
	}
	return m.NoPositionID
}

// Order is a single signed order resting in, or fully consumed from, a
// market's book.
type Order struct {
	OrderID         string      `json:"orderId"`
	Maker           string      `json:"maker"`
	MarketID        string      `json:"marketId"`
	ConditionID     string      `json:"conditionId"`
	MakerPositionID string      `json:"makerPositionId"`
	TakerPositionID string      `json:"takerPositionId"`
	Side            Side        `json:"side"`
	Price           int64       `json:"price"`
	Size            int64       `json:"size"`
	FilledSize      int64       `json:"filledSize"`
	RemainingSize   int64       `json:"remainingSize"`
	Status          OrderStatus `json:"status"`
	Salt            string      `json:"salt"`
	Expiration      int64       `json:"expiration"` // block height, 0 = none
	CreatedAt       int64       `json:"createdAt"`  // ms
	UpdatedAt       int64       `json:"updatedAt"`
	Signature       string      `json:"signature,omitempty"` // 130 hex chars, optional
	PublicKey       string      `json:"publicKey,omitempty"` // compressed, optional
}

// NewOrderInput is the caller-supplied shape addOrder accepts before the
// store assigns an id and timestamps.
type NewOrderInput struct {
	Maker           string
	MarketID        string
	ConditionID     string
	MakerPositionID string
	TakerPositionID string
	Side            Side
	Price           int64
	Size            int64
	Salt            string
	Expiration      int64
	Signature       string
	PublicKey       string
}

// Validate checks an order's creation-time invariants. It does not check
// market membership of the position ids; the store does that, since it
// alone knows the market.
func (in *NewOrderInput) Validate() error {
	if in.Size < 1 {
		return errInvariant("size must be >= 1")
	}
	if in.Side != Buy && in.Side != Sell {
		return errInvariant("side must be BUY or SELL")
	}
	if in.Price <= 0 || in.Price >= pricing.Scale {
		return errInvariant("price must satisfy 0 < price < PRICE_SCALE")
	}
	if len(in.MakerPositionID) != 64 || len(in.TakerPositionID) != 64 {
		return errBadHex("positionId", "")
	}
	if in.MakerPositionID == in.TakerPositionID {
		return errInvariant("makerPositionId and takerPositionId must differ")
	}
	if in.Signature != "" && len(in.Signature) != 130 {
		return errInvariant("signature must be 130 hex chars")
	}
	return nil
}

// BookPositionID returns the position id that keys the sorted book this
// order belongs in: bookPositionId(BUY,_,t)=t, bookPositionId(SELL,m,_)=m.
func (o *Order) BookPositionID() string {
	if o.Side == Buy {
		return o.TakerPositionID
	}
	return o.MakerPositionID
}

// Trade is an immutable record of one matched fill.
type Trade struct {
	TradeID         string    `json:"tradeId"`
	MarketID        string    `json:"marketId"`
	ConditionID     string    `json:"conditionId"`
	MakerPositionID string    `json:"makerPositionId"`
	TakerPositionID string    `json:"takerPositionId"`
	Maker           string    `json:"maker"`
	Taker           string    `json:"taker"`
	Price           int64     `json:"price"`
	Size            int64     `json:"size"`
	Side            Side      `json:"side"` // taker's side
	MakerOrderID    string    `json:"makerOrderId"`
	TakerOrderID    string    `json:"takerOrderId"`
	TradeType       TradeType `json:"tradeType"`
	Timestamp       int64     `json:"timestamp"`
	TxHash          string    `json:"txHash,omitempty"`
}

// OrderbookLevel is a derived aggregate over resting orders at one price.
type OrderbookLevel struct {
	Price      int64 `json:"price"`
	Size       int64 `json:"size"`
	OrderCount int   `json:"orderCount"`
}

// Orderbook is the aggregated view returned to callers: bids sorted
// high-to-low, asks sorted low-to-high.
type Orderbook struct {
	Bids []OrderbookLevel `json:"bids"`
	Asks []OrderbookLevel `json:"asks"`
}

// ExecutionPlan is the smart router's pure output.
type ExecutionPlan struct {
	OrderType    OrderKind   `json:"orderType"`
	TotalSize    int64       `json:"totalSize"`
	Levels       []PlanLevel `json:"levels"`
	AveragePrice int64       `json:"averagePrice"`
	TotalCost    int64       `json:"totalCost"`
	SlippageBps  int64       `json:"slippageBps"` // slippage expressed in basis points (1bp = 0.01%)
	WorstPrice   int64       `json:"worstPrice"`
	BestPrice    int64       `json:"bestPrice"`
	Feasible     bool        `json:"feasible"`
	Reason       string      `json:"reason,omitempty"`
}

// PlanLevel is one price level the plan would consume.
type PlanLevel struct {
	Price          int64 `json:"price"`
	Size           int64 `json:"size"`
	CumulativeSize int64 `json:"cumulativeSize"`
	Cost           int64 `json:"cost"`
}

func errMissing(field string) error      { return invariantError("missing required field: " + field) }
func errBadHex(field, v string) error    { return invariantError(field + " must be 32 bytes hex") }
func errInvariant(msg string) error      { return invariantError(msg) }

type invariantError string

func (e invariantError) Error() string { return string(e) }
