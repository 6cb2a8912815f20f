package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/abdoElHodaky/clobcore/internal/domain"
	"github.com/abdoElHodaky/clobcore/internal/orderhash"
	exerrors "github.com/abdoElHodaky/clobcore/pkg/errors"
)

// ListMarkets handles GET /api/markets.
func (h *Handlers) ListMarkets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "markets": h.Markets.GetAllMarkets()})
}

// GetMarket handles GET /api/markets/{id}.
func (h *Handlers) GetMarket(c *gin.Context) {
	m, ok := h.Markets.GetMarket(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "market not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "market": m})
}

type createMarketRequest struct {
	Question    string `json:"question" binding:"required"`
	Creator     string `json:"creator" binding:"required"`
	ConditionID string `json:"conditionId" binding:"required,len=64"`
}

// CreateMarket handles POST /api/markets (admin-authenticated). It derives
// the yes/no position ids from conditionId and seeds yesPrice at the
// scale's midpoint.
func (h *Handlers) CreateMarket(c *gin.Context) {
	var req createMarketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	yesID, err := orderhash.DerivePositionID(req.ConditionID, 0)
	if err != nil {
		writeError(c, err)
		return
	}
	noID, err := orderhash.DerivePositionID(req.ConditionID, 1)
	if err != nil {
		writeError(c, err)
		return
	}

	market := &domain.Market{
		MarketID:      uuid.NewString(),
		ConditionID:   req.ConditionID,
		Question:      req.Question,
		Creator:       req.Creator,
		YesPositionID: yesID,
		NoPositionID:  noID,
		YesPrice:      500_000,
		NoPrice:       500_000,
		CreatedAt:     time.Now().UnixMilli(),
	}
	if err := h.Markets.AddMarket(c.Request.Context(), market); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "market": market})
}

// MarketStats handles GET /api/markets/{id}/stats: order counts by status,
// last trade price and 24h volume.
func (h *Handlers) MarketStats(c *gin.Context) {
	marketID := c.Param("id")
	market, ok := h.Markets.GetMarket(marketID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "market not found"})
		return
	}

	statusCounts := h.durableStatusCounts(c, marketID)

	var lastPrice int64
	if recent := h.Trades.Recent(marketID, 1); len(recent) == 1 {
		lastPrice = recent[0].Price
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"marketId":     marketID,
		"statusCounts": statusCounts,
		"lastPrice":    lastPrice,
		"volume24h":    market.Volume24h,
		"yesPrice":     market.YesPrice,
		"noPrice":      market.NoPrice,
	})
}

// durableStatusCounts prefers the mirror's sqlx aggregate query, since it
// groups every order ever placed rather than only what's resident in the
// hot store; it falls back to counting the in-memory index when the
// mirror is unavailable or the query fails.
func (h *Handlers) durableStatusCounts(c *gin.Context, marketID string) map[string]int {
	if h.OrderRepo != nil {
		if counts, err := h.OrderRepo.StatusCounts(c.Request.Context(), marketID); err == nil {
			return counts
		}
	}
	counts := map[string]int{}
	for _, o := range h.Orders.GetMarketOrders(marketID) {
		counts[string(o.Status)]++
	}
	return counts
}

// ohlcBucket is one candle of the price-history response.
type ohlcBucket struct {
	Timestamp int64 `json:"timestamp"`
	Open      int64 `json:"open"`
	High      int64 `json:"high"`
	Low       int64 `json:"low"`
	Close     int64 `json:"close"`
	Volume    int64 `json:"volume"`
}

// PriceHistory handles GET /api/markets/{id}/price-history?interval&limit,
// bucketing the in-memory trade log into OHLC candles. Buckets older than
// the in-memory retention window are simply absent; the persisted schema
// has no trades table to reconstruct them from.
func (h *Handlers) PriceHistory(c *gin.Context) {
	marketID := c.Param("id")
	interval := parseDurationQuery(c.DefaultQuery("interval", "1m"))
	limit := parseIntQuery(c.DefaultQuery("limit", "100"), 100)

	trades := h.Trades.Recent(marketID, 10_000)
	buckets := bucketOHLC(trades, interval, limit)
	c.JSON(http.StatusOK, gin.H{"success": true, "buckets": buckets})
}

func bucketOHLC(trades []*domain.Trade, interval time.Duration, limit int) []ohlcBucket {
	if interval <= 0 {
		interval = time.Minute
	}
	byBucket := map[int64]*ohlcBucket{}
	order := make([]int64, 0)
	ms := interval.Milliseconds()

	// trades are newest-first; walk oldest-first so open/close land right.
	for i := len(trades) - 1; i >= 0; i-- {
		t := trades[i]
		bucketTS := (t.Timestamp / ms) * ms
		b, ok := byBucket[bucketTS]
		if !ok {
			b = &ohlcBucket{Timestamp: bucketTS, Open: t.Price, High: t.Price, Low: t.Price}
			byBucket[bucketTS] = b
			order = append(order, bucketTS)
		}
		if t.Price > b.High {
			b.High = t.Price
		}
		if t.Price < b.Low {
			b.Low = t.Price
		}
		b.Close = t.Price
		b.Volume += t.Size
	}

	out := make([]ohlcBucket, 0, len(order))
	for _, ts := range order {
		out = append(out, *byBucket[ts])
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func writeError(c *gin.Context, err error) {
	status := exerrors.HTTPStatus(exerrors.CodeOf(err))
	c.JSON(status, gin.H{"success": false, "error": err.Error()})
}
