package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetOrderbook handles GET /api/orderbook/{id}?positionId=. When positionId
// is omitted it returns both outcome books.
func (h *Handlers) GetOrderbook(c *gin.Context) {
	marketID := c.Param("id")
	market, ok := h.Markets.GetMarket(marketID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "market not found"})
		return
	}

	positionID := c.Query("positionId")
	if positionID != "" {
		book, err := h.Orders.GetOrderbook(marketID, positionID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "positionId": positionID, "book": book})
		return
	}

	yesBook, err := h.Orders.GetOrderbook(marketID, market.YesPositionID)
	if err != nil {
		writeError(c, err)
		return
	}
	noBook, err := h.Orders.GetOrderbook(marketID, market.NoPositionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"books": gin.H{
			market.YesPositionID: yesBook,
			market.NoPositionID:  noBook,
		},
	})
}

// GetTrades handles GET /api/orderbook/{id}/trades?limit.
func (h *Handlers) GetTrades(c *gin.Context) {
	marketID := c.Param("id")
	limit := parseIntQuery(c.DefaultQuery("limit", "50"), 50)
	c.JSON(http.StatusOK, gin.H{"success": true, "trades": h.Trades.Recent(marketID, limit)})
}

// GetPrice handles GET /api/orderbook/{id}/price: mid/best/last for the
// market's YES token.
func (h *Handlers) GetPrice(c *gin.Context) {
	marketID := c.Param("id")
	market, ok := h.Markets.GetMarket(marketID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "market not found"})
		return
	}

	book, err := h.Orders.GetOrderbook(marketID, market.YesPositionID)
	if err != nil {
		writeError(c, err)
		return
	}
	var bestBid, bestAsk int64
	if len(book.Bids) > 0 {
		bestBid = book.Bids[0].Price
	}
	if len(book.Asks) > 0 {
		bestAsk = book.Asks[0].Price
	}
	var lastPrice int64
	if recent := h.Trades.Recent(marketID, 1); len(recent) == 1 {
		lastPrice = recent[0].Price
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"yesPrice": market.YesPrice,
		"noPrice":  market.NoPrice,
		"bestBid":  bestBid,
		"bestAsk":  bestAsk,
		"last":     lastPrice,
	})
}
