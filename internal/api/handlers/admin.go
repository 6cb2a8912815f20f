package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	exerrors "github.com/abdoElHodaky/clobcore/pkg/errors"
)

// ForceSettleTrade handles POST /api/admin/settlements/{tradeId}: the
// recovery surface for settlement's at-most-once contract, re-dispatching
// a trade that was recorded without a txHash.
func (h *Handlers) ForceSettleTrade(c *gin.Context) {
	tradeID := c.Param("tradeId")
	trade, ok := h.Trades.Get(tradeID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "trade not found"})
		return
	}
	if trade.TxHash != "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "trade already settled", "txHash": trade.TxHash})
		return
	}

	maker, ok := h.Orders.GetOrder(trade.MakerOrderID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "maker order not found"})
		return
	}
	taker, ok := h.Orders.GetOrder(trade.TakerOrderID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "taker order not found"})
		return
	}

	txid, err := h.Bridge.Settle(c.Request.Context(), trade, maker, taker, trade.Size)
	if err != nil {
		c.JSON(exerrors.HTTPStatus(exerrors.CodeOf(err)), gin.H{"success": false, "error": err.Error()})
		return
	}
	if txid == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "settlement is disabled"})
		return
	}
	h.Trades.RecordSettlement(tradeID, txid)
	c.JSON(http.StatusOK, gin.H{"success": true, "txHash": txid})
}
