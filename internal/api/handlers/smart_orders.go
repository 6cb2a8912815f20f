package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abdoElHodaky/clobcore/internal/domain"
	"github.com/abdoElHodaky/clobcore/internal/orderhash"
	"github.com/abdoElHodaky/clobcore/internal/pricing"
	"github.com/abdoElHodaky/clobcore/internal/router"
)

type planRequest struct {
	MarketID    string `json:"marketId" binding:"required"`
	PositionID  string `json:"positionId" binding:"required,len=64"`
	Side        string `json:"side" binding:"required,oneof=BUY SELL"`
	Size        int64  `json:"size" binding:"required,gt=0"`
	OrderType   string `json:"orderType" binding:"required,oneof=LIMIT MARKET"`
	LimitPrice  int64  `json:"limitPrice"`
	MaxSlippage int64  `json:"maxSlippage"` // percent, converted to bps internally
}

func (r planRequest) toRouterRequest() router.Request {
	return router.Request{
		MarketID:    r.MarketID,
		PositionID:  r.PositionID,
		Side:        domain.Side(r.Side),
		Size:        r.Size,
		OrderType:   domain.OrderKind(r.OrderType),
		LimitPrice:  r.LimitPrice,
		MaxSlippage: r.MaxSlippage * 100,
	}
}

// PreviewSmartOrder handles POST /api/smart-orders/preview.
func (h *Handlers) PreviewSmartOrder(c *gin.Context) {
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	plan, err := router.PlanExecution(h.Orders, req.toRouterRequest())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "plan": plan})
}

type placeOrderRequest struct {
	Maker           string `json:"maker" binding:"required"`
	MarketID        string `json:"marketId" binding:"required"`
	MakerPositionID string `json:"makerPositionId" binding:"required,len=64"`
	TakerPositionID string `json:"takerPositionId" binding:"required,len=64"`
	Side            string `json:"side" binding:"required,oneof=BUY SELL"`
	Size            int64  `json:"size" binding:"required,gt=0"`
	OrderType       string `json:"orderType" binding:"required,oneof=LIMIT MARKET"`
	Price           int64  `json:"price"`       // required for LIMIT
	MaxSlippage     int64  `json:"maxSlippage"` // percent; MARKET only
	Salt            string `json:"salt" binding:"required_with=Signature"`
	Expiration      int64  `json:"expiration"`
	Signature       string `json:"signature"`
	PublicKey       string `json:"publicKey"`
}

// PlaceSmartOrder handles POST /api/smart-orders: a LIMIT order simply
// rests on the book; a MARKET order is planned first and placed as a
// marketable limit bounded at the plan's worst acceptable price, so the
// next matching tick sweeps exactly the planned levels.
func (h *Handlers) PlaceSmartOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	market, ok := h.Markets.GetMarket(req.MarketID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "market not found"})
		return
	}

	price := req.Price
	if domain.OrderKind(req.OrderType) == domain.KindMarket {
		takerPositionOutcome := req.TakerPositionID
		if domain.Side(req.Side) == domain.Sell {
			takerPositionOutcome = req.MakerPositionID
		}
		plan, err := router.PlanExecution(h.Orders, router.Request{
			MarketID:    req.MarketID,
			PositionID:  takerPositionOutcome,
			Side:        domain.Side(req.Side),
			Size:        req.Size,
			OrderType:   domain.KindMarket,
			MaxSlippage: req.MaxSlippage * 100,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		if !plan.Feasible {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": plan.Reason, "plan": plan})
			return
		}
		price = plan.WorstPrice
	}

	if req.Signature != "" && req.PublicKey != "" {
		takerAmount := price * req.Size / pricing.Scale
		hash, err := orderhash.Hash(orderhash.Fields{
			Maker:           req.Maker,
			Taker:           req.Maker,
			MakerPositionID: req.MakerPositionID,
			TakerPositionID: req.TakerPositionID,
			MakerAmount:     req.Size,
			TakerAmount:     takerAmount,
			Salt:            req.Salt,
			Expiration:      req.Expiration,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		if err := orderhash.Verify(hash, req.Signature, req.PublicKey); err != nil {
			writeError(c, err)
			return
		}
	}

	order, err := h.Orders.AddOrder(c.Request.Context(), domain.NewOrderInput{
		Maker:           req.Maker,
		MarketID:        req.MarketID,
		ConditionID:     market.ConditionID,
		MakerPositionID: req.MakerPositionID,
		TakerPositionID: req.TakerPositionID,
		Side:            domain.Side(req.Side),
		Price:           price,
		Size:            req.Size,
		Salt:            req.Salt,
		Expiration:      req.Expiration,
		Signature:       req.Signature,
		PublicKey:       req.PublicKey,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "order": order})
}

type requirementsRequest struct {
	Maker    string `json:"maker" binding:"required"`
	MarketID string `json:"marketId" binding:"required"`
	Side     string `json:"side" binding:"required,oneof=BUY SELL"`
	Outcome  int    `json:"outcome" binding:"oneof=0 1"`
	Size     int64  `json:"size" binding:"required,gt=0"`
}

// SmartOrderRequirements handles POST /api/smart-orders/requirements: a
// pure helper reporting which positionId the maker must hold for a given
// side and outcome. No state touched.
func (h *Handlers) SmartOrderRequirements(c *gin.Context) {
	var req requirementsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	market, ok := h.Markets.GetMarket(req.MarketID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "market not found"})
		return
	}

	outcomeID := market.OutcomePositionID(req.Outcome)
	complementID := market.OutcomePositionID(1 - req.Outcome)

	// BUY O: makerPositionId=¬O. SELL O: makerPositionId=O.
	required := complementID
	if domain.Side(req.Side) == domain.Sell {
		required = outcomeID
	}

	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"requiredPositionId": required,
		"requiredAmount":     req.Size,
	})
}
