// Package api assembles the gin.Engine: route table, CORS and the
// rate-limit/admin middleware wired around a Handlers bundle.
package api

import (
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/abdoElHodaky/clobcore/internal/api/handlers"
	"github.com/abdoElHodaky/clobcore/internal/api/middleware"
	"github.com/abdoElHodaky/clobcore/internal/api/websocket"
	"github.com/abdoElHodaky/clobcore/internal/config"
)

// NewRouter builds the gin.Engine for the exchange's HTTP/JSON surface
// plus the websocket live feed.
func NewRouter(cfg *config.Config, h *handlers.Handlers, hub *websocket.Hub) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "x-admin-key", "x-api-key"},
		MaxAge:          12 * time.Hour,
	}))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })

	apiLimit := middleware.RateLimit("120-M")
	smartOrderLimit := middleware.RateLimit("30-M")
	admin := middleware.AdminAuth(cfg.Admin.APIKey)

	root := r.Group("/api")
	root.Use(apiLimit)
	{
		root.GET("/markets", h.ListMarkets)
		root.GET("/markets/:id", h.GetMarket)
		root.POST("/markets", admin, h.CreateMarket)
		root.GET("/markets/:id/stats", h.MarketStats)
		root.GET("/markets/:id/price-history", h.PriceHistory)

		root.GET("/orderbook/:id", h.GetOrderbook)
		root.GET("/orderbook/:id/trades", h.GetTrades)
		root.GET("/orderbook/:id/price", h.GetPrice)
		root.GET("/orderbook/:id/stream", hub.Serve)

		smart := root.Group("/smart-orders")
		smart.Use(smartOrderLimit)
		{
			smart.POST("/preview", h.PreviewSmartOrder)
			smart.POST("", h.PlaceSmartOrder)
			smart.POST("/requirements", h.SmartOrderRequirements)
		}

		root.POST("/admin/settlements/:tradeId", admin, h.ForceSettleTrade)
	}

	return r
}

// Addr formats the configured listen address for http.Server.
func Addr(cfg *config.Config) string {
	return fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
}
