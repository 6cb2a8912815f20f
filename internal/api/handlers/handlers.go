// Package handlers implements the gin handler functions for the exchange's
// HTTP/JSON surface, translating between JSON request bodies and the
// core's store/router/settlement packages.
package handlers

import (
	"go.uber.org/zap"

	"github.com/abdoElHodaky/clobcore/internal/db/repositories"
	"github.com/abdoElHodaky/clobcore/internal/settlement"
	"github.com/abdoElHodaky/clobcore/internal/store"
)

// Handlers bundles the dependencies every handler needs. Constructed once
// in cmd/server and registered onto the gin router.
type Handlers struct {
	Markets   *store.MarketStore
	Orders    *store.OrderStore
	Trades    *store.TradeStore
	OrderRepo *repositories.OrderRepository
	Bridge    *settlement.Bridge
	Logger    *zap.Logger
}

func New(markets *store.MarketStore, orders *store.OrderStore, trades *store.TradeStore, orderRepo *repositories.OrderRepository, bridge *settlement.Bridge, logger *zap.Logger) *Handlers {
	return &Handlers{Markets: markets, Orders: orders, Trades: trades, OrderRepo: orderRepo, Bridge: bridge, Logger: logger}
}
