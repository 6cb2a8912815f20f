// Package websocket implements the live orderbook/trade feed: after every
// trade, subscribers of the traded market receive the trade plus a fresh
// orderbook snapshot for the outcome it executed on.
package websocket

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/clobcore/internal/domain"
	"github.com/abdoElHodaky/clobcore/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans a market's trades and post-trade orderbook snapshot out to every
// subscriber connected to that market. It implements matching.TradePublisher
// so the engine's existing best-effort publish call drives it directly.
type Hub struct {
	orders *store.OrderStore
	logger *zap.Logger

	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{} // marketId -> set
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub(orders *store.OrderStore, logger *zap.Logger) *Hub {
	return &Hub{orders: orders, logger: logger, subs: make(map[string]map[*subscriber]struct{})}
}

// Serve upgrades GET /api/orderbook/{id}/stream and registers the
// connection for that market's updates until it disconnects.
func (h *Hub) Serve(c *gin.Context) {
	marketID := c.Param("id")
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sub := &subscriber{conn: conn, send: make(chan []byte, 16)}
	h.register(marketID, sub)
	defer h.unregister(marketID, sub)

	go h.writePump(sub)
	h.readPump(conn) // blocks until the client disconnects
}

func (h *Hub) register(marketID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[marketID] == nil {
		h.subs[marketID] = make(map[*subscriber]struct{})
	}
	h.subs[marketID][sub] = struct{}{}
}

func (h *Hub) unregister(marketID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[marketID], sub)
	close(sub.send)
}

func (h *Hub) writePump(sub *subscriber) {
	for msg := range sub.send {
		if err := sub.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = sub.conn.Close()
}

// readPump discards client input; the feed is server-push only. It returns
// once the connection closes, which drives the Serve handler's cleanup.
func (h *Hub) readPump(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// PublishTrade implements matching.TradePublisher: it pushes the trade plus
// a fresh orderbook snapshot for the outcome it traded on to every
// subscriber of that market.
func (h *Hub) PublishTrade(trade *domain.Trade) error {
	h.mu.RLock()
	subs := h.subs[trade.MarketID]
	h.mu.RUnlock()
	if len(subs) == 0 {
		return nil
	}

	book, err := h.orders.GetOrderbook(trade.MarketID, trade.TakerPositionID)
	if err != nil {
		return err
	}
	payload, err := marshalUpdate(trade, book)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range subs {
		select {
		case sub.send <- payload:
		default: // slow consumer, drop rather than block the publish path
		}
	}
	return nil
}
