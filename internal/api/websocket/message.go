package websocket

import (
	"encoding/json"

	"github.com/abdoElHodaky/clobcore/internal/domain"
)

type update struct {
	Type      string            `json:"type"`
	Trade     *domain.Trade     `json:"trade"`
	Orderbook *domain.Orderbook `json:"orderbook"`
}

func marshalUpdate(trade *domain.Trade, book *domain.Orderbook) ([]byte, error) {
	return json.Marshal(update{Type: "trade", Trade: trade, Orderbook: book})
}
