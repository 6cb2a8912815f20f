// Package events publishes trade-execution events for downstream
// consumers (the live orderbook feed, the portfolio and oracle read
// proxies).
package events

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/clobcore/internal/domain"
)

// tradeSubjectPrefix is the prefix of the NATS subject trades publish on;
// the market id is appended so subscribers can subscribe to one market's
// flow.
const tradeSubjectPrefix = "clob.trades."

// Publisher implements matching.TradePublisher over a NATS connection.
type Publisher struct {
	conn   *nats.Conn
	logger *zap.Logger
}

func NewPublisher(url string, logger *zap.Logger) (*Publisher, error) {
	conn, err := nats.Connect(url, nats.Name("clobcore-matching"))
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: conn, logger: logger}, nil
}

// PublishTrade serializes and publishes a trade; NATS delivery is
// best-effort, matching the matching engine's "errors here do not revert
// the fill" contract.
func (p *Publisher) PublishTrade(trade *domain.Trade) error {
	payload, err := json.Marshal(trade)
	if err != nil {
		return err
	}
	return p.conn.Publish(tradeSubjectPrefix+trade.MarketID, payload)
}

func (p *Publisher) Close() {
	p.conn.Close()
}
