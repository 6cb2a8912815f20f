package events

import "github.com/abdoElHodaky/clobcore/internal/domain"

// MultiPublisher fans a trade out to every configured sink (NATS, the
// websocket hub) without any one failure blocking the others.
type MultiPublisher struct {
	sinks []func(*domain.Trade) error
}

func NewMultiPublisher(sinks ...func(*domain.Trade) error) *MultiPublisher {
	return &MultiPublisher{sinks: sinks}
}

func (m *MultiPublisher) PublishTrade(trade *domain.Trade) error {
	var firstErr error
	for _, sink := range m.sinks {
		if err := sink(trade); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
