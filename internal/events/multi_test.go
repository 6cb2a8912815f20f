package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/abdoElHodaky/clobcore/internal/domain"
)

func TestMultiPublisher_FansOutToEverySink(t *testing.T) {
	var calls []string
	sink := func(name string) func(*domain.Trade) error {
		return func(*domain.Trade) error {
			calls = append(calls, name)
			return nil
		}
	}

	m := NewMultiPublisher(sink("nats"), sink("ws"))
	assert.NoError(t, m.PublishTrade(&domain.Trade{TradeID: "t1"}))
	assert.Equal(t, []string{"nats", "ws"}, calls)
}

func TestMultiPublisher_OneFailureDoesNotBlockOtherSinks(t *testing.T) {
	boom := errors.New("nats down")
	var wsDelivered bool

	m := NewMultiPublisher(
		func(*domain.Trade) error { return boom },
		func(*domain.Trade) error { wsDelivered = true; return nil },
	)

	err := m.PublishTrade(&domain.Trade{TradeID: "t1"})
	assert.ErrorIs(t, err, boom, "the first failure is reported")
	assert.True(t, wsDelivered, "later sinks still receive the trade")
}
