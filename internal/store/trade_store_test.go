package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdoElHodaky/clobcore/internal/domain"
)

func TestTradeStoreRecord_AssignsIdentityAndTimestamp(t *testing.T) {
	ts := NewTradeStore()
	recorded := ts.Record(domain.Trade{MarketID: "m1", Price: 550_000, Size: 50}, 1234)

	assert.NotEmpty(t, recorded.TradeID)
	assert.Equal(t, int64(1234), recorded.Timestamp)

	got, ok := ts.Get(recorded.TradeID)
	require.True(t, ok)
	assert.Equal(t, int64(550_000), got.Price)
}

func TestTradeStoreRecent_ReturnsNewestFirstWithLimit(t *testing.T) {
	ts := NewTradeStore()
	for i := 0; i < 5; i++ {
		ts.Record(domain.Trade{MarketID: "m1", Price: int64(500_000 + i)}, int64(i))
	}

	recent := ts.Recent("m1", 3)
	require.Len(t, recent, 3)
	assert.Equal(t, int64(500_004), recent[0].Price)
	assert.Equal(t, int64(500_002), recent[2].Price)

	all := ts.Recent("m1", 0)
	assert.Len(t, all, 5, "non-positive limit returns everything")
}

func TestTradeStoreRecordSettlement_AttachesTxHashAndIgnoresUnknownID(t *testing.T) {
	ts := NewTradeStore()
	recorded := ts.Record(domain.Trade{MarketID: "m1"}, 1)

	ts.RecordSettlement(recorded.TradeID, "0xabc")
	got, ok := ts.Get(recorded.TradeID)
	require.True(t, ok)
	assert.Equal(t, "0xabc", got.TxHash)

	ts.RecordSettlement("unknown-id", "0xdef") // no-op, must not panic
}

func TestTradeStoreGet_ReturnsACopy(t *testing.T) {
	ts := NewTradeStore()
	recorded := ts.Record(domain.Trade{MarketID: "m1", Price: 500_000}, 1)

	got, ok := ts.Get(recorded.TradeID)
	require.True(t, ok)
	got.Price = 999_999

	again, _ := ts.Get(recorded.TradeID)
	assert.Equal(t, int64(500_000), again.Price, "mutating a returned trade must not touch the store")
}

func TestTradeStoreRecord_EvictsOldestPastRetention(t *testing.T) {
	ts := NewTradeStore()
	var first string
	for i := 0; i <= tradeRetentionPerMarket; i++ {
		recorded := ts.Record(domain.Trade{MarketID: "m1", Size: int64(i)}, int64(i))
		if i == 0 {
			first = recorded.TradeID
		}
	}

	_, ok := ts.Get(first)
	assert.False(t, ok, "oldest trade should be evicted once retention is exceeded")
	assert.Len(t, ts.Recent("m1", 0), tradeRetentionPerMarket)
}

func TestTradeStoreRecent_IsolatesMarkets(t *testing.T) {
	ts := NewTradeStore()
	for i := 0; i < 3; i++ {
		ts.Record(domain.Trade{MarketID: fmt.Sprintf("m%d", i%2)}, int64(i))
	}
	assert.Len(t, ts.Recent("m0", 0), 2)
	assert.Len(t, ts.Recent("m1", 0), 1)
}
