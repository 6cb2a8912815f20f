package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/abdoElHodaky/clobcore/internal/domain"
)

func newTestStores(t *testing.T) (*MarketStore, *OrderStore) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	ms := NewMarketStore(nil, logger)
	os := NewOrderStore(ms, nil, logger)
	return ms, os
}

func newOrderStoreTestMarket(t *testing.T, ms *MarketStore, id string) *domain.Market {
	t.Helper()
	m := &domain.Market{
		MarketID:      id,
		ConditionID:   strings.Repeat("11", 32),
		Question:      "will it happen?",
		Creator:       "SP000TESTCREATOR",
		YesPositionID: strings.Repeat("aa", 32),
		NoPositionID:  strings.Repeat("bb", 32),
		YesPrice:      500_000,
		NoPrice:       500_000,
	}
	require.NoError(t, ms.AddMarket(context.Background(), m))
	return m
}

func buyInput(market *domain.Market, maker string, price, size int64) domain.NewOrderInput {
	return domain.NewOrderInput{
		Maker: maker, MarketID: market.MarketID, ConditionID: market.ConditionID,
		MakerPositionID: market.NoPositionID, TakerPositionID: market.YesPositionID,
		Side: domain.Buy, Price: price, Size: size, Salt: "1",
	}
}

func sellInput(market *domain.Market, maker string, price, size int64) domain.NewOrderInput {
	return domain.NewOrderInput{
		Maker: maker, MarketID: market.MarketID, ConditionID: market.ConditionID,
		MakerPositionID: market.YesPositionID, TakerPositionID: market.NoPositionID,
		Side: domain.Sell, Price: price, Size: size, Salt: "1",
	}
}

func TestAddOrder_SortsBidsDescendingPriceThenTime(t *testing.T) {
	ms, os := newTestStores(t)
	market := newOrderStoreTestMarket(t, ms, "m1")
	ctx := context.Background()

	low, err := os.AddOrder(ctx, buyInput(market, "alice", 400_000, 10))
	require.NoError(t, err)
	high, err := os.AddOrder(ctx, buyInput(market, "bob", 600_000, 10))
	require.NoError(t, err)
	mid, err := os.AddOrder(ctx, buyInput(market, "carol", 500_000, 10))
	require.NoError(t, err)

	bids := os.RestingBids(market.MarketID, market.YesPositionID)
	require.Len(t, bids, 3)
	assert.Equal(t, high.OrderID, bids[0].OrderID)
	assert.Equal(t, mid.OrderID, bids[1].OrderID)
	assert.Equal(t, low.OrderID, bids[2].OrderID)
}

func TestAddOrder_SortsAsksAscendingPriceThenTime(t *testing.T) {
	ms, os := newTestStores(t)
	market := newOrderStoreTestMarket(t, ms, "m1")
	ctx := context.Background()

	high, err := os.AddOrder(ctx, sellInput(market, "alice", 600_000, 10))
	require.NoError(t, err)
	low, err := os.AddOrder(ctx, sellInput(market, "bob", 400_000, 10))
	require.NoError(t, err)
	mid, err := os.AddOrder(ctx, sellInput(market, "carol", 500_000, 10))
	require.NoError(t, err)

	asks := os.RestingAsks(market.MarketID, market.YesPositionID)
	require.Len(t, asks, 3)
	assert.Equal(t, low.OrderID, asks[0].OrderID)
	assert.Equal(t, mid.OrderID, asks[1].OrderID)
	assert.Equal(t, high.OrderID, asks[2].OrderID)
}

func TestAddOrder_SamePriceBreaksTiesByArrivalOrder(t *testing.T) {
	ms, os := newTestStores(t)
	market := newOrderStoreTestMarket(t, ms, "m1")
	ctx := context.Background()

	first, err := os.AddOrder(ctx, buyInput(market, "alice", 500_000, 10))
	require.NoError(t, err)
	second, err := os.AddOrder(ctx, buyInput(market, "bob", 500_000, 10))
	require.NoError(t, err)

	bids := os.RestingBids(market.MarketID, market.YesPositionID)
	require.Len(t, bids, 2)
	assert.Equal(t, first.OrderID, bids[0].OrderID, "earlier order at the same price should be first")
	assert.Equal(t, second.OrderID, bids[1].OrderID)
}

func TestAddOrder_RejectsPositionIDOutsideMarket(t *testing.T) {
	ms, os := newTestStores(t)
	market := newOrderStoreTestMarket(t, ms, "m1")
	ctx := context.Background()

	in := domain.NewOrderInput{
		Maker: "alice", MarketID: market.MarketID, ConditionID: market.ConditionID,
		MakerPositionID: strings.Repeat("ff", 32), TakerPositionID: market.YesPositionID,
		Side: domain.Buy, Price: 500_000, Size: 10, Salt: "1",
	}
	_, err := os.AddOrder(ctx, in)
	assert.Error(t, err)
}

func TestFillOrder_PartialThenFullTransitionsStatusAndBook(t *testing.T) {
	ms, os := newTestStores(t)
	market := newOrderStoreTestMarket(t, ms, "m1")
	ctx := context.Background()

	order, err := os.AddOrder(ctx, buyInput(market, "alice", 500_000, 100))
	require.NoError(t, err)

	ok, err := os.FillOrder(ctx, order.OrderID, 40)
	require.NoError(t, err)
	require.True(t, ok)

	got, _ := os.GetOrder(order.OrderID)
	assert.Equal(t, domain.OrderPartiallyFilled, got.Status)
	assert.Equal(t, int64(60), got.RemainingSize)
	assert.Len(t, os.RestingBids(market.MarketID, market.YesPositionID), 1, "partially filled order still rests")

	ok, err = os.FillOrder(ctx, order.OrderID, 60)
	require.NoError(t, err)
	require.True(t, ok)

	got, _ = os.GetOrder(order.OrderID)
	assert.Equal(t, domain.OrderFilled, got.Status)
	assert.Empty(t, os.RestingBids(market.MarketID, market.YesPositionID), "filled order leaves the book")
}

func TestFillOrder_RejectsSizeAboveRemaining(t *testing.T) {
	ms, os := newTestStores(t)
	market := newOrderStoreTestMarket(t, ms, "m1")
	ctx := context.Background()

	order, err := os.AddOrder(ctx, buyInput(market, "alice", 500_000, 10))
	require.NoError(t, err)

	ok, err := os.FillOrder(ctx, order.OrderID, 11)
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestFillOrder_RejectsFillOfTerminalOrder(t *testing.T) {
	ms, os := newTestStores(t)
	market := newOrderStoreTestMarket(t, ms, "m1")
	ctx := context.Background()

	order, err := os.AddOrder(ctx, buyInput(market, "alice", 500_000, 10))
	require.NoError(t, err)

	ok, err := os.CancelOrder(ctx, order.OrderID)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = os.FillOrder(ctx, order.OrderID, 5)
	assert.Error(t, err)
}

func TestCancelOrder_RemovesFromBookAndIsIdempotent(t *testing.T) {
	ms, os := newTestStores(t)
	market := newOrderStoreTestMarket(t, ms, "m1")
	ctx := context.Background()

	order, err := os.AddOrder(ctx, buyInput(market, "alice", 500_000, 10))
	require.NoError(t, err)

	ok, err := os.CancelOrder(ctx, order.OrderID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, os.RestingBids(market.MarketID, market.YesPositionID))

	got, _ := os.GetOrder(order.OrderID)
	assert.Equal(t, domain.OrderCancelled, got.Status)

	ok, err = os.CancelOrder(ctx, order.OrderID)
	require.NoError(t, err)
	assert.False(t, ok, "a second cancel on an already-terminal order is a no-op")
}

func TestGetOrderbook_AggregatesOrdersAtTheSamePriceLevel(t *testing.T) {
	ms, os := newTestStores(t)
	market := newOrderStoreTestMarket(t, ms, "m1")
	ctx := context.Background()

	_, err := os.AddOrder(ctx, buyInput(market, "alice", 500_000, 10))
	require.NoError(t, err)
	_, err = os.AddOrder(ctx, buyInput(market, "bob", 500_000, 15))
	require.NoError(t, err)

	ob, err := os.GetOrderbook(market.MarketID, market.YesPositionID)
	require.NoError(t, err)
	require.Len(t, ob.Bids, 1)
	assert.Equal(t, int64(500_000), ob.Bids[0].Price)
	assert.Equal(t, int64(25), ob.Bids[0].Size)
	assert.Equal(t, 2, ob.Bids[0].OrderCount)
}

func TestGetOrderbook_InvalidatesSnapshotOnNewOrder(t *testing.T) {
	ms, os := newTestStores(t)
	market := newOrderStoreTestMarket(t, ms, "m1")
	ctx := context.Background()

	_, err := os.AddOrder(ctx, buyInput(market, "alice", 500_000, 10))
	require.NoError(t, err)

	first, err := os.GetOrderbook(market.MarketID, market.YesPositionID)
	require.NoError(t, err)
	require.Len(t, first.Bids, 1)

	_, err = os.AddOrder(ctx, buyInput(market, "bob", 600_000, 10))
	require.NoError(t, err)

	second, err := os.GetOrderbook(market.MarketID, market.YesPositionID)
	require.NoError(t, err)
	require.Len(t, second.Bids, 2, "the cached snapshot must not mask the new order")
	assert.Equal(t, int64(600_000), second.Bids[0].Price)
}
