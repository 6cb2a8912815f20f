package monitor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/abdoElHodaky/clobcore/internal/domain"
	"github.com/abdoElHodaky/clobcore/internal/store"
)

func newMonitorFixture(t *testing.T, height *atomic.Int64, fail *atomic.Bool) (*Monitor, *store.MarketStore, *store.OrderStore) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail != nil && fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"results":[{"height":%d}]}`, height.Load())
	}))
	t.Cleanup(srv.Close)

	logger := zaptest.NewLogger(t)
	ms := store.NewMarketStore(nil, logger)
	os := store.NewOrderStore(ms, nil, logger)
	m := New(srv.URL, time.Second, ms, os, logger)
	return m, ms, os
}

func monitorTestMarket(t *testing.T, ms *store.MarketStore) *domain.Market {
	t.Helper()
	m := &domain.Market{
		MarketID:      "m1",
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

func restingOrder(t *testing.T, os *store.OrderStore, market *domain.Market, expiration int64) *domain.Order {
	t.Helper()
	o, err := os.AddOrder(context.Background(), domain.NewOrderInput{
		Maker: "alice", MarketID: market.MarketID, ConditionID: market.ConditionID,
		MakerPositionID: market.NoPositionID, TakerPositionID: market.YesPositionID,
		Side: domain.Buy, Price: 500_000, Size: 10, Salt: "1", Expiration: expiration,
	})
	require.NoError(t, err)
	return o
}

func TestPoll_CachesHighestObservedHeight(t *testing.T) {
	var chainHeight atomic.Int64
	chainHeight.Store(999)
	m, _, _ := newMonitorFixture(t, &chainHeight, nil)

	m.poll(context.Background())
	assert.Equal(t, int64(999), m.Height())

	chainHeight.Store(1001)
	m.poll(context.Background())
	assert.Equal(t, int64(1001), m.Height())
}

func TestPoll_HeightNeverDecreases(t *testing.T) {
	var chainHeight atomic.Int64
	chainHeight.Store(1001)
	m, _, _ := newMonitorFixture(t, &chainHeight, nil)

	m.poll(context.Background())
	require.Equal(t, int64(1001), m.Height())

	// A lagging node reports a lower tip; the cached height must hold.
	chainHeight.Store(990)
	m.poll(context.Background())
	assert.Equal(t, int64(1001), m.Height())
}

func TestPoll_FailureLeavesCachedHeightUnchanged(t *testing.T) {
	var chainHeight atomic.Int64
	var fail atomic.Bool
	chainHeight.Store(500)
	m, _, _ := newMonitorFixture(t, &chainHeight, &fail)

	m.poll(context.Background())
	require.Equal(t, int64(500), m.Height())

	fail.Store(true)
	m.poll(context.Background())
	assert.Equal(t, int64(500), m.Height())
}

func TestPoll_ExpiresRestingOrdersBelowHeight(t *testing.T) {
	var chainHeight atomic.Int64
	chainHeight.Store(999)
	m, ms, os := newMonitorFixture(t, &chainHeight, nil)
	market := monitorTestMarket(t, ms)

	expiring := restingOrder(t, os, market, 1000)
	surviving := restingOrder(t, os, market, 2000)
	perpetual := restingOrder(t, os, market, 0)

	m.poll(context.Background())
	got, _ := os.GetOrder(expiring.OrderID)
	assert.Equal(t, domain.OrderOpen, got.Status, "order outlives the height it expires at")

	chainHeight.Store(1001)
	m.poll(context.Background())

	got, _ = os.GetOrder(expiring.OrderID)
	assert.Equal(t, domain.OrderExpired, got.Status)

	bids := os.RestingBids(market.MarketID, market.YesPositionID)
	require.Len(t, bids, 2, "expired order must leave the book")

	got, _ = os.GetOrder(surviving.OrderID)
	assert.Equal(t, domain.OrderOpen, got.Status)
	got, _ = os.GetOrder(perpetual.OrderID)
	assert.Equal(t, domain.OrderOpen, got.Status, "expiration 0 means no expiry")
}
