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

func newMarketStoreTestMarket(id string) *domain.Market {
	return &domain.Market{
		MarketID:      id,
		ConditionID:   strings.Repeat("11", 32),
		Question:      "will it happen?",
		Creator:       "SP000TESTCREATOR",
		YesPositionID: strings.Repeat("aa", 32),
		NoPositionID:  strings.Repeat("bb", 32),
		YesPrice:      500_000,
		NoPrice:       500_000,
	}
}

func TestAddVolume_AccumulatesAcrossCalls(t *testing.T) {
	ms := NewMarketStore(nil, zaptest.NewLogger(t))
	ctx := context.Background()
	m := newMarketStoreTestMarket("m1")
	require.NoError(t, ms.AddMarket(ctx, m))

	ms.AddVolume(ctx, "m1", 50_000)
	ms.AddVolume(ctx, "m1", 25_000)

	got, ok := ms.GetMarket("m1")
	require.True(t, ok)
	assert.Equal(t, int64(75_000), got.Volume24h)
}

func TestAddVolume_UnknownMarketIsNoop(t *testing.T) {
	ms := NewMarketStore(nil, zaptest.NewLogger(t))
	assert.NotPanics(t, func() { ms.AddVolume(context.Background(), "does-not-exist", 1_000) })
}

func TestUpdateMarketPrices_LeavesVolumeUntouched(t *testing.T) {
	ms := NewMarketStore(nil, zaptest.NewLogger(t))
	ctx := context.Background()
	m := newMarketStoreTestMarket("m1")
	require.NoError(t, ms.AddMarket(ctx, m))
	ms.AddVolume(ctx, "m1", 10_000)

	require.NoError(t, ms.UpdateMarketPrices(ctx, "m1", 600_000, 400_000))

	got, ok := ms.GetMarket("m1")
	require.True(t, ok)
	assert.Equal(t, int64(600_000), got.YesPrice)
	assert.Equal(t, int64(10_000), got.Volume24h)
}

func TestOpenMarketIDs_ExcludesResolvedMarkets(t *testing.T) {
	ms := NewMarketStore(nil, zaptest.NewLogger(t))
	ctx := context.Background()
	require.NoError(t, ms.AddMarket(ctx, newMarketStoreTestMarket("open")))
	require.NoError(t, ms.AddMarket(ctx, newMarketStoreTestMarket("resolved")))
	require.NoError(t, ms.Resolve("resolved", 0))

	ids := ms.OpenMarketIDs()
	assert.Equal(t, []string{"open"}, ids)
}
