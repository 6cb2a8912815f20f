package settlement

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/abdoElHodaky/clobcore/internal/config"
	"github.com/abdoElHodaky/clobcore/internal/domain"
	exerrors "github.com/abdoElHodaky/clobcore/pkg/errors"
)

// fakeChainClient records which contract function was dispatched.
type fakeChainClient struct {
	normal []NormalFillRequest
	mint   []PairFillRequest
	merge  []PairFillRequest
	err    error
}

func (f *fakeChainClient) FillOrder(ctx context.Context, req NormalFillRequest) (string, error) {
	f.normal = append(f.normal, req)
	return "tx-normal", f.err
}

func (f *fakeChainClient) FillOrderMint(ctx context.Context, req PairFillRequest) (string, error) {
	f.mint = append(f.mint, req)
	return "tx-mint", f.err
}

func (f *fakeChainClient) FillOrderMerge(ctx context.Context, req PairFillRequest) (string, error) {
	f.merge = append(f.merge, req)
	return "tx-merge", f.err
}

func enabledConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Stacks.CTFExchangeAddress = "SP000EXCHANGE.ctf-exchange"
	cfg.Stacks.OperatorPrivateKey = "feed"
	return cfg
}

func signedOrder(maker string, side domain.Side, price, size int64) *domain.Order {
	makerPos, takerPos := strings.Repeat("aa", 32), strings.Repeat("bb", 32)
	if side == domain.Buy {
		makerPos, takerPos = takerPos, makerPos
	}
	return &domain.Order{
		OrderID:         "o-" + maker,
		Maker:           maker,
		MarketID:        "m1",
		ConditionID:     strings.Repeat("11", 32),
		MakerPositionID: makerPos,
		TakerPositionID: takerPos,
		Side:            side,
		Price:           price,
		Size:            size,
		RemainingSize:   size,
		Status:          domain.OrderOpen,
		Salt:            "42",
		Signature:       strings.Repeat("ab", 65),
		PublicKey:       strings.Repeat("02", 33),
	}
}

func tradeFor(maker, taker *domain.Order, tradeType domain.TradeType) *domain.Trade {
	return &domain.Trade{
		TradeID:         "t1",
		MarketID:        maker.MarketID,
		ConditionID:     maker.ConditionID,
		MakerPositionID: maker.MakerPositionID,
		TakerPositionID: taker.TakerPositionID,
		Maker:           maker.Maker,
		Taker:           taker.Maker,
		Price:           maker.Price,
		Size:            50,
		Side:            taker.Side,
		MakerOrderID:    maker.OrderID,
		TakerOrderID:    taker.OrderID,
		TradeType:       tradeType,
	}
}

func TestSettle_DisabledBridgeIsANoOp(t *testing.T) {
	bridge := NewBridge(&config.Config{}, &fakeChainClient{}, zaptest.NewLogger(t))

	maker := signedOrder("alice", domain.Sell, 550_000, 100)
	taker := signedOrder("bob", domain.Buy, 600_000, 100)
	txid, err := bridge.Settle(context.Background(), tradeFor(maker, taker, domain.TradeNormal), maker, taker, 50)
	require.NoError(t, err)
	assert.Empty(t, txid)
}

func TestSettle_NormalDispatchesFillOrder(t *testing.T) {
	client := &fakeChainClient{}
	bridge := NewBridge(enabledConfig(), client, zaptest.NewLogger(t))

	maker := signedOrder("alice", domain.Sell, 550_000, 100)
	taker := signedOrder("bob", domain.Buy, 600_000, 100)
	txid, err := bridge.Settle(context.Background(), tradeFor(maker, taker, domain.TradeNormal), maker, taker, 50)
	require.NoError(t, err)
	assert.Equal(t, "tx-normal", txid)
	require.Len(t, client.normal, 1)

	req := client.normal[0]
	assert.Equal(t, "alice", req.Maker)
	assert.Equal(t, maker.MakerPositionID, req.MakerPositionID)
	assert.Equal(t, int64(100), req.MakerAmount)
	assert.Equal(t, int64(550_000*100/1_000_000), req.TakerAmount)
	assert.Equal(t, int64(50), req.FillAmount)
}

func TestSettle_MintDispatchesFillOrderMint(t *testing.T) {
	client := &fakeChainClient{}
	bridge := NewBridge(enabledConfig(), client, zaptest.NewLogger(t))

	maker := signedOrder("alice", domain.Buy, 600_000, 100)
	taker := signedOrder("carol", domain.Buy, 400_000, 100)
	txid, err := bridge.Settle(context.Background(), tradeFor(maker, taker, domain.TradeMint), maker, taker, 100)
	require.NoError(t, err)
	assert.Equal(t, "tx-mint", txid)
	require.Len(t, client.mint, 1)
	assert.Equal(t, maker.ConditionID, client.mint[0].ConditionID)
	assert.Equal(t, "alice", client.mint[0].First.Principal)
	assert.Equal(t, "carol", client.mint[0].Second.Principal)
}

func TestSettle_MergeDispatchesFillOrderMerge(t *testing.T) {
	client := &fakeChainClient{}
	bridge := NewBridge(enabledConfig(), client, zaptest.NewLogger(t))

	maker := signedOrder("alice", domain.Sell, 350_000, 100)
	taker := signedOrder("carol", domain.Sell, 650_000, 100)
	txid, err := bridge.Settle(context.Background(), tradeFor(maker, taker, domain.TradeMerge), maker, taker, 100)
	require.NoError(t, err)
	assert.Equal(t, "tx-merge", txid)
	require.Len(t, client.merge, 1)
}

func TestSettle_RequiresMakerSignature(t *testing.T) {
	bridge := NewBridge(enabledConfig(), &fakeChainClient{}, zaptest.NewLogger(t))

	maker := signedOrder("alice", domain.Sell, 550_000, 100)
	maker.Signature = ""
	taker := signedOrder("bob", domain.Buy, 600_000, 100)
	_, err := bridge.Settle(context.Background(), tradeFor(maker, taker, domain.TradeNormal), maker, taker, 50)
	require.Error(t, err)
	assert.True(t, exerrors.Is(err, exerrors.InvalidArgument))
}

func TestSettle_NormalAllowsUnsignedTaker(t *testing.T) {
	client := &fakeChainClient{}
	bridge := NewBridge(enabledConfig(), client, zaptest.NewLogger(t))

	maker := signedOrder("alice", domain.Sell, 550_000, 100)
	taker := signedOrder("bob", domain.Buy, 600_000, 100)
	taker.Signature = ""
	_, err := bridge.Settle(context.Background(), tradeFor(maker, taker, domain.TradeNormal), maker, taker, 50)
	require.NoError(t, err)
	require.Len(t, client.normal, 1)
}

func TestSettle_MintRequiresTakerSignature(t *testing.T) {
	bridge := NewBridge(enabledConfig(), &fakeChainClient{}, zaptest.NewLogger(t))

	maker := signedOrder("alice", domain.Buy, 600_000, 100)
	taker := signedOrder("carol", domain.Buy, 400_000, 100)
	taker.Signature = ""
	_, err := bridge.Settle(context.Background(), tradeFor(maker, taker, domain.TradeMint), maker, taker, 100)
	require.Error(t, err)
	assert.True(t, exerrors.Is(err, exerrors.InvalidArgument))
}

func TestSettle_RejectsMalformedSignatureLength(t *testing.T) {
	bridge := NewBridge(enabledConfig(), &fakeChainClient{}, zaptest.NewLogger(t))

	maker := signedOrder("alice", domain.Sell, 550_000, 100)
	maker.Signature = "deadbeef"
	taker := signedOrder("bob", domain.Buy, 600_000, 100)
	_, err := bridge.Settle(context.Background(), tradeFor(maker, taker, domain.TradeNormal), maker, taker, 50)
	require.Error(t, err)
	assert.True(t, exerrors.Is(err, exerrors.InvalidArgument))
}

func TestSettle_ChainRejectionSurfacesAsSettlementRejected(t *testing.T) {
	client := &fakeChainClient{err: exerrors.New(exerrors.SettlementRejected, "post-condition failed")}
	bridge := NewBridge(enabledConfig(), client, zaptest.NewLogger(t))

	maker := signedOrder("alice", domain.Sell, 550_000, 100)
	taker := signedOrder("bob", domain.Buy, 600_000, 100)
	_, err := bridge.Settle(context.Background(), tradeFor(maker, taker, domain.TradeNormal), maker, taker, 50)
	require.Error(t, err)
	assert.True(t, exerrors.Is(err, exerrors.SettlementRejected))
}
