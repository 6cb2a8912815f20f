// Package settlement converts a matched trade into an on-chain contract
// call. It never originates a trade, only broadcasts one the matching
// engine already committed to the hot store.
package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/clobcore/internal/config"
	"github.com/abdoElHodaky/clobcore/internal/domain"
	"github.com/abdoElHodaky/clobcore/internal/pricing"
	exerrors "github.com/abdoElHodaky/clobcore/pkg/errors"
)

// broadcastTimeout bounds the chain call.
const broadcastTimeout = 30 * time.Second

// ChainClient is the narrow seam to the chain; the production
// implementation (RestyChainClient) POSTs a contract-call transaction,
// tests substitute a fake.
type ChainClient interface {
	FillOrder(ctx context.Context, req NormalFillRequest) (txid string, err error)
	FillOrderMint(ctx context.Context, req PairFillRequest) (txid string, err error)
	FillOrderMerge(ctx context.Context, req PairFillRequest) (txid string, err error)
}

// NormalFillRequest mirrors the fill-order contract-call argument shape.
type NormalFillRequest struct {
	Maker           string
	MakerPositionID string
	MakerAmount     int64
	MakerSignature  string
	Taker           string
	TakerPositionID string
	TakerAmount     int64
	Salt            string
	Expiration      int64
	FillAmount      int64
}

// PairFillRequest mirrors fill-order-mint / fill-order-merge, where the
// "pair" is two buyers (mint) or two sellers (merge).
type PairFillRequest struct {
	ConditionID string
	First       LegFill
	Second      LegFill
	Salt        string
	Expiration  int64
	FillAmount  int64
}

// LegFill is one side of a mint/merge pair.
type LegFill struct {
	Principal  string
	PositionID string
	Amount     int64
	Signature  string
}

// Bridge dispatches matched trades to the chain. It is safe to construct
// with a nil ChainClient (settlement disabled at boot).
type Bridge struct {
	client  ChainClient
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
	enabled bool
}

func NewBridge(cfg *config.Config, client ChainClient, logger *zap.Logger) *Bridge {
	enabled := cfg.SettlementEnabled() && client != nil
	if !enabled {
		logger.Warn("settlement bridge disabled: CTF_EXCHANGE_ADDRESS or STACKS_OPERATOR_PRIVATE_KEY not configured")
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "settlement",
		Timeout: broadcastTimeout,
	})
	return &Bridge{client: client, breaker: breaker, logger: logger, enabled: enabled}
}

// Settle implements matching.Settler. It validates the settlement
// preconditions, dispatches the right contract call for the trade's type,
// and returns the txid on success.
func (b *Bridge) Settle(ctx context.Context, trade *domain.Trade, maker, taker *domain.Order, fillAmount int64) (string, error) {
	if !b.enabled {
		return "", nil
	}
	if err := validatePreconditions(trade, maker, taker); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, broadcastTimeout)
	defer cancel()

	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.dispatch(ctx, trade, maker, taker, fillAmount)
	})
	if err != nil {
		return "", exerrors.Wrap(err, exerrors.SettlementRejected, "settlement broadcast failed")
	}
	return result.(string), nil
}

func (b *Bridge) dispatch(ctx context.Context, trade *domain.Trade, maker, taker *domain.Order, fillAmount int64) (string, error) {
	switch trade.TradeType {
	case domain.TradeMint:
		return b.client.FillOrderMint(ctx, pairRequest(trade.ConditionID, maker, taker, fillAmount))
	case domain.TradeMerge:
		return b.client.FillOrderMerge(ctx, pairRequest(trade.ConditionID, maker, taker, fillAmount))
	default:
		return b.client.FillOrder(ctx, normalRequest(maker, taker, fillAmount))
	}
}

// validatePreconditions enforces the maker-signature-always,
// taker-signature-for-mint/merge rule and the shape checks on amounts.
func validatePreconditions(trade *domain.Trade, maker, taker *domain.Order) error {
	if maker.Signature == "" {
		return exerrors.New(exerrors.InvalidArgument, "maker signature is required for settlement")
	}
	if trade.TradeType != domain.TradeNormal && taker.Signature == "" {
		return exerrors.New(exerrors.InvalidArgument, "taker signature is required for mint/merge settlement")
	}
	for _, sig := range []string{maker.Signature, taker.Signature} {
		if sig != "" && len(sig) != 130 {
			return exerrors.New(exerrors.InvalidArgument, "signature must be 130 hex chars")
		}
	}
	for _, pid := range []string{maker.MakerPositionID, maker.TakerPositionID, taker.MakerPositionID, taker.TakerPositionID} {
		if len(pid) != 64 {
			return exerrors.New(exerrors.InvalidArgument, "position id must be 32 bytes hex")
		}
	}
	if maker.Size < 0 || maker.Expiration < 0 || taker.Size < 0 || taker.Expiration < 0 {
		return exerrors.New(exerrors.InvalidArgument, "amounts and expiration must be non-negative integers")
	}
	return nil
}

func takerAmount(price, size int64) int64 {
	return price * size / pricing.Scale
}

func normalRequest(maker, taker *domain.Order, fillAmount int64) NormalFillRequest {
	return NormalFillRequest{
		Maker:           maker.Maker,
		MakerPositionID: maker.MakerPositionID,
		MakerAmount:     maker.Size,
		MakerSignature:  maker.Signature,
		Taker:           taker.Maker,
		TakerPositionID: taker.TakerPositionID,
		TakerAmount:     takerAmount(maker.Price, maker.Size),
		Salt:            maker.Salt,
		Expiration:      maker.Expiration,
		FillAmount:      fillAmount,
	}
}

func pairRequest(conditionID string, maker, taker *domain.Order, fillAmount int64) PairFillRequest {
	return PairFillRequest{
		ConditionID: conditionID,
		First: LegFill{
			Principal:  maker.Maker,
			PositionID: maker.TakerPositionID,
			Amount:     takerAmount(maker.Price, maker.Size),
			Signature:  maker.Signature,
		},
		Second: LegFill{
			Principal:  taker.Maker,
			PositionID: taker.TakerPositionID,
			Amount:     takerAmount(taker.Price, taker.Size),
			Signature:  taker.Signature,
		},
		Salt:       fmt.Sprintf("%s:%s", maker.Salt, taker.Salt),
		Expiration: maker.Expiration,
		FillAmount: fillAmount,
	}
}
