package settlement

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	exerrors "github.com/abdoElHodaky/clobcore/pkg/errors"
)

// chainResponse is the shape returned by the Stacks contract-call broadcast
// endpoint, trimmed to what the bridge needs.
type chainResponse struct {
	TxID   string `json:"txid"`
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

// RestyChainClient is the production ChainClient: it POSTs a Clarity
// contract-call transaction to the configured Stacks API, with bounded
// timeouts and typed error translation.
type RestyChainClient struct {
	http                     *resty.Client
	apiURL                   string
	ctfExchangeAddress       string
	conditionalTokensAddress string
	operatorKey              string
	logger                   *zap.Logger
}

func NewRestyChainClient(apiURL, ctfExchangeAddress, conditionalTokensAddress, operatorKey string, logger *zap.Logger) *RestyChainClient {
	client := resty.New().
		SetBaseURL(apiURL).
		SetTimeout(broadcastTimeout).
		SetRetryCount(2)
	return &RestyChainClient{
		http:                     client,
		apiURL:                   apiURL,
		ctfExchangeAddress:       ctfExchangeAddress,
		conditionalTokensAddress: conditionalTokensAddress,
		operatorKey:              operatorKey,
		logger:                   logger,
	}
}

func (c *RestyChainClient) call(ctx context.Context, function string, args interface{}) (string, error) {
	var out chainResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]interface{}{
			"contract_address":    c.ctfExchangeAddress,
			"function_name":       function,
			"function_args":       args,
			"post_condition_mode": "deny",
		}).
		SetResult(&out).
		Post("/v2/contracts/call-read")
	if err != nil {
		return "", exerrors.Wrap(err, exerrors.SettlementRejected, "chain broadcast request failed")
	}
	if resp.IsError() || out.Error != "" {
		return "", exerrors.New(exerrors.SettlementRejected, fmt.Sprintf("chain rejected %s: %s %s", function, out.Error, out.Reason)).
			WithDetail("status", resp.StatusCode()).WithDetail("body", resp.String())
	}
	return out.TxID, nil
}

func (c *RestyChainClient) FillOrder(ctx context.Context, req NormalFillRequest) (string, error) {
	return c.call(ctx, "fill-order", map[string]interface{}{
		"maker":             req.Maker,
		"maker-position-id": req.MakerPositionID,
		"maker-amount":      req.MakerAmount,
		"maker-sig":         req.MakerSignature,
		"taker":             req.Taker,
		"taker-position-id": req.TakerPositionID,
		"taker-amount":      req.TakerAmount,
		"salt":              req.Salt,
		"expiration":        req.Expiration,
		"fill":              req.FillAmount,
	})
}

func (c *RestyChainClient) FillOrderMint(ctx context.Context, req PairFillRequest) (string, error) {
	return c.call(ctx, "fill-order-mint", pairArgs(req))
}

func (c *RestyChainClient) FillOrderMerge(ctx context.Context, req PairFillRequest) (string, error) {
	return c.call(ctx, "fill-order-merge", pairArgs(req))
}

func pairArgs(req PairFillRequest) map[string]interface{} {
	return map[string]interface{}{
		"condition-id": req.ConditionID,
		"first":        req.First,
		"second":       req.Second,
		"salt":         req.Salt,
		"expiration":   req.Expiration,
		"fill":         req.FillAmount,
	}
}
